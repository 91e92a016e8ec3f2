package storage

import (
	"database/sql"
	"fmt"

	"craftbid/internal/shared/storage/dbutil"
	pgdriver "craftbid/internal/shared/storage/driver/postgres"
	sqlitedriver "craftbid/internal/shared/storage/driver/sqlite"
	"craftbid/internal/shared/storage/repository"
)

// RepositoryStore 是 repository.Store 的类型别名
type RepositoryStore = repository.Store

var _ PersistentStore = (*RepositoryStore)(nil)

// NewPersistentStore 根据驱动类型和 DSN 创建持久化存储（含自动建表）
// 支持的驱动类型：postgres, sqlite
func NewPersistentStore(driver dbutil.DriverType, dsn string) (*RepositoryStore, error) {
	var (
		dialect dbutil.Dialect
		open    func(string) (*sql.DB, error)
	)
	switch driver {
	case dbutil.DriverPostgres:
		dialect, open = pgdriver.NewDialect(), pgdriver.Open
	case dbutil.DriverSQLite:
		dialect, open = sqlitedriver.NewDialect(), sqlitedriver.Open
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	db, err := open(dsn)
	if err != nil {
		return nil, err
	}
	if err := dialect.AutoMigrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s auto-migrate failed: %w", driver, err)
	}
	return repository.NewStore(db, dialect), nil
}
