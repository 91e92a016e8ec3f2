// Package dbutil 提供数据库方言抽象和工具函数
//
// 通过 Dialect 接口屏蔽不同数据库（PostgreSQL、SQLite）的 SQL 差异，
// 使 repository 层可以编写与数据库无关的业务逻辑。
package dbutil

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

// DriverType 数据库驱动类型
type DriverType string

const (
	DriverPostgres DriverType = "postgres"
	DriverSQLite   DriverType = "sqlite"
)

// Dialect 数据库方言接口
//
// 不同数据库的 SQL 语法差异通过该接口屏蔽：
//   - 占位符：PostgreSQL 用 $1, $2；SQLite 用 ?
//   - 唯一键冲突：错误码/错误信息格式不同
//   - 类型转换：PostgreSQL 有 ::type 语法
type Dialect interface {
	// DriverType 返回驱动类型标识
	DriverType() DriverType

	// Rebind 将 PostgreSQL 风格的占位符 ($1, $2, ...) 转换为目标数据库的占位符格式
	// 注意：同一个 $N 在 SQL 中只能出现一次，否则转换为 ? 后参数个数不匹配
	Rebind(query string) string

	// OnConflictDoNothing 生成忽略唯一键冲突的子句
	OnConflictDoNothing(conflictColumns ...string) string

	// IsUniqueViolation 判断错误是否为唯一键冲突
	IsUniqueViolation(err error) bool

	// AutoMigrate 自动创建/迁移数据库 Schema
	AutoMigrate(db *sql.DB) error
}

// pgPlaceholderRe 匹配 PostgreSQL 风格占位符 $1, $2, ...
var pgPlaceholderRe = regexp.MustCompile(`\$(\d+)`)

// pgCastRe 匹配 PostgreSQL 类型转换 ::type
var pgCastRe = regexp.MustCompile(`::(\w+)`)

// RebindToPositional 保持 $N 占位符不变（PostgreSQL 专用）
func RebindToPositional(query string) string {
	return query
}

// RebindToQuestion 将 $N 占位符转换为 ? （SQLite 专用）
func RebindToQuestion(query string) string {
	return pgPlaceholderRe.ReplaceAllString(query, "?")
}

// StripPgCasts 去除 PostgreSQL 类型转换 (::varchar, ::text 等)
func StripPgCasts(query string) string {
	return pgCastRe.ReplaceAllString(query, "")
}

// OnConflictDoNothing 两种数据库通用的 ON CONFLICT 子句
func OnConflictDoNothing(columns ...string) string {
	if len(columns) == 0 {
		return "ON CONFLICT DO NOTHING"
	}
	return fmt.Sprintf("ON CONFLICT (%s) DO NOTHING", strings.Join(columns, ", "))
}

// Where 动态 WHERE 条件构建器
//
// 条件中的占位符写作 ?，Build 时按顺序编号为 $N 再交给 Dialect.Rebind。
type Where struct {
	conds []string
	args  []interface{}
}

// Add 追加一个条件，cond 中的每个 ? 对应 args 中的一个参数
func (w *Where) Add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

// Build 拼接 WHERE 子句和 suffix（ORDER BY / LIMIT 等）到 baseQuery，
// 按出现顺序把 ? 编号为 $N 后交给 Dialect.Rebind。
// suffixArgs 对应 suffix 中的 ?，追加在条件参数之后。
func (w *Where) Build(d Dialect, baseQuery, suffix string, suffixArgs ...interface{}) (string, []interface{}) {
	query := baseQuery
	if len(w.conds) > 0 {
		query += " WHERE " + strings.Join(w.conds, " AND ")
	}
	query += suffix

	n := 0
	var b strings.Builder
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}

	args := make([]interface{}, 0, len(w.args)+len(suffixArgs))
	args = append(args, w.args...)
	args = append(args, suffixArgs...)
	return d.Rebind(b.String()), args
}
