// Package infra 基础设施聚合层
//
// 提供统一的基础设施初始化和依赖注入，包括：
//   - Storage：持久化存储（PostgreSQL / SQLite）
//   - Cache：OAuth state 临时缓存（Redis 或进程内存）
//   - EventBus：审核事件总线（Redis Streams 或进程内存）
//   - Documents：证件照对象存储（MinIO，可选）
package infra

import (
	"context"
	"fmt"
	"log"
	"time"

	"craftbid/internal/config"
	"craftbid/internal/shared/cache"
	"craftbid/internal/shared/eventbus"
	"craftbid/internal/shared/objstore"
	"craftbid/internal/shared/storage"
	"craftbid/internal/shared/storage/dbutil"
)

// Infrastructure 基础设施聚合结构
type Infrastructure struct {
	// Storage 持久化存储
	Storage storage.PersistentStore

	// Cache OAuth state 缓存
	Cache cache.Cache

	// EventBus 审核事件总线
	EventBus eventbus.EventBus

	// Documents 证件照存储，未启用 MinIO 时为 nil
	Documents objstore.DocumentStore

	// redis 非 nil 时 Cache 和 EventBus 共享同一个连接
	redis *RedisInfra
}

// Options 控制 New 初始化哪些组件
type Options struct {
	// WithoutEventBus 单次任务（auto-approve）不需要推送，使用空实现
	WithoutEventBus bool
	// WithoutDocuments 不初始化对象存储
	WithoutDocuments bool
}

// New 按配置初始化基础设施
//
// Redis 未启用时退化为进程内实现，只适用于单实例部署。
func New(ctx context.Context, cfg *config.Config, opts Options) (*Infrastructure, error) {
	store, err := storage.NewPersistentStore(dbutil.DriverType(cfg.DatabaseDriver), cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.DatabaseDriver, err)
	}
	infra := &Infrastructure{Storage: store}

	if cfg.RedisEnabled() {
		r, err := NewRedisInfra(cfg.RedisURL)
		if err != nil {
			infra.Close()
			return nil, err
		}
		infra.redis = r
		infra.Cache = r.Cache()
		infra.EventBus = r.EventBus()
	} else {
		log.Printf("[infra.redis.disabled] using in-process cache and event bus")
		infra.Cache = cache.NewMemoryCache()
		infra.EventBus = eventbus.NewMemoryEventBus()
	}

	if opts.WithoutEventBus {
		infra.EventBus = eventbus.NewNoOpEventBus()
	}

	if cfg.MinIO.Enabled && !opts.WithoutDocuments {
		client, err := objstore.NewClient(cfg.MinIO)
		if err != nil {
			infra.Close()
			return nil, err
		}
		ensureCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := client.EnsureBucket(ensureCtx); err != nil {
			infra.Close()
			return nil, fmt.Errorf("failed to prepare document bucket: %w", err)
		}
		infra.Documents = client
	}

	return infra, nil
}

// Close 关闭所有基础设施连接
func (i *Infrastructure) Close() error {
	var lastErr error

	if i.Storage != nil {
		if err := i.Storage.Close(); err != nil {
			lastErr = err
		}
	}

	if i.redis != nil {
		// Cache 与 EventBus 共享客户端，只关闭一次
		if err := i.redis.Close(); err != nil {
			lastErr = err
		}
		return lastErr
	}

	if i.Cache != nil {
		if err := i.Cache.Close(); err != nil {
			lastErr = err
		}
	}

	if i.EventBus != nil {
		if err := i.EventBus.Close(); err != nil {
			lastErr = err
		}
	}

	return lastErr
}

// NewMemoryInfrastructure 创建进程内基础设施（用于测试），Storage 由调用方注入
func NewMemoryInfrastructure(store storage.PersistentStore) *Infrastructure {
	return &Infrastructure{
		Storage:  store,
		Cache:    cache.NewMemoryCache(),
		EventBus: eventbus.NewMemoryEventBus(),
	}
}
