// Package app opens the backing services shared by the portal binaries.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/uniportal/internship-portal/internal/cache"
	"github.com/uniportal/internship-portal/internal/config"
	"github.com/uniportal/internship-portal/internal/lock"
	"github.com/uniportal/internship-portal/internal/matching"
	"github.com/uniportal/internship-portal/internal/messaging"
	"github.com/uniportal/internship-portal/internal/profile"
	"github.com/uniportal/internship-portal/internal/store/memstore"
	"github.com/uniportal/internship-portal/internal/store/postgres"
)

// Store is what the services need from persistence.
type Store interface {
	matching.Store
	profile.Repository
}

// Backend is an opened store plus the handle needed to close it.
type Backend struct {
	Store Store
	// DB is nil for the in-memory driver.
	DB *sql.DB
}

// Close releases the database pool, if any.
func (b *Backend) Close() error {
	if b.DB == nil {
		return nil
	}
	return b.DB.Close()
}

// OpenStore opens the configured store and applies migrations when
// auto_migrate is set.
func OpenStore(ctx context.Context, cfg config.Database, logger *zap.Logger) (*Backend, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory store, data is lost on exit")
		return &Backend{Store: memstore.New()}, nil
	case config.DriverPostgres:
	default:
		return nil, fmt.Errorf("app: unknown database driver %q", cfg.Driver)
	}

	db, err := postgres.Open(ctx, cfg.Postgres(), logger)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := postgres.MigrateUp(db); err != nil {
			db.Close()
			return nil, err
		}
		version, dirty, err := postgres.SchemaVersion(db)
		if err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("schema migrated", zap.Uint("version", version), zap.Bool("dirty", dirty))
	}
	return &Backend{Store: postgres.NewStore(db), DB: db}, nil
}

// OpenRedis connects and pings Redis. It returns nil when Redis is disabled.
func OpenRedis(ctx context.Context, cfg config.Redis, logger *zap.Logger) (*redis.Client, error) {
	if !cfg.Enabled {
		logger.Info("redis disabled, running without cache, run lock or rate limits")
		return nil, nil
	}
	rdb := redis.NewClient(cfg.Options())
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("app: redis ping %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// OpenNATS connects to NATS. It returns nil when NATS is disabled.
func OpenNATS(cfg config.NATS, binary string, logger *zap.Logger) (*messaging.NATSClient, error) {
	if !cfg.Enabled {
		logger.Info("nats disabled, match events will not be published")
		return nil, nil
	}
	return messaging.NewNATSClient(cfg.Client(binary), logger)
}

// MatchingDeps assembles the matching service dependencies. Redis and NATS
// are optional; a nil client leaves the matching interface unset rather than
// holding a typed nil.
func MatchingDeps(b *Backend, rdb *redis.Client, nc *messaging.NATSClient, cfg config.Matching, logger *zap.Logger) matching.Deps {
	deps := matching.Deps{Store: b.Store, Logger: logger}
	if rdb != nil {
		deps.Locker = lock.NewRunLock(rdb, lock.DefaultKey, cfg.RunLockTTL)
		deps.Cache = cache.NewInternships(rdb, cfg.InternshipCacheTTL)
	}
	if nc != nil {
		deps.Publisher = matching.NewNATSPublisher(nc)
	}
	return deps
}
