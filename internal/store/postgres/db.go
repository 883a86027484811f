// Package postgres is the PostgreSQL-backed store for profiles, internships
// and mentor–student matches.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Config holds connection pool settings.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdle     time.Duration
	ConnMaxLifetime time.Duration
	// ReadyTimeout bounds how long Open waits for the server to answer.
	ReadyTimeout time.Duration
}

// Open connects to Postgres and waits until it answers a ping, backing off
// between attempts.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdle)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	timeout := cfg.ReadyTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	deadline := time.Now().Add(timeout)
	backoff := 500 * time.Millisecond
	for {
		err := db.PingContext(ctx)
		if err == nil {
			return db, nil
		}
		if time.Now().After(deadline) {
			db.Close()
			return nil, fmt.Errorf("postgres: ping: %w", err)
		}
		logger.Warn("postgres not ready yet", zap.Error(err), zap.Duration("retry_in", backoff))
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 5*time.Second {
			backoff *= 2
		}
	}
}
