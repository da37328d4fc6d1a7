// Package db persists CMS local folders, message records, local messages and
// settings in Postgres.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yplo6403/rcsjta-sub005/internal/config"
	"github.com/yplo6403/rcsjta-sub005/internal/provider"
	"github.com/yplo6403/rcsjta-sub005/internal/settings"
	"github.com/yplo6403/rcsjta-sub005/internal/storage"
)

// NewConnection creates a PostgreSQL connection pool and checks it is reachable.
// The sync worker is the only heavy writer, so the pool stays small.
func NewConnection(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = 8
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// CloseConnection closes the given database connection pool.
func CloseConnection(pool *pgxpool.Pool) {
	if pool != nil {
		pool.Close()
	}
}

// Store implements storage.RecordStore and settings.Store on a pool.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ storage.RecordStore   = (*Store)(nil)
	_ settings.Store        = (*Store)(nil)
	_ provider.MessageStore = (*Store)(nil)
)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}
