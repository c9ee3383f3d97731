package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tremor-labs/tremor-engine/pkg/config"
)

// DB is the pgx connection pool shared by the hazard and risk repositories.
type DB struct {
	*pgxpool.Pool
}

// Connect opens a pool sized from the database configuration and verifies
// the server is reachable before any task is dispatched.
func Connect(ctx context.Context, cfg *config.DatabaseConfig) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConnections
	poolCfg.MaxConnLifetime = cfg.ConnLifetime
	poolCfg.MaxConnIdleTime = cfg.ConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("opening connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &DB{Pool: pool}, nil
}
