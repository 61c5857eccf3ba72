package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolOptions sizes the connection pool. Zero values fall back to defaults.
type PoolOptions struct {
	MaxConns       int32
	MinConns       int32
	PingRetries    int
	PingBackoff    time.Duration
	PingTimeout    time.Duration
	SimpleProtocol bool
}

func (o PoolOptions) withDefaults() PoolOptions {
	if o.MaxConns <= 0 {
		o.MaxConns = 20
	}
	if o.MinConns <= 0 {
		o.MinConns = 2
	}
	if o.PingRetries <= 0 {
		o.PingRetries = 3
	}
	if o.PingBackoff <= 0 {
		o.PingBackoff = time.Second
	}
	if o.PingTimeout <= 0 {
		o.PingTimeout = 5 * time.Second
	}
	return o
}

// NewPool creates a PostgreSQL connection pool and waits until it answers a
// ping, retrying with exponential backoff.
func NewPool(ctx context.Context, databaseURL string, opts PoolOptions) (*pgxpool.Pool, error) {
	opts = opts.withDefaults()

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = opts.MaxConns
	config.MinConns = opts.MinConns
	config.HealthCheckPeriod = 1 * time.Minute
	config.MaxConnLifetime = 1 * time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	// Transaction-mode poolers (PgBouncer, Supavisor) reject cached prepared
	// statements with SQLSTATE 42P05.
	if opts.SimpleProtocol {
		config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	delay := opts.PingBackoff
	for i := 0; i < opts.PingRetries; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
		err = pool.Ping(pingCtx)
		cancel()

		if err == nil {
			return pool, nil
		}

		if i < opts.PingRetries-1 {
			select {
			case <-ctx.Done():
				pool.Close()
				return nil, fmt.Errorf("database ping aborted: %w", ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	pool.Close()
	return nil, fmt.Errorf("failed to ping database after %d retries: %w", opts.PingRetries, err)
}
