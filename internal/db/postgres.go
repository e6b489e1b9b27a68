package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type DB struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// New opens a pool from a DATABASE_URL style connection string and pings it.
//
// Why fail at startup instead of lazily on the first query?
//   - Migrations run right after this, and they need a live connection.
//   - A bad URL or password should stop the deploy, not surface later as
//     500s on the first chat request.
func New(ctx context.Context, databaseURL string, logger *zap.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	// Pool sizing for this service:
	//
	// MaxConns (25): a request holds a connection briefly. Find-or-create
	//   may use two in a row (insert, then re-read after losing the race),
	//   and each background notification lists push devices once.
	//
	// MinConns (5): warm connections for the access gate, which reads a
	//   role on every gated request.
	//
	// MaxConnLifetime / MaxConnIdleTime: recycle so failovers and DNS
	//   changes are picked up without a restart.
	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 20 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Don't leak a half-open pool when the ping fails.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping DB: %w", err)
	}

	logger.Info("DB connection established",
		zap.String("host", poolConfig.ConnConfig.Host),
		zap.String("database", poolConfig.ConnConfig.Database),
		zap.Int32("max_conns", poolConfig.MaxConns),
	)
	return &DB{
		pool:   pool,
		logger: logger,
	}, nil
}

func (db *DB) Close() {
	db.logger.Info("closing database connection pool")
	db.pool.Close()
}

func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Health backs the "postgres" check of GET /v1/health.
func (db *DB) Health(ctx context.Context) error {
	return db.pool.Ping(ctx)
}
