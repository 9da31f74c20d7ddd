package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/rickgao/prosper-api/internal/config"
)

// Handles holds the database connections for a prosper-api process.
type Handles struct {
	// Pool serves the split cache.
	Pool *pgxpool.Pool

	// SQL serves the api key store.
	SQL *sqlx.DB
}

// Open creates both handles against the configured database.
func Open(ctx context.Context, cfg config.DBConfig) (*Handles, error) {
	pool, err := Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect split cache pool: %w", err)
	}

	db, err := ConnectSQL(ctx, cfg)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect api key db: %w", err)
	}

	return &Handles{
		Pool: pool,
		SQL:  db,
	}, nil
}

// Connect creates a single connection pool.
func Connect(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	connStr := BuildConnString(cfg)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// ConnectSQL opens a database/sql handle through lib/pq.
func ConnectSQL(ctx context.Context, cfg config.DBConfig) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", BuildSQLConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("open sql handle: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MinConns)
	return db, nil
}

// Close closes both handles.
func (h *Handles) Close() {
	if h.Pool != nil {
		h.Pool.Close()
	}
	if h.SQL != nil {
		h.SQL.Close()
	}
}

// Ping verifies both connections are healthy.
func (h *Handles) Ping(ctx context.Context) error {
	if err := h.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping split cache pool: %w", err)
	}
	if err := h.SQL.PingContext(ctx); err != nil {
		return fmt.Errorf("ping api key db: %w", err)
	}
	return nil
}
