package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool defaults applied when a Config field is left zero.
const (
	defaultMaxConns          int32 = 25
	defaultMaxConnLifetime         = time.Hour
	defaultMaxConnIdleTime         = 30 * time.Minute
	defaultHealthCheckPeriod       = time.Minute
)

// DB wraps a pgxpool connection pool.
type DB struct {
	*pgxpool.Pool
}

// Config holds database connection configuration.
type Config struct {
	URL               string
	MaxConnections    int32
	MinConnections    int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// NewConnection opens the pool and pings it once so a bad URL or an
// unreachable server fails at startup.
func NewConnection(ctx context.Context, cfg *Config) (*DB, error) {
	pc, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// poolConfig parses the URL and layers the sizing and lifetime settings on top.
func poolConfig(cfg *Config) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	pc.MaxConns = orDefault(cfg.MaxConnections, defaultMaxConns)
	pc.MaxConnLifetime = orDefault(cfg.MaxConnLifetime, defaultMaxConnLifetime)
	pc.MaxConnIdleTime = orDefault(cfg.MaxConnIdleTime, defaultMaxConnIdleTime)
	pc.HealthCheckPeriod = orDefault(cfg.HealthCheckPeriod, defaultHealthCheckPeriod)

	if cfg.MinConnections < 0 || cfg.MinConnections > pc.MaxConns {
		return nil, fmt.Errorf("min connections %d must be between 0 and max connections %d", cfg.MinConnections, pc.MaxConns)
	}
	pc.MinConns = cfg.MinConnections

	return pc, nil
}

func orDefault[T int32 | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}

// Close closes the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}
