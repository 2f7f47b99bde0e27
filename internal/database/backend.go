package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/solvex/internal/config"
	"github.com/stemsi/solvex/internal/store"
)

// pingTimeout bounds the startup connectivity check of a backend.
const pingTimeout = 5 * time.Second

// StoreBackend is an opened session-store backend with its health checks.
type StoreBackend struct {
	Backend store.Backend
	Checks  map[string]func(ctx context.Context) error
	Close   func()
}

// OpenStoreBackend connects the backend named by cfg.StoreBackend.
func OpenStoreBackend(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*StoreBackend, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendRedis:
		return openRedis(ctx, cfg.RedisURL, log)
	case config.StoreBackendPostgres:
		return openPostgres(ctx, cfg.DatabaseURL, cfg.MaxDBConns, log)
	case config.StoreBackendMemory:
		log.Warn().Msg("Using in-memory session store; attempts do not survive a restart")
		return &StoreBackend{
			Backend: store.NewMemoryBackend(),
			Checks:  map[string]func(ctx context.Context) error{},
			Close:   func() {},
		}, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

// openRedis connects the default attempt store. Each stream issues one small
// GET or SET at a time, so short socket timeouts surface an outage quickly
// and the manager degrades instead of stalling a tick.
func openRedis(ctx context.Context, url string, log zerolog.Logger) (*StoreBackend, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opt.ReadTimeout = 2 * time.Second
	opt.WriteTimeout = 2 * time.Second

	rdb := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.Info().Str("addr", opt.Addr).Int("db", opt.DB).Msg("Redis attempt store connected")

	return &StoreBackend{
		Backend: store.NewRedisBackend(rdb),
		Checks: map[string]func(ctx context.Context) error{
			"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
		Close: func() { _ = rdb.Close() },
	}, nil
}

// openPostgres connects the attempt_kv store. The table must exist already
// (cmd/migrate up).
func openPostgres(ctx context.Context, url string, maxConns int32, log zerolog.Logger) (*StoreBackend, error) {
	poolCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolCfg.MaxConns = maxConns
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info().Int32("max_conns", maxConns).Msg("PostgreSQL attempt store connected")

	return &StoreBackend{
		Backend: store.NewPostgresBackend(pool),
		Checks:  map[string]func(ctx context.Context) error{"postgres": pool.Ping},
		Close:   pool.Close,
	}, nil
}
