// Package app assembles a running service from configuration. Both the HTTP
// server and the machinectl command build their dependencies here.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/JonMunkholm/machinelog/internal/config"
	"github.com/JonMunkholm/machinelog/internal/core"
	"github.com/JonMunkholm/machinelog/internal/grid"
	"github.com/JonMunkholm/machinelog/internal/grid/sqlstore"
	"github.com/JonMunkholm/machinelog/internal/grid/xlsxstore"
	"github.com/JonMunkholm/machinelog/internal/lock"
	"github.com/JonMunkholm/machinelog/internal/schema"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// App owns the service and every resource behind it.
type App struct {
	Config  *config.Config
	Schema  *schema.Schema
	Store   grid.Store
	Service *core.Service

	closers []func() error
	stop    context.CancelFunc
	done    chan struct{}
}

// New builds the schema, store, locker and service described by cfg.
// On error everything opened so far is closed again.
func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if a.Schema, err = buildSchema(cfg.Schema); err != nil {
		return nil, err
	}
	if a.Store, err = a.openStore(ctx, cfg.Store); err != nil {
		return nil, err
	}
	locker, err := a.openLocker(ctx, cfg.Lock)
	if err != nil {
		return nil, err
	}

	a.Service, err = core.NewService(core.Options{
		Schema:            a.Schema,
		Store:             a.Store,
		Locker:            locker,
		Limiter:           core.NewLimiter(cfg.Submission.MaxConcurrent, cfg.Submission.MaxWaitTime),
		SubmissionTimeout: cfg.Submission.Timeout,
		SummaryWorkers:    cfg.Summary.Workers,
		AutoFlush:         cfg.Store.FlushInterval == 0,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Store.FlushInterval > 0 {
		if _, ok := a.Store.(grid.Flusher); ok {
			a.startFlushLoop(cfg.Store.FlushInterval)
		}
	}

	slog.Info("service assembled",
		"store", cfg.Store.Backend,
		"lock", cfg.Lock.Backend,
		"factories", len(a.Schema.Factories()),
		"machine_types", len(a.Schema.MachineTypes()),
		"status_types", len(a.Schema.StatusTypes()),
	)
	return a, nil
}

func buildSchema(cfg config.SchemaConfig) (*schema.Schema, error) {
	if cfg.File != "" {
		return schema.Load(cfg.File)
	}
	return schema.FromLists(cfg.Factories, cfg.MachineTypes, cfg.StatusTypes)
}

func (a *App) openStore(ctx context.Context, cfg config.StoreConfig) (grid.Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return grid.NewMemoryStore(), nil

	case config.BackendXLSX:
		s, err := xlsxstore.Open(cfg.WorkbookPath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		slog.Info("using workbook", "path", cfg.WorkbookPath)
		return s, nil

	case config.BackendSQLite:
		s, err := sqlstore.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil

	case config.BackendPostgres:
		poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse database URL: %w", err)
		}
		poolConfig.MaxConns = int32(cfg.MaxConns)
		poolConfig.MinConns = int32(cfg.MinConns)
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		// The store takes ownership of the pool.
		s, err := sqlstore.OpenPostgres(ctx, pool)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

func (a *App) openLocker(ctx context.Context, cfg config.LockConfig) (lock.Locker, error) {
	if cfg.Backend != config.LockRedis {
		return lock.NewLocal(), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	a.closers = append(a.closers, rdb.Close)

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddress, err)
	}
	return lock.NewRedis(rdb, lock.RedisOptions{
		TTL:           cfg.TTL,
		Wait:          cfg.WaitTimeout,
		RetryInterval: cfg.RetryInterval,
	}), nil
}

// startFlushLoop saves a buffering store every interval until Close.
func (a *App) startFlushLoop(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	a.stop = cancel
	a.done = make(chan struct{})

	go func() {
		defer close(a.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := grid.Flush(ctx, a.Store); err != nil {
					slog.Error("periodic flush failed", "error", err)
				}
			}
		}
	}()
}

// Close stops the flush loop and releases resources in reverse order of
// opening. Stores flush pending writes as they close.
func (a *App) Close() error {
	if a.stop != nil {
		a.stop()
		<-a.done
		a.stop = nil
	}

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

var _ io.Closer = (*App)(nil)
