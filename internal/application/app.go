// Package application builds the import service from configuration. Both
// binaries start through Build so they share one wiring of the store,
// preview cache and receipt archive.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/JonMunkholm/inventory/internal/archive"
	"github.com/JonMunkholm/inventory/internal/cache"
	"github.com/JonMunkholm/inventory/internal/config"
	"github.com/JonMunkholm/inventory/internal/core"
	"github.com/JonMunkholm/inventory/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Preview backends accepted in PREVIEW_BACKEND.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// App holds the running service and the resources behind it.
type App struct {
	Config  *config.Config
	Service *core.Service
	Store   *store.Postgres
	Pool    *pgxpool.Pool

	closers []func()
}

// Build connects to every configured backend and creates the service.
// On error, anything already opened is closed.
func Build(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	app := &App{Config: cfg}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	app.Pool = pool
	app.closers = append(app.closers, pool.Close)
	slog.Info("connected to database", "name", databaseName(cfg.Database.URL))

	if cfg.Database.AutoMigrate {
		if err := store.EnsureSchema(ctx, pool); err != nil {
			return nil, err
		}
		slog.Info("database schema ensured")
	}
	app.Store = store.NewPostgres(pool)

	previews, err := app.previewCache(ctx)
	if err != nil {
		return nil, err
	}

	var opts []core.Option
	if cfg.Archive.Enabled {
		receipts, err := archive.NewMinIO(cfg.Archive)
		if err != nil {
			return nil, err
		}
		if err := receipts.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("archive: %w", err)
		}
		opts = append(opts, core.WithArchive(receipts))
		slog.Info("receipt archive enabled", "endpoint", cfg.Archive.Endpoint, "bucket", cfg.Archive.Bucket)
	}

	app.Service, err = core.NewService(app.Store, previews, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return app, nil
}

func (a *App) previewCache(ctx context.Context) (core.PreviewCache, error) {
	switch backend := strings.ToLower(a.Config.Preview.Backend); backend {
	case BackendRedis:
		client, err := cache.Connect(ctx, a.Config.Redis)
		if err != nil {
			return nil, fmt.Errorf("preview cache: %w", err)
		}
		a.closers = append(a.closers, func() { client.Close() })
		slog.Info("preview cache ready", "backend", backend, "addr", a.Config.Redis.Addr)
		return cache.NewRedis(client), nil
	case BackendMemory, "":
		slog.Info("preview cache ready", "backend", BackendMemory)
		return cache.NewMemory(), nil
	default:
		return nil, fmt.Errorf("preview cache: unknown backend %q (use memory or redis)", a.Config.Preview.Backend)
	}
}

// Close releases every opened resource in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// databaseName returns the database part of a connection URL, for logs.
func databaseName(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Path == "" {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}
