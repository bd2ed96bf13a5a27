// Package app builds the object graph shared by the api, worker and migrate
// binaries from one config.App.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"attendancehub/internal/attendance"
	"attendancehub/internal/config"
	"attendancehub/internal/httpapi"
	"attendancehub/internal/jobs"
	"attendancehub/internal/queue"
	"attendancehub/internal/roster"
	"attendancehub/internal/schedule"
	"attendancehub/internal/store"
)

// App is the composed application.
type App struct {
	Config     config.App
	Log        *zap.Logger
	Catalog    *schedule.Catalog
	Store      *store.Adapter
	Docs       *store.DocBackend
	Queue      queue.Queue
	Publisher  *jobs.Publisher
	Attendance *attendance.Service
	Roster     *roster.Service
	Runner     *jobs.Runner
	Health     map[string]httpapi.HealthCheck

	db    *store.DB
	redis *store.Redis
}

// Build connects to the configured backends and wires every service.
func Build(ctx context.Context, cfg config.App, log *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Log: log, Health: map[string]httpapi.HealthCheck{}}

	catalog, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}
	a.Catalog = catalog

	if cfg.NeedsRedis() {
		a.redis = store.NewRedis(cfg.RedisAddr)
		if !a.redis.Healthy(ctx) {
			log.Warn("redis not reachable at startup", zap.String("addr", cfg.RedisAddr))
		}
		a.Health["redis"] = a.redis.Healthy
	}

	backend, err := a.backend(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = store.NewAdapter(backend, store.Limits{
		Students: cfg.MaxStudents,
		Records:  cfg.MaxRecords,
		Trainers: cfg.MaxTrainers,
	})

	switch cfg.QueueBackend {
	case config.QueueRedis:
		a.Queue = queue.NewRedisQueue(a.redis.Client, cfg.QueueKey, log.Named("queue"))
	default:
		a.Queue = queue.NewInMemory(64)
	}
	a.Publisher = jobs.NewPublisher(a.Queue)

	a.Roster = roster.NewService(a.Store.Students, a.Store.Trainers, log.Named("roster"), roster.WithGroups(catalog))
	a.Attendance = attendance.NewService(a.Store.Records, a.Store.Students, catalog, log.Named("attendance"),
		attendance.WithNotifier(a.Publisher))
	a.Runner = jobs.NewRunner(a.Attendance, a.Roster, log.Named("jobs"))
	return a, nil
}

func loadCatalog(cfg config.App) (*schedule.Catalog, error) {
	if cfg.CatalogFile == "" {
		return schedule.DefaultCatalog(), nil
	}
	c, err := schedule.LoadCatalog(cfg.CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return c, nil
}

func (a *App) backend(ctx context.Context) (store.Backend, error) {
	cfg := a.Config
	if cfg.StoreBackend == config.BackendDocs {
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.db = db
		a.Health["db"] = db.Healthy
		a.Docs = store.NewDocBackend(db.Client)
		return a.Docs, nil
	}
	if cfg.KVEngine == config.EngineRedis {
		return store.NewKVBackend(a.redis, cfg.KVPrefix), nil
	}
	return store.NewKVBackend(store.NewMemoryKV(), cfg.KVPrefix), nil
}

// HTTP returns the API server over the composed services.
func (a *App) HTTP() *httpapi.Server {
	return httpapi.New(httpapi.Deps{
		Config:     a.Config,
		Catalog:    a.Catalog,
		Attendance: a.Attendance,
		Roster:     a.Roster,
		Jobs:       a.Publisher,
		Health:     a.Health,
		Log:        a.Log.Named("http"),
		Location:   a.Config.Location(),
	})
}

// Close releases backend connections.
func (a *App) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.Log.Warn("closing postgres", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.Log.Warn("closing redis", zap.Error(err))
		}
	}
}
