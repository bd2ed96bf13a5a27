package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"attendancehub/internal/app"
	"attendancehub/internal/config"
	"attendancehub/internal/logger"
	"attendancehub/internal/roster"
)

func main() {
	cfg := config.Load()
	log := logger.Must(cfg.Production())
	defer func() { _ = log.Sync() }()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, log); err != nil {
		log.Fatal("http server failed", zap.Error(err))
	}
}

func run(cfg config.App, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	// Without a shared queue the api drains its own jobs.
	if cfg.QueueBackend != config.QueueRedis {
		go func() {
			if err := a.Runner.Run(ctx, a.Queue); err != nil {
				log.Error("in-process worker stopped", zap.Error(err))
			}
		}()
	}

	if cfg.SeedFile != "" && cfg.StoreBackend == config.BackendKV && cfg.KVEngine == config.EngineMemory {
		seedMemory(ctx, a, cfg.SeedFile)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      a.HTTP().Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", srv.Addr),
			zap.String("store", cfg.StoreBackend), zap.String("queue", cfg.QueueBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced shutdown", zap.Error(err))
	}
	log.Info("server exited")
	return nil
}

// seedMemory loads the seed roster into a fresh in-memory store so a local
// run has trainers to log in with.
func seedMemory(ctx context.Context, a *app.App, path string) {
	seed, err := roster.LoadSeed(path)
	if err != nil {
		a.Log.Warn("seed not loaded", zap.Error(err))
		return
	}
	res, err := a.Roster.Import(ctx, seed)
	if err != nil {
		a.Log.Warn("seed import failed", zap.Error(err))
		return
	}
	a.Log.Info("seeded in-memory store",
		zap.Int("students", res.StudentsAdded), zap.Int("trainers", res.TrainersAdded))
}
