package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"attendancehub/internal/app"
	"attendancehub/internal/config"
	"attendancehub/internal/logger"
)

// Worker consumes the shared job queue: record-key compaction left over by
// the api and roster de-duplication requested by admins.
func main() {
	cfg := config.Load()
	log := logger.Must(cfg.Production()).Named("worker")
	defer func() { _ = log.Sync() }()

	if cfg.QueueBackend != config.QueueRedis {
		log.Fatal("worker needs QUEUE_BACKEND=redis; the memory queue is drained by the api")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal("build failed", zap.Error(err))
	}
	defer a.Close()

	if err := a.Runner.Run(ctx, a.Queue); err != nil {
		log.Error("worker failed", zap.Error(err))
	}
}
