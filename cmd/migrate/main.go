package main

import (
	"context"
	"flag"
	"time"

	"go.uber.org/zap"

	"attendancehub/internal/app"
	"attendancehub/internal/config"
	"attendancehub/internal/logger"
	"attendancehub/internal/roster"
)

// migrate prepares the configured store: it creates the documents table for
// the docs backend and imports the seed roster.
func main() {
	cfg := config.Load()
	seedPath := flag.String("seed", cfg.SeedFile, "seed roster YAML; empty skips the import")
	flag.Parse()

	log := logger.Must(cfg.Production()).Named("migrate")
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal("build failed", zap.Error(err))
	}
	defer a.Close()

	if a.Docs != nil {
		if err := a.Docs.Migrate(ctx); err != nil {
			log.Fatal("migration failed", zap.Error(err))
		}
		log.Info("documents table ready")
	}

	if *seedPath == "" {
		return
	}
	seed, err := roster.LoadSeed(*seedPath)
	if err != nil {
		log.Fatal("seed not loaded", zap.Error(err))
	}
	res, err := a.Roster.Import(ctx, seed)
	if err != nil {
		log.Fatal("seed import failed", zap.Error(err))
	}
	log.Info("seed imported",
		zap.Int("students_added", res.StudentsAdded),
		zap.Int("students_skipped", res.StudentsSkipped),
		zap.Int("trainers_added", res.TrainersAdded),
		zap.Int("trainers_skipped", res.TrainersSkipped))
}
