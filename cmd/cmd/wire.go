package cmd

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"echoframe/internal/config"
	"echoframe/internal/dedup"
	"echoframe/internal/emitter"
	"echoframe/internal/logger"
	"echoframe/internal/matcher"
	"echoframe/internal/persistence"
	"echoframe/internal/pipeline"
	"echoframe/internal/registry"
	"echoframe/internal/scorer"
)

// openDatabase connects to Postgres using the loaded configuration.
func openDatabase(cfg *config.Config) (*persistence.PostgresDB, error) {
	db, err := persistence.NewPostgresDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

// loadRegistry builds the pattern registry from the configured definitions
// file. Rejected patterns are logged but do not fail the load.
func loadRegistry(cfg *config.Config) (*registry.Registry, error) {
	reg, rejected, err := registry.LoadFile(cfg.Patterns.File)
	if err != nil {
		return nil, err
	}
	for _, rejErr := range rejected {
		logger.Warn("Pattern excluded from active set", map[string]interface{}{"reason": rejErr.Error()})
	}
	return reg, nil
}

// newWindow selects the recent-alert history backend.
func newWindow(cfg *config.Config) dedup.RecentWindow {
	if cfg.Dedup.Backend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return dedup.NewRedisWindow(client, cfg.Dedup.Window)
	}
	return dedup.NewMemoryWindow(cfg.Dedup.Window)
}

// newPipeline wires the full evaluation flow on top of an open database and
// rebuilds the near-duplicate history from alerts persisted within the
// window, so suppression carries across CLI invocations.
func newPipeline(ctx context.Context, cfg *config.Config, db persistence.Database, reg *registry.Registry) (*pipeline.Pipeline, error) {
	dedupe := dedup.New(db.Alerts(), newWindow(cfg), cfg.Dedup.SimilarityThreshold)
	p := pipeline.New(pipeline.Options{
		Registry:    reg,
		Matcher:     matcher.New(cfg.Matcher.ProximityWindow),
		Scorer:      scorer.New(cfg.Thresholds),
		Dedup:       dedupe,
		Emitter:     emitter.New(db.Alerts(), db.Suppressions()),
		Articles:    db.Articles(),
		Alerts:      db.Alerts(),
		MinScore:    cfg.Thresholds.Low,
		Concurrency: cfg.Pipeline.Concurrency,
		BatchLimit:  cfg.Pipeline.BatchLimit,
	})
	if err := p.WarmDedup(ctx, cfg.Dedup.Window); err != nil {
		return nil, fmt.Errorf("rebuild dedup window: %w", err)
	}
	return p, nil
}
