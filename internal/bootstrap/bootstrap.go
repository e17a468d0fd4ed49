// Package bootstrap wires process-level dependencies shared by the commands.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"reviewdesk/internal/cache"
	"reviewdesk/internal/config"
	"reviewdesk/internal/database"
	"reviewdesk/internal/middleware"
	"reviewdesk/internal/observability"
	"reviewdesk/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// DemoApplications seeds that many applications into an empty
	// development database. Zero disables seeding.
	DemoApplications int
}

// InitRuntime connects to DB and Redis and optionally seeds demo data.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	// May leave a nil client; the service then runs uncached.
	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if err := seedDemo(cfg, db, opts); err != nil {
		return nil, nil, fmt.Errorf("failed to seed demo applications: %w", err)
	}

	return db, r, nil
}

func seedDemo(cfg *config.Config, db *gorm.DB, opts Options) error {
	if opts.DemoApplications <= 0 || !strings.EqualFold(cfg.Env, "development") {
		return nil
	}
	ctx := context.Background()
	s := seed.NewSeeder(db, seed.Options{Applications: opts.DemoApplications})
	if err := s.SeedIfEmpty(ctx); err != nil {
		return err
	}
	return s.Wait(ctx)
}

// InitTracing installs the tracer provider described by cfg and returns its
// shutdown function.
func InitTracing(cfg *config.Config) (func(context.Context) error, error) {
	shutdown, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "reviewdesk-api",
		ServiceVersion: "1.0.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.TracingSamplerRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing init failed: %w", err)
	}
	if cfg.TracingEnabled {
		middleware.Logger.Info("tracing enabled",
			slog.String("exporter", cfg.TracingExporter),
			slog.Float64("sampler_ratio", cfg.TracingSamplerRatio),
		)
	}
	return shutdown, nil
}
