// Command seed populates the database with demo applications.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"reviewdesk/internal/config"
	"reviewdesk/internal/database"
	"reviewdesk/internal/seed"
)

func main() {
	count := flag.Int("applications", 25, "Number of applications to create")
	seedValue := flag.Int64("seed", 0, "Random seed; 0 picks one")
	shouldClean := flag.Bool("clean", false, "Remove existing applications first")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	s := seed.NewSeeder(db, seed.Options{Applications: *count, Seed: *seedValue})

	if *shouldClean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	apps, err := s.SeedApplications(ctx)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_ = s.Wait(waitCtx)

	log.Printf("Seeded %d applications", len(apps))
}
