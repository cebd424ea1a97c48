package main

import (
	"context"
	"flag"
	"log"
	"os"

	"marketplace-core/internal/config"
	"marketplace-core/internal/db"
	"marketplace-core/internal/migrate"
)

func main() {
	down := flag.Int("down", 0, "Roll back this many migrations instead of applying")
	flag.Parse()

	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[migrate] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	if *down > 0 {
		if err := migrate.Rollback(ctx, pool, logger, *down); err != nil {
			logger.Fatalf("roll back migrations: %v", err)
		}
		logger.Printf("rolled back %d migration(s)", *down)
		return
	}

	if err := migrate.Apply(ctx, pool, logger); err != nil {
		logger.Fatalf("apply migrations: %v", err)
	}

	logger.Println("migrations applied")
}
