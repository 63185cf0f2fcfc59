package main

import (
	"context"
	"log"
	"time"

	"github.com/steeldragon666/abfi-platform-1-sub004/config"
	"github.com/steeldragon666/abfi-platform-1-sub004/covenant"
	"github.com/steeldragon666/abfi-platform-1-sub004/database"
	"github.com/steeldragon666/abfi-platform-1-sub004/logging"
)

// The covenant sweep job: periodically evaluates every project's active
// covenants against its latest supply metrics and records deviations.
func main() {
	cfg := config.LoadEnvConfig("settings.env")

	logger, err := logging.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	db := database.NewDatabase(cfg.Dsn)
	if err := db.Connect(ctx); err != nil {
		logger.Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()
	if err := db.InitSchema(ctx); err != nil {
		logger.Fatalw("failed to initialize schema", "error", err)
	}

	breaches := database.NewBreachStore(db)
	projects := database.NewProjectStore(db)
	sweeper := covenant.NewSweeper(projects, covenant.NewService(breaches, logger), logger)

	interval := time.Duration(cfg.SweepIntervalMinutes) * time.Minute
	logger.Infow("starting covenant sweep", "interval", interval)

	if _, err := sweeper.RunOnce(ctx); err != nil {
		logger.Errorw("sweep failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		if _, err := sweeper.RunOnce(ctx); err != nil {
			logger.Errorw("sweep failed", "error", err)
		}
	}
}
