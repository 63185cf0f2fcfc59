package main

import (
	"context"
	"flag"
	"log"

	"github.com/steeldragon666/abfi-platform-1-sub004/config"
	"github.com/steeldragon666/abfi-platform-1-sub004/covenant"
	"github.com/steeldragon666/abfi-platform-1-sub004/database"
	"github.com/steeldragon666/abfi-platform-1-sub004/lender"
	"github.com/steeldragon666/abfi-platform-1-sub004/logging"
	"github.com/steeldragon666/abfi-platform-1-sub004/temporal"
	"github.com/steeldragon666/abfi-platform-1-sub004/web"
)

func main() {
	addr := flag.String("addr", "", "Listen address for the API server (overrides ABFI_LISTEN_ADDR)")
	flag.Parse()

	cfg := config.LoadEnvConfig("settings.env")
	if *addr != "" {
		cfg.ListenAddr = *addr
	}

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

	engine := temporal.NewEngine(database.NewVersionRegistry(db), logger)
	breaches := database.NewBreachStore(db)
	projects := database.NewProjectStore(db)
	covenantSvc := covenant.NewService(breaches, logger)
	lenderSvc := lender.NewService(database.NewReportStore(db), breaches, projects, logger)

	server := web.NewServer(engine, covenantSvc, lenderSvc, cfg.ListenAddr, logger)
	if err := server.Start(); err != nil {
		logger.Fatalw("web server error", "error", err)
	}
}
