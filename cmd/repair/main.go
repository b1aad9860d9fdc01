// Command repair removes vehicles whose category no longer exists and exits.
package main

import (
	"context"
	"flag"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"

	"carhub/internal/config"
	"carhub/internal/db"
	"carhub/internal/logger"
	"carhub/internal/repository"
	"carhub/internal/service"
)

func main() {
	timeout := flag.Duration("timeout", time.Minute, "overall deadline for the sweep")
	flag.Parse()

	cfg := config.Load()
	log := logger.New(logger.Config{Env: cfg.Env, Level: cfg.Log.Level, Service: "carhub-repair"})
	defer func() { _ = log.Sync() }()

	gormDB, err := db.NewMySQL(cfg.MySQLDSN, db.DefaultOptions())
	if err != nil {
		log.Fatal("database init", zap.Error(err))
	}

	catalog := service.NewCatalogService(repository.NewStore(gormDB),
		service.WithCatalogLogger(log),
		service.WithCatalogStorageTimeout(*timeout),
	)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	n, err := catalog.RepairOrphans(ctx)
	if err != nil {
		log.Fatal("orphan sweep failed", zap.Error(err))
	}
	log.Info("orphan sweep done", zap.Int64("removed", n))
}
