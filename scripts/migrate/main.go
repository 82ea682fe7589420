package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/mo-amir99/course-market-go/internal/bootstrap"
	"github.com/mo-amir99/course-market-go/pkg/config"
	"github.com/mo-amir99/course-market-go/pkg/database"
	"github.com/mo-amir99/course-market-go/pkg/database/migrations"
	"github.com/mo-amir99/course-market-go/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.ConnectWithRetry(ctx, cfg.Database, appLogger, 2, time.Second)
	if err != nil {
		appLogger.Error("Failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer database.Close(db, appLogger)

	bootstrap.RegisterMigrations()
	if err := migrations.Run(db, appLogger); err != nil {
		appLogger.Error("Failed to run migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := bootstrap.EnsureDefaultAdmin(db, cfg.Admin, appLogger); err != nil {
		appLogger.Error("Failed to seed admin", slog.String("error", err.Error()))
		os.Exit(1)
	}

	fmt.Printf("\n✅ Migrated %d tables successfully!\n", len(bootstrap.Models()))
}
