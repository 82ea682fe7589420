package main

import (
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/lib/pq"

	"github.com/mo-amir99/course-market-go/pkg/config"
	"github.com/mo-amir99/course-market-go/pkg/logger"
)

// Connects to the maintenance database and creates the configured one when missing.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	maintenance := cfg.Database
	maintenance.Name = "postgres"

	db, err := sql.Open("postgres", maintenance.DSN())
	if err != nil {
		appLogger.Error("Failed to open maintenance connection", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	var exists bool
	if err := db.QueryRow(`SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, cfg.Database.Name).Scan(&exists); err != nil {
		appLogger.Error("Failed to check database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if exists {
		fmt.Printf("Database %q already exists.\n", cfg.Database.Name)
		return
	}

	// identifiers cannot be bound as parameters
	if _, err := db.Exec("CREATE DATABASE " + pq.QuoteIdentifier(cfg.Database.Name)); err != nil {
		appLogger.Error("Failed to create database", slog.String("error", err.Error()), slog.String("name", cfg.Database.Name))
		os.Exit(1)
	}

	fmt.Printf("\n✅ Database %q created.\n", cfg.Database.Name)
}
