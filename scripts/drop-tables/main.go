package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mo-amir99/course-market-go/internal/bootstrap"
	"github.com/mo-amir99/course-market-go/pkg/config"
	"github.com/mo-amir99/course-market-go/pkg/database"
	"github.com/mo-amir99/course-market-go/pkg/logger"
)

const confirmation = "DROP ALL TABLES"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	if cfg.IsProduction() {
		appLogger.Error("Refusing to drop tables in production")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.ConnectWithRetry(ctx, cfg.Database, appLogger, 0, time.Second)
	if err != nil {
		appLogger.Error("Failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer database.Close(db, appLogger)

	fmt.Println("\n⚠️  WARNING: This will DROP ALL TABLES in the database!")
	fmt.Println("   Enrollments and payment records will be permanently deleted.")
	fmt.Printf("\nType '%s' to confirm: ", confirmation)

	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	if strings.TrimSpace(answer) != confirmation {
		fmt.Println("\n❌ Operation cancelled. Database unchanged.")
		return
	}

	// drop in reverse dependency order
	models := bootstrap.Models()
	dropped := 0
	for i := len(models) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(models[i]); err != nil {
			appLogger.Warn("Failed to drop table", slog.String("model", fmt.Sprintf("%T", models[i])), slog.String("error", err.Error()))
			continue
		}
		dropped++
	}

	fmt.Printf("\n✅ Successfully dropped %d tables!\n", dropped)
	fmt.Println("   Run the migrate script to recreate them.")
}
