package main

import (
	"bufio"
	"context"
	"flag"
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

func main() {
	email := flag.String("email", "", "admin e-mail (defaults to ADMIN_EMAIL)")
	name := flag.String("name", "", "admin full name (defaults to ADMIN_FULL_NAME)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	admin := cfg.Admin
	if *email != "" {
		admin.Email = *email
	}
	if *name != "" {
		admin.FullName = *name
	}

	reader := bufio.NewReader(os.Stdin)
	if admin.Email == "" {
		fmt.Print("Admin e-mail: ")
		line, _ := reader.ReadString('\n')
		admin.Email = strings.TrimSpace(line)
	}
	if admin.Password == "" || *email != "" {
		fmt.Print("Admin password (min 8 chars): ")
		line, _ := reader.ReadString('\n')
		admin.Password = strings.TrimSpace(line)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.ConnectWithRetry(ctx, cfg.Database, appLogger, 2, time.Second)
	if err != nil {
		appLogger.Error("Failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer database.Close(db, appLogger)

	if err := bootstrap.EnsureDefaultAdmin(db, admin, appLogger); err != nil {
		appLogger.Error("Failed to create admin", slog.String("error", err.Error()))
		os.Exit(1)
	}

	fmt.Printf("\n✅ Admin %s is ready.\n", strings.ToLower(admin.Email))
}
