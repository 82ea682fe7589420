package main

import (
	"compress/gzip"
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mo-amir99/course-market-go/internal/bootstrap"
	"github.com/mo-amir99/course-market-go/internal/features/notification"
	"github.com/mo-amir99/course-market-go/internal/http/routes"
	"github.com/mo-amir99/course-market-go/pkg/bunny"
	"github.com/mo-amir99/course-market-go/pkg/cache"
	"github.com/mo-amir99/course-market-go/pkg/config"
	"github.com/mo-amir99/course-market-go/pkg/database"
	"github.com/mo-amir99/course-market-go/pkg/email"
	"github.com/mo-amir99/course-market-go/pkg/logger"
	"github.com/mo-amir99/course-market-go/pkg/metrics"
	"github.com/mo-amir99/course-market-go/pkg/middleware"
	"github.com/mo-amir99/course-market-go/pkg/request"
	socketioserver "github.com/mo-amir99/course-market-go/pkg/socketio"
	"github.com/mo-amir99/course-market-go/pkg/stripe"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	appLogger, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(ctx, cfg.Database, appLogger)
	if err != nil {
		appLogger.Error("database connection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(db, appLogger); err != nil {
			appLogger.Error("database close failed", slog.String("error", err.Error()))
		}
	}()

	if err := bootstrap.ApplyDatabaseMigrations(db, cfg, appLogger); err != nil {
		appLogger.Error("migrations failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := bootstrap.EnsureDefaultAdmin(db, cfg.Admin, appLogger); err != nil {
		appLogger.Error("ensure default admin failed", slog.String("error", err.Error()))
	}

	store, err := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		appLogger.Error("cache connection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	var streamClient *bunny.StreamClient
	if cfg.Bunny.Stream.LibraryID != "" && cfg.Bunny.Stream.APIKey != "" {
		streamClient = bunny.NewStreamClient(
			cfg.Bunny.Stream.LibraryID,
			cfg.Bunny.Stream.APIKey,
			cfg.Bunny.Stream.BaseURL,
			cfg.Bunny.Stream.SecurityKey,
			cfg.Bunny.Stream.DeliveryURL,
			cfg.Bunny.Stream.ExpiresIn,
		)
	}

	var storageClient *bunny.StorageClient
	if cfg.Bunny.Storage.StorageZone != "" && cfg.Bunny.Storage.APIKey != "" {
		storageClient = bunny.NewStorageClient(
			cfg.Bunny.Storage.StorageZone,
			cfg.Bunny.Storage.APIKey,
			cfg.Bunny.Storage.BaseURL,
			cfg.Bunny.Storage.CDNURL,
		)
	}

	var (
		emailClient *email.Client
		mailer      notification.Mailer
	)
	if cfg.Email.Username != "" {
		emailClient = email.NewClient(
			cfg.Email.Host,
			cfg.Email.Port,
			cfg.Email.Username,
			cfg.Email.Password,
			cfg.Email.From,
			cfg.Email.Secure,
		)
		mailer = emailClient
	}

	gateway := stripe.NewClient(cfg.Payment.SecretKey, cfg.Payment.WebhookSecret, cfg.Payment.BaseURL, appLogger)

	socketIOServer, err := socketioserver.NewServer(db, appLogger, cfg.JWTSecret)
	if err != nil {
		appLogger.Error("socket.io server initialization failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer socketIOServer.Close()

	notifier := notification.NewFanout(db, appLogger, socketIOServer, mailer, cfg.Notification.TTLDays)

	if cfg.Jobs.Enabled {
		scheduler := bootstrap.NewScheduler(db, cfg.Jobs, notifier, appLogger)
		scheduler.Start()
		defer scheduler.Stop()
	}

	router := gin.New()

	// Socket.IO only needs recovery and CORS.
	router.Use(middleware.Recovery(appLogger))
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.GET("/socket.io/*any", gin.WrapH(socketIOServer.GetHandler()))
	router.POST("/socket.io/*any", gin.WrapH(socketIOServer.GetHandler()))

	router.Use(middleware.RequestID())
	router.Use(middleware.Compression(gzip.BestSpeed, "/metrics", "/api/payments/webhook"))
	router.Use(middleware.RequestLogger(appLogger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CacheControl("/api"))
	router.Use(middleware.RequestSizeLimit(10 * 1024 * 1024))
	router.Use(metrics.Middleware())
	router.Use(request.Handler(appLogger))

	rateLimiter := middleware.NewRateLimiter("global", 100, time.Minute)
	defer rateLimiter.Stop()
	router.Use(rateLimiter.Middleware())

	authLimiter := middleware.NewRateLimiter("auth", 10, time.Minute)
	defer authLimiter.Stop()

	routes.Register(router, routes.Dependencies{
		Config:      cfg,
		DB:          db,
		Logger:      appLogger,
		Cache:       store,
		Stream:      streamClient,
		Storage:     storageClient,
		Email:       emailClient,
		Gateway:     gateway,
		Notifier:    notifier,
		Realtime:    socketIOServer,
		AuthLimiter: authLimiter,
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddress(),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		appLogger.Info("server starting",
			slog.String("addr", cfg.ServerAddress()),
			slog.String("env", cfg.Env),
			slog.String("log_level", cfg.LogLevel),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("server listen failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("server shutdown failed", slog.String("error", err.Error()))
	} else {
		appLogger.Info("server stopped gracefully")
	}
}
