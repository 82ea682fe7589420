package routes

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/mo-amir99/course-market-go/internal/features/approval"
	"github.com/mo-amir99/course-market-go/internal/features/auth"
	"github.com/mo-amir99/course-market-go/internal/features/catalog"
	"github.com/mo-amir99/course-market-go/internal/features/course"
	"github.com/mo-amir99/course-market-go/internal/features/dashboard"
	"github.com/mo-amir99/course-market-go/internal/features/enrollment"
	"github.com/mo-amir99/course-market-go/internal/features/lecture"
	"github.com/mo-amir99/course-market-go/internal/features/notification"
	"github.com/mo-amir99/course-market-go/internal/features/review"
	"github.com/mo-amir99/course-market-go/internal/features/settlement"
	"github.com/mo-amir99/course-market-go/internal/features/topic"
	"github.com/mo-amir99/course-market-go/internal/features/user"
	"github.com/mo-amir99/course-market-go/internal/middleware"
	"github.com/mo-amir99/course-market-go/pkg/bunny"
	"github.com/mo-amir99/course-market-go/pkg/cache"
	"github.com/mo-amir99/course-market-go/pkg/cleanup"
	"github.com/mo-amir99/course-market-go/pkg/config"
	"github.com/mo-amir99/course-market-go/pkg/email"
	"github.com/mo-amir99/course-market-go/pkg/health"
	pkgmiddleware "github.com/mo-amir99/course-market-go/pkg/middleware"
	"github.com/mo-amir99/course-market-go/pkg/stripe"
	"github.com/mo-amir99/course-market-go/pkg/types"
)

// Dependencies are the shared clients built in main.
type Dependencies struct {
	Config   *config.Config
	DB       *gorm.DB
	Logger   *slog.Logger
	Cache    cache.Client
	Stream   *bunny.StreamClient
	Storage  *bunny.StorageClient
	Email    *email.Client
	Gateway  *stripe.Client
	Notifier *notification.Fanout
	Realtime health.RealtimeStats

	// AuthLimiter throttles the credential endpoints. Optional.
	AuthLimiter *pkgmiddleware.RateLimiter
}

// Register wires all feature routes onto the engine.
func Register(engine *gin.Engine, deps Dependencies) {
	cfg, db, logger := deps.Config, deps.DB, deps.Logger

	// Probes stay outside /api for the orchestrator.
	healthHandler := health.NewHandler(db, logger, deps.Realtime)
	healthHandler.AddCheck("cache", deps.Cache.Ping)
	engine.GET("/health", healthHandler.Health)
	engine.GET("/ready", healthHandler.Ready)
	engine.GET("/version", healthHandler.Version)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if !cfg.IsProduction() {
		engine.GET("/debug/db-stats", healthHandler.DBStats)
	}

	api := engine.Group("/api")

	middleware.Initialize(db, cfg.JWTSecret, logger)

	authenticated := []gin.HandlerFunc{middleware.AuthenticateToken()}
	optionalAuth := []gin.HandlerFunc{middleware.OptionalAuth()}
	adminOnly := middleware.RequireRoles(types.UserTypeAdmin)
	lecturerOnly := middleware.RequireRoles(types.UserTypeLecturer)
	studentOnly := middleware.RequireRoles(types.UserTypeStudent)
	lecturerOrAdmin := middleware.RequireRoles(types.UserTypeLecturer, types.UserTypeAdmin)

	// Unconfigured media clients stay nil interfaces so handlers can skip them.
	var (
		collections  course.CollectionCreator
		thumbnails   course.Uploader
		videoUploads lecture.VideoUploader
		signer       catalog.VideoSigner
		media        cleanup.Media
		canceler     course.IntentCanceler
	)
	if deps.Stream != nil {
		collections, videoUploads, signer = deps.Stream, deps.Stream, deps.Stream
		media.Videos = deps.Stream
	}
	if deps.Gateway != nil {
		canceler = deps.Gateway
	}
	if deps.Storage != nil {
		thumbnails = deps.Storage
		media.Files = deps.Storage
	}

	api.GET("/admin/realtime", append(adminOnly, healthHandler.Realtime)...)

	credentials := api.Group("")
	if deps.AuthLimiter != nil {
		credentials.Use(deps.AuthLimiter.Middleware())
	}
	auth.RegisterRoutes(credentials, auth.NewHandler(db, logger, cfg, deps.Email, deps.Notifier), authenticated)

	user.RegisterRoutes(api, user.NewHandler(db, logger), authenticated, adminOnly)

	course.RegisterRoutes(api, course.NewHandler(db, logger, deps.Notifier, collections, thumbnails, media, canceler), lecturerOnly, lecturerOrAdmin)
	topic.RegisterRoutes(api, topic.NewHandler(db, logger, deps.Notifier, media), lecturerOnly)
	lecture.RegisterRoutes(api, lecture.NewHandler(db, logger, deps.Notifier, videoUploads, media), lecturerOnly)
	catalog.RegisterRoutes(api, catalog.NewHandler(db, logger, signer), optionalAuth, authenticated, lecturerOrAdmin)

	approval.RegisterRoutes(api, approval.NewHandler(db, logger, deps.Notifier), adminOnly)

	enrollment.RegisterRoutes(api, enrollment.NewHandler(db, logger, deps.Gateway), studentOnly, adminOnly)

	settlementEngine := settlement.NewEngine(db, deps.Gateway, deps.Notifier, logger, cfg.Payment.Currency)
	settlement.RegisterRoutes(api, settlement.NewHandler(db, logger, settlementEngine, deps.Gateway, deps.Cache), studentOnly)

	review.RegisterRoutes(api, review.NewHandler(db, logger, deps.Notifier), optionalAuth, authenticated, studentOnly)

	notification.RegisterRoutes(api, notification.NewHandler(db, logger, deps.Notifier), authenticated, adminOnly)

	statsTTL := time.Duration(cfg.Dashboard.StatsCacheSeconds) * time.Second
	dashboard.RegisterRoutes(api, dashboard.NewHandler(db, logger, deps.Cache, cfg.Payment.Currency, statsTTL), adminOnly, lecturerOnly)
}
