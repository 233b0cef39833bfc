package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/donation-matrix-api/api/swagger"
	"github.com/noah-isme/donation-matrix-api/internal/events"
	"github.com/noah-isme/donation-matrix-api/internal/handler"
	"github.com/noah-isme/donation-matrix-api/internal/middleware"
	"github.com/noah-isme/donation-matrix-api/internal/models"
	"github.com/noah-isme/donation-matrix-api/internal/repository"
	"github.com/noah-isme/donation-matrix-api/internal/service"
	"github.com/noah-isme/donation-matrix-api/pkg/cache"
	"github.com/noah-isme/donation-matrix-api/pkg/config"
	"github.com/noah-isme/donation-matrix-api/pkg/database"
	"github.com/noah-isme/donation-matrix-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/donation-matrix-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/donation-matrix-api/pkg/middleware/requestid"
)

// @title Donation Matrix API
// @version 1.0.0
// @description Level progression and queue allocation engine for the donation matrix
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect redis", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		repo := repository.NewCacheRepository(redisClient, logr)
		defer repo.Close() //nolint:errcheck
		cacheRepo = repo
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Matrix.ProgressCacheTTL, logr, redisClient != nil)

	publisher, shutdownEvents := buildPublisher(ctx, cfg.Events, logr)
	defer shutdownEvents()

	validate := validator.New()
	store := service.NewSQLTxRunner(repository.NewMatrixStore(db, cfg.Matrix.LockNamespace))
	slotRepo := repository.NewQueueSlotRepository(db)
	participantRepo := repository.NewParticipantRepository(db)
	donationRepo := repository.NewDonationRepository(db)

	engine := service.NewMatrixEngine(store, service.NewProgressReader(slotRepo, participantRepo), cfg.Matrix, cacheSvc, metricsSvc, publisher, validate, logr)
	queueSvc := service.NewQueueService(slotRepo, store, cacheSvc, publisher, validate, logr)
	donationSvc := service.NewDonationService(donationRepo, engine, publisher, validate, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(middleware.Metrics(metricsSvc))

	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", readiness(db))
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), routeDeps{
		tokens:   service.NewTokenVerifier(cfg.JWT.Secret),
		matrix:   handler.NewMatrixHandler(engine),
		queues:   handler.NewQueueHandler(queueSvc),
		donation: handler.NewDonationHandler(donationSvc),
		metrics:  metricsHandler,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}

type routeDeps struct {
	tokens   middleware.TokenValidator
	matrix   *handler.MatrixHandler
	queues   *handler.QueueHandler
	donation *handler.DonationHandler
	metrics  *handler.MetricsHandler
}

func registerRoutes(api *gin.RouterGroup, deps routeDeps) {
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.tokens))

	matrix := secured.Group("/matrix")
	matrix.GET("/progress/:participantId", middleware.RBAC(string(models.RoleAdmin), "SELF"), deps.matrix.Progress)
	matrix.POST("/upgrades", deps.matrix.AcceptUpgrade)
	matrix.POST("/cycles", adminOnly, deps.matrix.BootstrapCycle)

	queues := secured.Group("/queues")
	queues.GET("/me", deps.queues.Mine)
	queues.PATCH("/swap", adminOnly, deps.queues.Swap)
	queues.DELETE("/slots/:id", adminOnly, deps.queues.Remove)
	queues.GET("/:level", deps.queues.List)
	queues.GET("/:level/stats", deps.queues.Stats)
	queues.POST("/:level/join", adminOnly, deps.queues.Join)
	queues.DELETE("/:level/leave", deps.queues.Leave)
	queues.PATCH("/:level/reorder", adminOnly, deps.queues.Reorder)

	donations := secured.Group("/donations")
	donations.GET("/to-send", deps.donation.ToSend)
	donations.GET("/to-receive", deps.donation.ToReceive)
	donations.GET("/history", deps.donation.History)
	donations.GET("/stats", deps.donation.Stats)
	donations.POST("/:id/receipt", deps.donation.SubmitReceipt)
	donations.PATCH("/:id/confirm", deps.donation.Confirm)
	donations.PATCH("/:id/cancel", adminOnly, deps.donation.Cancel)
	donations.PATCH("/:id/expire", adminOnly, deps.donation.Expire)

	secured.GET("/metrics/summary", adminOnly, deps.metrics.Summary)
}

// buildPublisher returns the Kafka-backed dispatcher when events are enabled.
func buildPublisher(ctx context.Context, cfg config.EventsConfig, logr *zap.Logger) (events.Publisher, func()) {
	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		logr.Info("event publishing disabled")
		return events.NopPublisher{}, func() {}
	}

	kafkaPub := events.NewKafkaPublisher(cfg, logr)
	dispatcher := events.NewDispatcher(kafkaPub, events.DispatcherConfig{
		Workers:      cfg.Workers,
		MaxRetries:   cfg.MaxRetries,
		RetryDelay:   cfg.RetryDelay,
		DrainTimeout: cfg.DrainTimeout,
		Logger:       logr,
	})
	dispatcher.Start(ctx)
	logr.Info("event publishing enabled", zap.Strings("brokers", cfg.Brokers), zap.String("topic", cfg.Topic))

	return dispatcher, func() {
		dispatcher.Stop()
		if err := kafkaPub.Close(); err != nil {
			logr.Warn("close kafka writer", zap.Error(err))
		}
	}
}

func readiness(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
