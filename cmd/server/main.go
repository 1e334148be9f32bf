package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appmarketing "github.com/mall/backend/internal/application/marketing"
	"github.com/mall/backend/internal/domain/marketing"
	"github.com/mall/backend/internal/infrastructure/cache"
	"github.com/mall/backend/internal/infrastructure/config"
	"github.com/mall/backend/internal/infrastructure/event"
	"github.com/mall/backend/internal/infrastructure/fulfillment"
	"github.com/mall/backend/internal/infrastructure/ledger"
	"github.com/mall/backend/internal/infrastructure/logger"
	"github.com/mall/backend/internal/infrastructure/persistence"
	"github.com/mall/backend/internal/infrastructure/scheduler"
	"github.com/mall/backend/internal/interfaces/http/handler"
	"github.com/mall/backend/internal/interfaces/http/middleware"
	"github.com/mall/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting Mall Marketing Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize database connection, query log goes through zap
	db, err := persistence.NewDatabaseWithZap(&cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if err := db.AutoMigrate(); err != nil {
		log.Fatal("Failed to migrate marketing tables", zap.Error(err))
	}

	// Initialize Redis client shared by inventory and idempotency stores
	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Error("Error closing redis client", zap.Error(err))
		}
	}()
	{
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Fatal("Failed to connect to redis", zap.Error(err))
		}
	}
	log.Info("Redis connected successfully")

	// Initialize repositories
	instanceRepo := persistence.NewGormInstanceRepository(db.DB)
	configRepo := persistence.NewGormConfigRepository(db.DB)

	// Redis-backed stores
	inventoryStore := cache.NewRedisInventoryStore(redisClient)
	idempotencyGuard := cache.NewRedisIdempotencyGuard(redisClient)
	settlementStore := cache.NewRedisIdempotencyStoreWithClient(redisClient, "marketing:settled:")

	inventoryEngine := marketing.NewInventoryEngine(inventoryStore, log)

	// Settlement collaborators
	storeLedger := ledger.NewGormLedger(db.DB, log)
	if err := storeLedger.AutoMigrate(); err != nil {
		log.Fatal("Failed to migrate ledger tables", zap.Error(err))
	}
	memberFulfillment := fulfillment.NewGormFulfillment(db.DB, log)
	if err := memberFulfillment.AutoMigrate(); err != nil {
		log.Fatal("Failed to migrate fulfillment tables", zap.Error(err))
	}

	// Event bus for cross-context integration
	eventBus := event.NewInMemoryEventBus(log)
	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Register activity-type strategies
	factory, err := marketing.NewFactory()
	if err != nil {
		log.Fatal("Invalid template registry", zap.Error(err))
	}
	groupBuy := marketing.NewGroupBuyStrategy(instanceRepo, configRepo, idempotencyGuard, inventoryEngine, log)
	groupBuy.SetLockTTL(cfg.Marketing.InstanceLockTTL)
	courseGroupBuy := marketing.NewCourseGroupBuyStrategy(instanceRepo, configRepo, idempotencyGuard, inventoryEngine, eventBus, log)
	courseGroupBuy.SetLockTTL(cfg.Marketing.InstanceLockTTL)
	strategies := []marketing.Strategy{
		groupBuy,
		courseGroupBuy,
		marketing.NewFlashSaleStrategy(instanceRepo, configRepo, inventoryEngine, log),
		marketing.NewFullReductionStrategy(),
		marketing.NewMemberUpgradeStrategy(instanceRepo, log),
	}
	for _, s := range strategies {
		if err := factory.Register(s); err != nil {
			log.Fatal("Failed to register strategy",
				zap.String("template_code", s.TemplateCode().String()),
				zap.Error(err),
			)
		}
	}

	// Application service
	settings := appmarketing.Settings{
		PlatformFeeRate:     cfg.Marketing.PlatformFeeRate,
		JoinResultTTL:       cfg.Marketing.JoinResultTTL,
		PaymentDedupeTTL:    cfg.Marketing.PaymentDedupeTTL,
		SettlementDedupeTTL: cfg.Marketing.SettlementTTL,
		PendingPayTimeout:   cfg.Marketing.PendingPayTimeout,
	}
	instanceService := appmarketing.NewInstanceService(
		instanceRepo,
		configRepo,
		factory,
		inventoryEngine,
		idempotencyGuard,
		settlementStore,
		storeLedger,
		memberFulfillment,
		log,
		settings,
	)
	instanceService.SetEventPublisher(eventBus)

	// Strategies drive group finalization through the service
	factory.BindEngine(instanceService)

	// Background sweep of unpaid instances
	sweeper := scheduler.NewExpirySweeper(
		scheduler.ExpirySweeperConfig{
			Interval:  cfg.Marketing.ExpiryInterval,
			BatchSize: cfg.Marketing.ExpiryBatchSize,
		},
		instanceRepo,
		instanceService,
		log,
	)
	if err := sweeper.Start(context.Background()); err != nil {
		log.Fatal("Failed to start expiry sweeper", zap.Error(err))
	}
	defer func() {
		if err := sweeper.Stop(context.Background()); err != nil {
			log.Error("Error stopping expiry sweeper", zap.Error(err))
		}
	}()

	// HTTP handlers
	marketingHandler := handler.NewMarketingHandler(instanceService)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, redisClient))

	// Setup API routes
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(marketingHandler)
	r.Setup()

	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		status := http.StatusOK
		dbState := "ok"
		redisState := "ok"

		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed: database", zap.Error(err))
			dbState = "error"
			status = http.StatusServiceUnavailable
		}
		if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
			reqLog.Warn("Health check failed: redis", zap.Error(err))
			redisState = "error"
			status = http.StatusServiceUnavailable
		}

		body := gin.H{
			"time":     time.Now().Format(time.RFC3339),
			"database": dbState,
			"redis":    redisState,
		}
		if status == http.StatusOK {
			body["status"] = "healthy"
		} else {
			body["status"] = "unhealthy"
		}
		c.JSON(status, body)
	}
}
