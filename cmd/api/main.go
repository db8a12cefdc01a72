package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"carbon-market/marketplace/marketplace-backend/internal/allocation"
	"carbon-market/marketplace/marketplace-backend/internal/auth"
	"carbon-market/marketplace/marketplace-backend/internal/cache"
	"carbon-market/marketplace/marketplace-backend/internal/chain"
	"carbon-market/marketplace/marketplace-backend/internal/config"
	"carbon-market/marketplace/marketplace-backend/internal/credits"
	"carbon-market/marketplace/marketplace-backend/internal/ledger"
	"carbon-market/marketplace/marketplace-backend/internal/logging"
	"carbon-market/marketplace/marketplace-backend/internal/metrics"
	"carbon-market/marketplace/marketplace-backend/internal/middleware"
	"carbon-market/marketplace/marketplace-backend/internal/scheduler"
	"carbon-market/marketplace/marketplace-backend/internal/users"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		panic(err)
	}

	// Initialize logger
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Connect to database
	db, err := openDatabase(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("Failed to access database pool", zap.Error(err))
	}
	defer sqlDB.Close()

	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(
			&users.User{},
			&credits.Credit{},
			&credits.Request{},
			&credits.PurchasedCredit{},
			&ledger.Transaction{},
		); err != nil {
			logger.Fatal("Failed to migrate schema", zap.Error(err))
		}
	}

	// Cache
	store, closeCache := buildCache(ctx, cfg.Redis, logger)
	defer closeCache()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(registry)

	// Domain services
	userRepo := users.NewRepository(db)
	ledgerRepo := ledger.NewRepository(sqlx.NewDb(sqlDB, "postgres"))
	pool := allocation.NewPool(userRepo)
	tokens := auth.NewTokenManager(cfg.Security.JWTSecret, cfg.Security.TokenTTL)

	creditService := credits.NewService(
		credits.NewRepository(db),
		userRepo,
		ledgerRepo,
		pool,
		allocation.NewEngine(),
		store,
		recorder,
		logger,
		credits.Options{
			CreditsTTL:      cfg.Cache.CreditsTTL,
			TransactionsTTL: cfg.Cache.TransactionsTTL,
		},
	)

	var bridge chain.Bridge
	evm, err := chain.NewEVMBridge(ctx, cfg.Chain, logger)
	switch {
	case err == nil:
		bridge = evm
		defer evm.Close()
	case errors.Is(err, chain.ErrNotConfigured):
		logger.Info("Blockchain bridge disabled")
	default:
		logger.Warn("Blockchain bridge unavailable", zap.Error(err))
	}

	// Scheduler
	jobs := scheduler.NewManager(pool, recorder, logger, cfg.Scheduler.PoolRefreshSpec)
	if err := jobs.Start(ctx); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}
	defer jobs.Stop()

	// Setup Router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.AccessLog(logger), middleware.CORS())

	// Register Routes
	api := router.Group("/api")
	{
		auth.RegisterRoutes(api, auth.NewHandler(userRepo, tokens, logger))
		credits.NewHandler(creditService, logger).
			RegisterRoutes(api.Group("/NGO", auth.Authenticate(tokens)))
	}
	chain.NewHandler(bridge, logger).
		RegisterRoutes(router.Group("/blockchain"), auth.Authenticate(tokens), auth.RequireRole(users.RoleNGO))

	router.GET("/metrics", gin.WrapH(recorder.Handler()))

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		dbState := "up"
		if err := sqlDB.PingContext(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			dbState = "down"
		}
		c.JSON(status, gin.H{
			"status":    http.StatusText(status),
			"database":  dbState,
			"timestamp": time.Now(),
		})
	})

	// Start Server
	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", srv.Addr))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}

func openDatabase(cfg config.DatabaseConfig, logger *zap.Logger) (*gorm.DB, error) {
	logger.Info("Connecting to database",
		zap.String("host", cfg.Host),
		zap.String("db_name", cfg.DBName))

	db, err := gorm.Open(postgres.Open(cfg.GetDatabaseURL()), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxConnections)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.MaxLifetime)

	return db, nil
}

// buildCache prefers Redis and falls back to the in-process cache when Redis is
// disabled or unreachable.
func buildCache(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (cache.Cache, func()) {
	if cfg.Enabled {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()

		rc, err := cache.NewRedisCache(pingCtx, cfg.URL)
		if err == nil {
			logger.Info("Using Redis cache")
			return rc, func() { _ = rc.Close() }
		}
		logger.Warn("Redis unavailable, falling back to in-memory cache", zap.Error(err))
	}

	mc := cache.NewMemoryCache(time.Minute)
	return mc, mc.Stop
}
