package main

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"marketsim/internal/config"
	"marketsim/internal/dao"
	"marketsim/internal/database"
	"marketsim/internal/engines/replay"
	"marketsim/internal/engines/trading"
	"marketsim/internal/handlers"
	wshandler "marketsim/internal/handlers/websocket"
	"marketsim/internal/marketdata"
	"marketsim/internal/services"
)

func newLogger(environment string) *zap.SugaredLogger {
	var logger *zap.Logger
	var err error
	if environment == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	return logger.Sugar()
}

func newSeriesStore(cfg *config.Config, logger *zap.SugaredLogger) marketdata.SeriesStore {
	switch cfg.SeriesBackend {
	case "binance":
		logger.Infow("using binance series backend")
		return marketdata.NewBinanceStore(nil)
	default:
		store, err := marketdata.NewClickHouseStore(marketdata.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Table:    cfg.ClickHouseTable,
			User:     cfg.ClickHouseUser,
			Password: cfg.ClickHousePassword,
		})
		if err != nil {
			logger.Fatalw("failed to connect to clickhouse", "addr", cfg.ClickHouseAddr, "error", err)
		}
		logger.Infow("using clickhouse series backend", "addr", cfg.ClickHouseAddr)
		return store
	}
}

func main() {
	cfg := config.Load()

	logger := newLogger(cfg.Environment)
	defer logger.Sync()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalw("failed to connect to database", "error", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		logger.Fatalw("failed to run migrations", "error", err)
	}

	store := newSeriesStore(cfg, logger)
	cache := marketdata.NewSeriesCache(
		time.Duration(cfg.CacheTTLSeconds)*time.Second, cfg.CacheMaxEntries)
	indexer := replay.NewTickIndexer(store, cache, cfg.SeriesInterval, logger)
	ledger := trading.NewLedger()

	hub := wshandler.NewHub(logger)
	go hub.Run()

	service := services.NewSessionService(db, store, indexer, ledger, hub, logger, services.SessionServiceConfig{
		StartBalance:           cfg.StartBalance,
		DefaultDurationSeconds: cfg.DefaultDurationSeconds,
	})

	orchestrator := services.NewOrchestrator(
		dao.NewSessionDAO(db), service,
		time.Duration(cfg.SweepIntervalSeconds)*time.Second, logger)
	orchestrator.Start()
	defer orchestrator.Stop()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	// CORS middleware for development
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	healthHandler := handlers.NewHealthHandler()
	sessionHandler := handlers.NewSessionHandler(service)
	marketHandler := handlers.NewMarketHandler(service, store, cache, indexer)
	wsHandler := wshandler.NewHandler(hub, logger)

	r.GET("/health", healthHandler.Health)
	wshandler.RegisterWebSocketRoutes(r, wsHandler)

	api := r.Group("/api/v1")
	{
		api.GET("/health", healthHandler.Health)
		handlers.RegisterSessionRoutes(api, sessionHandler)
		handlers.RegisterMarketRoutes(api, marketHandler)
	}

	logger.Infow("server starting", "port", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatalw("server exited", "error", err)
	}
}
