package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cloudscope/armproxy/api/audit"
	"github.com/cloudscope/armproxy/api/cache"
	"github.com/cloudscope/armproxy/api/config"
	"github.com/cloudscope/armproxy/api/controller"
	"github.com/cloudscope/armproxy/api/db"
	logger "github.com/cloudscope/armproxy/api/logging"
	"github.com/cloudscope/armproxy/api/middleware"
	"github.com/cloudscope/armproxy/api/service"
	"github.com/cloudscope/armproxy/api/upstream"
	"github.com/cloudscope/armproxy/api/util"
)

func main() {
	// Initialize configuration
	if err := config.InitConfig(); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	// Initialize logger
	logger.InitLogger(config.GetString("log.dir"))
	defer logger.Sync()

	// Initialize Redis when a rate-limiter backend is configured
	rateLimited := config.GetString("redis.addr") != ""
	if rateLimited {
		if err := db.InitRedis(); err != nil {
			logger.Fatal("Failed to initialize Redis", zap.Error(err))
		}
		defer db.CloseRedis()
	}

	// Initialize EventBus
	eventBus := util.NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eventBus.Start(ctx)

	// Record upstream fetches in Elasticsearch when configured
	if esURL := config.GetString("elasticsearch.url"); esURL != "" {
		auditRepository, err := audit.NewElasticsearchRepository(esURL)
		if err != nil {
			logger.Fatal("Failed to initialize Elasticsearch", zap.Error(err))
		}
		auditService := audit.NewService(auditRepository)
		eventBus.Subscribe(audit.EventUpstreamFetch, func(ctx context.Context, event util.Event) error {
			record, ok := event.Payload.(audit.FetchRecord)
			if !ok {
				return fmt.Errorf("unexpected payload type %T for %s", event.Payload, event.Type)
			}
			return auditService.RecordFetch(ctx, record)
		})
	}

	// Initialize the cache store and start its expiry sweeper
	store := cache.NewStore(
		config.GetDuration("cache.defaultTTL"),
		config.GetDuration("upstream.timeout"),
		cache.TTLTable(config.CacheTTLs()),
	)
	store.StartSweeper(ctx, config.GetDuration("cache.defaultTTL"))

	// Select the upstream backend
	provider, err := buildProvider()
	if err != nil {
		logger.Fatal("Failed to initialize upstream provider", zap.Error(err))
	}

	// Initialize services and utilities
	validationUtil := util.NewValidationUtil()
	services := service.InitializeServices(provider, store, validationUtil, eventBus)

	// Initialize controllers
	azureController := controller.NewAzureController(services.Azure, services.Projection)

	// Set up Gin
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	if rateLimited {
		router.Use(middleware.RateLimiter(config.GetInt("ratelimit.limit"), config.GetDuration("ratelimit.window")))
	}

	// Register routes
	azureController.RegisterRoutes(router)

	// Set up the server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", config.GetString("server.port")),
		Handler: router,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server",
			zap.String("port", config.GetString("server.port")),
			zap.String("backend", config.GetString("upstream.backend")))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}

// buildProvider wires the upstream backend named by upstream.backend:
// "mock" serves fixtures from disk, "live" calls the Azure management
// API.
func buildProvider() (upstream.Provider, error) {
	switch backend := config.GetString("upstream.backend"); backend {
	case "mock":
		return upstream.NewMockProvider(config.GetString("upstream.fixturesDir")), nil
	case "live":
		tokens := upstream.StaticTokenProvider(config.GetString("upstream.token"))
		return upstream.NewLiveProvider(
			config.GetString("upstream.endpoint"),
			tokens,
			upstream.WithRetry(config.GetInt("upstream.retry.maxAttempts"), config.GetDuration("upstream.retry.backoff")),
		), nil
	default:
		return nil, fmt.Errorf("unknown upstream backend %q", backend)
	}
}
