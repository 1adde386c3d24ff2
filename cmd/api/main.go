package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlog "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/supportgenie/backend/internal/analytics"
	"github.com/supportgenie/backend/internal/api/handlers"
	"github.com/supportgenie/backend/internal/cache/redis"
	"github.com/supportgenie/backend/internal/chat"
	"github.com/supportgenie/backend/internal/knowledge"
	"github.com/supportgenie/backend/internal/llm"
	"github.com/supportgenie/backend/internal/metrics"
	"github.com/supportgenie/backend/internal/middleware/ratelimit"
	"github.com/supportgenie/backend/internal/middleware/security"
	"github.com/supportgenie/backend/internal/middleware/validation"
	"github.com/supportgenie/backend/internal/storage/sqlite"
	"github.com/supportgenie/backend/pkg/config"
	appLogger "github.com/supportgenie/backend/pkg/logger"
	"github.com/supportgenie/backend/pkg/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting SupportGenie API Server")

	metrics.Init()

	retryCfg := retry.DefaultConfig()
	retryCfg.Logger = appLogger.GetLogger()

	var store *sqlite.Client
	err = retry.Do(context.Background(), retryCfg, func() error {
		var openErr error
		store, openErr = sqlite.NewClient(cfg.SQLite.Path)
		if openErr != nil {
			return openErr
		}
		return store.Ping()
	})
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer store.Close()

	err = store.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var snapshotCache *redis.Client
	if cfg.Redis.Enabled {
		err = retry.Do(context.Background(), retryCfg, func() error {
			var connectErr error
			snapshotCache, connectErr = redis.NewClient(
				cfg.Redis.Host,
				cfg.Redis.Port,
				cfg.Redis.Password,
				cfg.Redis.DB,
				time.Duration(cfg.Analytics.CacheTTLSec)*time.Second,
			)
			return connectErr
		})
		if err != nil {
			appLogger.Warn("Redis unavailable, analytics cache disabled", zap.Error(err))
			snapshotCache = nil
		} else {
			defer snapshotCache.Close()
		}
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
		cfg.LLM.TimeoutSec,
	)

	knowledgeService := knowledge.NewService(store, cfg.Knowledge)
	orchestrator := chat.NewOrchestrator(store, llmClient, knowledgeService, cfg.Chat)
	aggregator := analytics.NewAggregator(store, snapshotCache, cfg.Analytics)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlog.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORS.Origins,
		AllowHeaders: "Origin, Content-Type, Accept, X-Session-ID",
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: splitOrigins(cfg.CORS.Origins),
	}))
	app.Use(validation.Middleware(validation.Config{
		MaxMessageChars: cfg.Chat.MaxMessageChars,
		Logger:          appLogger.GetLogger(),
	}))

	rateLimiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.RateLimit.MaxRequestsPerMinute,
		Logger:               appLogger.GetLogger(),
	})
	defer rateLimiter.Stop()

	chatHandler := handlers.NewChatHandler(orchestrator)
	knowledgeHandler := handlers.NewKnowledgeHandler(knowledgeService, cfg.Knowledge)
	analyticsHandler := handlers.NewAnalyticsHandler(aggregator)
	wsHandler := handlers.NewWebSocketHandler(orchestrator)

	api := app.Group("/api")

	api.Post("/chat", rateLimiter.Middleware(), chatHandler.HandleChat)
	api.Get("/chat/:session_id", chatHandler.GetChatHistory)

	api.Get("/knowledge-base", knowledgeHandler.ListItems)
	api.Post("/knowledge-base/upload", knowledgeHandler.UploadItem)
	api.Delete("/knowledge-base/:id", knowledgeHandler.DeleteItem)

	api.Get("/analytics", analyticsHandler.GetAnalytics)

	api.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/ws/chat", websocket.New(wsHandler.HandleConnection))

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}

func splitOrigins(origins string) []string {
	if origins == "" || origins == "*" {
		return nil
	}

	parts := strings.Split(origins, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
