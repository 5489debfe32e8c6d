package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/trendwatch/backend/internal/analyze"
	"github.com/trendwatch/backend/internal/api/handlers"
	"github.com/trendwatch/backend/internal/cache/redis"
	"github.com/trendwatch/backend/internal/fetch"
	"github.com/trendwatch/backend/internal/index/sqlite"
	"github.com/trendwatch/backend/internal/llm"
	"github.com/trendwatch/backend/internal/metrics"
	"github.com/trendwatch/backend/internal/middleware/ratelimit"
	"github.com/trendwatch/backend/internal/middleware/security"
	"github.com/trendwatch/backend/internal/pipeline"
	"github.com/trendwatch/backend/internal/query"
	"github.com/trendwatch/backend/internal/scraper"
	"github.com/trendwatch/backend/internal/storage/blob"
	"github.com/trendwatch/backend/pkg/config"
	appLogger "github.com/trendwatch/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting trendwatch API server")

	metrics.Init()

	store, err := blob.NewStore(cfg.Storage.Root)
	if err != nil {
		appLogger.Fatal("Failed to open blob store", zap.Error(err))
	}

	index, err := sqlite.NewClient(cfg.Index.Path)
	if err != nil {
		appLogger.Fatal("Failed to open search index", zap.Error(err))
	}
	defer index.Close()

	if err := index.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize index schema", zap.Error(err))
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.BaseURL,
		cfg.LLM.Model,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
		time.Duration(cfg.LLM.TimeoutSec)*time.Second,
	)

	engine := query.NewEngine(index, llmClient, query.Config{
		ContextTokens:        cfg.Chat.ContextTokens,
		ContextTokensHistory: cfg.Chat.ContextTokensHistory,
		HistoryTokens:        cfg.Chat.HistoryTokens,
		TopK:                 cfg.Chat.TopK,
		RetrievalTimeout:     time.Duration(cfg.Chat.RetrievalTimeoutSec) * time.Second,
		AnswerMaxTokens:      cfg.LLM.MaxTokens,
	})

	var answerCache handlers.AnswerCache
	var cacheFlusher handlers.CacheFlusher
	if cfg.Redis.Enabled {
		cache, err := redis.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLSec)*time.Second,
		)
		if err != nil {
			appLogger.Warn("Redis unavailable, answer caching disabled", zap.Error(err))
		} else {
			defer cache.Close()
			answerCache = cache
			cacheFlusher = cache
		}
	}

	pipe := pipeline.New(
		buildSources(cfg),
		scraper.New(scraper.Config{
			MaxBodyBytes: cfg.Scraper.MaxBodyBytes,
			MaxAttempts:  cfg.Scraper.MaxAttempts,
			InitialDelay: time.Duration(cfg.Scraper.InitialDelaySec) * time.Second,
			Timeout:      time.Duration(cfg.Scraper.TimeoutSec) * time.Second,
		}),
		analyze.NewAnalyzer(
			analyze.NewClient(cfg.Language.Endpoint, cfg.Language.APIKey, time.Duration(cfg.Language.TimeoutSec)*time.Second),
			cfg.Language.BatchSize,
			cfg.Language.MaxDocChars,
		),
		store,
		index,
		pipeline.Config{
			RawContainer:      cfg.Storage.RawContainer,
			AnalyzedContainer: cfg.Storage.AnalyzedContainer,
			MinContentChars:   cfg.Pipeline.MinContentChars,
		},
	)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	limiter := ratelimit.New(ratelimit.Config{})
	defer limiter.Stop()
	app.Use("/api", limiter.Middleware())

	chatHandler := handlers.NewChatHandler(engine, answerCache, cfg.Chat.MaxTurns)
	searchHandler := handlers.NewSearchHandler(index)
	adminHandler := handlers.NewAdminHandler(pipe, cacheFlusher, 0)
	healthHandler := handlers.NewHealthHandler(index)
	wsHandler := handlers.NewWebSocketHandler(engine, cfg.Chat.MaxTurns)

	api := app.Group("/api/v1")
	api.Post("/chat", chatHandler.HandleChat)
	api.Get("/search", searchHandler.HandleSearch)
	api.Post("/admin/pipeline/run", adminHandler.HandlePipelineRun)

	api.Get("/health", healthHandler.HandleHealth)

	app.Get("/metrics", metrics.Handler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/chat", websocket.New(wsHandler.HandleConnection))

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

func buildSources(cfg *config.Config) []fetch.Source {
	timeout := time.Duration(cfg.Fetch.TimeoutSec) * time.Second

	var sources []fetch.Source
	if cfg.Fetch.GuardianAPIKey != "" {
		sources = append(sources, fetch.NewGuardianSource(
			cfg.Fetch.GuardianURL,
			cfg.Fetch.GuardianAPIKey,
			cfg.Fetch.Query,
			timeout,
		))
	}
	for _, feedURL := range cfg.Fetch.RSSFeeds {
		sources = append(sources, fetch.NewRSSSource(feedURL, timeout))
	}
	return sources
}
