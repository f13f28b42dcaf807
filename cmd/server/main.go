package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/joho/godotenv"

	_ "github.com/lib/pq"

	"github.com/matiasvera/talklens/internal/adapter/ai"
	"github.com/matiasvera/talklens/internal/adapter/media"
	"github.com/matiasvera/talklens/internal/adapter/store"
	"github.com/matiasvera/talklens/internal/handler"
	"github.com/matiasvera/talklens/internal/middleware"
	"github.com/matiasvera/talklens/internal/service"
	"github.com/matiasvera/talklens/pkg/config"
)

func main() {
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	cfg := config.Load()

	slog.Info("starting TalkLens",
		"port", cfg.Port,
		"embedding_model", cfg.EmbeddingModel,
		"chat_model", cfg.ChatModel,
	)

	// ── Database ─────────────────────────────────────────────────────────
	pgStore, err := store.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()

	if err := pgStore.EnsureSchema(context.Background(), cfg.EmbeddingDimension); err != nil {
		slog.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	vectorIndex := store.NewVectorIndex(pgStore, cfg.EmbeddingDimension)

	// ── Adapters ─────────────────────────────────────────────────────────
	openaiProvider := ai.NewOpenAIProvider(ai.OpenAIConfig{
		APIKey:         cfg.OpenAIAPIKey,
		BaseURL:        cfg.OpenAIBaseURL,
		EmbeddingModel: cfg.EmbeddingModel,
		Dimension:      cfg.EmbeddingDimension,
		ChatModel:      cfg.ChatModel,
		WhisperModel:   cfg.WhisperModel,
	})
	acquirer := media.NewYtDlpAcquirer(cfg.AudioWorkDir)

	// ── Services ─────────────────────────────────────────────────────────
	chunker := service.NewChunker(service.ChunkConfig{
		TargetSeconds: cfg.ChunkTargetSeconds,
		MaxSeconds:    cfg.ChunkMaxSeconds,
		MinSeconds:    cfg.ChunkMinSeconds,
	})

	ingestService := service.NewIngestService(acquirer, openaiProvider, openaiProvider, pgStore, vectorIndex, chunker,
		service.IngestConfig{
			Workers:           cfg.IngestWorkers,
			RetryAttempts:     cfg.RetryAttempts,
			RetryBaseDelay:    cfg.RetryBaseDelay,
			FreshnessWindow:   cfg.FreshnessWindow,
			AcquireTimeout:    cfg.AcquireTimeout,
			TranscribeTimeout: cfg.TranscribeTimeout,
			EmbedTimeout:      cfg.EmbedTimeout,
		})

	retrievalService := service.NewRetrievalService(openaiProvider, vectorIndex, service.RetrievalConfig{
		TopK:            cfg.TopK,
		CandidateFactor: cfg.CandidateFactor,
		MinSimilarity:   cfg.MinSimilarity,
		MaxPerVideo:     cfg.MaxPerVideo,
		EmbedTimeout:    cfg.EmbedTimeout,
		QueryTimeout:    cfg.QueryTimeout,
	})

	answerService := service.NewAnswerService(openaiProvider, retrievalService, cfg.GenerateTimeout)

	// ── Fiber App ────────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New())

	app.Get("/api/v1/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"app":    cfg.AppName,
		})
	})

	api := app.Group("/api/v1")
	api.Use("/query", middleware.QueryAudit(pgStore))

	jobTracker := handler.NewJobTracker()

	ingestHandler := handler.NewIngestHandler(ingestService, jobTracker)
	ingestHandler.Register(api)

	queryHandler := handler.NewQueryHandler(answerService)
	queryHandler.Register(api)

	catalogHandler := handler.NewCatalogHandler(pgStore)
	catalogHandler.Register(api)

	// ── Start ────────────────────────────────────────────────────────────
	slog.Info("listening", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
