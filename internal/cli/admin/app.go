package admin

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/bookmind/internal/config"
	"github.com/cloo-solutions/bookmind/internal/database"
	"github.com/cloo-solutions/bookmind/internal/logging"
	"github.com/cloo-solutions/bookmind/internal/openai"
	"github.com/cloo-solutions/bookmind/internal/repository"
	"github.com/cloo-solutions/bookmind/internal/service"
	"github.com/cloo-solutions/bookmind/internal/telemetry"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// app holds the dependencies shared by the admin commands.
type app struct {
	cfg    *config.Config
	logger *logrus.Logger

	pool       *pgxpool.Pool
	bookmarks  *repository.BookmarkRepository
	embeddings *repository.EmbeddingRepository
	jobs       *repository.EmbeddingJobRepository

	// provider and llm stay nil when no AI provider is configured
	provider service.EmbeddingProvider
	llm      service.StructuredLLM

	closers []func()
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logLevel := cfg.LogLevel
	if cfg.Debug {
		logLevel = "debug"
	}
	a := &app{cfg: cfg, logger: logging.New(logLevel, cfg.LogFormat)}

	if cfg.HasSentry() {
		sampleRate := 0.1
		if cfg.Environment == "development" {
			sampleRate = 1.0
		}
		shutdown, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		}, a.logger)
		if err != nil {
			a.logger.WithError(err).Warn("Telemetry init failed, continuing without tracing")
		} else {
			a.closers = append(a.closers, shutdown)
		}
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, pool.Close)
	a.pool = pool
	a.logger.Info("Connected to database")

	a.bookmarks = repository.NewBookmarkRepository(pool)
	a.embeddings = repository.NewEmbeddingRepository(pool)
	a.jobs = repository.NewEmbeddingJobRepository(pool)

	if err := a.initAI(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) initAI() error {
	if !a.cfg.HasAI() {
		a.logger.Info("No AI provider configured, running keyword-only with rule-based planning")
		return nil
	}

	settings := a.cfg.Settings()
	embedder, err := openai.NewEmbeddingClient(settings, a.cfg.EmbeddingEnabled)
	if err != nil {
		return fmt.Errorf("failed to create embedding client: %w", err)
	}
	a.provider = embedder

	llm, err := openai.NewStructuredClient(settings, a.cfg.LLMTimeout)
	if err != nil {
		// the chat model is optional; planning and answering fall back to rules
		a.logger.WithError(err).Warn("Language model unavailable")
	} else {
		a.llm = llm
	}

	a.logger.WithFields(logrus.Fields{
		"provider":   settings.Provider,
		"model_key":  embedder.ModelKey(),
		"embeddings": embedder.IsEnabled() && embedder.IsProviderSupported(),
		"llm":        a.llm != nil,
	}).Info("AI provider configured")
	return nil
}

// retrieval wires the search core over the repositories.
func (a *app) retrieval() (*service.ChatSearchAgent, *service.HybridRetriever, *service.SemanticRetriever, error) {
	planner, err := service.NewQueryPlanner(a.cfg.Language, a.llm, a.logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to build query planner: %w", err)
	}
	semantic := service.NewSemanticRetriever(a.embeddings, a.provider, a.logger)
	keyword := service.NewKeywordRetriever(a.bookmarks)
	hybrid := service.NewHybridRetriever(a.bookmarks, a.embeddings, keyword, semantic, a.cfg.Weights(), a.logger)
	agent := service.NewChatSearchAgent(a.bookmarks, planner, hybrid, a.llm, a.cfg.Language, a.logger)
	return agent, hybrid, semantic, nil
}

func (a *app) embeddingService() *service.EmbeddingService {
	return service.NewEmbeddingService(a.bookmarks, a.embeddings, a.provider, a.logger)
}

// Close releases resources in reverse acquisition order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
