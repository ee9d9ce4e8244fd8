package config

import (
	"fmt"
	"log"
	"time"

	"github.com/cloo-solutions/bookmind/internal/openai"
	"github.com/cloo-solutions/bookmind/internal/service"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port      string `envconfig:"PORT" default:"8080"`
	Debug     bool   `envconfig:"DEBUG" default:"false"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// AI provider; empty disables both the LLM and embeddings.
	AIProvider  string        `envconfig:"AI_PROVIDER"`
	AIAPIKey    string        `envconfig:"AI_API_KEY"`
	AIBaseURL   string        `envconfig:"AI_BASE_URL"`
	AIChatModel string        `envconfig:"AI_CHAT_MODEL"`
	LLMTimeout  time.Duration `envconfig:"LLM_TIMEOUT" default:"20s"`

	EmbeddingEnabled  bool          `envconfig:"EMBEDDING_ENABLED" default:"true"`
	EmbeddingModel    string        `envconfig:"EMBEDDING_MODEL"`
	EmbedPollInterval time.Duration `envconfig:"EMBED_POLL_INTERVAL" default:"10s"`

	// Display language, selects prompt and phrase-pattern variants.
	Language string `envconfig:"LANGUAGE" default:"en"`

	KeywordWeight  float64 `envconfig:"KEYWORD_WEIGHT" default:"0.4"`
	SemanticWeight float64 `envconfig:"SEMANTIC_WEIGHT" default:"0.6"`
	TimeDecay      float64 `envconfig:"TIME_DECAY" default:"0.001"`
	FilterBoost    float64 `envconfig:"FILTER_BOOST" default:"0.1"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("BOOKMIND", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if cfg.Language != "zh" && cfg.Language != "en" {
		return nil, fmt.Errorf("unsupported LANGUAGE %q (expected zh or en)", cfg.Language)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasAI() bool {
	return c.AIProvider != ""
}

func (c *Config) HasSentry() bool {
	return c.SentryDSN != ""
}

// Settings returns the AI provider part of the configuration.
func (c *Config) Settings() openai.Settings {
	return openai.Settings{
		Provider:       c.AIProvider,
		APIKey:         c.AIAPIKey,
		BaseURL:        c.AIBaseURL,
		ChatModel:      c.AIChatModel,
		EmbeddingModel: c.EmbeddingModel,
	}
}

// Weights returns the hybrid ranking weights.
func (c *Config) Weights() service.Weights {
	return service.Weights{
		Keyword:     c.KeywordWeight,
		Semantic:    c.SemanticWeight,
		TimeDecay:   c.TimeDecay,
		FilterBoost: c.FilterBoost,
	}
}
