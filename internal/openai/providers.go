package openai

import (
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Provider describes one AI backend reachable through an OpenAI-compatible API.
type Provider struct {
	ID                    string
	SupportsEmbeddings    bool
	Local                 bool // no credential required
	Azure                 bool
	RequiresBaseURL       bool
	DefaultBaseURL        string
	DefaultChatModel      string
	DefaultEmbeddingModel string
}

// Providers is the lookup table of supported backends. Adding a provider is a
// table edit, not a new branch.
var Providers = map[string]Provider{
	"openai": {
		ID:                    "openai",
		SupportsEmbeddings:    true,
		DefaultChatModel:      openai.GPT4oMini,
		DefaultEmbeddingModel: string(openai.SmallEmbedding3),
	},
	"azure": {
		ID:                    "azure",
		SupportsEmbeddings:    true,
		Azure:                 true,
		RequiresBaseURL:       true,
		DefaultChatModel:      openai.GPT4oMini,
		DefaultEmbeddingModel: string(openai.SmallEmbedding3),
	},
	"ollama": {
		ID:                    "ollama",
		SupportsEmbeddings:    true,
		Local:                 true,
		DefaultBaseURL:        "http://localhost:11434/v1",
		DefaultChatModel:      "llama3.1",
		DefaultEmbeddingModel: "nomic-embed-text",
	},
	"deepseek": {
		ID:               "deepseek",
		DefaultBaseURL:   "https://api.deepseek.com/v1",
		DefaultChatModel: "deepseek-chat",
	},
	"custom": {
		ID:                 "custom",
		SupportsEmbeddings: true,
		RequiresBaseURL:    true,
	},
}

// LookupProvider returns the table entry for id.
func LookupProvider(id string) (Provider, bool) {
	p, ok := Providers[strings.ToLower(strings.TrimSpace(id))]
	return p, ok
}

// Settings carries the AI part of the application configuration.
type Settings struct {
	Provider       string
	APIKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
}

// clientConfig builds a go-openai configuration for the provider.
func clientConfig(p Provider, s Settings) (openai.ClientConfig, error) {
	baseURL := s.BaseURL
	if baseURL == "" {
		baseURL = p.DefaultBaseURL
	}
	if p.RequiresBaseURL && baseURL == "" {
		return openai.ClientConfig{}, fmt.Errorf("provider %s requires a base URL", p.ID)
	}

	if p.Azure {
		return openai.DefaultAzureConfig(s.APIKey, baseURL), nil
	}

	cfg := openai.DefaultConfig(s.APIKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return cfg, nil
}
