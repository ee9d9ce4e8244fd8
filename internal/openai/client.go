package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloo-solutions/bookmind/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrUnknownProvider is returned for providers missing from the lookup table
	ErrUnknownProvider = errors.New("unknown AI provider")
)

// EmbeddingAPI defines the interface for embedding generation
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingClient generates query and document embeddings for one provider/model.
type EmbeddingClient struct {
	api      EmbeddingAPI
	provider Provider
	model    string
	apiKey   string
	enabled  bool
}

type OpenAIAdapter struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

func NewOpenAIAdapter(cfg openai.ClientConfig, model string) *OpenAIAdapter {
	return &OpenAIAdapter{
		client: openai.NewClientWithConfig(cfg),
		model:  openai.EmbeddingModel(model),
	}
}

// CreateEmbeddings calls the embeddings endpoint
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, text string) ([]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: a.model,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data returned")
	}

	return resp.Data[0].Embedding, nil
}

// NewEmbeddingClient creates an embedding client from settings. enabled mirrors
// the embedding feature switch; a disabled client still reports its capabilities.
func NewEmbeddingClient(s Settings, enabled bool) (*EmbeddingClient, error) {
	p, ok := LookupProvider(s.Provider)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, s.Provider)
	}

	model := s.EmbeddingModel
	if model == "" {
		model = p.DefaultEmbeddingModel
	}

	c := &EmbeddingClient{
		provider: p,
		model:    model,
		apiKey:   s.APIKey,
		enabled:  enabled,
	}
	if p.SupportsEmbeddings {
		cfg, err := clientConfig(p, s)
		if err != nil {
			return nil, err
		}
		c.api = NewOpenAIAdapter(cfg, model)
	}
	return c, nil
}

// Embed generates an embedding for the given text
func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if c.api == nil {
		return nil, domain.ErrSemanticUnavailable
	}

	embedding, err := c.api.CreateEmbeddings(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	if len(embedding) == 0 {
		return nil, errors.New("embedding provider returned an empty vector")
	}

	return embedding, nil
}

// ModelKey identifies vectors produced by this client.
func (c *EmbeddingClient) ModelKey() string {
	return domain.ModelKey(c.provider.ID, c.model)
}

func (c *EmbeddingClient) IsEnabled() bool {
	return c.enabled
}

func (c *EmbeddingClient) IsProviderSupported() bool {
	return c.provider.SupportsEmbeddings
}

func (c *EmbeddingClient) HasCredential() bool {
	return c.apiKey != ""
}

func (c *EmbeddingClient) IsLocal() bool {
	return c.provider.Local
}
