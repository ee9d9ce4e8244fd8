package openai

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

const defaultLLMTimeout = 20 * time.Second

// ChatAPI is the subset of the go-openai client used for chat completions.
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// StructuredClient asks a chat model for JSON conforming to a Go type's schema.
type StructuredClient struct {
	api     ChatAPI
	model   string
	timeout time.Duration
}

// NewStructuredClient creates a structured-output client from settings.
func NewStructuredClient(s Settings, timeout time.Duration) (*StructuredClient, error) {
	p, ok := LookupProvider(s.Provider)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, s.Provider)
	}
	cfg, err := clientConfig(p, s)
	if err != nil {
		return nil, err
	}

	model := s.ChatModel
	if model == "" {
		model = p.DefaultChatModel
	}
	if model == "" {
		return nil, fmt.Errorf("provider %s has no default chat model; set AI_CHAT_MODEL", p.ID)
	}

	return newStructuredClient(openai.NewClientWithConfig(cfg), model, timeout), nil
}

func newStructuredClient(api ChatAPI, model string, timeout time.Duration) *StructuredClient {
	if timeout <= 0 {
		timeout = defaultLLMTimeout
	}
	return &StructuredClient{api: api, model: model, timeout: timeout}
}

// GenerateStructured fills target (a pointer to a struct) from the model's reply.
// Any transport, schema or decoding failure is returned as an error.
func (c *StructuredClient) GenerateStructured(ctx context.Context, systemPrompt, userPrompt, schemaName string, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.New("target must be a non-nil pointer")
	}
	schema, err := jsonschema.GenerateSchemaForType(rv.Elem().Interface())
	if err != nil {
		return fmt.Errorf("failed to build response schema: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   schemaName,
				Schema: schema,
				Strict: true,
			},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return errors.New("chat completion returned no choices")
	}

	content := stripCodeFence(resp.Choices[0].Message.Content)
	if err := jsonschema.VerifySchemaAndUnmarshal(*schema, []byte(content), target); err != nil {
		return fmt.Errorf("model output does not match schema: %w", err)
	}
	return nil
}

// stripCodeFence removes a ```json fence some OpenAI-compatible servers add.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
