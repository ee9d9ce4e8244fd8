package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cloo-solutions/bookmind/internal/api/handlers"
	"github.com/cloo-solutions/bookmind/internal/service"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIClientWithCmd creates an APIClient honouring the --api-url flag.
func NewAPIClientWithCmd(cmd *cobra.Command) (*APIClient, error) {
	_ = godotenv.Load()

	var flagURL string
	if cmd != nil {
		flagURL, _ = cmd.Flags().GetString("api-url")
	}
	baseURL, err := ResolveAPIURL(flagURL)
	if err != nil {
		return nil, err
	}
	return NewAPIClientWithConfig(baseURL), nil
}

func NewAPIClientWithConfig(baseURL string) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			// chat turns may wait on the language model twice
			Timeout: 90 * time.Second,
		},
	}
}

// APIResponse represents the standard API response format.
type APIResponse struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
	Code  string          `json:"code,omitempty"`
}

// APIError represents an error from the API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// Get performs a GET request.
func (c *APIClient) Get(path string) (*APIResponse, error) {
	return c.do(http.MethodGet, path, nil)
}

// Post performs a POST request with JSON body.
func (c *APIClient) Post(path string, body interface{}) (*APIResponse, error) {
	return c.do(http.MethodPost, path, body)
}

func (c *APIClient) do(method, path string, body interface{}) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
		}
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{StatusCode: resp.StatusCode, Code: apiResp.Code, Message: apiResp.Error}
	}

	return &apiResp, nil
}

func decodeData[T any](resp *APIResponse, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response data: %w", err)
	}
	return &out, nil
}

func (c *APIClient) Chat(input string, state service.ConversationState) (*handlers.ChatResponse, error) {
	return decodeData[handlers.ChatResponse](c.Post("/chat", handlers.ChatRequest{Input: input, State: &state}))
}

func (c *APIClient) Continue(state service.ConversationState) (*handlers.ChatResponse, error) {
	return decodeData[handlers.ChatResponse](c.Post("/chat/continue", handlers.ContinueRequest{State: &state}))
}

func (c *APIClient) Filter(filters service.SearchFilters, state service.ConversationState) (*handlers.ChatResponse, error) {
	return decodeData[handlers.ChatResponse](c.Post("/chat/filter", handlers.FilterRequest{Filters: filters, State: &state}))
}

func (c *APIClient) Search(req handlers.SearchRequest) (*handlers.SearchResponse, error) {
	return decodeData[handlers.SearchResponse](c.Post("/search", req))
}

func (c *APIClient) Similar(id string, limit int) (*handlers.SimilarResponse, error) {
	path := "/bookmarks/" + url.PathEscape(id) + "/similar"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	return decodeData[handlers.SimilarResponse](c.Get(path))
}

func (c *APIClient) Diagnostics() (*service.EmbeddingCoverage, error) {
	return decodeData[service.EmbeddingCoverage](c.Get("/diagnostics"))
}
