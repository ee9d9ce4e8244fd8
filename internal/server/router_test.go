package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/bookmind/internal/api/handlers"
	"github.com/cloo-solutions/bookmind/internal/domain"
	"github.com/cloo-solutions/bookmind/internal/logging"
	"github.com/cloo-solutions/bookmind/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore is an in-memory BookmarkStore.
type memoryStore struct {
	bookmarks []*domain.Bookmark
}

func (s *memoryStore) GetBookmarks(_ context.Context, filter service.BookmarkFilter) ([]*domain.Bookmark, error) {
	want := make(map[string]bool, len(filter.IDs))
	for _, id := range filter.IDs {
		want[id] = true
	}
	var out []*domain.Bookmark
	for _, b := range s.bookmarks {
		if len(want) > 0 && !want[b.ID] {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *memoryStore) GetCategories(context.Context) ([]*domain.Category, error) {
	return []*domain.Category{}, nil
}

func (s *memoryStore) GetAllTags(context.Context) ([]string, error) {
	return []string{"react", "go"}, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	now := time.Now()
	store := &memoryStore{bookmarks: []*domain.Bookmark{
		domain.NewBookmark("b1", "https://react.dev/learn", "React Tutorial", "Learn React step by step", []string{"react"}, "", now.Add(-48*time.Hour)),
		domain.NewBookmark("b2", "https://go.dev/doc/effective_go", "Effective Go", "", []string{"go"}, "", now.Add(-72*time.Hour)),
	}}

	planner, err := service.NewQueryPlanner("en", nil, nil)
	require.NoError(t, err)
	semantic := service.NewSemanticRetriever(nil, nil, nil)
	hybrid := service.NewHybridRetriever(store, nil, service.NewKeywordRetriever(store), semantic, service.DefaultWeights(), nil)
	agent := service.NewChatSearchAgent(store, planner, hybrid, nil, "en", nil)

	return NewRouter(RouterConfig{
		Logger:        logging.Discard(),
		ChatHandler:   handlers.NewChatHandler(agent),
		SearchHandler: handlers.NewSearchHandler(hybrid, semantic, store),
	})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Health(t *testing.T) {
	rec := do(t, newTestRouter(t), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"status":"ok"}}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRouter_RequestIDEchoed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
}

func TestRouter_ChatRoundTrip(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/chat", `{"input":"react tutorials"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var first struct {
		Data handlers.ChatResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&first))
	require.NotEmpty(t, first.Data.Bookmarks)
	assert.Equal(t, "b1", first.Data.Bookmarks[0].ID)
	assert.NotEmpty(t, first.Data.Response)
	assert.Contains(t, first.Data.State.SeenBookmarkIDs, "b1")

	payload, err := json.Marshal(handlers.ContinueRequest{State: &first.Data.State})
	require.NoError(t, err)
	rec = do(t, router, http.MethodPost, "/chat/continue", string(payload))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var second struct {
		Data handlers.ChatResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&second))
	for _, b := range second.Data.Bookmarks {
		assert.NotEqual(t, "b1", b.ID)
	}
}

func TestRouter_Search(t *testing.T) {
	rec := do(t, newTestRouter(t), http.MethodPost, "/search", `{"query":"effective go"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Data handlers.SearchResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.NotEmpty(t, body.Data.Bookmarks)
	assert.Equal(t, "b2", body.Data.Bookmarks[0].ID)
	assert.True(t, body.Data.UsedKeyword)
	assert.False(t, body.Data.UsedSemantic)
}

func TestRouter_SemanticOnlyUnavailable(t *testing.T) {
	rec := do(t, newTestRouter(t), http.MethodPost, "/search", `{"query":"go","semantic_only":true}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouter_SimilarUnknownBookmark(t *testing.T) {
	rec := do(t, newTestRouter(t), http.MethodGet, "/bookmarks/missing/similar", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_Diagnostics(t *testing.T) {
	rec := do(t, newTestRouter(t), http.MethodGet, "/diagnostics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"total_bookmarks":2,"embedded_bookmarks":0,"coverage":0,"model_key":"","semantic_available":false}}`, rec.Body.String())
}

func TestRouter_BodyTooLarge(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"input":"`+strings.Repeat("a", 2<<20)+`"}`))
	rec := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRouter_UnknownRoute(t *testing.T) {
	rec := do(t, newTestRouter(t), http.MethodGet, "/knowledge", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
