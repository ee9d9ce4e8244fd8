package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cloo-solutions/bookmind/internal/domain"
	"github.com/cloo-solutions/bookmind/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type searchEnvelope struct {
	Data  SearchResponse `json:"data"`
	Error string         `json:"error"`
}

type similarEnvelope struct {
	Data  SimilarResponse `json:"data"`
	Error string          `json:"error"`
}

func testBookmark(id, title string) *domain.Bookmark {
	return domain.NewBookmark(id, "https://example.com/"+id, title, "", nil, "", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestSearchHandler_Search(t *testing.T) {
	result := &service.SearchResult{
		Items: []service.SearchResultItem{
			{BookmarkID: "b2", Score: 0.9, MatchReason: "keyword"},
			{BookmarkID: "b1", Score: 0.4, MatchReason: "semantic"},
		},
		Total:        2,
		UsedKeyword:  true,
		UsedSemantic: true,
	}

	t.Run("hybrid keeps rank order", func(t *testing.T) {
		search := new(MockSearchService)
		search.On("Search", mock.Anything, "kafka", service.HybridSearchOptions{TopK: 5, Filters: service.SearchFilters{Domain: "kafka.apache.org"}}).Return(result, nil)
		reader := new(MockBookmarkReader)
		reader.On("GetBookmarks", mock.Anything, service.BookmarkFilter{IDs: []string{"b2", "b1"}}).
			Return([]*domain.Bookmark{testBookmark("b1", "Kafka intro"), testBookmark("b2", "Kafka consumers")}, nil)

		h := NewSearchHandler(search, new(MockSimilarService), reader)
		rec := postJSON(t, h.Search, `{"query":" kafka ","top_k":5,"filters":{"domain":"kafka.apache.org"}}`)

		require.Equal(t, http.StatusOK, rec.Code)
		var body searchEnvelope
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		require.NotNil(t, body.Data.SearchResult)
		assert.Equal(t, 2, body.Data.Total)
		assert.True(t, body.Data.UsedSemantic)
		require.Len(t, body.Data.Bookmarks, 2)
		assert.Equal(t, "b2", body.Data.Bookmarks[0].ID)
		assert.Equal(t, []string{}, body.Data.Bookmarks[0].Tags)
	})

	t.Run("keyword only", func(t *testing.T) {
		search := new(MockSearchService)
		search.On("SearchKeywordOnly", mock.Anything, "go", mock.Anything).Return(&service.SearchResult{Items: []service.SearchResultItem{}}, nil)

		h := NewSearchHandler(search, new(MockSimilarService), new(MockBookmarkReader))
		rec := postJSON(t, h.Search, `{"query":"go","keyword_only":true}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		search.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("semantic only without provider", func(t *testing.T) {
		similar := new(MockSimilarService)
		similar.On("IsAvailable").Return(false)

		h := NewSearchHandler(new(MockSearchService), similar, new(MockBookmarkReader))
		rec := postJSON(t, h.Search, `{"query":"go","semantic_only":true}`)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("conflicting modes", func(t *testing.T) {
		h := NewSearchHandler(new(MockSearchService), new(MockSimilarService), new(MockBookmarkReader))
		rec := postJSON(t, h.Search, `{"query":"go","semantic_only":true,"keyword_only":true}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("top_k out of range", func(t *testing.T) {
		h := NewSearchHandler(new(MockSearchService), new(MockSimilarService), new(MockBookmarkReader))
		rec := postJSON(t, h.Search, `{"query":"go","top_k":500}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("retriever failure", func(t *testing.T) {
		search := new(MockSearchService)
		search.On("Search", mock.Anything, "go", mock.Anything).Return(nil, errors.New("keyword search failed"))

		h := NewSearchHandler(search, new(MockSimilarService), new(MockBookmarkReader))
		rec := postJSON(t, h.Search, `{"query":"go"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("bookmark load failure", func(t *testing.T) {
		search := new(MockSearchService)
		search.On("Search", mock.Anything, "kafka", mock.Anything).Return(result, nil)
		reader := new(MockBookmarkReader)
		reader.On("GetBookmarks", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

		h := NewSearchHandler(search, new(MockSimilarService), reader)
		rec := postJSON(t, h.Search, `{"query":"kafka"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestSearchHandler_Similar(t *testing.T) {
	t.Run("returns neighbours", func(t *testing.T) {
		reader := new(MockBookmarkReader)
		reader.On("GetBookmarks", mock.Anything, service.BookmarkFilter{IDs: []string{"b1"}}).Return([]*domain.Bookmark{testBookmark("b1", "Go memory model")}, nil)
		reader.On("GetBookmarks", mock.Anything, service.BookmarkFilter{IDs: []string{"b3", "b9"}}).Return([]*domain.Bookmark{testBookmark("b3", "Go scheduler")}, nil)
		similar := new(MockSimilarService)
		similar.On("FindSimilar", mock.Anything, "b1", service.SemanticSearchOptions{TopK: 3}).Return(&service.SemanticSearchResult{
			Items: []service.ScoredBookmark{{BookmarkID: "b3", Score: 0.82}, {BookmarkID: "b9", Score: 0.6}},
		}, nil)

		h := NewSearchHandler(new(MockSearchService), similar, reader)
		req := withURLParam(httptest.NewRequest(http.MethodGet, "/bookmarks/b1/similar?limit=3", nil), "id", "b1")
		rec := httptest.NewRecorder()
		h.Similar(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var body similarEnvelope
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "b1", body.Data.BookmarkID)
		// b9 vanished between ranking and resolution
		require.Len(t, body.Data.Items, 1)
		assert.Equal(t, "b3", body.Data.Items[0].Bookmark.ID)
		assert.InDelta(t, 0.82, body.Data.Items[0].Score, 1e-9)
	})

	t.Run("no embedding yields empty list", func(t *testing.T) {
		reader := new(MockBookmarkReader)
		reader.On("GetBookmarks", mock.Anything, service.BookmarkFilter{IDs: []string{"b1"}}).Return([]*domain.Bookmark{testBookmark("b1", "x")}, nil)
		similar := new(MockSimilarService)
		similar.On("FindSimilar", mock.Anything, "b1", service.SemanticSearchOptions{TopK: defaultSimilarLimit}).Return(&service.SemanticSearchResult{Items: []service.ScoredBookmark{}}, nil)

		h := NewSearchHandler(new(MockSearchService), similar, reader)
		req := withURLParam(httptest.NewRequest(http.MethodGet, "/bookmarks/b1/similar", nil), "id", "b1")
		rec := httptest.NewRecorder()
		h.Similar(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"data":{"bookmark_id":"b1","items":[]}}`, rec.Body.String())
	})

	t.Run("unknown bookmark", func(t *testing.T) {
		reader := new(MockBookmarkReader)
		reader.On("GetBookmarks", mock.Anything, mock.Anything).Return([]*domain.Bookmark{}, nil)

		h := NewSearchHandler(new(MockSearchService), new(MockSimilarService), reader)
		req := withURLParam(httptest.NewRequest(http.MethodGet, "/bookmarks/nope/similar", nil), "id", "nope")
		rec := httptest.NewRecorder()
		h.Similar(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid limit", func(t *testing.T) {
		h := NewSearchHandler(new(MockSearchService), new(MockSimilarService), new(MockBookmarkReader))
		req := withURLParam(httptest.NewRequest(http.MethodGet, "/bookmarks/b1/similar?limit=abc", nil), "id", "b1")
		rec := httptest.NewRecorder()
		h.Similar(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSearchHandler_Diagnostics(t *testing.T) {
	search := new(MockSearchService)
	search.On("Diagnostics", mock.Anything).Return(&service.EmbeddingCoverage{
		TotalBookmarks:    4,
		EmbeddedBookmarks: 3,
		Coverage:          0.75,
		ModelKey:          "openai:text-embedding-3-small",
		SemanticAvailable: true,
	}, nil)

	h := NewSearchHandler(search, new(MockSimilarService), new(MockBookmarkReader))
	rec := httptest.NewRecorder()
	h.Diagnostics(rec, httptest.NewRequest(http.MethodGet, "/diagnostics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"total_bookmarks":4,"embedded_bookmarks":3,"coverage":0.75,"model_key":"openai:text-embedding-3-small","semantic_available":true}}`, rec.Body.String())
}
