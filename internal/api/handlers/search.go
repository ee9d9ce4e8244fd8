package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/cloo-solutions/bookmind/internal/api"
	"github.com/cloo-solutions/bookmind/internal/domain"
	"github.com/cloo-solutions/bookmind/internal/service"
	"github.com/cloo-solutions/bookmind/internal/telemetry"
	"github.com/go-chi/chi/v5"
)

const defaultSimilarLimit = 5

type SearchService interface {
	Search(ctx context.Context, query string, opts service.HybridSearchOptions) (*service.SearchResult, error)
	SearchKeywordOnly(ctx context.Context, query string, opts service.HybridSearchOptions) (*service.SearchResult, error)
	SearchSemanticOnly(ctx context.Context, query string, opts service.HybridSearchOptions) (*service.SearchResult, error)
	Diagnostics(ctx context.Context) (*service.EmbeddingCoverage, error)
}

type SimilarService interface {
	IsAvailable() bool
	FindSimilar(ctx context.Context, bookmarkID string, opts service.SemanticSearchOptions) (*service.SemanticSearchResult, error)
}

// BookmarkReader resolves ranked ids into bookmarks.
type BookmarkReader interface {
	GetBookmarks(ctx context.Context, filter service.BookmarkFilter) ([]*domain.Bookmark, error)
}

type SearchHandler struct {
	search    SearchService
	similar   SimilarService
	bookmarks BookmarkReader
}

func NewSearchHandler(search SearchService, similar SimilarService, bookmarks BookmarkReader) *SearchHandler {
	return &SearchHandler{search: search, similar: similar, bookmarks: bookmarks}
}

type SearchRequest struct {
	Query        string                `json:"query"`
	TopK         int                   `json:"top_k"`
	Filters      service.SearchFilters `json:"filters"`
	ExcludeIDs   []string              `json:"exclude_ids,omitempty"`
	KeywordOnly  bool                  `json:"keyword_only"`
	SemanticOnly bool                  `json:"semantic_only"`
}

type SearchResponse struct {
	*service.SearchResult
	Bookmarks []*BookmarkResponse `json:"bookmarks"`
}

type SimilarItem struct {
	Bookmark *BookmarkResponse `json:"bookmark"`
	Score    float64           `json:"score"`
}

type SimilarResponse struct {
	BookmarkID string        `json:"bookmark_id"`
	Items      []SimilarItem `json:"items"`
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.KeywordOnly && req.SemanticOnly {
		api.Error(w, http.StatusBadRequest, "keyword_only and semantic_only are mutually exclusive")
		return
	}
	if req.TopK < 0 || req.TopK > service.MaxTopK {
		api.Error(w, http.StatusBadRequest, "top_k must be between 1 and "+strconv.Itoa(service.MaxTopK))
		return
	}

	opts := service.HybridSearchOptions{
		TopK:       req.TopK,
		Filters:    req.Filters,
		ExcludeIDs: req.ExcludeIDs,
	}
	query := strings.TrimSpace(req.Query)

	var (
		result *service.SearchResult
		err    error
	)
	switch {
	case req.KeywordOnly:
		result, err = h.search.SearchKeywordOnly(r.Context(), query, opts)
	case req.SemanticOnly:
		if !h.similar.IsAvailable() {
			api.HandleError(w, domain.ErrSemanticUnavailable)
			return
		}
		result, err = h.search.SearchSemanticOnly(r.Context(), query, opts)
	default:
		result, err = h.search.Search(r.Context(), query, opts)
	}
	if err != nil {
		telemetry.CaptureError(r.Context(), err)
		api.HandleError(w, err)
		return
	}

	bookmarks, err := service.ResolveInOrder(r.Context(), h.bookmarks, result.IDs())
	if err != nil {
		telemetry.CaptureError(r.Context(), err)
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, SearchResponse{SearchResult: result, Bookmarks: bookmarksToResponse(bookmarks)})
}

func (h *SearchHandler) Similar(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "bookmark id is required")
		return
	}

	limit := defaultSimilarLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > service.MaxTopK {
			api.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	target, err := service.ResolveInOrder(r.Context(), h.bookmarks, []string{id})
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if len(target) == 0 {
		api.HandleError(w, domain.ErrBookmarkNotFound)
		return
	}

	result, err := h.similar.FindSimilar(r.Context(), id, service.SemanticSearchOptions{TopK: limit})
	if err != nil {
		telemetry.CaptureError(r.Context(), err)
		api.HandleError(w, err)
		return
	}

	ids := make([]string, len(result.Items))
	for i, item := range result.Items {
		ids[i] = item.BookmarkID
	}
	bookmarks, err := service.ResolveInOrder(r.Context(), h.bookmarks, ids)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	byID := make(map[string]*domain.Bookmark, len(bookmarks))
	for _, b := range bookmarks {
		byID[b.ID] = b
	}

	resp := SimilarResponse{BookmarkID: id, Items: []SimilarItem{}}
	for _, item := range result.Items {
		if b, ok := byID[item.BookmarkID]; ok {
			resp.Items = append(resp.Items, SimilarItem{Bookmark: bookmarkToResponse(b), Score: item.Score})
		}
	}

	api.Success(w, http.StatusOK, resp)
}

func (h *SearchHandler) Diagnostics(w http.ResponseWriter, r *http.Request) {
	cov, err := h.search.Diagnostics(r.Context())
	if err != nil {
		telemetry.CaptureError(r.Context(), err)
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, cov)
}
