package service

import (
	"context"

	"github.com/cloo-solutions/bookmind/internal/domain"
)

// Intent is the high-level purpose of a user utterance.
type Intent string

const (
	IntentQuery      Intent = "query"
	IntentStatistics Intent = "statistics"
	IntentHelp       Intent = "help"
)

// QuerySubtype classifies a query intent by which filter dimensions are active.
type QuerySubtype string

const (
	SubtypeTime     QuerySubtype = "time"
	SubtypeCategory QuerySubtype = "category"
	SubtypeTag      QuerySubtype = "tag"
	SubtypeSemantic QuerySubtype = "semantic"
	SubtypeCompound QuerySubtype = "compound"
)

const (
	DefaultTopK = 10
	MaxTopK     = 50

	// candidateMultiplier widens each sub-retriever's request so the merge
	// has room to re-rank.
	candidateMultiplier = 2
	MaxCandidates       = MaxTopK * candidateMultiplier
)

// ClampTopK bounds k to [1, MaxTopK], using DefaultTopK for non-positive values.
func ClampTopK(k int) int {
	if k <= 0 {
		return DefaultTopK
	}
	if k > MaxTopK {
		return MaxTopK
	}
	return k
}

// clampCandidates bounds a sub-retriever's candidate count to
// [1, MaxCandidates], using DefaultTopK for non-positive values.
func clampCandidates(k int) int {
	if k <= 0 {
		return DefaultTopK
	}
	if k > MaxCandidates {
		return MaxCandidates
	}
	return k
}

// SearchRequest is the structured form of a user utterance.
type SearchRequest struct {
	Intent       Intent        `json:"intent"`
	Subtype      QuerySubtype  `json:"subtype,omitempty"`
	Query        string        `json:"query"`
	RefinedQuery string        `json:"refined_query"`
	Filters      SearchFilters `json:"filters"`
	TopK         int           `json:"top_k"`

	// Continue and Refine mark follow-up cues; they only matter when the
	// request names no topic of its own.
	Continue bool        `json:"continue,omitempty"`
	Refine   bool        `json:"refine,omitempty"`
	Reset    FilterReset `json:"reset"`
}

// SearchResultItem is one ranked bookmark.
type SearchResultItem struct {
	BookmarkID    string  `json:"bookmark_id"`
	Score         float64 `json:"score"`
	KeywordScore  float64 `json:"keyword_score"`
	SemanticScore float64 `json:"semantic_score"`
	MatchReason   string  `json:"match_reason"`
}

// SearchResult is the merged, ranked output of the hybrid retriever.
type SearchResult struct {
	Items        []SearchResultItem `json:"items"`
	Total        int                `json:"total"`
	UsedKeyword  bool               `json:"used_keyword"`
	UsedSemantic bool               `json:"used_semantic"`
}

// IDs returns the bookmark ids in rank order.
func (r *SearchResult) IDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, len(r.Items))
	for i, item := range r.Items {
		ids[i] = item.BookmarkID
	}
	return ids
}

// ScoredBookmark is a single-source retriever hit.
type ScoredBookmark struct {
	BookmarkID string  `json:"bookmark_id"`
	Score      float64 `json:"score"`
}

// BookmarkFilter narrows a bookmark store read.
type BookmarkFilter struct {
	IDs            []string
	CategoryID     string
	IncludeDeleted bool
}

// BookmarkReader loads bookmarks matching a filter.
type BookmarkReader interface {
	GetBookmarks(ctx context.Context, filter BookmarkFilter) ([]*domain.Bookmark, error)
}

// BookmarkStore provides read access to the bookmark collection
type BookmarkStore interface {
	BookmarkReader
	GetCategories(ctx context.Context) ([]*domain.Category, error)
	GetAllTags(ctx context.Context) ([]string, error)
}

// VectorStore provides read access to stored embeddings.
// GetEmbedding returns nil, nil when the bookmark has no vector for modelKey.
type VectorStore interface {
	GetEmbeddingsByModel(ctx context.Context, modelKey string) ([]*domain.Embedding, error)
	GetEmbedding(ctx context.Context, bookmarkID, modelKey string) (*domain.Embedding, error)
}

// EmbeddingProvider turns text into vectors and reports its configuration.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	ModelKey() string
	IsEnabled() bool
	IsProviderSupported() bool
	HasCredential() bool
	IsLocal() bool
}

// StructuredLLM fills target (a pointer to a struct) from a model reply
// conforming to target's JSON schema.
type StructuredLLM interface {
	GenerateStructured(ctx context.Context, systemPrompt, userPrompt, schemaName string, target any) error
}
