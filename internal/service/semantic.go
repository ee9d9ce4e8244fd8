package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/cloo-solutions/bookmind/internal/logging"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
)

const (
	DefaultSearchMinScore  = 0.3
	DefaultSimilarMinScore = 0.5

	queryCacheSize = 256
)

// SemanticSearchOptions configures a vector search. A zero MinScore selects
// the operation's default threshold.
type SemanticSearchOptions struct {
	TopK       int
	MinScore   float64
	ExcludeIDs []string
	FilterIDs  []string
}

// SemanticSearchResult holds similarity hits, best first.
type SemanticSearchResult struct {
	Items           []ScoredBookmark
	QueryDimensions int
	SearchedCount   int
}

func emptySemanticResult() *SemanticSearchResult {
	return &SemanticSearchResult{Items: []ScoredBookmark{}}
}

// SemanticRetriever ranks bookmarks by cosine similarity of stored embeddings.
type SemanticRetriever struct {
	vectors  VectorStore
	provider EmbeddingProvider
	cache    *lru.Cache[string, []float32]
	logger   logrus.FieldLogger
}

// NewSemanticRetriever creates a new SemanticRetriever. provider may be nil,
// in which case the retriever is permanently unavailable.
func NewSemanticRetriever(vectors VectorStore, provider EmbeddingProvider, logger logrus.FieldLogger) *SemanticRetriever {
	cache, _ := lru.New[string, []float32](queryCacheSize)
	return &SemanticRetriever{
		vectors:  vectors,
		provider: provider,
		cache:    cache,
		logger:   logging.OrDiscard(logger),
	}
}

// IsAvailable reports whether embeddings are enabled, supported by the
// provider, and (for remote providers) backed by a credential.
func (r *SemanticRetriever) IsAvailable() bool {
	if r == nil || r.vectors == nil {
		return false
	}
	return providerAvailable(r.provider)
}

func providerAvailable(p EmbeddingProvider) bool {
	if p == nil || !p.IsEnabled() || !p.IsProviderSupported() {
		return false
	}
	return p.IsLocal() || p.HasCredential()
}

// ModelKey returns the active embedding model key, or "" when unavailable.
func (r *SemanticRetriever) ModelKey() string {
	if r == nil || r.provider == nil {
		return ""
	}
	return r.provider.ModelKey()
}

// Search embeds query and ranks stored vectors against it. A failure to embed
// the query is returned as an error.
func (r *SemanticRetriever) Search(ctx context.Context, query string, opts SemanticSearchOptions) (*SemanticSearchResult, error) {
	if !r.IsAvailable() {
		return emptySemanticResult(), nil
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return emptySemanticResult(), nil
	}

	vector, err := r.queryVector(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	if opts.MinScore == 0 {
		opts.MinScore = DefaultSearchMinScore
	}
	return r.searchByVector(ctx, vector, opts)
}

// FindSimilar ranks stored vectors against the bookmark's own vector,
// never returning the bookmark itself.
func (r *SemanticRetriever) FindSimilar(ctx context.Context, bookmarkID string, opts SemanticSearchOptions) (*SemanticSearchResult, error) {
	if !r.IsAvailable() {
		return emptySemanticResult(), nil
	}

	target, err := r.vectors.GetEmbedding(ctx, bookmarkID, r.provider.ModelKey())
	if err != nil {
		return nil, fmt.Errorf("failed to load embedding: %w", err)
	}
	if target == nil || len(target.Vector) == 0 {
		r.logger.WithField("bookmark_id", bookmarkID).Debug("No embedding stored for bookmark")
		return emptySemanticResult(), nil
	}

	if opts.MinScore == 0 {
		opts.MinScore = DefaultSimilarMinScore
	}
	opts.ExcludeIDs = append(append([]string(nil), opts.ExcludeIDs...), bookmarkID)
	return r.searchByVector(ctx, target.Vector, opts)
}

func (r *SemanticRetriever) queryVector(ctx context.Context, query string) ([]float32, error) {
	key := r.provider.ModelKey() + "\x00" + query
	if v, ok := r.cache.Get(key); ok {
		return v, nil
	}
	v, err := r.provider.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	r.cache.Add(key, v)
	return v, nil
}

func (r *SemanticRetriever) searchByVector(ctx context.Context, query []float32, opts SemanticSearchOptions) (*SemanticSearchResult, error) {
	modelKey := r.provider.ModelKey()
	embeddings, err := r.vectors.GetEmbeddingsByModel(ctx, modelKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load embeddings: %w", err)
	}

	excluded := idSet(opts.ExcludeIDs)
	var allowed map[string]struct{}
	if len(opts.FilterIDs) > 0 {
		allowed = idSet(opts.FilterIDs)
	}

	items := []ScoredBookmark{}
	searched := 0
	for _, e := range embeddings {
		if e == nil {
			continue
		}
		if _, skip := excluded[e.BookmarkID]; skip {
			continue
		}
		if allowed != nil {
			if _, ok := allowed[e.BookmarkID]; !ok {
				continue
			}
		}
		if len(e.Vector) != len(query) {
			r.logger.WithFields(logrus.Fields{
				"bookmark_id": e.BookmarkID,
				"model_key":   modelKey,
				"expected":    len(query),
				"actual":      len(e.Vector),
			}).Warn("Skipping embedding with mismatched dimensions")
			continue
		}
		searched++
		sim := CosineSimilarity(query, e.Vector)
		if sim < opts.MinScore {
			continue
		}
		items = append(items, ScoredBookmark{BookmarkID: e.BookmarkID, Score: sim})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].BookmarkID < items[j].BookmarkID
	})
	topK := clampCandidates(opts.TopK)
	if len(items) > topK {
		items = items[:topK]
	}

	return &SemanticSearchResult{Items: items, QueryDimensions: len(query), SearchedCount: searched}, nil
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// either is a zero vector or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// clamp rounding drift
	return math.Max(-1, math.Min(1, sim))
}
