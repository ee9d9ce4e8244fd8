package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/cloo-solutions/bookmind/internal/domain"
	"github.com/cloo-solutions/bookmind/internal/logging"
	"github.com/cloo-solutions/bookmind/internal/telemetry"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	decayFloor = 0.9
	decaySpan  = 0.1
)

// Weights tune how the hybrid score is assembled.
type Weights struct {
	Keyword     float64 `json:"keyword"`
	Semantic    float64 `json:"semantic"`
	TimeDecay   float64 `json:"time_decay"`
	FilterBoost float64 `json:"filter_boost"`
}

// DefaultWeights returns the stock hybrid weights.
func DefaultWeights() Weights {
	return Weights{Keyword: 0.4, Semantic: 0.6, TimeDecay: 0.001, FilterBoost: 0.1}
}

// HybridSearchOptions configures a hybrid search. Both paths run unless disabled.
type HybridSearchOptions struct {
	TopK            int
	Filters         SearchFilters
	ExcludeIDs      []string
	Weights         *Weights
	DisableKeyword  bool
	DisableSemantic bool
}

// EmbeddingCoverage reports how much of the collection has a current vector.
type EmbeddingCoverage struct {
	TotalBookmarks    int     `json:"total_bookmarks"`
	EmbeddedBookmarks int     `json:"embedded_bookmarks"`
	Coverage          float64 `json:"coverage"`
	ModelKey          string  `json:"model_key"`
	SemanticAvailable bool    `json:"semantic_available"`
}

// HybridRetriever merges keyword and semantic rankings into one list
type HybridRetriever struct {
	store    BookmarkStore
	vectors  VectorStore
	keyword  *KeywordRetriever
	semantic *SemanticRetriever
	weights  Weights
	logger   logrus.FieldLogger
	now      func() time.Time
}

// NewHybridRetriever creates a new HybridRetriever
func NewHybridRetriever(store BookmarkStore, vectors VectorStore, keyword *KeywordRetriever, semantic *SemanticRetriever, weights Weights, logger logrus.FieldLogger) *HybridRetriever {
	return &HybridRetriever{
		store:    store,
		vectors:  vectors,
		keyword:  keyword,
		semantic: semantic,
		weights:  weights,
		logger:   logging.OrDiscard(logger),
		now:      time.Now,
	}
}

// Semantic exposes the semantic retriever for "more like this" lookups.
func (h *HybridRetriever) Semantic() *SemanticRetriever {
	return h.semantic
}

type mergedHit struct {
	keyword  float64
	semantic float64
}

// Search runs the enabled retrievers concurrently and merges their results.
// An empty query lists filter-matching bookmarks by recency instead.
func (h *HybridRetriever) Search(ctx context.Context, query string, opts HybridSearchOptions) (*SearchResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "HybridRetriever.Search", telemetry.SpanAttributes{
		Operation: "hybrid_search",
	})
	defer span.End()

	query = strings.TrimSpace(query)
	topK := ClampTopK(opts.TopK)
	weights := h.weights
	if opts.Weights != nil {
		weights = *opts.Weights
	}

	if query == "" {
		result, err := h.browse(ctx, topK, opts, weights)
		if err != nil {
			span.SetError(err)
		}
		return result, err
	}

	runSemantic := !opts.DisableSemantic && !opts.Filters.SemanticDisabled() && h.semantic.IsAvailable()
	// a semantic-only filter falls back to keywords when there is no semantic path
	runKeyword := !opts.DisableKeyword && h.keyword != nil && !(opts.Filters.KeywordDisabled() && runSemantic)

	var kwItems, semItems []ScoredBookmark
	g, gctx := errgroup.WithContext(ctx)
	if runKeyword {
		g.Go(func() error {
			res, err := h.keyword.Search(gctx, query, KeywordSearchOptions{
				TopK:       topK * candidateMultiplier,
				Filters:    opts.Filters,
				ExcludeIDs: opts.ExcludeIDs,
			})
			if err != nil {
				return fmt.Errorf("keyword search failed: %w", err)
			}
			kwItems = res.Items
			return nil
		})
	}
	if runSemantic {
		g.Go(func() error {
			res, err := h.semantic.Search(gctx, query, SemanticSearchOptions{
				TopK:       topK * candidateMultiplier,
				ExcludeIDs: opts.ExcludeIDs,
			})
			if err != nil {
				// semantic failure only removes that path from this call
				h.logger.WithError(err).WithField("model_key", h.semantic.ModelKey()).
					Warn("Semantic search failed, continuing with keyword results")
				return nil
			}
			semItems = res.Items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.SetError(err)
		return nil, err
	}

	merged := make(map[string]*mergedHit, len(kwItems)+len(semItems))
	for _, it := range kwItems {
		merged[it.BookmarkID] = &mergedHit{keyword: it.Score}
	}
	for _, it := range semItems {
		if m, ok := merged[it.BookmarkID]; ok {
			m.semantic = it.Score
		} else {
			merged[it.BookmarkID] = &mergedHit{semantic: it.Score}
		}
	}

	result := &SearchResult{
		Items:        []SearchResultItem{},
		UsedKeyword:  len(kwItems) > 0,
		UsedSemantic: len(semItems) > 0,
	}
	if len(merged) == 0 {
		return result, nil
	}

	ids := make([]string, 0, len(merged))
	for id := range merged {
		ids = append(ids, id)
	}
	bookmarks, err := h.store.GetBookmarks(ctx, BookmarkFilter{IDs: ids})
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to load bookmarks: %w", err)
	}

	now := h.now()
	created := make(map[string]time.Time, len(bookmarks))
	for _, b := range bookmarks {
		m, ok := merged[b.ID]
		if !ok || !MatchesFilters(b, opts.Filters, now) {
			continue
		}
		score := m.keyword*weights.Keyword + m.semantic*weights.Semantic
		score *= timeDecay(b, now, weights.TimeDecay)
		score *= filterBoost(b, opts.Filters, weights.FilterBoost)
		created[b.ID] = b.CreatedAt
		result.Items = append(result.Items, SearchResultItem{
			BookmarkID:    b.ID,
			Score:         score,
			KeywordScore:  m.keyword,
			SemanticScore: m.semantic,
			MatchReason:   matchReason(m),
		})
	}

	sortItems(result.Items, created)
	result.Total = len(result.Items)
	if len(result.Items) > topK {
		result.Items = result.Items[:topK]
	}
	span.SetData("total", result.Total)
	span.SetData("used_keyword", result.UsedKeyword)
	span.SetData("used_semantic", result.UsedSemantic)
	return result, nil
}

// browse ranks filter-matching bookmarks when no search term remains.
func (h *HybridRetriever) browse(ctx context.Context, topK int, opts HybridSearchOptions, weights Weights) (*SearchResult, error) {
	bookmarks, err := h.store.GetBookmarks(ctx, BookmarkFilter{CategoryID: opts.Filters.CategoryID})
	if err != nil {
		return nil, fmt.Errorf("failed to load bookmarks: %w", err)
	}

	now := h.now()
	excluded := idSet(opts.ExcludeIDs)
	created := make(map[string]time.Time)
	result := &SearchResult{Items: []SearchResultItem{}}
	for _, b := range bookmarks {
		if _, skip := excluded[b.ID]; skip {
			continue
		}
		if !MatchesFilters(b, opts.Filters, now) {
			continue
		}
		score := timeDecay(b, now, weights.TimeDecay) * filterBoost(b, opts.Filters, weights.FilterBoost)
		created[b.ID] = b.CreatedAt
		result.Items = append(result.Items, SearchResultItem{
			BookmarkID:  b.ID,
			Score:       score,
			MatchReason: "filter match",
		})
	}

	sortItems(result.Items, created)
	result.Total = len(result.Items)
	if len(result.Items) > topK {
		result.Items = result.Items[:topK]
	}
	return result, nil
}

// SearchKeywordOnly runs Search with the semantic path disabled.
func (h *HybridRetriever) SearchKeywordOnly(ctx context.Context, query string, opts HybridSearchOptions) (*SearchResult, error) {
	opts.DisableSemantic = true
	opts.DisableKeyword = false
	return h.Search(ctx, query, opts)
}

// SearchSemanticOnly runs Search with the keyword path disabled.
func (h *HybridRetriever) SearchSemanticOnly(ctx context.Context, query string, opts HybridSearchOptions) (*SearchResult, error) {
	opts.DisableKeyword = true
	opts.DisableSemantic = false
	return h.Search(ctx, query, opts)
}

// Diagnostics reports embedding coverage for the active model. An embedding
// counts as current when its checksum matches the bookmark's content.
func (h *HybridRetriever) Diagnostics(ctx context.Context) (*EmbeddingCoverage, error) {
	bookmarks, err := h.store.GetBookmarks(ctx, BookmarkFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load bookmarks: %w", err)
	}

	cov := &EmbeddingCoverage{
		TotalBookmarks:    len(bookmarks),
		ModelKey:          h.semantic.ModelKey(),
		SemanticAvailable: h.semantic.IsAvailable(),
	}
	if cov.ModelKey == "" || h.vectors == nil || len(bookmarks) == 0 {
		return cov, nil
	}

	embeddings, err := h.vectors.GetEmbeddingsByModel(ctx, cov.ModelKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load embeddings: %w", err)
	}
	checksums := make(map[string]string, len(embeddings))
	for _, e := range embeddings {
		checksums[e.BookmarkID] = e.Checksum
	}
	for _, b := range bookmarks {
		if sum, ok := checksums[b.ID]; ok && sum == domain.ContentChecksum(EmbeddingText(b)) {
			cov.EmbeddedBookmarks++
		}
	}
	cov.Coverage = float64(cov.EmbeddedBookmarks) / float64(cov.TotalBookmarks)
	return cov, nil
}

// timeDecay returns a multiplier in [0.9, 1.0] favouring recent bookmarks.
func timeDecay(b *domain.Bookmark, now time.Time, rate float64) float64 {
	return decayFloor + decaySpan*math.Max(0, 1-b.AgeDays(now)*rate)
}

// filterBoost applies the boost once for a category hit and once for any tag hit.
func filterBoost(b *domain.Bookmark, f SearchFilters, boost float64) float64 {
	factor := 1.0
	if f.CategoryID != "" && b.CategoryID == f.CategoryID {
		factor *= 1 + boost
	}
	if len(f.Tags) > 0 && hasAnyTag(b, f.Tags) {
		factor *= 1 + boost
	}
	return factor
}

func matchReason(m *mergedHit) string {
	switch {
	case m.keyword > 0 && m.semantic > 0:
		return "keyword + semantic match"
	case m.semantic > 0:
		return "semantic match"
	default:
		return "keyword match"
	}
}

func sortItems(items []SearchResultItem, created map[string]time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		ci, cj := created[items[i].BookmarkID], created[items[j].BookmarkID]
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return items[i].BookmarkID < items[j].BookmarkID
	})
}
