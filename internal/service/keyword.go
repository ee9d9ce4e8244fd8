package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cloo-solutions/bookmind/internal/domain"
)

const maxDescriptionHits = 3

// FieldWeights weights a term hit by the field it landed in.
type FieldWeights struct {
	Title       float64 `json:"title"`
	Description float64 `json:"description"`
	Tags        float64 `json:"tags"`
	URL         float64 `json:"url"`
}

// DefaultFieldWeights returns the stock per-field weights.
func DefaultFieldWeights() FieldWeights {
	return FieldWeights{Title: 3, Description: 1.5, Tags: 2, URL: 0.5}
}

// KeywordSearchOptions configures a keyword search
type KeywordSearchOptions struct {
	TopK         int
	Filters      SearchFilters
	ExcludeIDs   []string
	FieldWeights *FieldWeights
}

// KeywordSearchResult holds normalized hits plus the number of bookmarks scanned.
type KeywordSearchResult struct {
	Items         []ScoredBookmark
	SearchedCount int
}

// KeywordRetriever scores bookmarks by lexical term hits across their fields.
type KeywordRetriever struct {
	store BookmarkStore
	now   func() time.Time
}

// NewKeywordRetriever creates a new KeywordRetriever
func NewKeywordRetriever(store BookmarkStore) *KeywordRetriever {
	return &KeywordRetriever{store: store, now: time.Now}
}

// Search returns bookmarks matching at least one query term, best first.
// Scores are normalized so the top hit is 1.0.
func (r *KeywordRetriever) Search(ctx context.Context, query string, opts KeywordSearchOptions) (*KeywordSearchResult, error) {
	terms := extractTerms(query)
	if len(terms) == 0 {
		return &KeywordSearchResult{Items: []ScoredBookmark{}}, nil
	}

	bookmarks, err := r.store.GetBookmarks(ctx, BookmarkFilter{CategoryID: opts.Filters.CategoryID})
	if err != nil {
		return nil, fmt.Errorf("failed to load bookmarks: %w", err)
	}

	weights := DefaultFieldWeights()
	if opts.FieldWeights != nil {
		weights = *opts.FieldWeights
	}
	excluded := idSet(opts.ExcludeIDs)
	now := r.now()

	type hit struct {
		bookmark *domain.Bookmark
		score    float64
	}
	var hits []hit
	for _, b := range bookmarks {
		if _, skip := excluded[b.ID]; skip {
			continue
		}
		// cheap pre-filter; the hybrid retriever re-checks authoritatively
		if !MatchesFilters(b, opts.Filters, now) {
			continue
		}
		score, matched := scoreBookmark(b, terms, weights)
		if !matched {
			continue
		}
		hits = append(hits, hit{bookmark: b, score: score})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		if !hits[i].bookmark.CreatedAt.Equal(hits[j].bookmark.CreatedAt) {
			return hits[i].bookmark.CreatedAt.After(hits[j].bookmark.CreatedAt)
		}
		return hits[i].bookmark.ID < hits[j].bookmark.ID
	})

	topK := clampCandidates(opts.TopK)
	if len(hits) > topK {
		hits = hits[:topK]
	}

	items := make([]ScoredBookmark, 0, len(hits))
	if len(hits) > 0 {
		top := hits[0].score
		for _, h := range hits {
			score := h.score
			if top > 0 {
				score /= top
			}
			items = append(items, ScoredBookmark{BookmarkID: h.bookmark.ID, Score: score})
		}
	}

	return &KeywordSearchResult{Items: items, SearchedCount: len(bookmarks)}, nil
}

// scoreBookmark returns the raw weighted score and whether any term hit any field.
func scoreBookmark(b *domain.Bookmark, terms []string, w FieldWeights) (float64, bool) {
	title := strings.ToLower(strings.TrimSpace(b.Title))
	desc := strings.ToLower(b.Description)
	url := strings.ToLower(b.URL)

	var score float64
	matched := false
	for _, term := range terms {
		if s := titleScore(title, term); s > 0 {
			score += s * w.Title
			matched = true
		}
		if n := strings.Count(desc, term); n > 0 {
			if n > maxDescriptionHits {
				n = maxDescriptionHits
			}
			score += float64(n) * w.Description
			matched = true
		}
		if s := tagScore(b.Tags, term); s > 0 {
			score += s * w.Tags
			matched = true
		}
		if strings.Contains(url, term) {
			score += w.URL
			matched = true
		}
	}
	return score, matched
}

func titleScore(title, term string) float64 {
	switch {
	case title == "":
		return 0
	case title == term:
		return 2
	case strings.HasPrefix(title, term), strings.HasSuffix(title, term):
		return 1.5
	case strings.Contains(title, term):
		return 1
	}
	return 0
}

// tagScore returns the best tag hit for term: 2 exact, 1 substring.
func tagScore(tags []string, term string) float64 {
	best := 0.0
	for _, tag := range tags {
		tag = strings.ToLower(tag)
		if tag == term {
			return 2
		}
		if strings.Contains(tag, term) {
			best = 1
		}
	}
	return best
}
