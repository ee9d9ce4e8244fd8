package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cloo-solutions/bookmind/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestKeyword(store BookmarkStore) *KeywordRetriever {
	r := NewKeywordRetriever(store)
	r.now = func() time.Time { return testNow }
	return r
}

func TestExtractTerms(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"latin", "React Hooks, tutorial!", []string{"react", "hooks", "tutorial"}},
		{"stopwords dropped", "the best of the web", []string{"best", "web"}},
		{"duplicates", "go go GO", []string{"go"}},
		{"cjk and latin split", "React教程", []string{"react", "教程"}},
		{"cjk punctuation", "机器学习，论文", []string{"机器学习", "论文"}},
		{"technical terms", "c++ node.js", []string{"c++", "node.js"}},
		{"empty", "  ,, ", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractTerms(tt.query))
		})
	}
}

func TestKeywordRetriever_NoMatchingTerm(t *testing.T) {
	store := newCollection(
		bookmarkAt("b1", "Vue Guide", days(1)),
		bookmarkAt("b2", "Svelte Intro", days(2)),
		bookmarkAt("b3", "Angular Docs", days(3)),
	)
	r := newTestKeyword(store)

	res, err := r.Search(context.Background(), "kubernetes", KeywordSearchOptions{TopK: 10})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Equal(t, 3, res.SearchedCount)
}

func TestKeywordRetriever_EmptyTermsSkipsStore(t *testing.T) {
	store := new(MockBookmarkStore)
	r := newTestKeyword(store)

	res, err := r.Search(context.Background(), "  the  ", KeywordSearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	store.AssertNotCalled(t, "GetBookmarks", mock.Anything, mock.Anything)
}

func TestKeywordRetriever_NormalizesTopScore(t *testing.T) {
	exact := bookmarkAt("exact", "react", days(1))
	prefix := bookmarkAt("prefix", "React Tutorial", days(1))
	desc := bookmarkAt("desc", "Frontend notes", days(1))
	desc.Description = "some react patterns"
	store := newCollection(exact, prefix, desc)
	r := newTestKeyword(store)

	res, err := r.Search(context.Background(), "react", KeywordSearchOptions{TopK: 10})
	require.NoError(t, err)
	require.Len(t, res.Items, 3)

	assert.Equal(t, "exact", res.Items[0].BookmarkID)
	assert.Equal(t, 1.0, res.Items[0].Score)
	assert.Equal(t, "prefix", res.Items[1].BookmarkID)
	assert.InDelta(t, 4.5/6.0, res.Items[1].Score, 1e-9)
	assert.Equal(t, "desc", res.Items[2].BookmarkID)
	assert.InDelta(t, 1.5/6.0, res.Items[2].Score, 1e-9)
	for _, item := range res.Items {
		assert.LessOrEqual(t, item.Score, 1.0)
	}
}

func TestKeywordRetriever_FieldScoring(t *testing.T) {
	w := DefaultFieldWeights()

	t.Run("description hits cap at three", func(t *testing.T) {
		b := &domain.Bookmark{ID: "x", URL: "https://x.dev", Description: "go go go go go"}
		score, matched := scoreBookmark(b, []string{"go"}, w)
		assert.True(t, matched)
		assert.Equal(t, 3*w.Description, score)
	})

	t.Run("exact tag beats substring tag", func(t *testing.T) {
		exact := &domain.Bookmark{ID: "a", URL: "https://a.dev", Tags: []string{"Rust"}}
		partial := &domain.Bookmark{ID: "b", URL: "https://b.dev", Tags: []string{"rustlang"}}
		se, _ := scoreBookmark(exact, []string{"rust"}, w)
		sp, _ := scoreBookmark(partial, []string{"rust"}, w)
		assert.Equal(t, 2*w.Tags, se)
		assert.Equal(t, 1*w.Tags, sp)
	})

	t.Run("title positions", func(t *testing.T) {
		assert.Equal(t, 2.0, titleScore("docker", "docker"))
		assert.Equal(t, 1.5, titleScore("docker compose", "docker"))
		assert.Equal(t, 1.5, titleScore("intro to docker", "docker"))
		assert.Equal(t, 1.0, titleScore("why docker matters", "docker"))
		assert.Equal(t, 0.0, titleScore("podman", "docker"))
	})

	t.Run("url hit", func(t *testing.T) {
		b := &domain.Bookmark{ID: "u", URL: "https://github.com/golang/go"}
		score, matched := scoreBookmark(b, []string{"github"}, w)
		assert.True(t, matched)
		assert.Equal(t, w.URL, score)
	})

	t.Run("custom weights", func(t *testing.T) {
		b := &domain.Bookmark{ID: "c", URL: "https://c.dev", Title: "rust"}
		score, _ := scoreBookmark(b, []string{"rust"}, FieldWeights{Title: 1})
		assert.Equal(t, 2.0, score)
	})
}

func TestKeywordRetriever_ExcludesAndFilters(t *testing.T) {
	recent := bookmarkAt("recent", "Go concurrency", days(2))
	old := bookmarkAt("old", "Go generics", days(40))
	seen := bookmarkAt("seen", "Go modules", days(1))
	store := newCollection(recent, old, seen)
	r := newTestKeyword(store)

	res, err := r.Search(context.Background(), "go", KeywordSearchOptions{
		TopK:       10,
		Filters:    SearchFilters{TimeRangeDays: 7},
		ExcludeIDs: []string{"seen"},
	})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "recent", res.Items[0].BookmarkID)
}

func TestKeywordRetriever_TruncatesToTopK(t *testing.T) {
	var bookmarks []*domain.Bookmark
	for i := 0; i < 8; i++ {
		bookmarks = append(bookmarks, bookmarkAt(string(rune('a'+i)), "python tips", days(float64(i))))
	}
	r := newTestKeyword(newCollection(bookmarks...))

	res, err := r.Search(context.Background(), "python", KeywordSearchOptions{TopK: 3})
	require.NoError(t, err)
	assert.Len(t, res.Items, 3)
	// equal scores fall back to newest first
	assert.Equal(t, "a", res.Items[0].BookmarkID)
}

func TestKeywordRetriever_CandidateCapAboveMaxTopK(t *testing.T) {
	var bookmarks []*domain.Bookmark
	for i := 0; i < MaxCandidates+20; i++ {
		bookmarks = append(bookmarks, bookmarkAt(fmt.Sprintf("b%03d", i), "python tips", days(float64(i)/10)))
	}
	r := newTestKeyword(newCollection(bookmarks...))

	res, err := r.Search(context.Background(), "python", KeywordSearchOptions{TopK: MaxTopK * candidateMultiplier})
	require.NoError(t, err)
	assert.Len(t, res.Items, MaxCandidates)

	res, err = r.Search(context.Background(), "python", KeywordSearchOptions{TopK: 1000})
	require.NoError(t, err)
	assert.Len(t, res.Items, MaxCandidates)
}

func TestKeywordRetriever_StoreError(t *testing.T) {
	store := new(MockBookmarkStore)
	store.On("GetBookmarks", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))
	r := newTestKeyword(store)

	_, err := r.Search(context.Background(), "go", KeywordSearchOptions{})
	assert.Error(t, err)
}
