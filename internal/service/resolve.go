package service

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/bookmind/internal/domain"
)

// ResolveInOrder loads the bookmarks for ranked ids and returns them in the
// order of ids. Ids the store no longer returns are skipped.
func ResolveInOrder(ctx context.Context, reader BookmarkReader, ids []string) ([]*domain.Bookmark, error) {
	if len(ids) == 0 {
		return []*domain.Bookmark{}, nil
	}
	loaded, err := reader.GetBookmarks(ctx, BookmarkFilter{IDs: ids})
	if err != nil {
		return nil, fmt.Errorf("failed to load bookmarks: %w", err)
	}
	byID := make(map[string]*domain.Bookmark, len(loaded))
	for _, b := range loaded {
		byID[b.ID] = b
	}
	out := make([]*domain.Bookmark, 0, len(ids))
	for _, id := range ids {
		if b, ok := byID[id]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}
