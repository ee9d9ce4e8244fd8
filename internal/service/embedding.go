package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloo-solutions/bookmind/internal/domain"
	"github.com/cloo-solutions/bookmind/internal/logging"
	"github.com/cloo-solutions/bookmind/internal/telemetry"
	"github.com/sirupsen/logrus"
)

// EmbeddingStore persists bookmark embeddings
type EmbeddingStore interface {
	GetEmbedding(ctx context.Context, bookmarkID, modelKey string) (*domain.Embedding, error)
	UpsertEmbedding(ctx context.Context, e *domain.Embedding) error
	// TouchEmbedding marks a stored vector as current as of at.
	TouchEmbedding(ctx context.Context, bookmarkID, modelKey string, at time.Time) error
}

// EmbeddingService keeps stored bookmark vectors current for the active model
type EmbeddingService struct {
	bookmarks BookmarkStore
	store     EmbeddingStore
	provider  EmbeddingProvider
	logger    logrus.FieldLogger
	now       func() time.Time
}

// NewEmbeddingService creates a new EmbeddingService instance
func NewEmbeddingService(bookmarks BookmarkStore, store EmbeddingStore, provider EmbeddingProvider, logger logrus.FieldLogger) *EmbeddingService {
	return &EmbeddingService{
		bookmarks: bookmarks,
		store:     store,
		provider:  provider,
		logger:    logging.OrDiscard(logger),
		now:       time.Now,
	}
}

// EmbedBookmark computes and stores the bookmark's vector. It reports false
// without calling the provider when the stored checksum is still current.
// This method is called by the background worker
func (s *EmbeddingService) EmbedBookmark(ctx context.Context, bookmarkID string) (bool, error) {
	if !providerAvailable(s.provider) {
		return false, domain.ErrSemanticUnavailable
	}

	ctx, span := telemetry.StartSpan(ctx, "EmbeddingService.EmbedBookmark", telemetry.SpanAttributes{
		BookmarkID: bookmarkID,
		Operation:  "embed",
	})
	defer span.End()

	bookmarks, err := s.bookmarks.GetBookmarks(ctx, BookmarkFilter{IDs: []string{bookmarkID}})
	if err != nil {
		span.SetError(err)
		return false, fmt.Errorf("failed to load bookmark: %w", err)
	}
	if len(bookmarks) == 0 {
		return false, domain.ErrBookmarkNotFound
	}
	bookmark := bookmarks[0]

	modelKey := s.provider.ModelKey()
	text := EmbeddingText(bookmark)
	checksum := domain.ContentChecksum(text)

	existing, err := s.store.GetEmbedding(ctx, bookmarkID, modelKey)
	if err != nil {
		span.SetError(err)
		return false, fmt.Errorf("failed to load embedding: %w", err)
	}
	if existing != nil && existing.Checksum == checksum {
		// the bookmark changed outside the embedded text; keep the
		// stale-vector sweep from queuing it again
		if err := s.store.TouchEmbedding(ctx, bookmarkID, modelKey, s.now().UTC()); err != nil {
			span.SetError(err)
			return false, fmt.Errorf("failed to touch embedding: %w", err)
		}
		return false, nil
	}

	vector, err := s.provider.Embed(ctx, text)
	if err != nil {
		span.SetError(err)
		return false, fmt.Errorf("failed to generate embedding: %w", err)
	}

	embedding := &domain.Embedding{
		BookmarkID: bookmarkID,
		Vector:     vector,
		Dimensions: len(vector),
		ModelKey:   modelKey,
		Checksum:   checksum,
		CreatedAt:  s.now().UTC(),
	}
	if err := domain.ValidateEmbedding(embedding); err != nil {
		return false, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid embedding", err)
	}
	if err := s.store.UpsertEmbedding(ctx, embedding); err != nil {
		span.SetError(err)
		return false, fmt.Errorf("failed to store embedding: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"bookmark_id": bookmarkID,
		"model_key":   modelKey,
		"dimensions":  len(vector),
	}).Debug("Stored bookmark embedding")
	return true, nil
}

// EmbeddingText builds the text a bookmark's vector is computed from.
func EmbeddingText(b *domain.Bookmark) string {
	var parts []string
	if t := strings.TrimSpace(b.Title); t != "" {
		parts = append(parts, t)
	}
	if d := strings.TrimSpace(b.Description); d != "" {
		parts = append(parts, d)
	}
	if len(b.Tags) > 0 {
		parts = append(parts, "Tags: "+strings.Join(b.Tags, ", "))
	}
	if u := strings.TrimSpace(b.URL); u != "" {
		parts = append(parts, u)
	}
	return strings.Join(parts, "\n")
}
