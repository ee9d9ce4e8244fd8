package service

import (
	"context"
	"time"

	"github.com/cloo-solutions/bookmind/internal/domain"
	"github.com/stretchr/testify/mock"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// MockBookmarkStore mocks BookmarkStore. GetBookmarks may be stubbed with a
// func(BookmarkFilter) []*domain.Bookmark to answer per filter.
type MockBookmarkStore struct {
	mock.Mock
}

func (m *MockBookmarkStore) GetBookmarks(ctx context.Context, filter BookmarkFilter) ([]*domain.Bookmark, error) {
	args := m.Called(ctx, filter)
	if fn, ok := args.Get(0).(func(BookmarkFilter) []*domain.Bookmark); ok {
		return fn(filter), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Bookmark), args.Error(1)
}

func (m *MockBookmarkStore) GetCategories(ctx context.Context) ([]*domain.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Category), args.Error(1)
}

func (m *MockBookmarkStore) GetAllTags(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// newCollection returns a store answering GetBookmarks from bookmarks the
// way the Postgres repository does.
func newCollection(bookmarks ...*domain.Bookmark) *MockBookmarkStore {
	store := new(MockBookmarkStore)
	store.On("GetBookmarks", mock.Anything, mock.Anything).Return(func(f BookmarkFilter) []*domain.Bookmark {
		var ids map[string]struct{}
		if len(f.IDs) > 0 {
			ids = idSet(f.IDs)
		}
		var out []*domain.Bookmark
		for _, b := range bookmarks {
			if b.Deleted && !f.IncludeDeleted {
				continue
			}
			if f.CategoryID != "" && b.CategoryID != f.CategoryID {
				continue
			}
			if ids != nil {
				if _, ok := ids[b.ID]; !ok {
					continue
				}
			}
			out = append(out, b)
		}
		return out
	}, nil)
	return store
}

// MockVectorStore mocks VectorStore
type MockVectorStore struct {
	mock.Mock
}

func (m *MockVectorStore) GetEmbeddingsByModel(ctx context.Context, modelKey string) ([]*domain.Embedding, error) {
	args := m.Called(ctx, modelKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Embedding), args.Error(1)
}

func (m *MockVectorStore) GetEmbedding(ctx context.Context, bookmarkID, modelKey string) (*domain.Embedding, error) {
	args := m.Called(ctx, bookmarkID, modelKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Embedding), args.Error(1)
}

func (m *MockVectorStore) UpsertEmbedding(ctx context.Context, e *domain.Embedding) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockVectorStore) TouchEmbedding(ctx context.Context, bookmarkID, modelKey string, at time.Time) error {
	args := m.Called(ctx, bookmarkID, modelKey, at)
	return args.Error(0)
}

// MockEmbeddingProvider mocks Embed; capability flags are plain fields.
type MockEmbeddingProvider struct {
	mock.Mock
	modelKey   string
	enabled    bool
	supported  bool
	credential bool
	local      bool
}

func newMockProvider() *MockEmbeddingProvider {
	return &MockEmbeddingProvider{
		modelKey:   "openai:text-embedding-3-small",
		enabled:    true,
		supported:  true,
		credential: true,
	}
}

func (m *MockEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockEmbeddingProvider) ModelKey() string          { return m.modelKey }
func (m *MockEmbeddingProvider) IsEnabled() bool           { return m.enabled }
func (m *MockEmbeddingProvider) IsProviderSupported() bool { return m.supported }
func (m *MockEmbeddingProvider) HasCredential() bool       { return m.credential }
func (m *MockEmbeddingProvider) IsLocal() bool             { return m.local }

// MockStructuredLLM mocks StructuredLLM. Stub the first return with a
// func(target any) to fill the target.
type MockStructuredLLM struct {
	mock.Mock
}

func (m *MockStructuredLLM) GenerateStructured(ctx context.Context, systemPrompt, userPrompt, schemaName string, target any) error {
	args := m.Called(ctx, systemPrompt, userPrompt, schemaName, target)
	if fn, ok := args.Get(0).(func(any)); ok {
		fn(target)
		return args.Error(1)
	}
	return args.Error(0)
}

func bookmarkAt(id, title string, age time.Duration) *domain.Bookmark {
	created := testNow.Add(-age)
	return &domain.Bookmark{
		ID:        id,
		URL:       "https://example.com/" + id,
		Title:     title,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func days(n float64) time.Duration {
	return time.Duration(n * 24 * float64(time.Hour))
}

func embeddingFor(id string, vector ...float32) *domain.Embedding {
	return &domain.Embedding{
		BookmarkID: id,
		Vector:     vector,
		Dimensions: len(vector),
		ModelKey:   "openai:text-embedding-3-small",
	}
}
