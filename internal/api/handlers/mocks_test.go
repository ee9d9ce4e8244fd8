package handlers

import (
	"context"

	"github.com/cloo-solutions/bookmind/internal/domain"
	"github.com/cloo-solutions/bookmind/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) Search(ctx context.Context, input string, state service.ConversationState) (*service.ChatResponse, error) {
	args := m.Called(ctx, input, state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ChatResponse), args.Error(1)
}

func (m *MockChatService) ContinueSearch(ctx context.Context, state service.ConversationState) (*service.ChatResponse, error) {
	args := m.Called(ctx, state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ChatResponse), args.Error(1)
}

func (m *MockChatService) ApplyFilter(ctx context.Context, update service.SearchFilters, state service.ConversationState) (*service.ChatResponse, error) {
	args := m.Called(ctx, update, state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ChatResponse), args.Error(1)
}

type MockSearchService struct {
	mock.Mock
}

func (m *MockSearchService) Search(ctx context.Context, query string, opts service.HybridSearchOptions) (*service.SearchResult, error) {
	args := m.Called(ctx, query, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SearchResult), args.Error(1)
}

func (m *MockSearchService) SearchKeywordOnly(ctx context.Context, query string, opts service.HybridSearchOptions) (*service.SearchResult, error) {
	args := m.Called(ctx, query, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SearchResult), args.Error(1)
}

func (m *MockSearchService) SearchSemanticOnly(ctx context.Context, query string, opts service.HybridSearchOptions) (*service.SearchResult, error) {
	args := m.Called(ctx, query, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SearchResult), args.Error(1)
}

func (m *MockSearchService) Diagnostics(ctx context.Context) (*service.EmbeddingCoverage, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.EmbeddingCoverage), args.Error(1)
}

type MockSimilarService struct {
	mock.Mock
}

func (m *MockSimilarService) IsAvailable() bool {
	return m.Called().Bool(0)
}

func (m *MockSimilarService) FindSimilar(ctx context.Context, bookmarkID string, opts service.SemanticSearchOptions) (*service.SemanticSearchResult, error) {
	args := m.Called(ctx, bookmarkID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SemanticSearchResult), args.Error(1)
}

type MockBookmarkReader struct {
	mock.Mock
}

func (m *MockBookmarkReader) GetBookmarks(ctx context.Context, filter service.BookmarkFilter) ([]*domain.Bookmark, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Bookmark), args.Error(1)
}
