package client

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/cloo-solutions/bookmind/internal/api/handlers"
	"github.com/cloo-solutions/bookmind/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockChatAPI struct {
	mock.Mock
}

func (m *MockChatAPI) Chat(input string, state service.ConversationState) (*handlers.ChatResponse, error) {
	args := m.Called(input, state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*handlers.ChatResponse), args.Error(1)
}

func (m *MockChatAPI) Continue(state service.ConversationState) (*handlers.ChatResponse, error) {
	args := m.Called(state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*handlers.ChatResponse), args.Error(1)
}

func (m *MockChatAPI) Filter(filters service.SearchFilters, state service.ConversationState) (*handlers.ChatResponse, error) {
	args := m.Called(filters, state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*handlers.ChatResponse), args.Error(1)
}

func replyWith(text, lastQuery string, seen ...string) *handlers.ChatResponse {
	state := service.NewConversationState()
	state.LastQuery = lastQuery
	state.SeenBookmarkIDs = seen
	var bookmarks []*handlers.BookmarkResponse
	for _, id := range seen {
		bookmarks = append(bookmarks, &handlers.BookmarkResponse{ID: id, Title: "Title " + id, URL: "https://example.com/" + id})
	}
	return &handlers.ChatResponse{
		Response:    text,
		Bookmarks:   bookmarks,
		Suggestions: []string{"Show more results", "Only the last 7 days"},
		State:       state,
	}
}

func TestChatSession_QueryThenMore(t *testing.T) {
	api := new(MockChatAPI)
	api.On("Chat", "kafka", service.NewConversationState()).Return(replyWith("I found 1 bookmarks: [1] Title k1.", "kafka", "k1"), nil)
	api.On("Continue", mock.MatchedBy(func(s service.ConversationState) bool {
		return s.LastQuery == "kafka" && s.HasSeen("k1")
	})).Return(replyWith("I found 1 bookmarks: [1] Title k2.", "kafka", "k1", "k2"), nil)

	var out bytes.Buffer
	s := newChatSession(api, &out)

	quit, err := s.handle("kafka")
	require.NoError(t, err)
	assert.False(t, quit)

	_, err = s.handle(":more")
	require.NoError(t, err)

	assert.Equal(t, []string{"k1", "k2"}, s.tracker.State().SeenBookmarkIDs)
	assert.Contains(t, out.String(), "  [1] Title k1\n      https://example.com/k1")
	assert.Contains(t, out.String(), "Try: Show more results | Only the last 7 days")
	api.AssertExpectations(t)
}

func TestChatSession_FilterCommands(t *testing.T) {
	api := new(MockChatAPI)
	api.On("Filter", service.SearchFilters{TimeRangeDays: 30}, mock.Anything).Return(replyWith("ok", "redis"), nil).Once()
	api.On("Filter", service.SearchFilters{Tags: []string{"go", "db"}}, mock.Anything).Return(replyWith("ok", "redis"), nil).Once()
	api.On("Filter", service.SearchFilters{Semantic: service.BoolPtr(false)}, mock.Anything).Return(replyWith("ok", "redis"), nil).Once()

	s := newChatSession(api, &bytes.Buffer{})
	for _, line := range []string{":days 30", ":tag go db", ":semantic off"} {
		_, err := s.handle(line)
		require.NoError(t, err, line)
	}
	api.AssertExpectations(t)
}

func TestChatSession_CommandErrors(t *testing.T) {
	s := newChatSession(new(MockChatAPI), &bytes.Buffer{})

	for _, line := range []string{":more", ":days", ":days -2", ":days x", ":tag", ":semantic maybe", ":bogus"} {
		_, err := s.handle(line)
		assert.Error(t, err, line)
	}
}

func TestChatSession_ResetDropsState(t *testing.T) {
	api := new(MockChatAPI)
	api.On("Chat", "go", mock.Anything).Return(replyWith("ok", "go", "g1"), nil)

	s := newChatSession(api, &bytes.Buffer{})
	_, err := s.handle("go")
	require.NoError(t, err)
	require.Equal(t, "go", s.tracker.State().LastQuery)

	_, err = s.handle(":reset")
	require.NoError(t, err)
	assert.Equal(t, "", s.tracker.State().LastQuery)
	assert.Empty(t, s.tracker.State().SeenBookmarkIDs)
}

func TestChatSession_StateKeptOnError(t *testing.T) {
	api := new(MockChatAPI)
	api.On("Chat", "go", mock.Anything).Return(replyWith("ok", "go", "g1"), nil)
	api.On("Chat", "rust", mock.Anything).Return(nil, errors.New("API error (500): internal server error"))

	s := newChatSession(api, &bytes.Buffer{})
	_, err := s.handle("go")
	require.NoError(t, err)
	_, err = s.handle("rust")
	require.Error(t, err)

	assert.Equal(t, "go", s.tracker.State().LastQuery)
}

func TestChatSession_Run(t *testing.T) {
	api := new(MockChatAPI)
	api.On("Chat", "go", mock.Anything).Return(replyWith("I found 1 bookmarks.", "go", "g1"), nil)

	var out bytes.Buffer
	s := newChatSession(api, &out)
	err := s.run(strings.NewReader("go\n\n:nope\n:quit\nnever sent\n"))
	require.NoError(t, err)

	assert.Contains(t, out.String(), "I found 1 bookmarks.")
	assert.Contains(t, out.String(), "error: unknown command :nope")
	api.AssertNumberOfCalls(t, "Chat", 1)
}
