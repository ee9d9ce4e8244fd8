package client

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloo-solutions/bookmind/internal/api/handlers"
	"github.com/cloo-solutions/bookmind/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIClient_Chat(t *testing.T) {
	var got handlers.ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"data":{"response":"I found 1 bookmarks: [1] Go.","suggestions":[],"bookmarks":[{"id":"b1","url":"https://go.dev","title":"Go","tags":[]}],"request":{"intent":"query"},"state":{"last_query":"go","seen_bookmark_ids":["b1"],"short_memory":[]}}}`)
	}))
	defer srv.Close()

	state := service.NewConversationState()
	resp, err := NewAPIClientWithConfig(srv.URL).Chat("go", state)
	require.NoError(t, err)

	assert.Equal(t, "go", got.Input)
	require.NotNil(t, got.State)
	assert.Equal(t, "I found 1 bookmarks: [1] Go.", resp.Response)
	require.Len(t, resp.Bookmarks, 1)
	assert.Equal(t, "b1", resp.Bookmarks[0].ID)
	assert.Equal(t, []string{"b1"}, resp.State.SeenBookmarkIDs)
	assert.Equal(t, service.IntentQuery, resp.Request.Intent)
}

func TestAPIClient_Similar(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bookmarks/a%2Fb/similar", r.URL.EscapedPath())
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		io.WriteString(w, `{"data":{"bookmark_id":"a/b","items":[]}}`)
	}))
	defer srv.Close()

	resp, err := NewAPIClientWithConfig(srv.URL).Similar("a/b", 3)
	require.NoError(t, err)
	assert.Equal(t, "a/b", resp.BookmarkID)
	assert.Empty(t, resp.Items)
}

func TestAPIClient_Errors(t *testing.T) {
	t.Run("structured error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			io.WriteString(w, `{"error":"[UNAVAILABLE] semantic search is not available","code":"UNAVAILABLE"}`)
		}))
		defer srv.Close()

		_, err := NewAPIClientWithConfig(srv.URL).Search(handlers.SearchRequest{Query: "go", SemanticOnly: true})
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
		assert.Equal(t, "UNAVAILABLE", apiErr.Code)
	})

	t.Run("non-json error body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			io.WriteString(w, "upstream down")
		}))
		defer srv.Close()

		_, err := NewAPIClientWithConfig(srv.URL).Diagnostics()
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "upstream down", apiErr.Message)
	})

	t.Run("garbage success body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "<html>")
		}))
		defer srv.Close()

		_, err := NewAPIClientWithConfig(srv.URL).Diagnostics()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse response")
	})
}
