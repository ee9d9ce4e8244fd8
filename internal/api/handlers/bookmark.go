package handlers

import (
	"github.com/cloo-solutions/bookmind/internal/domain"
	"github.com/cloo-solutions/bookmind/internal/service"
)

type BookmarkResponse struct {
	ID          string   `json:"id"`
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags"`
	CategoryID  string   `json:"category_id,omitempty"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

func bookmarkToResponse(b *domain.Bookmark) *BookmarkResponse {
	tags := b.Tags
	if tags == nil {
		tags = []string{}
	}
	return &BookmarkResponse{
		ID:          b.ID,
		URL:         b.URL,
		Title:       b.Title,
		Description: b.Description,
		Tags:        tags,
		CategoryID:  b.CategoryID,
		CreatedAt:   b.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		UpdatedAt:   b.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

func bookmarksToResponse(bs []*domain.Bookmark) []*BookmarkResponse {
	out := make([]*BookmarkResponse, len(bs))
	for i, b := range bs {
		out[i] = bookmarkToResponse(b)
	}
	return out
}

type ChatResponse struct {
	Response     string                    `json:"response"`
	Suggestions  []string                  `json:"suggestions"`
	Bookmarks    []*BookmarkResponse       `json:"bookmarks"`
	SearchResult *service.SearchResult     `json:"search_result,omitempty"`
	Request      service.SearchRequest     `json:"request"`
	State        service.ConversationState `json:"state"`
}

func chatToResponse(r *service.ChatResponse) *ChatResponse {
	suggestions := r.Suggestions
	if suggestions == nil {
		suggestions = []string{}
	}
	return &ChatResponse{
		Response:     r.Response,
		Suggestions:  suggestions,
		Bookmarks:    bookmarksToResponse(r.Bookmarks),
		SearchResult: r.SearchResult,
		Request:      r.Request,
		State:        r.State,
	}
}
