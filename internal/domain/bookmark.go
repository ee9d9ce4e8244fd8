package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Bookmark represents a saved page in the user's collection
type Bookmark struct {
	ID          string
	URL         string
	Title       string
	Description string
	Tags        []string
	CategoryID  string // Empty when uncategorized
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Deleted     bool
}

// Category represents a node in the bookmark category tree
type Category struct {
	ID       string
	Name     string
	ParentID string // Empty for root categories
	Order    int
}

// NewBookmark creates a new Bookmark instance
func NewBookmark(id, rawURL, title, description string, tags []string, categoryID string, createdAt time.Time) *Bookmark {
	return &Bookmark{
		ID:          id,
		URL:         rawURL,
		Title:       title,
		Description: description,
		Tags:        NormalizeTags(tags),
		CategoryID:  categoryID,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

// ValidateBookmark validates a Bookmark instance
func ValidateBookmark(b *Bookmark) error {
	if b == nil {
		return fmt.Errorf("bookmark cannot be nil")
	}
	if b.ID == "" {
		return fmt.Errorf("bookmark ID is required")
	}
	if strings.TrimSpace(b.URL) == "" {
		return fmt.Errorf("bookmark URL is required")
	}
	if _, err := url.Parse(b.URL); err != nil {
		return fmt.Errorf("bookmark URL is invalid: %w", err)
	}
	if b.CreatedAt.IsZero() {
		return fmt.Errorf("bookmark CreatedAt is required")
	}
	return nil
}

// Hostname returns the lowercased host of the bookmark URL, or the raw URL
// when it cannot be parsed.
func (b *Bookmark) Hostname() string {
	u, err := url.Parse(b.URL)
	if err != nil || u.Host == "" {
		return strings.ToLower(b.URL)
	}
	return strings.ToLower(u.Hostname())
}

// AgeDays returns the number of days between the bookmark's creation and now.
func (b *Bookmark) AgeDays(now time.Time) float64 {
	if b.CreatedAt.IsZero() {
		return 0
	}
	days := now.Sub(b.CreatedAt).Hours() / 24
	if days < 0 {
		return 0
	}
	return days
}

// HasTag reports whether the bookmark carries the tag, ignoring case.
func (b *Bookmark) HasTag(tag string) bool {
	for _, t := range b.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// NormalizeTags trims, drops empties and de-duplicates tags while keeping order.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}

// CategoryPath returns the names from the root category down to id.
func CategoryPath(categories []*Category, id string) []string {
	byID := make(map[string]*Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}
	var path []string
	visited := make(map[string]bool)
	for cur := byID[id]; cur != nil && !visited[cur.ID]; cur = byID[cur.ParentID] {
		visited[cur.ID] = true
		path = append([]string{cur.Name}, path...)
	}
	return path
}
