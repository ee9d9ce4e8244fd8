package service

import (
	"strings"
	"time"

	"github.com/cloo-solutions/bookmind/internal/domain"
)

// SearchFilters are additive constraints; a zero field means unconstrained.
type SearchFilters struct {
	CategoryID    string   `json:"category_id,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Domain        string   `json:"domain,omitempty"`
	TimeRangeDays int      `json:"time_range_days,omitempty"`
	// Semantic is nil unless a caller explicitly turned semantic search on or off.
	Semantic *bool `json:"semantic,omitempty"`
	// Keyword is nil unless a caller explicitly turned the keyword path on or off.
	Keyword *bool `json:"keyword,omitempty"`
}

// BoolPtr returns a pointer to v.
func BoolPtr(v bool) *bool {
	return &v
}

// SemanticDisabled reports whether semantic search was explicitly switched off.
func (f SearchFilters) SemanticDisabled() bool {
	return f.Semantic != nil && !*f.Semantic
}

// KeywordDisabled reports whether keyword search was explicitly switched off.
func (f SearchFilters) KeywordDisabled() bool {
	return f.Keyword != nil && !*f.Keyword
}

// PopulatedCount counts the populated constraint fields.
func (f SearchFilters) PopulatedCount() int {
	n := 0
	if f.CategoryID != "" {
		n++
	}
	if len(f.Tags) > 0 {
		n++
	}
	if f.Domain != "" {
		n++
	}
	if f.TimeRangeDays > 0 {
		n++
	}
	return n
}

// IsEmpty reports whether no constraint is set.
func (f SearchFilters) IsEmpty() bool {
	return f.PopulatedCount() == 0 && f.Semantic == nil && f.Keyword == nil
}

// Clone returns a deep copy.
func (f SearchFilters) Clone() SearchFilters {
	out := f
	if f.Tags != nil {
		out.Tags = append([]string(nil), f.Tags...)
	}
	if f.Semantic != nil {
		out.Semantic = BoolPtr(*f.Semantic)
	}
	if f.Keyword != nil {
		out.Keyword = BoolPtr(*f.Keyword)
	}
	return out
}

// Overlay returns base with every non-empty field of update applied on top.
func (f SearchFilters) Overlay(update SearchFilters) SearchFilters {
	out := f.Clone()
	if update.CategoryID != "" {
		out.CategoryID = update.CategoryID
	}
	if len(update.Tags) > 0 {
		out.Tags = append([]string(nil), update.Tags...)
	}
	if update.Domain != "" {
		out.Domain = update.Domain
	}
	if update.TimeRangeDays > 0 {
		out.TimeRangeDays = update.TimeRangeDays
	}
	if update.Semantic != nil {
		out.Semantic = BoolPtr(*update.Semantic)
	}
	if update.Keyword != nil {
		out.Keyword = BoolPtr(*update.Keyword)
	}
	return out
}

// FilterReset names inherited constraints a follow-up drops before its own
// filters are layered on.
type FilterReset struct {
	TimeRange bool `json:"time_range,omitempty"`
	Semantic  bool `json:"semantic,omitempty"`
	Keyword   bool `json:"keyword,omitempty"`
}

func (r FilterReset) IsZero() bool {
	return r == FilterReset{}
}

// Apply returns a copy of f without the reset constraints.
func (r FilterReset) Apply(f SearchFilters) SearchFilters {
	out := f.Clone()
	if r.TimeRange {
		out.TimeRangeDays = 0
	}
	if r.Semantic {
		out.Semantic = nil
	}
	if r.Keyword {
		out.Keyword = nil
	}
	return out
}

// MatchesFilters is the single predicate deciding whether a bookmark satisfies
// the category, tag, domain and time-range constraints.
func MatchesFilters(b *domain.Bookmark, f SearchFilters, now time.Time) bool {
	if b == nil || b.Deleted {
		return false
	}
	if f.CategoryID != "" && b.CategoryID != f.CategoryID {
		return false
	}
	if len(f.Tags) > 0 && !hasAnyTag(b, f.Tags) {
		return false
	}
	if f.Domain != "" {
		d := strings.ToLower(strings.TrimSpace(f.Domain))
		if !strings.Contains(b.Hostname(), d) && !strings.Contains(strings.ToLower(b.URL), d) {
			return false
		}
	}
	if f.TimeRangeDays > 0 {
		cutoff := now.Add(-time.Duration(f.TimeRangeDays) * 24 * time.Hour)
		if b.CreatedAt.Before(cutoff) {
			return false
		}
	}
	return true
}

func hasAnyTag(b *domain.Bookmark, tags []string) bool {
	for _, t := range tags {
		if b.HasTag(t) {
			return true
		}
	}
	return false
}

func idSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
