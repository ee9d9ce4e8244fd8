package service

import (
	"sync"
)

// MaxShortMemory caps stored turns at six user/assistant round-trips.
const MaxShortMemory = 12

// Turn is one utterance in a conversation.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationState is the caller-held memory of a chat. It is treated as an
// immutable value: every operation returns a fresh copy.
type ConversationState struct {
	LastIntent        Intent        `json:"last_intent,omitempty"`
	LastQuery         string        `json:"last_query,omitempty"`
	Filters           SearchFilters `json:"filters"`
	SeenBookmarkIDs   []string      `json:"seen_bookmark_ids"`
	ShortMemory       []Turn        `json:"short_memory"`
	LongMemorySummary string        `json:"long_memory_summary,omitempty"`
}

// NewConversationState returns an empty state.
func NewConversationState() ConversationState {
	return ConversationState{
		SeenBookmarkIDs: []string{},
		ShortMemory:     []Turn{},
	}
}

// Clone returns a deep copy of s.
func (s ConversationState) Clone() ConversationState {
	out := s
	out.Filters = s.Filters.Clone()
	out.SeenBookmarkIDs = append([]string{}, s.SeenBookmarkIDs...)
	out.ShortMemory = append([]Turn{}, s.ShortMemory...)
	return out
}

// HasSeen reports whether id was already shown.
func (s ConversationState) HasSeen(id string) bool {
	for _, seen := range s.SeenBookmarkIDs {
		if seen == id {
			return true
		}
	}
	return false
}

// withSeen returns a copy with ids unioned into the seen set.
func (s ConversationState) withSeen(ids []string) ConversationState {
	out := s.Clone()
	known := idSet(out.SeenBookmarkIDs)
	for _, id := range ids {
		if _, ok := known[id]; ok {
			continue
		}
		known[id] = struct{}{}
		out.SeenBookmarkIDs = append(out.SeenBookmarkIDs, id)
	}
	return out
}

// withTurn returns a copy with a user/assistant pair appended, dropping the
// oldest entries beyond MaxShortMemory.
func (s ConversationState) withTurn(user, assistant string) ConversationState {
	out := s.Clone()
	out.ShortMemory = append(out.ShortMemory,
		Turn{Role: RoleUser, Text: user},
		Turn{Role: RoleAssistant, Text: assistant},
	)
	if n := len(out.ShortMemory); n > MaxShortMemory {
		out.ShortMemory = append([]Turn{}, out.ShortMemory[n-MaxShortMemory:]...)
	}
	return out
}

// ConversationTracker holds the latest state of one conversation and drops
// results of superseded requests. Safe for concurrent use.
type ConversationTracker struct {
	mu     sync.Mutex
	latest uint64
	state  ConversationState
}

// NewConversationTracker creates a tracker starting from an empty state.
func NewConversationTracker() *ConversationTracker {
	return &ConversationTracker{state: NewConversationState()}
}

// Begin issues a new request token and returns the state to search against.
// Any earlier token becomes stale.
func (t *ConversationTracker) Begin() (uint64, ConversationState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.latest++
	return t.latest, t.state.Clone()
}

// Commit stores next if token is still the latest issued; otherwise it
// reports false and keeps the current state.
func (t *ConversationTracker) Commit(token uint64, next ConversationState) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if token != t.latest {
		return false
	}
	t.state = next.Clone()
	return true
}

// State returns a copy of the current state.
func (t *ConversationTracker) State() ConversationState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Clone()
}

// Reset discards the conversation and invalidates in-flight requests.
func (t *ConversationTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.latest++
	t.state = NewConversationState()
}
