package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationState_CloneIsIndependent(t *testing.T) {
	s := NewConversationState()
	s.Filters.Tags = []string{"go"}
	s.SeenBookmarkIDs = []string{"a"}
	s.ShortMemory = []Turn{{Role: RoleUser, Text: "hi"}}

	c := s.Clone()
	c.Filters.Tags[0] = "rust"
	c.SeenBookmarkIDs[0] = "b"
	c.ShortMemory[0].Text = "bye"

	assert.Equal(t, []string{"go"}, s.Filters.Tags)
	assert.Equal(t, []string{"a"}, s.SeenBookmarkIDs)
	assert.Equal(t, "hi", s.ShortMemory[0].Text)
}

func TestConversationState_WithSeenUnions(t *testing.T) {
	s := NewConversationState().withSeen([]string{"a", "b"})
	next := s.withSeen([]string{"b", "c", "c"})

	assert.Equal(t, []string{"a", "b"}, s.SeenBookmarkIDs)
	assert.Equal(t, []string{"a", "b", "c"}, next.SeenBookmarkIDs)
	assert.True(t, next.HasSeen("c"))
	assert.False(t, next.HasSeen("d"))
}

func TestConversationState_WithTurnCapsMemory(t *testing.T) {
	s := NewConversationState()
	for i := 0; i < 20; i++ {
		s = s.withTurn("q", "a")
		assert.LessOrEqual(t, len(s.ShortMemory), MaxShortMemory)
	}
	require.Len(t, s.ShortMemory, MaxShortMemory)
	assert.Equal(t, RoleUser, s.ShortMemory[0].Role)
}

func TestConversationTracker_DropsStaleResults(t *testing.T) {
	tr := NewConversationTracker()

	first, _ := tr.Begin()
	second, base := tr.Begin()
	assert.Greater(t, second, first)

	newer := base.withSeen([]string{"new"})
	older := base.withSeen([]string{"old"})

	assert.True(t, tr.Commit(second, newer))
	assert.False(t, tr.Commit(first, older))
	assert.Equal(t, []string{"new"}, tr.State().SeenBookmarkIDs)
}

func TestConversationTracker_ResetInvalidatesInFlight(t *testing.T) {
	tr := NewConversationTracker()
	token, s := tr.Begin()
	s.LastQuery = "golang"

	tr.Reset()
	assert.False(t, tr.Commit(token, s))
	assert.Equal(t, "", tr.State().LastQuery)
}

func TestConversationTracker_Concurrent(t *testing.T) {
	tr := NewConversationTracker()
	var wg sync.WaitGroup
	committed := make(chan uint64, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, s := tr.Begin()
			if tr.Commit(token, s) {
				committed <- token
			}
		}()
	}
	wg.Wait()
	close(committed)

	// at least the last issued token always commits
	var count int
	for range committed {
		count++
	}
	assert.GreaterOrEqual(t, count, 1)
}
