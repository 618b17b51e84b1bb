package history

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shimi/internal/kv"
)

func TestAppendPreservesOrder(t *testing.T) {
	s := NewStore(kv.NewMem(), 200)

	s.Append(NewTurn(RoleUser, "שלום"))
	s.Append(NewTurn(RoleAssistant, "אהלן, מה נשמע"))
	s.Append(NewTurn(RoleUser, "מה השעה"))

	turns := s.Turns()
	require.Len(t, turns, 3)
	assert.Equal(t, "שלום", turns[0].Text)
	assert.Equal(t, "אהלן, מה נשמע", turns[1].Text)
	assert.Equal(t, "מה השעה", turns[2].Text)
	assert.NotEqual(t, turns[0].ID, turns[1].ID)
}

func TestAppendTruncatesToLimit(t *testing.T) {
	s := NewStore(kv.NewMem(), 200)

	for i := 0; i < 250; i++ {
		s.Append(NewTurn(RoleUser, fmt.Sprintf("turn %d", i)))
	}

	turns := s.Turns()
	require.Len(t, turns, 200)
	assert.Equal(t, "turn 50", turns[0].Text, "oldest turns are dropped first")
	assert.Equal(t, "turn 249", turns[199].Text)
}

func TestPersistedRoundTrip(t *testing.T) {
	slot := kv.NewMem()

	s := NewStore(slot, 200)
	s.Append(NewTurn(RoleUser, "שלום"))
	s.Append(NewTurn(RoleAssistant, "אהלן"))

	reloaded := NewStore(slot, 200)
	turns := reloaded.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, RoleUser, turns[0].Role)
	assert.Equal(t, "אהלן", turns[1].Text)
	assert.False(t, turns[0].CreatedAt.IsZero())
}

func TestCorruptPayloadDegradesToEmpty(t *testing.T) {
	slot := kv.NewMem()
	require.NoError(t, slot.Save([]byte("{not even close")))

	s := NewStore(slot, 200)
	assert.Zero(t, s.Len())
}

func TestReloadRespectsSmallerLimit(t *testing.T) {
	slot := kv.NewMem()
	var turns []Turn
	for i := 0; i < 10; i++ {
		turns = append(turns, NewTurn(RoleUser, fmt.Sprintf("turn %d", i)))
	}
	data, err := json.Marshal(turns)
	require.NoError(t, err)
	require.NoError(t, slot.Save(data))

	s := NewStore(slot, 4)
	got := s.Turns()
	require.Len(t, got, 4)
	assert.Equal(t, "turn 6", got[0].Text)
}

func TestRecentIsDistinctFromLimit(t *testing.T) {
	s := NewStore(kv.NewMem(), 200)
	for i := 0; i < 60; i++ {
		s.Append(NewTurn(RoleUser, fmt.Sprintf("turn %d", i)))
	}

	window := s.Recent(40)
	require.Len(t, window, 40)
	assert.Equal(t, "turn 20", window[0].Text)
	assert.Equal(t, "turn 59", window[39].Text)
	assert.Equal(t, 60, s.Len(), "persisted log keeps more than the context window")
}

func TestClear(t *testing.T) {
	slot := kv.NewMem()
	s := NewStore(slot, 200)
	s.Append(NewTurn(RoleUser, "שלום"))

	s.Clear()
	assert.Zero(t, s.Len())

	reloaded := NewStore(slot, 200)
	assert.Zero(t, reloaded.Len(), "clear empties the persisted slot too")
}

func TestTurnsReturnsCopy(t *testing.T) {
	s := NewStore(kv.NewMem(), 200)
	s.Append(NewTurn(RoleUser, "שלום"))

	got := s.Turns()
	got[0].Text = "mutated"

	assert.Equal(t, "שלום", s.Turns()[0].Text)
}
