// Package history keeps the bounded, ordered log of conversation turns.
//
// Two separate truncation policies apply to the same log: the persisted
// log keeps the most recent Limit turns, while the context window handed
// to the completion service keeps only the most recent Window turns.
package history

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"shimi/internal/kv"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one persisted user or assistant utterance. Immutable once created.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTurn stamps a fresh turn.
func NewTurn(role Role, text string) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		CreatedAt: time.Now(),
	}
}

// Store is the append-only turn log. The orchestrator is its only
// writer, but the control socket reads it concurrently.
type Store struct {
	mu    sync.Mutex
	slot  kv.Store
	limit int
	turns []Turn
}

// NewStore loads the persisted log from slot. A corrupt or absent payload
// degrades to an empty history, never an error.
func NewStore(slot kv.Store, limit int) *Store {
	s := &Store{slot: slot, limit: limit}
	s.turns = s.load()
	return s
}

func (s *Store) load() []Turn {
	data, err := s.slot.Load()
	if err != nil || len(data) == 0 {
		if err != nil {
			slog.Debug("history load failed, starting empty", "err", err)
		}
		return nil
	}

	var turns []Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		slog.Warn("history payload corrupt, starting empty", "err", err)
		return nil
	}
	return truncate(turns, s.limit)
}

// Append adds one turn, re-persists the truncated log and returns it.
func (s *Store) Append(t Turn) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = truncate(append(s.turns, t), s.limit)
	s.persist()
	return copyTurns(s.turns)
}

// Turns returns a copy of the current log, oldest first.
func (s *Store) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyTurns(s.turns)
}

// Recent returns the newest n turns in original order. This is the context
// window sent to the completion service, distinct from the persisted bound.
func (s *Store) Recent(n int) []Turn {
	return truncate(s.Turns(), n)
}

// Len reports the number of stored turns.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// Clear empties the log and its persisted slot.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
	if err := s.slot.Clear(); err != nil {
		slog.Debug("history clear failed", "err", err)
	}
}

func (s *Store) persist() {
	data, err := json.Marshal(s.turns)
	if err != nil {
		slog.Debug("history marshal failed", "err", err)
		return
	}
	if err := s.slot.Save(data); err != nil {
		slog.Debug("history persist failed", "err", err)
	}
}

func copyTurns(turns []Turn) []Turn {
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

func truncate(turns []Turn, n int) []Turn {
	if n > 0 && len(turns) > n {
		return turns[len(turns)-n:]
	}
	return turns
}
