// Package capture wraps a speech-to-text capability behind a controller
// that owns the session lifecycle and the auto-restart policy.
//
// The concrete engine (microphone + whisper) is injected, so the
// orchestrator and the tests never touch audio hardware directly.
package capture

import (
	"errors"
	"time"
)

// Capability errors. These are terminal for the current capture attempt
// and are surfaced to the user; everything else is treated as transient.
var (
	ErrUnsupported      = errors.New("speech capture unsupported")
	ErrPermissionDenied = errors.New("microphone permission denied")
)

// Terminal reports whether a capture error ends capture for good rather
// than being recovered by a restart.
func Terminal(err error) bool {
	return errors.Is(err, ErrUnsupported) || errors.Is(err, ErrPermissionDenied)
}

type EventKind int

const (
	// KindInterim carries revisable transcript text. Never persisted.
	KindInterim EventKind = iota

	// KindFinal carries the authoritative transcript for one utterance
	// and ends the session.
	KindFinal

	// KindEnded means the engine ended the session on its own without a
	// final transcript, silence timeout being the usual cause.
	KindEnded

	// KindError carries a session failure.
	KindError
)

type Event struct {
	Kind EventKind
	Text string
	Err  error
}

type Config struct {
	Language     string
	SampleRate   int
	SilenceAfter time.Duration
	MaxUtterance time.Duration
}

// Session is one ephemeral capture attempt. Its event channel closes when
// the session is over; sessions are never reused.
type Session interface {
	Events() <-chan Event
	Stop()
}

// Engine is the injected speech-to-text capability.
type Engine interface {
	Start(cfg Config) (Session, error)
}
