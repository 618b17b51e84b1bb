package realtime

import (
	log "log/slog"
	"strings"
	"sync/atomic"

	"shimi/internal/history"
	"shimi/internal/orchestrator"
)

// Conversation applies transport signals to the shared lifecycle states
// and the persisted history. Capture, completion and synthesis all live
// on the server side here; only transcripts and state flow through.
type Conversation struct {
	hist  *history.Store
	hooks orchestrator.Hooks

	partial strings.Builder

	pubState atomic.Int32
	closed   chan struct{}
}

func NewConversation(hist *history.Store, hooks orchestrator.Hooks) *Conversation {
	c := &Conversation{
		hist:   hist,
		hooks:  hooks,
		closed: make(chan struct{}),
	}
	c.setState(orchestrator.StateListening)
	return c
}

// State reports the current lifecycle state for status queries.
func (c *Conversation) State() orchestrator.State {
	return orchestrator.State(c.pubState.Load())
}

// Done is closed when the session ends; the user re-initiates.
func (c *Conversation) Done() <-chan struct{} { return c.closed }

// Handle is the transport's emit callback. Signals arrive from the single
// read loop goroutine, so no locking is needed beyond the state mirror.
func (c *Conversation) Handle(sig Signal) {
	switch sig.Kind {
	case SignalSpeechStarted:
		// Barge-in: the transport already flushed the speaker queue.
		c.partial.Reset()
		c.setState(orchestrator.StateListening)

	case SignalSpeechStopped:
		c.setState(orchestrator.StateProcessing)

	case SignalInputTranscript:
		text := strings.TrimSpace(sig.Text)
		if text == "" {
			return
		}
		c.hist.Append(history.NewTurn(history.RoleUser, text))

	case SignalOutputDelta:
		c.partial.WriteString(sig.Text)
		c.setState(orchestrator.StateSpeaking)
		if c.hooks.OnInterim != nil {
			c.hooks.OnInterim(c.partial.String())
		}

	case SignalOutputDone:
		text := strings.TrimSpace(sig.Text)
		if text == "" {
			text = strings.TrimSpace(c.partial.String())
		}
		c.partial.Reset()
		if text == "" {
			return
		}
		c.hist.Append(history.NewTurn(history.RoleAssistant, text))
		if c.hooks.OnReply != nil {
			c.hooks.OnReply(text)
		}

	case SignalTurnComplete:
		c.setState(orchestrator.StateListening)

	case SignalError:
		log.Error("realtime session error", "err", sig.Err)
		c.surface(sig.Err.Error())
		c.setState(orchestrator.StateIdle)

	case SignalClosed:
		if sig.Err != nil {
			log.Warn("realtime session closed", "err", sig.Err)
			c.surface(sig.Err.Error())
		}
		c.setState(orchestrator.StateIdle)
		close(c.closed)
	}
}

func (c *Conversation) setState(s orchestrator.State) {
	if orchestrator.State(c.pubState.Load()) == s {
		return
	}
	c.pubState.Store(int32(s))
	if c.hooks.OnState != nil {
		c.hooks.OnState(s)
	}
}

func (c *Conversation) surface(msg string) {
	if c.hooks.OnError != nil {
		c.hooks.OnError(msg)
	}
}
