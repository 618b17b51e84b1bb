package capture

import (
	"log/slog"
	"sync"
)

// Controller owns the current capture session and the restart policy.
// Events are delivered through the emit callback; events from sessions
// that are no longer current are dropped, so nothing can resurrect state
// after Stop.
type Controller struct {
	engine  Engine
	cfg     Config
	restart bool
	emit    func(Event)

	mu      sync.Mutex
	cur     Session
	active  bool
	interim string
}

// NewController wires an engine to an event sink. With restart enabled
// (continuous mode) an engine-initiated session end is recovered by
// starting a fresh session with identical configuration.
func NewController(engine Engine, cfg Config, restart bool, emit func(Event)) *Controller {
	return &Controller{engine: engine, cfg: cfg, restart: restart, emit: emit}
}

// Start begins a capture session. Idempotent while a session is live.
// Returns ErrUnsupported or ErrPermissionDenied when the capability is
// missing or refused.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active && c.cur != nil {
		return nil
	}
	return c.startLocked()
}

func (c *Controller) startLocked() error {
	sess, err := c.engine.Start(c.cfg)
	if err != nil {
		c.active = false
		return err
	}
	c.cur = sess
	c.active = true
	c.interim = ""
	go c.pump(sess)
	return nil
}

// Stop ends the current session immediately and returns any accumulated
// interim text so the caller can decide whether to harvest it. No event
// from the stopped session is delivered after Stop returns.
func (c *Controller) Stop() string {
	c.mu.Lock()
	sess := c.cur
	text := c.interim
	c.cur = nil
	c.active = false
	c.interim = ""
	c.mu.Unlock()

	if sess != nil {
		sess.Stop()
	}
	return text
}

// Active reports whether a session is currently live.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active && c.cur != nil
}

func (c *Controller) pump(sess Session) {
	for ev := range sess.Events() {
		c.mu.Lock()
		if sess != c.cur {
			c.mu.Unlock()
			return
		}

		switch ev.Kind {
		case KindInterim:
			c.interim = ev.Text
			c.mu.Unlock()
			c.emit(ev)

		case KindFinal:
			// Terminal for this utterance; the orchestrator takes over.
			c.cur = nil
			c.active = false
			c.interim = ""
			c.mu.Unlock()
			c.emit(ev)
			return

		case KindEnded:
			if c.restartLocked(sess) {
				return
			}
			c.mu.Unlock()
			c.emit(ev)
			return

		case KindError:
			if !Terminal(ev.Err) && c.restartLocked(sess) {
				slog.Debug("transient capture error, restarted", "err", ev.Err)
				return
			}
			c.cur = nil
			c.active = false
			c.mu.Unlock()
			c.emit(ev)
			return
		}
	}
}

// restartLocked replaces an engine-ended session while the caller still
// wants capture. Caller holds the lock; it is released on success.
func (c *Controller) restartLocked(ended Session) bool {
	if !c.restart || !c.active {
		c.cur = nil
		c.active = false
		return false
	}
	if err := c.startLocked(); err != nil {
		c.cur = nil
		c.active = false
		c.mu.Unlock()
		c.emit(Event{Kind: KindError, Err: err})
		return true
	}
	c.mu.Unlock()
	return true
}
