// Package orchestrator serializes capture, completion, synthesis and
// playback into a five-state conversation lifecycle. At most one turn is
// in flight at a time, and every failure path lands back in a listening
// or idle state — never stuck in processing or speaking.
package orchestrator

import (
	"context"
	"sync/atomic"
	"time"

	log "log/slog"

	"shimi/internal/capture"
	"shimi/internal/history"
	"shimi/internal/playback"
)

// Completer is the external completion service boundary.
type Completer interface {
	Complete(ctx context.Context, message string, prior []history.Turn) (string, error)
}

// Synthesizer is the external text-to-speech boundary.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Player settles every Play with exactly one result.
type Player interface {
	Play(audio []byte) <-chan playback.Result
	Cancel()
}

// Capturer starts and stops capture sessions; Stop returns harvested
// interim text.
type Capturer interface {
	Start() error
	Stop() string
}

// Hooks surface user-visible signals. All optional; called from the
// orchestrator goroutine.
type Hooks struct {
	OnState   func(State)
	OnError   func(msg string)
	OnInterim func(text string)
	OnReply   func(text string)
}

type Options struct {
	Mode              Mode
	ContextWindow     int
	CompletionTimeout time.Duration
	SynthesisTimeout  time.Duration
}

type Deps struct {
	History     *history.Store
	Completer   Completer
	Synthesizer Synthesizer
	Player      Player

	// NewCapturer builds the capture controller around the orchestrator's
	// event sink.
	NewCapturer func(emit func(capture.Event)) Capturer

	Hooks Hooks
}

type Orchestrator struct {
	opts  Options
	hist  *history.Store
	llm   Completer
	synth Synthesizer
	play  Player
	cap   Capturer
	hooks Hooks

	events chan event

	// Owned by the Run loop.
	state State
	busy  bool
	gen   uint64

	pubState atomic.Int32
}

func New(opts Options, d Deps) *Orchestrator {
	if opts.ContextWindow <= 0 {
		opts.ContextWindow = 40
	}
	if opts.CompletionTimeout <= 0 {
		opts.CompletionTimeout = 30 * time.Second
	}
	if opts.SynthesisTimeout <= 0 {
		opts.SynthesisTimeout = 30 * time.Second
	}

	o := &Orchestrator{
		opts:   opts,
		hist:   d.History,
		llm:    d.Completer,
		synth:  d.Synthesizer,
		play:   d.Player,
		hooks:  d.Hooks,
		events: make(chan event, 32),
	}
	o.cap = d.NewCapturer(func(ev capture.Event) { o.post(evCapture{ev}) })
	return o
}

// Run drives the event loop until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			o.cap.Stop()
			o.play.Cancel()
			return
		case e := <-o.events:
			o.dispatch(e)
		}
	}
}

// Arm starts listening. Ignored while a turn is in flight or capture is
// already live.
func (o *Orchestrator) Arm() { o.post(evArm{}) }

// StopAndSend ends the capture session and sends whatever interim text
// accumulated, the push-to-talk release action.
func (o *Orchestrator) StopAndSend() { o.post(evStopSend{}) }

// Cancel disarms everything: capture stops without restarting, playback
// is cancelled, unflushed interim text is discarded.
func (o *Orchestrator) Cancel() { o.post(evCancel{}) }

// ClearHistory resets the persisted conversation log.
func (o *Orchestrator) ClearHistory() { o.post(evClear{}) }

// State reports the lifecycle state for status queries.
func (o *Orchestrator) State() State { return State(o.pubState.Load()) }

// History exposes the store for read-only callers.
func (o *Orchestrator) History() *history.Store { return o.hist }

func (o *Orchestrator) post(e event) { o.events <- e }

func (o *Orchestrator) dispatch(e event) {
	switch e := e.(type) {
	case evArm:
		if o.busy || o.state == StateListening {
			return
		}
		o.startListening()

	case evStopSend:
		if o.busy || o.state != StateListening {
			return
		}
		text := o.cap.Stop()
		if text == "" {
			o.setState(StateIdle)
			return
		}
		o.beginTurn(text)

	case evCancel:
		o.gen++
		o.cap.Stop()
		o.play.Cancel()
		o.busy = false
		o.setState(StateIdle)

	case evClear:
		o.hist.Clear()

	case evCapture:
		o.onCapture(e.ev)

	case evCompleted:
		if e.gen != o.gen || !o.busy {
			return
		}
		if e.err != nil {
			log.Warn("completion failed", "err", e.err)
			o.surface("לא הצלחתי לענות, נסה שוב")
			o.finishTurn()
			return
		}
		o.hist.Append(history.NewTurn(history.RoleAssistant, e.reply))
		if o.hooks.OnReply != nil {
			o.hooks.OnReply(e.reply)
		}
		o.setState(StateSpeaking)
		gen := o.gen
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), o.opts.SynthesisTimeout)
			defer cancel()
			audio, err := o.synth.Synthesize(ctx, e.reply)
			o.post(evSynthesized{gen: gen, audio: audio, err: err})
		}()

	case evSynthesized:
		if e.gen != o.gen || !o.busy {
			return
		}
		if e.err != nil {
			// The text turn is already persisted; only speech is skipped.
			log.Warn("synthesis failed", "err", e.err)
			o.finishTurn()
			return
		}
		done := o.play.Play(e.audio)
		gen := o.gen
		go func() {
			res := <-done
			o.post(evPlayed{gen: gen, res: res})
		}()

	case evPlayed:
		if e.gen != o.gen || !o.busy {
			return
		}
		if e.res.Outcome == playback.OutcomeErrored {
			log.Warn("playback failed", "err", e.res.Err)
		}
		o.finishTurn()
	}
}

func (o *Orchestrator) onCapture(ev capture.Event) {
	switch ev.Kind {
	case capture.KindInterim:
		if o.state == StateListening && o.hooks.OnInterim != nil {
			o.hooks.OnInterim(ev.Text)
		}

	case capture.KindFinal:
		// A final transcript while a turn is in flight is ignored, never
		// interleaved.
		if o.busy || o.state != StateListening {
			return
		}
		o.beginTurn(ev.Text)

	case capture.KindEnded:
		// Engine gave up without a final transcript and the controller
		// chose not to restart (push-to-talk).
		if !o.busy && o.state == StateListening {
			o.setState(StateIdle)
		}

	case capture.KindError:
		log.Error("capture failed", "err", ev.Err)
		o.surface(ev.Err.Error())
		o.setState(StateError)
	}
}

// beginTurn applies the final transcript and starts the request cycle.
// The turn is appended and capture stopped before the completion request
// is issued.
func (o *Orchestrator) beginTurn(text string) {
	o.busy = true
	o.setState(StateProcessing)

	prior := o.hist.Recent(o.opts.ContextWindow)
	o.hist.Append(history.NewTurn(history.RoleUser, text))
	o.cap.Stop()

	gen := o.gen
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), o.opts.CompletionTimeout)
		defer cancel()
		reply, err := o.llm.Complete(ctx, text, prior)
		o.post(evCompleted{gen: gen, reply: reply, err: err})
	}()
}

// finishTurn releases the busy guard and decides the next capture action.
func (o *Orchestrator) finishTurn() {
	o.busy = false
	if o.opts.Mode == ModeContinuous {
		o.startListening()
		return
	}
	o.setState(StateIdle)
}

func (o *Orchestrator) startListening() {
	if err := o.cap.Start(); err != nil {
		log.Error("capture start failed", "err", err)
		o.surface(err.Error())
		o.setState(StateError)
		return
	}
	o.setState(StateListening)
}

func (o *Orchestrator) setState(s State) {
	if o.state == s {
		return
	}
	o.state = s
	o.pubState.Store(int32(s))
	if o.hooks.OnState != nil {
		o.hooks.OnState(s)
	}
}

func (o *Orchestrator) surface(msg string) {
	if o.hooks.OnError != nil {
		o.hooks.OnError(msg)
	}
}
