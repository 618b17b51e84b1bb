package capture

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSessionConfig() Config {
	return Config{
		Language:     "auto",
		SampleRate:   16000,
		SilenceAfter: 60 * time.Millisecond,
		MaxUtterance: 15 * time.Second,
	}
}

// newTestSession drives the frame loop through injected read/stt
// functions; read fills buf the way stream.Read would.
func newTestSession(cfg Config, buf []float32, read func() error, stt func([]float32) string) *micSession {
	s := &micSession{
		cfg:        cfg,
		buf:        buf,
		read:       read,
		cleanup:    func() {},
		stt:        stt,
		events:     make(chan Event, 4),
		stop:       make(chan struct{}),
		interimRes: make(chan string, 1),
	}
	go s.run()
	return s
}

func fill(buf []float32, v float32) {
	for i := range buf {
		buf[i] = v
	}
}

func nextEvent(t *testing.T, s *micSession) Event {
	t.Helper()
	select {
	case ev, ok := <-s.Events():
		require.True(t, ok, "event channel closed early")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session event")
		return Event{}
	}
}

// The frame loop must keep draining the device while an interim
// transcription is in flight; a stalled loop overflows the input buffer
// and kills the session mid-utterance.
func TestReadLoopStaysHotDuringInterim(t *testing.T) {
	var (
		reads   atomic.Int64
		loud    atomic.Bool
		sttIn   = make(chan struct{})
		release = make(chan struct{})
		sttN    atomic.Int64
	)
	loud.Store(true)

	buf := make([]float32, frameSize)
	s := newTestSession(testSessionConfig(), buf,
		func() error {
			reads.Add(1)
			if loud.Load() {
				fill(buf, 0.5)
			} else {
				fill(buf, 0)
			}
			time.Sleep(time.Millisecond)
			return nil
		},
		func(pcm []float32) string {
			if sttN.Add(1) == 1 {
				close(sttIn)
				<-release
				return "תזכיר לי"
			}
			return "תזכיר לי משהו"
		},
	)
	defer s.Stop()

	select {
	case <-sttIn:
	case <-time.After(2 * time.Second):
		t.Fatal("interim transcription never started")
	}

	// Frames must keep flowing while the transcription blocks.
	before := reads.Load()
	deadline := time.After(2 * time.Second)
	for reads.Load() < before+20 {
		select {
		case <-deadline:
			t.Fatalf("read loop stalled during transcription: %d reads since", reads.Load()-before)
		case <-time.After(time.Millisecond):
		}
	}
	assert.Equal(t, int64(1), sttN.Load(), "no second transcription while one is in flight")

	close(release)

	sawInterim := false
	for {
		ev := nextEvent(t, s)
		if ev.Kind == KindInterim {
			sawInterim = true
			// First interim landed; go silent so the utterance endpoints.
			loud.Store(false)
			continue
		}
		require.Equal(t, KindFinal, ev.Kind)
		assert.Equal(t, "תזכיר לי משהו", ev.Text)
		break
	}
	assert.True(t, sawInterim, "interim transcript delivered once unblocked")
}

// An interim result that lands after the endpoint is dropped, never
// delivered after the final transcript.
func TestLateInterimResultDropped(t *testing.T) {
	var (
		loud    atomic.Bool
		release = make(chan struct{})
		sttN    atomic.Int64
	)
	loud.Store(true)

	buf := make([]float32, frameSize)
	s := newTestSession(testSessionConfig(), buf,
		func() error {
			if loud.Load() {
				fill(buf, 0.5)
			} else {
				fill(buf, 0)
			}
			return nil
		},
		func(pcm []float32) string {
			if sttN.Add(1) == 1 {
				// Endpoint while this interim is stuck.
				loud.Store(false)
				<-release
				return "stale partial"
			}
			return "מה השעה"
		},
	)

	ev := nextEvent(t, s)
	assert.Equal(t, KindFinal, ev.Kind)
	assert.Equal(t, "מה השעה", ev.Text)

	close(release)
	select {
	case ev, ok := <-s.Events():
		require.False(t, ok, "unexpected event after final: %v", ev.Kind)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("event channel not closed after final")
	}
}

func TestSilentSessionEnds(t *testing.T) {
	buf := make([]float32, frameSize)
	s := newTestSession(testSessionConfig(), buf,
		func() error { fill(buf, 0); return nil },
		func([]float32) string { t.Error("transcribed silence"); return "" },
	)

	ev := nextEvent(t, s)
	assert.Equal(t, KindEnded, ev.Kind)
}

func TestEmptyFinalTranscriptEnds(t *testing.T) {
	var loud atomic.Bool
	loud.Store(true)

	buf := make([]float32, frameSize)
	s := newTestSession(testSessionConfig(), buf,
		func() error {
			if loud.Load() {
				fill(buf, 0.5)
				loud.Store(false)
			} else {
				fill(buf, 0)
			}
			return nil
		},
		func([]float32) string { return "" },
	)

	ev := nextEvent(t, s)
	assert.Equal(t, KindEnded, ev.Kind)
}

func TestReadErrorEndsSession(t *testing.T) {
	buf := make([]float32, frameSize)
	s := newTestSession(testSessionConfig(), buf,
		func() error { return errors.New("input overflowed") },
		func([]float32) string { return "" },
	)

	ev := nextEvent(t, s)
	assert.Equal(t, KindError, ev.Kind)
	assert.ErrorContains(t, ev.Err, "input overflowed")
}

func TestMaxUtteranceCutsOff(t *testing.T) {
	cfg := testSessionConfig()
	cfg.MaxUtterance = 200 * time.Millisecond

	buf := make([]float32, frameSize)
	s := newTestSession(cfg, buf,
		func() error { fill(buf, 0.5); return nil },
		func([]float32) string { return "עד כאן" },
	)

	ev := nextEvent(t, s)
	assert.Equal(t, KindFinal, ev.Kind)
	assert.Equal(t, "עד כאן", ev.Text)
}

func TestStopEndsSessionWithoutEvent(t *testing.T) {
	buf := make([]float32, frameSize)
	s := newTestSession(testSessionConfig(), buf,
		func() error {
			fill(buf, 0.5)
			time.Sleep(time.Millisecond)
			return nil
		},
		func([]float32) string { return "" },
	)

	s.Stop()

	select {
	case ev, ok := <-s.Events():
		require.False(t, ok, "unexpected event after stop: %v", ev.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("event channel not closed after stop")
	}
}
