// Package playback plays one synthesized audio clip at a time and settles
// every Play with exactly one of: ended, errored, cancelled. The settle is
// guaranteed even when playback never starts, so the orchestrator cannot
// block on SPEAKING.
package playback

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/vorbis"
	"github.com/faiface/beep/wav"
)

type Outcome int

const (
	OutcomeEnded Outcome = iota
	OutcomeErrored
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEnded:
		return "ended"
	case OutcomeErrored:
		return "errored"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

type Result struct {
	Outcome Outcome
	Err     error
}

// Controller plays through the speaker. The start/clear/decode seams
// exist so tests can run without an audio device.
type Controller struct {
	mu  sync.Mutex
	cur *session

	start  func(format beep.Format, s beep.Streamer) error
	clear  func()
	decode func(audio []byte) (beep.StreamSeekCloser, beep.Format, error)
}

func NewController() *Controller {
	c := &Controller{}
	c.start = func(format beep.Format, s beep.Streamer) error {
		if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
			return fmt.Errorf("init speaker: %w", err)
		}
		speaker.Play(s)
		return nil
	}
	c.clear = speaker.Clear
	c.decode = decode
	return c
}

// Play starts playback of an encoded clip (MP3, WAV or Ogg Vorbis,
// sniffed from the leading bytes) and returns a channel that yields the
// single settlement Result. A clip already playing is cancelled first.
func (c *Controller) Play(audio []byte) <-chan Result {
	s := &session{done: make(chan Result, 1)}

	c.mu.Lock()
	prev := c.cur
	c.cur = s
	c.mu.Unlock()

	if prev != nil {
		c.clear()
		prev.settle(Result{Outcome: OutcomeCancelled})
	}

	streamer, format, err := c.decode(audio)
	if err != nil {
		c.drop(s)
		s.settle(Result{Outcome: OutcomeErrored, Err: err})
		return s.done
	}

	// Start only while this session is still current; a Cancel that
	// raced in during decoding already settled it, and nothing may
	// reach the speaker afterwards.
	c.mu.Lock()
	if c.cur != s {
		c.mu.Unlock()
		streamer.Close()
		return s.done
	}
	s.closer = streamer
	seq := beep.Seq(streamer, beep.Callback(func() {
		s.settle(Result{Outcome: OutcomeEnded})
	}))
	err = c.start(format, seq)
	c.mu.Unlock()

	if err != nil {
		c.drop(s)
		streamer.Close()
		s.settle(Result{Outcome: OutcomeErrored, Err: err})
	}
	return s.done
}

// drop clears s from the current slot if it still occupies it.
func (c *Controller) drop(s *session) {
	c.mu.Lock()
	if c.cur == s {
		c.cur = nil
	}
	c.mu.Unlock()
}

// Cancel stops the current clip immediately (barge-in) and settles its
// Play as cancelled. Cancelling with nothing playing is a no-op.
func (c *Controller) Cancel() {
	c.mu.Lock()
	s := c.cur
	c.cur = nil
	c.mu.Unlock()
	if s == nil {
		return
	}

	c.clear()
	if s.closer != nil {
		s.closer.Close()
	}
	s.settle(Result{Outcome: OutcomeCancelled})
}

type session struct {
	done   chan Result
	once   sync.Once
	closer io.Closer
}

func (s *session) settle(r Result) {
	s.once.Do(func() {
		s.done <- r
	})
}

func decode(audio []byte) (beep.StreamSeekCloser, beep.Format, error) {
	if len(audio) < 4 {
		return nil, beep.Format{}, fmt.Errorf("audio clip too short to decode")
	}
	rc := io.NopCloser(bytes.NewReader(audio))

	switch {
	case bytes.HasPrefix(audio, []byte("RIFF")):
		return wav.Decode(rc)
	case bytes.HasPrefix(audio, []byte("OggS")):
		return vorbis.Decode(rc)
	case bytes.HasPrefix(audio, []byte("ID3")), audio[0] == 0xFF && audio[1]&0xE0 == 0xE0:
		return mp3.Decode(rc)
	default:
		return nil, beep.Format{}, fmt.Errorf("unrecognized audio container")
	}
}
