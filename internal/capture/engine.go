package capture

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gordonklaus/portaudio"

	"shimi/pkg/audioconv"
	"shimi/pkg/stt"
)

const (
	frameSize = 320 // 20ms at 16 kHz

	speechThreshRMS = 0.015
	interimEvery    = 1500 * time.Millisecond
	idleSession     = 10 * time.Second // no speech at all -> engine ends
)

// MicEngine captures from the default input device and transcribes with
// whisper. One engine serves many sessions; each Start opens a fresh
// stream.
type MicEngine struct {
	tr *stt.Transcriber
}

// NewMicEngine initializes the audio host. A host without audio support
// reports ErrUnsupported.
func NewMicEngine(tr *stt.Transcriber) (*MicEngine, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	return &MicEngine{tr: tr}, nil
}

func (e *MicEngine) Close() {
	portaudio.Terminate()
}

func (e *MicEngine) Start(cfg Config) (Session, error) {
	buf := make([]float32, frameSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(cfg.SampleRate), len(buf), buf)
	if err != nil {
		return nil, classifyOpenErr(err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, classifyOpenErr(err)
	}

	s := &micSession{
		cfg:  cfg,
		buf:  buf,
		read: stream.Read,
		cleanup: func() {
			stream.Stop()
			stream.Close()
		},
		stt:        func(pcm []float32) string { return e.transcribe(cfg, pcm) },
		events:     make(chan Event, 4),
		stop:       make(chan struct{}),
		interimRes: make(chan string, 1),
	}
	go s.run()
	return s, nil
}

func (e *MicEngine) transcribe(cfg Config, pcm []float32) string {
	if len(pcm) < cfg.SampleRate/2 {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := e.tr.TranscribePCM(ctx, pcm, stt.Options{Language: cfg.Language})
	if err != nil {
		return ""
	}
	return strings.TrimSpace(res.Text)
}

func classifyOpenErr(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "no default input") || strings.Contains(msg, "no device") {
		return fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	if strings.Contains(msg, "access") || strings.Contains(msg, "permission") {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return err
}

// micSession reads frames through injected read/stt functions so the
// loop logic is testable without a device or a whisper model.
type micSession struct {
	cfg     Config
	buf     []float32
	read    func() error
	cleanup func()
	stt     func(pcm []float32) string

	events     chan Event
	stop       chan struct{}
	interimRes chan string
}

func (s *micSession) Events() <-chan Event { return s.events }

func (s *micSession) Stop() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
}

// run reads 20ms frames until the utterance endpoints on silence, the
// session idles out, or Stop is called.
//
// Interim transcription is expensive (whisper inference over the whole
// voiced buffer) and must never stall this loop: a loop that stops
// draining the device overflows its buffer and the read error kills the
// session. So interims run on a separate goroutine over a snapshot, one
// at a time, and their results are picked up on a later frame. A result
// that lands after the endpoint is simply never read.
func (s *micSession) run() {
	defer close(s.events)
	defer s.cleanup()

	var (
		voiced       []float32
		speaking     bool
		interimBusy  bool
		silence      time.Duration
		sinceInterim time.Duration
		elapsed      time.Duration
	)

	frameDur := time.Duration(frameSize) * time.Second / time.Duration(s.cfg.SampleRate)

	for {
		select {
		case <-s.stop:
			return
		default:
		}

		if err := s.read(); err != nil {
			s.post(Event{Kind: KindError, Err: fmt.Errorf("read stream: %w", err)})
			return
		}
		elapsed += frameDur

		select {
		case text := <-s.interimRes:
			interimBusy = false
			if text != "" {
				s.post(Event{Kind: KindInterim, Text: text})
			}
		default:
		}

		rms := audioconv.FrameRMS(s.buf)
		if rms > speechThreshRMS {
			speaking = true
			silence = 0
			voiced = append(voiced, s.buf...)
			sinceInterim += frameDur
		} else if speaking {
			silence += frameDur
			voiced = append(voiced, s.buf...)
			if silence >= s.cfg.SilenceAfter {
				s.finalize(voiced)
				return
			}
		}

		if !speaking && elapsed >= idleSession {
			s.post(Event{Kind: KindEnded})
			return
		}
		if speaking && s.cfg.MaxUtterance > 0 && elapsed >= s.cfg.MaxUtterance {
			s.finalize(voiced)
			return
		}

		if speaking && !interimBusy && sinceInterim >= interimEvery {
			sinceInterim = 0
			interimBusy = true
			snap := make([]float32, len(voiced))
			copy(snap, voiced)
			go func() { s.interimRes <- s.stt(snap) }()
		}
	}
}

func (s *micSession) finalize(voiced []float32) {
	text := s.stt(voiced)
	if text == "" {
		s.post(Event{Kind: KindEnded})
		return
	}
	s.post(Event{Kind: KindFinal, Text: text})
}

func (s *micSession) post(ev Event) {
	select {
	case s.events <- ev:
	case <-s.stop:
	}
}
