package realtime

import (
	log "log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	"shimi/pkg/audioconv"
)

// The realtime endpoint speaks 24kHz mono PCM16 in both directions. The
// microphone itself opens at 48kHz, which every input device supports,
// and frames are resampled down before they hit the wire.
const (
	wireSampleRate = 24000
	micSampleRate  = 48000
	micFrame       = 960 // 20ms at the device rate
	outFrame       = 960 // 40ms at the wire rate

	// A device that fails this many reads in a row is gone, not busy.
	micMaxReadFails = 5
)

// Mic streams microphone frames to a send function until stopped. The
// read seam lets tests drive the loop without an audio device.
type Mic struct {
	stream *portaudio.Stream
	buf    []float32
	read   func() error
	stop   chan struct{}
	done   chan struct{}
}

func StartMic(send func(samples []float32) error) (*Mic, error) {
	m := &Mic{
		buf:  make([]float32, micFrame),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	stream, err := portaudio.OpenDefaultStream(1, 0, micSampleRate, len(m.buf), m.buf)
	if err != nil {
		return nil, err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, err
	}
	m.stream = stream
	m.read = stream.Read

	go m.run(send)
	return m, nil
}

func (m *Mic) run(send func([]float32) error) {
	defer close(m.done)
	fails := 0
	for {
		select {
		case <-m.stop:
			return
		default:
		}

		if err := m.read(); err != nil {
			fails++
			if fails >= micMaxReadFails {
				log.Error("mic device unreadable, stopping capture", "err", err, "fails", fails)
				return
			}
			log.Debug("mic read failed", "err", err)
			continue
		}
		fails = 0

		frame := audioconv.ResampleLinear(m.buf, micSampleRate, wireSampleRate)
		if err := send(frame); err != nil {
			log.Debug("mic forward failed", "err", err)
			return
		}
	}
}

func (m *Mic) Stop() {
	close(m.stop)
	if m.stream != nil {
		m.stream.Abort()
	}
	<-m.done
	if m.stream != nil {
		m.stream.Close()
	}
}

// Speaker drains a byte queue of remote PCM16 into the default output
// device, filling with silence when the queue runs dry. Flush empties
// the queue, which is how barge-in cuts the assistant off mid-word.
type Speaker struct {
	mu    sync.Mutex
	queue []byte

	stream *portaudio.Stream
	out    []float32
	stop   chan struct{}
	done   chan struct{}
}

func StartSpeaker() (*Speaker, error) {
	s := &Speaker{
		out:  make([]float32, outFrame),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	stream, err := portaudio.OpenDefaultStream(0, 1, wireSampleRate, len(s.out), s.out)
	if err != nil {
		return nil, err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, err
	}
	s.stream = stream

	go s.run()
	return s, nil
}

func (s *Speaker) Write(pcm []byte) {
	s.mu.Lock()
	s.queue = append(s.queue, pcm...)
	s.mu.Unlock()
}

func (s *Speaker) Flush() {
	s.mu.Lock()
	s.queue = nil
	s.mu.Unlock()
}

func (s *Speaker) run() {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		s.fill()
		if err := s.stream.Write(); err != nil {
			log.Debug("speaker write failed", "err", err)
		}
	}
}

// fill pops up to one frame of queued PCM and zero-pads the rest.
func (s *Speaker) fill() {
	s.mu.Lock()
	n := len(s.queue) / 2
	if n > len(s.out) {
		n = len(s.out)
	}
	samples := audioconv.PCM16LEToFloat32(s.queue[:n*2])
	s.queue = s.queue[n*2:]
	s.mu.Unlock()

	copy(s.out, samples)
	for i := n; i < len(s.out); i++ {
		s.out[i] = 0
	}
}

func (s *Speaker) Stop() {
	close(s.stop)
	s.stream.Abort()
	<-s.done
	s.stream.Close()
}
