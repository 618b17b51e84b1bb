package playback

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/faiface/beep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeWAV builds a minimal 16-bit mono PCM clip the decoder accepts.
func makeWAV(t *testing.T, samples int) []byte {
	t.Helper()

	var data bytes.Buffer
	for i := 0; i < samples; i++ {
		require.NoError(t, binary.Write(&data, binary.LittleEndian, int16(i)))
	}

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+data.Len()))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(8000))
	binary.Write(&buf, binary.LittleEndian, uint32(8000*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(data.Len()))
	buf.Write(data.Bytes())
	return buf.Bytes()
}

// drainingController runs streams to exhaustion instead of touching a
// real audio device, so the end-of-clip callback fires.
func drainingController() *Controller {
	c := &Controller{}
	c.start = func(_ beep.Format, s beep.Streamer) error {
		go func() {
			buf := make([][2]float64, 512)
			for {
				if _, ok := s.Stream(buf); !ok {
					return
				}
			}
		}()
		return nil
	}
	c.clear = func() {}
	c.decode = decode
	return c
}

// idleController never drains, leaving clips "playing" until cancelled.
func idleController() (*Controller, *int) {
	clears := 0
	c := &Controller{}
	c.start = func(beep.Format, beep.Streamer) error { return nil }
	c.clear = func() { clears++ }
	c.decode = decode
	return c, &clears
}

func waitResult(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("play never settled")
		return Result{}
	}
}

func TestPlaySettlesEnded(t *testing.T) {
	c := drainingController()

	res := waitResult(t, c.Play(makeWAV(t, 800)))
	assert.Equal(t, OutcomeEnded, res.Outcome)
	assert.NoError(t, res.Err)
}

func TestDecodeFailureSettlesErrored(t *testing.T) {
	started := false
	c := &Controller{}
	c.start = func(beep.Format, beep.Streamer) error { started = true; return nil }
	c.clear = func() {}
	c.decode = decode

	res := waitResult(t, c.Play([]byte("definitely not audio")))
	assert.Equal(t, OutcomeErrored, res.Outcome)
	assert.Error(t, res.Err)
	assert.False(t, started, "nothing reaches the speaker on a codec rejection")
}

func TestTinyClipSettlesErrored(t *testing.T) {
	c, _ := idleController()
	res := waitResult(t, c.Play([]byte{0xFF}))
	assert.Equal(t, OutcomeErrored, res.Outcome)
}

func TestStartFailureSettlesErrored(t *testing.T) {
	c := &Controller{}
	c.start = func(beep.Format, beep.Streamer) error { return assert.AnError }
	c.clear = func() {}
	c.decode = decode

	res := waitResult(t, c.Play(makeWAV(t, 100)))
	assert.Equal(t, OutcomeErrored, res.Outcome)
	assert.ErrorIs(t, res.Err, assert.AnError)
}

func TestCancelSettlesCancelled(t *testing.T) {
	c, clears := idleController()

	done := c.Play(makeWAV(t, 800))
	c.Cancel()

	res := waitResult(t, done)
	assert.Equal(t, OutcomeCancelled, res.Outcome)
	assert.Equal(t, 1, *clears)
}

func TestCancelIsExactlyOnce(t *testing.T) {
	c, _ := idleController()

	done := c.Play(makeWAV(t, 800))
	c.Cancel()
	c.Cancel()

	waitResult(t, done)
	select {
	case r := <-done:
		t.Fatalf("second settlement leaked: %v", r.Outcome)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCancelWithNothingPlaying(t *testing.T) {
	c, clears := idleController()
	c.Cancel()
	assert.Zero(t, *clears)
}

func TestNewPlayCancelsPrevious(t *testing.T) {
	c, _ := idleController()

	first := c.Play(makeWAV(t, 800))
	second := c.Play(makeWAV(t, 800))

	res := waitResult(t, first)
	assert.Equal(t, OutcomeCancelled, res.Outcome)

	select {
	case r := <-second:
		t.Fatalf("second clip settled prematurely: %v", r.Outcome)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDecodeSniffsContainer(t *testing.T) {
	_, _, err := decode(makeWAV(t, 16))
	assert.NoError(t, err)

	_, _, err = decode([]byte("....four-plus bytes, no known magic"))
	assert.Error(t, err)
}

func TestCancelWhileDecodingSkipsStart(t *testing.T) {
	started := 0
	decoding := make(chan struct{})
	release := make(chan struct{})

	c := &Controller{}
	c.start = func(beep.Format, beep.Streamer) error { started++; return nil }
	c.clear = func() {}
	c.decode = func(audio []byte) (beep.StreamSeekCloser, beep.Format, error) {
		close(decoding)
		<-release
		return decode(audio)
	}

	done := make(chan <-chan Result, 1)
	go func() { done <- c.Play(makeWAV(t, 800)) }()

	<-decoding
	c.Cancel()
	close(release)

	res := waitResult(t, <-done)
	assert.Equal(t, OutcomeCancelled, res.Outcome)
	assert.Zero(t, started, "a cancelled clip never reaches the speaker")
}
