// Package audioconv converts between the PCM shapes the pipeline uses:
// float32 mono samples for the transcriber, little-endian int16 bytes for
// the realtime wire format.
package audioconv

import (
	"encoding/binary"
	"math"
)

// Float32ToPCM16LE converts float32 samples in [-1, 1] to interleaved
// little-endian int16 bytes.
func Float32ToPCM16LE(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int16(clamp(float64(s), -1, 1) * 32767)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// PCM16LEToFloat32 converts little-endian int16 bytes to float32 samples.
// A trailing odd byte is dropped.
func PCM16LEToFloat32(data []byte) []float32 {
	n := len(data) / 2
	out := make([]float32, n)
	const scale = 1.0 / 32768.0
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		out[i] = float32(float64(v) * scale)
	}
	return out
}

// ResampleLinear resamples with linear interpolation. Good enough for
// speech; the transcriber and the realtime endpoint both tolerate it.
func ResampleLinear(in []float32, inSR, outSR int) []float32 {
	if inSR == outSR || len(in) == 0 {
		return in
	}
	ratio := float64(outSR) / float64(inSR)
	outN := int(math.Ceil(float64(len(in)) * ratio))
	out := make([]float32, outN)
	for i := 0; i < outN; i++ {
		src := float64(i) / ratio
		i0 := int(math.Floor(src))
		i1 := i0 + 1
		if i0 >= len(in) {
			out[i] = in[len(in)-1]
			continue
		}
		if i1 >= len(in) {
			out[i] = in[i0]
			continue
		}
		a := float32(src - float64(i0))
		out[i] = in[i0]*(1-a) + in[i1]*a
	}
	return out
}

// FrameRMS reports the root-mean-square level of one frame.
func FrameRMS(f []float32) float64 {
	if len(f) == 0 {
		return 0
	}
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
