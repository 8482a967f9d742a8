// ABOUTME: Tests for the streaming resampler
// ABOUTME: Checks interpolation, read-size independence, end of data and rewind
package resample

import (
	"errors"
	"io"
	"testing"

	"github.com/Resonate-Protocol/pcmout-go/internal/assert"
	"github.com/Resonate-Protocol/pcmout-go/pkg/audio"
	"github.com/Resonate-Protocol/pcmout-go/pkg/audio/decode"
)

// rampReader produces frames whose samples equal the frame index times 100.
type rampReader struct {
	format audio.Format
	frames int
	index  int
}

func (r *rampReader) Format() audio.Format { return r.format }

func (r *rampReader) Read(samples []int32) (int, error) {
	ch := r.format.Channels
	n := 0
	for n+ch <= len(samples) && r.index < r.frames {
		for c := 0; c < ch; c++ {
			samples[n+c] = int32(r.index * 100)
		}
		n += ch
		r.index++
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (r *rampReader) Rewind() error {
	r.index = 0
	return nil
}

func (r *rampReader) Close() error { return nil }

func newRamp(rate, channels, frames int) *rampReader {
	return &rampReader{
		format: audio.Format{Encoding: audio.EncodingLinearPCM, SampleRate: rate, Channels: channels, BitDepth: 16},
		frames: frames,
	}
}

func readAll(t *testing.T, r decode.Reader, chunk int) []int32 {
	t.Helper()
	var out []int32
	buf := make([]int32, chunk)
	for {
		n, err := r.Read(buf)
		out = append(out, buf[:n]...)
		if errors.Is(err, io.EOF) {
			return out
		}
		assert.NilErr(t, err)
	}
}

func TestUpsampleInterpolates(t *testing.T) {
	r, err := NewReader(newRamp(24000, 1, 4), 48000)
	assert.NilErr(t, err)
	assert.Equal(t, r.Format().SampleRate, 48000)

	got := readAll(t, r, 64)
	assert.DeepEqual(t, got, []int32{0, 50, 100, 150, 200, 250})
}

func TestDownsampleSkips(t *testing.T) {
	r, err := NewReader(newRamp(48000, 2, 9), 24000)
	assert.NilErr(t, err)

	got := readAll(t, r, 64)
	assert.DeepEqual(t, got, []int32{0, 0, 200, 200, 400, 400, 600, 600})
}

func TestOutputIndependentOfReadSize(t *testing.T) {
	whole, err := NewReader(newRamp(44100, 2, 5000), 48000)
	assert.NilErr(t, err)
	chunked, err := NewReader(newRamp(44100, 2, 5000), 48000)
	assert.NilErr(t, err)

	want := readAll(t, whole, 20000)
	got := readAll(t, chunked, 6)
	assert.DeepEqual(t, got, want)
}

func TestRewind(t *testing.T) {
	r, err := NewReader(newRamp(8000, 1, 10), 16000)
	assert.NilErr(t, err)

	first := readAll(t, r, 8)
	assert.NilErr(t, r.Rewind())
	second := readAll(t, r, 8)
	assert.DeepEqual(t, second, first)
}

func TestRewindUnsupported(t *testing.T) {
	r, err := NewReader(onlyReader{newRamp(8000, 1, 10)}, 16000)
	assert.NilErr(t, err)
	assert.NonNilErr(t, r.Rewind())
}

func TestInvalidRates(t *testing.T) {
	_, err := NewReader(newRamp(8000, 1, 10), 0)
	assert.NonNilErr(t, err)
}

type onlyReader struct {
	decode.Reader
}
