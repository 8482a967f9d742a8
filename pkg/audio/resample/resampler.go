// ABOUTME: Streaming linear resampler for audio readers
// ABOUTME: Wraps a decode.Reader and interpolates its frames to another sample rate
package resample

import (
	"errors"
	"io"

	"github.com/Resonate-Protocol/pcmout-go/pkg/audio"
	"github.com/Resonate-Protocol/pcmout-go/pkg/audio/decode"
)

// chunkFrames is how many input frames are pulled per refill.
const chunkFrames = 1024

// Reader converts the frames of another reader to a new sample rate using
// linear interpolation. Interpolation state carries across reads, so
// output does not depend on how reads are sized.
type Reader struct {
	src      decode.Reader
	format   audio.Format
	channels int
	ratio    float64

	// buf holds input frames; pos is the read position in input frames
	// relative to buf[0].
	buf []int32
	pos float64
	tmp []int32
	eof bool
}

var _ decode.Reader = (*Reader)(nil)

// NewReader resamples src to rate.
func NewReader(src decode.Reader, rate int) (*Reader, error) {
	in := src.Format()
	if in.SampleRate <= 0 || rate <= 0 || in.Channels <= 0 {
		return nil, errors.New("resample: sample rates and channel count must be positive")
	}

	out := in
	out.SampleRate = rate
	return &Reader{
		src:      src,
		format:   out,
		channels: in.Channels,
		ratio:    float64(in.SampleRate) / float64(rate),
		tmp:      make([]int32, chunkFrames*in.Channels),
	}, nil
}

// Format returns the source format at the output rate.
func (r *Reader) Format() audio.Format { return r.format }

func (r *Reader) frames() int { return len(r.buf) / r.channels }

// refill drops consumed input and reads the next chunk from the source.
func (r *Reader) refill() error {
	if drop := int(r.pos); drop > 0 {
		if drop > r.frames() {
			drop = r.frames()
		}
		r.buf = append(r.buf[:0], r.buf[drop*r.channels:]...)
		r.pos -= float64(drop)
	}

	n, err := r.src.Read(r.tmp)
	n = n / r.channels * r.channels
	r.buf = append(r.buf, r.tmp[:n]...)
	if errors.Is(err, io.EOF) {
		r.eof = true
		return nil
	}
	if err == nil && n == 0 {
		r.eof = true
	}
	return err
}

// Read fills samples with interleaved frames at the output rate.
func (r *Reader) Read(samples []int32) (int, error) {
	ch := r.channels
	want := len(samples) / ch
	n := 0

	for n < want {
		idx := int(r.pos)
		if idx+1 >= r.frames() {
			if r.eof {
				break
			}
			if err := r.refill(); err != nil {
				return n * ch, err
			}
			continue
		}

		frac := r.pos - float64(idx)
		a := r.buf[idx*ch : (idx+1)*ch]
		b := r.buf[(idx+1)*ch : (idx+2)*ch]
		for c := 0; c < ch; c++ {
			samples[n*ch+c] = int32(float64(a[c])*(1-frac) + float64(b[c])*frac)
		}
		n++
		r.pos += r.ratio
	}

	if n == 0 && r.eof {
		return 0, io.EOF
	}
	return n * ch, nil
}

// Rewind restarts the source when it supports rewinding.
func (r *Reader) Rewind() error {
	rw, ok := r.src.(decode.Rewinder)
	if !ok {
		return errors.New("resample: source cannot rewind")
	}
	if err := rw.Rewind(); err != nil {
		return err
	}
	r.buf = r.buf[:0]
	r.pos = 0
	r.eof = false
	return nil
}

func (r *Reader) Close() error {
	return r.src.Close()
}
