// ABOUTME: Sine tone generator
// ABOUTME: Endless or fixed-length test signal exposed as a Reader
package decode

import (
	"io"
	"math"

	"github.com/Resonate-Protocol/pcmout-go/pkg/audio"
)

// ToneReader generates a sine wave on every channel.
type ToneReader struct {
	format    audio.Format
	frequency float64
	amplitude float64
	frames    int64
	index     int64
}

// NewTone creates a tone of frequency Hz at half scale. frames limits the
// length; zero or less plays forever.
func NewTone(format audio.Format, frequency float64, frames int64) *ToneReader {
	format.Encoding = audio.EncodingLinearPCM
	return &ToneReader{
		format:    format,
		frequency: frequency,
		amplitude: 0.5,
		frames:    frames,
	}
}

func (t *ToneReader) Format() audio.Format { return t.format }

func (t *ToneReader) Read(samples []int32) (int, error) {
	channels := t.format.Channels
	frames := int64(len(samples) / channels)
	if t.frames > 0 {
		if left := t.frames - t.index; left < frames {
			frames = left
		}
		if frames <= 0 {
			return 0, io.EOF
		}
	}

	for i := int64(0); i < frames; i++ {
		tm := float64(t.index+i) / float64(t.format.SampleRate)
		v := int32(math.Sin(2*math.Pi*t.frequency*tm) * t.amplitude * audio.Max24Bit)
		for ch := 0; ch < channels; ch++ {
			samples[int(i)*channels+ch] = v
		}
	}
	t.index += frames
	return int(frames) * channels, nil
}

// Rewind restarts the tone at phase zero.
func (t *ToneReader) Rewind() error {
	t.index = 0
	return nil
}

func (t *ToneReader) Close() error { return nil }
