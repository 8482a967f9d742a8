// ABOUTME: Ogg Vorbis file reader
// ABOUTME: Decodes float Vorbis output from oggvorbis into 24-bit range samples
package decode

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/jfreymuth/oggvorbis"

	"github.com/Resonate-Protocol/pcmout-go/pkg/audio"
)

// VorbisReader reads an Ogg Vorbis file.
type VorbisReader struct {
	file   *os.File
	reader *oggvorbis.Reader
	buf    []float32
}

func openVorbis(f *os.File) (Reader, error) {
	reader, err := oggvorbis.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode Vorbis: %w", err)
	}
	return &VorbisReader{file: f, reader: reader}, nil
}

func (r *VorbisReader) Format() audio.Format {
	return audio.Format{
		Encoding:   audio.EncodingLinearPCM,
		SampleRate: r.reader.SampleRate(),
		Channels:   r.reader.Channels(),
		BitDepth:   24,
	}
}

func (r *VorbisReader) Read(samples []int32) (int, error) {
	channels := r.reader.Channels()
	samples = samples[:len(samples)/channels*channels]
	if cap(r.buf) < len(samples) {
		r.buf = make([]float32, len(samples))
	}
	buf := r.buf[:len(samples)]

	n, err := r.reader.Read(buf)
	for i := 0; i < n; i++ {
		samples[i] = int32(math.Round(float64(buf[i]) * audio.Max24Bit))
	}
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

// Rewind seeks back to the first sample.
func (r *VorbisReader) Rewind() error {
	return r.reader.SetPosition(0)
}

func (r *VorbisReader) Close() error {
	return r.file.Close()
}
