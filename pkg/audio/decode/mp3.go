// ABOUTME: MP3 file reader
// ABOUTME: Decodes MP3 through go-mp3 into 24-bit range stereo samples
package decode

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"

	"github.com/Resonate-Protocol/pcmout-go/pkg/audio"
)

// MP3Reader reads an MP3 file. go-mp3 always produces 16-bit stereo.
type MP3Reader struct {
	file    *os.File
	decoder *mp3.Decoder
	buf     []byte
}

func openMP3(f *os.File) (Reader, error) {
	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}
	return &MP3Reader{file: f, decoder: decoder}, nil
}

func (r *MP3Reader) Format() audio.Format {
	return audio.Format{
		Encoding:   audio.EncodingLinearPCM,
		SampleRate: r.decoder.SampleRate(),
		Channels:   2,
		BitDepth:   16,
	}
}

func (r *MP3Reader) Read(samples []int32) (int, error) {
	// Whole stereo frames only.
	samples = samples[:len(samples)/2*2]
	numBytes := len(samples) * 2
	if cap(r.buf) < numBytes {
		r.buf = make([]byte, numBytes)
	}
	buf := r.buf[:numBytes]

	n, err := io.ReadFull(r.decoder, buf)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	numSamples := n / 4 * 2
	for i := 0; i < numSamples; i++ {
		sample16 := int16(binary.LittleEndian.Uint16(buf[i*2:]))
		samples[i] = audio.SampleFromInt16(sample16)
	}
	if numSamples > 0 && err == io.EOF {
		err = nil
	}
	return numSamples, err
}

// Rewind restarts decoding from the first frame.
func (r *MP3Reader) Rewind() error {
	if _, err := r.decoder.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to start: %w", err)
	}
	return nil
}

func (r *MP3Reader) Close() error {
	return r.file.Close()
}
