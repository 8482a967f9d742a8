//go:build cgo && !noaudio

// ABOUTME: Ogg Opus file reader
// ABOUTME: Decodes Opus through libopusfile at 48kHz into 24-bit range samples
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/hraban/opus.v2"

	"github.com/Resonate-Protocol/pcmout-go/pkg/audio"
)

// opusRate is the only rate libopusfile decodes to.
const opusRate = 48000

func init() {
	openers[".opus"] = openOpus
}

// OpusReader reads an Ogg Opus file.
type OpusReader struct {
	file     *os.File
	stream   *opus.Stream
	channels int
	buf      []int16
}

// opusChannels finds the channel count in the OpusHead packet at the start
// of an Ogg Opus file.
func opusChannels(head []byte) (int, error) {
	i := bytes.Index(head, []byte("OpusHead"))
	if i < 0 || i+9 >= len(head) {
		return 0, errors.New("missing OpusHead")
	}
	channels := int(head[i+9])
	if channels < 1 || channels > 2 {
		return 0, fmt.Errorf("%w: %d channel Opus", ErrUnsupportedFormat, channels)
	}
	return channels, nil
}

func openOpus(f *os.File) (Reader, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("failed to read Opus header: %w", err)
	}
	channels, err := opusChannels(head[:n])
	if err != nil {
		return nil, err
	}
	if err := rewindFile(f); err != nil {
		return nil, err
	}

	stream, err := opus.NewStream(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode Opus: %w", err)
	}
	return &OpusReader{file: f, stream: stream, channels: channels}, nil
}

func (r *OpusReader) Format() audio.Format {
	return audio.Format{
		Encoding:   audio.EncodingLinearPCM,
		SampleRate: opusRate,
		Channels:   r.channels,
		BitDepth:   16,
	}
}

func (r *OpusReader) Read(samples []int32) (int, error) {
	samples = samples[:len(samples)/r.channels*r.channels]
	if cap(r.buf) < len(samples) {
		r.buf = make([]int16, len(samples))
	}
	buf := r.buf[:len(samples)]

	frames, err := r.stream.Read(buf)
	if err != nil {
		return 0, err
	}
	n := frames * r.channels
	for i := 0; i < n; i++ {
		samples[i] = audio.SampleFromInt16(buf[i])
	}
	return n, nil
}

// Rewind reopens the stream at the start of the file.
func (r *OpusReader) Rewind() error {
	if err := r.stream.Close(); err != nil {
		return err
	}
	if err := rewindFile(r.file); err != nil {
		return err
	}
	stream, err := opus.NewStream(r.file)
	if err != nil {
		return fmt.Errorf("failed to decode Opus: %w", err)
	}
	r.stream = stream
	return nil
}

func (r *OpusReader) Close() error {
	r.stream.Close()
	return r.file.Close()
}
