// ABOUTME: FLAC file reader
// ABOUTME: Decodes FLAC frames with mewkiz/flac and interleaves subframes
package decode

import (
	"fmt"
	"io"
	"os"

	"github.com/mewkiz/flac"

	"github.com/Resonate-Protocol/pcmout-go/pkg/audio"
)

// FLACReader reads a FLAC file frame by frame. Samples of a decoded frame
// that did not fit the caller's buffer are kept for the next Read.
type FLACReader struct {
	file     *os.File
	stream   *flac.Stream
	channels int
	bitDepth int
	rate     int
	pending  []int32
}

func openFLAC(f *os.File) (Reader, error) {
	stream, err := flac.NewSeek(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	return &FLACReader{
		file:     f,
		stream:   stream,
		channels: int(info.NChannels),
		bitDepth: int(info.BitsPerSample),
		rate:     int(info.SampleRate),
	}, nil
}

func (r *FLACReader) Format() audio.Format {
	return audio.Format{
		Encoding:   audio.EncodingLinearPCM,
		SampleRate: r.rate,
		Channels:   r.channels,
		BitDepth:   r.bitDepth,
	}
}

func (r *FLACReader) Read(samples []int32) (int, error) {
	samples = samples[:len(samples)/r.channels*r.channels]
	read := copy(samples, r.pending)
	r.pending = r.pending[read:]

	for read < len(samples) {
		frame, err := r.stream.ParseNext()
		if err == io.EOF {
			if read > 0 {
				return read, nil
			}
			return 0, io.EOF
		}
		if err != nil {
			return read, fmt.Errorf("flac decode: %w", err)
		}

		blockSize := int(frame.BlockSize)
		decoded := make([]int32, 0, blockSize*r.channels)
		for i := 0; i < blockSize; i++ {
			for ch := 0; ch < r.channels; ch++ {
				decoded = append(decoded, scaleTo24(frame.Subframes[ch].Samples[i], r.bitDepth))
			}
		}
		n := copy(samples[read:], decoded)
		read += n
		r.pending = decoded[n:]
	}
	return read, nil
}

// Rewind seeks back to the first sample.
func (r *FLACReader) Rewind() error {
	if _, err := r.stream.Seek(0); err != nil {
		return fmt.Errorf("failed to seek to start: %w", err)
	}
	r.pending = nil
	return nil
}

func (r *FLACReader) Close() error {
	r.stream.Close()
	return r.file.Close()
}
