// ABOUTME: WAV file reader
// ABOUTME: Reads PCM WAV data through go-audio/wav
package decode

import (
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/Resonate-Protocol/pcmout-go/pkg/audio"
)

// WAVReader reads integer PCM WAV files of 8 to 32 bits.
type WAVReader struct {
	file     *os.File
	decoder  *wav.Decoder
	format   audio.Format
	buf      *goaudio.IntBuffer
	finished bool
}

func openWAV(f *os.File) (Reader, error) {
	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file: %v", decoder.Err())
	}
	if err := decoder.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("failed to find WAV data: %w", err)
	}

	bitDepth := int(decoder.SampleBitDepth())
	if !audio.SupportedBitDepth(bitDepth) {
		return nil, fmt.Errorf("%w: %d bit WAV", ErrUnsupportedFormat, bitDepth)
	}
	wf := decoder.Format()
	return &WAVReader{
		file:    f,
		decoder: decoder,
		format: audio.Format{
			Encoding:   audio.EncodingLinearPCM,
			SampleRate: wf.SampleRate,
			Channels:   wf.NumChannels,
			BitDepth:   bitDepth,
		},
		buf: &goaudio.IntBuffer{Format: wf},
	}, nil
}

func (r *WAVReader) Format() audio.Format {
	return r.format
}

func (r *WAVReader) Read(samples []int32) (int, error) {
	if r.finished {
		return 0, io.EOF
	}
	samples = samples[:len(samples)/r.format.Channels*r.format.Channels]
	if cap(r.buf.Data) < len(samples) {
		r.buf.Data = make([]int, len(samples))
	}
	r.buf.Data = r.buf.Data[:len(samples)]

	n, err := r.decoder.PCMBuffer(r.buf)
	if err != nil {
		return 0, fmt.Errorf("wav decode: %w", err)
	}
	if n == 0 {
		r.finished = true
		return 0, io.EOF
	}

	n = n / r.format.Channels * r.format.Channels
	for i := 0; i < n; i++ {
		v := int32(r.buf.Data[i])
		if r.format.BitDepth == 8 {
			// 8-bit WAV is unsigned.
			v -= 128
		}
		samples[i] = scaleTo24(v, r.format.BitDepth)
	}
	return n, nil
}

// Rewind restarts at the beginning of the PCM data.
func (r *WAVReader) Rewind() error {
	if err := r.decoder.Rewind(); err != nil {
		return err
	}
	r.finished = false
	return nil
}

func (r *WAVReader) Close() error {
	return r.file.Close()
}
