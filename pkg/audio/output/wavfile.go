// ABOUTME: File output driver rendering playback to a WAV file
// ABOUTME: Drains at the sample rate like a sound card and flushes on close
package output

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/decred/slog"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVFile writes everything played on a device to a WAV file. The device
// named "default" maps to the configured path; any other name ending in
// ".wav" is used as a path directly.
type WAVFile struct {
	path string
	log  slog.Logger
}

// NewWAVFile creates a file driver whose default device writes to path.
func NewWAVFile(path string, log slog.Logger) *WAVFile {
	if log == nil {
		log = slog.Disabled
	}
	return &WAVFile{path: path, log: log}
}

func (w *WAVFile) Name() string { return "wavfile" }

func (w *WAVFile) resolve(device string) (string, error) {
	name := TrimPlug(device)
	switch {
	case name == "" || name == DefaultDevice:
		if w.path == "" {
			return "", fmt.Errorf("%w: no output path configured", ErrNoDevice)
		}
		return w.path, nil
	case strings.HasSuffix(strings.ToLower(name), ".wav"):
		return name, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoDevice, device)
}

func (w *WAVFile) Open(device string) (PCM, error) {
	path, err := w.resolve(device)
	if err != nil {
		return nil, err
	}
	return newRingPCM(device, w.log, func(p Params, pull func([]byte) int) (sink, error) {
		return newWAVSink(path, p, pull, w.log)
	}), nil
}

func (w *WAVFile) NameHints() ([]Hint, error) {
	if w.path == "" {
		return nil, nil
	}
	return []Hint{{Name: DefaultDevice, Desc: "WAV file " + w.path, IOID: "Output"}}, nil
}

type wavSink struct {
	*clockedSink

	log     slog.Logger
	pull    func([]byte) int
	params  Params
	file    *os.File
	encoder *wav.Encoder

	mu       sync.Mutex
	buf      goaudio.IntBuffer
	writeErr error
	closed   bool
}

func newWAVSink(path string, p Params, pull func([]byte) int, log slog.Logger) (*wavSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	s := &wavSink{
		log:     log,
		pull:    pull,
		params:  p,
		file:    f,
		encoder: wav.NewEncoder(f, p.Rate, p.Format.Bytes()*8, p.Channels, 1),
		buf: goaudio.IntBuffer{
			Format: &goaudio.Format{
				NumChannels: p.Channels,
				SampleRate:  p.Rate,
			},
			SourceBitDepth: p.Format.Bytes() * 8,
		},
	}
	s.clockedSink = newClockedSink(p, pull, s.consume)
	return s, nil
}

// consume appends the played bytes to the file. Underrun silence is written
// too, as a sound card would play it.
func (s *wavSink) consume(played []byte, _ int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.writeErr != nil {
		return
	}

	bps := s.params.Format.Bytes()
	n := len(played) / bps
	if cap(s.buf.Data) < n {
		s.buf.Data = make([]int, n)
	}
	s.buf.Data = s.buf.Data[:n]
	for i := 0; i < n; i++ {
		b := played[i*bps:]
		switch bps {
		case 1:
			s.buf.Data[i] = int(b[0])
		case 2:
			s.buf.Data[i] = int(int16(uint16(b[0]) | uint16(b[1])<<8))
		case 3:
			v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
			s.buf.Data[i] = int(v<<8) >> 8
		case 4:
			s.buf.Data[i] = int(int32(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24))
		}
	}

	if err := s.encoder.Write(&s.buf); err != nil {
		s.writeErr = err
		s.log.Errorf("Failed writing %s: %v", s.file.Name(), err)
	}
}

// close flushes whatever is still queued, then finalizes the WAV header.
func (s *wavSink) close() error {
	s.clockedSink.close()

	frameBytes := s.params.FrameBytes()
	tail := make([]byte, 1024*frameBytes)
	for {
		n := s.pull(tail) / frameBytes * frameBytes
		if n == 0 {
			break
		}
		s.consume(tail[:n], n)
	}

	s.mu.Lock()
	s.closed = true
	writeErr := s.writeErr
	s.mu.Unlock()

	encErr := s.encoder.Close()
	fileErr := s.file.Close()
	switch {
	case writeErr != nil:
		return fmt.Errorf("failed to write output file: %w", writeErr)
	case encErr != nil:
		return fmt.Errorf("failed to finalize output file: %w", encErr)
	case fileErr != nil:
		return fmt.Errorf("failed to close output file: %w", fileErr)
	}
	return nil
}
