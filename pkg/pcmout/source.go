// ABOUTME: Source adapters for streams
// ABOUTME: ReaderSource plays a decode.Reader; SourceFuncs wraps plain callbacks
package pcmout

import (
	"errors"
	"io"
	"sync"

	"github.com/decred/slog"

	"github.com/Resonate-Protocol/pcmout-go/pkg/audio"
	"github.com/Resonate-Protocol/pcmout-go/pkg/audio/decode"
)

// ReaderSourceConfig configures a ReaderSource.
type ReaderSourceConfig struct {
	// Loop rewinds the reader at end of data when it supports it.
	Loop bool

	// OnEnd is called on the pump goroutine once the reader is exhausted.
	OnEnd func()

	// OnError is called with fatal device errors.
	OnError func(err error)

	Log slog.Logger
}

// ReaderSource feeds a stream from a decode.Reader, converting samples to
// the stream's sample width. The reader must produce the stream's channel
// count and sample rate.
type ReaderSource struct {
	reader decode.Reader
	cfg    ReaderSourceConfig

	samples []int32
	ended   bool

	mu        sync.Mutex
	closed    bool
	lastDelay int
}

var _ Source = (*ReaderSource)(nil)

// NewReaderSource wraps r.
func NewReaderSource(r decode.Reader, cfg ReaderSourceConfig) *ReaderSource {
	if cfg.Log == nil {
		cfg.Log = slog.Disabled
	}
	return &ReaderSource{reader: r, cfg: cfg}
}

// OnMoreData decodes as many whole frames as fit in dest.
func (rs *ReaderSource) OnMoreData(s *Stream, dest []byte, delayBytes int) int {
	rs.mu.Lock()
	rs.lastDelay = delayBytes
	rs.mu.Unlock()

	if rs.ended {
		return 0
	}

	format := s.Format()
	bps := format.BytesPerSample()
	want := len(dest) / format.BytesPerFrame() * format.Channels
	if cap(rs.samples) < want {
		rs.samples = make([]int32, want)
	}
	samples := rs.samples[:want]

	filled := 0
	rewound := false
fill:
	for filled < want {
		n, err := rs.reader.Read(samples[filled:])
		filled += n
		if n > 0 {
			rewound = false
		}

		switch {
		case err == nil:
			if n == 0 {
				break fill
			}
		case errors.Is(err, io.EOF):
			rw, ok := rs.reader.(decode.Rewinder)
			// EOF straight after a rewind means the reader is empty.
			if !rs.cfg.Loop || !ok || rewound {
				rs.finish()
				break fill
			}
			if err := rw.Rewind(); err != nil {
				rs.cfg.Log.Errorf("Unable to rewind source: %v", err)
				rs.finish()
				break fill
			}
			rewound = true
		default:
			rs.cfg.Log.Errorf("Read from source failed: %v", err)
			rs.finish()
			break fill
		}
	}

	filled = filled / format.Channels * format.Channels
	for i := 0; i < filled; i++ {
		audio.PutSample24(dest[i*bps:], bps, samples[i])
	}
	return filled * bps
}

func (rs *ReaderSource) finish() {
	rs.ended = true
	if rs.cfg.OnEnd != nil {
		rs.cfg.OnEnd()
	}
}

func (rs *ReaderSource) OnError(s *Stream, err error) {
	rs.cfg.Log.Errorf("Stream %s failed: %v", s.ID(), err)
	if rs.cfg.OnError != nil {
		rs.cfg.OnError(err)
	}
}

// OnClose closes the reader.
func (rs *ReaderSource) OnClose(s *Stream) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.closed {
		return
	}
	rs.closed = true
	if err := rs.reader.Close(); err != nil {
		rs.cfg.Log.Warnf("Unable to close reader: %v", err)
	}
}

// Delay returns the device delay reported with the last fetch, in bytes.
func (rs *ReaderSource) Delay() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.lastDelay
}

// SourceFuncs adapts plain functions to Source. Nil fields are skipped.
type SourceFuncs struct {
	MoreData func(s *Stream, dest []byte, delayBytes int) int
	Error    func(s *Stream, err error)
	Close    func(s *Stream)
}

var _ Source = SourceFuncs{}

func (f SourceFuncs) OnMoreData(s *Stream, dest []byte, delayBytes int) int {
	if f.MoreData == nil {
		return 0
	}
	return f.MoreData(s, dest, delayBytes)
}

func (f SourceFuncs) OnError(s *Stream, err error) {
	if f.Error != nil {
		f.Error(s, err)
	}
}

func (f SourceFuncs) OnClose(s *Stream) {
	if f.Close != nil {
		f.Close(s)
	}
}
