// ABOUTME: Stream manager owning the shared pump loop
// ABOUTME: Creates streams on one driver, tracks them until release and tears them down
package pcmout

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/decred/slog"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/Resonate-Protocol/pcmout-go/internal/taskloop"
	"github.com/Resonate-Protocol/pcmout-go/pkg/audio"
	"github.com/Resonate-Protocol/pcmout-go/pkg/audio/output"
)

// closeTimeout bounds how long Close waits for device teardown.
const closeTimeout = 5 * time.Second

// ErrManagerClosed is returned by MakeStream after Close.
var ErrManagerClosed = errors.New("manager closed")

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Driver output.Driver

	// Log is the manager logger. Streams log through PumpLog when set,
	// otherwise through Log.
	Log     slog.Logger
	PumpLog slog.Logger

	// Metrics, if set, is shared by every stream.
	Metrics *Metrics

	// Clock replaces the wall clock of the pump loop. A manager with a
	// clock does not start the loop; the caller drives it with
	// Loop().RunUntilIdle.
	Clock taskloop.Clock
}

// Manager owns the pump loop shared by its streams and keeps every stream
// it created until the stream is closed.
type Manager struct {
	driver  output.Driver
	log     slog.Logger
	pumpLog slog.Logger
	metrics *Metrics
	loop    *taskloop.Loop
	manual  bool

	streams *xsync.MapOf[uuid.UUID, *Stream]
	closed  atomic.Bool
}

// NewManager creates a manager and starts its pump loop.
func NewManager(cfg ManagerConfig) *Manager {
	log := cfg.Log
	if log == nil {
		log = slog.Disabled
	}
	pumpLog := cfg.PumpLog
	if pumpLog == nil {
		pumpLog = log
	}

	opts := []taskloop.Option{taskloop.WithLogger(log)}
	if cfg.Clock != nil {
		opts = append(opts, taskloop.WithClock(cfg.Clock))
	}

	m := &Manager{
		driver:  cfg.Driver,
		log:     log,
		pumpLog: pumpLog,
		metrics: cfg.Metrics,
		loop:    taskloop.New(opts...),
		manual:  cfg.Clock != nil,
		streams: xsync.NewMapOf[uuid.UUID, *Stream](),
	}
	if !m.manual {
		m.loop.Start()
	}
	return m
}

// Loop returns the pump loop.
func (m *Manager) Loop() *taskloop.Loop { return m.loop }

// Driver returns the driver streams are opened on.
func (m *Manager) Driver() output.Driver { return m.driver }

// Metrics returns the shared metrics, which may be nil.
func (m *Manager) Metrics() *Metrics { return m.metrics }

// MakeStream creates a stream for format on device. The calling goroutine
// becomes the stream's control goroutine. Formats the stream cannot play
// are reported here rather than leaving an Error state stream behind.
func (m *Manager) MakeStream(format audio.Format, device string) (*Stream, error) {
	if m.closed.Load() {
		return nil, ErrManagerClosed
	}
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid stream format: %w", err)
	}

	s := NewStream(StreamConfig{
		Format:   format,
		Device:   device,
		Driver:   m.driver,
		Loop:     m.loop,
		Releaser: m,
		Log:      m.pumpLog,
		Metrics:  m.metrics,
	})
	m.streams.Store(s.ID(), s)
	m.metrics.streamAdded()
	m.log.Debugf("Created stream %s (%s, device %q)", s.ID(), format, device)
	return s, nil
}

// ReleaseStream forgets a closed stream.
func (m *Manager) ReleaseStream(s *Stream) {
	if _, loaded := m.streams.LoadAndDelete(s.ID()); loaded {
		m.metrics.streamRemoved()
		m.log.Debugf("Released stream %s", s.ID())
	}
}

// Stream returns the stream with the given id.
func (m *Manager) Stream(id uuid.UUID) (*Stream, bool) {
	return m.streams.Load(id)
}

// Streams returns the open streams ordered by id.
func (m *Manager) Streams() []*Stream {
	streams := make([]*Stream, 0, m.streams.Size())
	m.streams.Range(func(_ uuid.UUID, s *Stream) bool {
		streams = append(streams, s)
		return true
	})
	sort.Slice(streams, func(i, j int) bool {
		return streams[i].ID().String() < streams[j].ID().String()
	})
	return streams
}

// Close closes every remaining stream, waits for their devices to be
// released and stops the pump loop. It must be called from the goroutine
// that created the streams.
func (m *Manager) Close() {
	if !m.closed.CompareAndSwap(false, true) {
		return
	}

	for _, s := range m.Streams() {
		s.Close()
	}

	done := make(chan struct{})
	m.loop.Post(func() { close(done) })
	if m.manual {
		m.loop.RunUntilIdle()
	} else {
		select {
		case <-done:
		case <-time.After(closeTimeout):
			m.log.Warnf("Timed out waiting for streams to close")
		}
	}
	m.loop.Stop()
}
