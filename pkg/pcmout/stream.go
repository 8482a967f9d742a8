// ABOUTME: Playback stream control surface
// ABOUTME: Open/Start/Stop/Close/SetVolume run on the control goroutine and post pump tasks
package pcmout

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/google/uuid"

	"github.com/Resonate-Protocol/pcmout-go/internal/logutil"
	"github.com/Resonate-Protocol/pcmout-go/internal/taskloop"
	"github.com/Resonate-Protocol/pcmout-go/pkg/audio"
	"github.com/Resonate-Protocol/pcmout-go/pkg/audio/output"
)

// AutoSelectDevice as the device name lets the stream pick a device that
// matches its channel count.
const AutoSelectDevice = ""

var (
	// ErrInvalidState is returned by Open, and reported to sources by
	// Start, when the stream cannot make the requested transition.
	ErrInvalidState = errors.New("invalid stream state")

	// ErrPacketSize is returned by Open for packet sizes that are not a
	// positive whole number of frames.
	ErrPacketSize = errors.New("packet size must be a positive multiple of the frame size")
)

// Source supplies audio to a Stream. Callbacks run on the pump goroutine,
// one at a time, and never after OnClose returns. Callbacks must not call
// Close on the stream.
type Source interface {
	// OnMoreData fills dest with interleaved frames and returns the number
	// of bytes written. delayBytes is how much audio is queued in the
	// device ahead of dest.
	OnMoreData(s *Stream, dest []byte, delayBytes int) int

	// OnError is called once when the device fails fatally.
	OnError(s *Stream, err error)

	// OnClose is called when the stream is closed.
	OnClose(s *Stream)
}

// Releaser is told when a stream has been closed and can be forgotten.
type Releaser interface {
	ReleaseStream(s *Stream)
}

// StreamConfig configures a Stream.
type StreamConfig struct {
	Format audio.Format

	// Device is the device to open, or AutoSelectDevice.
	Device string

	Driver output.Driver
	Loop   *taskloop.Loop

	// Releaser, if set, is notified on Close.
	Releaser Releaser

	Log     slog.Logger
	Metrics *Metrics
}

// Stream plays audio from a Source on an output device. Control methods
// must be called from the goroutine that created the stream; device work
// happens on the task loop.
type Stream struct {
	id       uuid.UUID
	log      slog.Logger
	loop     *taskloop.Loop
	driver   output.Driver
	releaser Releaser
	metrics  *Metrics

	format          audio.Format
	bytesPerSample  int
	bytesPerFrame   int
	requestedDevice string

	control *affinity
	pump    *affinity
	shared  *SharedState
	stats   streamStats

	// Owned by the pump goroutine.
	deviceName          string
	handle              output.PCM
	framesPerPacket     int
	latency             time.Duration
	packetDuration      time.Duration
	stopStream          bool
	shouldDownmix       bool
	bytesPerOutputFrame int
	packet              *packet
	writeScheduled      bool

	// Copies of pump-owned fields for readers on other goroutines.
	infoMu sync.Mutex
	info   DeviceInfo
}

// DeviceInfo describes the device a stream resolved to.
type DeviceInfo struct {
	Name      string
	Downmix   bool
	Latency   time.Duration
	Channels  int
	HardStop  bool
	Available bool
}

// NewStream creates a stream in the Created state. Unplayable formats put
// the stream straight into the Error state.
func NewStream(cfg StreamConfig) *Stream {
	id := uuid.New()
	log := logutil.PrefixLogger(logutil.OrDisabled(cfg.Log), fmt.Sprintf("[%s]", id.String()[:8]))

	control := &affinity{name: "control"}
	control.bind()

	s := &Stream{
		id:                  id,
		log:                 log,
		loop:                cfg.Loop,
		driver:              cfg.Driver,
		releaser:            cfg.Releaser,
		metrics:             cfg.Metrics,
		format:              cfg.Format,
		bytesPerSample:      cfg.Format.BytesPerSample(),
		bytesPerFrame:       cfg.Format.BytesPerFrame(),
		requestedDevice:     cfg.Device,
		control:             control,
		pump:                &affinity{name: "pump"},
		bytesPerOutputFrame: cfg.Format.BytesPerFrame(),
	}
	s.shared = newSharedState(log, control)

	if !cfg.Format.Encoding.IsLinear() {
		log.Warnf("Only linear PCM supported.")
		s.shared.TransitionTo(StateError)
	}
	if !audio.SupportedBitDepth(cfg.Format.BitDepth) {
		log.Warnf("Unsupported bits per sample: %d", cfg.Format.BitDepth)
		s.shared.TransitionTo(StateError)
	}
	if cfg.Format.Channels <= 0 || cfg.Format.SampleRate <= 0 {
		log.Warnf("Invalid stream format %s", cfg.Format)
		s.shared.TransitionTo(StateError)
	}
	if cfg.Driver == nil || cfg.Loop == nil {
		log.Warnf("Stream created without a driver or task loop")
		s.shared.TransitionTo(StateError)
	}

	return s
}

// ID uniquely identifies the stream.
func (s *Stream) ID() uuid.UUID { return s.id }

// Format returns the stream's sample format.
func (s *Stream) Format() audio.Format { return s.format }

// State returns the current lifecycle state.
func (s *Stream) State() State { return s.shared.State() }

// Shared exposes the state shared with the pump.
func (s *Stream) Shared() *SharedState { return s.shared }

// Open validates packetSize and asynchronously opens the device. The
// device itself may still fail to open; that is reported through the
// source's OnError once writes fail, or leaves the stream silent.
func (s *Stream) Open(packetSize int) error {
	s.control.check()

	if state := s.shared.State(); state == StateError {
		return fmt.Errorf("%w: %s", ErrInvalidState, state)
	}
	if !s.shared.CanTransitionTo(StateOpened) {
		s.log.Errorf("Invalid state for open: %s", s.shared.State())
		return fmt.Errorf("%w: cannot open from %s", ErrInvalidState, s.shared.State())
	}
	if packetSize <= 0 || packetSize%s.bytesPerFrame != 0 {
		return fmt.Errorf("%w: %d bytes with %d byte frames", ErrPacketSize,
			packetSize, s.bytesPerFrame)
	}

	s.shared.TransitionTo(StateOpened)
	s.loop.Post(func() { s.openTask(packetSize) })
	return nil
}

// Close stops playback, detaches the source after calling its OnClose and
// hands the stream back to its releaser. Device teardown happens later on
// the task loop.
func (s *Stream) Close() {
	s.control.check()

	if s.shared.TransitionTo(StateClosed) != StateClosed {
		s.log.Errorf("Unable to transition to closed")
	}

	s.shared.closeSource(s)

	if s.loop != nil {
		s.loop.Post(s.closeTask)
	}
	if s.releaser != nil {
		s.releaser.ReleaseStream(s)
	}
}

// Start registers src and begins playback. src must not be nil.
func (s *Stream) Start(src Source) {
	s.control.check()

	if src == nil {
		panic("pcmout: Start called with nil source")
	}

	s.shared.SetSource(src)

	if s.shared.State() == StateError {
		s.shared.OnError(s, ErrInvalidState)
		return
	}

	if s.shared.TransitionTo(StatePlaying) == StatePlaying {
		s.loop.Post(s.startTask)
	}
}

// Stop pauses playback. Audio already queued in the device keeps playing.
func (s *Stream) Stop() {
	s.control.check()
	s.shared.TransitionTo(StateStopped)
}

// SetVolume sets the playback volume. Only left is used; both channels
// share one volume. Values are clamped to [0, 1].
func (s *Stream) SetVolume(left, right float64) {
	s.control.check()

	if left < 0 {
		left = 0
	} else if left > 1 {
		left = 1
	}
	s.shared.SetVolume(float32(left))
}

// GetVolume returns the playback volume for both channels.
func (s *Stream) GetVolume() (left, right float64) {
	v := float64(s.shared.Volume())
	return v, v
}

// Device returns what the pump last reported about the device.
func (s *Stream) Device() DeviceInfo {
	s.infoMu.Lock()
	defer s.infoMu.Unlock()
	return s.info
}

// publishInfo copies pump-owned device fields for other goroutines.
func (s *Stream) publishInfo() {
	info := DeviceInfo{
		Name:      s.deviceName,
		Downmix:   s.shouldDownmix,
		Latency:   s.latency,
		HardStop:  s.stopStream,
		Available: s.handle != nil,
	}
	if s.bytesPerSample > 0 {
		info.Channels = s.bytesPerOutputFrame / s.bytesPerSample
	}

	s.infoMu.Lock()
	s.info = info
	s.infoMu.Unlock()
}
