// ABOUTME: Playback application orchestration
// ABOUTME: Owns one stream on the calling goroutine and wires source, controls and status
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/decred/slog"

	"github.com/Resonate-Protocol/pcmout-go/internal/ui"
	"github.com/Resonate-Protocol/pcmout-go/pkg/audio"
	"github.com/Resonate-Protocol/pcmout-go/pkg/audio/decode"
	"github.com/Resonate-Protocol/pcmout-go/pkg/audio/output"
	"github.com/Resonate-Protocol/pcmout-go/pkg/pcmout"
)

const (
	defaultPacketDuration = 20 * time.Millisecond
	defaultStatusInterval = 500 * time.Millisecond
)

// ErrDeviceStopped is returned by Run when the stream stopped all device
// I/O, either because no device could be opened or after a device failure.
var ErrDeviceStopped = errors.New("output device stopped")

// Config holds player configuration
type Config struct {
	Driver output.Driver
	Device string

	Reader     decode.Reader
	SourceName string
	Loop       bool

	// PacketDuration is how much audio each fetch from the reader covers.
	PacketDuration time.Duration

	// Volume in percent. Zero selects 100; use Muted to silence.
	Volume int
	Muted  bool

	Metrics *pcmout.Metrics
	Log     slog.Logger
	PumpLog slog.Logger

	// Controls, if set, delivers user commands.
	Controls *ui.Controls

	// OnStatus, if set, receives periodic status updates.
	OnStatus       func(ui.StatusMsg)
	StatusInterval time.Duration
}

// Player plays one reader on one stream.
type Player struct {
	cfg Config
	log slog.Logger

	volume int
	muted  bool

	ended  chan struct{}
	failed chan error

	mu    sync.Mutex
	stats pcmout.Stats
}

// New creates a new player
func New(cfg Config) (*Player, error) {
	if cfg.Driver == nil {
		return nil, errors.New("no output driver")
	}
	if cfg.Reader == nil {
		return nil, errors.New("no audio source")
	}
	if cfg.PacketDuration <= 0 {
		cfg.PacketDuration = defaultPacketDuration
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = defaultStatusInterval
	}
	if cfg.Volume <= 0 || cfg.Volume > 100 {
		cfg.Volume = 100
	}
	if cfg.Log == nil {
		cfg.Log = slog.Disabled
	}

	return &Player{
		cfg:    cfg,
		log:    cfg.Log,
		volume: cfg.Volume,
		muted:  cfg.Muted,
		ended:  make(chan struct{}, 1),
		failed: make(chan error, 1),
	}, nil
}

// Stats returns the stream counters at the last status update.
func (p *Player) Stats() pcmout.Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Run plays until the reader ends, the user quits or ctx is done. The
// stream belongs to the goroutine calling Run.
func (p *Player) Run(ctx context.Context) error {
	format := p.cfg.Reader.Format()

	m := pcmout.NewManager(pcmout.ManagerConfig{
		Driver:  p.cfg.Driver,
		Log:     p.log,
		PumpLog: p.cfg.PumpLog,
		Metrics: p.cfg.Metrics,
	})
	defer m.Close()

	s, err := m.MakeStream(format, p.cfg.Device)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Open(packetBytes(format, p.cfg.PacketDuration)); err != nil {
		return err
	}
	p.applyVolume(s)

	src := pcmout.NewReaderSource(p.cfg.Reader, pcmout.ReaderSourceConfig{
		Loop:    p.cfg.Loop,
		OnEnd:   p.signalEnd,
		OnError: p.signalError,
		Log:     p.log,
	})
	s.Start(src)
	defer p.report(s, src)

	p.log.Infof("Playing %s (%s) on %q", p.cfg.SourceName, format, p.cfg.Device)
	p.status(ui.StatusMsg{
		Source: p.cfg.SourceName,
		Format: format.String(),
		State:  s.State().String(),
	})

	var commands <-chan ui.Command
	var quit <-chan struct{}
	if p.cfg.Controls != nil {
		commands = p.cfg.Controls.Commands
		quit = p.cfg.Controls.Quit
	}

	ticker := time.NewTicker(p.cfg.StatusInterval)
	defer ticker.Stop()

	var drained <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-quit:
			p.log.Infof("Quit requested")
			return nil

		case cmd := <-commands:
			p.handleCommand(s, src, cmd)

		case <-p.ended:
			// Let the device play out what it already holds.
			info := s.Device()
			drained = time.After(2*info.Latency + p.cfg.PacketDuration)

		case <-drained:
			p.log.Infof("Finished playing %s", p.cfg.SourceName)
			return nil

		case err := <-p.failed:
			return fmt.Errorf("playback failed: %w", err)

		case <-ticker.C:
			p.report(s, src)
			if s.Device().HardStop {
				return ErrDeviceStopped
			}
		}
	}
}

// handleCommand applies a user command to the stream.
func (p *Player) handleCommand(s *pcmout.Stream, src pcmout.Source, cmd ui.Command) {
	switch cmd.Kind {
	case ui.CommandVolume:
		p.volume = cmd.Volume
		p.muted = cmd.Muted
		p.applyVolume(s)
		p.log.Debugf("Volume %d%%, muted=%v", p.volume, p.muted)

	case ui.CommandPause:
		if cmd.Paused {
			s.Stop()
		} else {
			s.Start(src)
		}
		p.status(ui.StatusMsg{State: s.State().String()})
	}
}

func (p *Player) applyVolume(s *pcmout.Stream) {
	v := volumeScalar(p.volume, p.muted)
	s.SetVolume(v, v)
}

// report publishes the stream's counters and device status.
func (p *Player) report(s *pcmout.Stream, src *pcmout.ReaderSource) {
	stats := s.Stats()
	info := s.Device()

	p.mu.Lock()
	p.stats = stats
	p.mu.Unlock()

	p.status(ui.StatusMsg{
		State:   s.State().String(),
		Device:  &info,
		Stats:   &stats,
		DelayMs: delayMillis(src.Delay(), s.Format(), info.Channels),
	})
}

func (p *Player) status(msg ui.StatusMsg) {
	if p.cfg.OnStatus != nil {
		p.cfg.OnStatus(msg)
	}
}

// signalEnd runs on the pump goroutine.
func (p *Player) signalEnd() {
	select {
	case p.ended <- struct{}{}:
	default:
	}
}

// signalError runs on the pump goroutine.
func (p *Player) signalError(err error) {
	select {
	case p.failed <- err:
	default:
	}
}

// volumeScalar maps a percentage to the stream's [0, 1] volume.
func volumeScalar(percent int, muted bool) float64 {
	if muted || percent <= 0 {
		return 0
	}
	if percent >= 100 {
		return 1
	}
	return float64(percent) / 100
}

// packetBytes returns the size of a whole number of frames covering d.
func packetBytes(format audio.Format, d time.Duration) int {
	frames := int(int64(format.SampleRate) * int64(d) / int64(time.Second))
	if frames < 1 {
		frames = 1
	}
	return frames * format.BytesPerFrame()
}

// delayMillis converts a device delay in output bytes to milliseconds.
func delayMillis(delayBytes int, format audio.Format, outputChannels int) int {
	frameBytes := outputChannels * format.BytesPerSample()
	if frameBytes <= 0 || format.SampleRate <= 0 {
		return 0
	}
	return delayBytes / frameBytes * 1000 / format.SampleRate
}
