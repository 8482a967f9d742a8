//go:build cgo && !noaudio

// ABOUTME: Oto-based playback driver
// ABOUTME: An oto player reads the PCM ring; one oto context per process
package output

import (
	"fmt"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/ebitengine/oto/v3"
)

func init() {
	Register("oto", func(cfg Config) (Driver, error) {
		return NewOto(cfg.Log), nil
	})
}

// oto only allows a single context per process, fixed at the first format
// it is created with.
var (
	otoMu      sync.Mutex
	otoCtx     *oto.Context
	otoOptions oto.NewContextOptions
)

func sharedOtoContext(opts oto.NewContextOptions) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		if otoOptions.SampleRate != opts.SampleRate ||
			otoOptions.ChannelCount != opts.ChannelCount ||
			otoOptions.Format != opts.Format {
			return nil, fmt.Errorf("%w: oto context already running at %dHz/%dch",
				ErrUnsupportedFormat, otoOptions.SampleRate, otoOptions.ChannelCount)
		}
		return otoCtx, nil
	}

	ctx, readyChan, err := oto.NewContext(&opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	otoCtx = ctx
	otoOptions = opts
	return ctx, nil
}

// Oto plays through the single oto context. Only the default device and
// unsigned 8-bit or signed 16-bit samples are supported.
type Oto struct {
	log slog.Logger
}

// NewOto creates an oto driver.
func NewOto(log slog.Logger) *Oto {
	if log == nil {
		log = slog.Disabled
	}
	return &Oto{log: log}
}

func (o *Oto) Name() string { return "oto" }

func (o *Oto) NameHints() ([]Hint, error) {
	return []Hint{{Name: DefaultDevice, Desc: "oto default output", IOID: "Output"}}, nil
}

func (o *Oto) Open(device string) (PCM, error) {
	name := TrimPlug(device)
	if name != "" && name != DefaultDevice {
		return nil, fmt.Errorf("%w: %s", ErrNoDevice, device)
	}
	return newRingPCM(device, o.log, newOtoSink), nil
}

type otoSink struct {
	player *oto.Player
	pull   func([]byte) int
}

func newOtoSink(p Params, pull func([]byte) int) (sink, error) {
	var format oto.Format
	switch p.Format {
	case FormatU8:
		format = oto.FormatUnsignedInt8
	case FormatS16LE:
		format = oto.FormatSignedInt16LE
	default:
		return nil, fmt.Errorf("%w: oto cannot play %s", ErrUnsupportedFormat, p.Format)
	}

	ctx, err := sharedOtoContext(oto.NewContextOptions{
		SampleRate:   p.Rate,
		ChannelCount: p.Channels,
		Format:       format,
		BufferSize:   clockPeriod * 2,
	})
	if err != nil {
		return nil, err
	}

	s := &otoSink{pull: pull}
	s.player = ctx.NewPlayer(s)
	s.player.SetBufferSize(int(int64(p.Rate)*int64(clockPeriod)/int64(time.Second)) * p.FrameBytes())
	return s, nil
}

// Read feeds the oto player. It never blocks and never reports EOF; silence
// is returned when the ring is dry.
func (s *otoSink) Read(p []byte) (int, error) {
	s.pull(p)
	return len(p), nil
}

func (s *otoSink) start() error {
	s.player.Play()
	return nil
}

func (s *otoSink) stop() error {
	s.player.Pause()
	return nil
}

func (s *otoSink) close() error {
	return s.player.Close()
}
