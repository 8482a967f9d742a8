//go:build cgo && !noaudio

// ABOUTME: Malgo-based playback driver with 8/16/24/32-bit support
// ABOUTME: Uses miniaudio via malgo; the data callback drains the PCM ring
package output

import (
	"fmt"
	"sync"

	"github.com/decred/slog"
	"github.com/gen2brain/malgo"
)

func init() {
	Register("malgo", func(cfg Config) (Driver, error) {
		return NewMalgo(cfg.Log), nil
	})
}

// Malgo opens miniaudio playback devices. Device names are the names
// reported by malgo enumeration; "default" is the backend default device.
type Malgo struct {
	log slog.Logger

	mu       sync.Mutex
	malgoCtx *malgo.AllocatedContext
}

// NewMalgo creates a malgo driver. The miniaudio context is created on first
// use.
func NewMalgo(log slog.Logger) *Malgo {
	if log == nil {
		log = slog.Disabled
	}
	return &Malgo{log: log}
}

func (m *Malgo) Name() string { return "malgo" }

func (m *Malgo) context() (*malgo.AllocatedContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
			m.log.Tracef("miniaudio: %s", message)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}
	return m.malgoCtx, nil
}

func (m *Malgo) NameHints() ([]Hint, error) {
	ctx, err := m.context()
	if err != nil {
		return nil, err
	}
	devices, err := ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("failed to list playback devices: %w", err)
	}

	hints := make([]Hint, 0, len(devices))
	for _, dev := range devices {
		desc := "playback device"
		if dev.IsDefault != 0 {
			desc = "default playback device"
		}
		hints = append(hints, Hint{Name: dev.Name(), Desc: desc, IOID: "Output"})
	}
	return hints, nil
}

// findDevice returns the id of the playback device called name. A nil id
// selects the backend default.
func (m *Malgo) findDevice(ctx *malgo.AllocatedContext, name string) (*malgo.DeviceID, error) {
	if name == "" || name == DefaultDevice {
		return nil, nil
	}
	devices, err := ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("failed to list playback devices: %w", err)
	}
	for i := range devices {
		if devices[i].Name() == name {
			id := devices[i].ID
			return &id, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoDevice, name)
}

func (m *Malgo) Open(device string) (PCM, error) {
	ctx, err := m.context()
	if err != nil {
		return nil, err
	}
	id, err := m.findDevice(ctx, TrimPlug(device))
	if err != nil {
		return nil, err
	}

	return newRingPCM(device, m.log, func(p Params, pull func([]byte) int) (sink, error) {
		return newMalgoSink(ctx, id, p, pull)
	}), nil
}

// Close releases the miniaudio context. Devices opened through the driver
// must be closed first.
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.malgoCtx == nil {
		return nil
	}
	err := m.malgoCtx.Uninit()
	m.malgoCtx.Free()
	m.malgoCtx = nil
	if err != nil {
		return fmt.Errorf("malgo context uninit error: %w", err)
	}
	return nil
}

type malgoSink struct {
	device *malgo.Device
}

func newMalgoSink(ctx *malgo.AllocatedContext, id *malgo.DeviceID, p Params, pull func([]byte) int) (*malgoSink, error) {
	var format malgo.FormatType
	switch p.Format {
	case FormatU8:
		format = malgo.FormatU8
	case FormatS16LE:
		format = malgo.FormatS16
	case FormatS24_3LE:
		format = malgo.FormatS24
	case FormatS32LE:
		format = malgo.FormatS32
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, p.Format)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	if id != nil {
		deviceConfig.Playback.DeviceID = id.Pointer()
	}
	deviceConfig.Playback.Format = format
	deviceConfig.Playback.Channels = uint32(p.Channels)
	deviceConfig.SampleRate = uint32(p.Rate)
	deviceConfig.PeriodSizeInMilliseconds = uint32(clockPeriod.Milliseconds())
	deviceConfig.Alsa.NoMMap = 1

	frameBytes := p.FrameBytes()
	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, frameCount uint32) {
			pull(pOutput[:int(frameCount)*frameBytes])
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize playback device: %w", err)
	}
	return &malgoSink{device: device}, nil
}

func (s *malgoSink) start() error {
	if s.device.IsStarted() {
		return nil
	}
	return s.device.Start()
}

func (s *malgoSink) stop() error {
	if !s.device.IsStarted() {
		return nil
	}
	return s.device.Stop()
}

func (s *malgoSink) close() error {
	s.device.Uninit()
	return nil
}
