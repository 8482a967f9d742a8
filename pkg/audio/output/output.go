// ABOUTME: Playback device interface definition
// ABOUTME: Driver and PCM handle contracts shared by every backend
package output

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Device errors. ErrInterrupted, ErrXrun and ErrSuspended can be cleared by
// PCM.Recover. ErrAgain means the device cannot take more data right now.
var (
	ErrInterrupted = errors.New("interrupted system call")
	ErrXrun        = errors.New("buffer underrun")
	ErrSuspended   = errors.New("stream suspended")
	ErrAgain       = errors.New("resource temporarily unavailable")

	ErrNoDevice          = errors.New("no such device")
	ErrUnsupportedFormat = errors.New("unsupported sample format")
	ErrBadState          = errors.New("device in wrong state")
	ErrClosed            = errors.New("device closed")
)

// IsRecoverable returns true for errors PCM.Recover knows how to clear.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrInterrupted) || errors.Is(err, ErrXrun) ||
		errors.Is(err, ErrSuspended)
}

// PlugPrefix marks device names that go through a software conversion layer.
const PlugPrefix = "plug:"

// DefaultDevice is the name of the system default playback device.
const DefaultDevice = "default"

// TrimPlug strips PlugPrefix from a device name.
func TrimPlug(name string) string {
	return strings.TrimPrefix(name, PlugPrefix)
}

// SampleFormat is the on-wire layout of one sample.
type SampleFormat int

const (
	FormatUnknown SampleFormat = iota
	FormatU8
	FormatS16LE
	FormatS24_3LE
	FormatS32LE
)

// FormatForBits maps a sample width to its little-endian playback format.
// 8-bit audio is unsigned.
func FormatForBits(bits int) SampleFormat {
	switch bits {
	case 8:
		return FormatU8
	case 16:
		return FormatS16LE
	case 24:
		return FormatS24_3LE
	case 32:
		return FormatS32LE
	}
	return FormatUnknown
}

// Bytes returns the storage size of one sample.
func (f SampleFormat) Bytes() int {
	switch f {
	case FormatU8:
		return 1
	case FormatS16LE:
		return 2
	case FormatS24_3LE:
		return 3
	case FormatS32LE:
		return 4
	}
	return 0
}

func (f SampleFormat) String() string {
	switch f {
	case FormatU8:
		return "U8"
	case FormatS16LE:
		return "S16_LE"
	case FormatS24_3LE:
		return "S24_3LE"
	case FormatS32LE:
		return "S32_LE"
	}
	return fmt.Sprintf("Unknown(%d)", int(f))
}

// Access is the buffer access mode. Only interleaved read/write is used.
type Access int

const AccessRWInterleaved Access = 0

// Params are the hardware parameters applied after opening a device.
type Params struct {
	Format       SampleFormat
	Access       Access
	Channels     int
	Rate         int
	SoftResample bool

	// Latency is the requested total buffer time.
	Latency time.Duration
}

// FrameBytes is the size of one interleaved frame.
func (p Params) FrameBytes() int {
	return p.Format.Bytes() * p.Channels
}

// BufferFrames is the number of frames that fit in Latency.
func (p Params) BufferFrames() int {
	return int(int64(p.Rate) * int64(p.Latency) / int64(time.Second))
}

func (p Params) String() string {
	return fmt.Sprintf("%s/%dch/%dHz latency=%v", p.Format, p.Channels, p.Rate, p.Latency)
}

// Hint describes a device returned by name hint enumeration. IOID is
// "Input", "Output" or empty when the device handles both directions.
type Hint struct {
	Name string
	Desc string
	IOID string
}

// IsOutput returns true if the hinted device can play audio.
func (h Hint) IsOutput() bool {
	return h.IOID != "Input"
}

// Driver opens playback devices of one backend.
type Driver interface {
	// Name is the registry name of the backend.
	Name() string

	// Open opens a playback device in non-blocking mode. The returned
	// handle is unconfigured until SetParams succeeds.
	Open(device string) (PCM, error)

	// NameHints lists the devices the backend knows about.
	NameHints() ([]Hint, error)
}

// PCM is an open playback handle. Frame counts are in frames of the
// configured format; Writei takes interleaved bytes.
type PCM interface {
	Name() string
	SetParams(p Params) error

	// Writei writes up to frames frames from buf and returns how many the
	// device accepted. ErrAgain is returned when none fit.
	Writei(buf []byte, frames int) (int, error)

	// AvailUpdate returns the number of frames that can be written now.
	AvailUpdate() (int, error)

	// Delay returns the number of frames queued ahead of the next write.
	Delay() (int, error)

	// Recover attempts to clear err. It returns err unchanged when the
	// error is not recoverable.
	Recover(err error, silent bool) error

	Drop() error
	Prepare() error
	Close() error
}
