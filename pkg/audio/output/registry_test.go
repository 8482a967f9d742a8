// ABOUTME: Tests for the driver registry
// ABOUTME: Verifies built-in registration and lookups
package output

import (
	"testing"

	"github.com/Resonate-Protocol/pcmout-go/internal/assert"
)

func TestBuiltinDriversImplementDriver(t *testing.T) {
	var _ Driver = (*Null)(nil)
	var _ Driver = (*WAVFile)(nil)
	var _ PCM = (*ringPCM)(nil)
}

func TestRegistryBuiltins(t *testing.T) {
	names := Names()
	assert.Contains(t, names, "null")
	assert.Contains(t, names, "wavfile")

	drv, err := Lookup("null", Config{})
	assert.NilErr(t, err)
	assert.Equal(t, drv.Name(), "null")

	if !defaultRegistry.Has(DefaultDriverName()) {
		t.Errorf("default driver %q not registered", DefaultDriverName())
	}
}

func TestRegistryUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Lookup("nope", Config{})
	assert.NonNilErr(t, err)
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()
	r.Register("b", func(cfg Config) (Driver, error) { return NewNull(cfg.Log), nil })
	r.Register("a", func(cfg Config) (Driver, error) { return NewNull(cfg.Log), nil })

	assert.DeepEqual(t, r.Names(), []string{"a", "b"})
	assert.BoolIs(t, r.Has("a"), true)
	assert.BoolIs(t, r.Has("c"), false)
}

func TestFormatForBits(t *testing.T) {
	tests := []struct {
		bits   int
		format SampleFormat
		bytes  int
	}{
		{8, FormatU8, 1},
		{16, FormatS16LE, 2},
		{24, FormatS24_3LE, 3},
		{32, FormatS32LE, 4},
		{12, FormatUnknown, 0},
	}

	for _, tt := range tests {
		f := FormatForBits(tt.bits)
		if f != tt.format {
			t.Errorf("bits %d: expected %s, got %s", tt.bits, tt.format, f)
		}
		if f.Bytes() != tt.bytes {
			t.Errorf("bits %d: expected %d bytes, got %d", tt.bits, tt.bytes, f.Bytes())
		}
	}
}

func TestParamsBufferFrames(t *testing.T) {
	p := Params{Format: FormatS16LE, Channels: 6, Rate: 48000, Latency: testParams.Latency * 40}
	assert.Equal(t, p.BufferFrames(), 1920)
	assert.Equal(t, p.FrameBytes(), 12)
}

func TestIsRecoverable(t *testing.T) {
	assert.BoolIs(t, IsRecoverable(ErrXrun), true)
	assert.BoolIs(t, IsRecoverable(ErrSuspended), true)
	assert.BoolIs(t, IsRecoverable(ErrInterrupted), true)
	assert.BoolIs(t, IsRecoverable(ErrAgain), false)
	assert.BoolIs(t, IsRecoverable(ErrNoDevice), false)
}
