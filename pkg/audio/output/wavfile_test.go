// ABOUTME: Tests for the WAV file output driver
// ABOUTME: Renders frames through the driver and decodes the result
package output

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/wav"

	"github.com/Resonate-Protocol/pcmout-go/internal/assert"
	"github.com/Resonate-Protocol/pcmout-go/internal/testutils"
)

func TestWAVFileResolve(t *testing.T) {
	drv := NewWAVFile("/tmp/out.wav", nil)

	tests := []struct {
		device  string
		want    string
		wantErr bool
	}{
		{"default", "/tmp/out.wav", false},
		{"plug:default", "/tmp/out.wav", false},
		{"plug:/data/other.WAV", "/data/other.WAV", false},
		{"surround51", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.device, func(t *testing.T) {
			got, err := drv.resolve(tt.device)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoDevice)
				return
			}
			assert.NilErr(t, err)
			assert.Equal(t, got, tt.want)
		})
	}

	_, err := NewWAVFile("", nil).resolve("default")
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestWAVFileHints(t *testing.T) {
	hints, err := NewWAVFile("/tmp/out.wav", nil).NameHints()
	assert.NilErr(t, err)
	if len(hints) != 1 || hints[0].Name != DefaultDevice || !hints[0].IsOutput() {
		t.Errorf("unexpected hints %v", hints)
	}
}

func TestWAVFileRender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "render.wav")
	drv := NewWAVFile(path, testutils.TestLoggerSys(t, "WAVF"))

	pcm, err := drv.Open("default")
	assert.NilErr(t, err)
	assert.NilErr(t, pcm.SetParams(Params{
		Format:   FormatS16LE,
		Channels: 2,
		Rate:     48000,
		Latency:  100 * time.Millisecond,
	}))

	const frames = 480
	buf := make([]byte, frames*4)
	for i := 0; i < frames*2; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(i-480)))
	}

	n, err := pcm.Writei(buf, frames)
	assert.NilErr(t, err)
	assert.Equal(t, n, frames)
	assert.NilErr(t, pcm.Close())

	f, err := os.Open(path)
	assert.NilErr(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatalf("invalid wav file")
	}
	assert.Equal(t, int(dec.NumChans), 2)
	assert.Equal(t, int(dec.SampleRate), 48000)
	assert.Equal(t, int(dec.BitDepth), 16)

	pcmBuf, err := dec.FullPCMBuffer()
	assert.NilErr(t, err)
	if len(pcmBuf.Data) < frames*2 {
		t.Fatalf("expected at least %d samples, got %d", frames*2, len(pcmBuf.Data))
	}
	for i := 0; i < frames*2; i++ {
		if pcmBuf.Data[i] != i-480 {
			t.Fatalf("sample %d: expected %d, got %d", i, i-480, pcmBuf.Data[i])
		}
	}
}
