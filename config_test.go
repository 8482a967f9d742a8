// ABOUTME: Tests for pcmplay configuration loading
// ABOUTME: Covers defaults, config file values and flag precedence
package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Resonate-Protocol/pcmout-go/internal/assert"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pcmplay.conf")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	defaultCfgFile = filepath.Join(t.TempDir(), "missing.conf")

	cfg, err := loadConfig(nil)
	assert.NilErr(t, err)
	assert.Equal(t, cfg.PacketMs, 20)
	assert.Equal(t, cfg.Volume, 100)
	assert.Equal(t, cfg.Device, "")
	assert.Equal(t, cfg.File, "")
	assert.Equal(t, cfg.ToneHz, 440.0)
	assert.Equal(t, cfg.DebugLevel, "info")
}

func TestLoadConfigFileAndFlags(t *testing.T) {
	path := writeConfig(t, `
driver = "wavfile"
device = "surround51"
packetms = 40
volume = 80
loop = true
debuglevel = "debug,PUMP=trace"
`)

	cfg, err := loadConfig([]string{"-cfg", path, "-volume", "30", "song.flac"})
	assert.NilErr(t, err)
	assert.Equal(t, cfg.Driver, "wavfile")
	assert.Equal(t, cfg.Device, "surround51")
	assert.Equal(t, cfg.PacketMs, 40)
	assert.Equal(t, cfg.Volume, 30)
	assert.BoolIs(t, cfg.Loop, true)
	assert.Equal(t, cfg.DebugLevel, "debug,PUMP=trace")
	assert.Equal(t, cfg.File, "song.flac")
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := loadConfig([]string{"-cfg", filepath.Join(t.TempDir(), "nope.conf")})
	assert.NonNilErr(t, err)
}

func TestLoadConfigUnknownKey(t *testing.T) {
	path := writeConfig(t, `volumme = 3`)
	_, err := loadConfig([]string{"-cfg", path})
	assert.NonNilErr(t, err)
}

func TestLoadConfigValidation(t *testing.T) {
	defaultCfgFile = filepath.Join(t.TempDir(), "missing.conf")

	tests := [][]string{
		{"-packet-ms", "0"},
		{"-volume", "101"},
		{"-tone", "0"},
		{"a.wav", "b.wav"},
	}
	for _, args := range tests {
		if _, err := loadConfig(args); err == nil {
			t.Errorf("expected error for %v", args)
		}
	}
}
