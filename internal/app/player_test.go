// ABOUTME: Tests for playback application orchestration
// ABOUTME: Tests player creation, end of source, quit and device failure
package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Resonate-Protocol/pcmout-go/internal/pcmtest"
	"github.com/Resonate-Protocol/pcmout-go/internal/testutils"
	"github.com/Resonate-Protocol/pcmout-go/internal/ui"
	"github.com/Resonate-Protocol/pcmout-go/pkg/audio"
	"github.com/Resonate-Protocol/pcmout-go/pkg/audio/decode"
	"github.com/Resonate-Protocol/pcmout-go/pkg/audio/output"
)

var toneFormat = audio.Format{
	Encoding:   audio.EncodingLinearPCM,
	SampleRate: 8000,
	Channels:   2,
	BitDepth:   16,
}

func TestNewPlayerRequiresDriverAndReader(t *testing.T) {
	if _, err := New(Config{Reader: decode.NewTone(toneFormat, 440, 0)}); err == nil {
		t.Error("expected error without a driver")
	}

	if _, err := New(Config{Driver: output.NewNull(nil)}); err == nil {
		t.Error("expected error without a reader")
	}
}

func TestConfigDefaults(t *testing.T) {
	player, err := New(Config{
		Driver: output.NewNull(nil),
		Reader: decode.NewTone(toneFormat, 440, 0),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if player.cfg.PacketDuration != defaultPacketDuration {
		t.Errorf("expected packet duration %v, got %v", defaultPacketDuration, player.cfg.PacketDuration)
	}

	if player.volume != 100 {
		t.Errorf("expected volume 100, got %d", player.volume)
	}

	if player.cfg.StatusInterval != defaultStatusInterval {
		t.Errorf("expected status interval %v, got %v", defaultStatusInterval, player.cfg.StatusInterval)
	}
}

func TestPlayerPlaysToEnd(t *testing.T) {
	var statuses []ui.StatusMsg
	player, err := New(Config{
		Driver:     output.NewNull(nil),
		Device:     output.DefaultDevice,
		Reader:     decode.NewTone(toneFormat, 440, 800),
		SourceName: "tone",
		Log:        testutils.TestLoggerSys(t, "APP"),
		PumpLog:    testutils.TestLoggerSys(t, "PUMP"),
		OnStatus:   func(msg ui.StatusMsg) { statuses = append(statuses, msg) },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	if err := player.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ctx.Err() != nil {
		t.Fatal("player did not finish before the timeout")
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("finished too fast for 100ms of audio: %v", elapsed)
	}

	if got := player.Stats().FramesWritten; got != 800 {
		t.Errorf("expected 800 frames written, got %d", got)
	}

	if len(statuses) == 0 || statuses[0].Source != "tone" {
		t.Errorf("expected initial status with source, got %+v", statuses)
	}
	last := statuses[len(statuses)-1]
	if last.Device == nil || last.Device.Name != output.DefaultDevice {
		t.Errorf("expected final device status, got %+v", last)
	}
}

func TestPlayerQuit(t *testing.T) {
	controls := ui.NewControls()
	player, err := New(Config{
		Driver:   output.NewNull(nil),
		Device:   output.DefaultDevice,
		Reader:   decode.NewTone(toneFormat, 440, 0),
		Controls: controls,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	controls.Commands <- ui.Command{Kind: ui.CommandVolume, Volume: 50}
	controls.Commands <- ui.Command{Kind: ui.CommandPause, Paused: true}
	controls.Commands <- ui.Command{Kind: ui.CommandPause, Paused: false}
	go func() {
		time.Sleep(100 * time.Millisecond)
		controls.Quit <- struct{}{}
	}()

	done := make(chan error, 1)
	go func() { done <- player.Run(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("player did not quit")
	}

	if player.volume != 50 {
		t.Errorf("expected volume 50, got %d", player.volume)
	}
}

func TestPlayerContextCancel(t *testing.T) {
	player, err := New(Config{
		Driver: output.NewNull(nil),
		Device: output.DefaultDevice,
		Reader: decode.NewTone(toneFormat, 440, 0),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := player.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if player.Stats().FramesWritten == 0 {
		t.Error("expected some frames written")
	}
}

func TestPlayerDeviceUnavailable(t *testing.T) {
	drv := &pcmtest.Driver{Accept: func(string, int) bool { return false }}
	player, err := New(Config{
		Driver:         drv,
		Device:         "hw:7",
		Reader:         decode.NewTone(toneFormat, 440, 0),
		StatusInterval: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = player.Run(ctx)
	if !errors.Is(err, ErrDeviceStopped) {
		t.Fatalf("expected ErrDeviceStopped, got %v", err)
	}
}

func TestPlayerRejectsUnplayableFormat(t *testing.T) {
	format := toneFormat
	format.BitDepth = 12
	player, err := New(Config{
		Driver: &pcmtest.Driver{},
		Reader: decode.NewTone(format, 440, 0),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := player.Run(context.Background()); err == nil {
		t.Error("expected error for 12-bit audio")
	}
}

func TestVolumeScalar(t *testing.T) {
	tests := []struct {
		percent int
		muted   bool
		want    float64
	}{
		{100, false, 1},
		{50, false, 0.5},
		{50, true, 0},
		{0, false, 0},
		{150, false, 1},
	}

	for _, tt := range tests {
		if got := volumeScalar(tt.percent, tt.muted); got != tt.want {
			t.Errorf("volumeScalar(%d, %v) = %v, want %v", tt.percent, tt.muted, got, tt.want)
		}
	}
}

func TestPacketBytes(t *testing.T) {
	if got := packetBytes(toneFormat, 20*time.Millisecond); got != 640 {
		t.Errorf("expected 640 bytes, got %d", got)
	}

	if got := packetBytes(toneFormat, time.Microsecond); got != 4 {
		t.Errorf("expected one frame, got %d", got)
	}
}

func TestDelayMillis(t *testing.T) {
	if got := delayMillis(3200, toneFormat, 2); got != 100 {
		t.Errorf("expected 100ms, got %d", got)
	}

	if got := delayMillis(3200, toneFormat, 0); got != 0 {
		t.Errorf("expected 0 without channels, got %d", got)
	}
}
