// ABOUTME: Device hint listing tool
// ABOUTME: Prints a driver's playback devices and the device auto-selection picks per channel count
package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/decred/slog"

	"github.com/Resonate-Protocol/pcmout-go/pkg/audio"
	"github.com/Resonate-Protocol/pcmout-go/pkg/audio/output"
	"github.com/Resonate-Protocol/pcmout-go/pkg/pcmout"
)

var (
	driverName = flag.String("driver", output.DefaultDriverName(), "Output driver")
	rate       = flag.Int("rate", 48000, "Sample rate used for the selection probe")
	bits       = flag.Int("bits", 16, "Bits per sample used for the selection probe")
	maxCh      = flag.Int("max-channels", 8, "Highest channel count to probe")
	noProbe    = flag.Bool("no-probe", false, "Only list hints, do not open devices")
	debugLevel = flag.String("debuglevel", "warn", "Log level")
)

// resolve opens a stream for channels on the auto-selected device and
// reports what the pump settled on.
func resolve(m *pcmout.Manager, channels int) (pcmout.DeviceInfo, error) {
	format := audio.Format{
		Encoding:   audio.EncodingLinearPCM,
		SampleRate: *rate,
		Channels:   channels,
		BitDepth:   *bits,
	}
	s, err := m.MakeStream(format, pcmout.AutoSelectDevice)
	if err != nil {
		return pcmout.DeviceInfo{}, err
	}
	defer s.Close()

	// 20ms packets.
	if err := s.Open(format.SampleRate / 50 * format.BytesPerFrame()); err != nil {
		return pcmout.DeviceInfo{}, err
	}

	opened := make(chan struct{})
	m.Loop().Post(func() { close(opened) })
	select {
	case <-opened:
	case <-time.After(5 * time.Second):
		return pcmout.DeviceInfo{}, fmt.Errorf("timed out opening a %d channel device", channels)
	}
	return s.Device(), nil
}

func realMain() error {
	flag.Parse()

	bknd := slog.NewBackend(os.Stderr)
	log := bknd.Logger("HINT")
	if level, ok := slog.LevelFromString(*debugLevel); ok {
		log.SetLevel(level)
	}

	drv, err := output.Lookup(*driverName, output.Config{Log: log})
	if err != nil {
		return err
	}

	hints, err := drv.NameHints()
	if err != nil {
		return fmt.Errorf("unable to list devices: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "DEVICE\tDIRECTION\tDESCRIPTION\n")
	for _, h := range hints {
		dir := h.IOID
		if dir == "" {
			dir = "Both"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", h.Name, dir, h.Desc)
	}
	w.Flush()

	if *noProbe {
		return nil
	}

	m := pcmout.NewManager(pcmout.ManagerConfig{Driver: drv, Log: log})
	defer m.Close()

	fmt.Println()
	w = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "CHANNELS\tSELECTED\tOUTPUT CHANNELS\tDOWNMIX\n")
	for ch := 1; ch <= *maxCh; ch++ {
		info, err := resolve(m, ch)
		switch {
		case err != nil:
			fmt.Fprintf(w, "%d\terror: %v\t\t\n", ch, err)
		case !info.Available:
			fmt.Fprintf(w, "%d\t(none)\t\t\n", ch)
		default:
			fmt.Fprintf(w, "%d\t%s\t%d\t%v\n", ch, info.Name, info.Channels, info.Downmix)
		}
	}
	return w.Flush()
}

func main() {
	if err := realMain(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err.Error())
		os.Exit(1)
	}
}
