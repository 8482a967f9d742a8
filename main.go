// ABOUTME: Entry point for pcmplay
// ABOUTME: Plays a file or test tone through a pcmout stream with TUI controls
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/Resonate-Protocol/pcmout-go/internal/app"
	"github.com/Resonate-Protocol/pcmout-go/internal/ui"
	"github.com/Resonate-Protocol/pcmout-go/internal/version"
	"github.com/Resonate-Protocol/pcmout-go/pkg/audio"
	"github.com/Resonate-Protocol/pcmout-go/pkg/audio/decode"
	"github.com/Resonate-Protocol/pcmout-go/pkg/audio/output"
	"github.com/Resonate-Protocol/pcmout-go/pkg/audio/resample"
	"github.com/Resonate-Protocol/pcmout-go/pkg/pcmout"
)

// errPlaybackDone ends the run group once the player returns.
var errPlaybackDone = errors.New("playback done")

// openSource opens the file to play, or a tone when there is none, and
// resamples it when a rate is configured.
func openSource(cfg *config) (decode.Reader, string, error) {
	r, name, err := openReader(cfg)
	if err != nil || cfg.Rate == 0 || r.Format().SampleRate == cfg.Rate {
		return r, name, err
	}

	rs, err := resample.NewReader(r, cfg.Rate)
	if err != nil {
		r.Close()
		return nil, "", err
	}
	return rs, fmt.Sprintf("%s (%dHz -> %dHz)", name, r.Format().SampleRate, cfg.Rate), nil
}

func openReader(cfg *config) (decode.Reader, string, error) {
	if cfg.File != "" {
		r, err := decode.Open(cfg.File)
		if err != nil {
			return nil, "", err
		}
		return r, filepath.Base(cfg.File), nil
	}

	format := audio.Format{
		Encoding:   audio.EncodingLinearPCM,
		SampleRate: cfg.ToneRate,
		Channels:   cfg.ToneChannels,
		BitDepth:   cfg.ToneBits,
	}
	if err := format.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid tone format: %w", err)
	}
	return decode.NewTone(format, cfg.ToneHz, 0), fmt.Sprintf("%.0fHz tone", cfg.ToneHz), nil
}

func realMain() error {
	cfg, err := loadConfig(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	if cfg.ShowVersion {
		fmt.Printf("%s %s (%s)\n", version.Product, version.Version, runtime.Version())
		return nil
	}
	if cfg.ListDrivers {
		for _, name := range output.Names() {
			fmt.Println(name)
		}
		return nil
	}

	useTUI := !cfg.NoTUI

	// TUI mode: log only to file.
	var stdOut io.Writer = os.Stdout
	if useTUI {
		stdOut = nil
	}
	logBknd, err := newLogBackend(cfg.LogFile, cfg.DebugLevel, stdOut)
	if err != nil {
		return err
	}
	defer logBknd.Close()
	log := logBknd.logger("PCMP")
	log.Infof("Starting %s %s", version.Product, version.Version)

	drv, err := output.Lookup(cfg.Driver, output.Config{
		Log:     logBknd.logger("OUTP"),
		WAVPath: cfg.WAVPath,
	})
	if err != nil {
		return err
	}
	if c, ok := drv.(io.Closer); ok {
		defer c.Close()
	}

	reader, sourceName, err := openSource(cfg)
	if err != nil {
		return err
	}

	var metrics *pcmout.Metrics
	if cfg.ListenPrometheus != "" {
		metrics = pcmout.NewMetrics()
	}

	var tuiProg *tea.Program
	var controls *ui.Controls
	if useTUI {
		controls = ui.NewControls()
		tuiProg = ui.Run(controls)
	}

	player, err := app.New(app.Config{
		Driver:         drv,
		Device:         cfg.Device,
		Reader:         reader,
		SourceName:     sourceName,
		Loop:           cfg.Loop,
		PacketDuration: time.Duration(cfg.PacketMs) * time.Millisecond,
		Volume:         cfg.Volume,
		Muted:          cfg.Volume == 0,
		Metrics:        metrics,
		Log:            logBknd.logger("APP"),
		PumpLog:        logBknd.logger("PUMP"),
		Controls:       controls,
		OnStatus: func(msg ui.StatusMsg) {
			if tuiProg != nil {
				tuiProg.Send(msg)
			}
		},
	})
	if err != nil {
		return err
	}

	sigCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	g, gctx := errgroup.WithContext(sigCtx)

	g.Go(func() error {
		if err := player.Run(gctx); err != nil {
			return err
		}
		return errPlaybackDone
	})

	if tuiProg != nil {
		g.Go(func() error {
			_, err := tuiProg.Run()
			return err
		})
		g.Go(func() error {
			<-gctx.Done()
			tuiProg.Quit()
			return nil
		})
	}

	if metrics != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{
			Addr:              cfg.ListenPrometheus,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Infof("Serving metrics on http://%s/metrics", cfg.ListenPrometheus)
		g.Go(func() error {
			err := srv.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
		g.Go(func() error {
			<-gctx.Done()
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		})
	}

	err = g.Wait()
	if errors.Is(err, errPlaybackDone) {
		err = nil
	}
	if sigCtx.Err() != nil {
		log.Infof("Shutdown signal received")
	}
	log.Infof("Player stopped")
	return err
}

func main() {
	if err := realMain(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err.Error())
		os.Exit(1)
	}
}
