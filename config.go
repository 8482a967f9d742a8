// ABOUTME: pcmplay configuration
// ABOUTME: Defaults, an optional TOML config file and command line overrides
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/Resonate-Protocol/pcmout-go/pkg/audio/output"
)

type config struct {
	Driver  string `toml:"driver"`
	Device  string `toml:"device"`
	WAVPath string `toml:"wavpath"`

	PacketMs int  `toml:"packetms"`
	Volume   int  `toml:"volume"`
	Loop     bool `toml:"loop"`

	// Rate, when set, resamples the source to this sample rate.
	Rate int `toml:"rate"`

	// Tone settings, used when no file is given.
	ToneHz       float64 `toml:"tonehz"`
	ToneRate     int     `toml:"tonerate"`
	ToneChannels int     `toml:"tonechannels"`
	ToneBits     int     `toml:"tonebits"`

	NoTUI            bool   `toml:"notui"`
	ListenPrometheus string `toml:"listenprometheus"`

	// log section
	LogFile    string `toml:"logfile"`
	DebugLevel string `toml:"debuglevel"`

	// File is the audio file to play, from the command line.
	File string `toml:"-"`

	ShowVersion bool `toml:"-"`
	ListDrivers bool `toml:"-"`
}

var defaultHomeDir = func() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".pcmplay")
}()

var defaultCfgFile = filepath.Join(defaultHomeDir, "pcmplay.conf")

func defaultConfig() *config {
	return &config{
		Driver:       output.DefaultDriverName(),
		Device:       "",
		WAVPath:      "pcmplay.wav",
		PacketMs:     20,
		Volume:       100,
		ToneHz:       440,
		ToneRate:     48000,
		ToneChannels: 2,
		ToneBits:     16,
		LogFile:      filepath.Join(defaultHomeDir, "logs", "pcmplay.log"),
		DebugLevel:   "info",
	}
}

// bindFlags registers every command line flag on fs. Defaults come from
// cfg so that explicitly set flags override the config file.
func bindFlags(fs *flag.FlagSet, cfg *config, cfgFile *string) {
	fs.StringVar(cfgFile, "cfg", defaultCfgFile, "Config file")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version")
	fs.BoolVar(&cfg.ListDrivers, "list-drivers", false, "List output drivers and exit")

	fs.StringVar(&cfg.Driver, "driver", cfg.Driver, "Output driver ("+strings.Join(output.Names(), ", ")+")")
	fs.StringVar(&cfg.Device, "device", cfg.Device, "Output device (empty selects one by channel count)")
	fs.StringVar(&cfg.WAVPath, "wav", cfg.WAVPath, "File written by the wavfile driver")
	fs.IntVar(&cfg.PacketMs, "packet-ms", cfg.PacketMs, "Audio fetched per packet in milliseconds")
	fs.IntVar(&cfg.Volume, "volume", cfg.Volume, "Initial volume in percent")
	fs.BoolVar(&cfg.Loop, "loop", cfg.Loop, "Loop the file")
	fs.IntVar(&cfg.Rate, "rate", cfg.Rate, "Resample the source to this rate (0 keeps the source rate)")
	fs.Float64Var(&cfg.ToneHz, "tone", cfg.ToneHz, "Tone frequency when no file is given")
	fs.IntVar(&cfg.ToneRate, "tone-rate", cfg.ToneRate, "Tone sample rate")
	fs.IntVar(&cfg.ToneChannels, "tone-channels", cfg.ToneChannels, "Tone channel count")
	fs.IntVar(&cfg.ToneBits, "tone-bits", cfg.ToneBits, "Tone bits per sample")
	fs.BoolVar(&cfg.NoTUI, "no-tui", cfg.NoTUI, "Disable TUI, use streaming logs instead")
	fs.StringVar(&cfg.ListenPrometheus, "metrics", cfg.ListenPrometheus, "Serve prometheus metrics on this address")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Log file path (empty disables)")
	fs.StringVar(&cfg.DebugLevel, "debuglevel", cfg.DebugLevel, "Log level, optionally per subsystem (info,PUMP=trace)")
}

// loadConfig builds the configuration from defaults, the config file and
// args, in increasing priority. A missing default config file is fine; a
// missing file named with -cfg is not.
func loadConfig(args []string) (*config, error) {
	// First pass only finds the config file.
	var cfgFile string
	probe := flag.NewFlagSet("pcmplay", flag.ContinueOnError)
	probe.SetOutput(io.Discard)
	bindFlags(probe, defaultConfig(), &cfgFile)
	if err := probe.Parse(args); err != nil && !errors.Is(err, flag.ErrHelp) {
		return nil, err
	}
	explicit := false
	probe.Visit(func(f *flag.Flag) {
		if f.Name == "cfg" {
			explicit = true
		}
	})

	cfg := defaultConfig()
	if err := cfg.loadFile(cfgFile, explicit); err != nil {
		return nil, err
	}

	fs := flag.NewFlagSet("pcmplay", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: pcmplay [flags] [file]\n\n")
		fs.PrintDefaults()
	}
	bindFlags(fs, cfg, &cfgFile)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 1 {
		return nil, fmt.Errorf("only one file can be played, got %d", fs.NArg())
	}
	cfg.File = fs.Arg(0)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *config) loadFile(path string, required bool) error {
	md, err := toml.DecodeFile(path, cfg)
	if errors.Is(err, os.ErrNotExist) && !required {
		return nil
	}
	if err != nil {
		return fmt.Errorf("unable to load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown keys in config %s: %v", path, undecoded)
	}
	return nil
}

func (cfg *config) validate() error {
	if cfg.PacketMs <= 0 {
		return fmt.Errorf("packet size must be positive, got %dms", cfg.PacketMs)
	}
	if cfg.Volume < 0 || cfg.Volume > 100 {
		return fmt.Errorf("volume must be between 0 and 100, got %d", cfg.Volume)
	}
	if cfg.Rate < 0 {
		return fmt.Errorf("invalid sample rate %d", cfg.Rate)
	}
	if cfg.File == "" && cfg.ToneHz <= 0 {
		return errors.New("no file given and tone disabled")
	}
	return nil
}
