// ABOUTME: pcmplay log backend
// ABOUTME: Subsystem loggers writing to the console and a rotating log file
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

const maxLogFiles = 10

type logBackend struct {
	stdOut          io.Writer
	logRotator      *rotator.Rotator
	bknd            *slog.Backend
	defaultLogLevel slog.Level
	logLevels       map[string]slog.Level

	mu      sync.Mutex
	loggers map[string]slog.Logger
}

// newLogBackend writes to stdOut and logFile when they are set. debugLevel
// is a default level optionally followed by subsys=level pairs.
func newLogBackend(logFile, debugLevel string, stdOut io.Writer) (*logBackend, error) {
	b := &logBackend{
		stdOut:          stdOut,
		defaultLogLevel: slog.LevelInfo,
		logLevels:       make(map[string]slog.Level),
		loggers:         make(map[string]slog.Logger),
	}

	for _, v := range strings.Split(debugLevel, ",") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		fields := strings.Split(v, "=")
		switch len(fields) {
		case 1:
			level, ok := slog.LevelFromString(fields[0])
			if !ok {
				return nil, fmt.Errorf("unknown log level %q", fields[0])
			}
			b.defaultLogLevel = level
		case 2:
			level, ok := slog.LevelFromString(fields[1])
			if !ok {
				return nil, fmt.Errorf("unknown log level %q for %s", fields[1], fields[0])
			}
			b.logLevels[strings.ToUpper(fields[0])] = level
		default:
			return nil, fmt.Errorf("unable to parse %q as subsys=level "+
				"debuglevel string", v)
		}
	}

	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %v", err)
		}
		logRotator, err := rotator.New(logFile, 1024, false, maxLogFiles)
		if err != nil {
			return nil, fmt.Errorf("failed to create file rotator: %v", err)
		}
		b.logRotator = logRotator
	}

	b.bknd = slog.NewBackend(b)
	return b, nil
}

func (bknd *logBackend) Write(b []byte) (int, error) {
	if bknd.stdOut != nil {
		bknd.stdOut.Write(b)
	}
	if bknd.logRotator != nil {
		bknd.logRotator.Write(b)
	}

	return len(b), nil
}

// logger returns the logger for subsys, creating it on first use.
func (bknd *logBackend) logger(subsys string) slog.Logger {
	bknd.mu.Lock()
	defer bknd.mu.Unlock()

	if l, ok := bknd.loggers[subsys]; ok {
		return l
	}

	l := bknd.bknd.Logger(subsys)
	bknd.loggers[subsys] = l
	if level, ok := bknd.logLevels[subsys]; ok {
		l.SetLevel(level)
	} else {
		l.SetLevel(bknd.defaultLogLevel)
	}

	return l
}

func (bknd *logBackend) Close() error {
	if bknd.logRotator != nil {
		return bknd.logRotator.Close()
	}
	return nil
}
