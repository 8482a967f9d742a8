// ABOUTME: Test logging helpers
// ABOUTME: Routes slog output through testing.TB so it shows with -v
package testutils

import (
	"sync"
	"testing"

	"github.com/decred/slog"
)

// TestLogBackend is a slog backend suitable for using with tests.
type TestLogBackend struct {
	mtx  sync.Mutex
	tb   testing.TB
	done bool
}

func (tlb *TestLogBackend) Write(b []byte) (int, error) {
	tlb.mtx.Lock()
	if !tlb.done {
		tlb.tb.Log(string(b[:len(b)-1]))
	}
	tlb.mtx.Unlock()
	return len(b), nil
}

// NewTestLogBackend returns a log backend that can be used as an io.Writer to
// write logs to during a test. Writes after the test ends are discarded.
func NewTestLogBackend(t testing.TB) *TestLogBackend {
	tlb := &TestLogBackend{tb: t}
	t.Cleanup(func() {
		tlb.mtx.Lock()
		tlb.done = true
		tlb.mtx.Unlock()
	})
	return tlb
}

// TestLoggerSys returns an slog.Logger that logs by issuing t.Log calls.
func TestLoggerSys(t testing.TB, sys string) slog.Logger {
	bknd := slog.NewBackend(NewTestLogBackend(t))
	logg := bknd.Logger(sys)
	logg.SetLevel(slog.LevelTrace)
	return logg
}
