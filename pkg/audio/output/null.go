// ABOUTME: Null output driver that discards audio in real time
// ABOUTME: Always available; accepts any device name
package output

import "github.com/decred/slog"

// Null plays audio into nothing at the device's sample rate.
type Null struct {
	log slog.Logger
}

// NewNull creates a null driver.
func NewNull(log slog.Logger) *Null {
	if log == nil {
		log = slog.Disabled
	}
	return &Null{log: log}
}

func (n *Null) Name() string { return "null" }

func (n *Null) Open(device string) (PCM, error) {
	return newRingPCM(device, n.log, func(p Params, pull func([]byte) int) (sink, error) {
		return newClockedSink(p, pull, func([]byte, int) {}), nil
	}), nil
}

func (n *Null) NameHints() ([]Hint, error) {
	return []Hint{{Name: "null", Desc: "Discard all samples", IOID: "Output"}}, nil
}
