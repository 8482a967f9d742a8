// ABOUTME: PCM handle backed by a ring buffer drained by a device callback
// ABOUTME: Emulates non-blocking ALSA semantics for pull-model backends
package output

import (
	"fmt"
	"sync"

	"github.com/decred/slog"
)

// sink is the device side of a ringPCM. It pulls bytes from the ring on its
// own schedule once started.
type sink interface {
	start() error
	stop() error
	close() error
}

// sinkFactory creates the device side once parameters are known. pull fills
// dst from the ring and returns how many bytes were real audio.
type sinkFactory func(p Params, pull func(dst []byte) int) (sink, error)

type pcmState int

const (
	stateOpen pcmState = iota
	stateSetup
	statePrepared
	stateRunning
	stateXrun
	stateClosed
)

func (s pcmState) String() string {
	switch s {
	case stateOpen:
		return "OPEN"
	case stateSetup:
		return "SETUP"
	case statePrepared:
		return "PREPARED"
	case stateRunning:
		return "RUNNING"
	case stateXrun:
		return "XRUN"
	case stateClosed:
		return "CLOSED"
	}
	return fmt.Sprintf("pcmState(%d)", int(s))
}

// ringPCM implements PCM for backends that pull audio from a callback.
// Writes land in a ring sized to the requested latency; the device callback
// drains it. Running dry while started is reported as ErrXrun, like a
// hardware underrun.
type ringPCM struct {
	name    string
	log     slog.Logger
	newSink sinkFactory

	mu         sync.Mutex
	state      pcmState
	params     Params
	frameBytes int
	ring       *RingBuffer
	sink       sink
	underruns  int
}

func newRingPCM(name string, log slog.Logger, newSink sinkFactory) *ringPCM {
	return &ringPCM{
		name:    name,
		log:     log,
		newSink: newSink,
		state:   stateOpen,
	}
}

func (p *ringPCM) Name() string {
	return p.name
}

func (p *ringPCM) SetParams(params Params) error {
	if params.Access != AccessRWInterleaved {
		return fmt.Errorf("%w: access mode %d", ErrUnsupportedFormat, params.Access)
	}
	if params.Format.Bytes() == 0 || params.Channels <= 0 || params.Rate <= 0 {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, params)
	}

	p.mu.Lock()
	if p.state != stateOpen && p.state != stateSetup {
		state := p.state
		p.mu.Unlock()
		return fmt.Errorf("%w: set params in %s", ErrBadState, state)
	}
	old := p.sink
	p.sink = nil
	p.mu.Unlock()

	if old != nil {
		old.close()
	}

	frameBytes := params.FrameBytes()
	frames := params.BufferFrames()
	if frames < 1 {
		frames = 1
	}
	ring := NewRingBuffer(frames * frameBytes)

	s, err := p.newSink(params, func(dst []byte) int {
		return p.pull(ring, dst)
	})
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.params = params
	p.frameBytes = frameBytes
	p.ring = ring
	p.sink = s
	p.state = statePrepared
	p.mu.Unlock()

	p.log.Debugf("Configured %s: %s, %d frame buffer", p.name, params, frames)
	return nil
}

// pull is called from the device side.
func (p *ringPCM) pull(ring *RingBuffer, dst []byte) int {
	n := ring.Read(dst)
	if n < len(dst) {
		p.mu.Lock()
		if p.state == stateRunning && p.ring == ring {
			p.state = stateXrun
			p.underruns++
		}
		p.mu.Unlock()
	}
	return n
}

// check returns the error matching the current state for I/O calls. Must
// be called with p.mu held.
func (p *ringPCM) check() error {
	switch p.state {
	case stateClosed:
		return ErrClosed
	case stateXrun:
		return ErrXrun
	case stateOpen, stateSetup:
		return fmt.Errorf("%w: %s", ErrBadState, p.state)
	}
	return nil
}

func (p *ringPCM) Writei(buf []byte, frames int) (int, error) {
	p.mu.Lock()
	if err := p.check(); err != nil {
		p.mu.Unlock()
		return 0, err
	}
	if frames*p.frameBytes > len(buf) {
		frames = len(buf) / p.frameBytes
	}
	free := p.ring.Free() / p.frameBytes
	if frames > free {
		frames = free
	}
	if frames == 0 {
		p.mu.Unlock()
		return 0, ErrAgain
	}

	p.ring.Write(buf[:frames*p.frameBytes])

	var toStart sink
	if p.state == statePrepared {
		p.state = stateRunning
		toStart = p.sink
	}
	p.mu.Unlock()

	if toStart != nil {
		if err := toStart.start(); err != nil {
			return 0, fmt.Errorf("failed to start device: %w", err)
		}
	}
	return frames, nil
}

func (p *ringPCM) AvailUpdate() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(); err != nil {
		return 0, err
	}
	return p.ring.Free() / p.frameBytes, nil
}

func (p *ringPCM) Delay() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(); err != nil {
		return 0, err
	}
	return p.ring.Available() / p.frameBytes, nil
}

func (p *ringPCM) Recover(err error, silent bool) error {
	if !IsRecoverable(err) {
		return err
	}
	if !silent {
		p.log.Warnf("%s: recovering from %v", p.name, err)
	}
	return p.Prepare()
}

// Drop stops the device and discards queued frames.
func (p *ringPCM) Drop() error {
	p.mu.Lock()
	if p.state == stateClosed {
		p.mu.Unlock()
		return ErrClosed
	}
	if p.state == stateOpen {
		p.mu.Unlock()
		return fmt.Errorf("%w: drop in %s", ErrBadState, p.state)
	}
	s := p.sink
	wasRunning := p.state == stateRunning || p.state == stateXrun
	p.state = stateSetup
	p.mu.Unlock()

	if wasRunning && s != nil {
		if err := s.stop(); err != nil {
			p.log.Warnf("%s: device stop error: %v", p.name, err)
		}
	}
	p.ring.Reset()
	return nil
}

// Prepare readies the device for the next write. Queued frames from an
// underrun are discarded.
func (p *ringPCM) Prepare() error {
	p.mu.Lock()
	switch p.state {
	case stateClosed:
		p.mu.Unlock()
		return ErrClosed
	case stateOpen:
		p.mu.Unlock()
		return fmt.Errorf("%w: prepare in %s", ErrBadState, p.state)
	case stateRunning:
		// Already prepared and started.
		p.mu.Unlock()
		return nil
	}
	s := p.sink
	wasXrun := p.state == stateXrun
	p.state = statePrepared
	p.mu.Unlock()

	if wasXrun && s != nil {
		if err := s.stop(); err != nil {
			p.log.Warnf("%s: device stop error: %v", p.name, err)
		}
		p.ring.Reset()
	}
	return nil
}

func (p *ringPCM) Close() error {
	p.mu.Lock()
	if p.state == stateClosed {
		p.mu.Unlock()
		return ErrClosed
	}
	s := p.sink
	p.sink = nil
	p.state = stateClosed
	underruns := p.underruns
	p.mu.Unlock()

	if underruns > 0 {
		p.log.Debugf("%s: closing after %d underruns", p.name, underruns)
	}
	if s == nil {
		return nil
	}
	if err := s.stop(); err != nil {
		p.log.Warnf("%s: device stop error: %v", p.name, err)
	}
	return s.close()
}
