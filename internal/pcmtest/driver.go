// ABOUTME: Scripted fake playback driver for tests
// ABOUTME: Records every device call and lets tests inject errors per operation
package pcmtest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Resonate-Protocol/pcmout-go/pkg/audio/output"
)

// Device operation names recorded by PCM.
const (
	OpSetParams   = "set_params"
	OpWritei      = "writei"
	OpAvailUpdate = "avail_update"
	OpDelay       = "delay"
	OpRecover     = "recover"
	OpDrop        = "drop"
	OpPrepare     = "prepare"
	OpClose       = "close"
)

// OpenAttempt records one Open+SetParams attempt on a device name.
type OpenAttempt struct {
	Name     string
	Channels int
	OK       bool
}

// Driver is an output.Driver whose devices exist only in memory.
type Driver struct {
	mu sync.Mutex

	// Hints returned by NameHints, or HintsErr.
	Hints    []output.Hint
	HintsErr error

	// Accept decides whether opening name with the given channel count
	// succeeds. Nil accepts every device.
	Accept func(name string, channels int) bool

	// BufferFrames overrides the device buffer size. Zero derives it from
	// the requested latency.
	BufferFrames int

	// MaxWriteFrames caps how many frames a single Writei accepts.
	MaxWriteFrames int

	// CloseErr is returned by Close on opened devices.
	CloseErr error

	attempts []OpenAttempt
	pcms     []*PCM
}

var _ output.Driver = (*Driver)(nil)

func (d *Driver) Name() string { return "pcmtest" }

func (d *Driver) NameHints() ([]output.Hint, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.HintsErr != nil {
		return nil, d.HintsErr
	}
	return append([]output.Hint(nil), d.Hints...), nil
}

func (d *Driver) Open(name string) (output.PCM, error) {
	p := &PCM{driver: d, name: name, errs: make(map[string][]error)}
	return p, nil
}

// Attempts returns every device open attempt, in order.
func (d *Driver) Attempts() []OpenAttempt {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]OpenAttempt(nil), d.attempts...)
}

// PCMs returns the devices that were configured successfully.
func (d *Driver) PCMs() []*PCM {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*PCM(nil), d.pcms...)
}

// Last returns the most recently configured device, or nil.
func (d *Driver) Last() *PCM {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.pcms) == 0 {
		return nil
	}
	return d.pcms[len(d.pcms)-1]
}

// PCM is an in-memory device. Frames written stay queued until Play is
// called.
type PCM struct {
	driver *Driver
	name   string

	mu           sync.Mutex
	params       output.Params
	bufferFrames int
	queued       int
	written      []byte
	writeSizes   []int
	calls        []string
	errs         map[string][]error
	closed       bool
}

var _ output.PCM = (*PCM)(nil)

// Fail queues errors returned by the next calls of op, one per call.
func (p *PCM) Fail(op string, errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs[op] = append(p.errs[op], errs...)
}

// nextErr records op and pops its next scripted error. Must be called with
// p.mu held.
func (p *PCM) nextErr(op string) error {
	p.calls = append(p.calls, op)
	if p.closed && op != OpClose {
		return output.ErrClosed
	}
	errs := p.errs[op]
	if len(errs) == 0 {
		return nil
	}
	p.errs[op] = errs[1:]
	return errs[0]
}

func (p *PCM) Name() string { return p.name }

func (p *PCM) SetParams(params output.Params) error {
	d := p.driver
	ok := d.Accept == nil || d.Accept(p.name, params.Channels)

	d.mu.Lock()
	d.attempts = append(d.attempts, OpenAttempt{Name: p.name, Channels: params.Channels, OK: ok})
	if ok {
		d.pcms = append(d.pcms, p)
	}
	d.mu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.nextErr(OpSetParams); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s with %d channels", output.ErrNoDevice, p.name, params.Channels)
	}
	p.params = params
	p.bufferFrames = d.BufferFrames
	if p.bufferFrames == 0 {
		p.bufferFrames = params.BufferFrames()
	}
	return nil
}

func (p *PCM) Writei(buf []byte, frames int) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.nextErr(OpWritei); err != nil {
		return 0, err
	}

	if free := p.bufferFrames - p.queued; frames > free {
		frames = free
	}
	if limit := p.driver.MaxWriteFrames; limit > 0 && frames > limit {
		frames = limit
	}
	if frames <= 0 {
		return 0, output.ErrAgain
	}

	n := frames * p.params.FrameBytes()
	p.written = append(p.written, buf[:n]...)
	p.writeSizes = append(p.writeSizes, frames)
	p.queued += frames
	return frames, nil
}

func (p *PCM) AvailUpdate() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.nextErr(OpAvailUpdate); err != nil {
		return 0, err
	}
	return p.bufferFrames - p.queued, nil
}

func (p *PCM) Delay() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.nextErr(OpDelay); err != nil {
		return 0, err
	}
	return p.queued, nil
}

func (p *PCM) Recover(err error, silent bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if scripted := p.nextErr(OpRecover); scripted != nil {
		return scripted
	}
	if !output.IsRecoverable(err) {
		return err
	}
	return nil
}

func (p *PCM) Drop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.nextErr(OpDrop); err != nil {
		return err
	}
	p.queued = 0
	return nil
}

func (p *PCM) Prepare() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nextErr(OpPrepare)
}

func (p *PCM) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.nextErr(OpClose); err != nil {
		return err
	}
	if p.closed {
		return output.ErrClosed
	}
	p.closed = true
	return p.driver.CloseErr
}

// Play consumes up to frames queued frames, as the hardware would.
func (p *PCM) Play(frames int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if frames > p.queued {
		frames = p.queued
	}
	p.queued -= frames
}

// Params returns the parameters the device was configured with.
func (p *PCM) Params() output.Params {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.params
}

// Written returns every byte accepted by Writei.
func (p *PCM) Written() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.written...)
}

// WriteSizes returns the frame count accepted by each successful Writei.
func (p *PCM) WriteSizes() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.writeSizes...)
}

// Calls returns the names of every operation invoked, in order.
func (p *PCM) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// CallCount returns how many times op was invoked.
func (p *PCM) CallCount(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	var n int
	for _, c := range p.calls {
		if c == op {
			n++
		}
	}
	return n
}

// Closed reports whether Close succeeded.
func (p *PCM) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// ErrScripted is a convenience fatal error for tests.
var ErrScripted = errors.New("scripted device failure")
