// ABOUTME: Stream lifecycle state machine and state shared across contexts
// ABOUTME: Guards state, volume and the data source behind short-held locks
package pcmout

import (
	"fmt"
	"sync"

	"github.com/decred/slog"
)

// State is the lifecycle state of a Stream.
type State int

const (
	StateCreated State = iota
	StateOpened
	StatePlaying
	StateStopped
	StateError
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateOpened:
		return "opened"
	case StatePlaying:
		return "playing"
	case StateStopped:
		return "stopped"
	case StateError:
		return "error"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// canTransition is the lifecycle table. Closed is absorbing.
func canTransition(from, to State) bool {
	switch from {
	case StateCreated:
		return to == StateOpened || to == StateClosed || to == StateError
	case StateOpened, StatePlaying, StateStopped:
		return to == StatePlaying || to == StateStopped ||
			to == StateClosed || to == StateError
	case StateError:
		return to == StateClosed || to == StateError
	}
	return false
}

// SharedState holds the fields both the control goroutine and the pump
// read. Transitions and source changes are only made from the control
// goroutine.
//
// Source callbacks run under a separate lock so that unregistering the
// source in Close waits for an in-flight callback, while state and volume
// readers never wait on the data source.
type SharedState struct {
	log     slog.Logger
	control *affinity

	mu     sync.Mutex
	state  State
	volume float32

	cbMu   sync.Mutex
	source Source
}

// newSharedState returns state in Created with full volume. control, when
// set, is checked on every write.
func newSharedState(log slog.Logger, control *affinity) *SharedState {
	if control == nil {
		control = &affinity{name: "control"}
	}
	return &SharedState{
		log:     log,
		control: control,
		state:   StateCreated,
		volume:  1,
	}
}

// CanTransitionTo returns true if the current state allows moving to
// target. Safe from any goroutine.
func (s *SharedState) CanTransitionTo(target State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return canTransition(s.state, target)
}

// TransitionTo moves to target. An illegal transition is logged and forces
// the Error state. It returns the resulting state.
func (s *SharedState) TransitionTo(target State) State {
	s.control.check()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !canTransition(s.state, target) {
		s.log.Errorf("Cannot transition from %s to %s", s.state, target)
		s.state = StateError
	} else {
		s.state = target
	}
	return s.state
}

// State returns the current state.
func (s *SharedState) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Volume returns the volume scalar in [0, 1].
func (s *SharedState) Volume() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// SetVolume stores v without clamping.
func (s *SharedState) SetVolume(v float32) {
	s.mu.Lock()
	s.volume = v
	s.mu.Unlock()
}

// SetSource registers src as the data source. Nil unregisters, waiting for
// any callback already running.
func (s *SharedState) SetSource(src Source) {
	s.control.check()

	s.cbMu.Lock()
	s.source = src
	s.cbMu.Unlock()
}

// OnMoreData asks the registered source to fill dest. It returns 0 when no
// source is registered.
func (s *SharedState) OnMoreData(stream *Stream, dest []byte, delayBytes int) int {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	if s.source == nil {
		return 0
	}
	return s.source.OnMoreData(stream, dest, delayBytes)
}

// OnError reports err to the registered source, if any.
func (s *SharedState) OnError(stream *Stream, err error) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	if s.source != nil {
		s.source.OnError(stream, err)
	}
}

// OnClose tells the registered source the stream closed.
func (s *SharedState) OnClose(stream *Stream) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	if s.source != nil {
		s.source.OnClose(stream)
	}
}

// closeSource fires OnClose and unregisters the source without letting a
// pump callback in between.
func (s *SharedState) closeSource(stream *Stream) {
	s.control.check()

	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	if s.source != nil {
		s.source.OnClose(stream)
		s.source = nil
	}
}
