// ABOUTME: Tests for the stream state machine
// ABOUTME: Covers the transition table, forced Error and Closed absorption
package pcmout

import (
	"testing"

	"github.com/Resonate-Protocol/pcmout-go/internal/assert"
	"github.com/Resonate-Protocol/pcmout-go/internal/testutils"
)

var allStates = []State{
	StateCreated, StateOpened, StatePlaying, StateStopped, StateError, StateClosed,
}

func TestCanTransitionTable(t *testing.T) {
	allowed := map[State][]State{
		StateCreated: {StateOpened, StateClosed, StateError},
		StateOpened:  {StatePlaying, StateStopped, StateClosed, StateError},
		StatePlaying: {StatePlaying, StateStopped, StateClosed, StateError},
		StateStopped: {StatePlaying, StateStopped, StateClosed, StateError},
		StateError:   {StateClosed, StateError},
		StateClosed:  {},
	}

	for _, from := range allStates {
		for _, to := range allStates {
			want := false
			for _, s := range allowed[from] {
				if s == to {
					want = true
				}
			}
			if got := canTransition(from, to); got != want {
				t.Errorf("canTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTransitionTo(t *testing.T) {
	tests := []struct {
		name  string
		path  []State
		final State
	}{
		{"open play stop", []State{StateOpened, StatePlaying, StateStopped}, StateStopped},
		{"restart", []State{StateOpened, StateStopped, StatePlaying}, StatePlaying},
		{"play before open", []State{StatePlaying}, StateError},
		{"error then close", []State{StateError, StateClosed}, StateClosed},
		{"error then play", []State{StateError, StatePlaying}, StateError},
		{"closed then open", []State{StateClosed, StateOpened}, StateError},
		{"closed then closed", []State{StateClosed, StateClosed}, StateError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ss := newSharedState(testutils.TestLoggerSys(t, "STAT"), nil)
			var got State
			for _, target := range tt.path {
				got = ss.TransitionTo(target)
			}
			assert.Equal(t, got, tt.final)
			assert.Equal(t, ss.State(), tt.final)
		})
	}
}

func TestClosedIsAbsorbing(t *testing.T) {
	for _, target := range allStates {
		ss := newSharedState(testutils.TestLoggerSys(t, "STAT"), nil)
		ss.TransitionTo(StateClosed)
		assert.BoolIs(t, ss.CanTransitionTo(target), false)
		assert.Equal(t, ss.TransitionTo(target), StateError)
	}
}

func TestCanTransitionToDoesNotChangeState(t *testing.T) {
	ss := newSharedState(testutils.TestLoggerSys(t, "STAT"), nil)
	assert.BoolIs(t, ss.CanTransitionTo(StatePlaying), false)
	assert.Equal(t, ss.State(), StateCreated)
}

func TestSharedStateVolumeDefault(t *testing.T) {
	ss := newSharedState(testutils.TestLoggerSys(t, "STAT"), nil)
	assert.Equal(t, ss.Volume(), float32(1))
	ss.SetVolume(0.25)
	assert.Equal(t, ss.Volume(), float32(0.25))
}

func TestSharedStateWithoutSource(t *testing.T) {
	ss := newSharedState(testutils.TestLoggerSys(t, "STAT"), nil)
	assert.Equal(t, ss.OnMoreData(nil, make([]byte, 8), 0), 0)
	ss.OnError(nil, ErrInvalidState)
	ss.OnClose(nil)
}

func TestCloseSourceDetaches(t *testing.T) {
	ss := newSharedState(testutils.TestLoggerSys(t, "STAT"), nil)
	src := &testSource{frame: []byte{1, 2}}
	ss.SetSource(src)

	ss.closeSource(nil)
	ss.closeSource(nil)
	assert.Equal(t, src.closes, 1)
	assert.Equal(t, ss.OnMoreData(nil, make([]byte, 8), 0), 0)
	assert.Equal(t, src.fetches, 0)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, StatePlaying.String(), "playing")
	assert.Equal(t, State(42).String(), "State(42)")
}
