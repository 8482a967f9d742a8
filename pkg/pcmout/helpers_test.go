// ABOUTME: Shared fixtures for stream tests
// ABOUTME: Builds streams on the scripted driver with a manually driven loop
package pcmout

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/Resonate-Protocol/pcmout-go/internal/pcmtest"
	"github.com/Resonate-Protocol/pcmout-go/internal/taskloop"
	"github.com/Resonate-Protocol/pcmout-go/internal/testutils"
	"github.com/Resonate-Protocol/pcmout-go/pkg/audio"
)

// testSource records every callback. fill, when set, produces the data
// for each fetch; otherwise dest is filled completely with frame repeated.
type testSource struct {
	frame []byte
	fill  func(dest []byte) int

	fetches int
	delays  []int
	errs    []error
	closes  int
}

func (ts *testSource) OnMoreData(s *Stream, dest []byte, delayBytes int) int {
	ts.fetches++
	ts.delays = append(ts.delays, delayBytes)
	if ts.fill != nil {
		return ts.fill(dest)
	}
	if len(ts.frame) == 0 {
		return 0
	}
	n := len(dest) / len(ts.frame) * len(ts.frame)
	for off := 0; off < n; off += len(ts.frame) {
		copy(dest[off:], ts.frame)
	}
	return n
}

func (ts *testSource) OnError(s *Stream, err error) {
	ts.errs = append(ts.errs, err)
}

func (ts *testSource) OnClose(s *Stream) {
	ts.closes++
}

// s16Frame encodes one frame of 16-bit samples.
func s16Frame(samples ...int16) []byte {
	b := make([]byte, 2*len(samples))
	for i, v := range samples {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(v))
	}
	return b
}

// s16Samples decodes 16-bit samples.
func s16Samples(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}

type releaseRecorder struct {
	released []*Stream
}

func (r *releaseRecorder) ReleaseStream(s *Stream) {
	r.released = append(r.released, s)
}

type testHarness struct {
	t        *testing.T
	clock    *taskloop.ManualClock
	loop     *taskloop.Loop
	driver   *pcmtest.Driver
	releaser *releaseRecorder
}

func newTestHarness(t *testing.T, driver *pcmtest.Driver) *testHarness {
	clock := taskloop.NewManualClock(time.Unix(1000, 0))
	return &testHarness{
		t:        t,
		clock:    clock,
		loop:     taskloop.New(taskloop.WithClock(clock)),
		driver:   driver,
		releaser: &releaseRecorder{},
	}
}

func (h *testHarness) newStream(format audio.Format, device string) *Stream {
	return NewStream(StreamConfig{
		Format:   format,
		Device:   device,
		Driver:   h.driver,
		Loop:     h.loop,
		Releaser: h.releaser,
		Log:      testutils.TestLoggerSys(h.t, "PUMP"),
	})
}

// advance moves the clock forward and runs every task that became due.
func (h *testHarness) advance(d time.Duration) int {
	h.clock.Advance(d)
	return h.loop.RunUntilIdle()
}

// nextDelay returns how far in the future the next queued task is.
func (h *testHarness) nextDelay() time.Duration {
	h.t.Helper()
	due, ok := h.loop.NextDue()
	if !ok {
		h.t.Fatal("no task queued")
	}
	return due.Sub(h.clock.Now())
}

func (h *testHarness) checkPacket(s *Stream) {
	h.t.Helper()
	if s.packet == nil {
		return
	}
	if err := s.packet.validate(s.bytesPerOutputFrame); err != nil {
		h.t.Fatalf("packet invariant broken: %v", err)
	}
}

func pcmFormat(rate, channels, bits int) audio.Format {
	return audio.Format{
		Encoding:   audio.EncodingLinearPCM,
		SampleRate: rate,
		Channels:   channels,
		BitDepth:   bits,
	}
}

func sum(v []int) int {
	var n int
	for _, x := range v {
		n += x
	}
	return n
}
