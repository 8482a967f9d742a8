// ABOUTME: Tests for the task loop
// ABOUTME: Covers ordering, delays, manual clocks and stop behavior
package taskloop

import (
	"sync"
	"testing"
	"time"

	"github.com/Resonate-Protocol/pcmout-go/internal/assert"
)

func TestPostOrder(t *testing.T) {
	clock := NewManualClock(time.Unix(1000, 0))
	loop := New(WithClock(clock))

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		loop.Post(func() { got = append(got, i) })
	}

	n := loop.RunUntilIdle()
	if n != 5 {
		t.Errorf("expected 5 tasks run, got %d", n)
	}
	assert.DeepEqual(t, got, []int{0, 1, 2, 3, 4})
}

func TestDelayedOrder(t *testing.T) {
	clock := NewManualClock(time.Unix(1000, 0))
	loop := New(WithClock(clock))

	var got []string
	loop.PostDelayed(func() { got = append(got, "late") }, 30*time.Millisecond)
	loop.PostDelayed(func() { got = append(got, "early") }, 10*time.Millisecond)
	loop.PostDelayed(func() { got = append(got, "early2") }, 10*time.Millisecond)
	loop.Post(func() { got = append(got, "now") })

	loop.RunUntilIdle()
	assert.DeepEqual(t, got, []string{"now"})

	clock.Advance(10 * time.Millisecond)
	loop.RunUntilIdle()
	assert.DeepEqual(t, got, []string{"now", "early", "early2"})

	due, ok := loop.NextDue()
	if !ok || !due.Equal(time.Unix(1000, 0).Add(30*time.Millisecond)) {
		t.Errorf("unexpected next due %v (%v)", due, ok)
	}

	clock.Advance(20 * time.Millisecond)
	loop.RunUntilIdle()
	assert.DeepEqual(t, got, []string{"now", "early", "early2", "late"})

	if loop.Pending() != 0 {
		t.Errorf("expected empty queue, got %d", loop.Pending())
	}
}

func TestTasksPostingTasks(t *testing.T) {
	clock := NewManualClock(time.Unix(1000, 0))
	loop := New(WithClock(clock))

	var count int
	var step func()
	step = func() {
		count++
		if count < 3 {
			loop.Post(step)
		}
	}
	loop.Post(step)

	loop.RunUntilIdle()
	if count != 3 {
		t.Errorf("expected 3 runs, got %d", count)
	}
}

func TestStartStop(t *testing.T) {
	loop := New()
	loop.Start()

	ran := make(chan time.Duration, 1)
	start := time.Now()
	loop.PostDelayed(func() { ran <- time.Since(start) }, 20*time.Millisecond)

	elapsed := assert.ChanWritten(t, ran)
	if elapsed < 20*time.Millisecond {
		t.Errorf("task ran early after %v", elapsed)
	}

	loop.Stop()

	dropped := make(chan struct{}, 1)
	loop.Post(func() { dropped <- struct{}{} })
	assert.ChanNotWritten(t, dropped, 50*time.Millisecond)
	if loop.Pending() != 0 {
		t.Errorf("expected posts after stop to be dropped")
	}
}

func TestTasksRunSerially(t *testing.T) {
	loop := New()
	loop.Start()
	defer loop.Stop()

	var mu sync.Mutex
	var active, maxActive int
	done := make(chan struct{}, 20)
	for i := 0; i < 20; i++ {
		loop.Post(func() {
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
			done <- struct{}{}
		})
	}
	for i := 0; i < 20; i++ {
		assert.ChanWritten(t, done)
	}

	if maxActive != 1 {
		t.Errorf("expected serial execution, saw %d concurrent tasks", maxActive)
	}
}

func TestStopDiscardsQueued(t *testing.T) {
	loop := New()
	loop.Start()

	ran := make(chan struct{}, 1)
	loop.PostDelayed(func() { ran <- struct{}{} }, time.Hour)
	loop.Stop()

	if loop.Pending() != 0 {
		t.Errorf("expected queue to be cleared, got %d", loop.Pending())
	}
	assert.ChanNotWritten(t, ran, 20*time.Millisecond)
}
