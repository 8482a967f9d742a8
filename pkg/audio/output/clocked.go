// ABOUTME: Software-clocked sink that drains a ring at the sample rate
// ABOUTME: Stands in for a hardware clock in the null and file drivers
package output

import (
	"sync"
	"time"
)

const clockPeriod = 10 * time.Millisecond

// clockedSink pulls frames at the configured rate and hands them to consume
// on its own goroutine.
type clockedSink struct {
	params  Params
	pull    func([]byte) int
	consume func(buf []byte, n int)

	mu      sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
	started time.Time
	pulled  int64
}

func newClockedSink(p Params, pull func([]byte) int, consume func([]byte, int)) *clockedSink {
	return &clockedSink{
		params:  p,
		pull:    pull,
		consume: consume,
	}
}

func (c *clockedSink) start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopCh != nil {
		return nil
	}
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	c.started = time.Now()
	c.pulled = 0
	go c.run(c.stopCh, c.doneCh)
	return nil
}

func (c *clockedSink) run(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(clockPeriod)
	defer ticker.Stop()

	frameBytes := c.params.FrameBytes()
	buf := make([]byte, (c.params.Rate/10+1)*frameBytes)
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			elapsed := now.Sub(c.started)
			due := int64(c.params.Rate)*int64(elapsed)/int64(time.Second) - c.pulled
			if due <= 0 {
				continue
			}
			if limit := int64(len(buf) / frameBytes); due > limit {
				due = limit
			}
			chunk := buf[:int(due)*frameBytes]
			n := c.pull(chunk)
			c.pulled += due
			c.consume(chunk, n)
		}
	}
}

func (c *clockedSink) stop() error {
	c.mu.Lock()
	stop, done := c.stopCh, c.doneCh
	c.stopCh, c.doneCh = nil, nil
	c.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	return nil
}

func (c *clockedSink) close() error {
	return c.stop()
}
