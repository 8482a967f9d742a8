// ABOUTME: Single-goroutine task loop with delayed tasks
// ABOUTME: Runs posted tasks in due-time then post order, never re-entrantly
package taskloop

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/decred/slog"
)

// Task is a unit of work run on the loop goroutine.
type Task func()

// Clock supplies the loop's notion of the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Option configures a Loop.
type Option func(*Loop)

// WithClock replaces the wall clock. Loops with a manual clock are normally
// driven by RunUntilIdle rather than Start.
func WithClock(c Clock) Option {
	return func(l *Loop) { l.clock = c }
}

// WithLogger sets the loop's logger.
func WithLogger(log slog.Logger) Option {
	return func(l *Loop) { l.log = log }
}

// Loop executes tasks one at a time. Tasks posted with the same due time run
// in the order they were posted.
type Loop struct {
	clock Clock
	log   slog.Logger

	mu      sync.Mutex
	queue   taskQueue
	seq     uint64
	stopped bool
	wake    chan struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a stopped loop.
func New(opts ...Option) *Loop {
	l := &Loop{
		clock: systemClock{},
		log:   slog.Disabled,
		wake:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	heap.Init(&l.queue)
	return l
}

// Post queues a task to run as soon as possible.
func (l *Loop) Post(task Task) {
	l.PostDelayed(task, 0)
}

// PostDelayed queues a task to run after d has elapsed.
func (l *Loop) PostDelayed(task Task, d time.Duration) {
	if d < 0 {
		d = 0
	}

	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		l.log.Debugf("Dropping task posted to stopped loop")
		return
	}
	l.seq++
	heap.Push(&l.queue, &entry{
		due:  l.clock.Now().Add(d),
		seq:  l.seq,
		task: task,
	})
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue.Len()
}

// NextDue returns the due time of the earliest queued task.
func (l *Loop) NextDue() (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.queue.Len() == 0 {
		return time.Time{}, false
	}
	return l.queue.Peek().due, true
}

// popDue removes the next task that is due, if any. When nothing is due it
// returns how long until the next task (or -1 when the queue is empty).
func (l *Loop) popDue() (Task, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.queue.Len() == 0 {
		return nil, -1
	}
	next := l.queue.Peek()
	wait := next.due.Sub(l.clock.Now())
	if wait > 0 {
		return nil, wait
	}
	heap.Pop(&l.queue)
	return next.task, 0
}

// RunUntilIdle runs every task that is due on the calling goroutine,
// including tasks those tasks post with no delay. It returns the number of
// tasks run.
func (l *Loop) RunUntilIdle() int {
	var n int
	for {
		task, _ := l.popDue()
		if task == nil {
			return n
		}
		task()
		n++
	}
}

// Start runs the loop on a new goroutine until Stop is called.
func (l *Loop) Start() {
	l.mu.Lock()
	if l.cancel != nil || l.stopped {
		l.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.done = make(chan struct{})
	l.mu.Unlock()

	go l.run(ctx)
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		task, wait := l.popDue()
		if task != nil {
			task()
			continue
		}

		var timerC <-chan time.Time
		if wait > 0 {
			timer.Reset(wait)
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			return
		case <-l.wake:
		case <-timerC:
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}
}

// Stop halts the loop and waits for the running task to finish. Queued tasks
// are discarded and later posts are dropped.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopped = true
	dropped := l.queue.Len()
	l.queue.items = nil
	cancel, done := l.cancel, l.done
	l.mu.Unlock()

	if dropped > 0 {
		l.log.Debugf("Discarded %d queued tasks on stop", dropped)
	}
	if cancel != nil {
		cancel()
		<-done
	}
}

type entry struct {
	due  time.Time
	seq  uint64
	task Task
}

// taskQueue is a min-heap of entries ordered by due time, then post order.
type taskQueue struct {
	items []*entry
}

func (q *taskQueue) Len() int { return len(q.items) }

func (q *taskQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.due.Equal(b.due) {
		return a.seq < b.seq
	}
	return a.due.Before(b.due)
}

func (q *taskQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
}

func (q *taskQueue) Push(x interface{}) {
	q.items = append(q.items, x.(*entry))
}

func (q *taskQueue) Pop() interface{} {
	n := len(q.items)
	item := q.items[n-1]
	q.items[n-1] = nil
	q.items = q.items[:n-1]
	return item
}

func (q *taskQueue) Peek() *entry {
	return q.items[0]
}
