// Package eventloop runs callbacks one at a time on a single goroutine.
//
// Components that are written as single-threaded state machines (the pacer)
// receive every event through Post, so they never need locks even though
// their collaborators complete work on other goroutines.
package eventloop

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/user/framepace/pkg/ports"
)

// Loop is an unbounded FIFO mailbox of tasks.
// Post never blocks; tasks run in the order they were posted.
type Loop struct {
	mu      sync.Mutex
	tasks   []func()
	stopped bool
	err     error

	wake     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New creates an empty loop.
func New() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Post enqueues fn. It reports false, and drops fn, once the loop is stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Stop ends the loop with err. Queued tasks are discarded. Only the first
// call has an effect.
func (l *Loop) Stop(err error) {
	l.stopOnce.Do(func() {
		l.mu.Lock()
		l.stopped = true
		l.err = err
		l.tasks = nil
		l.mu.Unlock()
		close(l.done)
	})
}

// Done is closed once the loop is stopped.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Err returns the error the loop was stopped with.
func (l *Loop) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Run executes tasks on the calling goroutine until Stop is called or ctx
// is canceled, and returns the stop error. Cancellation stops the loop with
// ctx.Err().
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.Drain()

		select {
		case <-l.done:
			return l.Err()
		case <-ctx.Done():
			l.Stop(ctx.Err())
			return l.Err()
		case <-l.wake:
		}
	}
}

// Drain runs queued tasks, including tasks they post, until the queue is
// empty or the loop stops. It returns the number of tasks run. Tests use it
// to drive a loop without a goroutine.
func (l *Loop) Drain() int {
	n := 0
	for {
		l.mu.Lock()
		if l.stopped || len(l.tasks) == 0 {
			l.mu.Unlock()
			return n
		}
		fn := l.tasks[0]
		l.tasks[0] = nil
		l.tasks = l.tasks[1:]
		l.mu.Unlock()

		fn()
		n++
	}
}

// Len returns the number of queued tasks.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}

// Scheduler returns a ports.Scheduler whose callbacks run on the loop.
//
// Timers created through it may only be stopped from the loop. A timer that
// is stopped after its base timer expired but before its task ran never
// calls its callback.
func (l *Loop) Scheduler(base ports.Scheduler) ports.Scheduler {
	return &scheduler{loop: l, base: base}
}

type scheduler struct {
	loop *Loop
	base ports.Scheduler
}

func (s *scheduler) AfterFunc(d time.Duration, fn func()) ports.Timer {
	t := &timer{}
	t.base = s.base.AfterFunc(d, func() {
		s.loop.Post(func() {
			if t.settled.CompareAndSwap(false, true) {
				fn()
			}
		})
	})
	return t
}

type timer struct {
	base    ports.Timer
	settled atomic.Bool
}

func (t *timer) Stop() bool {
	if !t.settled.CompareAndSwap(false, true) {
		return false
	}
	t.base.Stop()
	return true
}
