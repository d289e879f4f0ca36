// Package loop provides a single-threaded cooperative scheduler. Every task,
// timer body and async completion runs on the goroutine that called Run, one
// at a time, so state owned by the loop needs no locking.
package loop

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStopped is returned when work is submitted to a loop that has exited.
var ErrStopped = errors.New("loop stopped")

// Loop is a FIFO task queue drained by Run.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New returns a loop that is ready to accept tasks. Tasks posted before Run
// are executed once Run starts.
func New() *Loop {
	ctx, cancel := context.WithCancel(context.Background())
	return &Loop{
		wake:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Context is cancelled when the loop exits. Async work should honour it.
func (l *Loop) Context() context.Context { return l.ctx }

// Post enqueues fn. It is safe to call from any goroutine, including the
// loop itself. It returns false once the loop has exited.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do runs fn on the loop and waits for it to finish. It must not be called
// from the loop goroutine.
func (l *Loop) Do(fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-l.ctx.Done():
		return ErrStopped
	}
}

// Run drains the queue until ctx is cancelled. Pending tasks are dropped on
// exit.
func (l *Loop) Run(ctx context.Context) error {
	defer func() {
		l.mu.Lock()
		l.stopped = true
		l.queue = nil
		l.mu.Unlock()
		l.cancel()
	}()

	for {
		for {
			fn := l.next()
			if fn == nil {
				break
			}
			fn()
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

func (l *Loop) next() func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn
}

// Timer is a cancellable handle for a delayed loop task. Its fields are only
// touched on the loop, so Stop called on the loop guarantees the body never
// runs.
type Timer struct {
	t    *time.Timer
	done bool
}

// AfterFunc schedules fn to run on the loop after d. Must be called on the loop.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *Timer {
	tm := &Timer{}
	tm.t = time.AfterFunc(d, func() {
		l.Post(func() {
			if tm.done {
				return
			}
			tm.done = true
			fn()
		})
	})
	return tm
}

// Stop cancels the timer. Safe on a nil or already finished timer.
func (t *Timer) Stop() {
	if t == nil || t.done {
		return
	}
	t.done = true
	t.t.Stop()
}

// Pending reports whether the timer is armed and has not yet fired.
func (t *Timer) Pending() bool {
	return t != nil && !t.done
}

// Async runs work on its own goroutine and delivers the result to then on
// the loop. If the loop exits first the result is dropped.
func Async[T any](l *Loop, work func(ctx context.Context) (T, error), then func(T, error)) {
	go func() {
		v, err := work(l.ctx)
		l.Post(func() { then(v, err) })
	}()
}
