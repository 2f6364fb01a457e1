package bus

import (
	"context"
	"errors"
	"sync"
)

var ErrLoopStopped = errors.New("event loop stopped")

// Loop executes posted events one at a time on a single goroutine.
// Everything that mutates chat state (buffer, store, pipeline, dictation)
// runs inside a Loop event; other goroutines only Post.
type Loop struct {
	mu      sync.Mutex
	events  chan func()
	done    chan struct{}
	stopped bool
}

// NewLoop creates a loop whose queue holds up to size pending events.
func NewLoop(size int) *Loop {
	if size <= 0 {
		size = 64
	}
	return &Loop{
		events: make(chan func(), size),
		done:   make(chan struct{}),
	}
}

// Post enqueues fn. It returns false if the loop has been stopped.
// Post blocks when the queue is full, so it must not be called from
// inside an event with a saturated queue.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.mu.Unlock()

	select {
	case l.events <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Call posts fn and waits until it has run.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrLoopStopped
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes events until ctx is cancelled or Stop is called.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			l.Stop()
			return ctx.Err()
		case <-l.done:
			return nil
		case fn := <-l.events:
			fn()
		}
	}
}

// Stop halts the loop. Pending events are dropped.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.stopped = true
	close(l.done)
}

// Done is closed once the loop is stopped.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
