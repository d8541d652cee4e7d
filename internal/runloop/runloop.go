// Package runloop implements the single-worker event loop shared by the
// Logger and its IO worker: a bounded queue of events drained one at a
// time by a dedicated goroutine, with the draining side able to signal
// its own shutdown and the sending side able to wait for the worker to
// finish and learn about any panic. Grounded on
// original_source/pinenut/src/runloop.rs, adapted from Rust's mpsc
// channel + thread::spawn to a buffered Go channel + goroutine, and from
// an unbounded channel to a bounded one, per this module's bounded event
// queue requirement (see internal/crypto/buffer_pool.go's BoundedQueue for
// the same backpressure idea applied to byte streams rather than events).
package runloop

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrStopped is returned by On when the runloop has already stopped,
// either because its handler called Context.Stop or because its
// goroutine panicked.
var ErrStopped = errors.New("runloop: on a stopped runloop")

// Handler processes events drained from a Runloop's queue.
type Handler[Event any] interface {
	Handle(event Event, ctx *Context)
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc[Event any] func(event Event, ctx *Context)

// Handle calls f.
func (f HandlerFunc[Event]) Handle(event Event, ctx *Context) { f(event, ctx) }

// Context is passed to every Handle call; a handler calls Stop to end the
// runloop after the current event.
type Context struct {
	stopped bool
}

// Stop marks the runloop to end after the current Handle call returns.
func (c *Context) Stop() { c.stopped = true }

// Stopped reports whether Stop has been called.
func (c *Context) Stopped() bool { return c.stopped }

// Runloop drains a bounded queue of Event values on a dedicated goroutine.
type Runloop[Event any] struct {
	events  chan Event
	done    chan struct{}
	stopped atomic.Bool
	panicVal any
}

// Run starts a new Runloop with the given queue capacity, calling
// handler.Handle for each event in the order it was sent.
func Run[Event any](handler Handler[Event], queueCapacity int) *Runloop[Event] {
	r := &Runloop[Event]{
		events: make(chan Event, queueCapacity),
		done:   make(chan struct{}),
	}
	go r.loop(handler)
	return r
}

func (r *Runloop[Event]) loop(handler Handler[Event]) {
	defer close(r.done)
	defer r.stopped.Store(true)
	defer func() {
		if p := recover(); p != nil {
			r.panicVal = p
		}
	}()

	ctx := &Context{}
	for event := range r.events {
		handler.Handle(event, ctx)
		if ctx.Stopped() {
			return
		}
	}
}

// On enqueues event for the worker to process. It returns ErrStopped,
// without blocking forever, if the runloop has already ended — whether by
// its own Context.Stop or by a panic.
func (r *Runloop[Event]) On(event Event) error {
	if r.stopped.Load() {
		return ErrStopped
	}
	select {
	case r.events <- event:
		return nil
	case <-r.done:
		return ErrStopped
	}
}

// Join waits for the runloop to finish and returns an error wrapping
// whatever value the handler's goroutine panicked with, or nil if it
// exited normally.
func (r *Runloop[Event]) Join() error {
	<-r.done
	if r.panicVal != nil {
		return fmt.Errorf("runloop: worker panicked: %v", r.panicVal)
	}
	return nil
}
