package actor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultEventCapacity is the default size of the runtime event mailbox.
const DefaultEventCapacity = 64

// EventKind identifies a runtime event.
type EventKind uint8

const (
	ActorStarted EventKind = iota + 1
	ActorStopped
	ActorFailed
	ActorPanicked
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case ActorStarted:
		return "started"
	case ActorStopped:
		return "stopped"
	case ActorFailed:
		return "failed"
	case ActorPanicked:
		return "panicked"
	default:
		return fmt.Sprintf("EventKind(%d)", uint8(k))
	}
}

// RuntimeEvent reports a change in the lifecycle of an actor.
type RuntimeEvent struct {
	Kind  EventKind
	Actor string
	Err   error
}

// PanicError carries a panic recovered from an actor.
type PanicError struct {
	Actor string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("actor %s panicked: %v", e.Actor, e.Value)
}

// ErrRuntimeStopped is returned when spawning on a runtime that was shut down.
var ErrRuntimeStopped = errors.New("runtime stopped")

// Runtime runs actors and reports their lifecycle on a side channel.
//
// Failures never propagate to other actors: a failing or panicking actor
// stops, an event is emitted and the rest keeps running until Shutdown.
type Runtime struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	events     *Mailbox[RuntimeEvent]
	eventsSend Sender[RuntimeEvent]

	mu      sync.Mutex
	running int
	stopped bool
	closed  bool
}

// NewRuntime creates a runtime whose actors run until ctx is cancelled or
// Shutdown is called.
func NewRuntime(ctx context.Context, eventCapacity int) *Runtime {
	ctx, cancel := context.WithCancel(ctx)
	events := NewMailbox[RuntimeEvent]("runtime-events", eventCapacity)
	return &Runtime{
		ctx:        ctx,
		cancel:     cancel,
		group:      &errgroup.Group{},
		events:     events,
		eventsSend: events.Sender(),
	}
}

// Events returns the runtime event mailbox. It reports end of stream once
// the runtime is shut down and every actor has returned.
func (r *Runtime) Events() *Mailbox[RuntimeEvent] {
	return r.events
}

// Context returns the context shared by all actors.
func (r *Runtime) Context() context.Context {
	return r.ctx
}

// Running returns the number of actors still running.
func (r *Runtime) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// SpawnBuilder builds and spawns an actor.
func (r *Runtime) SpawnBuilder(b Builder) error {
	a, err := b.Build()
	if err != nil {
		return fmt.Errorf("build actor: %w", err)
	}
	return r.Spawn(a)
}

// Spawn starts a on its own goroutine.
func (r *Runtime) Spawn(a Actor) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return ErrRuntimeStopped
	}
	r.running++
	r.mu.Unlock()

	r.emit(RuntimeEvent{Kind: ActorStarted, Actor: a.Name()})

	r.group.Go(func() error {
		err := r.run(a)
		switch {
		case err == nil:
			r.emit(RuntimeEvent{Kind: ActorStopped, Actor: a.Name()})
		case isPanic(err):
			r.emit(RuntimeEvent{Kind: ActorPanicked, Actor: a.Name(), Err: err})
		default:
			r.emit(RuntimeEvent{Kind: ActorFailed, Actor: a.Name(), Err: err})
		}

		r.mu.Lock()
		r.running--
		r.mu.Unlock()

		// Errors are reported as events, not through the group.
		return nil
	})
	return nil
}

func (r *Runtime) run(a Actor) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Actor: a.Name(), Value: v, Stack: debug.Stack()}
		}
	}()
	return a.Run(r.ctx)
}

// emit never blocks past shutdown so that a full event mailbox cannot
// prevent actors from terminating.
func (r *Runtime) emit(ev RuntimeEvent) {
	if err := r.eventsSend.Send(r.ctx, ev); err == nil {
		return
	}
	// Shutting down: deliver only if there is room left and the stream
	// has not ended yet.
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.events.queue <- ev:
	default:
	}
}

// Shutdown cancels the context shared by all actors. It does not wait.
func (r *Runtime) Shutdown() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
	r.cancel()
}

// Wait blocks until every spawned actor has returned, then ends the event
// stream. It is meant to be called once, after Shutdown or once the actors
// are known to terminate on their own.
func (r *Runtime) Wait() error {
	err := r.group.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	if !r.closed {
		r.closed = true
		r.eventsSend.Close()
	}
	return err
}

func isPanic(err error) bool {
	var p *PanicError
	return errors.As(err, &p)
}
