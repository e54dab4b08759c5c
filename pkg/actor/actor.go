package actor

import "context"

// Actor is an independently scheduled component.
//
// Run receives messages from the actor's inbox one at a time, processes each
// one fully and returns when the inbox reports end of stream or ctx is done.
// Before returning, an actor closes every Sender it owns so that the end of
// stream propagates to its peers.
type Actor interface {
	Name() string
	Run(ctx context.Context) error
}

// Builder assembles an actor and its mailboxes. All wiring between builders
// happens before Build is called.
type Builder interface {
	Build() (Actor, error)
}

// ServiceProvider is implemented by builders whose actor answers requests.
//
// A consumer passes the Sender on which it wants to receive responses and gets
// back the Sender on which it must push requests.
type ServiceProvider[Req, Resp any] interface {
	ConnectConsumer(name string, responses Sender[Resp]) Sender[Req]
}

// ActorFunc adapts a function into an Actor.
type ActorFunc struct {
	ActorName string
	Fn        func(ctx context.Context) error
}

// Name returns the actor name.
func (a ActorFunc) Name() string { return a.ActorName }

// Run calls the wrapped function.
func (a ActorFunc) Run(ctx context.Context) error { return a.Fn(ctx) }

// Ready wraps an already built actor as a Builder.
func Ready(a Actor) Builder {
	return readyBuilder{a}
}

type readyBuilder struct{ a Actor }

func (b readyBuilder) Build() (Actor, error) { return b.a, nil }
