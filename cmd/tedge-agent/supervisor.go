package main

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Ruadhri17/thin-edge.io/pkg/actor"
)

// supervisor watches the runtime events and shuts the agent down when an
// actor fails or when an essential actor stops.
type supervisor struct {
	events   *actor.Mailbox[actor.RuntimeEvent]
	logger   *slog.Logger
	shutdown func()

	essential map[string]bool

	mu    sync.Mutex
	first error
}

func newSupervisor(events *actor.Mailbox[actor.RuntimeEvent], logger *slog.Logger, shutdown func(), essential ...string) *supervisor {
	s := &supervisor{
		events:    events,
		logger:    logger,
		shutdown:  shutdown,
		essential: make(map[string]bool, len(essential)),
	}
	for _, name := range essential {
		s.essential[name] = true
	}
	return s
}

// run consumes events until the runtime closes the stream. It returns the
// first actor failure.
func (s *supervisor) run() error {
	for {
		ev, ok := s.events.Recv(context.Background())
		if !ok {
			return s.err()
		}
		s.handle(ev)
	}
}

func (s *supervisor) handle(ev actor.RuntimeEvent) {
	switch ev.Kind {
	case actor.ActorStarted:
		s.logger.Debug("Actor started", "actor", ev.Actor)

	case actor.ActorStopped:
		s.logger.Info("Actor stopped", "actor", ev.Actor)
		if s.essential[ev.Actor] {
			s.shutdown()
		}

	case actor.ActorFailed, actor.ActorPanicked:
		s.logger.Error("Actor terminated", "actor", ev.Actor, "event", ev.Kind, "error", ev.Err)
		s.mu.Lock()
		if s.first == nil {
			s.first = ev.Err
		}
		s.mu.Unlock()
		s.shutdown()
	}
}

func (s *supervisor) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.first
}
