// Package actortest provides message boxes to drive actors under test.
//
// A SimpleMessageBoxBuilder stands in for a peer of the actor under test: it
// can be connected like any ServiceProvider, and once built it exposes a
// SimpleMessageBox from which the test sends input and asserts on output.
package actortest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Ruadhri17/thin-edge.io/pkg/actor"
)

// DefaultTimeout bounds every receive made through a SimpleMessageBox.
const DefaultTimeout = 5 * time.Second

// SimpleMessageBoxBuilder collects the wiring of a test peer.
//
// In is the type of messages the peer receives from the actor under test,
// Out the type of messages it sends to it.
type SimpleMessageBoxBuilder[In, Out any] struct {
	name  string
	inbox *actor.Mailbox[In]
	peers []actor.Sender[Out]
}

// NewSimpleMessageBoxBuilder creates a builder whose inbox holds capacity
// messages.
func NewSimpleMessageBoxBuilder[In, Out any](name string, capacity int) *SimpleMessageBoxBuilder[In, Out] {
	return &SimpleMessageBoxBuilder[In, Out]{
		name:  name,
		inbox: actor.NewMailbox[In](name, capacity),
	}
}

// ConnectConsumer registers the actor under test as a consumer of this peer.
func (b *SimpleMessageBoxBuilder[In, Out]) ConnectConsumer(_ string, responses actor.Sender[Out]) actor.Sender[In] {
	b.peers = append(b.peers, responses)
	return b.inbox.Sender()
}

// Inbox returns a new sender to the peer inbox.
func (b *SimpleMessageBoxBuilder[In, Out]) Inbox() actor.Sender[In] {
	return b.inbox.Sender()
}

// Connect adds a sender the peer will output to.
func (b *SimpleMessageBoxBuilder[In, Out]) Connect(peer actor.Sender[Out]) {
	b.peers = append(b.peers, peer)
}

// Build returns the message box used by the test.
func (b *SimpleMessageBoxBuilder[In, Out]) Build(t testing.TB) *SimpleMessageBox[In, Out] {
	t.Helper()
	return &SimpleMessageBox[In, Out]{
		t:       t,
		name:    b.name,
		inbox:   b.inbox,
		out:     actor.FanOut(b.peers...),
		timeout: DefaultTimeout,
	}
}

// SimpleMessageBox is the test side of a peer.
type SimpleMessageBox[In, Out any] struct {
	t       testing.TB
	name    string
	inbox   *actor.Mailbox[In]
	out     actor.Sender[Out]
	timeout time.Duration
}

// WithTimeout changes the receive timeout.
func (m *SimpleMessageBox[In, Out]) WithTimeout(d time.Duration) *SimpleMessageBox[In, Out] {
	m.timeout = d
	return m
}

// Send pushes msg to the actor under test.
func (m *SimpleMessageBox[In, Out]) Send(msg Out) {
	m.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	require.NoError(m.t, m.out.Send(ctx, msg), "%s: send", m.name)
}

// Recv waits for the next message. It returns false on timeout or end of
// stream.
func (m *SimpleMessageBox[In, Out]) Recv() (In, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	return m.inbox.Recv(ctx)
}

// MustRecv fails the test unless a message arrives in time.
func (m *SimpleMessageBox[In, Out]) MustRecv() In {
	m.t.Helper()
	msg, ok := m.Recv()
	require.True(m.t, ok, "%s: no message received within %s", m.name, m.timeout)
	return msg
}

// AssertReceived fails the test unless the next messages equal want, in order.
func (m *SimpleMessageBox[In, Out]) AssertReceived(want ...In) {
	m.t.Helper()
	for i, w := range want {
		got, ok := m.Recv()
		require.True(m.t, ok, "%s: message %d not received within %s", m.name, i, m.timeout)
		require.Equal(m.t, w, got, "%s: message %d", m.name, i)
	}
}

// AssertNothing fails the test if a message arrives within d.
func (m *SimpleMessageBox[In, Out]) AssertNothing(d time.Duration) {
	m.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	if msg, ok := m.inbox.Recv(ctx); ok {
		m.t.Fatalf("%s: unexpected message %+v", m.name, msg)
	}
}

// Skip discards the next n messages.
func (m *SimpleMessageBox[In, Out]) Skip(n int) {
	m.t.Helper()
	for i := 0; i < n; i++ {
		m.MustRecv()
	}
}

// Close closes the senders to the actor under test.
func (m *SimpleMessageBox[In, Out]) Close() {
	m.out.Close()
}
