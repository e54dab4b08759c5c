package actor

import (
	"context"
	"errors"
	"sync"
)

// ErrMailboxClosed is returned by Send when the receiving side of a mailbox
// is gone or when the sender handle itself has been closed.
var ErrMailboxClosed = errors.New("mailbox closed")

// Sender is a handle used to push messages into a mailbox.
//
// A Sender must not be closed while a Send on the same handle is in progress;
// Close waits for such sends to complete.
type Sender[T any] interface {
	// Send enqueues msg, blocking while the mailbox is full.
	Send(ctx context.Context, msg T) error

	// Close releases the handle. The stream of the underlying mailbox ends
	// once every handle has been closed.
	Close()
}

// Mailbox is a bounded, ordered queue of typed messages with one receiver.
type Mailbox[T any] struct {
	name  string
	queue chan T

	dropped  chan struct{}
	dropOnce sync.Once

	mu      sync.Mutex
	senders int
	ended   bool
}

// NewMailbox creates a mailbox holding at most capacity queued messages.
// A capacity below one is raised to one.
func NewMailbox[T any](name string, capacity int) *Mailbox[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Mailbox[T]{
		name:    name,
		queue:   make(chan T, capacity),
		dropped: make(chan struct{}),
	}
}

// Name returns the mailbox name, used in logs.
func (m *Mailbox[T]) Name() string {
	return m.name
}

// Capacity returns the maximum number of queued messages.
func (m *Mailbox[T]) Capacity() int {
	return cap(m.queue)
}

// Len returns the number of messages currently queued.
func (m *Mailbox[T]) Len() int {
	return len(m.queue)
}

// Sender returns a new sender handle. Handles obtained after the stream
// has ended are already closed.
func (m *Mailbox[T]) Sender() Sender[T] {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &mailboxSender[T]{mailbox: m}
	if m.ended {
		s.closed = true
		return s
	}
	m.senders++
	return s
}

// Recv blocks until a message is available and returns it. It returns false
// once every sender has been closed and the queue is drained, or when ctx is
// cancelled. An empty queue never makes Recv return.
func (m *Mailbox[T]) Recv(ctx context.Context) (T, bool) {
	select {
	case msg, ok := <-m.queue:
		return msg, ok
	case <-ctx.Done():
		var zero T
		return zero, false
	}
}

// TryRecv returns a queued message without blocking.
func (m *Mailbox[T]) TryRecv() (T, bool) {
	select {
	case msg, ok := <-m.queue:
		return msg, ok
	default:
		var zero T
		return zero, false
	}
}

// Close drops the receiving side. Blocked and future sends fail with
// ErrMailboxClosed. Messages queued before Close can still be drained
// with Recv or TryRecv.
func (m *Mailbox[T]) Close() {
	m.dropOnce.Do(func() { close(m.dropped) })
}

// release is called once per closed handle.
func (m *Mailbox[T]) release() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.senders--
	if m.senders == 0 && !m.ended {
		m.ended = true
		close(m.queue)
	}
}

type mailboxSender[T any] struct {
	mailbox *Mailbox[T]

	// RLock is held for the duration of a send so that Close cannot
	// close the queue under an in-flight send.
	mu     sync.RWMutex
	closed bool
}

func (s *mailboxSender[T]) Send(ctx context.Context, msg T) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrMailboxClosed
	}

	// Prefer the closed condition over a racing free slot.
	select {
	case <-s.mailbox.dropped:
		return ErrMailboxClosed
	default:
	}

	select {
	case s.mailbox.queue <- msg:
		return nil
	case <-s.mailbox.dropped:
		return ErrMailboxClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *mailboxSender[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.mailbox.release()
}

// MapSender adapts a Sender[U] into a Sender[T] by converting each message
// with fn. It is used to fan typed peers into a single actor inbox.
func MapSender[T, U any](inner Sender[U], fn func(T) U) Sender[T] {
	return &mappedSender[T, U]{inner: inner, fn: fn}
}

type mappedSender[T, U any] struct {
	inner Sender[U]
	fn    func(T) U
}

func (s *mappedSender[T, U]) Send(ctx context.Context, msg T) error {
	return s.inner.Send(ctx, s.fn(msg))
}

func (s *mappedSender[T, U]) Close() {
	s.inner.Close()
}

// FanOut returns a Sender delivering every message to each of the given
// senders in turn. Closing it closes all of them.
func FanOut[T any](senders ...Sender[T]) Sender[T] {
	return fanOutSender[T](senders)
}

type fanOutSender[T any] []Sender[T]

func (f fanOutSender[T]) Send(ctx context.Context, msg T) error {
	for _, s := range f {
		if err := s.Send(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (f fanOutSender[T]) Close() {
	for _, s := range f {
		s.Close()
	}
}

// NullSender discards every message.
func NullSender[T any]() Sender[T] {
	return nullSender[T]{}
}

type nullSender[T any] struct{}

func (nullSender[T]) Send(context.Context, T) error { return nil }
func (nullSender[T]) Close()                        {}
