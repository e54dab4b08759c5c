package command

import (
	"errors"
	"fmt"
	"sync"
)

// ErrOutOfOrderStatus is returned when a status update would move a command
// backwards, repeat its current status or follow a terminal status.
var ErrOutOfOrderStatus = errors.New("out of order command status")

// Tracker records the last status of every known command and enforces the
// monotonic lifecycle.
type Tracker struct {
	mu       sync.Mutex
	statuses map[Key]Status
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{statuses: make(map[Key]Status)}
}

// Observe records status for key. The first status seen for a key is
// accepted whatever it is, so that commands left over by a previous run
// can be resumed.
func (t *Tracker) Observe(key Key, status Status) error {
	if status == StatusUnknown {
		return fmt.Errorf("%w: %s has no status", ErrOutOfOrderStatus, key)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	current, known := t.statuses[key]
	if known && !current.CanTransitionTo(status) {
		return fmt.Errorf("%w: %s %s -> %s", ErrOutOfOrderStatus, key, current, status)
	}
	t.statuses[key] = status
	return nil
}

// Status returns the last status recorded for key.
func (t *Tracker) Status(key Key) (Status, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.statuses[key]
	return st, ok
}

// Forget drops key, typically when its retained message is cleared.
func (t *Tracker) Forget(key Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.statuses, key)
}

// Len returns the number of tracked commands.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.statuses)
}

// Pending returns the keys of commands that are not terminal.
func (t *Tracker) Pending() []Key {
	t.mu.Lock()
	defer t.mu.Unlock()
	var keys []Key
	for k, st := range t.statuses {
		if !st.IsTerminal() {
			keys = append(keys, k)
		}
	}
	return keys
}
