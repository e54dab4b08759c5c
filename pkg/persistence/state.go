package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Ruadhri17/thin-edge.io/pkg/topics"
)

// StateVersion is the current version of the state file format.
const StateVersion = 1

// AgentState contains the runtime state of the agent.
type AgentState struct {
	// Version is the state file format version.
	Version int `json:"version"`

	// SavedAt is when the state was last saved.
	SavedAt time.Time `json:"saved_at"`

	// PendingRestart is set while a restart command waits for the device
	// to come back.
	PendingRestart *PendingRestart `json:"pending_restart,omitempty"`
}

// PendingRestart records a restart command that triggered a reboot.
type PendingRestart struct {
	// Target is the entity that was restarted.
	Target topics.EntityTopicID `json:"target"`

	// CmdID is the id of the restart command.
	CmdID string `json:"cmd_id"`

	// RequestedAt is when the reboot was triggered.
	RequestedAt time.Time `json:"requested_at"`
}

// AgentStateStore manages persistence of the agent state to a JSON file.
type AgentStateStore struct {
	mu   sync.Mutex
	path string
}

// NewAgentStateStore creates a store backed by path.
func NewAgentStateStore(path string) *AgentStateStore {
	return &AgentStateStore{path: path}
}

// Path returns the state file path.
func (s *AgentStateStore) Path() string {
	return s.path
}

// Save writes state to disk. The file is replaced atomically so that a
// reboot during the write leaves either the old or the new state.
func (s *AgentStateStore) Save(state *AgentState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	state.Version = StateVersion
	state.SavedAt = time.Now()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// Load reads the state from disk.
// Returns nil, nil if the file doesn't exist.
func (s *AgentStateStore) Load() (*AgentState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	state := &AgentState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parse state %s: %w", s.path, err)
	}
	if state.Version > StateVersion {
		return nil, fmt.Errorf("state %s has unsupported version %d", s.path, state.Version)
	}
	return state, nil
}

// Update loads the state, applies fn and saves the result.
func (s *AgentStateStore) Update(fn func(*AgentState)) error {
	state, err := s.Load()
	if err != nil {
		return err
	}
	if state == nil {
		state = &AgentState{}
	}
	fn(state)
	return s.Save(state)
}

// Clear removes the state file.
func (s *AgentStateStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
