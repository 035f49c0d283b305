package inmemory

import (
	"context"
	"sync"

	core "github.com/pooriaast/sleuth/internal/agent/core"
)

// Store is a process-lifetime checkpoint store: a mutex-guarded map keyed
// by conversation id. Nothing survives a restart, which is the intended
// durability here.
type Store struct {
	mu          sync.RWMutex
	checkpoints map[string]core.Checkpoint
}

// New builds an empty in-memory store.
func New() *Store {
	return &Store{checkpoints: make(map[string]core.Checkpoint)}
}

// GetOrCreate returns a detached copy of the stored checkpoint for id, or
// an empty checkpoint when the conversation is new.
func (s *Store) GetOrCreate(_ context.Context, conversationID string) (core.Checkpoint, error) {
	s.mu.RLock()
	cp, ok := s.checkpoints[conversationID]
	s.mu.RUnlock()
	if !ok {
		return core.Checkpoint{}, nil
	}
	return cp.Clone(), nil
}

// Save stores a detached copy of cp under id, replacing any previous
// checkpoint whole. Saves are atomic per id: a reader sees either the old
// or the new checkpoint, never a mix.
func (s *Store) Save(_ context.Context, conversationID string, cp core.Checkpoint) error {
	detached := cp.Clone()
	s.mu.Lock()
	s.checkpoints[conversationID] = detached
	s.mu.Unlock()
	return nil
}
