package session

import (
	"context"
	"fmt"

	core "github.com/pooriaast/sleuth/internal/agent/core"
	"github.com/pooriaast/sleuth/session/inmemory"
)

// Store persists conversation checkpoints between runs. Implementations
// must hand out detached copies: mutating a returned checkpoint never
// affects the stored one. Concurrent access for different conversation ids
// must not block; concurrent runs on the same id are not supported
// (last writer wins).
type Store interface {
	GetOrCreate(ctx context.Context, conversationID string) (core.Checkpoint, error)
	Save(ctx context.Context, conversationID string, cp core.Checkpoint) error
}

type StoreType string

const (
	InMemoryStore StoreType = "inmemory"
)

// NewStore builds the configured store implementation. The store is
// constructed once at process start and passed by reference to every run.
func NewStore(storeType StoreType) Store {
	switch storeType {
	case InMemoryStore:
		return inmemory.New()
	default:
		panic(fmt.Sprintf("unsupported store type: %s", storeType))
	}
}
