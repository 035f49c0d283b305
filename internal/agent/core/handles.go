package core

import "context"

// ToolDefinition describes one callable tool as exposed to the model.
// Parameters is a JSON-schema fragment for the arguments object.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Usage reports token consumption of one model call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// ModelHandle is the LLM boundary used by step handlers. Implementations
// must honour ctx cancellation; any other failure is returned as an error
// and downgraded to an in-band record by the handler that made the call.
type ModelHandle interface {
	// Chat sends the history and returns the full reply. Tool calling is
	// enabled when tools is non-empty.
	Chat(ctx context.Context, history []Message, tools []ToolDefinition) (Message, Usage, error)
	// ChatStream behaves like Chat without tools, delivering content
	// incrementally through onToken before returning the full reply.
	ChatStream(ctx context.Context, history []Message, onToken func(string)) (Message, Usage, error)
}

// ToolRunner executes named retrieval tools. Implementations never return
// an error: failures come back as in-band Evidence error records.
type ToolRunner interface {
	Search(ctx context.Context, tool, query string) []Evidence
	Definitions() []ToolDefinition
}

// CheckpointStore persists conversation checkpoints across runs. Stored
// checkpoints must be detached copies: mutating a returned checkpoint must
// not affect what a later GetOrCreate sees.
type CheckpointStore interface {
	GetOrCreate(ctx context.Context, conversationID string) (Checkpoint, error)
	Save(ctx context.Context, conversationID string, cp Checkpoint) error
}
