package core

// EventType labels one progress event in the stream a run produces.
type EventType string

const (
	EventReasoning        EventType = "reasoning"
	EventToolCall         EventType = "tool_call"
	EventToolResult       EventType = "tool_result"
	EventToken            EventType = "token"
	EventFinalAnswerStart EventType = "final_answer_start"
	EventCitation         EventType = "citation"
	EventDone             EventType = "done"
	EventError            EventType = "error"
)

// Event is the closed progress vocabulary streamed to callers. It is a flat
// struct: the fields that apply depend on Type, everything else stays empty
// and is omitted on the wire. The Type itself travels out of band (the SSE
// event name, or the printed label in CLI mode), so it is excluded from the
// JSON payload.
type Event struct {
	Type EventType `json:"-"`

	// reasoning
	Step      string `json:"step,omitempty"`
	Iteration int    `json:"iteration,omitempty"`

	// reasoning / tool_call / tool_result / final_answer_start
	Message string `json:"message,omitempty"`

	// tool_call / tool_result
	Tool        string `json:"tool,omitempty"`
	Query       string `json:"query,omitempty"`
	ResultCount int    `json:"result_count,omitempty"`

	// token
	Content string `json:"content,omitempty"`

	// citation
	SourceURL string `json:"source_url,omitempty"`
	Title     string `json:"title,omitempty"`
	Snippet   string `json:"snippet,omitempty"`

	// done
	ConversationID string `json:"conversation_id,omitempty"`
	Mode           string `json:"mode,omitempty"`
	Iterations     *int   `json:"iterations,omitempty"`

	// error
	Error string `json:"error,omitempty"`
}

// Observer receives the loop's internal events as they happen. The loop
// calls these from a single goroutine, in order, so implementations do not
// need their own locking.
type Observer interface {
	// StepEntered fires when the loop enters a step.
	StepEntered(step Step, st *ConversationState)
	// ToolStarted fires before a tool call is issued.
	ToolStarted(call ToolCall)
	// ToolFinished fires after a tool call completes, with the raw results.
	// Calls finish in call order even when they ran concurrently.
	ToolFinished(call ToolCall, results []Evidence)
	// ModelToken fires for each streamed token. final marks tokens of the
	// terminal answer; everything else is internal chatter.
	ModelToken(final bool, content string)
	// ModelCompleted fires when a model call returns in full. final marks
	// the completion that carries the run's answer.
	ModelCompleted(final bool, content string)
}

// nopObserver lets the loop run unobserved (scheduled re-index checks, tests).
type nopObserver struct{}

func (nopObserver) StepEntered(Step, *ConversationState)  {}
func (nopObserver) ToolStarted(ToolCall)                  {}
func (nopObserver) ToolFinished(ToolCall, []Evidence)     {}
func (nopObserver) ModelToken(bool, string)               {}
func (nopObserver) ModelCompleted(bool, string)           {}
