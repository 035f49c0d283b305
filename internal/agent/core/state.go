package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role identifies the author of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a single tool invocation requested by an assistant message.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Query extracts the primary query argument of a tool call. Tools in this
// system are keyed on a single "query" string; anything else is rendered
// verbatim so progress events still show what was asked.
func (tc ToolCall) Query() string {
	if tc.Arguments == nil {
		return ""
	}
	if q, ok := tc.Arguments["query"].(string); ok {
		return q
	}
	raw, err := json.Marshal(tc.Arguments)
	if err != nil {
		return fmt.Sprintf("%v", tc.Arguments)
	}
	return string(raw)
}

// Message is one turn in a conversation history. History is append-only
// within a run; messages are never mutated once appended.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // assistant messages only
	ToolCallID string     `json:"tool_call_id,omitempty"` // tool messages only
}

func (m Message) clone() Message {
	out := m
	if len(m.ToolCalls) > 0 {
		out.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		for i, tc := range m.ToolCalls {
			cp := tc
			if tc.Arguments != nil {
				cp.Arguments = make(map[string]any, len(tc.Arguments))
				for k, v := range tc.Arguments {
					cp.Arguments[k] = v
				}
			}
			out.ToolCalls[i] = cp
		}
	}
	return out
}

// Evidence is one retrieval result produced by the tool gateway. A record
// with a non-empty Error is an in-band failure; a record with a non-empty
// Note is informational (for example "no results"). Neither kind carries
// content that counts toward fingerprints or citations.
type Evidence struct {
	Content        string  `json:"content,omitempty"`
	Source         string  `json:"source,omitempty"`
	URL            string  `json:"url,omitempty"`
	Title          string  `json:"title,omitempty"`
	Section        string  `json:"section,omitempty"`
	Snippet        string  `json:"snippet,omitempty"`
	RelevanceScore float64 `json:"relevance_score,omitempty"`
	Error          string  `json:"error,omitempty"`
	Note           string  `json:"message,omitempty"`
}

// ErrorEvidence builds the single-element failure record tools return
// instead of raising.
func ErrorEvidence(format string, args ...any) []Evidence {
	return []Evidence{{Error: fmt.Sprintf(format, args...)}}
}

// Fingerprint is a bounded derived key over evidence content, used only to
// detect repeated retrieval within a run. Not semantically unique.
type Fingerprint string

// fingerprintLen bounds the fingerprint to a prefix of the content.
const fingerprintLen = 500

// EvidenceFingerprint derives the repetition-detection key for a single
// evidence record. Error records, informational records and empty records
// produce no fingerprint.
func EvidenceFingerprint(ev Evidence) (Fingerprint, bool) {
	if ev.Error != "" || ev.Note != "" {
		return "", false
	}
	content := ev.Content
	if content == "" {
		content = ev.Snippet
	}
	if strings.TrimSpace(content) == "" {
		return "", false
	}
	runes := []rune(content)
	if len(runes) > fingerprintLen {
		runes = runes[:fingerprintLen]
	}
	return Fingerprint(runes), true
}

// BatchFingerprints collects the fingerprint set of one tool batch.
func BatchFingerprints(batches ...[]Evidence) map[Fingerprint]struct{} {
	out := make(map[Fingerprint]struct{})
	for _, batch := range batches {
		for _, ev := range batch {
			if fp, ok := EvidenceFingerprint(ev); ok {
				out[fp] = struct{}{}
			}
		}
	}
	return out
}

// ConversationState is the mutable record threaded through one run. It is
// owned exclusively by the step currently executing; the loop checkpoints a
// deep copy into the conversation store at every step boundary.
type ConversationState struct {
	ConversationID string
	History        []Message
	Iteration      int
	MaxIterations  int
	// SeenFingerprints holds the fingerprint set of the previous tool
	// batch. It is replaced (not unioned) after every act step.
	SeenFingerprints map[Fingerprint]struct{}
	// Terminal becomes true exactly once, at the step that decides no
	// further steps occur.
	Terminal bool
	// Forced records that the repetition guard or the iteration budget
	// decided the next assessment must produce a final answer.
	Forced bool
}

// NewConversationState builds run state from a stored checkpoint plus the
// new question. History and fingerprints carry over from earlier turns;
// per-run counters start fresh.
func NewConversationState(conversationID string, cp Checkpoint, question string, maxIterations int) *ConversationState {
	st := &ConversationState{
		ConversationID:   conversationID,
		History:          append([]Message(nil), cp.History...),
		MaxIterations:    maxIterations,
		SeenFingerprints: cp.fingerprintSet(),
	}
	st.Append(Message{Role: RoleUser, Content: question})
	return st
}

// Append adds a message to the history.
func (s *ConversationState) Append(m Message) {
	s.History = append(s.History, m)
}

// LastMessage returns the most recent message, or a zero Message when the
// history is empty.
func (s *ConversationState) LastMessage() (Message, bool) {
	if len(s.History) == 0 {
		return Message{}, false
	}
	return s.History[len(s.History)-1], true
}

// PendingToolCalls returns the tool calls attached to the last message when
// it is an assistant message. These form the batch the act step executes.
func (s *ConversationState) PendingToolCalls() []ToolCall {
	last, ok := s.LastMessage()
	if !ok || last.Role != RoleAssistant {
		return nil
	}
	return last.ToolCalls
}

// Checkpoint captures the parts of a conversation that survive across runs:
// the message history and the rolling fingerprint set.
type Checkpoint struct {
	History      []Message     `json:"history"`
	Fingerprints []Fingerprint `json:"fingerprints,omitempty"`
}

// Clone returns a deep copy safe to hand across goroutine boundaries.
func (cp Checkpoint) Clone() Checkpoint {
	out := Checkpoint{}
	if len(cp.History) > 0 {
		out.History = make([]Message, len(cp.History))
		for i, m := range cp.History {
			out.History[i] = m.clone()
		}
	}
	if len(cp.Fingerprints) > 0 {
		out.Fingerprints = append([]Fingerprint(nil), cp.Fingerprints...)
	}
	return out
}

func (cp Checkpoint) fingerprintSet() map[Fingerprint]struct{} {
	out := make(map[Fingerprint]struct{}, len(cp.Fingerprints))
	for _, fp := range cp.Fingerprints {
		out[fp] = struct{}{}
	}
	return out
}

// Checkpoint snapshots the state for the conversation store. The snapshot
// is fully detached from the live state.
func (s *ConversationState) Checkpoint() Checkpoint {
	cp := Checkpoint{}
	if len(s.History) > 0 {
		cp.History = make([]Message, len(s.History))
		for i, m := range s.History {
			cp.History[i] = m.clone()
		}
	}
	if len(s.SeenFingerprints) > 0 {
		cp.Fingerprints = make([]Fingerprint, 0, len(s.SeenFingerprints))
		for fp := range s.SeenFingerprints {
			cp.Fingerprints = append(cp.Fingerprints, fp)
		}
	}
	return cp
}
