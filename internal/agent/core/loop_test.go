package core_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	core "github.com/pooriaast/sleuth/internal/agent/core"
)

// fakeModel replays scripted replies: Chat pops from chatReplies, ChatStream
// pops from streamReplies and delivers the text as word tokens first.
type fakeModel struct {
	mu            sync.Mutex
	chatReplies   []core.Message
	streamReplies []string
	chatErr       error
	chatCalls     int
	streamCalls   int
}

var _ core.ModelHandle = (*fakeModel)(nil)

func (m *fakeModel) Chat(ctx context.Context, history []core.Message, tools []core.ToolDefinition) (core.Message, core.Usage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.chatErr != nil {
		return core.Message{}, core.Usage{}, m.chatErr
	}
	if m.chatCalls >= len(m.chatReplies) {
		return core.Message{Role: core.RoleAssistant, Content: "out of scripted replies"}, core.Usage{}, nil
	}
	reply := m.chatReplies[m.chatCalls]
	m.chatCalls++
	return reply, core.Usage{PromptTokens: 10, CompletionTokens: 5}, nil
}

func (m *fakeModel) ChatStream(ctx context.Context, history []core.Message, onToken func(string)) (core.Message, core.Usage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.streamCalls >= len(m.streamReplies) {
		return core.Message{Role: core.RoleAssistant}, core.Usage{}, nil
	}
	reply := m.streamReplies[m.streamCalls]
	m.streamCalls++
	if onToken != nil {
		for _, tok := range strings.SplitAfter(reply, " ") {
			onToken(tok)
		}
	}
	return core.Message{Role: core.RoleAssistant, Content: reply}, core.Usage{PromptTokens: 10, CompletionTokens: 5}, nil
}

// fakeTools serves canned evidence keyed by query and records every call.
type fakeTools struct {
	mu      sync.Mutex
	results map[string][]core.Evidence
	calls   []string
}

var _ core.ToolRunner = (*fakeTools)(nil)

func (f *fakeTools) Search(ctx context.Context, tool, query string) []core.Evidence {
	f.mu.Lock()
	f.calls = append(f.calls, tool+":"+query)
	f.mu.Unlock()
	if res, ok := f.results[query]; ok {
		return res
	}
	return []core.Evidence{{Note: "No relevant results found. Try rephrasing your query."}}
}

func (f *fakeTools) Definitions() []core.ToolDefinition {
	return []core.ToolDefinition{{Name: core.ToolSearchDocs, Description: "search the docs"}}
}

// fakeStore is a minimal checkpoint store recording save count.
type fakeStore struct {
	mu    sync.Mutex
	cps   map[string]core.Checkpoint
	saves int
}

var _ core.CheckpointStore = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{cps: map[string]core.Checkpoint{}}
}

func (s *fakeStore) GetOrCreate(_ context.Context, id string) (core.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cps[id].Clone(), nil
}

func (s *fakeStore) Save(_ context.Context, id string, cp core.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cps[id] = cp.Clone()
	s.saves++
	return nil
}

func toolCallMsg(id, query string) core.Message {
	return core.Message{
		Role: core.RoleAssistant,
		ToolCalls: []core.ToolCall{
			{ID: id, Name: core.ToolSearchDocs, Arguments: map[string]any{"query": query}},
		},
	}
}

func runLoop(t *testing.T, model *fakeModel, tools *fakeTools, store *fakeStore, maxIterations int) *core.ConversationState {
	t.Helper()
	st := core.NewConversationState("conv1", core.Checkpoint{}, "what is streaming?", maxIterations)
	loop := core.NewLoop(model, tools, store, false, nil, nil)
	if err := loop.Run(context.Background(), st, nil); err != nil {
		t.Fatalf("loop.Run: %v", err)
	}
	return st
}

func TestLoopNoToolsGoesStraightToAnswer(t *testing.T) {
	model := &fakeModel{chatReplies: []core.Message{
		{Role: core.RoleAssistant, Content: "I can answer directly."},
		{Role: core.RoleAssistant, Content: "Streaming delivers tokens incrementally."},
	}}
	tools := &fakeTools{}
	store := newFakeStore()

	st := runLoop(t, model, tools, store, 3)

	if st.Iteration != 0 {
		t.Fatalf("expected 0 tool rounds, got %d", st.Iteration)
	}
	if len(tools.calls) != 0 {
		t.Fatalf("expected no tool calls, got %v", tools.calls)
	}
	if !st.Terminal {
		t.Fatal("expected terminal state")
	}
	last, _ := st.LastMessage()
	if last.Role != core.RoleAssistant || last.Content != "Streaming delivers tokens incrementally." {
		t.Fatalf("expected final answer appended, got %+v", last)
	}
	if store.saves != 2 {
		t.Fatalf("expected a checkpoint per step (gather, assess), got %d saves", store.saves)
	}
}

func TestLoopRepetitionGuardForcesTermination(t *testing.T) {
	evidence := []core.Evidence{
		{Content: "chunk one about streaming", URL: "https://docs.example.com/a", RelevanceScore: 0.9},
		{Content: "chunk two about streaming", URL: "https://docs.example.com/b", RelevanceScore: 0.9},
	}
	model := &fakeModel{
		chatReplies: []core.Message{
			toolCallMsg("t1", "X"),
			{Role: core.RoleAssistant, Content: "NEED MORE RESEARCH\nSEARCH FOR:\n- \"X\""},
			toolCallMsg("t2", "X"),
		},
		streamReplies: []string{"Final answer built from the evidence."},
	}
	tools := &fakeTools{results: map[string][]core.Evidence{"X": evidence}}
	store := newFakeStore()

	st := runLoop(t, model, tools, store, 5)

	if st.Iteration != 2 {
		t.Fatalf("expected the guard to stop after round 2, got iteration %d", st.Iteration)
	}
	if !st.Forced {
		t.Fatal("expected forced termination")
	}
	if len(tools.calls) != 2 {
		t.Fatalf("expected at most 2 tool calls, got %d", len(tools.calls))
	}
	if model.streamCalls != 1 {
		t.Fatal("expected the forced synthesis path to produce the answer")
	}
	if !st.Terminal {
		t.Fatal("expected terminal state")
	}
}

func TestLoopBudgetForcesSynthesisWithoutJudgment(t *testing.T) {
	model := &fakeModel{
		chatReplies:   []core.Message{toolCallMsg("t1", "only round")},
		streamReplies: []string{"Answer with what we have."},
	}
	tools := &fakeTools{results: map[string][]core.Evidence{
		"only round": {{Content: "some evidence", RelevanceScore: 0.8}},
	}}
	store := newFakeStore()

	st := runLoop(t, model, tools, store, 1)

	if st.Iteration != 1 {
		t.Fatalf("expected iteration to equal the budget, got %d", st.Iteration)
	}
	if model.chatCalls != 1 {
		t.Fatalf("no sufficiency judgment may run at the budget, got %d chat calls", model.chatCalls)
	}
	if model.streamCalls != 1 {
		t.Fatal("expected forced synthesis")
	}
	if st.Iteration > st.MaxIterations {
		t.Fatal("iteration exceeded the budget")
	}
}

func TestLoopToolErrorStillReachesAssess(t *testing.T) {
	model := &fakeModel{chatReplies: []core.Message{
		toolCallMsg("t1", "broken"),
		{Role: core.RoleAssistant, Content: "I don't have information about this in my sources."},
	}}
	tools := &fakeTools{results: map[string][]core.Evidence{
		"broken": {{Error: "index unavailable"}},
	}}
	store := newFakeStore()

	st := runLoop(t, model, tools, store, 3)

	if !st.Terminal {
		t.Fatal("run must still terminate")
	}
	var toolMsg *core.Message
	for i := range st.History {
		if st.History[i].Role == core.RoleTool {
			toolMsg = &st.History[i]
		}
	}
	if toolMsg == nil {
		t.Fatal("expected a tool-result message for the failed call")
	}
	if toolMsg.ToolCallID != "t1" {
		t.Fatalf("tool message must reference its call, got %q", toolMsg.ToolCallID)
	}
	if !strings.Contains(toolMsg.Content, "index unavailable") {
		t.Fatalf("expected the error record in-band, got %s", toolMsg.Content)
	}
}

func TestLoopBatchResultsKeepCallOrder(t *testing.T) {
	batch := core.Message{
		Role: core.RoleAssistant,
		ToolCalls: []core.ToolCall{
			{ID: "t1", Name: core.ToolSearchDocs, Arguments: map[string]any{"query": "alpha"}},
			{ID: "t2", Name: core.ToolSearchDocs, Arguments: map[string]any{"query": "beta"}},
			{ID: "t3", Name: core.ToolSearchDocs, Arguments: map[string]any{"query": "gamma"}},
		},
	}
	model := &fakeModel{chatReplies: []core.Message{
		batch,
		{Role: core.RoleAssistant, Content: "Final answer."},
	}}
	tools := &fakeTools{results: map[string][]core.Evidence{
		"alpha": {{Content: "result alpha", RelevanceScore: 0.9}},
		"beta":  {{Content: "result beta", RelevanceScore: 0.9}},
		"gamma": {{Content: "result gamma", RelevanceScore: 0.9}},
	}}
	store := newFakeStore()

	st := runLoop(t, model, tools, store, 3)

	var toolMsgs []core.Message
	for _, m := range st.History {
		if m.Role == core.RoleTool {
			toolMsgs = append(toolMsgs, m)
		}
	}
	if len(toolMsgs) != 3 {
		t.Fatalf("expected 3 tool messages, got %d", len(toolMsgs))
	}
	wantIDs := []string{"t1", "t2", "t3"}
	wantBodies := []string{"result alpha", "result beta", "result gamma"}
	for i, m := range toolMsgs {
		if m.ToolCallID != wantIDs[i] {
			t.Fatalf("tool message %d out of call order: got %q want %q", i, m.ToolCallID, wantIDs[i])
		}
		if !strings.Contains(m.Content, wantBodies[i]) {
			t.Fatalf("tool message %d carries the wrong payload: %s", i, m.Content)
		}
	}
	if st.Iteration != 1 {
		t.Fatalf("one batch is one iteration regardless of call count, got %d", st.Iteration)
	}
}

func TestLoopModelFaultDowngraded(t *testing.T) {
	model := &fakeModel{chatErr: context.DeadlineExceeded}
	tools := &fakeTools{}
	store := newFakeStore()

	st := core.NewConversationState("conv1", core.Checkpoint{}, "q", 3)
	loop := core.NewLoop(model, tools, store, false, nil, nil)
	if err := loop.Run(context.Background(), st, nil); err != nil {
		t.Fatalf("collaborator faults must not abort the run: %v", err)
	}
	if !st.Terminal {
		t.Fatal("run must still reach a terminal state")
	}
}

func TestLoopAppendsGuidanceAsUserTurn(t *testing.T) {
	model := &fakeModel{
		chatReplies: []core.Message{
			{Role: core.RoleAssistant, Content: "nothing to fetch"},
			{Role: core.RoleAssistant, Content: "NEED MORE RESEARCH\nMISSING INFORMATION:\n- details"},
			{Role: core.RoleAssistant, Content: "still nothing"},
			{Role: core.RoleAssistant, Content: "Here is the final answer."},
		},
	}
	tools := &fakeTools{}
	store := newFakeStore()

	st := runLoop(t, model, tools, store, 3)

	var guidance bool
	for _, m := range st.History {
		if m.Role == core.RoleUser && strings.Contains(m.Content, "NEED MORE RESEARCH") {
			guidance = true
		}
	}
	if !guidance {
		t.Fatal("insufficiency verdict must be appended as a user-role guidance turn")
	}
	if st.Iteration != 0 {
		t.Fatalf("gather revisits without tool calls must not increment iteration, got %d", st.Iteration)
	}
}
