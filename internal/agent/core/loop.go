package core

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pooriaast/sleuth/internal/agent/telemetry"
)

var loopTracer trace.Tracer = otel.Tracer("sleuth/internal/agent/core")

// Loop drives one research run through the gather/act/assess state machine.
// It owns the ConversationState exclusively for the duration of Run and
// checkpoints a detached copy into the store at every step boundary, so a
// cancelled run never leaves a partial checkpoint behind.
type Loop struct {
	model   ModelHandle
	tools   ToolRunner
	store   CheckpointStore
	online  bool
	obs     Observer
	logger  *log.Logger
	tele    *telemetry.Telemetry
}

// NewLoop wires a loop. obs may be nil for unobserved runs.
func NewLoop(model ModelHandle, tools ToolRunner, store CheckpointStore, online bool, logger *log.Logger, tele *telemetry.Telemetry) *Loop {
	if logger == nil {
		logger = log.New(log.Writer(), "[LOOP] ", log.LstdFlags)
	}
	return &Loop{model: model, tools: tools, store: store, online: online, logger: logger, tele: tele}
}

// Run advances the state machine one step at a time until it reaches the
// terminal step. The returned error is either ctx's error or an internal
// fault; collaborator failures never surface here, they are folded into the
// history as in-band records.
func (l *Loop) Run(ctx context.Context, st *ConversationState, obs Observer) error {
	if obs == nil {
		obs = nopObserver{}
	}
	l.obs = obs

	step := StepGather
	for step != StepDone {
		if err := ctx.Err(); err != nil {
			return err
		}

		stepCtx, span := loopTracer.Start(ctx, "loop.step")
		span.SetAttributes(
			attribute.String("step", string(step)),
			attribute.Int("iteration", st.Iteration),
		)
		l.obs.StepEntered(step, st)

		var err error
		switch step {
		case StepGather:
			err = l.gather(stepCtx, st)
		case StepAct:
			err = l.act(stepCtx, st)
		case StepAssess:
			err = l.assess(stepCtx, st)
		}
		span.End()
		if err != nil {
			return err
		}

		if err := l.store.Save(ctx, st.ConversationID, st.Checkpoint()); err != nil {
			l.logger.Printf("checkpoint save failed for %s: %v", st.ConversationID, err)
		}
		step = Route(step, st)
	}
	return nil
}

// gather asks the model, with tools enabled, to either request retrievals
// or stop gathering. The raw assistant reply is appended as-is.
func (l *Loop) gather(ctx context.Context, st *ConversationState) error {
	history := make([]Message, 0, len(st.History)+1)
	history = append(history, Message{Role: RoleSystem, Content: SystemPrompt(l.online)})
	history = append(history, st.History...)

	reply, usage, err := l.model.Chat(ctx, history, l.tools.Definitions())
	l.tele.Tokens(usage.PromptTokens, usage.CompletionTokens)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Downgrade to an in-band note with no tool calls; the loop
		// proceeds to assess with whatever evidence exists.
		l.logger.Printf("gather model call failed: %v", err)
		reply = Message{Role: RoleAssistant, Content: "Model request failed while gathering: " + err.Error()}
	}
	reply.Role = RoleAssistant
	st.Append(reply)

	l.obs.ModelCompleted(false, reply.Content)
	return nil
}

// act executes the tool batch attached to the last assistant message. Calls
// run concurrently; results are appended as tool messages in call order,
// each carrying a back-reference to its originating call. Failures become
// in-band error records, never faults.
func (l *Loop) act(ctx context.Context, st *ConversationState) error {
	calls := st.PendingToolCalls()
	results := make([][]Evidence, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		l.obs.ToolStarted(call)
		wg.Add(1)
		go func(i int, call ToolCall) {
			defer wg.Done()
			results[i] = l.tools.Search(ctx, call.Name, call.Query())
		}(i, call)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	for i, call := range calls {
		l.obs.ToolFinished(call, results[i])
		payload, err := json.Marshal(results[i])
		if err != nil {
			payload = []byte(`[{"error":"failed to encode tool results"}]`)
		}
		st.Append(Message{Role: RoleTool, Content: string(payload), ToolCallID: call.ID})
	}

	ObserveBatch(st, BatchFingerprints(results...))
	l.logger.Printf("tool batch complete: calls=%d iteration=%d/%d forced=%t",
		len(calls), st.Iteration, st.MaxIterations, st.Forced)
	return nil
}

// assess either judges sufficiency or, when the budget or the repetition
// guard ended research, synthesizes the final answer directly. It is the
// only step that sets Terminal.
func (l *Loop) assess(ctx context.Context, st *ConversationState) error {
	if st.Forced || st.Iteration >= st.MaxIterations {
		return l.synthesize(ctx, st)
	}

	history := make([]Message, 0, len(st.History)+2)
	history = append(history, Message{Role: RoleSystem, Content: synthesisSystem})
	history = append(history, st.History...)
	history = append(history, Message{Role: RoleUser, Content: assessmentPrompt(st.Iteration, st.MaxIterations)})

	reply, usage, err := l.model.Chat(ctx, history, nil)
	l.tele.Tokens(usage.PromptTokens, usage.CompletionTokens)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.logger.Printf("assess model call failed: %v", err)
		st.Append(Message{Role: RoleAssistant, Content: "Model request failed while assessing: " + err.Error()})
		st.Terminal = true
		l.obs.ModelCompleted(true, "I wasn't able to complete the answer because the model is unavailable.")
		return nil
	}

	if needsMoreResearch(reply.Content) {
		// The verdict becomes a guidance turn the next gather round reads.
		l.logger.Printf("assessment: more research needed (iteration %d/%d)", st.Iteration, st.MaxIterations)
		st.Append(Message{Role: RoleUser, Content: reply.Content})
		l.obs.ModelCompleted(false, reply.Content)
		return nil
	}

	l.logger.Printf("assessment: final answer generated (iteration %d/%d)", st.Iteration, st.MaxIterations)
	st.Append(Message{Role: RoleAssistant, Content: reply.Content})
	st.Terminal = true
	l.obs.ModelCompleted(true, reply.Content)
	return nil
}

// synthesize streams the forced final answer: no sufficiency judgment, the
// model must answer with the evidence at hand.
func (l *Loop) synthesize(ctx context.Context, st *ConversationState) error {
	history := make([]Message, 0, len(st.History)+2)
	history = append(history, Message{Role: RoleSystem, Content: synthesisSystem})
	history = append(history, st.History...)
	history = append(history, Message{Role: RoleUser, Content: forcedSynthesisPrompt})

	reply, usage, err := l.model.ChatStream(ctx, history, func(tok string) {
		l.obs.ModelToken(true, tok)
	})
	l.tele.Tokens(usage.PromptTokens, usage.CompletionTokens)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.logger.Printf("forced synthesis failed: %v", err)
		reply = Message{Content: "I wasn't able to complete the answer because the model is unavailable."}
	}

	st.Append(Message{Role: RoleAssistant, Content: reply.Content})
	st.Terminal = true
	l.obs.ModelCompleted(true, reply.Content)
	return nil
}

func needsMoreResearch(content string) bool {
	upper := strings.ToUpper(content)
	for _, marker := range insufficiencyMarkers {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}
