package core

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/pooriaast/sleuth/internal/agent/telemetry"
	"github.com/pooriaast/sleuth/internal/helpers"
)

var execTracer = otel.Tracer("sleuth/internal/agent/executor")

// Executor drives research runs and translates the loop's internal events
// into the progress-event stream callers consume.
type Executor struct {
	Model         ModelHandle
	Tools         ToolRunner
	Store         CheckpointStore
	Mode          string // "offline" or "online"
	MaxIterations int
	Logger        *log.Logger
	Tele          *telemetry.Telemetry
}

// NewExecutor wires an executor. mode selects the gather prompt and is
// echoed in the done event.
func NewExecutor(model ModelHandle, tools ToolRunner, store CheckpointStore, mode string, maxIterations int, tele *telemetry.Telemetry) *Executor {
	return &Executor{
		Model:         model,
		Tools:         tools,
		Store:         store,
		Mode:          mode,
		MaxIterations: maxIterations,
		Logger:        log.New(log.Writer(), "[EXECUTOR] ", log.LstdFlags),
		Tele:          tele,
	}
}

// Run starts one research run and returns its progress stream. The channel
// is single-pass and closes after the terminal event (done or error); a
// retry is a new run. Cancelling ctx stops the run; checkpoints are only
// written at step boundaries, so cancellation never leaves a torn one.
func (e *Executor) Run(ctx context.Context, question, conversationID string) <-chan Event {
	out := make(chan Event, 16)
	go func() {
		defer close(out)
		e.run(ctx, question, conversationID, out)
	}()
	return out
}

func (e *Executor) run(ctx context.Context, question, conversationID string, out chan<- Event) {
	ctx, span := execTracer.Start(ctx, "executor.run")
	defer span.End()

	t := &translator{ctx: ctx, out: out, seenURLs: make(map[string]struct{})}

	if strings.TrimSpace(question) == "" {
		t.emit(Event{Type: EventError, Error: "question must not be empty"})
		e.Tele.RunFailed()
		return
	}
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	e.Logger.Printf("run: conversation=%.8s mode=%s", conversationID, e.Mode)
	e.Tele.RunStarted()
	started := time.Now()

	cp, err := e.Store.GetOrCreate(ctx, conversationID)
	if err != nil {
		e.Logger.Printf("checkpoint load failed for %s: %v", conversationID, err)
		t.emit(Event{Type: EventError, Error: "Internal error: failed to load conversation"})
		e.Tele.RunFailed()
		return
	}
	st := NewConversationState(conversationID, cp, question, e.MaxIterations)

	t.emit(Event{Type: EventReasoning, Step: "start", Message: "Starting research..."})

	loop := NewLoop(e.Model, e.Tools, e.Store, e.Mode == "online", e.Logger, e.Tele)
	if err := loop.Run(ctx, st, t); err != nil {
		if ctx.Err() != nil {
			// Caller is gone; the stream just closes.
			e.Logger.Printf("run cancelled: conversation=%.8s", conversationID)
			return
		}
		// Internal fault: full detail in the log, redacted on the wire.
		e.Logger.Printf("run failed: conversation=%.8s: %v", conversationID, err)
		t.emit(Event{Type: EventError, Error: "Internal error: the run could not be completed"})
		e.Tele.RunFailed()
		return
	}

	for _, c := range t.citations {
		t.emit(c)
	}
	e.Tele.Citations(len(t.citations))

	iters := st.Iteration
	t.emit(Event{
		Type:           EventDone,
		ConversationID: conversationID,
		Mode:           e.Mode,
		Iterations:     &iters,
	})
	e.Tele.RunCompleted(st.Iteration, time.Since(started))
}

// translator is the per-run event translator. It observes the loop from the
// loop's own goroutine and forwards a closed vocabulary of progress events,
// buffering citations for emission at run end.
type translator struct {
	ctx context.Context
	out chan<- Event

	current       Step
	displayIter   int
	answerStarted bool
	streamed      bool

	citations []Event
	seenURLs  map[string]struct{}
}

var _ Observer = (*translator)(nil)

func (t *translator) emit(ev Event) {
	select {
	case t.out <- ev:
	case <-t.ctx.Done():
	}
}

func (t *translator) StepEntered(step Step, st *ConversationState) {
	if step == t.current {
		return
	}
	t.current = step

	switch step {
	case StepGather:
		t.displayIter++
		t.emit(Event{
			Type:      EventReasoning,
			Step:      string(StepGather),
			Iteration: t.displayIter,
			Message:   fmt.Sprintf("Iteration %d: Analyzing and deciding next action...", t.displayIter),
		})
	case StepAct:
		t.emit(Event{Type: EventReasoning, Step: string(StepAct), Message: "Executing tools..."})
	case StepAssess:
		msg := "Evaluating research quality..."
		if st.Forced || st.Iteration >= st.MaxIterations {
			msg = "Research complete! Generating final answer..."
		}
		t.emit(Event{Type: EventReasoning, Step: string(StepAssess), Message: msg})
	}
}

func (t *translator) ToolStarted(call ToolCall) {
	q := call.Query()
	t.emit(Event{
		Type:    EventToolCall,
		Tool:    call.Name,
		Query:   q,
		Message: fmt.Sprintf("  → Calling %s: %q", call.Name, q),
	})
}

func (t *translator) ToolFinished(call ToolCall, results []Evidence) {
	t.emit(Event{
		Type:        EventToolResult,
		Tool:        call.Name,
		ResultCount: len(results),
		Message:     fmt.Sprintf("  ✓ %s returned %d result(s)", call.Name, len(results)),
	})

	for _, ev := range results {
		sourceURL := ev.URL
		if sourceURL == "" {
			sourceURL = ev.Source
		}
		if sourceURL == "" {
			continue
		}
		key := sourceURL
		if canonical, err := helpers.CanonicalURL(sourceURL); err == nil {
			key = canonical
		}
		if _, ok := t.seenURLs[key]; ok {
			continue
		}
		t.seenURLs[key] = struct{}{}

		title := ev.Title
		if title == "" {
			title = ev.Section
		}
		if title == "" {
			title = "Documentation"
		}
		snippet := ev.Snippet
		if snippet == "" {
			snippet = truncateRunes(ev.Content, 200)
		}
		t.citations = append(t.citations, Event{
			Type:      EventCitation,
			SourceURL: sourceURL,
			Title:     title,
			Snippet:   snippet,
		})
	}
}

func (t *translator) ModelToken(final bool, content string) {
	if !final || content == "" {
		return
	}
	if !t.answerStarted {
		t.answerStarted = true
		t.emit(Event{Type: EventFinalAnswerStart, Message: "\n\n[FINAL ANSWER]\n\n"})
	}
	t.streamed = true
	t.emit(Event{Type: EventToken, Content: content})
}

func (t *translator) ModelCompleted(final bool, content string) {
	if !final || content == "" {
		return
	}
	// Non-streaming fallback: the terminal answer arrived whole, so the
	// start marker and a single token are synthesized from it.
	if t.streamed {
		return
	}
	if !t.answerStarted {
		t.answerStarted = true
		t.emit(Event{Type: EventFinalAnswerStart, Message: "\n\n[FINAL ANSWER]\n\n"})
	}
	t.streamed = true
	t.emit(Event{Type: EventToken, Content: content})
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
