package telemetry

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Telemetry collects run-level metrics for the research agent. All methods
// are safe on a nil receiver so components can be wired without it.
type Telemetry struct {
	logger *log.Logger

	runsStarted   prometheus.Counter
	runsCompleted prometheus.Counter
	runsFailed    prometheus.Counter
	runDuration   prometheus.Histogram
	iterations    prometheus.Histogram
	toolCalls     *prometheus.CounterVec
	toolErrors    *prometheus.CounterVec
	llmTokens     *prometheus.CounterVec
	citations     prometheus.Counter
}

// New registers the agent's collectors on reg and returns the telemetry
// handle. Pass prometheus.DefaultRegisterer in production; tests use a
// fresh registry to avoid duplicate registration.
func New(reg prometheus.Registerer) *Telemetry {
	t := &Telemetry{
		logger: log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sleuth_runs_started_total",
			Help: "Research runs started.",
		}),
		runsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sleuth_runs_completed_total",
			Help: "Research runs that ended with a final answer.",
		}),
		runsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sleuth_runs_failed_total",
			Help: "Research runs that ended with an error event.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sleuth_run_duration_seconds",
			Help:    "Wall-clock duration of a research run.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sleuth_run_iterations",
			Help:    "Completed tool rounds per run.",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 6},
		}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sleuth_tool_calls_total",
			Help: "Tool gateway calls by tool name.",
		}, []string{"tool"}),
		toolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sleuth_tool_errors_total",
			Help: "Tool gateway calls that produced an error record.",
		}, []string{"tool"}),
		llmTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sleuth_llm_tokens_total",
			Help: "LLM tokens consumed, by kind.",
		}, []string{"kind"}),
		citations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sleuth_citations_total",
			Help: "Citation events emitted.",
		}),
	}
	reg.MustRegister(
		t.runsStarted, t.runsCompleted, t.runsFailed,
		t.runDuration, t.iterations,
		t.toolCalls, t.toolErrors, t.llmTokens, t.citations,
	)
	return t
}

func (t *Telemetry) RunStarted() {
	if t == nil {
		return
	}
	t.runsStarted.Inc()
}

func (t *Telemetry) RunCompleted(iterations int, d time.Duration) {
	if t == nil {
		return
	}
	t.runsCompleted.Inc()
	t.runDuration.Observe(d.Seconds())
	t.iterations.Observe(float64(iterations))
	t.logger.Printf("run completed: iterations=%d duration=%s", iterations, d.Round(time.Millisecond))
}

func (t *Telemetry) RunFailed() {
	if t == nil {
		return
	}
	t.runsFailed.Inc()
}

func (t *Telemetry) ToolCall(tool string) {
	if t == nil {
		return
	}
	t.toolCalls.WithLabelValues(tool).Inc()
}

func (t *Telemetry) ToolError(tool string) {
	if t == nil {
		return
	}
	t.toolErrors.WithLabelValues(tool).Inc()
}

func (t *Telemetry) Tokens(prompt, completion int) {
	if t == nil {
		return
	}
	t.llmTokens.WithLabelValues("prompt").Add(float64(prompt))
	t.llmTokens.WithLabelValues("completion").Add(float64(completion))
}

func (t *Telemetry) Citations(n int) {
	if t == nil {
		return
	}
	t.citations.Add(float64(n))
}
