package core

// Step identifies one state of the orchestration loop. The set is closed:
// routing switches over it rather than dispatching on arbitrary names.
type Step string

const (
	StepGather Step = "gather"
	StepAct    Step = "act"
	StepAssess Step = "assess"
	StepDone   Step = "done"
)

// repetitionThreshold is the fingerprint overlap ratio above which a tool
// batch counts as repeated retrieval and research is cut short.
const repetitionThreshold = 0.8

// Route maps the step that just completed, plus the state it left behind,
// to the next step. It is a pure function of its inputs: re-running it on
// unchanged state yields the same decision.
func Route(step Step, st *ConversationState) Step {
	switch step {
	case StepGather:
		if len(st.PendingToolCalls()) > 0 {
			return StepAct
		}
		return StepAssess
	case StepAct:
		return StepAssess
	case StepAssess:
		if st.Terminal {
			return StepDone
		}
		return StepGather
	default:
		return StepDone
	}
}

// ObserveBatch advances the iteration counter after a tool batch completes
// and applies the repetition guard: when the batch's fingerprint set mostly
// overlaps the previous round's, or the budget is exhausted, the next
// assessment is forced to produce a final answer. The previous set is
// replaced by the current one in all cases.
func ObserveBatch(st *ConversationState, current map[Fingerprint]struct{}) {
	st.Iteration++

	if st.Iteration > 1 && len(st.SeenFingerprints) > 0 && len(current) > 0 {
		overlap := 0
		for fp := range current {
			if _, ok := st.SeenFingerprints[fp]; ok {
				overlap++
			}
		}
		if ratio := float64(overlap) / float64(len(current)); ratio > repetitionThreshold {
			st.Forced = true
		}
	}

	if st.Iteration >= st.MaxIterations {
		st.Forced = true
	}

	st.SeenFingerprints = current
}
