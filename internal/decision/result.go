package decision

type Outcome int32

const (
	OutcomeUnspecified Outcome = iota
	// OutcomePlanned means the action was recorded as a plan (planning mode)
	// and no verdict was computed.
	OutcomePlanned
	// OutcomeDenied means a static check, rate limit, or deny-list match
	// refused the action.
	OutcomeDenied
	// OutcomeRejected means the operator declined the action.
	OutcomeRejected
	// OutcomeExecuted means the action was approved and its side effect
	// completed.
	OutcomeExecuted
	// OutcomeExecutionFailed means the action was approved but the bridge
	// call failed. Execution failures are reported, never retried.
	OutcomeExecutionFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomePlanned:
		return "planned"
	case OutcomeDenied:
		return "denied"
	case OutcomeRejected:
		return "rejected"
	case OutcomeExecuted:
		return "executed"
	case OutcomeExecutionFailed:
		return "execution_failed"
	default:
		return "unspecified"
	}
}

// Result is the engine's terminal answer for one proposed action.
type Result struct {
	Outcome Outcome
	// Reason explains denials, rejections, and failures.
	Reason string
	// Output carries captured stdout or fetched content for executed actions.
	Output string
}
