package workflow

// State is the lifecycle state of an intake instance.
type State string

const (
	StateStarted          State = "started"
	StateAwaitingReport   State = "awaitingReport"
	StateAwaitingDecision State = "awaitingDecision"
	StateApproving        State = "approving"
	StateWaitlisting      State = "waitlisting"
	StateCompleted        State = "completed"
	StateFailed           State = "failed"
)

// States lists every state in lifecycle order.
var States = []State{
	StateStarted,
	StateAwaitingReport,
	StateAwaitingDecision,
	StateApproving,
	StateWaitlisting,
	StateCompleted,
	StateFailed,
}

var transitions = map[State][]State{
	StateStarted:          {StateAwaitingReport},
	StateAwaitingReport:   {StateAwaitingDecision},
	StateAwaitingDecision: {StateApproving, StateWaitlisting},
	StateApproving:        {StateCompleted},
	StateWaitlisting:      {StateCompleted},
}

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// IsValid reports whether s is a known state.
func (s State) IsValid() bool {
	for _, candidate := range States {
		if candidate == s {
			return true
		}
	}
	return false
}

// NonTerminal returns states an instance can still leave.
func NonTerminal() []State {
	var ret []State
	for _, s := range States {
		if !s.IsTerminal() {
			ret = append(ret, s)
		}
	}
	return ret
}

// CanTransition reports whether from -> to is allowed. Any non-terminal
// state may fail.
func CanTransition(from, to State) bool {
	if from.IsTerminal() || !from.IsValid() {
		return false
	}
	if to == StateFailed {
		return true
	}
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Decision is the reviewer verdict.
type Decision string

const (
	DecisionApprove  Decision = "approve"
	DecisionWaitlist Decision = "waitlist"
)

// IsValid reports whether d is a known decision.
func (d Decision) IsValid() bool {
	return d == DecisionApprove || d == DecisionWaitlist
}

// Target returns the branch state entered when d is redeemed.
func (d Decision) Target() State {
	switch d {
	case DecisionApprove:
		return StateApproving
	case DecisionWaitlist:
		return StateWaitlisting
	}
	return ""
}

// Failure reasons.
const (
	ReasonReportFailed       = "report-failed"
	ReasonArtifactFailed     = "artifact-failed"
	ReasonNotificationFailed = "notification-failed"
	ReasonDecisionTimeout    = "decision-timeout"
	ReasonCancelledPrefix    = "cancelled: "
)
