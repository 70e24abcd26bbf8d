// Package agent defines the conversational agent capability used by the
// session orchestrator and its OpenAI-compatible backend. A run's outcome is
// a tagged Result rather than an error: cancellation is an expected state,
// not a failure.
package agent

import "context"

// Agent answers questions while maintaining conversation history across
// runs. Run observes ctx and returns a cancelled result promptly when it is
// done. SetModel switches the model used for subsequent runs. Reset drops
// the conversation history.
type Agent interface {
	Run(ctx context.Context, question string) Result
	SetModel(modelID string)
	Reset()
}

// State classifies how a run ended.
type State int

const (
	// StateOK means the run produced a final answer.
	StateOK State = iota
	// StateCancelled means the run was stopped through its context.
	StateCancelled
	// StateFailed means the run aborted on a transport or backend failure.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateOK:
		return "ok"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the tagged outcome of a run. Output is set when State is
// StateOK; Err is set when State is StateFailed.
type Result struct {
	State  State
	Output string
	Err    error
}

// OK builds a successful result.
func OK(output string) Result {
	return Result{State: StateOK, Output: output}
}

// Cancelled builds a cancelled result.
func Cancelled() Result {
	return Result{State: StateCancelled}
}

// Failed builds a failed result.
func Failed(err error) Result {
	return Result{State: StateFailed, Err: err}
}
