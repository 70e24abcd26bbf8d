package agent

import "errors"

var (
	// ErrMaxIterations is returned when the agent loop exhausts its
	// iteration budget without producing a final answer.
	ErrMaxIterations = errors.New("max iterations reached")

	// ErrEmptyResponse is returned when the model returns no choices.
	ErrEmptyResponse = errors.New("model returned empty response")
)
