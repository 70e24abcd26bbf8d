package tools

import (
	"context"

	"github.com/finna-data/mcpchat/transcript"
)

// Interceptor wraps a Transport and records every invocation in the
// transcript: a tool-call entry before delegating, then a tool-response
// entry on success or an error entry on failure. Entries for a single
// invocation are strictly ordered because recording happens on the calling
// goroutine.
type Interceptor struct {
	inner Transport
	log   *transcript.Log
}

// NewInterceptor wraps inner so its invocations are recorded in log.
func NewInterceptor(inner Transport, log *transcript.Log) *Interceptor {
	return &Interceptor{inner: inner, log: log}
}

// List delegates to the wrapped transport without recording.
func (i *Interceptor) List(ctx context.Context) ([]Definition, error) {
	return i.inner.List(ctx)
}

// Invoke records the call, delegates, then records the outcome.
func (i *Interceptor) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	i.log.Append(transcript.ToolCall(name, args))

	result, err := i.inner.Invoke(ctx, name, args)
	if err != nil {
		i.log.Append(transcript.Error(err))
		return nil, err
	}

	i.log.Append(transcript.ToolResponse(name, result))
	return result, nil
}

// Close delegates to the wrapped transport.
func (i *Interceptor) Close() error {
	return i.inner.Close()
}
