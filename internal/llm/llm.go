package llm

import (
	"context"
	"errors"
)

var (
	// ErrCompletion marks a failed call to the completion service (network,
	// model or timeout). Callers treat it as a failed step, never a crash.
	ErrCompletion = errors.New("completion service error")
	// ErrMalformedOutput marks a response that should have been structured
	// but could not be parsed. Callers keep the raw text.
	ErrMalformedOutput = errors.New("malformed structured output")
)

// Request is a single prompt sent to the completion service
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	// JSON asks the backend to constrain the response to a JSON document
	JSON bool
}

// Completer is a stateless text-completion capability
type Completer interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// PermanentError indicates an error that will not resolve with retries.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// NewPermanentError wraps err so Retry gives up immediately
func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}
