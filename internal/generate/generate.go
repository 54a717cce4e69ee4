// Package generate invokes the text-generation backend. The backend is an
// external collaborator reached over a request/response HTTP interface;
// every failure mode is reported as a typed error so the caller can map it
// to a user-facing fallback while logging the real cause.
package generate

import (
	"context"
	"errors"
	"fmt"
)

// Generator sends a prompt to the generation backend and returns the
// generated text. The call is bounded by the client's configured timeout
// on top of any deadline already carried by ctx.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ErrEmptyResponse reports a successful call whose generated text was
// empty. Callers treat it the same as any other generation failure.
var ErrEmptyResponse = errors.New("generation backend returned an empty response")

// StatusError reports a non-2xx response from the generation backend.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("generation backend returned status %d: %s", e.Code, e.Body)
}

// Kind classifies a generation error for structured logging, so operators
// can tell a down backend from a slow one or an empty completion.
func Kind(err error) string {
	var statusErr *StatusError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyResponse):
		return "empty_response"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &statusErr):
		return "status"
	default:
		return "transport"
	}
}
