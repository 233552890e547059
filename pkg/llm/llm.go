// Package llm generates the agent's spoken reply from the caller's
// utterance, the agent persona, and the full turn history.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/relayvoice/relay/pkg/turns"
)

// Responder produces the agent's next reply.
type Responder interface {
	Respond(ctx context.Context, req ReplyRequest) (string, error)
}

// ReplyRequest carries everything the model needs for one reply.
type ReplyRequest struct {
	// PersonaName is the agent's display name, woven into the system
	// prompt so the model speaks as that persona.
	PersonaName string

	// Instructions is the operator-authored persona prompt.
	Instructions string

	// History is the full ordered turn history for the call, including
	// the new caller turn.
	History []turns.Turn

	// Utterance is the caller's newest transcribed utterance.
	Utterance string
}

// Sentinel errors.
var (
	// ErrNoAPIKey is returned when the API key is missing.
	ErrNoAPIKey = errors.New("llm: API key required")

	// ErrEmptyReply is returned when the model produced no usable text.
	ErrEmptyReply = errors.New("llm: empty reply from model")
)

// APIError represents an error response from a completion API.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("llm: API error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true for rate limits and server-side failures.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == 429 || (e.StatusCode >= 500 && e.StatusCode < 600)
}
