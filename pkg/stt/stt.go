// Package stt provides speech-to-text for recorded caller utterances.
//
// The orchestrator depends only on the Transcriber interface; the OpenAI
// Whisper client is the bundled implementation and Mock serves tests.
package stt

import (
	"context"
	"errors"
	"fmt"
)

// Transcriber converts a recorded audio buffer to text. An empty string
// with a nil error means the service heard nothing intelligible.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Sentinel errors.
var (
	// ErrNoAPIKey is returned when the API key is missing.
	ErrNoAPIKey = errors.New("stt: API key required")

	// ErrEmptyAudio is returned when the audio buffer has no content.
	ErrEmptyAudio = errors.New("stt: empty audio buffer")
)

// APIError represents an error response from a transcription API.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("stt: API error %d: %s", e.StatusCode, e.Message)
}

// IsServerError returns true for server-side failures (HTTP 5xx).
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}
