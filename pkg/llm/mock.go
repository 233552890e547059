package llm

import (
	"context"
	"sync"
)

// Mock implements Responder for testing.
type Mock struct {
	// RespondFunc is called when Respond is invoked.
	// If nil, returns a fixed reply.
	RespondFunc func(ctx context.Context, req ReplyRequest) (string, error)

	mu       sync.Mutex
	requests []ReplyRequest
}

// NewMock creates a mock that returns a fixed reply.
func NewMock(reply string) *Mock {
	return &Mock{
		RespondFunc: func(ctx context.Context, req ReplyRequest) (string, error) {
			return reply, nil
		},
	}
}

// WithError returns a mock that always fails with err.
func WithError(err error) *Mock {
	return &Mock{
		RespondFunc: func(ctx context.Context, req ReplyRequest) (string, error) {
			return "", err
		},
	}
}

// Respond calls RespondFunc and records the request.
func (m *Mock) Respond(ctx context.Context, req ReplyRequest) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.RespondFunc != nil {
		return m.RespondFunc(ctx, req)
	}
	return "", nil
}

// Requests returns all recorded reply requests.
func (m *Mock) Requests() []ReplyRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ReplyRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// CallCount returns how many times Respond was invoked.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Verify Mock implements Responder at compile time.
var _ Responder = (*Mock)(nil)
