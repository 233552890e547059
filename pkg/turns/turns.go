// Package turns defines the persisted conversation model. A call is
// never stored as an object of its own: it is a projection over its
// ordered turns, and the orchestrator rebuilds call state from them on
// every webhook.
package turns

import (
	"context"
	"errors"
	"time"
)

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerCaller Speaker = "caller"
	SpeakerAgent  Speaker = "agent"
)

// Sentinel errors for store operations.
var (
	// ErrDuplicateOrder is returned when a turn with the same
	// (call, order) pair already exists. Redelivered webhooks hit this.
	ErrDuplicateOrder = errors.New("turns: duplicate order index for call")

	// ErrAgentNotFound is returned when the agent id is unknown.
	ErrAgentNotFound = errors.New("turns: agent not found")
)

// Turn is one utterance within a call. Order indices form a contiguous
// 1-based sequence per call. Turns are append-only.
type Turn struct {
	CallID    string
	Order     int
	Speaker   Speaker
	Text      string
	AudioURL  string // source recording for caller turns, empty for agent turns
	CreatedAt time.Time
}

// Agent is the persona configuration consulted for reply generation.
type Agent struct {
	ID           string
	Name         string
	Instructions string
}

// Store persists turns. Implementations must reject duplicate
// (call, order) pairs with ErrDuplicateOrder so that a redelivered
// webhook cannot corrupt the sequence.
type Store interface {
	// List returns all turns for the call in ascending order.
	List(ctx context.Context, callID string) ([]Turn, error)

	// Append persists a new turn.
	Append(ctx context.Context, turn Turn) error
}

// AgentStore resolves agent configurations.
type AgentStore interface {
	// GetAgent returns the agent config or ErrAgentNotFound.
	GetAgent(ctx context.Context, id string) (Agent, error)
}

// Phase is the conversational state derived from the persisted turns.
type Phase int

const (
	// PhaseAwaitingCaller means the last persisted turn (if any) was the
	// agent's; the next utterance should come from the caller.
	PhaseAwaitingCaller Phase = iota

	// PhaseAwaitingAgent means the caller spoke last and no reply has
	// been persisted yet.
	PhaseAwaitingAgent

	// PhaseTerminated means the exchange budget is exhausted.
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingCaller:
		return "awaiting_caller"
	case PhaseAwaitingAgent:
		return "awaiting_agent"
	case PhaseTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// DerivePhase reconstructs the call phase from its turn history. The
// orchestrator holds no state between webhooks, so this runs on every
// request against the freshly loaded history.
func DerivePhase(history []Turn, maxExchanges int) Phase {
	if maxExchanges > 0 && len(history) >= 2*maxExchanges {
		return PhaseTerminated
	}
	if len(history)%2 == 1 {
		return PhaseAwaitingAgent
	}
	return PhaseAwaitingCaller
}
