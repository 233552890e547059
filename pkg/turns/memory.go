package turns

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store and AgentStore. Production deploys
// back turns with the dashboard's database; this implementation serves
// tests and single-node setups.
type MemoryStore struct {
	mu     sync.Mutex
	turns  map[string][]Turn
	agents map[string]Agent
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		turns:  make(map[string][]Turn),
		agents: make(map[string]Agent),
	}
}

// List returns the call's turns in ascending order.
func (s *MemoryStore) List(ctx context.Context, callID string) ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src := s.turns[callID]
	out := make([]Turn, len(src))
	copy(out, src)
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

// Count returns the number of turns persisted for the call.
func (s *MemoryStore) Count(ctx context.Context, callID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns[callID]), nil
}

// Append persists a turn, rejecting duplicate order indices.
func (s *MemoryStore) Append(ctx context.Context, turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.turns[turn.CallID] {
		if existing.Order == turn.Order {
			return ErrDuplicateOrder
		}
	}
	s.turns[turn.CallID] = append(s.turns[turn.CallID], turn)
	return nil
}

// PutAgent registers an agent configuration.
func (s *MemoryStore) PutAgent(agent Agent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[agent.ID] = agent
}

// GetAgent returns the agent config or ErrAgentNotFound.
func (s *MemoryStore) GetAgent(ctx context.Context, id string) (Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent, ok := s.agents[id]
	if !ok {
		return Agent{}, ErrAgentNotFound
	}
	return agent, nil
}

// Verify MemoryStore implements both interfaces at compile time.
var (
	_ Store      = (*MemoryStore)(nil)
	_ AgentStore = (*MemoryStore)(nil)
)
