// Package hub provides a thread-safe websocket broadcast hub for call
// events, using the channel-based fan-out pattern.
package hub

import "time"

// Event kinds published over the events feed.
const (
	// KindCallerTurn is emitted when a caller turn is persisted.
	KindCallerTurn = "caller_turn"

	// KindAgentTurn is emitted when an agent turn is persisted.
	KindAgentTurn = "agent_turn"

	// KindCallEnded is emitted when a call reaches its exchange budget
	// or is hung up.
	KindCallEnded = "call_ended"

	// KindCallError is emitted when a webhook fails mid-pipeline.
	KindCallError = "call_error"
)

// Event is a single call lifecycle event.
type Event struct {
	Kind    string    `json:"kind"`
	CallID  string    `json:"call_id"`
	AgentID string    `json:"agent_id,omitempty"`
	Order   int       `json:"order,omitempty"`
	Text    string    `json:"text,omitempty"`
	Detail  string    `json:"detail,omitempty"`
	At      time.Time `json:"at"`
}
