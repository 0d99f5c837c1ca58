package acpclient

import "github.com/execbridge/acp-client-go/internal/wire"

// PlanEntry is a single step in an agent plan.
type PlanEntry = wire.PlanEntry

// Implementation identifies a client or agent.
type Implementation = wire.Implementation

// AgentCapabilities is the capability record captured from the handshake.
type AgentCapabilities = wire.AgentCapabilities

// SessionDescriptor describes one server-held session.
type SessionDescriptor = wire.SessionDescriptor

// Client-side error codes for terminal ProtocolErrorEvent values that
// do not originate from an agent response. They sit in the JSON-RPC
// implementation-defined server-error range.
const (
	// ErrCodeTurnTimeout marks a turn abandoned after its overall timeout.
	ErrCodeTurnTimeout = -32000

	// ErrCodeTurnCancelled marks a turn abandoned by context cancellation.
	ErrCodeTurnCancelled = -32001
)

// Event is the closed set of typed events observed while a turn runs.
// Implementations: TextChunkEvent, ReasoningChunkEvent,
// ToolCallStartedEvent, ToolCallProgressEvent, PlanUpdateEvent,
// ModeUpdateEvent, TurnCompleteEvent, ProtocolErrorEvent,
// KeepaliveEvent.
type Event interface {
	isEvent()
}

// TextChunkEvent carries an incremental chunk of the agent's reply text.
type TextChunkEvent struct {
	SessionID string
	Text      string
}

// ReasoningChunkEvent carries an incremental chunk of the agent's
// reasoning output.
type ReasoningChunkEvent struct {
	SessionID string
	Text      string
}

// ToolCallStartedEvent signals the agent began executing a tool.
type ToolCallStartedEvent struct {
	SessionID  string
	ToolCallID string
	ToolName   string
	Input      map[string]any
}

// ToolCallProgressEvent signals a status change on a running tool call.
type ToolCallProgressEvent struct {
	SessionID  string
	ToolCallID string
	ToolName   string
	Status     string
}

// PlanUpdateEvent carries the agent's current execution plan.
type PlanUpdateEvent struct {
	SessionID string
	Entries   []PlanEntry
}

// ModeUpdateEvent signals the session switched operating mode.
type ModeUpdateEvent struct {
	SessionID string
	ModeID    string
}

// TurnCompleteEvent is the terminal event of a successful turn,
// carrying the agent's stop reason. The completion signal may arrive as
// the matching response or embedded in a progress notification; both
// are authoritative.
type TurnCompleteEvent struct {
	SessionID  string
	StopReason string
}

// ProtocolErrorEvent is the terminal event of a failed turn: either the
// error object from the agent's response or a client-side code for
// timeout and cancellation.
type ProtocolErrorEvent struct {
	SessionID string
	Code      int
	Message   string
}

// KeepaliveEvent is a synthetic, protocol-external liveness marker
// injected while the agent is idle. It carries no payload and never
// counts against timeouts.
type KeepaliveEvent struct{}

func (TextChunkEvent) isEvent()        {}
func (ReasoningChunkEvent) isEvent()   {}
func (ToolCallStartedEvent) isEvent()  {}
func (ToolCallProgressEvent) isEvent() {}
func (PlanUpdateEvent) isEvent()       {}
func (ModeUpdateEvent) isEvent()       {}
func (TurnCompleteEvent) isEvent()     {}
func (ProtocolErrorEvent) isEvent()    {}
func (KeepaliveEvent) isEvent()        {}
