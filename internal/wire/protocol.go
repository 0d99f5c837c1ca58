package wire

import "encoding/json"

// ProtocolVersion is the agent control protocol version this client speaks.
const ProtocolVersion = 1

// --- Initialize ---

// InitializeRequest negotiates the protocol and identifies the client.
type InitializeRequest struct {
	ProtocolVersion    int                 `json:"protocolVersion"`
	ClientInfo         *Implementation     `json:"clientInfo,omitempty"`
	ClientCapabilities *ClientCapabilities `json:"clientCapabilities,omitempty"`
}

// InitializeResponse carries the agent's identity and capabilities.
type InitializeResponse struct {
	ProtocolVersion   int                `json:"protocolVersion,omitempty"`
	AgentInfo         *Implementation    `json:"agentInfo,omitempty"`
	AgentCapabilities *AgentCapabilities `json:"agentCapabilities,omitempty"`
}

// Implementation identifies a client or agent.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// ClientCapabilities advertises what the client supports. This client
// implements no command surface for the agent to invoke, so it
// advertises nothing.
type ClientCapabilities struct {
	Fs       *FsCapability `json:"fs,omitempty"`
	Terminal bool          `json:"terminal,omitempty"`
}

// FsCapability describes file system capabilities.
type FsCapability struct {
	ReadTextFile  bool `json:"readTextFile"`
	WriteTextFile bool `json:"writeTextFile"`
}

// AgentCapabilities advertises what the agent supports. Captured from
// the handshake and read-only thereafter; fields beyond LoadSession are
// retained opaquely in Meta.
type AgentCapabilities struct {
	LoadSession bool            `json:"loadSession,omitempty"`
	Meta        json.RawMessage `json:"_meta,omitempty"`
}

// --- Session discovery ---

// ListSessionsRequest asks the agent for sessions scoped to a working
// directory.
type ListSessionsRequest struct {
	CWD string `json:"cwd"`
}

// ListSessionsResponse carries the known sessions, most recent first.
// An empty list is a valid, non-error outcome.
type ListSessionsResponse struct {
	Sessions []SessionDescriptor `json:"sessions"`
}

// SessionDescriptor describes one server-held session.
type SessionDescriptor struct {
	SessionID string `json:"sessionId"`
	CWD       string `json:"cwd,omitempty"`
	Title     string `json:"title,omitempty"`
}

// --- Session create / resume ---

// NewSessionRequest creates a new conversation session.
type NewSessionRequest struct {
	CWD        string            `json:"cwd"`
	McpServers []McpServerConfig `json:"mcpServers"`
}

// NewSessionResponse returns the created session identifier.
type NewSessionResponse struct {
	SessionID string `json:"sessionId"`
}

// LoadSessionRequest resumes an existing session.
type LoadSessionRequest struct {
	SessionID string `json:"sessionId"`
	CWD       string `json:"cwd"`
}

// LoadSessionResponse returns the identifier to use going forward. The
// agent may re-assign it; an empty value means the requested identifier
// stands.
type LoadSessionResponse struct {
	SessionID string `json:"sessionId,omitempty"`
}

// McpServerConfig configures an auxiliary server extension for the
// session. This integration always sends an empty list.
type McpServerConfig struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Command string   `json:"command,omitempty"`
	URL     string   `json:"url,omitempty"`
	Args    []string `json:"args,omitempty"`
}

// --- Prompt ---

// PromptRequest sends a user prompt to the agent.
type PromptRequest struct {
	SessionID string         `json:"sessionId"`
	Prompt    []ContentBlock `json:"prompt"`
}

// PromptResponse indicates the prompt turn has completed.
type PromptResponse struct {
	StopReason string `json:"stopReason"`
}

// ContentBlock is typed content in prompts and messages, discriminated
// by Type.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// NewTextContent creates a text content block.
func NewTextContent(text string) ContentBlock {
	return ContentBlock{Type: "text", Text: text}
}

// --- Set mode ---

// SetSessionModeRequest switches the session's operating mode.
type SetSessionModeRequest struct {
	SessionID string `json:"sessionId"`
	ModeID    string `json:"modeId"`
}

// --- Cancel ---

// CancelNotification asks the agent to stop the session's current turn.
// Best-effort; no response is expected or awaited.
type CancelNotification struct {
	SessionID string `json:"sessionId"`
}

// --- Session update (notification from agent) ---

// Update discriminants carried in the sessionUpdate field.
const (
	UpdateAgentMessageChunk = "agent_message_chunk"
	UpdateAgentThoughtChunk = "agent_thought_chunk"
	UpdateToolCall          = "tool_call"
	UpdateToolCallUpdate    = "tool_call_update"
	UpdatePlan              = "plan_update"
	UpdateCurrentMode       = "current_mode_update"
)

// SessionNotification is the params of a session/update notification.
// StopReason, when present, is the embedded completion signal: the turn
// is over even if the matching response never arrives.
type SessionNotification struct {
	SessionID  string        `json:"sessionId"`
	Update     SessionUpdate `json:"update"`
	StopReason string        `json:"stopReason,omitempty"`
}

// SessionUpdate is a discriminated union of turn-progress payloads. The
// Type field determines which other fields are populated; unknown
// discriminants are logged and skipped by the turn engine.
type SessionUpdate struct {
	Type string `json:"sessionUpdate"`

	// agent_message_chunk / agent_thought_chunk
	Content *ContentBlock `json:"content,omitempty"`

	// tool_call / tool_call_update
	ToolCallID string         `json:"toolCallId,omitempty"`
	ToolName   string         `json:"toolName,omitempty"`
	Status     string         `json:"status,omitempty"`
	Input      map[string]any `json:"input,omitempty"`

	// plan_update
	Plan *Plan `json:"plan,omitempty"`

	// current_mode_update
	CurrentModeID string `json:"currentModeId,omitempty"`
}

// Plan is the agent's execution plan.
type Plan struct {
	Entries []PlanEntry `json:"entries"`
}

// PlanEntry is a single step in a plan.
type PlanEntry struct {
	Title    string `json:"title"`
	Status   string `json:"status,omitempty"`
	Priority string `json:"priority,omitempty"`
}
