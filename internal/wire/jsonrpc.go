// Package wire defines the JSON-RPC 2.0 envelope and the agent control
// protocol types exchanged over the exec channel. One JSON object is
// written per newline-terminated UTF-8 line.
package wire

import "encoding/json"

// Version is the JSON-RPC protocol version string.
const Version = "2.0"

// Methods the client sends to the agent.
const (
	MethodInitialize     = "initialize"
	MethodSessionList    = "session/list"
	MethodSessionNew     = "session/new"
	MethodSessionLoad    = "session/load"
	MethodSessionPrompt  = "session/prompt"
	MethodSessionSetMode = "session/set_mode"

	// MethodSessionCancel is a notification; no response is awaited.
	MethodSessionCancel = "session/cancel"

	// MethodSessionUpdate is the turn-progress notification from the agent.
	MethodSessionUpdate = "session/update"
)

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Request is an outbound request envelope. The ID ties the eventual
// response back to this request.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Notification is an outbound fire-and-forget envelope.
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Response is an outbound response envelope, used only to answer calls
// the agent sends to the client.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error is the JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Message is the structurally-typed inbound envelope. It is either a
// response (ID set, no method, exactly one of Result/Error) or a
// notification or call from the agent (method set, ID present only when
// the agent expects a reply).
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// IsResponse reports whether the message answers a request this side sent.
func (m *Message) IsResponse() bool {
	return m.ID != nil && m.Method == ""
}

// IsCall reports whether the message is a request from the agent that
// expects a reply.
func (m *Message) IsCall() bool {
	return m.ID != nil && m.Method != ""
}

// IsNotification reports whether the message is a notification from the
// agent.
func (m *Message) IsNotification() bool {
	return m.ID == nil && m.Method != ""
}

// Valid reports whether the message has a recognizable shape at all.
// Messages failing this check are logged and dropped by the frame reader.
func (m *Message) Valid() bool {
	return m.ID != nil || m.Method != ""
}

// NewRequest builds an outbound request envelope.
func NewRequest(id int64, method string, params any) *Request {
	return &Request{JSONRPC: Version, ID: id, Method: method, Params: params}
}

// NewNotification builds an outbound notification envelope.
func NewNotification(method string, params any) *Notification {
	return &Notification{JSONRPC: Version, Method: method, Params: params}
}

// NewErrorResponse builds an error reply for a call from the agent.
func NewErrorResponse(id int64, code int, message string) *Response {
	return &Response{
		JSONRPC: Version,
		ID:      id,
		Error:   &Error{Code: code, Message: message},
	}
}
