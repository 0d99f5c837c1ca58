package acpclient

import "github.com/execbridge/acp-client-go/internal/errors"

// Re-export error types from internal package

// ConnectError indicates failure to open the exec channel into the container.
type ConnectError = errors.ConnectError

// ProcessError indicates the exec channel process exited abnormally.
type ProcessError = errors.ProcessError

// RPCError carries the error object from a response envelope.
type RPCError = errors.RPCError

// DecodeError indicates a line or payload could not be decoded.
type DecodeError = errors.DecodeError

// ClientError is the base interface for all errors produced by this module.
type ClientError = errors.ClientError

// Re-export sentinel errors from internal package.
var (
	// ErrNotStarted indicates the client has not been started.
	ErrNotStarted = errors.ErrNotStarted

	// ErrAlreadyStarted indicates the client is already started.
	ErrAlreadyStarted = errors.ErrAlreadyStarted

	// ErrNotInitialized indicates the protocol handshake has not completed.
	ErrNotInitialized = errors.ErrNotInitialized

	// ErrUnknownSession indicates the session was never created or
	// resumed by this client.
	ErrUnknownSession = errors.ErrUnknownSession

	// ErrRequestTimeout indicates a request timed out waiting for its response.
	ErrRequestTimeout = errors.ErrRequestTimeout

	// ErrTransportClosed indicates the byte channel to the remote agent is closed.
	ErrTransportClosed = errors.ErrTransportClosed
)
