package errors

import (
	"errors"
	"fmt"
)

// ClientError is the base interface for all errors produced by this module.
type ClientError interface {
	error
	IsClientError() bool
}

// Compile-time verification that all error types implement ClientError.
var (
	_ ClientError = (*ConnectError)(nil)
	_ ClientError = (*ProcessError)(nil)
	_ ClientError = (*RPCError)(nil)
	_ ClientError = (*DecodeError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrNotStarted indicates the client has not been started.
	ErrNotStarted = errors.New("client not started")

	// ErrAlreadyStarted indicates the client is already started.
	ErrAlreadyStarted = errors.New("client already started")

	// ErrNotInitialized indicates the protocol handshake has not completed.
	// Session and turn operations are invalid before initialization.
	ErrNotInitialized = errors.New("client not initialized")

	// ErrUnknownSession indicates the session identifier was never created
	// or resumed by this client.
	ErrUnknownSession = errors.New("unknown session")

	// ErrRequestTimeout indicates a request timed out waiting for its response.
	ErrRequestTimeout = errors.New("request timeout")

	// ErrTransportClosed indicates the byte channel to the remote agent is closed.
	ErrTransportClosed = errors.New("transport closed")

	// ErrReaderStopped indicates the frame reader has been stopped.
	ErrReaderStopped = errors.New("frame reader stopped")
)

// ConnectError indicates failure to open the exec channel into the container.
type ConnectError struct {
	Err error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("failed to open exec channel: %v", e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// IsClientError implements ClientError.
func (e *ConnectError) IsClientError() bool { return true }

// ProcessError indicates the exec channel process exited abnormally.
type ProcessError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("exec channel process failed (exit %d): %s", e.ExitCode, e.Stderr)
	}

	return fmt.Sprintf("exec channel process failed (exit %d): %v", e.ExitCode, e.Err)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// IsClientError implements ClientError.
func (e *ProcessError) IsClientError() bool { return true }

// RPCError carries the error object from a response envelope.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("agent error %d: %s", e.Code, e.Message)
}

// IsClientError implements ClientError.
func (e *RPCError) IsClientError() bool { return true }

// DecodeError indicates a line or payload could not be decoded.
// This error preserves the original raw data that failed to parse.
type DecodeError struct {
	RawData string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode message: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsClientError implements ClientError.
func (e *DecodeError) IsClientError() bool { return true }
