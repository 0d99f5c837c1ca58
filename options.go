package acpclient

import (
	"log/slog"
	"time"
)

const (
	// defaultKeepaliveInterval is how long the turn loop tolerates
	// silence before injecting a synthetic keepalive event.
	defaultKeepaliveInterval = 15 * time.Second

	// defaultQueueSize is the inbound message queue capacity.
	defaultQueueSize = 256

	// defaultClientName identifies this client in the handshake.
	defaultClientName = "acp-client-go"
)

// Options configures a Client. Use the functional options below rather
// than constructing this directly.
type Options struct {
	// Logger receives debug, info, warn, and error messages. Nil means
	// silent operation.
	Logger *slog.Logger

	// Command is the exec command line that bridges into the remote
	// container, e.g. {"kubectl", "exec", "-i", pod, "--", "agent"}.
	// Ignored when Transport is set.
	Command []string

	// Transport injects a custom byte channel instead of spawning Command.
	Transport Transport

	// ClientName and ClientVersion identify this client in the handshake.
	ClientName    string
	ClientVersion string

	// KeepaliveInterval is the idle threshold for synthetic keepalive
	// events during a turn. Keepalives never count against timeouts.
	KeepaliveInterval time.Duration

	// QueueSize is the inbound message queue capacity.
	QueueSize int

	// Stderr, if set, receives each line of the agent's error output.
	// The error stream is diagnostic only and never parsed as protocol.
	Stderr func(string)
}

// Option configures Options using the functional options pattern.
type Option func(*Options)

// applyOptions applies functional options over the defaults.
func applyOptions(opts []Option) *Options {
	options := &Options{
		ClientName:        defaultClientName,
		ClientVersion:     "dev",
		KeepaliveInterval: defaultKeepaliveInterval,
		QueueSize:         defaultQueueSize,
	}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithCommand sets the exec command line used to open the default
// transport into the remote container.
func WithCommand(command []string) Option {
	return func(o *Options) {
		o.Command = command
	}
}

// WithTransport injects a custom transport. When set, WithCommand is
// ignored and the client takes exclusive ownership of the transport.
func WithTransport(transport Transport) Option {
	return func(o *Options) {
		o.Transport = transport
	}
}

// WithClientInfo sets the identity sent in the handshake.
func WithClientInfo(name, version string) Option {
	return func(o *Options) {
		o.ClientName = name
		o.ClientVersion = version
	}
}

// WithKeepaliveInterval sets the idle threshold for synthetic keepalive
// events during a turn.
func WithKeepaliveInterval(interval time.Duration) Option {
	return func(o *Options) {
		o.KeepaliveInterval = interval
	}
}

// WithQueueSize sets the inbound message queue capacity.
func WithQueueSize(size int) Option {
	return func(o *Options) {
		o.QueueSize = size
	}
}

// WithStderr sets a callback receiving each line of the agent's error
// output.
func WithStderr(callback func(string)) Option {
	return func(o *Options) {
		o.Stderr = callback
	}
}
