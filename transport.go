package acpclient

import "github.com/execbridge/acp-client-go/internal/frame"

// Transport is the full-duplex byte channel into the remote agent's
// stdio: a write side, bounded-wait reads of the primary and error
// output streams, a non-blocking liveness check, and explicit close.
//
// The default implementation spawns the exec command configured with
// WithCommand. Inject a custom transport with WithTransport for testing
// or alternative channel mechanisms.
type Transport = frame.Transport
