// Package rpc provides the request/response correlation layer on top of
// the inbound queue filled by the frame reader.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/execbridge/acp-client-go/internal/errors"
	"github.com/execbridge/acp-client-go/internal/frame"
	"github.com/execbridge/acp-client-go/internal/wire"
)

// popWait bounds each individual queue pop inside AwaitResponse so the
// overall wait stays responsive to cancellation.
const popWait = 100 * time.Millisecond

// Conn serializes outbound envelopes to the transport and correlates
// responses by identifier. Request identifiers increase monotonically
// and are never reused within a connection's lifetime.
//
// Caller contract: at most one AwaitResponse (or turn loop) may be
// outstanding at a time. The requeue-on-mismatch strategy is only
// correct for a single transient consumer; this is a design
// precondition, not enforced by a lock.
type Conn struct {
	log       *slog.Logger
	transport frame.Transport
	queue     *frame.Queue

	nextID  atomic.Int64
	writeMu sync.Mutex
}

// NewConn creates a correlation layer over the given transport and queue.
func NewConn(log *slog.Logger, transport frame.Transport, queue *frame.Queue) *Conn {
	return &Conn{
		log:       log.With("component", "rpc"),
		transport: transport,
		queue:     queue,
	}
}

// Queue exposes the inbound queue for consumers that classify traffic
// themselves, such as the turn engine.
func (c *Conn) Queue() *frame.Queue {
	return c.queue
}

// SendRequest allocates the next identifier, writes the request
// envelope, and returns the identifier immediately without waiting for
// the response.
func (c *Conn) SendRequest(method string, params any) (int64, error) {
	id := c.nextID.Add(1)

	c.log.Debug("Sending request", "id", id, "method", method)

	if err := c.write(wire.NewRequest(id, method, params)); err != nil {
		return 0, fmt.Errorf("send %s request: %w", method, err)
	}

	return id, nil
}

// SendNotification writes a fire-and-forget notification envelope.
func (c *Conn) SendNotification(method string, params any) error {
	c.log.Debug("Sending notification", "method", method)

	if err := c.write(wire.NewNotification(method, params)); err != nil {
		return fmt.Errorf("send %s notification: %w", method, err)
	}

	return nil
}

// SendErrorResponse answers a call from the agent with an error reply
// reusing its identifier.
func (c *Conn) SendErrorResponse(id int64, code int, message string) error {
	c.log.Debug("Sending error response", "id", id, "code", code)

	if err := c.write(wire.NewErrorResponse(id, code, message)); err != nil {
		return fmt.Errorf("send error response: %w", err)
	}

	return nil
}

// AwaitResponse pops the inbound queue with a shrinking remaining-time
// budget until the response matching id arrives. Unrelated messages are
// pushed back onto the tail and remain available, in their original
// relative order, for subsequent reads. Returns the result payload, a
// typed RPCError if the response carries an error object, or a wrapped
// ErrRequestTimeout when the budget is exhausted.
func (c *Conn) AwaitResponse(ctx context.Context, id int64, timeout time.Duration) (json.RawMessage, error) {
	deadline := time.Now().Add(timeout)

	for {
		if err := ctx.Err(); err != nil {
			c.log.Debug("Await cancelled", "id", id)

			return nil, err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			c.log.Warn("Request timed out", "id", id, "timeout", timeout)

			return nil, fmt.Errorf("%w after %s waiting for response %d", errors.ErrRequestTimeout, timeout, id)
		}

		msg, ok := c.queue.Pop(min(remaining, popWait))
		if !ok {
			continue
		}

		if msg.IsResponse() && *msg.ID == id {
			if msg.Error != nil {
				c.log.Warn("Request returned error", "id", id, "code", msg.Error.Code, "message", msg.Error.Message)

				return nil, &errors.RPCError{Code: msg.Error.Code, Message: msg.Error.Message}
			}

			c.log.Debug("Received response", "id", id)

			return msg.Result, nil
		}

		// Unrelated traffic goes back on the tail for whoever wants it.
		if !c.queue.Push(msg) {
			return nil, errors.ErrReaderStopped
		}
	}
}

// write marshals an envelope, appends the line terminator, and writes
// it to the transport. Writes are serialized so interleaved goroutines
// cannot tear a frame.
func (c *Conn) write(envelope any) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return c.transport.Write(append(data, '\n'))
}
