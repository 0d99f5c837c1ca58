package acpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/execbridge/acp-client-go/internal/rpc"
	"github.com/execbridge/acp-client-go/internal/wire"
)

// turnPopWait bounds each queue pop inside the turn loop so idle checks
// and cancellation stay responsive.
const turnPopWait = 250 * time.Millisecond

// SendMessage sends a prompt on the session and returns the turn's
// event sequence. The prompt request is written before this method
// returns; the sequence is lazy, single-pass, non-restartable and
// cancellation-aware, ending with exactly one terminal event
// (TurnCompleteEvent or ProtocolErrorEvent).
//
// The overall timeout covers the whole turn. When it expires, a
// best-effort cancel notification is sent for the session, one
// terminal ProtocolErrorEvent is yielded, and the turn is locally
// abandoned; the remote agent is not forcibly interrupted. Synthetic
// KeepaliveEvent markers are injected while the agent is idle and never
// count against the timeout.
//
// An unknown session or uninitialized client fails fast with an error;
// everything after the request is written is folded into the event
// stream instead of raised.
func (c *Client) SendMessage(ctx context.Context, sessionID, text string, timeout time.Duration) (iter.Seq[Event], error) {
	conn, err := c.requireInitialized()
	if err != nil {
		return nil, err
	}

	if _, err := c.lookupSession(sessionID); err != nil {
		return nil, err
	}

	// A turn has no identity beyond its request identifier; the ULID is
	// purely a log correlation handle.
	log := c.log.With("turn", ulid.Make().String(), "session_id", sessionID)

	requestID, err := conn.SendRequest(wire.MethodSessionPrompt, wire.PromptRequest{
		SessionID: sessionID,
		Prompt:    []wire.ContentBlock{wire.NewTextContent(text)},
	})
	if err != nil {
		return nil, fmt.Errorf("send prompt: %w", err)
	}

	turn := &turn{
		log:       log,
		conn:      conn,
		sessionID: sessionID,
		requestID: requestID,
		started:   time.Now(),
		deadline:  time.Now().Add(timeout),
		timeout:   timeout,
		keepalive: c.opts.KeepaliveInterval,
	}

	return turn.events(ctx), nil
}

// turn drives one prompt-and-response exchange. It exists only for the
// duration of one SendMessage call.
type turn struct {
	log       *slog.Logger
	conn      *rpc.Conn
	sessionID string
	requestID int64
	started   time.Time
	deadline  time.Time
	timeout   time.Duration
	keepalive time.Duration

	lastActivity time.Time
	eventCount   int
}

// events is the turn event loop.
func (t *turn) events(ctx context.Context) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		t.lastActivity = time.Now()

		t.log.Debug("Turn started", "request_id", t.requestID, "timeout", t.timeout)

		for {
			if err := ctx.Err(); err != nil {
				t.abandon(yield, ErrCodeTurnCancelled, fmt.Sprintf("turn cancelled: %v", err))

				return
			}

			remaining := time.Until(t.deadline)
			if remaining <= 0 {
				t.abandon(yield, ErrCodeTurnTimeout, fmt.Sprintf("turn timed out after %s", t.timeout))

				return
			}

			msg, ok := t.conn.Queue().Pop(min(remaining, turnPopWait))
			if !ok {
				if time.Since(t.lastActivity) >= t.keepalive {
					t.log.Debug("Injecting keepalive", "idle", time.Since(t.lastActivity))

					t.lastActivity = time.Now()

					if !yield(KeepaliveEvent{}) {
						return
					}
				}

				continue
			}

			t.lastActivity = time.Now()

			done := t.handle(msg, yield)
			if done {
				t.log.Debug("Turn finished", "events", t.eventCount, "elapsed", time.Since(t.started))

				return
			}
		}
	}
}

// handle classifies one inbound message. It reports true when the turn
// is over (terminal event yielded or consumer stopped).
func (t *turn) handle(msg *wire.Message, yield func(Event) bool) bool {
	switch {
	case msg.IsResponse() && *msg.ID == t.requestID:
		return t.handleResponse(msg, yield)

	case msg.IsNotification() && msg.Method == wire.MethodSessionUpdate:
		return t.handleUpdate(msg, yield)

	case msg.IsCall():
		// This client offers no command surface for the agent to invoke.
		t.log.Debug("Rejecting inbound call", "method", msg.Method, "id", *msg.ID)

		if err := t.conn.SendErrorResponse(*msg.ID, wire.CodeMethodNotFound, "method not supported: "+msg.Method); err != nil {
			t.log.Warn("Failed to reject inbound call", "error", err)
		}

		return false

	default:
		// Unmatched responses from abandoned turns and anything else
		// unrecognized are drained here.
		t.log.Debug("Dropping unrelated message", "method", msg.Method)

		return false
	}
}

// handleResponse terminates the turn with the matching response.
func (t *turn) handleResponse(msg *wire.Message, yield func(Event) bool) bool {
	if msg.Error != nil {
		t.log.Warn("Turn failed", "code", msg.Error.Code, "message", msg.Error.Message)

		t.yieldEvent(yield, ProtocolErrorEvent{
			SessionID: t.sessionID,
			Code:      msg.Error.Code,
			Message:   msg.Error.Message,
		})

		return true
	}

	var promptResp wire.PromptResponse

	if err := json.Unmarshal(msg.Result, &promptResp); err != nil {
		t.log.Warn("Turn response undecodable", "error", err)

		t.yieldEvent(yield, ProtocolErrorEvent{
			SessionID: t.sessionID,
			Code:      wire.CodeParseError,
			Message:   fmt.Sprintf("undecodable turn result: %v", err),
		})

		return true
	}

	t.log.Debug("Turn complete", "stop_reason", promptResp.StopReason)

	t.yieldEvent(yield, TurnCompleteEvent{SessionID: t.sessionID, StopReason: promptResp.StopReason})

	return true
}

// handleUpdate decodes a progress notification into a typed event. A
// notification carrying the embedded completion signal terminates the
// turn even though the matching response may never arrive; both signals
// are authoritative.
func (t *turn) handleUpdate(msg *wire.Message, yield func(Event) bool) bool {
	var notif wire.SessionNotification

	if err := json.Unmarshal(msg.Params, &notif); err != nil {
		t.log.Debug("Skipping undecodable session update", "error", err)

		return false
	}

	if notif.SessionID != t.sessionID {
		t.log.Debug("Dropping update for other session", "other_session_id", notif.SessionID)

		return false
	}

	if ev, ok := t.decodeUpdate(&notif.Update); ok {
		if !t.yieldEvent(yield, ev) {
			return true
		}
	}

	if notif.StopReason != "" {
		t.log.Debug("Turn complete via notification", "stop_reason", notif.StopReason)

		t.yieldEvent(yield, TurnCompleteEvent{SessionID: t.sessionID, StopReason: notif.StopReason})

		return true
	}

	return false
}

// decodeUpdate maps an update discriminant to its event variant.
// Unknown discriminants and validation failures are non-fatal: log,
// skip, continue the stream.
func (t *turn) decodeUpdate(update *wire.SessionUpdate) (Event, bool) {
	switch update.Type {
	case wire.UpdateAgentMessageChunk:
		if update.Content == nil {
			t.log.Debug("Skipping message chunk without content")

			return nil, false
		}

		return TextChunkEvent{SessionID: t.sessionID, Text: update.Content.Text}, true

	case wire.UpdateAgentThoughtChunk:
		if update.Content == nil {
			t.log.Debug("Skipping thought chunk without content")

			return nil, false
		}

		return ReasoningChunkEvent{SessionID: t.sessionID, Text: update.Content.Text}, true

	case wire.UpdateToolCall:
		return ToolCallStartedEvent{
			SessionID:  t.sessionID,
			ToolCallID: update.ToolCallID,
			ToolName:   update.ToolName,
			Input:      update.Input,
		}, true

	case wire.UpdateToolCallUpdate:
		return ToolCallProgressEvent{
			SessionID:  t.sessionID,
			ToolCallID: update.ToolCallID,
			ToolName:   update.ToolName,
			Status:     update.Status,
		}, true

	case wire.UpdatePlan:
		var entries []PlanEntry
		if update.Plan != nil {
			entries = update.Plan.Entries
		}

		return PlanUpdateEvent{SessionID: t.sessionID, Entries: entries}, true

	case wire.UpdateCurrentMode:
		return ModeUpdateEvent{SessionID: t.sessionID, ModeID: update.CurrentModeID}, true

	default:
		t.log.Debug("Skipping unknown update discriminant", "discriminant", update.Type)

		return nil, false
	}
}

// abandon ends a timed-out or cancelled turn: best-effort cancel
// notification, then exactly one terminal error event. Messages still
// arriving for the abandoned request identifier become ordinary
// unmatched traffic for subsequent operations.
func (t *turn) abandon(yield func(Event) bool, code int, message string) {
	t.log.Warn("Abandoning turn", "code", code, "message", message)

	if err := t.conn.SendNotification(wire.MethodSessionCancel, wire.CancelNotification{SessionID: t.sessionID}); err != nil {
		t.log.Debug("Best-effort cancel failed", "error", err)
	}

	t.yieldEvent(yield, ProtocolErrorEvent{SessionID: t.sessionID, Code: code, Message: message})
}

// yieldEvent forwards an event to the consumer and counts it for
// diagnostics.
func (t *turn) yieldEvent(yield func(Event) bool, ev Event) bool {
	t.eventCount++

	return yield(ev)
}
