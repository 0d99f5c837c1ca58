package rpc

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/execbridge/acp-client-go/internal/errors"
	"github.com/execbridge/acp-client-go/internal/frame"
	"github.com/execbridge/acp-client-go/internal/wire"
)

// writeRecorder is a transport that records written frames and never
// produces inbound data on its own.
type writeRecorder struct {
	mu     sync.Mutex
	frames []map[string]any
}

func (w *writeRecorder) Write(p []byte) error {
	var frame map[string]any
	if err := json.Unmarshal(p, &frame); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.frames = append(w.frames, frame)

	return nil
}

func (w *writeRecorder) ReadStdout(time.Duration) ([]byte, error) { return nil, nil }
func (w *writeRecorder) ReadStderr(time.Duration) ([]byte, error) { return nil, nil }
func (w *writeRecorder) IsOpen() bool                             { return true }
func (w *writeRecorder) Close() error                             { return nil }

func (w *writeRecorder) frame(i int) map[string]any {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.frames[i]
}

func newTestConn() (*Conn, *writeRecorder, *frame.Queue) {
	transport := &writeRecorder{}
	queue := frame.NewQueue(32)
	conn := NewConn(slog.Default(), transport, queue)

	return conn, transport, queue
}

func response(id int64, result string) *wire.Message {
	return &wire.Message{JSONRPC: wire.Version, ID: &id, Result: json.RawMessage(result)}
}

func errorResponse(id int64, code int, message string) *wire.Message {
	return &wire.Message{JSONRPC: wire.Version, ID: &id, Error: &wire.Error{Code: code, Message: message}}
}

func notification(method string) *wire.Message {
	return &wire.Message{JSONRPC: wire.Version, Method: method, Params: json.RawMessage(`{}`)}
}

func TestConn_SendRequest_MonotonicIDs(t *testing.T) {
	conn, transport, _ := newTestConn()

	for want := int64(1); want <= 3; want++ {
		id, err := conn.SendRequest("initialize", map[string]int{"protocolVersion": 1})
		require.NoError(t, err)
		require.Equal(t, want, id)
	}

	first := transport.frame(0)
	require.Equal(t, "2.0", first["jsonrpc"])
	require.Equal(t, "initialize", first["method"])
	require.Equal(t, float64(1), first["id"])
}

func TestConn_SendNotification_HasNoID(t *testing.T) {
	conn, transport, _ := newTestConn()

	require.NoError(t, conn.SendNotification("session/cancel", map[string]string{"sessionId": "s1"}))

	frame := transport.frame(0)
	require.Equal(t, "session/cancel", frame["method"])
	require.NotContains(t, frame, "id")
}

func TestConn_SendErrorResponse_Shape(t *testing.T) {
	conn, transport, _ := newTestConn()

	require.NoError(t, conn.SendErrorResponse(42, wire.CodeMethodNotFound, "method not supported: fs/read_text_file"))

	frame := transport.frame(0)
	require.Equal(t, float64(42), frame["id"])

	errObj, ok := frame["error"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, float64(wire.CodeMethodNotFound), errObj["code"])
}

func TestConn_AwaitResponse_RequeuesUnrelatedInOrder(t *testing.T) {
	conn, _, queue := newTestConn()

	// Interleaved unrelated traffic ahead of the matching response.
	queue.Push(notification("session/update"))
	queue.Push(response(99, `{"other":true}`))
	queue.Push(response(1, `{"ok":true}`))

	result, err := conn.AwaitResponse(context.Background(), 1, time.Second)
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":true}`, string(result))

	// The unrelated messages remain available in their original
	// relative order.
	m, ok := queue.Pop(time.Second)
	require.True(t, ok)
	require.Equal(t, "session/update", m.Method)

	m, ok = queue.Pop(time.Second)
	require.True(t, ok)
	require.True(t, m.IsResponse())
	require.Equal(t, int64(99), *m.ID)
}

func TestConn_AwaitResponse_ErrorPayload(t *testing.T) {
	conn, _, queue := newTestConn()

	queue.Push(errorResponse(1, -32603, "boom"))

	_, err := conn.AwaitResponse(context.Background(), 1, time.Second)

	var rpcErr *errors.RPCError

	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, -32603, rpcErr.Code)
	require.Equal(t, "boom", rpcErr.Message)
}

func TestConn_AwaitResponse_Timeout(t *testing.T) {
	conn, _, _ := newTestConn()

	start := time.Now()
	_, err := conn.AwaitResponse(context.Background(), 1, 200*time.Millisecond)

	require.ErrorIs(t, err, errors.ErrRequestTimeout)
	require.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestConn_AwaitResponse_ContextCancelled(t *testing.T) {
	conn, _, _ := newTestConn()

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := conn.AwaitResponse(ctx, 1, 5*time.Second)
	require.ErrorIs(t, err, context.Canceled)
}

func TestConn_AwaitResponse_LateMatchAfterChurn(t *testing.T) {
	conn, _, queue := newTestConn()

	// The response arrives only after several empty polls.
	go func() {
		time.Sleep(150 * time.Millisecond)
		queue.Push(notification("session/update"))
		queue.Push(response(1, `{}`))
	}()

	result, err := conn.AwaitResponse(context.Background(), 1, 2*time.Second)
	require.NoError(t, err)
	require.JSONEq(t, `{}`, string(result))

	m, ok := queue.Pop(time.Second)
	require.True(t, ok)
	require.Equal(t, "session/update", m.Method)
}
