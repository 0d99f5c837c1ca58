package frame

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/execbridge/acp-client-go/internal/wire"
)

// stubTransport feeds scripted stdout and stderr chunks to the reader.
type stubTransport struct {
	mu     sync.Mutex
	stdout chan []byte
	stderr chan []byte
	open   bool
}

func newStubTransport() *stubTransport {
	return &stubTransport{
		stdout: make(chan []byte, 32),
		stderr: make(chan []byte, 32),
		open:   true,
	}
}

func (t *stubTransport) Write([]byte) error { return nil }

func (t *stubTransport) ReadStdout(timeout time.Duration) ([]byte, error) {
	return t.read(t.stdout, timeout)
}

func (t *stubTransport) ReadStderr(timeout time.Duration) ([]byte, error) {
	return t.read(t.stderr, timeout)
}

func (t *stubTransport) read(ch chan []byte, timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		select {
		case data := <-ch:
			return data, nil
		default:
			return nil, nil
		}
	}

	select {
	case data := <-ch:
		return data, nil
	case <-time.After(timeout):
		return nil, nil
	}
}

func (t *stubTransport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.open
}

func (t *stubTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.open = false

	return nil
}

func startReader(t *testing.T, transport Transport, onStderr func(string)) (*Reader, *Queue) {
	t.Helper()

	queue := NewQueue(32)
	reader := NewReader(slog.Default(), transport, queue, onStderr)
	reader.Start()
	t.Cleanup(func() { reader.Stop(time.Second) })

	return reader, queue
}

func popWithin(t *testing.T, q *Queue, timeout time.Duration) *wire.Message {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if m, ok := q.Pop(50 * time.Millisecond); ok {
			return m
		}
	}

	t.Fatal("no message arrived in time")

	return nil
}

func requireEmpty(t *testing.T, q *Queue) {
	t.Helper()

	m, ok := q.Pop(100 * time.Millisecond)
	require.False(t, ok, "unexpected message: %+v", m)
}

func TestReader_DeliversMessages(t *testing.T) {
	transport := newStubTransport()
	_, queue := startReader(t, transport, nil)

	transport.stdout <- []byte(`{"jsonrpc":"2.0","id":1,"result":{}}` + "\n" + `{"jsonrpc":"2.0","method":"session/update","params":{}}` + "\n")

	first := popWithin(t, queue, time.Second)
	require.True(t, first.IsResponse())
	require.Equal(t, int64(1), *first.ID)

	second := popWithin(t, queue, time.Second)
	require.True(t, second.IsNotification())
	require.Equal(t, "session/update", second.Method)
}

func TestReader_ReassemblesPartialLines(t *testing.T) {
	transport := newStubTransport()
	_, queue := startReader(t, transport, nil)

	transport.stdout <- []byte(`{"jsonrpc":"2.0","id`)
	transport.stdout <- []byte(`":7,"result":{"ok":true}}` + "\n")

	m := popWithin(t, queue, time.Second)
	require.True(t, m.IsResponse())
	require.Equal(t, int64(7), *m.ID)
}

func TestReader_MalformedLineDoesNotBreakStream(t *testing.T) {
	transport := newStubTransport()
	_, queue := startReader(t, transport, nil)

	transport.stdout <- []byte(`{"jsonrpc":"2.0","id":1,"result":{}}` + "\n" + `this is not json` + "\n" + `{"jsonrpc":"2.0","id":2,"result":{}}` + "\n")

	first := popWithin(t, queue, time.Second)
	require.Equal(t, int64(1), *first.ID)

	second := popWithin(t, queue, time.Second)
	require.Equal(t, int64(2), *second.ID)

	requireEmpty(t, queue)
}

func TestReader_UnrecognizableShapeDropped(t *testing.T) {
	transport := newStubTransport()
	_, queue := startReader(t, transport, nil)

	// Valid JSON, but neither a response nor a method-bearing message.
	transport.stdout <- []byte(`{"jsonrpc":"2.0"}` + "\n" + `{"jsonrpc":"2.0","id":3,"result":{}}` + "\n")

	m := popWithin(t, queue, time.Second)
	require.Equal(t, int64(3), *m.ID)

	requireEmpty(t, queue)
}

func TestReader_StderrIsLoggedNotParsed(t *testing.T) {
	transport := newStubTransport()

	var mu sync.Mutex

	var lines []string

	_, queue := startReader(t, transport, func(line string) {
		mu.Lock()
		defer mu.Unlock()

		lines = append(lines, line)
	})

	// Even protocol-shaped stderr output must never reach the queue.
	transport.stderr <- []byte(`{"jsonrpc":"2.0","id":9,"result":{}}` + "\n" + "panic: boom\n")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(lines) == 2
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	require.Equal(t, `{"jsonrpc":"2.0","id":9,"result":{}}`, lines[0])
	require.Equal(t, "panic: boom", lines[1])
	mu.Unlock()

	requireEmpty(t, queue)
}

func TestReader_StopJoins(t *testing.T) {
	transport := newStubTransport()
	reader, _ := startReader(t, transport, nil)

	start := time.Now()
	reader.Stop(time.Second)

	require.Less(t, time.Since(start), time.Second)

	// Stop is idempotent.
	reader.Stop(time.Second)
}

func TestReader_ExitsWhenTransportCloses(t *testing.T) {
	transport := newStubTransport()
	reader, _ := startReader(t, transport, nil)

	require.NoError(t, transport.Close())

	// The reader notices closure on its next poll and exits on its own;
	// the subsequent Stop join must not hit its timeout.
	time.Sleep(150 * time.Millisecond)

	start := time.Now()
	reader.Stop(time.Second)
	require.Less(t, time.Since(start), 500*time.Millisecond)
}
