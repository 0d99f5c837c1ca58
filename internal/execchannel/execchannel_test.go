package execchannel

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/execbridge/acp-client-go/internal/errors"
)

func nopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openChannel(t *testing.T, command ...string) *Channel {
	t.Helper()

	ch, err := Open(nopLogger(), command)
	require.NoError(t, err)

	t.Cleanup(func() { _ = ch.Close() })

	return ch
}

// readAll drains stdout until the expected number of bytes arrives or
// the deadline passes.
func readAll(t *testing.T, ch *Channel, want int) []byte {
	t.Helper()

	var out []byte

	deadline := time.Now().Add(5 * time.Second)
	for len(out) < want && time.Now().Before(deadline) {
		data, err := ch.ReadStdout(100 * time.Millisecond)
		require.NoError(t, err)

		out = append(out, data...)
	}

	return out
}

func TestOpen_EmptyCommand(t *testing.T) {
	_, err := Open(nopLogger(), nil)

	var connectErr *errors.ConnectError

	require.ErrorAs(t, err, &connectErr)
}

func TestOpen_MissingBinary(t *testing.T) {
	_, err := Open(nopLogger(), []string{"/nonexistent/agent-binary"})

	var connectErr *errors.ConnectError

	require.ErrorAs(t, err, &connectErr)
}

func TestChannel_EchoRoundTrip(t *testing.T) {
	ch := openChannel(t, "cat")

	line := []byte("{\"jsonrpc\":\"2.0\",\"id\":1,\"method\":\"initialize\"}\n")
	require.NoError(t, ch.Write(line))

	got := readAll(t, ch, len(line))
	require.Equal(t, line, got)
}

func TestChannel_StderrSeparateFromStdout(t *testing.T) {
	ch := openChannel(t, "sh", "-c", "echo out; echo err >&2; sleep 5")

	out := readAll(t, ch, len("out\n"))
	require.Equal(t, "out\n", string(out))

	var errOut []byte

	deadline := time.Now().Add(5 * time.Second)
	for len(errOut) == 0 && time.Now().Before(deadline) {
		data, err := ch.ReadStderr(100 * time.Millisecond)
		require.NoError(t, err)

		errOut = append(errOut, data...)
	}

	require.Equal(t, "err\n", string(errOut))
}

func TestChannel_ReadTimesOutEmpty(t *testing.T) {
	ch := openChannel(t, "sleep", "5")

	start := time.Now()
	data, err := ch.ReadStdout(150 * time.Millisecond)

	require.NoError(t, err)
	require.Empty(t, data)
	require.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestChannel_IsOpenTransitions(t *testing.T) {
	ch := openChannel(t, "cat")

	require.True(t, ch.IsOpen())
	require.NoError(t, ch.Close())

	require.Eventually(t, func() bool { return !ch.IsOpen() }, 5*time.Second, 50*time.Millisecond)
}

func TestChannel_StdoutClosedAfterExit(t *testing.T) {
	ch := openChannel(t, "true")

	require.Eventually(t, func() bool { return !ch.IsOpen() }, 5*time.Second, 50*time.Millisecond)

	// Drain whatever is buffered; the stream then reports closure.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		data, err := ch.ReadStdout(50 * time.Millisecond)
		if err != nil {
			require.ErrorIs(t, err, errors.ErrTransportClosed)

			return
		}

		require.Empty(t, data)
	}

	t.Fatal("stdout never reported closure")
}

func TestChannel_WriteAfterClose(t *testing.T) {
	ch := openChannel(t, "cat")

	require.NoError(t, ch.Close())
	require.ErrorIs(t, ch.Write([]byte("late\n")), errors.ErrTransportClosed)
}

func TestChannel_CloseIdempotent(t *testing.T) {
	ch := openChannel(t, "cat")

	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())
}
