// Package execchannel implements the transport boundary by spawning the
// command that execs into the remote container and exchanging bytes
// over its stdio. The primary and error output streams are pumped into
// channels by background goroutines so every read supports a bounded
// wait without blocking the frame reader.
package execchannel

import (
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/execbridge/acp-client-go/internal/errors"
	"github.com/execbridge/acp-client-go/internal/frame"
)

const (
	// readChunkSize is the buffer size for a single pipe read.
	readChunkSize = 32 * 1024

	// maxStderrTail caps the retained error-output tail used for
	// failure reporting when the process exits abnormally.
	maxStderrTail = 64 * 1024
)

// Channel is a full-duplex byte channel into a spawned exec process.
// It implements frame.Transport.
type Channel struct {
	log   *slog.Logger
	cmd   *exec.Cmd
	stdin io.WriteCloser

	stdout chan []byte
	stderr chan []byte

	// stop unblocks the pump goroutines when the consumer goes away.
	stop   chan struct{}
	exited chan struct{}

	mu         sync.Mutex
	closing    bool
	stderrTail strings.Builder
}

// Compile-time verification that Channel implements the transport boundary.
var _ frame.Transport = (*Channel)(nil)

// Open spawns the exec command (for example "kubectl exec -i <pod> --
// agent --acp") and starts the stream pumps. The command's stdin, stdout
// and stderr become the channel's write, primary-read and error-read
// sides respectively.
func Open(log *slog.Logger, command []string) (*Channel, error) {
	if len(command) == 0 {
		return nil, &errors.ConnectError{Err: stderrors.New("empty exec command")}
	}

	c := &Channel{
		log:    log.With("component", "exec_channel"),
		stdout: make(chan []byte, 64),
		stderr: make(chan []byte, 64),
		stop:   make(chan struct{}),
		exited: make(chan struct{}),
	}

	//nolint:gosec // G204: the exec command line is caller-supplied by design.
	cmd := exec.Command(command[0], command[1:]...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &errors.ConnectError{Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &errors.ConnectError{Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &errors.ConnectError{Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	if err := cmd.Start(); err != nil {
		return nil, &errors.ConnectError{Err: fmt.Errorf("start process: %w", err)}
	}

	c.cmd = cmd
	c.stdin = stdin

	c.log.Info("Exec channel opened", "pid", cmd.Process.Pid, "command", command[0])

	var g errgroup.Group

	g.Go(func() error {
		c.pump(stdout, c.stdout, false)

		return nil
	})

	g.Go(func() error {
		c.pump(stderr, c.stderr, true)

		return nil
	})

	go func() {
		// Pipe reads must finish before Wait releases them.
		_ = g.Wait()

		err := cmd.Wait()

		close(c.exited)

		c.mu.Lock()
		closing := c.closing
		tail := c.stderrTail.String()
		c.mu.Unlock()

		if err != nil && !closing {
			exitCode := 0
			if exitErr, ok := stderrors.AsType[*exec.ExitError](err); ok {
				exitCode = exitErr.ExitCode()
			}

			procErr := &errors.ProcessError{ExitCode: exitCode, Stderr: tail, Err: err}
			c.log.Error("Exec channel process exited abnormally", "exit_code", exitCode, "error", procErr)
		} else {
			c.log.Debug("Exec channel process exited")
		}
	}()

	return c, nil
}

// pump copies one pipe into its channel until the pipe closes or the
// channel is abandoned.
func (c *Channel) pump(r io.Reader, ch chan<- []byte, isStderr bool) {
	defer close(ch)

	buf := make([]byte, readChunkSize)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])

			if isStderr {
				c.retainStderr(data)
			}

			select {
			case ch <- data:
			case <-c.stop:
				return
			}
		}

		if err != nil {
			if err != io.EOF {
				c.log.Debug("Pipe read ended", "stderr", isStderr, "error", err)
			}

			return
		}
	}
}

// retainStderr keeps a capped tail of error output for failure reporting.
func (c *Channel) retainStderr(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stderrTail.Len() < maxStderrTail {
		c.stderrTail.Write(data)
	}
}

// Write sends bytes to the process's stdin. Safe for concurrent use.
func (c *Channel) Write(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closing {
		return errors.ErrTransportClosed
	}

	if _, err := c.stdin.Write(p); err != nil {
		return fmt.Errorf("write to exec channel: %w", err)
	}

	return nil
}

// ReadStdout returns available primary-stream bytes, waiting at most
// the given duration. An empty slice with a nil error means no data
// arrived in time; ErrTransportClosed means the stream is gone.
func (c *Channel) ReadStdout(timeout time.Duration) ([]byte, error) {
	return readStream(c.stdout, timeout, errors.ErrTransportClosed)
}

// ReadStderr returns available error-stream bytes, waiting at most the
// given duration. A closed error stream yields empty reads rather than
// an error; the primary stream is authoritative for liveness.
func (c *Channel) ReadStderr(timeout time.Duration) ([]byte, error) {
	return readStream(c.stderr, timeout, nil)
}

func readStream(ch <-chan []byte, timeout time.Duration, closedErr error) ([]byte, error) {
	if timeout <= 0 {
		select {
		case data, ok := <-ch:
			if !ok {
				return nil, closedErr
			}

			return data, nil
		default:
			return nil, nil
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case data, ok := <-ch:
		if !ok {
			return nil, closedErr
		}

		return data, nil
	case <-timer.C:
		return nil, nil
	}
}

// IsOpen reports whether the process is still running. Non-blocking.
func (c *Channel) IsOpen() bool {
	c.mu.Lock()
	closing := c.closing
	c.mu.Unlock()

	if closing {
		return false
	}

	select {
	case <-c.exited:
		return false
	default:
		return true
	}
}

// Close terminates the process and releases the pumps. Safe to call
// multiple times or on an already-terminated process.
func (c *Channel) Close() error {
	c.mu.Lock()

	if c.closing {
		c.mu.Unlock()

		return nil
	}

	c.closing = true
	c.mu.Unlock()

	close(c.stop)
	_ = c.stdin.Close()

	if c.cmd.Process != nil {
		c.log.Debug("Killing exec channel process", "pid", c.cmd.Process.Pid)

		_ = c.cmd.Process.Kill()
	}

	return nil
}
