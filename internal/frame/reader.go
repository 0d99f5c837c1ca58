package frame

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/execbridge/acp-client-go/internal/wire"
)

const (
	// pollInterval bounds every transport read so the reader can notice
	// the stop signal and transport closure promptly.
	pollInterval = 50 * time.Millisecond

	// maxLineBuffer caps the reassembly buffer for a single line.
	// A line that outgrows it is dropped rather than growing without bound.
	maxLineBuffer = 4 * 1024 * 1024 // 4MB
)

// Transport is the byte channel into the remote agent's stdio. ReadStdout
// and ReadStderr return an empty slice when no data arrives within the
// timeout; a closed channel is signalled by ErrTransportClosed or IsOpen
// turning false.
type Transport interface {
	Write(p []byte) error
	ReadStdout(timeout time.Duration) ([]byte, error)
	ReadStderr(timeout time.Duration) ([]byte, error)
	IsOpen() bool
	Close() error
}

// Reader is the single background goroutine that drains the transport,
// reassembles newline-delimited text into complete lines, and deposits
// well-formed protocol messages into the inbound queue. It performs no
// blocking protocol logic: bytes in, messages out.
type Reader struct {
	log       *slog.Logger
	transport Transport
	queue     *Queue
	onStderr  func(string)

	buf      []byte
	overflow bool

	stop     chan struct{}
	stopOnce sync.Once
	finished chan struct{}
}

// NewReader creates a reader for the given transport and queue. The
// onStderr callback, if non-nil, receives each error-channel line; the
// error channel is diagnostic only and never parsed as protocol data.
func NewReader(log *slog.Logger, transport Transport, queue *Queue, onStderr func(string)) *Reader {
	return &Reader{
		log:       log.With("component", "frame_reader"),
		transport: transport,
		queue:     queue,
		onStderr:  onStderr,
		stop:      make(chan struct{}),
		finished:  make(chan struct{}),
	}
}

// Start launches the reader goroutine. Exactly one reader must be
// active per open transport.
func (r *Reader) Start() {
	r.log.Debug("Starting frame reader")

	go r.run()
}

// Stop signals the reader to halt and joins it with a bounded wait.
// Safe to call multiple times and from a failure path.
func (r *Reader) Stop(joinTimeout time.Duration) {
	r.stopOnce.Do(func() {
		close(r.stop)
	})

	select {
	case <-r.finished:
		r.log.Debug("Frame reader joined")
	case <-time.After(joinTimeout):
		r.log.Warn("Frame reader did not stop within join timeout", "timeout", joinTimeout)
	}
}

// run is the reader loop. It exits when the stop signal is raised or
// the transport reports closed.
func (r *Reader) run() {
	defer close(r.finished)
	defer r.log.Debug("Frame reader stopped")

	for {
		select {
		case <-r.stop:
			return
		default:
		}

		if !r.transport.IsOpen() {
			r.log.Debug("Transport closed, frame reader exiting")

			return
		}

		r.drainStderr()

		chunk, err := r.transport.ReadStdout(pollInterval)
		if err != nil {
			r.log.Debug("Stdout read ended", "error", err)

			return
		}

		if len(chunk) == 0 {
			continue
		}

		r.consume(chunk)
	}
}

// drainStderr drains available error-channel output and logs it.
func (r *Reader) drainStderr() {
	for {
		chunk, err := r.transport.ReadStderr(0)
		if err != nil || len(chunk) == 0 {
			return
		}

		for line := range strings.SplitSeq(strings.TrimRight(string(chunk), "\n"), "\n") {
			if line == "" {
				continue
			}

			r.log.Debug("Agent stderr", "line", line)

			if r.onStderr != nil {
				r.onStderr(line)
			}
		}
	}
}

// consume appends a chunk to the line buffer and dispatches every
// complete newline-terminated line.
func (r *Reader) consume(chunk []byte) {
	r.buf = append(r.buf, chunk...)

	for {
		idx := bytes.IndexByte(r.buf, '\n')
		if idx < 0 {
			break
		}

		line := r.buf[:idx]
		r.buf = r.buf[idx+1:]

		if r.overflow {
			// Tail of a line that already blew the buffer cap.
			r.overflow = false

			continue
		}

		r.dispatch(line)
	}

	if len(r.buf) > maxLineBuffer {
		r.log.Warn("Dropping oversized partial line", "size", len(r.buf))
		r.buf = r.buf[:0]
		r.overflow = true
	}
}

// dispatch parses one line and pushes well-formed messages to the queue.
// Malformed lines are logged and dropped, never fatal.
func (r *Reader) dispatch(line []byte) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}

	var msg wire.Message

	if err := json.Unmarshal(line, &msg); err != nil {
		r.log.Debug("Dropping undecodable line", "error", err, "line", string(line))

		return
	}

	if !msg.Valid() {
		r.log.Debug("Dropping message with unrecognizable shape", "line", string(line))

		return
	}

	if !r.queue.Push(&msg) {
		r.log.Debug("Queue closed, dropping message")
	}
}
