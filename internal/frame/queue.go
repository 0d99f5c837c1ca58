package frame

import (
	"sync"
	"time"

	"github.com/execbridge/acp-client-go/internal/wire"
)

// Queue is the inbound message queue shared between the frame reader
// (sole producer) and whichever call currently drives a correlation
// wait or a turn loop (transient consumer). Pop never blocks longer
// than the given wait; unmatched messages are pushed back onto the
// tail, preserving relative order of the traffic that stays queued.
type Queue struct {
	ch        chan *wire.Message
	done      chan struct{}
	closeOnce sync.Once
}

// NewQueue creates a queue with the given capacity.
func NewQueue(size int) *Queue {
	return &Queue{
		ch:   make(chan *wire.Message, size),
		done: make(chan struct{}),
	}
}

// Push appends a message to the tail. It blocks until there is room,
// and reports false once the queue is closed.
func (q *Queue) Push(m *wire.Message) bool {
	select {
	case <-q.done:
		return false
	default:
	}

	select {
	case q.ch <- m:
		return true
	case <-q.done:
		return false
	}
}

// Pop removes the head message, waiting at most the given duration.
// The second return value is false when no message arrived in time.
func (q *Queue) Pop(wait time.Duration) (*wire.Message, bool) {
	if wait <= 0 {
		select {
		case m := <-q.ch:
			return m, true
		default:
			return nil, false
		}
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case m := <-q.ch:
		return m, true
	case <-timer.C:
		return nil, false
	}
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close releases any blocked producers. Safe to call multiple times.
// Messages already queued remain poppable.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
	})
}
