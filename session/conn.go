package session

import (
	"context"
	"sync"
	"time"

	"github.com/Paranoid-AF/fscli/esl"
)

// Conn is the peer connection a session drives. *esl.Client implements it.
type Conn interface {
	esl.Sender
	Events() <-chan esl.Delivery
	SetLivenessTimeout(d time.Duration)
	Status() esl.Status
	Disconnect(ctx context.Context) error
	Close() error
}

// Dialer opens a new, authenticated connection.
type Dialer func(ctx context.Context) (Conn, error)

// droppedCounter is implemented by connections that count overflowed events.
type droppedCounter interface {
	DroppedEvents() uint64
}

// queue is an unbounded FIFO of command lines. Push never blocks; ready is
// signalled whenever items are waiting.
type queue struct {
	mu    sync.Mutex
	items []string
	ready chan struct{}
}

func newQueue() *queue {
	return &queue{ready: make(chan struct{}, 1)}
}

func (q *queue) Push(line string) {
	q.mu.Lock()
	q.items = append(q.items, line)
	q.mu.Unlock()
	q.signal()
}

func (q *queue) Pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", false
	}
	line := q.items[0]
	q.items = q.items[1:]
	if len(q.items) > 0 {
		q.signal()
	}
	return line, true
}

func (q *queue) Ready() <-chan struct{} {
	return q.ready
}

func (q *queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
