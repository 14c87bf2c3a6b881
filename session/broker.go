package session

import (
	"time"
)

// CompletionTimeout bounds how long the editor waits for candidates.
const CompletionTimeout = 500 * time.Millisecond

// CompletionRequest asks the coordinator to complete Line at Pos. Reply
// takes exactly one answer; Expires is when the editor stops waiting.
type CompletionRequest struct {
	Line    string
	Pos     int
	Reply   chan<- []string
	Expires time.Time
}

// Answer deposits the result. The slot holds one value; later answers are
// discarded.
func (r CompletionRequest) Answer(candidates []string) {
	select {
	case r.Reply <- candidates:
	default:
	}
}

// Expired reports whether the editor has given up on the request.
func (r CompletionRequest) Expired(now time.Time) bool {
	return !now.Before(r.Expires)
}

// Broker carries completion requests from the editor goroutine to the
// coordinator.
type Broker struct {
	requests chan CompletionRequest
	timeout  time.Duration
}

// NewBroker returns a broker whose requests time out after timeout.
func NewBroker(timeout time.Duration) *Broker {
	if timeout <= 0 {
		timeout = CompletionTimeout
	}
	return &Broker{requests: make(chan CompletionRequest, 1), timeout: timeout}
}

// Requests is read by the coordinator.
func (b *Broker) Requests() <-chan CompletionRequest {
	return b.requests
}

// Request sends one request and waits for the answer. A timeout at either
// step yields no candidates.
func (b *Broker) Request(line string, pos int) []string {
	reply := make(chan []string, 1)
	req := CompletionRequest{
		Line:    line,
		Pos:     pos,
		Reply:   reply,
		Expires: time.Now().Add(b.timeout),
	}

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case b.requests <- req:
	case <-timer.C:
		return nil
	}
	select {
	case candidates := <-reply:
		return candidates
	case <-timer.C:
		return nil
	}
}
