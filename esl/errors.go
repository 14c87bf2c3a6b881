package esl

import (
	"errors"
	"io"
	"net"
	"syscall"
)

var (
	// ErrConnectionClosed is returned when the connection ends while a
	// command waits for its reply.
	ErrConnectionClosed = errors.New("esl: connection closed")
	// ErrNotConnected is returned by Send on a disconnected client.
	ErrNotConnected = errors.New("esl: not connected")
	// ErrTimeout is returned when the caller's context ends before the reply
	// arrives. The connection itself may still be healthy.
	ErrTimeout = errors.New("esl: timed out waiting for reply")
	// ErrFrameTooLarge is returned for a frame whose Content-Length exceeds
	// MaxBodySize.
	ErrFrameTooLarge = errors.New("esl: frame body too large")
)

// AuthError reports a rejected auth or userauth command.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "authentication failed: " + e.Reason
}

var connectionErrors = []error{
	ErrConnectionClosed,
	ErrNotConnected,
	io.EOF,
	io.ErrUnexpectedEOF,
	net.ErrClosed,
	syscall.ECONNREFUSED,
	syscall.ECONNRESET,
	syscall.ECONNABORTED,
	syscall.EPIPE,
	syscall.ETIMEDOUT,
}

// IsConnectionError reports whether err means the connection is gone, no
// matter which layer produced it. Reply timeouts and auth failures are not
// connection errors.
func IsConnectionError(err error) bool {
	if err == nil || errors.Is(err, ErrTimeout) {
		return false
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return false
	}
	for _, target := range connectionErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
