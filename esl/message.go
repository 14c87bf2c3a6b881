// Package esl is a small client for the FreeSWITCH event socket: it
// authenticates, sends commands one at a time, and exposes the pushed
// events and log records as a channel.
package esl

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
)

// Content types the client dispatches on.
const (
	ContentAuthRequest      = "auth/request"
	ContentCommandReply     = "command/reply"
	ContentAPIResponse      = "api/response"
	ContentEventPlain       = "text/event-plain"
	ContentLogData          = "log/data"
	ContentDisconnectNotice = "text/disconnect-notice"
)

// Event names the client subscribes to.
const (
	EventChannelCreate = "CHANNEL_CREATE"
	EventChannelAnswer = "CHANNEL_ANSWER"
	EventChannelHangup = "CHANNEL_HANGUP"
	EventHeartbeat     = "HEARTBEAT"
)

// MaxBodySize caps the Content-Length accepted for one frame.
const MaxBodySize = 64 << 20

// Headers maps header names to values, as received.
type Headers map[string]string

// message is one frame off the wire: a header block and an optional body.
type message struct {
	headers Headers
	body    string
}

func (m *message) contentType() string {
	return m.headers["Content-Type"]
}

// readMessage reads one frame. Blank lines before the header block are
// skipped. EOF inside a frame is reported as io.ErrUnexpectedEOF.
func readMessage(r *bufio.Reader) (*message, error) {
	headers := make(Headers)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			if err == io.EOF && (len(headers) > 0 || line != "") {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if len(headers) == 0 {
				continue
			}
			break
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	m := &message{headers: headers}
	if cl := headers["Content-Length"]; cl != "" {
		n, err := strconv.Atoi(cl)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid Content-Length %q", cl)
		}
		if n > MaxBodySize {
			return nil, fmt.Errorf("%w: Content-Length %d", ErrFrameTooLarge, n)
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
		m.body = string(buf)
	}
	return m, nil
}

// Response is the reply to one command.
type Response struct {
	ContentType string
	Headers     Headers
	Body        string
}

func newResponse(m *message) *Response {
	return &Response{ContentType: m.contentType(), Headers: m.headers, Body: m.body}
}

// IsSuccess reports whether the server accepted the command. API responses
// fail when the body starts with -ERR; command replies succeed on +OK.
func (r *Response) IsSuccess() bool {
	if r.ContentType == ContentAPIResponse {
		return !strings.HasPrefix(strings.TrimSpace(r.Body), "-ERR")
	}
	return strings.HasPrefix(r.Headers["Reply-Text"], "+OK")
}

// ReplyText is the server's status line: the Reply-Text header, or the
// error line of a failed API response.
func (r *Response) ReplyText() string {
	if rt := r.Headers["Reply-Text"]; rt != "" {
		return rt
	}
	if r.ContentType == ContentAPIResponse && !r.IsSuccess() {
		return strings.TrimSpace(r.Body)
	}
	return ""
}

// Event is a pushed event or log record.
type Event struct {
	ContentType string
	Headers     Headers
	Body        string
}

// Name is the Event-Name header; empty for log records.
func (e *Event) Name() string {
	return e.Headers["Event-Name"]
}

// Get returns a header value.
func (e *Event) Get(key string) string {
	return e.Headers[key]
}

// IsLog reports whether the event is a log record.
func (e *Event) IsLog() bool {
	return strings.EqualFold(e.ContentType, ContentLogData)
}

// parseEvent turns a pushed frame into an Event. Plain events carry their
// own URL-encoded header block (and optional body) inside the frame body.
func parseEvent(m *message) (*Event, error) {
	ct := m.contentType()
	if ct != ContentEventPlain {
		return &Event{ContentType: ct, Headers: m.headers, Body: m.body}, nil
	}

	inner, err := readMessage(bufio.NewReader(strings.NewReader(m.body)))
	if err != nil {
		return nil, fmt.Errorf("parse event body: %w", err)
	}
	for k, v := range inner.headers {
		if decoded, err := url.QueryUnescape(v); err == nil {
			inner.headers[k] = decoded
		}
	}
	return &Event{ContentType: ct, Headers: inner.headers, Body: inner.body}, nil
}

// Delivery is one item of the event stream: an event, or an error met
// while receiving one. Errors do not end the stream.
type Delivery struct {
	Event *Event
	Err   error
}
