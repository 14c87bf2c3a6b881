package esl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// EventBuffer is the capacity of the event channel. Events that arrive
// while it is full are dropped and counted.
const EventBuffer = 1024

// Sender sends one command and waits for its reply.
type Sender interface {
	Send(ctx context.Context, command string) (*Response, error)
}

// API runs "api <command>".
func API(ctx context.Context, s Sender, command string) (*Response, error) {
	return s.Send(ctx, "api "+command)
}

// Log asks the server to forward log records at level and above.
func Log(ctx context.Context, s Sender, level string) (*Response, error) {
	return s.Send(ctx, "log "+level)
}

// NoLog stops log forwarding.
func NoLog(ctx context.Context, s Sender) (*Response, error) {
	return s.Send(ctx, "nolog")
}

// Subscribe subscribes to the named events in plain format.
func Subscribe(ctx context.Context, s Sender, names ...string) (*Response, error) {
	return s.Send(ctx, "event plain "+strings.Join(names, " "))
}

// Reason says why a client is no longer connected.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonClientRequested
	ReasonServerNotice
	ReasonHeartbeatExpired
	ReasonIOError
)

// Status is the client's connection state.
type Status struct {
	Connected bool
	Reason    Reason
	Err       error
}

func (s Status) String() string {
	if s.Connected {
		return "connected"
	}
	switch s.Reason {
	case ReasonClientRequested:
		return "disconnected by client"
	case ReasonServerNotice:
		return "server sent disconnect notice"
	case ReasonHeartbeatExpired:
		return "heartbeat expired"
	case ReasonIOError:
		if s.Err != nil {
			return "connection error: " + s.Err.Error()
		}
		return "connection error"
	}
	return "disconnected"
}

// DialConfig holds the connection parameters.
type DialConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	// Timeout bounds the TCP connect and the auth handshake.
	Timeout time.Duration
	// TraceFrames logs every frame at debug level.
	TraceFrames bool
}

// Client is an authenticated event socket connection. Send may be called
// from any goroutine; commands are serialized.
type Client struct {
	conn  net.Conn
	r     *bufio.Reader
	trace bool

	sendMu  sync.Mutex
	replies chan *message
	events  chan Delivery
	done    chan struct{}
	dropped atomic.Uint64

	mu         sync.Mutex
	status     Status
	userClosed bool
	abandoned  int
	liveness   time.Duration
	timer      *time.Timer
}

// Dial connects and authenticates.
func Dial(ctx context.Context, cfg DialConfig) (*Client, error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	r := bufio.NewReader(conn)
	if err := authenticate(conn, r, cfg); err != nil {
		conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})

	c := &Client{
		conn:    conn,
		r:       r,
		trace:   cfg.TraceFrames,
		replies: make(chan *message, 1),
		events:  make(chan Delivery, EventBuffer),
		done:    make(chan struct{}),
		status:  Status{Connected: true},
	}
	go c.readLoop()
	slog.Debug("esl connected", "addr", addr, "user", cfg.User)
	return c, nil
}

func authenticate(conn net.Conn, r *bufio.Reader, cfg DialConfig) error {
	m, err := readMessage(r)
	if err != nil {
		return fmt.Errorf("read auth request: %w", err)
	}
	if ct := m.contentType(); ct != ContentAuthRequest {
		return fmt.Errorf("unexpected greeting %q", ct)
	}

	cmd := "auth " + cfg.Password
	if cfg.User != "" {
		cmd = "userauth " + cfg.User + ":" + cfg.Password
	}
	if _, err := io.WriteString(conn, cmd+"\n\n"); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}

	for {
		reply, err := readMessage(r)
		if err != nil {
			return fmt.Errorf("read auth reply: %w", err)
		}
		if reply.contentType() != ContentCommandReply {
			continue
		}
		if text := reply.headers["Reply-Text"]; !strings.HasPrefix(text, "+OK") {
			return &AuthError{Reason: strings.TrimSpace(strings.TrimPrefix(text, "-ERR"))}
		}
		return nil
	}
}

// Send writes command and waits for its reply. A context that ends first
// yields ErrTimeout; the late reply is discarded when it arrives.
func (c *Client) Send(ctx context.Context, command string) (*Response, error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if !c.Status().Connected {
		return nil, ErrNotConnected
	}
	if c.trace {
		slog.Debug("esl send", "command", redact(command))
	}
	if _, err := io.WriteString(c.conn, command+"\n\n"); err != nil {
		return nil, fmt.Errorf("send %q: %w", verb(command), err)
	}

	select {
	case m := <-c.replies:
		return newResponse(m), nil
	case <-c.done:
		select {
		case m := <-c.replies:
			return newResponse(m), nil
		default:
			return nil, ErrConnectionClosed
		}
	case <-ctx.Done():
		c.abandon()
		return nil, fmt.Errorf("%w: %q: %v", ErrTimeout, verb(command), ctx.Err())
	}
}

// abandon marks the outstanding reply as unwanted so the reader drops it.
func (c *Client) abandon() {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.replies:
	default:
		c.abandoned++
	}
}

// Events is the stream of pushed events and log records. It is closed when
// the connection ends.
func (c *Client) Events() <-chan Delivery {
	return c.events
}

// DroppedEvents counts events discarded because the stream was full.
func (c *Client) DroppedEvents() uint64 {
	return c.dropped.Load()
}

// Status returns the current connection state.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// SetLivenessTimeout arms a watchdog that declares the connection dead when
// no frame arrives within d. Every frame re-arms it. Zero disables it.
func (c *Client) SetLivenessTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.liveness = d
	if d > 0 && c.status.Connected {
		c.timer = time.AfterFunc(d, c.expire)
	}
}

func (c *Client) touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Reset(c.liveness)
	}
}

func (c *Client) expire() {
	slog.Debug("esl liveness timeout expired")
	c.markDisconnected(ReasonHeartbeatExpired, nil)
	c.conn.Close()
}

// markDisconnected records why the connection ended. The first reason wins.
func (c *Client) markDisconnected(reason Reason, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.status.Connected {
		return
	}
	if c.userClosed {
		reason, err = ReasonClientRequested, nil
	}
	c.status = Status{Reason: reason, Err: err}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// Disconnect sends "exit" and closes the connection.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	c.userClosed = true
	c.mu.Unlock()

	_, err := c.Send(ctx, "exit")
	c.Close()
	if err != nil && !IsConnectionError(err) {
		return err
	}
	return nil
}

// Close closes the connection without the exit handshake.
func (c *Client) Close() error {
	c.mu.Lock()
	c.userClosed = true
	c.mu.Unlock()
	c.markDisconnected(ReasonClientRequested, nil)
	err := c.conn.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (c *Client) readLoop() {
	defer close(c.events)
	defer close(c.done)

	for {
		m, err := readMessage(c.r)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				slog.Debug("esl connection closed", "error", err)
			} else {
				slog.Warn("esl read failed", "error", err)
			}
			c.markDisconnected(ReasonIOError, err)
			return
		}
		c.touch()
		if c.trace {
			slog.Debug("esl frame", "content_type", m.contentType(), "headers", len(m.headers), "body", len(m.body))
		}

		switch ct := m.contentType(); ct {
		case ContentCommandReply, ContentAPIResponse:
			c.deliverReply(m)
		case ContentDisconnectNotice:
			slog.Debug("esl disconnect notice received")
			c.markDisconnected(ReasonServerNotice, nil)
		case ContentEventPlain, ContentLogData:
			ev, err := parseEvent(m)
			c.deliverEvent(Delivery{Event: ev, Err: err})
		default:
			slog.Debug("esl frame ignored", "content_type", ct)
		}
	}
}

func (c *Client) deliverReply(m *message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.abandoned > 0 {
		c.abandoned--
		return
	}
	select {
	case c.replies <- m:
	default:
		slog.Warn("esl unsolicited reply dropped", "reply", m.headers["Reply-Text"])
	}
}

func (c *Client) deliverEvent(d Delivery) {
	select {
	case c.events <- d:
	default:
		if n := c.dropped.Add(1); n == 1 || n%100 == 0 {
			slog.Warn("esl event buffer full, dropping events", "dropped", n)
		}
	}
}

func verb(command string) string {
	v, _, _ := strings.Cut(command, " ")
	return v
}

// redact hides credentials in traced commands.
func redact(command string) string {
	switch verb(command) {
	case "auth", "userauth":
		return verb(command) + " ********"
	}
	return command
}
