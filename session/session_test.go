package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fscli "github.com/Paranoid-AF/fscli"
	"github.com/Paranoid-AF/fscli/complete"
	"github.com/Paranoid-AF/fscli/console"
	"github.com/Paranoid-AF/fscli/editor"
	"github.com/Paranoid-AF/fscli/esl"
)

func apiReply(body string) *esl.Response {
	return &esl.Response{ContentType: esl.ContentAPIResponse, Headers: esl.Headers{}, Body: body}
}

func cmdReply(text string) *esl.Response {
	return &esl.Response{ContentType: esl.ContentCommandReply, Headers: esl.Headers{"Reply-Text": text}}
}

// fakeConn records every command and answers from reply. Without reply, API
// commands get an empty body and everything else "+OK".
type fakeConn struct {
	reply func(cmd string) (*esl.Response, error)

	mu           sync.Mutex
	sent         []string
	status       esl.Status
	liveness     []time.Duration
	disconnected bool
	dropped      uint64

	events    chan esl.Delivery
	closeOnce sync.Once
}

func newFakeConn(reply func(cmd string) (*esl.Response, error)) *fakeConn {
	return &fakeConn{
		reply:  reply,
		status: esl.Status{Connected: true},
		events: make(chan esl.Delivery, 16),
	}
}

func (c *fakeConn) Send(_ context.Context, cmd string) (*esl.Response, error) {
	c.mu.Lock()
	c.sent = append(c.sent, cmd)
	connected := c.status.Connected
	c.mu.Unlock()

	if !connected {
		return nil, esl.ErrNotConnected
	}
	if c.reply != nil {
		return c.reply(cmd)
	}
	if strings.HasPrefix(cmd, "api ") {
		return apiReply(""), nil
	}
	return cmdReply("+OK"), nil
}

func (c *fakeConn) Events() <-chan esl.Delivery { return c.events }

func (c *fakeConn) SetLivenessTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.liveness = append(c.liveness, d)
}

func (c *fakeConn) Status() esl.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *fakeConn) DroppedEvents() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

func (c *fakeConn) Disconnect(context.Context) error {
	c.mu.Lock()
	c.disconnected = true
	c.mu.Unlock()
	c.drop(esl.ReasonClientRequested)
	return nil
}

func (c *fakeConn) Close() error {
	c.drop(esl.ReasonClientRequested)
	return nil
}

// drop ends the connection the way the reader would: status first, then the
// event stream closes.
func (c *fakeConn) drop(reason esl.Reason) {
	c.mu.Lock()
	if c.status.Connected {
		c.status = esl.Status{Reason: reason}
	}
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.events) })
}

func (c *fakeConn) commands() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

func (c *fakeConn) saw(cmd string) bool {
	for _, s := range c.commands() {
		if s == cmd {
			return true
		}
	}
	return false
}

// fakeEditor plays a script in place of the terminal. PrintAbove output is
// captured; Close unblocks scripts waiting on closed.
type fakeEditor struct {
	opts   editor.Options
	script func(e *fakeEditor) error

	mu  sync.Mutex
	out strings.Builder

	closed    chan struct{}
	closeOnce sync.Once
}

func (e *fakeEditor) PrintAbove(text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.out.WriteString(text)
	return nil
}

func (e *fakeEditor) Run() error { return e.script(e) }

func (e *fakeEditor) Close() {
	e.closeOnce.Do(func() { close(e.closed) })
}

func (e *fakeEditor) submit(lines ...string) {
	for _, l := range lines {
		e.opts.Submit(l)
	}
}

func (e *fakeEditor) output() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.out.String()
}

// block waits until the session closes the editor, like a terminal that
// never sees /quit.
func (e *fakeEditor) block() error {
	<-e.closed
	return nil
}

// eventually polls cond from a script goroutine, where require cannot be
// used.
func eventually(cond func() bool) error {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return nil
		}
		time.Sleep(2 * time.Millisecond)
	}
	return errors.New("condition not met")
}

func testConfig() *fscli.AppConfig {
	return &fscli.AppConfig{
		Host:                "pbx.test",
		Color:               fscli.ColorNever,
		LogLevel:            fscli.LogDebug,
		Timeout:             10 * time.Millisecond,
		Macros:              fscli.DefaultMacros(),
		MaxAutoCompleteUUID: 20,
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type dialCounter struct {
	calls atomic.Int32
	dial  func(n int) (Conn, error)
}

func (d *dialCounter) Dial(context.Context) (Conn, error) {
	n := int(d.calls.Add(1))
	if d.dial == nil {
		return nil, errors.New("connection refused")
	}
	return d.dial(n)
}

type result struct {
	ed     *fakeEditor
	direct *syncBuffer
	err    error
}

func runSession(t *testing.T, cfg *fscli.AppConfig, conn Conn, dial Dialer, script func(e *fakeEditor) error) result {
	t.Helper()
	ed := &fakeEditor{script: script, closed: make(chan struct{})}
	direct := &syncBuffer{}

	errc := make(chan error, 1)
	go func() {
		errc <- Run(context.Background(), Options{
			Config:  cfg,
			Conn:    conn,
			Dial:    dial,
			Printer: console.NewPrinter(direct),
			NewEditor: func(o editor.Options) (LineEditor, error) {
				ed.opts = o
				return ed, nil
			},
			LivenessTimeout:   time.Minute,
			CompletionTimeout: 200 * time.Millisecond,
		})
	}()

	select {
	case err := <-errc:
		return result{ed: ed, direct: direct, err: err}
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish")
		return result{}
	}
}

func TestEditorStartFailureClosesConnection(t *testing.T) {
	conn := newFakeConn(nil)
	noTTY := errors.New("open /dev/tty: no such device")

	err := Run(context.Background(), Options{
		Config:  testConfig(),
		Conn:    conn,
		Printer: console.NewPrinter(&syncBuffer{}),
		NewEditor: func(editor.Options) (LineEditor, error) {
			return nil, noTTY
		},
	})
	assert.ErrorIs(t, err, noTTY)
	assert.False(t, conn.Status().Connected)
	_, open := <-conn.Events()
	assert.False(t, open)
	assert.Empty(t, conn.commands())
}

func TestStatusPrintedVerbatim(t *testing.T) {
	body := "UP 0 years, 0 days, 1 hour, 2 minutes\nFreeSWITCH (Version 1.10.11) is ready\n"
	conn := newFakeConn(func(cmd string) (*esl.Response, error) {
		if cmd == "api status" {
			return apiReply(body), nil
		}
		return apiReply(""), nil
	})

	r := runSession(t, testConfig(), conn, nil, func(e *fakeEditor) error {
		e.submit("status")
		return eventually(func() bool { return strings.Contains(e.output(), "is ready") })
	})
	require.NoError(t, r.err)
	assert.Equal(t, body, r.ed.output())
	assert.Contains(t, r.direct.String(), "FreeSWITCH CLI ready.")
	assert.Equal(t, []time.Duration{time.Minute}, conn.liveness)
	assert.True(t, conn.disconnected)
}

func TestAPIErrorIsNotFatal(t *testing.T) {
	conn := newFakeConn(func(cmd string) (*esl.Response, error) {
		switch cmd {
		case "api bogus":
			return apiReply("-ERR bogus Command not found!\n"), nil
		case "api slow":
			return nil, fmt.Errorf("api slow: %w", esl.ErrTimeout)
		case "api version":
			return apiReply("FreeSWITCH Version 1.10.11\n"), nil
		}
		return apiReply(""), nil
	})

	r := runSession(t, testConfig(), conn, nil, func(e *fakeEditor) error {
		e.submit("bogus", "slow", "version")
		return eventually(func() bool { return strings.Contains(e.output(), "Version 1.10.11") })
	})
	require.NoError(t, r.err)
	out := r.ed.output()
	assert.Contains(t, out, "API Error: -ERR bogus Command not found!\n")
	assert.Contains(t, out, "Error: api slow: ")
	assert.Equal(t, []string{"api bogus", "api slow", "api version"}, conn.commands())
}

func TestConnectionLostWithoutReconnectIsFatal(t *testing.T) {
	conn := newFakeConn(func(cmd string) (*esl.Response, error) {
		return nil, esl.ErrConnectionClosed
	})
	dial := &dialCounter{}

	r := runSession(t, testConfig(), conn, dial.Dial, func(e *fakeEditor) error {
		e.submit("status", "version")
		return e.block()
	})
	require.Error(t, r.err)
	assert.ErrorIs(t, r.err, ErrConnectionLost)
	assert.Equal(t, []string{"api status"}, conn.commands())
	assert.Zero(t, dial.calls.Load())
}

func TestReconnectRunsSetupBeforeQueuedCommand(t *testing.T) {
	first := newFakeConn(func(cmd string) (*esl.Response, error) {
		return nil, esl.ErrConnectionClosed
	})
	second := newFakeConn(func(cmd string) (*esl.Response, error) {
		if cmd == "api version" {
			return apiReply("FreeSWITCH Version 1.10.11\n"), nil
		}
		return cmdReply("+OK"), nil
	})
	dial := &dialCounter{dial: func(int) (Conn, error) { return second, nil }}

	cfg := testConfig()
	cfg.Reconnect = true
	r := runSession(t, cfg, first, dial.Dial, func(e *fakeEditor) error {
		e.submit("status", "version")
		return eventually(func() bool { return strings.Contains(e.output(), "Version 1.10.11") })
	})
	require.NoError(t, r.err)
	assert.EqualValues(t, 1, dial.calls.Load())
	assert.Equal(t, []string{"api status"}, first.commands())
	assert.Equal(t, []string{"event plain HEARTBEAT", "log debug", "api version"}, second.commands())
	assert.Equal(t, []time.Duration{time.Minute}, second.liveness)
}

func TestReconnectRetriesAfterStreamEnds(t *testing.T) {
	first := newFakeConn(nil)
	second := newFakeConn(nil)
	dial := &dialCounter{dial: func(n int) (Conn, error) {
		if n == 1 {
			return nil, errors.New("connection refused")
		}
		return second, nil
	}}

	cfg := testConfig()
	cfg.Reconnect = true
	cfg.Events = true
	r := runSession(t, cfg, first, dial.Dial, func(e *fakeEditor) error {
		first.drop(esl.ReasonServerNotice)
		if err := eventually(func() bool { return second.saw("log debug") }); err != nil {
			return err
		}
		e.submit("sofia status")
		return eventually(func() bool { return second.saw("api sofia status") })
	})
	require.NoError(t, r.err)
	assert.EqualValues(t, 2, dial.calls.Load())
	assert.Equal(t, "event plain CHANNEL_CREATE CHANNEL_ANSWER CHANNEL_HANGUP HEARTBEAT", second.commands()[0])
}

func TestLivenessTimeoutIsFatal(t *testing.T) {
	conn := newFakeConn(nil)
	dial := &dialCounter{}
	cfg := testConfig()
	cfg.Reconnect = true

	r := runSession(t, cfg, conn, dial.Dial, func(e *fakeEditor) error {
		conn.drop(esl.ReasonHeartbeatExpired)
		return e.block()
	})
	assert.ErrorIs(t, r.err, ErrLivenessTimeout)
	assert.Zero(t, dial.calls.Load())
}

func TestQuitDuringReconnect(t *testing.T) {
	conn := newFakeConn(nil)
	dial := &dialCounter{}
	cfg := testConfig()
	cfg.Reconnect = true

	r := runSession(t, cfg, conn, dial.Dial, func(e *fakeEditor) error {
		conn.drop(esl.ReasonIOError)
		return eventually(func() bool { return dial.calls.Load() >= 2 })
	})
	require.NoError(t, r.err)
}

func TestEventsArePrintedAboveThePrompt(t *testing.T) {
	conn := newFakeConn(nil)
	heartbeat := &esl.Event{ContentType: esl.ContentEventPlain, Headers: esl.Headers{"Event-Name": esl.EventHeartbeat}}
	create := &esl.Event{ContentType: esl.ContentEventPlain, Headers: esl.Headers{
		"Event-Name":   esl.EventChannelCreate,
		"Unique-ID":    "a1",
		"Channel-Name": "loopback/1000",
	}}
	logRecord := &esl.Event{ContentType: esl.ContentLogData, Headers: esl.Headers{"Log-Level": "6"}, Body: "[INFO] switch.c:1 hello\n"}

	r := runSession(t, testConfig(), conn, nil, func(e *fakeEditor) error {
		conn.events <- esl.Delivery{Event: heartbeat}
		conn.events <- esl.Delivery{Event: create}
		conn.events <- esl.Delivery{Err: errors.New("bad frame")}
		conn.events <- esl.Delivery{Event: logRecord}
		return eventually(func() bool { return strings.Contains(e.output(), "hello") })
	})
	require.NoError(t, r.err)
	assert.Equal(t, "[CREATE] a1 loopback/1000\n[INFO] switch.c:1 hello\n", r.ed.output())
}

func TestHeartbeatProducesNoOutput(t *testing.T) {
	conn := newFakeConn(nil)
	r := runSession(t, testConfig(), conn, nil, func(e *fakeEditor) error {
		for i := 0; i < 5; i++ {
			conn.events <- esl.Delivery{Event: &esl.Event{
				ContentType: esl.ContentEventPlain,
				Headers:     esl.Headers{"Event-Name": esl.EventHeartbeat},
			}}
		}
		return eventually(func() bool { return len(conn.events) == 0 })
	})
	require.NoError(t, r.err)
	assert.Empty(t, r.ed.output())
}

func TestLocalCommands(t *testing.T) {
	conn := newFakeConn(nil)
	r := runSession(t, testConfig(), conn, nil, func(e *fakeEditor) error {
		e.submit("help", "/clear", "F2")
		return eventually(func() bool { return conn.saw("api status") })
	})
	require.NoError(t, r.err)
	out := r.ed.output()
	assert.Contains(t, out, "FreeSWITCH CLI Commands:")
	assert.Contains(t, out, console.ClearScreen)
	assert.Equal(t, []string{"api status"}, conn.commands())
}

func TestCompletionRoundTrip(t *testing.T) {
	conn := newFakeConn(func(cmd string) (*esl.Response, error) {
		if cmd == "api console_complete sofia pro" {
			return apiReply("[ profile]\n"), nil
		}
		return apiReply(""), nil
	})

	var start int
	var cands []complete.Candidate
	r := runSession(t, testConfig(), conn, nil, func(e *fakeEditor) error {
		start, cands = e.opts.Completer.Complete("sofia pro", 9)
		return nil
	})
	require.NoError(t, r.err)
	assert.Equal(t, 6, start)
	assert.Equal(t, []complete.Candidate{{Display: "profile", Replacement: "profile "}}, cands)
}

func TestExpiredCompletionRequestIsDropped(t *testing.T) {
	conn := newFakeConn(nil)
	s := &session{}
	reply := make(chan []string, 1)
	s.answer(context.Background(), conn, CompletionRequest{
		Line:    "sho",
		Pos:     3,
		Reply:   reply,
		Expires: time.Now().Add(-time.Millisecond),
	})
	assert.Empty(t, conn.commands())
	assert.Empty(t, reply)
}

func TestDroppedEventsAreReported(t *testing.T) {
	var logs syncBuffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	conn := newFakeConn(nil)
	conn.dropped = 3
	reportDropped(conn)
	assert.Contains(t, logs.String(), "3 events dropped due to full queue")
}

func TestDisconnectOutcome(t *testing.T) {
	assert.Equal(t, LivenessTimeout{}, disconnectOutcome(esl.Status{Reason: esl.ReasonHeartbeatExpired}))
	assert.Equal(t, Disconnected{Reason: "server sent disconnect notice"}, disconnectOutcome(esl.Status{Reason: esl.ReasonServerNotice}))
}
