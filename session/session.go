// Package session runs the interactive client: it owns the connection,
// serializes commands and completion queries onto it, prints events and log
// records above the prompt, and reconnects after a lost connection.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	fscli "github.com/Paranoid-AF/fscli"
	"github.com/Paranoid-AF/fscli/complete"
	"github.com/Paranoid-AF/fscli/console"
	"github.com/Paranoid-AF/fscli/editor"
	"github.com/Paranoid-AF/fscli/esl"
)

const readyBanner = "FreeSWITCH CLI ready. Type 'help' for commands, '/quit' to exit.\n"

// disconnectTimeout bounds the exit handshake on a clean quit.
const disconnectTimeout = time.Second

var (
	// ErrConnectionLost is returned when the connection drops and reconnect
	// is off.
	ErrConnectionLost = errors.New("connection to FreeSWITCH lost")
	// ErrLivenessTimeout is returned when the server went silent.
	ErrLivenessTimeout = errors.New("liveness timeout: connection lost")
)

// LineEditor is the interactive input side of a session.
type LineEditor interface {
	console.Sink
	Run() error
	Close()
}

// Options configures Run.
type Options struct {
	Config *fscli.AppConfig
	// Conn is the initial connection, already set up.
	Conn Conn
	// Dial opens replacement connections when reconnect is enabled.
	Dial    Dialer
	Printer *console.SyncPrinter
	// NewEditor builds the line editor. Defaults to the terminal editor.
	NewEditor         func(editor.Options) (LineEditor, error)
	LivenessTimeout   time.Duration
	CompletionTimeout time.Duration
}

type session struct {
	cfg       *fscli.AppConfig
	printer   *console.SyncPrinter
	processor *Processor
	commands  *queue
	broker    *Broker
	channels  *complete.ChannelProvider
	reconnect *Reconnector
	liveness  time.Duration
}

// Run drives the interactive session until the user quits or the connection
// is lost for good. A clean quit returns nil.
func Run(ctx context.Context, opts Options) error {
	cfg := opts.Config
	s := &session{
		cfg:       cfg,
		printer:   opts.Printer,
		processor: &Processor{Printer: opts.Printer, Color: cfg.Color},
		commands:  newQueue(),
		broker:    NewBroker(opts.CompletionTimeout),
		channels:  complete.NewChannelProvider(cfg.MaxAutoCompleteUUID),
		liveness:  opts.LivenessTimeout,
	}
	defer s.channels.Close()
	if s.liveness <= 0 {
		s.liveness = DefaultLivenessTimeout
	}
	s.reconnect = &Reconnector{
		Dial:     opts.Dial,
		Interval: cfg.Timeout,
		Setup:    s.setup,
	}

	newEditor := opts.NewEditor
	if newEditor == nil {
		newEditor = terminalEditor
	}

	s.printer.Print(readyBanner)
	ed, err := newEditor(editor.Options{
		Prompt:      editor.Prompt(cfg.Host),
		HistoryFile: cfg.HistoryFile,
		Macros:      cfg.Macros,
		Completer:   &complete.Completer{Remote: s.broker.Request},
		Submit: func(line string) bool {
			s.commands.Push(line)
			return true
		},
	})
	if err != nil {
		opts.Conn.Close()
		return fmt.Errorf("start line editor: %w", err)
	}
	s.printer.SetSink(ed)
	defer s.printer.SetSink(nil)

	quit := make(chan error, 1)
	go func() {
		if err := ed.Run(); err != nil {
			quit <- fmt.Errorf("line editor: %w", err)
			return
		}
		quit <- nil
	}()

	conn := opts.Conn
	conn.SetLivenessTimeout(s.liveness)
	for {
		outcome := s.serve(ctx, conn, quit)
		reportDropped(conn)

		switch o := outcome.(type) {
		case Quit:
			dctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
			if err := conn.Disconnect(dctx); err != nil {
				slog.Debug("disconnect failed", "error", err)
			}
			cancel()
			ed.Close()
			return o.Err

		case LivenessTimeout:
			conn.Close()
			ed.Close()
			return ErrLivenessTimeout

		case Disconnected:
			conn.Close()
			if !cfg.Reconnect || opts.Dial == nil {
				ed.Close()
				return fmt.Errorf("%w: %s", ErrConnectionLost, o.Reason)
			}
			slog.Warn(fmt.Sprintf("Connection lost (%s), reconnecting...", o.Reason))
			s.channels.Invalidate()

			next, q := s.redial(ctx, quit)
			if q != nil {
				ed.Close()
				return q.Err
			}
			conn = next
		}
	}
}

func terminalEditor(opts editor.Options) (LineEditor, error) {
	return editor.New(opts)
}

// setup prepares a replacement connection before any queued command runs on
// it.
func (s *session) setup(ctx context.Context, c Conn) error {
	c.SetLivenessTimeout(s.liveness)
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}
	return Setup(ctx, c, s.cfg)
}

// serve runs one connection session: events are printed in the background
// while commands and completion requests are handled one at a time.
func (s *session) serve(ctx context.Context, conn Conn, quit <-chan error) Outcome {
	stop := make(chan struct{})
	defer close(stop)
	streamDone := consumeEvents(conn.Events(), stop, s.printer, s.cfg.Color)

	for {
		select {
		case <-streamDone:
			return disconnectOutcome(conn.Status())

		case <-s.commands.Ready():
			line, ok := s.commands.Pop()
			if !ok {
				continue
			}
			if out := s.handleCommand(ctx, conn, line); out != nil {
				return out
			}

		case req := <-s.broker.Requests():
			s.answer(ctx, conn, req)

		case err := <-quit:
			return Quit{Err: err}

		case <-ctx.Done():
			return Quit{Err: ctx.Err()}
		}
	}
}

func (s *session) handleCommand(ctx context.Context, conn Conn, line string) Outcome {
	if !strings.HasPrefix(line, "/") {
		if cmd, ok := fscli.FunctionKey(line, s.cfg.Macros); ok {
			line = cmd
		}
	}

	switch line {
	case "help", "/help":
		s.processor.ShowHelp()
		return nil
	case "/clear":
		s.printer.Print(console.ClearScreen)
		return nil
	}

	err := s.processor.Execute(ctx, conn, line)
	if err == nil {
		return nil
	}
	if esl.IsConnectionError(err) {
		if conn.Status().Reason == esl.ReasonHeartbeatExpired {
			return LivenessTimeout{}
		}
		return Disconnected{Reason: err.Error()}
	}
	s.processor.PrintError(err)
	return nil
}

// answer serves a completion request unless the editor already gave up on
// it. The query shares the request's deadline.
func (s *session) answer(ctx context.Context, conn Conn, req CompletionRequest) {
	if req.Expired(time.Now()) {
		slog.Debug("dropping expired completion request", "line", req.Line)
		return
	}
	qctx, cancel := context.WithDeadline(ctx, req.Expires)
	defer cancel()
	req.Answer(complete.Query(qctx, conn, req.Line, req.Pos, s.channels))
}

// redial reconnects while still honouring a quit from the editor. A non-nil
// Quit means the session is over.
func (s *session) redial(ctx context.Context, quit <-chan error) (Conn, *Quit) {
	rctx, cancel := context.WithCancel(ctx)
	watched := make(chan struct{})
	var quitting *Quit
	go func() {
		defer close(watched)
		select {
		case err := <-quit:
			quitting = &Quit{Err: err}
			cancel()
		case <-rctx.Done():
		}
	}()

	conn, err := s.reconnect.Reconnect(rctx)
	cancel()
	<-watched

	if quitting != nil {
		if conn != nil {
			conn.Close()
		}
		return nil, quitting
	}
	if err != nil {
		return nil, &Quit{Err: err}
	}
	return conn, nil
}

func disconnectOutcome(st esl.Status) Outcome {
	if st.Reason == esl.ReasonHeartbeatExpired {
		return LivenessTimeout{}
	}
	return Disconnected{Reason: st.String()}
}

func reportDropped(conn Conn) {
	dc, ok := conn.(droppedCounter)
	if !ok {
		return
	}
	if n := dc.DroppedEvents(); n > 0 {
		slog.Warn(fmt.Sprintf("%d events dropped due to full queue", n))
	}
}
