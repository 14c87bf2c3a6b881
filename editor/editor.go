// Package editor is the console's line editor. It owns the terminal in raw
// mode on its own goroutine, hands finished lines to a callback, and lets
// other goroutines print above the prompt without corrupting the line being
// typed.
package editor

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/Paranoid-AF/fscli/complete"
	"github.com/Paranoid-AF/fscli/console"
)

// ErrInterrupt is returned when the user presses Ctrl-C.
var ErrInterrupt = fmt.Errorf("interrupted")

// ErrClosed is returned by PrintAbove once the terminal has been restored.
var ErrClosed = errors.New("editor: terminal restored")

// recentHistory is how many entries /history shows.
const recentHistory = 20

// Completer returns the start of the word under the cursor and the
// candidates that replace line[start:pos].
type Completer interface {
	Complete(line string, pos int) (int, []complete.Candidate)
}

// Options configures an Editor.
type Options struct {
	Prompt      string
	HistoryFile string
	HistorySize int
	// Macros maps "f1".."f12" to the command the key submits.
	Macros    map[string]string
	Completer Completer
	// Submit receives every line that is not handled locally. Returning
	// false stops the editor.
	Submit func(line string) bool
}

// Editor is a line editor with history, function-key macros and tab
// completion. In raw mode it reads from /dev/tty; when stdin is not a
// terminal it reads plain lines from stdin.
type Editor struct {
	opts    Options
	in      *bufio.Reader
	out     io.Writer
	tty     *os.File
	state   *term.State
	raw     bool
	history *History

	mu       sync.Mutex
	line     line
	reading  bool
	restored bool
	histIdx  int
	draft    string
}

// New opens the terminal. Raw mode is used when stdin is a terminal.
func New(opts Options) (*Editor, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
		if err != nil {
			return nil, fmt.Errorf("open /dev/tty: %w", err)
		}
		state, err := term.MakeRaw(int(tty.Fd()))
		if err != nil {
			tty.Close()
			return nil, fmt.Errorf("raw mode: %w", err)
		}
		e := newEditor(tty, tty, true, opts)
		e.tty, e.state = tty, state
		return e, nil
	}
	return newEditor(os.Stdin, os.Stdout, false, opts), nil
}

func newEditor(in io.Reader, out io.Writer, raw bool, opts Options) *Editor {
	return &Editor{
		opts:    opts,
		in:      bufio.NewReader(in),
		out:     out,
		raw:     raw,
		history: NewHistory(opts.HistorySize),
	}
}

// Restore returns the terminal to its original mode. It is safe to call from
// any goroutine, more than once, and while Run is blocked reading input.
func (e *Editor) Restore() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.restored {
		return
	}
	e.restored = true
	if e.tty != nil && e.state != nil {
		_ = term.Restore(int(e.tty.Fd()), e.state)
	}
}

// Close restores the terminal and closes the tty.
func (e *Editor) Close() {
	e.Restore()
	if e.tty != nil {
		e.tty.Close()
	}
}

// Run reads lines until /quit, /exit, /bye, end of input or Submit returning
// false, and returns nil in those cases. A terminal read failure is returned.
// History is loaded first and saved on the way out.
func (e *Editor) Run() error {
	if e.opts.HistoryFile != "" {
		if err := e.history.Load(e.opts.HistoryFile); err != nil {
			slog.Warn("could not load history", "error", err)
		}
		defer func() {
			if err := e.history.Save(e.opts.HistoryFile); err != nil {
				slog.Warn("could not save history", "error", err)
			}
		}()
	}

	for {
		text, err := e.readLine()
		switch {
		case errors.Is(err, ErrInterrupt):
			continue
		case errors.Is(err, io.EOF):
			e.println("Goodbye!")
			return nil
		case err != nil:
			return fmt.Errorf("read input: %w", err)
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		e.history.Add(text)

		switch text {
		case "/quit", "/exit", "/bye":
			e.println("Goodbye!")
			return nil
		case "/history":
			e.println("Command History:\n" + strings.Join(e.history.Recent(recentHistory), "\n"))
			continue
		}

		if e.opts.Submit != nil && !e.opts.Submit(text) {
			return nil
		}
	}
}

// PrintAbove prints text above the prompt and redraws the prompt and the
// partial line in one write.
func (e *Editor) PrintAbove(text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.restored {
		return ErrClosed
	}
	return e.printAboveLocked(text)
}

func (e *Editor) printAboveLocked(text string) error {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if !e.raw {
		_, err := io.WriteString(e.out, text)
		return err
	}

	var b bytes.Buffer
	if e.reading {
		b.WriteString("\r\x1b[K")
	}
	b.Write(console.ToCRLF([]byte(text)))
	if e.reading {
		e.render(&b)
	}
	_, err := e.out.Write(b.Bytes())
	return err
}

func (e *Editor) println(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_ = e.printAboveLocked(text)
}

func (e *Editor) readLine() (string, error) {
	if !e.raw {
		return e.readCooked()
	}

	e.mu.Lock()
	e.line.reset()
	e.histIdx = e.history.Len()
	e.draft = ""
	e.reading = true
	e.redrawLocked()
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.reading = false
		e.mu.Unlock()
	}()

	for {
		k, err := readKey(e.in)
		if err != nil {
			return "", err
		}

		switch k.kind {
		case keyTab:
			e.complete()
			continue
		case keyFunction:
			if cmd, ok := e.opts.Macros[fmt.Sprintf("f%d", k.fn)]; ok {
				e.mu.Lock()
				e.line.set(cmd)
				e.redrawLocked()
				e.write("\r\n")
				e.mu.Unlock()
				return cmd, nil
			}
			continue
		}

		e.mu.Lock()
		text, done, err := e.applyLocked(k)
		if !done {
			e.redrawLocked()
		}
		e.mu.Unlock()
		if done {
			return text, err
		}
	}
}

func (e *Editor) readCooked() (string, error) {
	text, err := e.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && text != "" {
			return text, nil
		}
		return "", err
	}
	return strings.TrimRight(text, "\r\n"), nil
}

// applyLocked applies one keystroke. done reports that the line is finished.
func (e *Editor) applyLocked(k key) (text string, done bool, err error) {
	l := &e.line
	switch k.kind {
	case keyEnter:
		e.write("\r\n")
		return l.String(), true, nil
	case keyInterrupt:
		e.write("^C\r\n")
		return "", true, ErrInterrupt
	case keyEOF:
		if len(l.buf) == 0 {
			e.write("\r\n")
			return "", true, io.EOF
		}
		l.delete()
	case keyRune:
		l.insert(k.text)
	case keyBackspace:
		l.backspace()
	case keyDelete:
		l.delete()
	case keyLeft:
		l.left()
	case keyRight:
		l.right()
	case keyHome:
		l.pos = 0
	case keyEnd:
		l.pos = len(l.buf)
	case keyKillLine:
		l.reset()
	case keyKillEnd:
		l.killEnd()
	case keyKillWord:
		l.killWord()
	case keyClear:
		e.write(console.ClearScreen)
	case keyUp:
		e.historyPrev()
	case keyDown:
		e.historyNext()
	}
	return "", false, nil
}

func (e *Editor) historyPrev() {
	if e.histIdx == 0 {
		return
	}
	if e.histIdx == e.history.Len() {
		e.draft = e.line.String()
	}
	e.histIdx--
	e.line.set(e.history.At(e.histIdx))
}

func (e *Editor) historyNext() {
	if e.histIdx >= e.history.Len() {
		return
	}
	e.histIdx++
	if e.histIdx == e.history.Len() {
		e.line.set(e.draft)
		return
	}
	e.line.set(e.history.At(e.histIdx))
}

// complete runs one completion round trip. The lock is released while the
// completer waits so other goroutines can keep printing.
func (e *Editor) complete() {
	if e.opts.Completer == nil {
		return
	}
	e.mu.Lock()
	text, pos := e.line.String(), e.line.pos
	e.mu.Unlock()

	start, cands := e.opts.Completer.Complete(text, pos)

	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case len(cands) == 0:
		e.write("\a")
		return
	case sameReplacement(cands):
		e.line.replace(start, pos, cands[0].Replacement)
	default:
		displays := make([]string, len(cands))
		for i, c := range cands {
			displays[i] = c.Display
		}
		_ = e.printAboveLocked(formatColumns(displays, e.width()))
		return
	}
	e.redrawLocked()
}

func sameReplacement(cands []complete.Candidate) bool {
	for _, c := range cands[1:] {
		if c.Replacement != cands[0].Replacement {
			return false
		}
	}
	return true
}

func (e *Editor) width() int {
	if e.tty != nil {
		if w, _, err := term.GetSize(int(e.tty.Fd())); err == nil && w > 0 {
			return w
		}
	}
	return 80
}

// redrawLocked clears the current line and redraws prompt + buffer with cursor.
func (e *Editor) redrawLocked() {
	var b bytes.Buffer
	b.WriteString("\r\x1b[K")
	e.render(&b)
	_, _ = e.out.Write(b.Bytes())
}

func (e *Editor) render(b *bytes.Buffer) {
	b.WriteString(e.opts.Prompt)
	b.Write(e.line.buf)
	if tail := e.line.tail(); tail > 0 {
		fmt.Fprintf(b, "\x1b[%dD", tail)
	}
}

func (e *Editor) write(s string) {
	_, _ = io.WriteString(e.out, s)
}

// formatColumns lays items out in columns that fit width.
func formatColumns(items []string, width int) string {
	longest := 0
	for _, it := range items {
		if n := len([]rune(it)); n > longest {
			longest = n
		}
	}
	colWidth := longest + 2
	cols := width / colWidth
	if cols < 1 {
		cols = 1
	}
	rows := (len(items) + cols - 1) / cols

	var b strings.Builder
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			i := c*rows + r
			if i >= len(items) {
				break
			}
			cell := items[i]
			if c < cols-1 && (c+1)*rows+r < len(items) {
				cell += strings.Repeat(" ", colWidth-len([]rune(cell)))
			}
			b.WriteString(cell)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Prompt is the console prompt for host; localhost shows the machine name.
func Prompt(host string) string {
	if host == "localhost" {
		if name, err := os.Hostname(); err == nil && name != "" {
			host = name
		}
	}
	return "freeswitch@" + host + "> "
}
