// Package console serializes terminal output. Every producer (command
// results, pushed events, diagnostics) prints through one Printer so that
// text never lands in the middle of the line being edited.
package console

import (
	"bytes"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Printer delivers one fully formatted message as a unit.
type Printer interface {
	Print(text string)
}

// Sink prints text above an active prompt and redraws the prompt.
// The line editor implements it while it owns the terminal.
type Sink interface {
	PrintAbove(text string) error
}

// SyncPrinter is the shared Printer. Print prefers the installed Sink and
// writes directly to the fallback writer when there is none, when the sink
// fails, or when another producer holds the lock.
type SyncPrinter struct {
	mu       sync.Mutex
	fallback io.Writer

	sinkMu sync.RWMutex
	sink   Sink
}

// NewPrinter returns a printer that falls back to w.
func NewPrinter(w io.Writer) *SyncPrinter {
	return &SyncPrinter{fallback: w}
}

// Stdout returns a printer over standard output, translating newlines when
// stdout is a terminal.
func Stdout() *SyncPrinter {
	return NewPrinter(TermWriter(os.Stdout))
}

// SetSink installs (or, with nil, removes) the prompt-aware sink.
func (p *SyncPrinter) SetSink(s Sink) {
	p.sinkMu.Lock()
	p.sink = s
	p.sinkMu.Unlock()
}

func (p *SyncPrinter) currentSink() Sink {
	p.sinkMu.RLock()
	defer p.sinkMu.RUnlock()
	return p.sink
}

// Print writes text followed by a newline if it lacks one. It never blocks
// on another producer: under contention the text is written directly in a
// single call.
func (p *SyncPrinter) Print(text string) {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if !p.mu.TryLock() {
		p.direct(text)
		return
	}
	defer p.mu.Unlock()

	if sink := p.currentSink(); sink != nil {
		if err := sink.PrintAbove(text); err == nil {
			return
		}
	}
	p.direct(text)
}

func (p *SyncPrinter) direct(text string) {
	_, _ = io.WriteString(p.fallback, text)
}

// Writer adapts a Printer to io.Writer; each Write is printed as one unit.
// slog handlers write one record per call.
func Writer(p Printer) io.Writer {
	return printerWriter{p: p}
}

type printerWriter struct {
	p Printer
}

func (w printerWriter) Write(b []byte) (int, error) {
	w.p.Print(string(b))
	return len(b), nil
}

// TermWriter wraps a file and converts \n to \r\n when the file is a terminal
// (raw mode disables the kernel's NL→CRNL translation).
// When the file is redirected, \n passes through unchanged.
func TermWriter(f *os.File) io.Writer {
	if term.IsTerminal(int(f.Fd())) {
		return &CRLFWriter{W: f}
	}
	return f
}

// CRLFWriter converts bare \n to \r\n in a single write.
type CRLFWriter struct {
	W io.Writer
}

func (c *CRLFWriter) Write(p []byte) (int, error) {
	_, err := c.W.Write(ToCRLF(p))
	return len(p), err // report original length to caller
}

// ToCRLF converts bare \n to \r\n, leaving existing \r\n alone.
func ToCRLF(p []byte) []byte {
	normalized := bytes.ReplaceAll(p, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(normalized, []byte("\n"), []byte("\r\n"))
}
