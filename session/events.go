package session

import (
	"log/slog"

	fscli "github.com/Paranoid-AF/fscli"
	"github.com/Paranoid-AF/fscli/console"
	"github.com/Paranoid-AF/fscli/esl"
)

// consumeEvents prints channel events and log records until the stream
// closes or stop is closed. The returned channel is closed when it returns.
func consumeEvents(events <-chan esl.Delivery, stop <-chan struct{}, p console.Printer, mode fscli.ColorMode) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case d, ok := <-events:
				if !ok {
					return
				}
				if d.Err != nil {
					slog.Warn("event stream error", "error", d.Err)
					continue
				}
				if text, ok := renderEvent(d.Event, mode); ok {
					p.Print(text)
				}
			case <-stop:
				return
			}
		}
	}()
	return done
}

// renderEvent classifies an event: channel lifecycle events first, then log
// records. Everything else, heartbeats included, is not shown.
func renderEvent(ev *esl.Event, mode fscli.ColorMode) (string, bool) {
	if ev == nil {
		return "", false
	}
	if text, ok := console.FormatChannelEvent(ev, mode); ok {
		return text, true
	}
	if ev.IsLog() {
		return console.FormatLogEvent(ev, mode)
	}
	return "", false
}
