package console

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"

	fscli "github.com/Paranoid-AF/fscli"
	"github.com/Paranoid-AF/fscli/esl"
)

// ClearScreen clears the terminal and homes the cursor.
const ClearScreen = "\x1b[2J\x1b[H"

// defaultLogLevel applies when a record has no usable Log-Level header.
const defaultLogLevel = 7

var levelColors = []*color.Color{
	color.New(color.FgWhite, color.Bold), // console
	color.New(color.FgRed, color.Bold),   // alert
	color.New(color.FgRed, color.Bold),   // crit
	color.New(color.FgRed),               // err
	color.New(color.FgYellow),            // warning
	color.New(color.FgCyan),              // notice
	color.New(color.FgGreen),             // info
}

var (
	debugColor = color.New(color.FgYellow, color.Faint)
	eventColor = color.New(color.FgCyan)
	errorColor = color.New(color.FgRed, color.Bold)
	helpColor  = color.New(color.FgCyan)
)

func colorFor(level int) *color.Color {
	if level >= 0 && level < len(levelColors) {
		return levelColors[level]
	}
	return debugColor
}

// FormatLog renders a log record body. It reports false for blank records.
func FormatLog(message string, level int, mode fscli.ColorMode) (string, bool) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", false
	}
	switch mode {
	case fscli.ColorLine:
		return colorFor(level).Sprint(message), true
	case fscli.ColorTag:
		return colorTag(message, level), true
	}
	return message, true
}

// colorTag colorizes the first [...] group, normally the severity tag.
func colorTag(message string, level int) string {
	start := strings.IndexByte(message, '[')
	if start < 0 {
		return message
	}
	end := strings.IndexByte(message[start:], ']')
	if end < 0 {
		return message
	}
	end += start + 1
	return message[:start] + colorFor(level).Sprint(message[start:end]) + message[end:]
}

// FormatLogEvent renders a log/data event.
func FormatLogEvent(ev *esl.Event, mode fscli.ColorMode) (string, bool) {
	level, err := strconv.Atoi(ev.Get("Log-Level"))
	if err != nil {
		level = defaultLogLevel
	}
	return FormatLog(ev.Body, level, mode)
}

var channelLabels = map[string]string{
	esl.EventChannelCreate: "CREATE",
	esl.EventChannelAnswer: "ANSWER",
	esl.EventChannelHangup: "HANGUP",
}

// FormatChannelEvent renders a channel lifecycle event on one line. It
// reports false for every other event, heartbeats included.
func FormatChannelEvent(ev *esl.Event, mode fscli.ColorMode) (string, bool) {
	label, ok := channelLabels[ev.Name()]
	if !ok {
		return "", false
	}
	uuid := valueOr(ev.Get("Unique-ID"), "?")
	channel := valueOr(ev.Get("Channel-Name"), "unknown")

	var line string
	if ev.Name() == esl.EventChannelHangup {
		line = fmt.Sprintf("[%s] %s %s (%s)", label, uuid, channel, valueOr(ev.Get("Hangup-Cause"), "UNKNOWN"))
	} else {
		num, name := ev.Get("Caller-Caller-ID-Number"), ev.Get("Caller-Caller-ID-Name")
		if num != "" || name != "" {
			line = fmt.Sprintf("[%s] %s %s <%s> %s", label, uuid, channel, num, name)
		} else {
			line = fmt.Sprintf("[%s] %s %s", label, uuid, channel)
		}
	}

	if mode == fscli.ColorNever {
		return line, true
	}
	return eventColor.Sprint(line), true
}

// FormatError renders "<label>: <message>" with a red label.
func FormatError(label, message string, mode fscli.ColorMode) string {
	if mode == fscli.ColorNever {
		return label + ": " + message
	}
	return errorColor.Sprint(label) + ": " + message
}

// FormatHelp colors the help text.
func FormatHelp(text string, mode fscli.ColorMode) string {
	if mode == fscli.ColorNever {
		return text
	}
	return helpColor.Sprint(text)
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
