package complete

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Paranoid-AF/fscli/esl"
)

// WriteDirective prefixes a suggestion that replaces the word under the
// cursor verbatim (console_complete's "write=<n>:<text>" reply).
const WriteDirective = "write="

// ConsoleCompleteCommand builds the console_complete API command. The cursor
// offset is sent only when it is inside the line.
func ConsoleCompleteCommand(line string, pos int) string {
	if pos > 0 && pos < len(line) {
		return "console_complete c=" + strconv.Itoa(pos) + ";" + line
	}
	return "console_complete " + line
}

// ParseConsoleComplete extracts suggestions from a console_complete body:
// every non-empty [...] group, or failing that the write= directive.
func ParseConsoleComplete(body string) []string {
	var out []string
	for _, line := range strings.Split(body, "\n") {
		for {
			open := strings.IndexByte(line, '[')
			if open < 0 {
				break
			}
			line = line[open+1:]
			closeAt := strings.IndexByte(line, ']')
			var group string
			if closeAt < 0 {
				group, line = line, ""
			} else {
				group, line = line[:closeAt], line[closeAt+1:]
			}
			if text := strings.TrimSpace(group); text != "" {
				out = append(out, text)
			}
		}
	}
	if len(out) > 0 {
		return out
	}

	if i := strings.Index(body, "write="); i >= 0 {
		directive := body[i+len("write="):]
		if colon := strings.IndexByte(directive, ':'); colon >= 0 {
			if text := strings.TrimRight(directive[colon+1:], " \t\r\n"); text != "" {
				out = append(out, WriteDirective+text)
			}
		}
	}
	return out
}

// IsUUIDCommand reports whether the line is a uuid_ command with an argument
// being typed, which is completed from the live channel list.
func IsUUIDCommand(line string) bool {
	return strings.HasPrefix(strings.TrimLeft(line, " "), "uuid_") && strings.Contains(line, " ")
}

// Query asks the server for suggestions. uuid_ commands try the channel
// provider first and fall back to console_complete when it declines. Errors
// yield no suggestions.
func Query(ctx context.Context, s esl.Sender, line string, pos int, channels *ChannelProvider) []string {
	if IsUUIDCommand(line) && channels != nil {
		rows, ok, err := channels.Completions(ctx, s)
		if err != nil {
			slog.Debug("channel completion failed", "error", err)
		} else if ok {
			slog.Debug("using channel completion", "channels", len(rows))
			return rows
		}
	}

	cmd := ConsoleCompleteCommand(line, pos)
	resp, err := esl.API(ctx, s, cmd)
	if err != nil {
		slog.Debug("console_complete failed", "command", cmd, "error", err)
		return nil
	}
	if resp.Body == "" {
		return nil
	}
	return ParseConsoleComplete(resp.Body)
}
