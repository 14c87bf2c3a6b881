// Package fscli holds the types shared by the fs_cli client packages: color
// and log-level enums, the client debug level, and profile configuration.
package fscli

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// ColorMode controls how log lines and channel events are colorized.
type ColorMode int

const (
	// ColorNever prints text unchanged.
	ColorNever ColorMode = iota
	// ColorTag colorizes only the bracketed severity tag of a log line.
	ColorTag
	// ColorLine colorizes the whole log line.
	ColorLine
)

// ParseColorMode parses "never", "tag" or "line" (case-insensitive).
func ParseColorMode(s string) (ColorMode, error) {
	switch strings.ToLower(s) {
	case "never":
		return ColorNever, nil
	case "tag":
		return ColorTag, nil
	case "line":
		return ColorLine, nil
	}
	return ColorNever, fmt.Errorf("invalid color mode: %s. Valid options: never, tag, line", s)
}

func (m ColorMode) String() string {
	switch m {
	case ColorTag:
		return "tag"
	case ColorLine:
		return "line"
	default:
		return "never"
	}
}

// Set implements pflag.Value so the mode can be bound to a flag directly.
func (m *ColorMode) Set(s string) error {
	v, err := ParseColorMode(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Type implements pflag.Value.
func (m *ColorMode) Type() string { return "color" }

// LogLevel is a server-side log level requested with the "log" command.
// The numeric value matches the level number the server reports.
type LogLevel int

const (
	LogConsole LogLevel = iota
	LogAlert
	LogCrit
	LogErr
	LogWarning
	LogNotice
	LogInfo
	LogDebug
	LogDebug1
	LogDebug2
	LogDebug3
	LogDebug4
	LogDebug5
	LogDebug6
	LogDebug7
	LogDebug8
	LogDebug9
	LogDebug10
	LogNoLog
)

var logLevelNames = [...]string{
	"console", "alert", "crit", "err", "warning", "notice", "info", "debug",
	"debug1", "debug2", "debug3", "debug4", "debug5", "debug6", "debug7",
	"debug8", "debug9", "debug10", "nolog",
}

// LogLevels lists every level in server order, for help text and completion.
func LogLevels() []LogLevel {
	levels := make([]LogLevel, len(logLevelNames))
	for i := range logLevelNames {
		levels[i] = LogLevel(i)
	}
	return levels
}

// ParseLogLevel parses a level name; "error" and "warn" are accepted aliases.
func ParseLogLevel(s string) (LogLevel, error) {
	name := strings.ToLower(s)
	switch name {
	case "error":
		return LogErr, nil
	case "warn":
		return LogWarning, nil
	}
	for i, n := range logLevelNames {
		if n == name {
			return LogLevel(i), nil
		}
	}
	return LogDebug, fmt.Errorf("invalid log level: %s", s)
}

func (l LogLevel) String() string {
	if l < 0 || int(l) >= len(logLevelNames) {
		return "debug"
	}
	return logLevelNames[l]
}

// Set implements pflag.Value.
func (l *LogLevel) Set(s string) error {
	v, err := ParseLogLevel(s)
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// Type implements pflag.Value.
func (l *LogLevel) Type() string { return "level" }

// LogLevelUsage is printed by "/log" without an argument.
func LogLevelUsage() string {
	return "Usage: /log <level>\nAvailable levels: " + strings.Join(logLevelNames[:], ", ")
}

// DebugLevel is the client-side diagnostic verbosity, 0 (quiet) to 7
// (every protocol frame).
type DebugLevel int

// MaxDebugLevel traces every ESL frame.
const MaxDebugLevel DebugLevel = 7

// ParseDebugLevel accepts "0" through "7".
func ParseDebugLevel(s string) (DebugLevel, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > int(MaxDebugLevel) {
		return 0, fmt.Errorf("invalid debug level: %s (must be 0-7)", s)
	}
	return DebugLevel(n), nil
}

// SlogLevel maps the debug level to the minimum slog level to emit.
func (d DebugLevel) SlogLevel() slog.Level {
	switch {
	case d <= 1:
		return slog.LevelError
	case d == 2:
		return slog.LevelWarn
	case d == 3:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// TraceFrames reports whether every protocol frame should be logged.
func (d DebugLevel) TraceFrames() bool {
	return d >= MaxDebugLevel
}
