package session

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fscli "github.com/Paranoid-AF/fscli"
	"github.com/Paranoid-AF/fscli/console"
	"github.com/Paranoid-AF/fscli/esl"
)

func TestProcessorExecute(t *testing.T) {
	statusBody := "UP 0 years, 2 days, 3 hours, 4 minutes\nFreeSWITCH is ready\n"
	replies := map[string]*esl.Response{
		"api status":                   apiReply(statusBody),
		"api sofia status":             apiReply("Profile internal RUNNING\n"),
		"api show channels count":      apiReply("0 total.\n"),
		"api reload mod_sofia":         apiReply("+OK module reloaded\n"),
		"api reloadxml":                apiReply("+OK [Success]\n"),
		"api originate user/1000 9196": apiReply("+OK 6f1c\n"),
		"log info":                     cmdReply("-ERR not allowed"),
		"log debug":                    cmdReply("+OK log level  [7]"),
		"nolog":                        cmdReply("+OK no longer receiving log"),
		"api bogus":                    apiReply("-ERR bogus Command not found!\n"),
	}

	tests := []struct {
		command string
		sent    []string
		want    string
	}{
		{"status", []string{"api status"}, statusBody},
		{"uptime", []string{"api status"}, "UP 0 years, 2 days, 3 hours, 4 minutes\n"},
		{"show registrations", []string{"api sofia status"}, "Profile internal RUNNING\n"},
		{"show channels count", []string{"api show channels count"}, "0 total.\n"},
		{"show bogus", nil, "Unknown show command: bogus\n" + showAvailable + "\n"},
		{"show", nil, showUsage + "\n"},
		{"reload mod_sofia", []string{"api reload mod_sofia"}, "Reloaded module: mod_sofia\n+OK module reloaded\n"},
		{"reload", []string{"api reloadxml"}, "Reloaded XML configuration\n+OK [Success]\n"},
		{"originate user/1000", nil, "Usage: originate <call_url> <destination>\n"},
		{"originate user/1000 9196", []string{"api originate user/1000 9196"}, "Originate command executed\n+OK 6f1c\n"},
		{"/log debug", []string{"log debug"}, "+OK log level debug [7]\n"},
		{"/log nolog", []string{"nolog"}, "+OK log level nolog [18]\n"},
		{"/log info", []string{"log info"}, "Failed to set log level: -ERR not allowed\n"},
		{"/log loud", nil, "invalid log level: loud\n"},
		{"/log", nil, fscli.LogLevelUsage() + "\n"},
		{"sofia status", []string{"api sofia status"}, "Profile internal RUNNING\n"},
		{"bogus", []string{"api bogus"}, "API Error: -ERR bogus Command not found!\n"},
		{"fsctl pause", []string{"api fsctl pause"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			conn := newFakeConn(func(cmd string) (*esl.Response, error) {
				if r, ok := replies[cmd]; ok {
					return r, nil
				}
				return apiReply(""), nil
			})
			var out bytes.Buffer
			p := &Processor{Printer: console.NewPrinter(&out), Color: fscli.ColorNever}

			require.NoError(t, p.Execute(context.Background(), conn, tt.command))
			assert.Equal(t, tt.sent, nilIfEmpty(conn.commands()))
			assert.Equal(t, tt.want, out.String())
		})
	}
}

func TestProcessorReturnsTransportErrors(t *testing.T) {
	conn := newFakeConn(func(string) (*esl.Response, error) { return nil, esl.ErrConnectionClosed })
	var out bytes.Buffer
	p := &Processor{Printer: console.NewPrinter(&out)}

	for _, cmd := range []string{"status", "show calls", "/log debug", "sofia status"} {
		err := p.Execute(context.Background(), conn, cmd)
		assert.ErrorIs(t, err, esl.ErrConnectionClosed, cmd)
	}
	assert.Empty(t, out.String())
}

func TestExtractUptime(t *testing.T) {
	assert.Equal(t, "UP 1 year, 0 days", ExtractUptime("UP 1 year, 0 days\n"))
	assert.Equal(t, "UP 0 years, 1 day, 2 hours", ExtractUptime("x\n  UP 0 years, 1 day, 2 hours  \ny"))
	assert.Equal(t, "Uptime information not found", ExtractUptime("FreeSWITCH is ready"))
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}
