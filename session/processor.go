package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	fscli "github.com/Paranoid-AF/fscli"
	"github.com/Paranoid-AF/fscli/console"
	defaults "github.com/Paranoid-AF/fscli/default"
	"github.com/Paranoid-AF/fscli/esl"
)

const showUsage = "Usage: show <channels|calls|registrations|modules|...>"

const showAvailable = "Available: channels, calls, registrations, modules, interfaces, api, application, codec, file, timer, tasks"

// showCommands maps "show <sub>" shortcuts to the API command sent.
var showCommands = map[string]string{
	"channels":      "show channels",
	"calls":         "show calls",
	"registrations": "sofia status",
	"modules":       "show modules",
	"interfaces":    "show interfaces",
	"api":           "show api",
	"application":   "show application",
	"codec":         "show codec",
	"file":          "show file",
	"timer":         "show timer",
	"tasks":         "show tasks",
	"complete":      "show complete",
}

// Processor executes one submitted command against the server and prints
// the result. Only transport failures are returned; server-side errors are
// printed.
type Processor struct {
	Printer console.Printer
	Color   fscli.ColorMode
}

// Execute runs command. Client shortcuts are handled first; anything else
// goes to the server as an API command.
func (p *Processor) Execute(ctx context.Context, s esl.Sender, command string) error {
	slog.Debug("executing command", "command", command)

	out, handled, err := p.shortcut(ctx, s, command)
	if err != nil {
		return err
	}
	if handled {
		p.Printer.Print(out)
		return nil
	}

	resp, err := esl.API(ctx, s, command)
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		if reply := resp.ReplyText(); reply != "" {
			p.Printer.Print(console.FormatError("API Error", reply, p.Color))
			return nil
		}
	}
	if strings.TrimSpace(resp.Body) != "" {
		p.Printer.Print(resp.Body)
	}
	return nil
}

// ShowHelp prints the built-in help text.
func (p *Processor) ShowHelp() {
	p.Printer.Print(console.FormatHelp(defaults.HelpText, p.Color))
}

// PrintError prints a non-fatal command failure.
func (p *Processor) PrintError(err error) {
	p.Printer.Print(console.FormatError("Error", err.Error(), p.Color))
}

func (p *Processor) shortcut(ctx context.Context, s esl.Sender, command string) (string, bool, error) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return "", false, nil
	}
	if parts[0] == "/log" {
		out, err := p.setLogLevel(ctx, s, parts[1:])
		return out, true, err
	}

	switch strings.ToLower(parts[0]) {
	case "show":
		out, err := p.show(ctx, s, parts[1:])
		return out, true, err
	case "status", "version":
		body, err := apiBody(ctx, s, strings.ToLower(parts[0]))
		return body, true, err
	case "uptime":
		body, err := apiBody(ctx, s, "status")
		if err != nil {
			return "", true, err
		}
		return ExtractUptime(body), true, nil
	case "reload":
		if len(parts) > 1 {
			body, err := apiBody(ctx, s, "reload "+parts[1])
			if err != nil {
				return "", true, err
			}
			return fmt.Sprintf("Reloaded module: %s\n%s", parts[1], body), true, nil
		}
		body, err := apiBody(ctx, s, "reloadxml")
		if err != nil {
			return "", true, err
		}
		return "Reloaded XML configuration\n" + body, true, nil
	case "originate":
		if len(parts) < 3 {
			return "Usage: originate <call_url> <destination>", true, nil
		}
		body, err := apiBody(ctx, s, "originate "+strings.Join(parts[1:], " "))
		if err != nil {
			return "", true, err
		}
		return "Originate command executed\n" + body, true, nil
	}
	return "", false, nil
}

func (p *Processor) setLogLevel(ctx context.Context, s esl.Sender, args []string) (string, error) {
	if len(args) == 0 {
		return fscli.LogLevelUsage(), nil
	}
	level, err := fscli.ParseLogLevel(args[0])
	if err != nil {
		return err.Error(), nil
	}

	var resp *esl.Response
	if level == fscli.LogNoLog {
		resp, err = esl.NoLog(ctx, s)
	} else {
		resp, err = esl.Log(ctx, s, level.String())
	}
	if err != nil {
		return "", err
	}
	if !resp.IsSuccess() {
		reply := resp.ReplyText()
		if reply == "" {
			reply = "Unknown error"
		}
		return "Failed to set log level: " + reply, nil
	}
	return fmt.Sprintf("+OK log level %s [%d]", level, int(level)), nil
}

func (p *Processor) show(ctx context.Context, s esl.Sender, args []string) (string, error) {
	if len(args) == 0 {
		return showUsage, nil
	}
	sub := strings.ToLower(args[0])
	command, ok := showCommands[sub]
	if !ok {
		return fmt.Sprintf("Unknown show command: %s\n%s", sub, showAvailable), nil
	}
	if sub == "channels" && len(args) > 1 && args[1] == "count" {
		command = "show channels count"
	}
	return apiBody(ctx, s, command)
}

// ExtractUptime picks the "UP ..." line out of the status output.
func ExtractUptime(status string) string {
	for _, line := range strings.Split(status, "\n") {
		if strings.Contains(line, "UP") &&
			(strings.Contains(line, "years") || strings.Contains(line, "days") || strings.Contains(line, "hours")) {
			return strings.TrimSpace(line)
		}
	}
	return "Uptime information not found"
}

func apiBody(ctx context.Context, s esl.Sender, command string) (string, error) {
	resp, err := esl.API(ctx, s, command)
	if err != nil {
		return "", err
	}
	return resp.Body, nil
}
