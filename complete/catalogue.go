// Package complete produces tab-completion candidates for the console:
// from the server's console_complete API, from the live channel list for
// uuid_ commands, and from a static catalogue when neither applies.
package complete

import "strings"

// Commands is the static catalogue of common server commands. Multi-word
// entries complete one word at a time.
var Commands = []string{
	"status",
	"version",
	"uptime",
	"help",

	"show",
	"show channels",
	"show channels count",
	"show calls",
	"show registrations",
	"show modules",
	"show interfaces",
	"show api",
	"show application",
	"show codec",
	"show file",
	"show timer",
	"show tasks",
	"show complete",

	"reload",
	"reloadxml",
	"reload mod_sofia",
	"reload mod_dialplan_xml",
	"originate",

	"sofia",
	"sofia status",
	"sofia profile",
	"sofia profile internal",
	"sofia profile external",
	"sofia global",

	"uuid_answer",
	"uuid_hangup",
	"uuid_transfer",
	"uuid_bridge",
	"uuid_park",
	"uuid_hold",
	"uuid_break",
	"uuid_kill",
	"uuid_dump",

	"conference",
	"conference list",
	"conference kick",
	"conference mute",
	"conference unmute",

	"fsctl",
	"fsctl pause",
	"fsctl resume",
	"fsctl shutdown",
	"fsctl crash",
	"fsctl send_sighup",
	"load",
	"unload",
	"bgapi",

	"console",
	"log",

	"db",
	"group",
	"user_exists",

	"hupall",
	"pause",
	"resume",
	"shutdown",
	"expr",
	"eval",
	"expand",
	"global_getvar",
	"global_setvar",
}

// ClientCommands are handled locally and never sent to the server.
var ClientCommands = []string{
	"/help",
	"/quit",
	"/exit",
	"/bye",
	"/history",
	"/clear",
	"/log",
}

// Static completes the word under the cursor from the catalogue. Every
// candidate replaces line[start:pos].
func Static(line string, pos int) (int, []Candidate) {
	start := WordStart(line, pos)
	typed, word := line[:start], line[start:pos]

	catalogue := Commands
	if strings.HasPrefix(strings.TrimLeft(line, " "), "/") {
		catalogue = ClientCommands
	}

	seen := make(map[string]bool)
	var out []Candidate
	for _, cmd := range catalogue {
		if !strings.HasPrefix(cmd, typed) {
			continue
		}
		next := cmd[len(typed):]
		if i := strings.IndexByte(next, ' '); i >= 0 {
			next = next[:i]
		}
		if next == "" || !strings.HasPrefix(next, word) || seen[next] {
			continue
		}
		seen[next] = true
		out = append(out, Candidate{Display: next, Replacement: next})
	}
	return start, out
}
