package complete

import "strings"

// Completer combines server suggestions with the static catalogue.
type Completer struct {
	// Remote fetches server suggestions for the line; nil or an empty
	// result falls through to the catalogue.
	Remote func(line string, pos int) []string
}

// Complete returns the start of the word under the cursor and the
// candidates replacing line[start:pos].
func (c *Completer) Complete(line string, pos int) (int, []Candidate) {
	if pos > len(line) {
		pos = len(line)
	}
	start := WordStart(line, pos)

	if c.Remote != nil && !strings.HasPrefix(strings.TrimLeft(line, " "), "/") {
		if suggestions := c.Remote(line, pos); len(suggestions) > 0 {
			if cands := Shape(line[start:pos], suggestions); len(cands) > 0 {
				return start, cands
			}
		}
	}

	start, cands := Static(line, pos)
	return start, collapse(line[start:pos], cands)
}
