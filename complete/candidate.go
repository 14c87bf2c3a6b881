package complete

import (
	"strings"

	"github.com/google/uuid"
)

// Candidate is one completion. Display is shown in candidate lists;
// Replacement replaces the word under the cursor.
type Candidate struct {
	Display     string
	Replacement string
}

// uuidLen is the length of a canonical 8-4-4-4-12 UUID.
const uuidLen = 36

// channelUUID returns the UUID when s is a channel row of the form
// "<uuid> <created> <name> ... (<state>)".
func channelUUID(s string) (string, bool) {
	if len(s) <= uuidLen || s[uuidLen] != ' ' {
		return "", false
	}
	id := s[:uuidLen]
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

// Shape turns raw server suggestions into candidates for word. Channel rows
// insert only their UUID, a write directive replaces the word outright, and
// other suggestions must extend word. A single result gets a trailing space;
// several results sharing a prefix longer than word all collapse to it.
func Shape(word string, suggestions []string) []Candidate {
	var out []Candidate
	for _, s := range suggestions {
		if text, ok := strings.CutPrefix(s, WriteDirective); ok {
			out = append(out, Candidate{Display: text, Replacement: text})
			continue
		}
		if id, ok := channelUUID(s); ok {
			if strings.HasPrefix(id, word) {
				out = append(out, Candidate{Display: s, Replacement: id + " "})
			}
			continue
		}
		if strings.HasPrefix(s, word) {
			out = append(out, Candidate{Display: s, Replacement: s})
		}
	}
	return collapse(word, out)
}

func collapse(word string, cands []Candidate) []Candidate {
	switch len(cands) {
	case 0:
		return nil
	case 1:
		if !strings.HasSuffix(cands[0].Replacement, " ") {
			cands[0].Replacement += " "
		}
		return cands
	}

	displays := make([]string, len(cands))
	for i, c := range cands {
		displays[i] = c.Display
	}
	if prefix := CommonPrefix(displays); len(prefix) > len(word) {
		for i := range cands {
			cands[i].Replacement = prefix
		}
	}
	return cands
}

// CommonPrefix returns the longest prefix shared by every string, cut on a
// rune boundary.
func CommonPrefix(strs []string) string {
	if len(strs) == 0 {
		return ""
	}
	prefix := []rune(strs[0])
	for _, s := range strs[1:] {
		r := []rune(s)
		n := 0
		for n < len(prefix) && n < len(r) && prefix[n] == r[n] {
			n++
		}
		prefix = prefix[:n]
	}
	return string(prefix)
}
