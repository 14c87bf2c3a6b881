package complete

import (
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// WordStart returns the byte offset where the word under the cursor begins.
// The line is split with a shell word parser so quoted arguments count as one
// word; unbalanced input, or a parse that stops short of the cursor (an
// unquoted '#' opens a shell comment), falls back to splitting on spaces.
func WordStart(line string, pos int) int {
	if pos > len(line) {
		pos = len(line)
	}
	if pos < 0 {
		pos = 0
	}
	head := line[:pos]
	if head == "" || strings.HasSuffix(head, " ") {
		return pos
	}

	start, end := -1, -1
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash))
	err := parser.Words(strings.NewReader(head), func(w *syntax.Word) bool {
		start = int(w.Pos().Offset())
		end = int(w.End().Offset())
		return true
	})
	if err != nil || start < 0 || start > pos || end < pos {
		return spaceWordStart(head)
	}
	return start
}

func spaceWordStart(head string) int {
	return strings.LastIndexByte(head, ' ') + 1
}
