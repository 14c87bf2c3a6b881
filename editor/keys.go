package editor

import (
	"bufio"
	"strconv"
	"strings"
)

type keyKind int

const (
	keyNone keyKind = iota
	keyRune
	keyEnter
	keyTab
	keyBackspace
	keyDelete
	keyLeft
	keyRight
	keyUp
	keyDown
	keyHome
	keyEnd
	keyInterrupt // Ctrl-C
	keyEOF       // Ctrl-D
	keyKillLine  // Ctrl-U
	keyKillEnd   // Ctrl-K
	keyKillWord  // Ctrl-W
	keyClear     // Ctrl-L
	keyFunction
)

// key is one decoded keystroke. text holds the UTF-8 bytes of a keyRune;
// fn is 1-12 for keyFunction.
type key struct {
	kind keyKind
	text []byte
	fn   int
}

var controlKeys = map[byte]keyKind{
	1:   keyHome,      // Ctrl-A
	2:   keyLeft,      // Ctrl-B
	3:   keyInterrupt, // Ctrl-C
	4:   keyEOF,       // Ctrl-D
	5:   keyEnd,       // Ctrl-E
	6:   keyRight,     // Ctrl-F
	8:   keyBackspace, // Ctrl-H
	9:   keyTab,
	10:  keyEnter,
	11:  keyKillEnd,  // Ctrl-K
	12:  keyClear,    // Ctrl-L
	13:  keyEnter,
	14:  keyDown,     // Ctrl-N
	16:  keyUp,       // Ctrl-P
	21:  keyKillLine, // Ctrl-U
	23:  keyKillWord, // Ctrl-W
	127: keyBackspace,
}

// tildeFunctionKeys maps "ESC [ n ~" parameters to function key numbers.
var tildeFunctionKeys = map[int]int{
	11: 1, 12: 2, 13: 3, 14: 4, 15: 5,
	17: 6, 18: 7, 19: 8, 20: 9, 21: 10,
	23: 11, 24: 12,
}

// maxCSIParams bounds the parameter bytes read from one escape sequence.
const maxCSIParams = 16

// readKey reads one keystroke, consuming a whole escape sequence or UTF-8
// sequence.
func readKey(r *bufio.Reader) (key, error) {
	b, err := r.ReadByte()
	if err != nil {
		return key{}, err
	}
	if b == 27 {
		return readEscape(r)
	}
	if kind, ok := controlKeys[b]; ok {
		return key{kind: kind}, nil
	}
	if b < 32 {
		return key{kind: keyNone}, nil
	}

	ch := []byte{b}
	for i := 1; i < utf8RuneLen(b); i++ {
		c, err := r.ReadByte()
		if err != nil {
			return key{}, err
		}
		ch = append(ch, c)
	}
	return key{kind: keyRune, text: ch}, nil
}

// readEscape decodes the bytes after ESC. An ESC with nothing buffered behind
// it, or followed by anything other than '[' or 'O', is a standalone key and
// leaves the following byte unread.
func readEscape(r *bufio.Reader) (key, error) {
	if r.Buffered() == 0 {
		return key{kind: keyNone}, nil
	}
	b, err := r.ReadByte()
	if err != nil {
		return key{}, err
	}
	switch b {
	case 'O': // SS3: xterm F1-F4 and application-mode cursor keys
		c, err := r.ReadByte()
		if err != nil {
			return key{}, err
		}
		if c >= 'P' && c <= 'S' {
			return key{kind: keyFunction, fn: int(c-'P') + 1}, nil
		}
		return cursorKey(c), nil
	case '[':
	default:
		_ = r.UnreadByte()
		return key{kind: keyNone}, nil
	}

	c, err := r.ReadByte()
	if err != nil {
		return key{}, err
	}
	if c == '[' { // linux console F1-F5: ESC [ [ A..E
		d, err := r.ReadByte()
		if err != nil {
			return key{}, err
		}
		if d >= 'A' && d <= 'E' {
			return key{kind: keyFunction, fn: int(d-'A') + 1}, nil
		}
		return key{kind: keyNone}, nil
	}

	var params []byte
	for (c >= '0' && c <= '9') || c == ';' {
		if len(params) >= maxCSIParams {
			return key{kind: keyNone}, nil
		}
		params = append(params, c)
		if c, err = r.ReadByte(); err != nil {
			return key{}, err
		}
	}

	switch c {
	case '~':
		first, _, _ := strings.Cut(string(params), ";")
		n, _ := strconv.Atoi(first)
		switch n {
		case 1, 7:
			return key{kind: keyHome}, nil
		case 4, 8:
			return key{kind: keyEnd}, nil
		case 3:
			return key{kind: keyDelete}, nil
		}
		if fn, ok := tildeFunctionKeys[n]; ok {
			return key{kind: keyFunction, fn: fn}, nil
		}
		return key{kind: keyNone}, nil
	case 'P', 'Q', 'R', 'S': // modified F1-F4: ESC [ 1 ; m P
		return key{kind: keyFunction, fn: int(c-'P') + 1}, nil
	}
	return cursorKey(c), nil
}

func cursorKey(c byte) key {
	switch c {
	case 'A':
		return key{kind: keyUp}
	case 'B':
		return key{kind: keyDown}
	case 'C':
		return key{kind: keyRight}
	case 'D':
		return key{kind: keyLeft}
	case 'H':
		return key{kind: keyHome}
	case 'F':
		return key{kind: keyEnd}
	}
	return key{kind: keyNone}
}

// utf8RuneLen returns the expected byte length of a UTF-8 sequence
// from its leading byte.
func utf8RuneLen(lead byte) int {
	if lead < 0xC0 {
		return 1
	}
	if lead < 0xE0 {
		return 2
	}
	if lead < 0xF0 {
		return 3
	}
	return 4
}
