package editor

import "unicode/utf8"

// line is the edit buffer with a cursor byte offset.
type line struct {
	buf []byte
	pos int
}

func (l *line) String() string { return string(l.buf) }

func (l *line) reset() {
	l.buf = l.buf[:0]
	l.pos = 0
}

func (l *line) set(s string) {
	l.buf = append(l.buf[:0], s...)
	l.pos = len(l.buf)
}

func (l *line) insert(ch []byte) {
	l.buf = append(l.buf, make([]byte, len(ch))...)
	copy(l.buf[l.pos+len(ch):], l.buf[l.pos:len(l.buf)-len(ch)])
	copy(l.buf[l.pos:], ch)
	l.pos += len(ch)
}

func (l *line) backspace() {
	if l.pos == 0 {
		return
	}
	_, size := prevRune(l.buf, l.pos)
	copy(l.buf[l.pos-size:], l.buf[l.pos:])
	l.buf = l.buf[:len(l.buf)-size]
	l.pos -= size
}

func (l *line) delete() {
	if l.pos >= len(l.buf) {
		return
	}
	_, size := utf8.DecodeRune(l.buf[l.pos:])
	copy(l.buf[l.pos:], l.buf[l.pos+size:])
	l.buf = l.buf[:len(l.buf)-size]
}

func (l *line) left() {
	if l.pos > 0 {
		_, size := prevRune(l.buf, l.pos)
		l.pos -= size
	}
}

func (l *line) right() {
	if l.pos < len(l.buf) {
		_, size := utf8.DecodeRune(l.buf[l.pos:])
		l.pos += size
	}
}

func (l *line) killEnd() {
	l.buf = l.buf[:l.pos]
}

// killWord deletes the word before the cursor and the spaces after it.
func (l *line) killWord() {
	start := l.pos
	for start > 0 && l.buf[start-1] == ' ' {
		start--
	}
	for start > 0 && l.buf[start-1] != ' ' {
		start--
	}
	l.replace(start, l.pos, "")
}

// replace swaps buf[start:end] for text and leaves the cursor after it.
func (l *line) replace(start, end int, text string) {
	tail := append([]byte(text), l.buf[end:]...)
	l.buf = append(l.buf[:start], tail...)
	l.pos = start + len(text)
}

// tail is the number of runes after the cursor.
func (l *line) tail() int {
	return utf8.RuneCount(l.buf[l.pos:])
}

// prevRune returns the rune and byte size of the rune before pos.
func prevRune(buf []byte, pos int) (rune, int) {
	if pos <= 0 {
		return 0, 0
	}
	i := pos - 1
	for i > 0 && !utf8.RuneStart(buf[i]) {
		i--
	}
	return utf8.DecodeRune(buf[i:pos])
}
