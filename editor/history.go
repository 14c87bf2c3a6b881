package editor

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultHistorySize caps the entries kept in memory and on disk.
const DefaultHistorySize = 1000

// History is the in-memory command history, oldest first.
type History struct {
	entries []string
	max     int
}

// NewHistory returns an empty history holding at most max entries.
func NewHistory(max int) *History {
	if max <= 0 {
		max = DefaultHistorySize
	}
	return &History{max: max}
}

// Add appends line unless it is blank or repeats the previous entry.
func (h *History) Add(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	if n := len(h.entries); n > 0 && h.entries[n-1] == line {
		return
	}
	h.entries = append(h.entries, line)
	if over := len(h.entries) - h.max; over > 0 {
		h.entries = append(h.entries[:0], h.entries[over:]...)
	}
}

// Len is the number of entries.
func (h *History) Len() int { return len(h.entries) }

// At returns entry i, oldest first.
func (h *History) At(i int) string { return h.entries[i] }

// Recent formats the last n entries, newest first, numbered by position.
func (h *History) Recent(n int) []string {
	var out []string
	for i := len(h.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, fmt.Sprintf("  %d: %s", i+1, h.entries[i]))
	}
	return out
}

// Load reads one entry per line. A missing file is not an error.
func (h *History) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open history %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		h.Add(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read history %s: %w", path, err)
	}
	return nil
}

// Save writes the history, replacing the file.
func (h *History) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	var b strings.Builder
	for _, entry := range h.entries {
		b.WriteString(entry)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("write history %s: %w", path, err)
	}
	return nil
}
