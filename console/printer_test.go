package console

import (
	"bytes"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// recorder keeps every Write and PrintAbove call as a separate chunk.
type recorder struct {
	mu     sync.Mutex
	chunks []string
	fail   bool
}

func (r *recorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = append(r.chunks, string(p))
	return len(p), nil
}

func (r *recorder) PrintAbove(text string) error {
	if r.fail {
		return errors.New("sink closed")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = append(r.chunks, text)
	return nil
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.chunks...)
}

func TestPrintAppendsNewline(t *testing.T) {
	rec := &recorder{}
	p := NewPrinter(rec)
	p.Print("UP 0 years, 1 day")
	p.Print("already terminated\n")
	assert.Equal(t, []string{"UP 0 years, 1 day\n", "already terminated\n"}, rec.all())
}

func TestPrintPrefersSink(t *testing.T) {
	fallback := &recorder{}
	sink := &recorder{}
	p := NewPrinter(fallback)
	p.SetSink(sink)

	p.Print("event")
	assert.Equal(t, []string{"event\n"}, sink.all())
	assert.Empty(t, fallback.all())

	p.SetSink(nil)
	p.Print("after")
	assert.Equal(t, []string{"after\n"}, fallback.all())
}

func TestPrintFallsBackWhenSinkFails(t *testing.T) {
	fallback := &recorder{}
	p := NewPrinter(fallback)
	p.SetSink(&recorder{fail: true})

	p.Print("still visible")
	assert.Equal(t, []string{"still visible\n"}, fallback.all())
}

func TestPrintUnderContentionWritesDirectly(t *testing.T) {
	fallback := &recorder{}
	p := NewPrinter(fallback)
	p.mu.Lock()
	p.Print("not blocked")
	p.mu.Unlock()
	assert.Equal(t, []string{"not blocked\n"}, fallback.all())
}

// Each Print reaches the output as exactly one chunk, whichever path it took.
func TestPrintIsAtomic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		texts := rapid.SliceOfN(rapid.StringMatching(`[a-zA-Z0-9 \[\]:.-]{0,60}`), 1, 40).Draw(t, "texts")
		producers := rapid.IntRange(1, 6).Draw(t, "producers")
		sinkMode := rapid.IntRange(0, 2).Draw(t, "sink")

		rec := &recorder{}
		p := NewPrinter(rec)
		switch sinkMode {
		case 1:
			p.SetSink(rec)
		case 2:
			p.SetSink(&recorder{fail: true})
		}

		var wg sync.WaitGroup
		for i := 0; i < producers; i++ {
			wg.Add(1)
			go func(first int) {
				defer wg.Done()
				for j := first; j < len(texts); j += producers {
					p.Print(texts[j])
				}
			}(i)
		}
		wg.Wait()

		want := make([]string, len(texts))
		for i, s := range texts {
			want[i] = s + "\n"
		}
		got := rec.all()
		sort.Strings(want)
		sort.Strings(got)
		if len(got) != len(want) {
			t.Fatalf("got %d chunks, want %d", len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("chunk %d = %q, want %q", i, got[i], want[i])
			}
		}
	})
}

func TestWriterPrintsEachWrite(t *testing.T) {
	rec := &recorder{}
	w := Writer(NewPrinter(rec))
	n, err := w.Write([]byte("level=WARN msg=\"reconnecting\"\n"))
	require.NoError(t, err)
	assert.Equal(t, 30, n)
	assert.Equal(t, []string{"level=WARN msg=\"reconnecting\"\n"}, rec.all())
}

func TestCRLFWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &CRLFWriter{W: &buf}
	n, err := w.Write([]byte("a\nb\r\nc\n"))
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, "a\r\nb\r\nc\r\n", buf.String())
}
