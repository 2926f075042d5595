package process

import (
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"unicode/utf8"
)

// chunkReader returns one chunk per Read, then err.
type chunkReader struct {
	chunks [][]byte
	err    error
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.chunks) == 0 {
		return 0, c.err
	}
	n := copy(p, c.chunks[0])
	c.chunks = c.chunks[1:]
	return n, nil
}

func runPump(t *testing.T, r io.Reader) ([]Event, int64, error) {
	t.Helper()
	events := make(chan Event, 64)
	var counter atomic.Int64
	err := pump("7", KindStdout, r, &counter, events)
	close(events)

	var out []Event
	for ev := range events {
		out = append(out, ev)
	}
	return out, counter.Load(), err
}

func TestPump_KeepsSplitRunesWhole(t *testing.T) {
	text := []byte("build ✓ ok 🚀")
	rocket := []byte("🚀")
	split := len("build ") + 1
	splitRocket := len(text) - len(rocket) + 2

	r := &chunkReader{
		chunks: [][]byte{text[:split], text[split:splitRocket], text[splitRocket:]},
		err:    io.EOF,
	}
	events, n, err := runPump(t, r)
	if err != nil {
		t.Fatalf("pump() error = %v", err)
	}
	if n != int64(len(text)) {
		t.Errorf("counter = %d, want %d", n, len(text))
	}

	var joined []byte
	for _, ev := range events {
		if !utf8.Valid(ev.Data) {
			t.Errorf("event %q is not valid UTF-8", ev.Data)
		}
		joined = append(joined, ev.Data...)
	}
	if string(joined) != string(text) {
		t.Errorf("joined = %q, want %q", joined, text)
	}
}

func TestPump_FlushesDanglingBytesAtEOF(t *testing.T) {
	r := &chunkReader{chunks: [][]byte{[]byte("abc\xe2\x9c")}, err: io.EOF}
	events, _, err := runPump(t, r)
	if err != nil {
		t.Fatalf("pump() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if string(events[0].Data) != "abc" || string(events[1].Data) != "\xe2\x9c" {
		t.Errorf("events = %q, %q, want \"abc\", \"\\xe2\\x9c\"", events[0].Data, events[1].Data)
	}
}

func TestPump_ReadErrorBecomesStderr(t *testing.T) {
	boom := errors.New("pipe broke")
	r := &chunkReader{chunks: [][]byte{[]byte("partial")}, err: boom}
	events, _, err := runPump(t, r)
	if !errors.Is(err, boom) {
		t.Fatalf("pump() error = %v, want %v", err, boom)
	}
	last := events[len(events)-1]
	if last.Kind != KindStderr || string(last.Data) != "pipe broke" {
		t.Errorf("last event = %s %q, want stderr %q", last.Kind, last.Data, "pipe broke")
	}
}

func TestIncompleteTail(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"empty", "", 0},
		{"ascii", "abc", 0},
		{"complete three byte", "a✓", 0},
		{"complete four byte", "🚀", 0},
		{"one of three", "a\xe2", 1},
		{"two of three", "a\xe2\x9c", 2},
		{"three of four", "\xf0\x9f\x9a", 3},
		{"invalid lead byte", "a\xff", 0},
		{"stray continuation", "a\x80", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := incompleteTail([]byte(tt.in)); got != tt.want {
				t.Errorf("incompleteTail(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}
