package rope

import (
	"errors"
	"io"
	"math/rand"
	"strings"
	"testing"
	"testing/iotest"
	"testing/quick"
	"unicode/utf8"
)

func TestNew(t *testing.T) {
	r := New()
	if r.Len() != 0 {
		t.Errorf("New tree should have length 0, got %d", r.Len())
	}
	if !r.IsEmpty() {
		t.Error("New tree should be empty")
	}
	if r.String() != "" {
		t.Errorf("New tree String() should be empty, got %q", r.String())
	}
	if r.LineCount() != 1 {
		t.Errorf("New tree should have 1 line, got %d", r.LineCount())
	}
	if r.Height() != 0 || r.NodeCount() != 0 {
		t.Errorf("New tree height/nodes = %d/%d, want 0/0", r.Height(), r.NodeCount())
	}
	if r.ChunkCapacity() != DefaultChunkCapacity {
		t.Errorf("ChunkCapacity() = %d, want %d", r.ChunkCapacity(), DefaultChunkCapacity)
	}
}

func TestWithChunkCapacityMinimum(t *testing.T) {
	r := New(WithChunkCapacity(1))
	if r.ChunkCapacity() != MinChunkCapacity {
		t.Errorf("ChunkCapacity() = %d, want %d", r.ChunkCapacity(), MinChunkCapacity)
	}
}

func TestFromString(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"single char", "a"},
		{"short string", "hello"},
		{"with newline", "hello\nworld"},
		{"multiple newlines", "a\nb\nc\nd"},
		{"unicode", "hello 世界 🌍"},
		{"long string", strings.Repeat("abcdefghij", 100)},
		{"very long string", strings.Repeat("x", 10000)},
		{"long unicode", strings.Repeat("日本語\n", 500)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := FromString(tt.input, WithChunkCapacity(64))
			if r.String() != tt.input {
				t.Errorf("String() = %q, want %q", r.String(), tt.input)
			}
			if want := utf8.RuneCountInString(tt.input); r.Len() != want {
				t.Errorf("Len() = %d, want %d", r.Len(), want)
			}
			if r.ByteLen() != len(tt.input) {
				t.Errorf("ByteLen() = %d, want %d", r.ByteLen(), len(tt.input))
			}
			if want := strings.Count(tt.input, "\n") + 1; r.LineCount() != want {
				t.Errorf("LineCount() = %d, want %d", r.LineCount(), want)
			}
			if err := r.Validate(); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestAppendSingleLeaf(t *testing.T) {
	r := New(WithChunkCapacity(16))
	r.Append("abc")
	r.Append("defgh")
	r.Append("ijk")

	if got := r.String(); got != "abcdefghijk" {
		t.Errorf("String() = %q, want %q", got, "abcdefghijk")
	}
	if r.LeafCount() != 1 {
		t.Errorf("LeafCount() = %d, want 1", r.LeafCount())
	}
	if err := r.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestAppendFillsLastLeaf(t *testing.T) {
	r := New(WithChunkCapacity(16))
	for i := 0; i < 100; i++ {
		r.Append("0123456789")
	}
	if r.Len() != 1000 {
		t.Fatalf("Len() = %d, want 1000", r.Len())
	}
	// Every leaf but the last is full.
	if want := (1000 + 15) / 16; r.LeafCount() != want {
		t.Errorf("LeafCount() = %d, want %d", r.LeafCount(), want)
	}
	if err := r.Validate(); err != nil {
		t.Fatal(err)
	}
}

// Inserting "1"x64 at offset 64 between two full 64-rune chunks. The
// inserted run becomes its own leaf, so the tree holds 3 leaves and 5
// nodes counting the two internal nodes.
func TestInsertSixtyFourOnesBetweenTwoFullChunks(t *testing.T) {
	r := FromString(strings.Repeat("a", 64)+strings.Repeat("b", 64), WithChunkCapacity(64))
	if r.LeafCount() != 2 {
		t.Fatalf("LeafCount() = %d, want 2", r.LeafCount())
	}

	if err := r.InsertAt(64, strings.Repeat("1", 64)); err != nil {
		t.Fatal(err)
	}

	if r.Len() != 192 {
		t.Errorf("Len() = %d, want 192", r.Len())
	}
	if r.LeafCount() != 3 {
		t.Errorf("LeafCount() = %d, want 3", r.LeafCount())
	}
	if r.NodeCount() != 5 {
		t.Errorf("NodeCount() = %d, want 5", r.NodeCount())
	}
	want := strings.Repeat("a", 64) + strings.Repeat("1", 64) + strings.Repeat("b", 64)
	if r.String() != want {
		t.Errorf("String() mismatch")
	}
	if err := r.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestInsert(t *testing.T) {
	tests := []struct {
		name     string
		initial  string
		offset   int
		text     string
		expected string
	}{
		{"insert at start", "world", 0, "hello ", "hello world"},
		{"insert at end", "hello", 5, " world", "hello world"},
		{"insert in middle", "helloworld", 5, " ", "hello world"},
		{"insert into empty", "", 0, "hello", "hello"},
		{"insert empty string", "hello", 3, "", "hello"},
		{"insert unicode", "hello", 5, " 世界", "hello 世界"},
		{"insert between runes", "世界", 1, "!", "世!界"},
		{"insert long", "ab", 1, strings.Repeat("xyz", 40), "a" + strings.Repeat("xyz", 40) + "b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := FromString(tt.initial, WithChunkCapacity(16))
			if err := r.InsertAt(tt.offset, tt.text); err != nil {
				t.Fatal(err)
			}
			if got := r.String(); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
			if err := r.Validate(); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestDelete(t *testing.T) {
	tests := []struct {
		name       string
		initial    string
		start, end int
		expected   string
	}{
		{"delete from start", "hello world", 0, 6, "world"},
		{"delete from end", "hello world", 5, 11, "hello"},
		{"delete middle", "hello world", 5, 6, "helloworld"},
		{"delete all", "hello", 0, 5, ""},
		{"delete nothing", "hello", 2, 2, "hello"},
		{"delete unicode", "hello 世界", 6, 7, "hello 界"},
		{"delete across leaves", strings.Repeat("abcdefgh", 10), 5, 70, "abcdefgh"[:5] + strings.Repeat("abcdefgh", 10)[70:]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := FromString(tt.initial, WithChunkCapacity(16))
			if err := r.Delete(tt.start, tt.end); err != nil {
				t.Fatal(err)
			}
			if got := r.String(); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
			if err := r.Validate(); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestDeleteMergesSmallLeaves(t *testing.T) {
	r := FromString(strings.Repeat("x", 80), WithChunkCapacity(64))
	if r.LeafCount() != 2 {
		t.Fatalf("LeafCount() = %d, want 2", r.LeafCount())
	}

	if err := r.Delete(0, 50); err != nil {
		t.Fatal(err)
	}

	if r.LeafCount() != 1 {
		t.Errorf("LeafCount() = %d, want 1 after low-water merge", r.LeafCount())
	}
	if r.NodeCount() != 1 {
		t.Errorf("NodeCount() = %d, want 1", r.NodeCount())
	}
	if r.String() != strings.Repeat("x", 30) {
		t.Errorf("String() = %q", r.String())
	}
	if err := r.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestOutOfRange(t *testing.T) {
	r := FromString("hello")

	checks := []struct {
		name string
		err  error
	}{
		{"insert negative", r.InsertAt(-1, "x")},
		{"insert past end", r.InsertAt(6, "x")},
		{"delete inverted", r.Delete(3, 2)},
		{"delete past end", r.Delete(0, 6)},
	}
	for _, c := range checks {
		if !errors.Is(c.err, ErrOutOfRange) {
			t.Errorf("%s: err = %v, want ErrOutOfRange", c.name, c.err)
		}
	}
	if _, err := r.Substring(4, 9); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Substring: err = %v, want ErrOutOfRange", err)
	}
	if _, err := r.RuneAt(5); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("RuneAt: err = %v, want ErrOutOfRange", err)
	}
	if r.String() != "hello" {
		t.Errorf("tree modified by rejected calls: %q", r.String())
	}
}

func TestSubstringAndRuneAt(t *testing.T) {
	text := strings.Repeat("αβγδε\n", 40)
	ref := []rune(text)
	r := FromString(text, WithChunkCapacity(16))

	for _, rng := range [][2]int{{0, 0}, {0, 1}, {3, 17}, {15, 33}, {100, 240}, {0, len(ref)}} {
		got, err := r.Substring(rng[0], rng[1])
		if err != nil {
			t.Fatal(err)
		}
		if want := string(ref[rng[0]:rng[1]]); got != want {
			t.Errorf("Substring(%d, %d) = %q, want %q", rng[0], rng[1], got, want)
		}
		again, _ := r.Substring(rng[0], rng[1])
		if again != got {
			t.Errorf("Substring(%d, %d) not idempotent", rng[0], rng[1])
		}
	}
	for _, pos := range []int{0, 5, 16, 17, 239} {
		got, err := r.RuneAt(pos)
		if err != nil {
			t.Fatal(err)
		}
		if got != ref[pos] {
			t.Errorf("RuneAt(%d) = %q, want %q", pos, got, ref[pos])
		}
	}
}

func TestLines(t *testing.T) {
	r := FromString("ab\ncd\n")

	if r.LineCount() != 3 {
		t.Fatalf("LineCount() = %d, want 3", r.LineCount())
	}
	for i, want := range []string{"ab", "cd", ""} {
		got, err := r.FindLineString(i)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("FindLineString(%d) = %q, want %q", i, got, want)
		}
	}

	tests := []struct {
		offset, line, col int
	}{
		{0, 0, 0},
		{2, 0, 2},
		{3, 1, 0},
		{4, 1, 1},
		{6, 2, 0},
	}
	for _, tt := range tests {
		line, col, err := r.FindLineAndColumnFromOffset(tt.offset)
		if err != nil {
			t.Fatal(err)
		}
		if line != tt.line || col != tt.col {
			t.Errorf("FindLineAndColumnFromOffset(%d) = (%d, %d), want (%d, %d)", tt.offset, line, col, tt.line, tt.col)
		}
		off, err := r.OffsetFromLineAndColumn(tt.line, tt.col)
		if err != nil {
			t.Fatal(err)
		}
		if off != tt.offset {
			t.Errorf("OffsetFromLineAndColumn(%d, %d) = %d, want %d", tt.line, tt.col, off, tt.offset)
		}
	}

	if _, err := r.OffsetFromLineAndColumn(1, 3); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("column past line end: err = %v", err)
	}
	if _, err := r.FindLineString(3); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("line past end: err = %v", err)
	}
	if _, _, err := r.FindLineAndColumnFromOffset(7); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("offset past end: err = %v", err)
	}
}

func TestLinesAcrossLeaves(t *testing.T) {
	var sb strings.Builder
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		sb.WriteString(strings.Repeat("é", rng.Intn(40)))
		sb.WriteByte('\n')
	}
	text := sb.String()
	lines := strings.Split(text, "\n")
	r := FromString(text, WithChunkCapacity(16))

	if r.LineCount() != len(lines) {
		t.Fatalf("LineCount() = %d, want %d", r.LineCount(), len(lines))
	}
	offset := 0
	for i, want := range lines {
		got, err := r.FindLineString(i)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Fatalf("FindLineString(%d) = %q, want %q", i, got, want)
		}
		start, _ := r.LineStart(i)
		if start != offset {
			t.Fatalf("LineStart(%d) = %d, want %d", i, start, offset)
		}
		offset += utf8.RuneCountInString(want) + 1
	}
}

func TestRandomEditsMatchReference(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	alphabet := []rune("abcdef\nxyz世界é")
	randText := func(n int) string {
		rs := make([]rune, n)
		for i := range rs {
			rs[i] = alphabet[rng.Intn(len(alphabet))]
		}
		return string(rs)
	}

	for _, capacity := range []int{16, 64, 1024} {
		r := New(WithChunkCapacity(capacity))
		var ref []rune

		for i := 0; i < 2000; i++ {
			switch op := rng.Intn(3); {
			case op == 0 || len(ref) == 0:
				pos := rng.Intn(len(ref) + 1)
				s := randText(rng.Intn(100))
				if err := r.InsertAt(pos, s); err != nil {
					t.Fatal(err)
				}
				ref = append(ref[:pos], append([]rune(s), ref[pos:]...)...)
			case op == 1:
				start := rng.Intn(len(ref) + 1)
				end := start + rng.Intn(len(ref)-start+1)
				if err := r.Delete(start, end); err != nil {
					t.Fatal(err)
				}
				ref = append(ref[:start], ref[end:]...)
			default:
				s := randText(rng.Intn(50))
				r.Append(s)
				ref = append(ref, []rune(s)...)
			}

			if r.Len() != len(ref) {
				t.Fatalf("capacity %d step %d: Len() = %d, want %d", capacity, i, r.Len(), len(ref))
			}
			if i%50 == 0 {
				if err := r.Validate(); err != nil {
					t.Fatalf("capacity %d step %d: %v", capacity, i, err)
				}
			}
		}
		if r.String() != string(ref) {
			t.Fatalf("capacity %d: content mismatch", capacity)
		}
		if err := r.Validate(); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRoundTripQuick(t *testing.T) {
	f := func(s string, cut uint16) bool {
		if !utf8.ValidString(s) {
			return true
		}
		r := FromString(s, WithChunkCapacity(16))
		pos := int(cut) % (r.Len() + 1)
		if err := r.InsertAt(pos, s); err != nil {
			return false
		}
		rs := []rune(s)
		want := string(rs[:pos]) + s + string(rs[pos:])
		return r.String() == want && r.Validate() == nil
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestFromReader(t *testing.T) {
	text := strings.Repeat("héllo 世界 🌍\n", 50)
	r, err := FromReader(iotest.OneByteReader(strings.NewReader(text)), WithChunkCapacity(32))
	if err != nil {
		t.Fatal(err)
	}
	if r.String() != text {
		t.Error("FromReader content mismatch")
	}
	if err := r.Validate(); err != nil {
		t.Fatal(err)
	}

	_, err = FromReader(iotest.ErrReader(io.ErrUnexpectedEOF))
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("FromReader error = %v, want ErrUnexpectedEOF", err)
	}
}

func TestNewReader(t *testing.T) {
	text := strings.Repeat("line of text\n", 100)
	r := FromString(text, WithChunkCapacity(16))
	got, err := io.ReadAll(r.NewReader())
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != text {
		t.Error("NewReader content mismatch")
	}
}

func TestRebuild(t *testing.T) {
	r := New(WithChunkCapacity(16))
	for i := 0; i < 200; i++ {
		if err := r.InsertAt(r.Len()/2, "ab\n"); err != nil {
			t.Fatal(err)
		}
	}
	before := r.String()
	r.Rebuild()
	if r.String() != before {
		t.Error("Rebuild changed content")
	}
	if err := r.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestValidateDetectsCorruption(t *testing.T) {
	r := FromString(strings.Repeat("abc", 30), WithChunkCapacity(16))
	r.nodes[r.root].length++
	if err := r.Validate(); !errors.Is(err, ErrInvariantViolation) {
		t.Errorf("Validate() = %v, want ErrInvariantViolation", err)
	}
	r.Rebuild()
	if err := r.Validate(); err != nil {
		t.Errorf("Validate() after Rebuild = %v", err)
	}
}

func TestHeightIsLogarithmic(t *testing.T) {
	r := New(WithChunkCapacity(16))
	for i := 0; i < 4096; i++ {
		r.Append(strings.Repeat("z", 16))
	}
	// 4096 leaves; an AVL tree of that size is at most ~1.44*log2(n) high.
	if h := r.Height(); h > 19 {
		t.Errorf("Height() = %d for %d leaves", h, r.LeafCount())
	}
}

func TestNewlineOffsetCountsRunesLikeByteOffset(t *testing.T) {
	// chunks built directly may still hold invalid bytes
	c := NewChunk("\x80\nb\xffé\nc")
	for k := 1; k <= c.Lines(); k++ {
		off := c.newlineOffset(k)
		if got := c.data[c.byteOffset(off)]; got != '\n' {
			t.Errorf("newlineOffset(%d) = %d, byte there is %q", k, off, got)
		}
	}
	if got := c.newlineOffset(2); got != 5 {
		t.Errorf("newlineOffset(2) = %d, want 5", got)
	}
}

func TestInvalidUTF8Replaced(t *testing.T) {
	r := FromString("a\x80b", WithChunkCapacity(16))
	if err := r.InsertAt(1, "\xff\xfe\n"); err != nil {
		t.Fatal(err)
	}
	r.Append("\xc3")
	if got, want := r.String(), "a\uFFFD\n\uFFFDb\uFFFD"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if err := r.Validate(); err != nil {
		t.Fatal(err)
	}
	if got, err := r.LineStart(1); err != nil || got != 3 {
		t.Errorf("LineStart(1) = %d, %v; want 3", got, err)
	}
}
