package rope

import (
	"testing"
	"unicode/utf8"
)

// FuzzFromString tests tree creation from arbitrary strings.
func FuzzFromString(f *testing.F) {
	f.Add("")
	f.Add("hello")
	f.Add("hello\nworld")
	f.Add("hello\r\nworld")
	f.Add("日本語")
	f.Add("emoji 🎉 test")
	f.Add("\x00\x01\x02")
	f.Add("bad \x80\xff\nbytes")

	f.Fuzz(func(t *testing.T, s string) {
		r := FromString(s, WithChunkCapacity(16))
		s = ValidUTF8(s)
		if r.Len() != utf8.RuneCountInString(s) {
			t.Errorf("length mismatch: got %d, want %d", r.Len(), utf8.RuneCountInString(s))
		}
		if r.String() != s {
			t.Errorf("content mismatch")
		}
		if err := r.Validate(); err != nil {
			t.Fatal(err)
		}
	})
}

// FuzzEdit applies an insert followed by a delete and checks both against
// a rune slice.
func FuzzEdit(f *testing.F) {
	f.Add("hello", 0, "x", 0, 1)
	f.Add("hello", 5, "x", 2, 4)
	f.Add("hello\nworld", 3, "日本語", 1, 8)
	f.Add("", 0, "test", 0, 4)

	f.Fuzz(func(t *testing.T, initial string, offset int, insert string, start, end int) {
		if !utf8.ValidString(initial) || !utf8.ValidString(insert) {
			return
		}

		r := FromString(initial, WithChunkCapacity(16))
		ref := []rune(initial)

		offset = clamp(offset, 0, len(ref))
		if err := r.InsertAt(offset, insert); err != nil {
			t.Fatal(err)
		}
		ref = append(ref[:offset], append([]rune(insert), ref[offset:]...)...)

		start = clamp(start, 0, len(ref))
		end = clamp(end, start, len(ref))
		if err := r.Delete(start, end); err != nil {
			t.Fatal(err)
		}
		ref = append(ref[:start], ref[end:]...)

		if r.String() != string(ref) {
			t.Errorf("content mismatch: got %q, want %q", r.String(), string(ref))
		}
		if err := r.Validate(); err != nil {
			t.Fatal(err)
		}
	})
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
