package transform

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/dshills/bigtext/internal/engine"
)

// ErrInvalidJSON indicates a document that does not parse as JSON.
var ErrInvalidJSON = errors.New("invalid JSON")

// Fold is a foldable JSON container. Range covers the text between its
// brackets; Depth is 0 for the top-level value.
type Fold struct {
	Range engine.Range
	Depth int
	Array bool
	Path  string
}

// JSONFolds finds foldable objects and arrays in a JSON document and
// collapses them through a Collapser.
type JSONFolds struct {
	src       engine.Reader
	collapser *Collapser
	// MultilineOnly restricts folds to containers spanning several lines.
	MultilineOnly bool
}

// NewJSONFolds binds JSON folding of src to c.
func NewJSONFolds(src engine.Reader, c *Collapser) *JSONFolds {
	return &JSONFolds{src: src, collapser: c, MultilineOnly: true}
}

// Folds returns every fold candidate in document order. Containers with no
// content between their brackets are skipped.
func (j *JSONFolds) Folds() ([]Fold, error) {
	text := j.src.String()
	if !gjson.Valid(text) {
		return nil, ErrInvalidJSON
	}
	root := gjson.Parse(text)
	base := len(text) - len(root.Raw)
	raw := strings.TrimRight(root.Raw, " \t\r\n")

	var byteFolds []byteFold
	collectFolds(&byteFolds, raw, base, 0, "")

	// byte offsets to rune offsets in one pass over the text
	offsets := make([]int, 0, 2*len(byteFolds))
	for _, f := range byteFolds {
		offsets = append(offsets, f.start, f.end)
	}
	slices.Sort(offsets)
	runes := make(map[int]int, len(offsets))
	ri := runeIndex{text: text}
	for _, b := range offsets {
		runes[b] = ri.at(b)
	}

	out := make([]Fold, 0, len(byteFolds))
	for _, f := range byteFolds {
		out = append(out, Fold{
			Range: engine.Range{Start: runes[f.start], End: runes[f.end]},
			Depth: f.depth,
			Array: f.array,
			Path:  f.path,
		})
	}
	return out, nil
}

type byteFold struct {
	start, end int
	depth      int
	array      bool
	path       string
}

// collectFolds appends the container raw, found at byte offset at, and the
// containers nested in it. Folds are appended in document order.
func collectFolds(dst *[]byteFold, raw string, at, depth int, path string) {
	if len(raw) < 2 || (raw[0] != '{' && raw[0] != '[') {
		return
	}
	array := raw[0] == '['
	if strings.TrimSpace(raw[1:len(raw)-1]) != "" {
		*dst = append(*dst, byteFold{start: at + 1, end: at + len(raw) - 1, depth: depth, array: array, path: path})
	}

	// Members are visited in order, so each one is searched for after the
	// previous one.
	cursor := 1
	n := 0
	gjson.Result{Type: gjson.JSON, Raw: raw}.ForEach(func(key, value gjson.Result) bool {
		if key.Raw != "" {
			if k := strings.Index(raw[cursor:], key.Raw); k >= 0 {
				cursor += k + len(key.Raw)
			}
		}
		k := strings.Index(raw[cursor:], value.Raw)
		if k < 0 {
			return false
		}
		start := cursor + k
		cursor = start + len(value.Raw)
		if value.IsObject() || value.IsArray() {
			p := key.String()
			if array {
				p = strconv.Itoa(n)
			}
			if path != "" {
				p = path + "." + p
			}
			collectFolds(dst, value.Raw, at+start, depth+1, p)
		}
		n++
		return true
	})
}

// runeIndex converts ascending byte offsets to rune offsets.
type runeIndex struct {
	text  string
	byteI int
	runeI int
}

func (ri *runeIndex) at(b int) int {
	if b < ri.byteI {
		ri.byteI, ri.runeI = 0, 0
	}
	ri.runeI += utf8.RuneCountInString(ri.text[ri.byteI:b])
	ri.byteI = b
	return ri.runeI
}

func (j *JSONFolds) candidates() ([]Fold, error) {
	folds, err := j.Folds()
	if err != nil {
		return nil, err
	}
	if !j.MultilineOnly {
		return folds, nil
	}
	out := folds[:0]
	for _, f := range folds {
		text, err := j.src.Substring(f.Range.Start, f.Range.End)
		if err != nil {
			return nil, err
		}
		if strings.Contains(text, "\n") {
			out = append(out, f)
		}
	}
	return out, nil
}

// FoldLevel collapses every container at the given depth, replacing the
// collapsed ranges.
func (j *JSONFolds) FoldLevel(depth int) error {
	folds, err := j.candidates()
	if err != nil {
		return err
	}
	var ranges []engine.Range
	for _, f := range folds {
		if f.Depth == depth {
			ranges = append(ranges, f.Range)
		}
	}
	return j.collapser.SetCollapsedRanges(ranges)
}

// FoldAll collapses every container below the top-level value.
func (j *JSONFolds) FoldAll() error {
	return j.FoldLevel(1)
}

// FoldAt collapses the innermost container holding offset and returns its
// range.
func (j *JSONFolds) FoldAt(offset int) (engine.Range, error) {
	folds, err := j.candidates()
	if err != nil {
		return engine.Range{}, err
	}
	best := -1
	for i, f := range folds {
		if f.Range.Contains(offset) && (best < 0 || folds[best].Range.ContainsRange(f.Range)) {
			best = i
		}
	}
	if best < 0 {
		return engine.Range{}, fmt.Errorf("no foldable container at %d: %w", offset, engine.ErrOutOfRange)
	}
	r := folds[best].Range
	return r, j.collapser.Collapse(r)
}
