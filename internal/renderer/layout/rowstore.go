package layout

import (
	"slices"
	"sort"
)

// rowBlockSize is the target number of row starts per block.
const rowBlockSize = 256

// rowBlock holds consecutive row starts relative to base.
// Shifting a whole block only touches base.
type rowBlock struct {
	base   int
	starts []int // ascending, starts[0] == 0 after creation
}

func newRowBlock(abs []int) *rowBlock {
	b := &rowBlock{base: abs[0], starts: make([]int, len(abs))}
	for i, v := range abs {
		b.starts[i] = v - b.base
	}
	return b
}

func (b *rowBlock) first() int {
	return b.base + b.starts[0]
}

// rowStore is a blocked list of row start offsets.
type rowStore struct {
	blocks   []*rowBlock
	firstRow []int // firstRow[i] is the row index of blocks[i].starts[0]
	total    int
}

// reset replaces every row.
func (s *rowStore) reset(starts []int) {
	s.blocks = s.blocks[:0]
	s.blocks = append(s.blocks, chunkRows(starts)...)
	s.reindex()
}

func chunkRows(abs []int) []*rowBlock {
	var out []*rowBlock
	for i := 0; i < len(abs); i += rowBlockSize {
		out = append(out, newRowBlock(abs[i:min(i+rowBlockSize, len(abs))]))
	}
	return out
}

func (s *rowStore) reindex() {
	s.firstRow = s.firstRow[:0]
	n := 0
	for _, b := range s.blocks {
		s.firstRow = append(s.firstRow, n)
		n += len(b.starts)
	}
	s.total = n
}

func (s *rowStore) len() int {
	return s.total
}

// locate returns the block holding row and the row's index inside it.
func (s *rowStore) locate(row int) (int, int) {
	bi := sort.Search(len(s.firstRow), func(i int) bool { return s.firstRow[i] > row }) - 1
	return bi, row - s.firstRow[bi]
}

// start returns the start offset of row. The caller checks bounds.
func (s *rowStore) start(row int) int {
	bi, k := s.locate(row)
	b := s.blocks[bi]
	return b.base + b.starts[k]
}

// upperBound returns the number of rows whose start is <= off.
func (s *rowStore) upperBound(off int) int {
	bi := sort.Search(len(s.blocks), func(i int) bool { return s.blocks[i].first() > off })
	if bi == 0 {
		return 0
	}
	b := s.blocks[bi-1]
	k := sort.Search(len(b.starts), func(i int) bool { return b.base+b.starts[i] > off })
	return s.firstRow[bi-1] + k
}

// replace substitutes starts for rows [from, to) and shifts every row at or
// after to by delta. Only the blocks holding the replaced rows are rebuilt;
// later blocks are shifted through their base.
func (s *rowStore) replace(from, to int, starts []int, delta int) {
	if len(s.blocks) == 0 {
		s.reset(starts)
		return
	}

	bi, _ := s.locate(min(from, s.total-1))
	bj, _ := s.locate(min(max(to-1, from), s.total-1))
	lo := s.firstRow[bi]

	// Pull in a following block when the affected run is small so blocks
	// do not fragment under repeated edits.
	size := 0
	for i := bi; i <= bj; i++ {
		size += len(s.blocks[i].starts)
	}
	if size < rowBlockSize/2 && bj+1 < len(s.blocks) {
		bj++
	}

	var abs []int
	for i := bi; i <= bj; i++ {
		b := s.blocks[i]
		for _, v := range b.starts {
			abs = append(abs, b.base+v)
		}
	}

	merged := make([]int, 0, len(abs)-(to-from)+len(starts))
	merged = append(merged, abs[:from-lo]...)
	merged = append(merged, starts...)
	for _, v := range abs[to-lo:] {
		merged = append(merged, v+delta)
	}

	if delta != 0 {
		for _, b := range s.blocks[bj+1:] {
			b.base += delta
		}
	}
	s.blocks = slices.Replace(s.blocks, bi, bj+1, chunkRows(merged)...)
	s.reindex()
}

// all returns every row start. Used by tests and diagnostics.
func (s *rowStore) all() []int {
	out := make([]int, 0, s.total)
	for _, b := range s.blocks {
		for _, v := range b.starts {
			out = append(out, b.base+v)
		}
	}
	return out
}
