package archive

import (
	"fmt"

	"github.com/jchantrell/gmdata/internal/iff"
)

// readPointers reads an offset table: a 32-bit count at payload offset at,
// followed by that many absolute file positions.
func readPointers(c *iff.Chunk, at int) ([]int64, error) {
	n, err := c.Int32(at)
	if err != nil {
		return nil, fmt.Errorf("reading %s entry count: %w", c.Tag, err)
	}
	if n < 0 {
		return nil, iff.Errorf(iff.KindInvariantViolation, "%s entry count %d is negative", c.Tag, n)
	}

	// Validate the whole table once before allocating for it.
	if _, err := c.Bytes(at+4, 4*int(n)); err != nil {
		return nil, fmt.Errorf("reading %s offset table: %w", c.Tag, err)
	}

	ptrs := make([]int64, n)
	for i := range ptrs {
		v, err := c.Uint32(at + 4 + 4*i)
		if err != nil {
			return nil, err
		}
		ptrs[i] = int64(v)
	}
	return ptrs, nil
}

// inferSizes derives entry sizes for back-to-back entries: each entry runs
// to the next pointer and the last one runs to end.
func inferSizes(ptrs []int64, end int64) []int {
	sizes := make([]int, len(ptrs))
	for i := range ptrs {
		next := end
		if i+1 < len(ptrs) {
			next = ptrs[i+1]
		}
		sizes[i] = int(next - ptrs[i])
	}
	return sizes
}

// entryOffset converts an absolute pointer into an offset inside c.
func entryOffset(c *iff.Chunk, ptr int64) (int, error) {
	if !c.Contains(ptr) {
		return 0, iff.Errorf(iff.KindDanglingReference, "pointer 0x%08x lies outside %s (0x%08x-0x%08x)", ptr, c.Tag, c.Start(), c.End())
	}
	return c.Relative(ptr), nil
}

// PointerList exposes the offset table of any chunk as raw resources. Null
// pointers are skipped.
type PointerList struct {
	chunk   *iff.Chunk
	entries []*RawResource
	byPtr   map[int64]*RawResource
}

// NewPointerList decodes the offset table of c. SEQN tables start after a
// 4-byte version field.
func NewPointerList(c *iff.Chunk) (*PointerList, error) {
	at := 0
	if c.Tag == "SEQN" {
		at = 4
	}

	all, err := readPointers(c, at)
	if err != nil {
		return nil, err
	}

	var ptrs []int64
	var indexes []int
	for i, p := range all {
		if p == 0 {
			continue
		}
		ptrs = append(ptrs, p)
		indexes = append(indexes, i)
	}

	pl := &PointerList{chunk: c, byPtr: make(map[int64]*RawResource, len(ptrs))}
	for i, size := range inferSizes(ptrs, c.End()) {
		off, err := entryOffset(c, ptrs[i])
		if err != nil {
			return nil, err
		}
		s, err := newSpan(c, off, size)
		if err != nil {
			return nil, fmt.Errorf("%s entry %d: %w", c.Tag, indexes[i], err)
		}
		r := &RawResource{span: s, Index: indexes[i]}
		pl.entries = append(pl.entries, r)
		pl.byPtr[ptrs[i]] = r
	}
	return pl, nil
}

// Chunk returns the chunk the list was read from.
func (p *PointerList) Chunk() *iff.Chunk { return p.chunk }

func (p *PointerList) Len() int { return len(p.entries) }

// Entries returns the non-null entries in table order.
func (p *PointerList) Entries() []*RawResource {
	return append([]*RawResource(nil), p.entries...)
}

// At returns the i-th non-null entry.
func (p *PointerList) At(i int) (*RawResource, error) {
	if i < 0 || i >= len(p.entries) {
		return nil, iff.Errorf(iff.KindNotFound, "%s entry %d of %d", p.chunk.Tag, i, len(p.entries))
	}
	return p.entries[i], nil
}

// AtPointer returns the entry starting at an absolute position.
func (p *PointerList) AtPointer(abs int64) (*RawResource, error) {
	r, ok := p.byPtr[abs]
	if !ok {
		return nil, iff.Errorf(iff.KindNotFound, "no %s entry at 0x%08x", p.chunk.Tag, abs)
	}
	return r, nil
}
