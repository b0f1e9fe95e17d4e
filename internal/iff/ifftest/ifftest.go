// Package ifftest builds synthetic containers for tests.
package ifftest

import (
	"bytes"
	"encoding/binary"

	"github.com/jchantrell/gmdata/internal/iff"
)

// Chunk encodes one record with a little-endian length.
func Chunk(tag string, payload []byte) []byte {
	out := make([]byte, iff.HeaderSize+len(payload))
	copy(out, tag)
	binary.LittleEndian.PutUint32(out[4:], uint32(len(payload)))
	copy(out[iff.HeaderSize:], payload)
	return out
}

// Concat joins encoded chunks into one container body.
func Concat(chunks ...[]byte) []byte {
	return bytes.Join(chunks, nil)
}

// LE encodes values little-endian. Plain ints are written as int32.
func LE(values ...any) []byte {
	var buf bytes.Buffer
	for _, v := range values {
		if n, ok := v.(int); ok {
			v = int32(n)
		}
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			panic(err)
		}
	}
	return buf.Bytes()
}

// PointerTable lays out a count, one absolute pointer per entry and then the
// entries back to back. start is the absolute position of the table's first
// byte. It returns the table bytes and each entry's absolute position.
func PointerTable(start int64, entries [][]byte) ([]byte, []int64) {
	headerLen := 4 + 4*len(entries)
	ptrs := make([]int64, len(entries))

	pos := start + int64(headerLen)
	for i, e := range entries {
		ptrs[i] = pos
		pos += int64(len(e))
	}

	var buf bytes.Buffer
	buf.Write(LE(len(entries)))
	for _, p := range ptrs {
		buf.Write(LE(uint32(p)))
	}
	for _, e := range entries {
		buf.Write(e)
	}
	return buf.Bytes(), ptrs
}

// Table is PointerTable for entries that embed their own absolute
// position. entry is called once to size each entry and again with the
// final position; it must return the same length both times.
func Table(start int64, n int, entry func(i int, at int64) []byte) ([]byte, []int64) {
	ptrs := make([]int64, n)
	pos := start + int64(4+4*n)
	for i := range ptrs {
		ptrs[i] = pos
		pos += int64(len(entry(i, 0)))
	}

	var buf bytes.Buffer
	buf.Write(LE(n))
	for _, p := range ptrs {
		buf.Write(LE(uint32(p)))
	}
	for i, p := range ptrs {
		buf.Write(entry(i, p))
	}
	return buf.Bytes(), ptrs
}

// Form builds a FORM container whose sub-chunks need to know their own
// absolute payload position while being encoded.
type Form struct {
	body bytes.Buffer
}

// Next returns the absolute payload position the next added chunk will get.
func (f *Form) Next() int64 {
	return int64(iff.HeaderSize + f.body.Len() + iff.HeaderSize)
}

// Add appends a chunk built by fn, which receives the chunk's absolute
// payload position.
func (f *Form) Add(tag string, fn func(start int64) []byte) {
	f.body.Write(Chunk(tag, fn(f.Next())))
}

// AddRaw appends a chunk with a fixed payload.
func (f *Form) AddRaw(tag string, payload []byte) {
	f.body.Write(Chunk(tag, payload))
}

// Bytes returns the encoded FORM chunk.
func (f *Form) Bytes() []byte {
	return Chunk("FORM", f.body.Bytes())
}
