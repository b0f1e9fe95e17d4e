package iff

import (
	"encoding/binary"
	"math"
)

// check validates a read of width bytes at payload offset off.
func (c *Chunk) check(off, width int) error {
	if off < 0 || width < 0 || off > len(c.data)-width {
		return outOfBounds(off, width, len(c.data))
	}
	return nil
}

// Bytes returns n payload bytes starting at off.
func (c *Chunk) Bytes(off, n int) ([]byte, error) {
	if err := c.check(off, n); err != nil {
		return nil, err
	}
	return c.data[off : off+n], nil
}

// Byte reads an unsigned 8-bit value.
func (c *Chunk) Byte(off int) (uint8, error) {
	if err := c.check(off, 1); err != nil {
		return 0, err
	}
	return c.data[off], nil
}

// Int8 reads a signed 8-bit value.
func (c *Chunk) Int8(off int) (int8, error) {
	v, err := c.Byte(off)
	return int8(v), err
}

// Uint16 reads a little-endian unsigned 16-bit value.
func (c *Chunk) Uint16(off int) (uint16, error) {
	if err := c.check(off, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(c.data[off:]), nil
}

// Int16 reads a little-endian signed 16-bit value.
func (c *Chunk) Int16(off int) (int16, error) {
	v, err := c.Uint16(off)
	return int16(v), err
}

// Uint32 reads a little-endian unsigned 32-bit value.
func (c *Chunk) Uint32(off int) (uint32, error) {
	if err := c.check(off, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(c.data[off:]), nil
}

// Int32 reads a little-endian signed 32-bit value.
func (c *Chunk) Int32(off int) (int32, error) {
	v, err := c.Uint32(off)
	return int32(v), err
}

// Float32 reads a little-endian IEEE-754 single.
func (c *Chunk) Float32(off int) (float32, error) {
	v, err := c.Uint32(off)
	return math.Float32frombits(v), err
}

// Float64 reads a little-endian IEEE-754 double.
func (c *Chunk) Float64(off int) (float64, error) {
	if err := c.check(off, 8); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(c.data[off:])), nil
}

// Cursor reads consecutive fields from a chunk. The first failed read is
// kept and every later read returns zero, so a record can be decoded field
// by field with a single error check at the end.
type Cursor struct {
	c   *Chunk
	pos int
	err error
}

// Cursor returns a Cursor positioned at payload offset off.
func (c *Chunk) Cursor(off int) *Cursor {
	return &Cursor{c: c, pos: off}
}

// Pos returns the current payload offset.
func (r *Cursor) Pos() int { return r.pos }

// Seek moves to payload offset off.
func (r *Cursor) Seek(off int) { r.pos = off }

// Skip advances n bytes.
func (r *Cursor) Skip(n int) { r.pos += n }

// Err returns the first read error, if any.
func (r *Cursor) Err() error { return r.err }

func (r *Cursor) advance(width int) (int, bool) {
	if r.err != nil {
		return 0, false
	}
	if err := r.c.check(r.pos, width); err != nil {
		r.err = err
		return 0, false
	}
	off := r.pos
	r.pos += width
	return off, true
}

// Int16 reads a little-endian int16 and advances the cursor.
func (r *Cursor) Int16() int16 {
	off, ok := r.advance(2)
	if !ok {
		return 0
	}
	return int16(binary.LittleEndian.Uint16(r.c.data[off:]))
}

// Uint16 reads a little-endian uint16 and advances the cursor.
func (r *Cursor) Uint16() uint16 {
	off, ok := r.advance(2)
	if !ok {
		return 0
	}
	return binary.LittleEndian.Uint16(r.c.data[off:])
}

// Int32 reads a little-endian int32 and advances the cursor.
func (r *Cursor) Int32() int32 {
	off, ok := r.advance(4)
	if !ok {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(r.c.data[off:]))
}

// Uint32 reads a little-endian uint32 and advances the cursor.
func (r *Cursor) Uint32() uint32 {
	off, ok := r.advance(4)
	if !ok {
		return 0
	}
	return binary.LittleEndian.Uint32(r.c.data[off:])
}

// Float32 reads a little-endian IEEE 754 float and advances the cursor.
func (r *Cursor) Float32() float32 {
	off, ok := r.advance(4)
	if !ok {
		return 0
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(r.c.data[off:]))
}

// Bool reads a 32-bit value and reports whether it is non-zero.
func (r *Cursor) Bool() bool {
	return r.Int32() != 0
}
