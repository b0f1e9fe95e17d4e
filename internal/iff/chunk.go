package iff

import (
	"fmt"
	"strings"
)

// HeaderSize is the size of a chunk header: a 4-byte tag and a 4-byte length.
const HeaderSize = 8

// Chunk is one tagged record of a container. Its payload may itself be a
// container, in which case Children returns the nested chunks.
type Chunk struct {
	Tag string

	// Offset counts the bytes consumed in the parent container before this
	// chunk's header.
	Offset int64

	// Base is the absolute position of the parent container's first byte.
	Base int64

	data     []byte
	children *File
}

// Data returns the chunk payload. The slice aliases the archive buffer.
func (c *Chunk) Data() []byte { return c.data }

// Len returns the payload length in bytes.
func (c *Chunk) Len() int { return len(c.data) }

// Start returns the absolute file position of the first payload byte.
func (c *Chunk) Start() int64 { return c.Base + c.Offset + HeaderSize }

// End returns the absolute file position just past the payload.
func (c *Chunk) End() int64 { return c.Start() + int64(len(c.data)) }

// HasChildren reports whether the payload parsed as a nested container.
func (c *Chunk) HasChildren() bool { return c.children != nil }

// Children returns the nested chunks in file order, or nil for a leaf.
func (c *Chunk) Children() []*Chunk {
	if c.children == nil {
		return nil
	}
	return c.children.Chunks()
}

// Child returns the last nested chunk carrying tag.
func (c *Chunk) Child(tag string) (*Chunk, error) {
	if c.children == nil {
		return nil, missingChunk(tag)
	}
	return c.children.Chunk(tag)
}

// Contains reports whether the absolute position lies inside the payload.
func (c *Chunk) Contains(abs int64) bool {
	return abs >= c.Start() && abs < c.End()
}

// Relative converts an absolute file position to a payload offset.
func (c *Chunk) Relative(abs int64) int {
	return int(abs - c.Start())
}

func (c *Chunk) String() string {
	return fmt.Sprintf("%s (0x%08x bytes, found 0x%08x bytes from start of parent (%d children))",
		c.Tag, len(c.data), c.Offset, len(c.Children()))
}

// File is a parsed container: chunks in file order plus a tag index where a
// later duplicate tag replaces an earlier one.
type File struct {
	chunks []*Chunk
	index  map[string]*Chunk
}

// Chunks returns the chunks in file order, duplicates included.
func (f *File) Chunks() []*Chunk { return f.chunks }

// Chunk returns the last chunk carrying tag.
func (f *File) Chunk(tag string) (*Chunk, error) {
	c, ok := f.index[tag]
	if !ok {
		return nil, missingChunk(tag)
	}
	return c, nil
}

// Has reports whether any chunk carries tag.
func (f *File) Has(tag string) bool {
	_, ok := f.index[tag]
	return ok
}

// Tree renders the chunk hierarchy, one chunk per line, indented by depth.
func (f *File) Tree() string {
	var b strings.Builder
	writeTree(&b, f.chunks, 0)
	return b.String()
}

func writeTree(b *strings.Builder, chunks []*Chunk, depth int) {
	for _, c := range chunks {
		b.WriteString(strings.Repeat("-", depth))
		b.WriteString(c.String())
		b.WriteByte('\n')
		if c.children != nil {
			writeTree(b, c.children.chunks, depth+1)
		}
	}
}
