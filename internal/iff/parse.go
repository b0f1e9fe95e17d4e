// Package iff parses the tagged, length-prefixed container format that wraps
// every section of a GameMaker data archive. Each record is a 4-byte tag, a
// 32-bit length and that many payload bytes; payloads are themselves parsed
// as containers when they look like one.
package iff

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Sentinel is the tag that ends a container early. Chunks parsed before it
// are kept.
const Sentinel = "RASP"

// Parse decodes a top-level container. The input must hold at least one
// chunk header.
func Parse(data []byte) (*File, error) {
	if len(data) < HeaderSize {
		return nil, Errorf(KindTooShort, "need at least %d bytes, got %d", HeaderSize, len(data))
	}
	return ParseAt(data, 0)
}

// ParseAt decodes a container whose first byte sits at absolute position
// base in the enclosing file.
func ParseAt(data []byte, base int64) (*File, error) {
	f := &File{index: make(map[string]*Chunk)}

	pos := 0
	for pos < len(data) {
		if len(data)-pos < 4 {
			return nil, Errorf(KindTruncated, "tag at offset %d", pos)
		}
		raw := data[pos : pos+4]
		tag := string(raw)
		if tag == Sentinel {
			break
		}
		if !validTag(raw) {
			return nil, &FormatError{
				Kind: KindInvalidTag,
				Msg:  fmt.Sprintf("bytes %02x %02x %02x %02x at offset %d", raw[0], raw[1], raw[2], raw[3], pos),
				Tag:  tag,
			}
		}
		if len(data)-pos < HeaderSize {
			return nil, Errorf(KindTruncated, "length of chunk %s at offset %d", tag, pos)
		}

		length, err := chunkLength(data[pos+4 : pos+8])
		if err != nil {
			return nil, fmt.Errorf("chunk %s at offset %d: %w", tag, pos, err)
		}
		remaining := len(data) - pos - HeaderSize
		if length > remaining {
			return nil, Errorf(KindTruncatedPayload, "chunk %s declares %d bytes, %d remain", tag, length, remaining)
		}

		c := &Chunk{
			Tag:    tag,
			Offset: int64(pos),
			Base:   base,
			data:   data[pos+HeaderSize : pos+HeaderSize+length],
		}
		if length > 0 {
			if sub, err := ParseAt(c.data, c.Start()); err == nil {
				c.children = sub
			}
		}

		f.chunks = append(f.chunks, c)
		f.index[tag] = c
		pos += HeaderSize + length
	}

	return f, nil
}

// ReadFrom reads r to the end and parses the result as a top-level container.
func ReadFrom(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &FormatError{Kind: KindUnexpectedEOF, Msg: "reading container", Err: err}
	}
	return Parse(data)
}

// chunkLength reads a little-endian length, falling back to big-endian when
// the little-endian value is negative as a signed 32-bit integer.
func chunkLength(b []byte) (int, error) {
	if n := int32(binary.LittleEndian.Uint32(b)); n >= 0 {
		return int(n), nil
	}
	if n := int32(binary.BigEndian.Uint32(b)); n >= 0 {
		return int(n), nil
	}
	return 0, Errorf(KindInvalidLength, "bytes %02x %02x %02x %02x are negative in both byte orders", b[0], b[1], b[2], b[3])
}

// validTag reports whether every byte is a word character.
func validTag(b []byte) bool {
	for _, c := range b {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
		default:
			return false
		}
	}
	return true
}
