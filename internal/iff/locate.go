package iff

import (
	"fmt"
	"io"
)

// ReadChunk follows path (for example "FORM", "AUDO") through the container
// held by r, reading only chunk headers until the last chunk, which is
// copied and parsed at its absolute position so pointers inside it resolve.
func ReadChunk(r io.ReaderAt, size int64, path ...string) (*Chunk, error) {
	if len(path) == 0 {
		return nil, Errorf(KindNotFound, "empty chunk path")
	}

	start, end := int64(0), size
	var hdr [HeaderSize]byte
	for depth, tag := range path {
		found := false
		for pos := start; pos < end; {
			if end-pos < HeaderSize {
				return nil, Errorf(KindTruncated, "header at offset %d", pos)
			}
			if _, err := r.ReadAt(hdr[:], pos); err != nil {
				return nil, &FormatError{Kind: KindUnexpectedEOF, Msg: fmt.Sprintf("header at offset %d", pos), Err: err}
			}
			got := string(hdr[:4])
			if got == Sentinel {
				break
			}
			if !validTag(hdr[:4]) {
				return nil, &FormatError{
					Kind: KindInvalidTag,
					Msg:  fmt.Sprintf("bytes %02x %02x %02x %02x at offset %d", hdr[0], hdr[1], hdr[2], hdr[3], pos),
					Tag:  got,
				}
			}
			length, err := chunkLength(hdr[4:])
			if err != nil {
				return nil, fmt.Errorf("chunk %s at offset %d: %w", got, pos, err)
			}
			payload := pos + HeaderSize
			if int64(length) > end-payload {
				return nil, Errorf(KindTruncatedPayload, "chunk %s declares %d bytes, %d remain", got, length, end-payload)
			}

			if got != tag {
				pos = payload + int64(length)
				continue
			}
			if depth < len(path)-1 {
				start, end = payload, payload+int64(length)
				found = true
				break
			}

			buf := make([]byte, HeaderSize+length)
			if _, err := r.ReadAt(buf, pos); err != nil {
				return nil, &FormatError{Kind: KindUnexpectedEOF, Msg: fmt.Sprintf("chunk %s at offset %d", got, pos), Err: err}
			}
			f, err := ParseAt(buf, pos)
			if err != nil {
				return nil, err
			}
			return f.chunks[0], nil
		}
		if !found {
			return nil, missingChunk(tag)
		}
	}
	return nil, missingChunk(path[len(path)-1])
}
