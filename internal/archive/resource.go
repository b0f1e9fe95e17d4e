package archive

import (
	"fmt"

	"github.com/jchantrell/gmdata/internal/iff"
)

// Kind identifies the concrete type behind a Resource.
type Kind int

const (
	KindString Kind = iota
	KindTexture
	KindTPAG
	KindSprite
	KindAudio
	KindAudioGroup
	KindFont
	KindObject
	KindRaw
)

var kindNames = [...]string{
	KindString:     "string",
	KindTexture:    "texture",
	KindTPAG:       "tpag",
	KindSprite:     "sprite",
	KindAudio:      "audio",
	KindAudioGroup: "audio group",
	KindFont:       "font",
	KindObject:     "object",
	KindRaw:        "raw",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Resource is a typed view over a byte range of a chunk payload. Externally
// stored resources have no source chunk.
type Resource interface {
	Kind() Kind

	// Source returns the chunk holding the resource, or nil.
	Source() *iff.Chunk

	// Offset is relative to the source chunk's payload.
	Offset() int

	Len() int

	// Absolute returns the file position of the first byte, or -1 when the
	// resource is not chunk backed.
	Absolute() int64

	Bytes() ([]byte, error)
}

// span is the byte range shared by every resource type.
type span struct {
	src    *iff.Chunk
	off    int
	length int
	fixed  bool
}

func newSpan(src *iff.Chunk, off, length int) (span, error) {
	if off < 0 || length < 0 {
		return span{}, iff.Errorf(iff.KindInvariantViolation, "negative span (offset %d, length %d)", off, length)
	}
	return span{src: src, off: off, length: length, fixed: length > 0}, nil
}

func (s *span) Source() *iff.Chunk { return s.src }
func (s *span) Offset() int        { return s.off }
func (s *span) Len() int           { return s.length }

func (s *span) Absolute() int64 {
	if s.src == nil {
		return -1
	}
	return s.src.Start() + int64(s.off)
}

func (s *span) Bytes() ([]byte, error) {
	if s.src == nil {
		return nil, iff.Errorf(iff.KindInvariantViolation, "resource has no chunk backing")
	}
	return s.src.Bytes(s.off, s.length)
}

// fixLength sets a length that was unknown at construction. It may only be
// called once.
func (s *span) fixLength(n int) error {
	if s.fixed {
		return iff.Errorf(iff.KindInvariantViolation, "length already set to %d", s.length)
	}
	if n < 0 {
		return iff.Errorf(iff.KindInvariantViolation, "negative length %d", n)
	}
	s.length = n
	s.fixed = true
	return nil
}

// RawResource is an offset-table entry of a chunk the decoder has no typed
// model for.
type RawResource struct {
	span
	Index int
}

func (r *RawResource) Kind() Kind { return KindRaw }

func (r *RawResource) String() string {
	return fmt.Sprintf("RawResource [%s #%d @ 0x%08x, %d bytes]", r.src.Tag, r.Index, r.Absolute(), r.length)
}
