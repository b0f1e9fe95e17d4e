package archive

import (
	"encoding/binary"
	"fmt"
	"image"

	"github.com/jchantrell/gmdata/internal/iff"
)

// SpriteResource is a named, ordered list of atlas rects. Most of a
// sprite's data lives in TPAG and TXTR; the SPRT entry only points at it.
type SpriteResource struct {
	span

	Name          string
	Width, Height int

	namePtr int64
	frames  []*TPAGResource
	ptrs    []int64
}

func (s *SpriteResource) Kind() Kind { return KindSprite }

// Frames returns the sprite's atlas rects in animation order.
func (s *SpriteResource) Frames() []*TPAGResource {
	return append([]*TPAGResource(nil), s.frames...)
}

// FrameImages cuts every frame out of its sheet.
func (s *SpriteResource) FrameImages() ([]image.Image, error) {
	out := make([]image.Image, len(s.frames))
	for i, f := range s.frames {
		img, err := f.Image()
		if err != nil {
			return nil, fmt.Errorf("sprite %s frame %d: %w", s.Name, i, err)
		}
		out[i] = img
	}
	return out, nil
}

// Texture returns the first frame.
func (s *SpriteResource) Texture() (image.Image, error) {
	if len(s.frames) == 0 {
		return nil, iff.Errorf(iff.KindNotFound, "sprite %s has no frames", s.Name)
	}
	return s.frames[0].Image()
}

// Bytes returns a compact record of the name pointer, the frame count and
// the frame pointers.
func (s *SpriteResource) Bytes() ([]byte, error) {
	out := make([]byte, 4*(len(s.ptrs)+2))
	binary.LittleEndian.PutUint32(out, uint32(s.namePtr))
	binary.LittleEndian.PutUint32(out[4:], uint32(len(s.ptrs)))
	for i, p := range s.ptrs {
		binary.LittleEndian.PutUint32(out[8+4*i:], uint32(p))
	}
	return out, nil
}

func (s *SpriteResource) String() string {
	return fmt.Sprintf("SpriteResource [offset=0x%08x, name=%s, frames=%d]", s.Absolute(), s.Name, len(s.frames))
}

// spriteLayout locates the frame table inside a sprite entry.
type spriteLayout interface {
	frameTable(c *iff.Chunk, entry int) (int, error)
}

// fixedSpriteLayout has the frame table at a constant offset.
type fixedSpriteLayout int

func (l fixedSpriteLayout) frameTable(*iff.Chunk, int) (int, error) { return int(l), nil }

const (
	spriteFrameTableV1    = 56
	spriteSubRecordMarker = -1
)

// detectedSpriteLayout inspects the first sprite to find where the frame
// table sits and reuses that offset for the rest of the chunk. A -1 marker
// at the v1 frame table position means a variable-length sub-record comes
// first; anything else means the table is 20 bytes further on.
type detectedSpriteLayout struct {
	offset   int
	detected bool
}

func (l *detectedSpriteLayout) frameTable(c *iff.Chunk, entry int) (int, error) {
	if l.detected {
		return l.offset, nil
	}

	marker, err := c.Int32(entry + spriteFrameTableV1)
	if err != nil {
		return 0, fmt.Errorf("locating frame table: %w", err)
	}
	if marker == spriteSubRecordMarker {
		n, err := c.Int32(entry + spriteFrameTableV1 + 4)
		if err != nil {
			return 0, fmt.Errorf("locating frame table: %w", err)
		}
		l.offset = spriteFrameTableV1 + 16 + int(n)*4
	} else {
		l.offset = spriteFrameTableV1 + 20
	}
	l.detected = true
	return l.offset, nil
}

func spriteLayoutFor(major int) spriteLayout {
	if major <= 1 {
		return fixedSpriteLayout(spriteFrameTableV1)
	}
	return &detectedSpriteLayout{}
}

func (a *Archive) decodeSprites(c *iff.Chunk) error {
	ptrs, err := readPointers(c, 0)
	if err != nil {
		return err
	}

	layout := spriteLayoutFor(a.major)
	a.sprites = make([]*SpriteResource, 0, len(ptrs))
	a.spriteByName = make(map[string]*SpriteResource, len(ptrs))

	for i, ptr := range ptrs {
		off, err := entryOffset(c, ptr)
		if err != nil {
			return fmt.Errorf("sprite %d: %w", i, err)
		}
		s, err := a.decodeSprite(c, off, layout)
		if err != nil {
			return fmt.Errorf("sprite %d at 0x%08x: %w", i, ptr, err)
		}
		a.sprites = append(a.sprites, s)
		a.spriteByName[s.Name] = s
		a.register(ptr, s)
	}
	return nil
}

func (a *Archive) decodeSprite(c *iff.Chunk, off int, layout spriteLayout) (*SpriteResource, error) {
	cur := c.Cursor(off)
	namePtr := int64(cur.Uint32())
	width := int(cur.Int32())
	height := int(cur.Int32())
	if err := cur.Err(); err != nil {
		return nil, err
	}

	name, err := a.stringAt(namePtr)
	if err != nil {
		return nil, fmt.Errorf("sprite name: %w", err)
	}

	table, err := layout.frameTable(c, off)
	if err != nil {
		return nil, fmt.Errorf("sprite %s: %w", name, err)
	}
	frames, err := readPointers(c, off+table)
	if err != nil {
		return nil, fmt.Errorf("sprite %s frames: %w", name, err)
	}

	s, err := newSpan(c, off, 4*(len(frames)+2))
	if err != nil {
		return nil, err
	}
	sprite := &SpriteResource{
		span:    s,
		Name:    name,
		Width:   width,
		Height:  height,
		namePtr: namePtr,
		ptrs:    frames,
		frames:  make([]*TPAGResource, len(frames)),
	}

	for j, p := range frames {
		t, err := resourceAs[*TPAGResource](a, p)
		if err != nil {
			return nil, iff.Errorf(iff.KindDanglingReference,
				"atlas rect 0x%08x at index %d for sprite at 0x%08x (%s): %w", p, j, sprite.Absolute(), name, err)
		}
		sprite.frames[j] = t
	}
	return sprite, nil
}
