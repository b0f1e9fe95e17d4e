package archive

import (
	"fmt"
	"image"

	"github.com/jchantrell/gmdata/internal/iff"
)

const tpagSize = 22

// TPAGResource places a rectangle of a texture sheet: where it is cut from
// (X, Y, Width, Height), where it is drawn (Target*) and the bounding box of
// the original image.
type TPAGResource struct {
	span

	X, Y, Width, Height int

	TargetX, TargetY, TargetWidth, TargetHeight int

	BoundingWidth, BoundingHeight int

	// SheetIndex indexes the texture list; negative means no sheet.
	SheetIndex int

	sheet *TextureResource
	a     *Archive
}

func (t *TPAGResource) Kind() Kind { return KindTPAG }

// Sheet returns the texture the rectangle is cut from, or nil when the
// sheet index does not resolve.
func (t *TPAGResource) Sheet() *TextureResource { return t.sheet }

// Rect returns the source rectangle within the sheet.
func (t *TPAGResource) Rect() image.Rectangle {
	return image.Rect(t.X, t.Y, t.X+t.Width, t.Y+t.Height)
}

// Image cuts the rectangle out of its sheet. A rectangle without a sheet
// renders as a placeholder.
func (t *TPAGResource) Image() (image.Image, error) {
	return t.a.cache.GetOrCompute(fmt.Sprintf("tpag:%d", t.Absolute()), func() (image.Image, error) {
		if t.sheet == nil {
			return placeholder(t.Width, t.Height), nil
		}
		sheet, err := t.sheet.Image()
		if err != nil {
			return nil, err
		}
		img, err := cropImage(sheet, t.Rect())
		if err != nil {
			return nil, fmt.Errorf("atlas rect 0x%08x on texture %d: %w", t.Absolute(), t.sheet.Index, err)
		}
		return img, nil
	})
}

func (t *TPAGResource) String() string {
	return fmt.Sprintf("TPAGResource [x=%d, y=%d, w=%d, h=%d, sheet=%d @ 0x%08x]",
		t.X, t.Y, t.Width, t.Height, t.SheetIndex, t.Absolute())
}

func (a *Archive) decodeTPAGs(c *iff.Chunk) error {
	ptrs, err := readPointers(c, 0)
	if err != nil {
		return err
	}

	a.tpags = make([]*TPAGResource, 0, len(ptrs))
	for i, ptr := range ptrs {
		off, err := entryOffset(c, ptr)
		if err != nil {
			return fmt.Errorf("atlas rect %d: %w", i, err)
		}
		t, err := a.decodeTPAG(c, off)
		if err != nil {
			return fmt.Errorf("atlas rect %d at 0x%08x: %w", i, ptr, err)
		}
		a.tpags = append(a.tpags, t)
		a.register(ptr, t)
	}
	return nil
}

func (a *Archive) decodeTPAG(c *iff.Chunk, off int) (*TPAGResource, error) {
	s, err := newSpan(c, off, tpagSize)
	if err != nil {
		return nil, err
	}

	cur := c.Cursor(off)
	var f [11]int
	for i := range f {
		f[i] = int(cur.Int16())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}

	t := &TPAGResource{
		span:           s,
		X:              f[0],
		Y:              f[1],
		Width:          f[2],
		Height:         f[3],
		TargetX:        f[4],
		TargetY:        f[5],
		TargetWidth:    f[6],
		TargetHeight:   f[7],
		BoundingWidth:  f[8],
		BoundingHeight: f[9],
		SheetIndex:     f[10],
		a:              a,
	}

	if t.X < 0 || t.Y < 0 {
		return nil, iff.Errorf(iff.KindInvariantViolation, "illegal location (%d, %d)", t.X, t.Y)
	}
	if t.Width <= 0 || t.Height <= 0 {
		return nil, iff.Errorf(iff.KindInvariantViolation, "illegal dimensions %dx%d", t.Width, t.Height)
	}

	if t.SheetIndex >= 0 && t.SheetIndex < len(a.textures) {
		t.sheet = a.textures[t.SheetIndex]
	} else {
		a.log.Warn("Atlas rect has no valid sheet", "offset", t.Absolute(), "sheet", t.SheetIndex, "textures", len(a.textures))
	}
	return t, nil
}
