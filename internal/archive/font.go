package archive

import (
	"fmt"
	"image"
	"sort"

	"github.com/jchantrell/gmdata/internal/iff"
)

// Kerning adjusts the advance when Glyph is followed by Other.
type Kerning struct {
	Other  rune
	Amount int
}

func parseKerning(v int32) Kerning {
	return Kerning{Other: rune(v & 0xffff), Amount: int(v >> 16)}
}

// Glyph is one character cell of a font sheet.
type Glyph struct {
	Char          rune
	X, Y          int
	Width, Height int
	Shift         int
	Offset        int
	Kerning       Kerning

	font *FontResource
}

// Image cuts the glyph out of the font's atlas rect.
func (g *Glyph) Image() (image.Image, error) {
	key := fmt.Sprintf("glyph:%d:%d", g.font.Absolute(), g.Char)
	return g.font.a.cache.GetOrCompute(key, func() (image.Image, error) {
		sheet, err := g.font.Sheet.Image()
		if err != nil {
			return nil, err
		}
		return cropImage(sheet, image.Rect(g.X, g.Y, g.X+g.Width, g.Y+g.Height))
	})
}

func (g *Glyph) String() string {
	return fmt.Sprintf("Glyph [font=[%s, %s], char=%q, kerning=%+v]", g.font.DisplayName, g.font.CodeName, g.Char, g.Kerning)
}

// FontResource is a bitmap font: metrics plus glyph cells on one atlas rect.
type FontResource struct {
	span

	CodeName     string
	DisplayName  string
	Size         int
	Bold         bool
	Italic       bool
	RangeStart   rune
	RangeEnd     rune
	Charset      int
	Antialiasing int
	ScaleX       float32
	ScaleY       float32
	Sheet        *TPAGResource

	glyphs map[rune]*Glyph
	a      *Archive
}

func (f *FontResource) Kind() Kind { return KindFont }

// Glyph returns the cell for r.
func (f *FontResource) Glyph(r rune) (*Glyph, error) {
	g, ok := f.glyphs[r]
	if !ok {
		return nil, iff.Errorf(iff.KindNotFound, "font %s has no glyph for %q", f.CodeName, r)
	}
	return g, nil
}

// CanDisplay reports whether every rune of s has a glyph.
func (f *FontResource) CanDisplay(s string) bool {
	for _, r := range s {
		if _, ok := f.glyphs[r]; !ok {
			return false
		}
	}
	return true
}

// Glyphs returns every glyph ordered by character.
func (f *FontResource) Glyphs() []*Glyph {
	out := make([]*Glyph, 0, len(f.glyphs))
	for _, g := range f.glyphs {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Char < out[j].Char })
	return out
}

func (f *FontResource) String() string {
	return fmt.Sprintf("FontResource [name=(%s, %s), size=%d, bold=%t, italic=%t, glyphs=%d]",
		f.DisplayName, f.CodeName, f.Size, f.Bold, f.Italic, len(f.glyphs))
}

func (a *Archive) decodeFonts(c *iff.Chunk) error {
	ptrs, err := readPointers(c, 0)
	if err != nil {
		return err
	}

	a.fonts = make([]*FontResource, 0, len(ptrs))
	a.fontByName = make(map[string]*FontResource, 2*len(ptrs))
	for i, ptr := range ptrs {
		off, err := entryOffset(c, ptr)
		if err != nil {
			return fmt.Errorf("font %d: %w", i, err)
		}
		f, err := a.decodeFont(c, off)
		if err != nil {
			return fmt.Errorf("font %d at 0x%08x: %w", i, ptr, err)
		}
		a.fonts = append(a.fonts, f)
		a.fontByName[f.DisplayName] = f
		a.fontByName[f.CodeName] = f
		a.register(ptr, f)
	}
	return nil
}

func (a *Archive) decodeFont(c *iff.Chunk, off int) (*FontResource, error) {
	cur := c.Cursor(off)
	codePtr := int64(cur.Uint32())
	displayPtr := int64(cur.Uint32())
	size := cur.Int32()
	bold := cur.Bool()
	italic := cur.Bool()
	packed := cur.Int32()
	end := cur.Int32()
	sheetPtr := int64(cur.Uint32())
	scaleX := cur.Float32()
	scaleY := cur.Float32()
	if err := cur.Err(); err != nil {
		return nil, err
	}

	glyphPtrs, err := readPointers(c, cur.Pos())
	if err != nil {
		return nil, fmt.Errorf("glyph table: %w", err)
	}

	f := &FontResource{
		Size:         int(size),
		Bold:         bold,
		Italic:       italic,
		RangeStart:   rune(packed & 0xffff),
		Charset:      int(packed>>16) & 0xff,
		Antialiasing: int(packed >> 24),
		RangeEnd:     rune(end),
		ScaleX:       scaleX,
		ScaleY:       scaleY,
		glyphs:       make(map[rune]*Glyph, len(glyphPtrs)),
		a:            a,
	}
	if f.CodeName, err = a.stringAt(codePtr); err != nil {
		return nil, fmt.Errorf("code name: %w", err)
	}
	if f.DisplayName, err = a.stringAt(displayPtr); err != nil {
		return nil, fmt.Errorf("display name: %w", err)
	}
	if f.Sheet, err = resourceAs[*TPAGResource](a, sheetPtr); err != nil {
		return nil, iff.Errorf(iff.KindDanglingReference, "font %s atlas rect 0x%08x: %w", f.CodeName, sheetPtr, err)
	}
	if f.span, err = newSpan(c, off, cur.Pos()+4+4*len(glyphPtrs)-off); err != nil {
		return nil, err
	}

	for j, p := range glyphPtrs {
		g, err := f.decodeGlyph(c, p)
		if err != nil {
			return nil, fmt.Errorf("font %s glyph %d: %w", f.CodeName, j, err)
		}
		f.glyphs[g.Char] = g
	}
	return f, nil
}

func (f *FontResource) decodeGlyph(c *iff.Chunk, ptr int64) (*Glyph, error) {
	off, err := entryOffset(c, ptr)
	if err != nil {
		return nil, err
	}
	cur := c.Cursor(off)
	g := &Glyph{
		Char:   rune(cur.Uint16()),
		X:      int(cur.Int16()),
		Y:      int(cur.Int16()),
		Width:  int(cur.Int16()),
		Height: int(cur.Int16()),
		Shift:  int(cur.Int16()),
		Offset: int(cur.Int16()),
		font:   f,
	}
	g.Kerning = parseKerning(cur.Int32())
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return g, nil
}
