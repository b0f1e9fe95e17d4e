// Package archivetest builds synthetic data archives for tests.
package archivetest

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/jchantrell/gmdata/internal/iff/ifftest"
)

// SOND flag bits.
const (
	FlagEmbedded   uint32 = 0x01
	FlagCompressed uint32 = 0x02
	FlagRegular    uint32 = 0x64
)

const (
	spriteFrameTable = 56
	spriteMarker     = -1
)

type Sprite struct {
	Name          string
	Width, Height int
	Frames        []int

	// FramePtrs replaces Frames with raw pointers when set.
	FramePtrs []int64
}

type Glyph struct {
	Char       rune
	X, Y, W, H int
	Kerning    int32
}

type Font struct {
	Code, Display string
	Size          int
	RangeStart    int
	RangeEnd      int
	Sheet         int
	Glyphs        []Glyph
}

type Object struct {
	Name           string
	Sprite, Parent int
	Shape          int
}

type Sound struct {
	Name, File, Type string
	Flags            uint32
	Group, Ordinal   int
}

// Archive describes a synthetic archive. Chunks are emitted in an order
// where every cross reference points backwards.
type Archive struct {
	Title        string
	Major, Minor int
	Gen8Major    int
	Bytecode     int
	NoGen8       bool
	Omit         map[string]bool

	Strings  []string
	Textures [][]byte
	TPAGs    [][11]int16
	Sprites  []Sprite

	// SubRecordWords, when non-negative on a v2 archive, writes the -1 frame
	// table marker followed by that many words.
	SubRecordWords int

	Fonts   []Font
	Objects []Object
	Groups  []string
	Sounds  []Sound
	Blobs   [][]byte

	Extra func(f *ifftest.Form)

	// Filled in by Build.
	StrPtr    map[string]int64
	TexPtrs   []int64
	TPAGPtrs  []int64
	BlobPtrs  []int64
	SoundPtrs []int64
}

// New returns an empty version 1 archive titled "Test Game".
func New() *Archive {
	return &Archive{Title: "Test Game", Major: 1, SubRecordWords: -1}
}

func (b *Archive) allStrings() []string {
	seen := map[string]bool{"": true}
	var out []string
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b.Strings {
		add(s)
	}
	add(b.Title)
	for _, s := range b.Sprites {
		add(s.Name)
	}
	for _, f := range b.Fonts {
		add(f.Code)
		add(f.Display)
	}
	for _, o := range b.Objects {
		add(o.Name)
	}
	for _, g := range b.Groups {
		add(g)
	}
	for _, s := range b.Sounds {
		add(s.Name)
		add(s.File)
		add(s.Type)
	}
	return out
}

func (b *Archive) str(s string) uint32 {
	if s == "" {
		return 0
	}
	return uint32(b.StrPtr[s])
}

func (b *Archive) add(f *ifftest.Form, tag string, fn func(start int64) []byte) {
	if b.Omit[tag] {
		return
	}
	f.Add(tag, fn)
}

// Build encodes the archive and records the positions of its entries.
func (b *Archive) Build() []byte {
	var f ifftest.Form
	le := ifftest.LE

	names := b.allStrings()
	b.StrPtr = make(map[string]int64, len(names))
	b.add(&f, "STRG", func(start int64) []byte {
		payload, ptrs := ifftest.Table(start, len(names), func(i int, _ int64) []byte {
			return le(len(names[i]), []byte(names[i]), uint8(0))
		})
		for i, n := range names {
			b.StrPtr[n] = ptrs[i] + 4
		}
		return payload
	})

	if !b.NoGen8 {
		b.add(&f, "GEN8", func(int64) []byte {
			major := b.Major
			if b.Gen8Major != 0 {
				major = b.Gen8Major
			}
			g := make([]byte, 52)
			g[1] = byte(b.Bytecode)
			binary.LittleEndian.PutUint32(g[40:], b.str(b.Title))
			binary.LittleEndian.PutUint32(g[44:], uint32(major))
			binary.LittleEndian.PutUint32(g[48:], uint32(b.Minor))
			return g
		})
	}

	b.add(&f, "TXTR", func(start int64) []byte {
		es := 8
		if b.Major >= 2 {
			es = 12
		}
		n := len(b.Textures)
		entries := start + int64(4+4*n)
		pos := entries + int64(n*es)

		var buf bytes.Buffer
		buf.Write(le(n))
		for i := 0; i < n; i++ {
			buf.Write(le(uint32(entries + int64(i*es))))
		}
		b.TexPtrs = nil
		for _, t := range b.Textures {
			buf.Write(make([]byte, es-4))
			buf.Write(le(uint32(pos)))
			b.TexPtrs = append(b.TexPtrs, pos)
			pos += int64(len(t))
		}
		for _, t := range b.Textures {
			buf.Write(t)
		}
		return buf.Bytes()
	})

	b.add(&f, "TPAG", func(start int64) []byte {
		payload, ptrs := ifftest.Table(start, len(b.TPAGs), func(i int, _ int64) []byte {
			return le(b.TPAGs[i])
		})
		b.TPAGPtrs = ptrs
		return payload
	})

	b.add(&f, "SPRT", func(start int64) []byte {
		payload, _ := ifftest.Table(start, len(b.Sprites), func(i int, _ int64) []byte {
			return b.sprite(b.Sprites[i])
		})
		return payload
	})

	if len(b.Fonts) > 0 {
		b.add(&f, "FONT", func(start int64) []byte {
			payload, _ := ifftest.Table(start, len(b.Fonts), func(i int, at int64) []byte {
				return b.font(b.Fonts[i], at)
			})
			return payload
		})
	}

	if len(b.Objects) > 0 {
		b.add(&f, "OBJT", func(start int64) []byte {
			payload, _ := ifftest.Table(start, len(b.Objects), func(i int, _ int64) []byte {
				o := b.Objects[i]
				return le(b.str(o.Name), o.Sprite, 1, 0, 0, 0, o.Parent, -1, 0, 0, o.Shape,
					float32(0.5), float32(0.1), float32(0), float32(0.1), float32(0.1),
					float32(0), float32(0.2), float32(0), float32(0))
			})
			return payload
		})
	}

	if len(b.Groups) > 0 {
		b.add(&f, "AGRP", func(start int64) []byte {
			payload, _ := ifftest.Table(start, len(b.Groups), func(i int, _ int64) []byte {
				return le(b.str(b.Groups[i]))
			})
			return payload
		})
	}

	b.add(&f, "SOND", func(start int64) []byte {
		payload, ptrs := ifftest.Table(start, len(b.Sounds), func(i int, _ int64) []byte {
			s := b.Sounds[i]
			return le(b.str(s.Name), s.Flags, b.str(s.Type), b.str(s.File), 0,
				float32(1), float32(1), s.Group, s.Ordinal)
		})
		b.SoundPtrs = ptrs
		return payload
	})

	b.add(&f, "AUDO", func(start int64) []byte {
		payload, ptrs := audoTable(start, b.Blobs)
		b.BlobPtrs = ptrs
		return payload
	})

	if b.Extra != nil {
		b.Extra(&f)
	}
	return f.Bytes()
}

func audoTable(start int64, blobs [][]byte) ([]byte, []int64) {
	return ifftest.Table(start, len(blobs), func(i int, _ int64) []byte {
		return ifftest.LE(len(blobs[i]), blobs[i])
	})
}

// Supplement encodes a FORM holding only an AUDO chunk, the shape of an
// audio group file.
func Supplement(blobs ...[]byte) []byte {
	var f ifftest.Form
	f.Add("AUDO", func(start int64) []byte {
		payload, _ := audoTable(start, blobs)
		return payload
	})
	return f.Bytes()
}

func (b *Archive) sprite(s Sprite) []byte {
	le := ifftest.LE
	var buf bytes.Buffer
	buf.Write(le(b.str(s.Name), s.Width, s.Height))
	buf.Write(make([]byte, spriteFrameTable-12))

	if b.Major >= 2 {
		if b.SubRecordWords >= 0 {
			buf.Write(le(spriteMarker, b.SubRecordWords))
			buf.Write(make([]byte, 8+4*b.SubRecordWords))
		} else {
			buf.Write(make([]byte, 20))
		}
	}

	ptrs := s.FramePtrs
	if ptrs == nil {
		for _, idx := range s.Frames {
			ptrs = append(ptrs, b.TPAGPtrs[idx])
		}
	}
	buf.Write(le(len(ptrs)))
	for _, p := range ptrs {
		buf.Write(le(uint32(p)))
	}
	return buf.Bytes()
}

func (b *Archive) font(ft Font, at int64) []byte {
	le := ifftest.LE
	var buf bytes.Buffer
	packed := int32(ft.RangeStart) | 1<<16 | 1<<24
	buf.Write(le(b.str(ft.Code), b.str(ft.Display), ft.Size, 0, 1, packed, ft.RangeEnd,
		uint32(b.TPAGPtrs[ft.Sheet]), float32(1), float32(1)))

	n := len(ft.Glyphs)
	buf.Write(le(n))
	first := at + int64(buf.Len()) + int64(4*n)
	for i := range ft.Glyphs {
		buf.Write(le(uint32(first + int64(18*i))))
	}
	for _, g := range ft.Glyphs {
		buf.Write(le(uint16(g.Char), int16(g.X), int16(g.Y), int16(g.W), int16(g.H),
			int16(g.W), int16(0), g.Kerning))
	}
	return buf.Bytes()
}

// TPAG returns an atlas rect drawn at its natural size.
func TPAG(x, y, w, h, sheet int) [11]int16 {
	return [11]int16{int16(x), int16(y), int16(w), int16(h), 0, 0, int16(w), int16(h), int16(w), int16(h), int16(sheet)}
}

// GradientPNG encodes a w x h sheet whose pixel (x, y) is GradientAt(x, y).
func GradientPNG(tb testing.TB, w, h int) []byte {
	tb.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, GradientAt(x, y))
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		tb.Fatalf("encoding test sheet: %v", err)
	}
	return buf.Bytes()
}

// GradientAt has red x*16 and green y*16.
func GradientAt(x, y int) color.NRGBA {
	return color.NRGBA{R: uint8(x * 16), G: uint8(y * 16), A: 0xff}
}

// NRGBAAt reads the pixel at (x, y) relative to the image origin.
func NRGBAAt(img image.Image, x, y int) color.NRGBA {
	b := img.Bounds()
	return color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
}
