package archive

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/jchantrell/gmdata/internal/archive/archivetest"
	"github.com/jchantrell/gmdata/internal/iff"
	"github.com/jchantrell/gmdata/internal/iff/ifftest"
)

func openArchive(t *testing.T, b *archivetest.Archive, opts *Options) *Archive {
	t.Helper()
	a, err := Open(b.Build(), opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return a
}

func quietOptions() *Options {
	opts := DefaultOptions()
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return opts
}

func TestOpenMinimalSprite(t *testing.T) {
	b := archivetest.New()
	b.NoGen8 = true
	b.Sprites = []archivetest.Sprite{{Name: "hello", Width: 16, Height: 16}}

	a := openArchive(t, b, quietOptions())

	if got := a.Title(); got != "???" {
		t.Errorf("Title() = %q, want ???", got)
	}
	if major, minor := a.Version(); major != 1 || minor != 0 {
		t.Errorf("Version() = %d.%d, want 1.0", major, minor)
	}

	s, err := a.Sprite("hello")
	if err != nil {
		t.Fatalf("Sprite(hello): %v", err)
	}
	if s.Name != "hello" || s.Width != 16 || s.Height != 16 {
		t.Errorf("sprite = %+v", s)
	}
	if len(s.Frames()) != 0 {
		t.Errorf("got %d frames, want 0", len(s.Frames()))
	}
	if _, err := s.Texture(); !errors.Is(err, iff.ErrNotFound) {
		t.Errorf("Texture() error = %v, want NotFound", err)
	}

	str, err := a.StringAt(b.StrPtr["hello"])
	if err != nil || str != "hello" {
		t.Errorf("StringAt = %q, %v", str, err)
	}
	if got := len(a.AudioGroups()); got != 1 || a.AudioGroups()[0].Name != "DEFAULT" {
		t.Errorf("groups = %v, want a single DEFAULT group", a.AudioGroups())
	}
}

func TestOpenReadsGEN8(t *testing.T) {
	b := archivetest.New()
	b.Title = "Undertale"
	b.Minor = 4
	b.Bytecode = 16

	a := openArchive(t, b, quietOptions())
	if a.Title() != "Undertale" {
		t.Errorf("Title() = %q", a.Title())
	}
	if major, minor := a.Version(); major != 1 || minor != 4 {
		t.Errorf("Version() = %d.%d, want 1.4", major, minor)
	}
	if a.BytecodeVersion() != 16 {
		t.Errorf("BytecodeVersion() = %d, want 16", a.BytecodeVersion())
	}
}

func TestOpenMissingChunk(t *testing.T) {
	for _, tag := range requiredChunks {
		t.Run(tag, func(t *testing.T) {
			b := archivetest.New()
			b.Omit = map[string]bool{tag: true}
			_, err := Open(b.Build(), quietOptions())
			if !errors.Is(err, iff.ErrMissingChunk) {
				t.Fatalf("error = %v, want MissingChunk", err)
			}
			if !strings.Contains(err.Error(), tag) {
				t.Errorf("error %q does not name %s", err, tag)
			}
		})
	}
}

func TestOpenRejectsGarbage(t *testing.T) {
	if _, err := Open([]byte{1, 2, 3}, quietOptions()); !errors.Is(err, iff.ErrTooShort) {
		t.Errorf("error = %v, want TooShort", err)
	}
}

func TestInferSizes(t *testing.T) {
	got := inferSizes([]int64{100, 140, 190}, 220)
	if !slices.Equal(got, []int{40, 50, 30}) {
		t.Errorf("inferSizes = %v, want [40 50 30]", got)
	}
	if got := inferSizes(nil, 220); len(got) != 0 {
		t.Errorf("inferSizes(nil) = %v", got)
	}
}

func TestTexturesAndTPAGs(t *testing.T) {
	b := archivetest.New()
	b.Textures = [][]byte{archivetest.GradientPNG(t, 8, 8), archivetest.GradientPNG(t, 4, 4)}
	b.TPAGs = [][11]int16{archivetest.TPAG(2, 3, 4, 2, 0), archivetest.TPAG(0, 0, 2, 2, 1)}

	a := openArchive(t, b, quietOptions())
	texs := a.Textures()
	if len(texs) != 2 {
		t.Fatalf("got %d textures, want 2", len(texs))
	}
	for i, tex := range texs {
		if tex.Absolute() != b.TexPtrs[i] {
			t.Errorf("texture %d at 0x%x, want 0x%x", i, tex.Absolute(), b.TexPtrs[i])
		}
		if tex.Len() != len(b.Textures[i]) {
			t.Errorf("texture %d is %d bytes, want %d", i, tex.Len(), len(b.Textures[i]))
		}
		if tex.Format() != FormatPNG {
			t.Errorf("texture %d format %s", i, tex.Format())
		}
	}

	rect, err := a.TPAGAt(b.TPAGPtrs[0])
	if err != nil {
		t.Fatalf("TPAGAt: %v", err)
	}
	if rect.Sheet() != texs[0] {
		t.Errorf("sheet = %v, want texture 0", rect.Sheet())
	}
	img, err := rect.Image()
	if err != nil {
		t.Fatalf("Image: %v", err)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 2 {
		t.Errorf("crop is %v, want 4x2", img.Bounds())
	}
	if got, want := archivetest.NRGBAAt(img, 1, 1), archivetest.GradientAt(3, 4); got != want {
		t.Errorf("pixel (1,1) = %v, want %v", got, want)
	}
}

func TestTextureLayoutV2(t *testing.T) {
	b := archivetest.New()
	b.Major = 2
	b.Textures = [][]byte{archivetest.GradientPNG(t, 4, 4)}

	a := openArchive(t, b, quietOptions())
	tex := a.Textures()[0]
	if tex.Absolute() != b.TexPtrs[0] || tex.Len() != len(b.Textures[0]) {
		t.Errorf("texture at 0x%x (%d bytes), want 0x%x (%d bytes)", tex.Absolute(), tex.Len(), b.TexPtrs[0], len(b.Textures[0]))
	}
}

func TestForceVersion(t *testing.T) {
	b := archivetest.New()
	b.Major = 2
	b.Gen8Major = 1
	b.Textures = [][]byte{archivetest.GradientPNG(t, 4, 4)}
	data := b.Build()

	if _, err := Open(data, quietOptions()); err == nil {
		t.Fatal("v1 layout over v2 textures should fail")
	}

	opts := quietOptions()
	opts.ForceVersion = 2
	a, err := Open(data, opts)
	if err != nil {
		t.Fatalf("Open with forced version: %v", err)
	}
	if major, _ := a.Version(); major != 2 {
		t.Errorf("major = %d, want 2", major)
	}
}

func TestTPAGValidation(t *testing.T) {
	tests := []struct {
		name string
		rect [11]int16
	}{
		{"negative x", archivetest.TPAG(-1, 0, 2, 2, 0)},
		{"negative y", archivetest.TPAG(0, -3, 2, 2, 0)},
		{"zero width", archivetest.TPAG(0, 0, 0, 2, 0)},
		{"negative height", archivetest.TPAG(0, 0, 2, -2, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := archivetest.New()
			b.Textures = [][]byte{archivetest.GradientPNG(t, 4, 4)}
			b.TPAGs = [][11]int16{tt.rect}
			_, err := Open(b.Build(), quietOptions())
			if !errors.Is(err, iff.ErrInvariantViolation) {
				t.Fatalf("error = %v, want InvariantViolation", err)
			}
			if !strings.HasPrefix(err.Error(), `processing game "Test Game" (GM version 1.0)`) {
				t.Errorf("error %q lacks archive context", err)
			}
		})
	}
}

func TestTPAGWithoutSheet(t *testing.T) {
	b := archivetest.New()
	b.TPAGs = [][11]int16{archivetest.TPAG(0, 0, 4, 4, 7)}

	a := openArchive(t, b, quietOptions())
	rect := a.TPAGs()[0]
	if rect.Sheet() != nil {
		t.Fatalf("Sheet() = %v, want nil", rect.Sheet())
	}
	img, err := rect.Image()
	if err != nil {
		t.Fatalf("Image: %v", err)
	}
	if got := archivetest.NRGBAAt(img, 0, 0); got != placeholderA {
		t.Errorf("top-left = %v, want magenta", got)
	}
	if got := archivetest.NRGBAAt(img, 3, 0); got != placeholderB {
		t.Errorf("top-right = %v, want black", got)
	}
}

func TestTPAGOutsideSheet(t *testing.T) {
	b := archivetest.New()
	b.Textures = [][]byte{archivetest.GradientPNG(t, 4, 4)}
	b.TPAGs = [][11]int16{archivetest.TPAG(2, 2, 4, 4, 0)}

	a := openArchive(t, b, quietOptions())
	if _, err := a.TPAGs()[0].Image(); !errors.Is(err, iff.ErrOutOfBounds) {
		t.Errorf("Image() error = %v, want OutOfBounds", err)
	}
}

func spriteArchive(t *testing.T) *archivetest.Archive {
	b := archivetest.New()
	b.Textures = [][]byte{archivetest.GradientPNG(t, 8, 8)}
	b.TPAGs = [][11]int16{
		archivetest.TPAG(0, 0, 2, 2, 0),
		archivetest.TPAG(2, 0, 2, 2, 0),
		archivetest.TPAG(4, 0, 2, 2, 0),
		archivetest.TPAG(6, 0, 2, 2, 0),
	}
	b.Sprites = []archivetest.Sprite{
		{Name: "spr_foo", Width: 2, Height: 2, Frames: []int{0, 1, 2, 3}},
		{Name: "spr_bar_2", Width: 2, Height: 2, Frames: []int{1}},
	}
	return b
}

func TestSpriteFrames(t *testing.T) {
	b := spriteArchive(t)
	a := openArchive(t, b, quietOptions())

	s, err := a.Sprite("spr_foo")
	if err != nil {
		t.Fatalf("Sprite: %v", err)
	}
	frames := s.Frames()
	if len(frames) != 4 {
		t.Fatalf("got %d frames, want 4", len(frames))
	}
	for i, f := range frames {
		if f.Absolute() != b.TPAGPtrs[i] {
			t.Errorf("frame %d at 0x%x, want 0x%x", i, f.Absolute(), b.TPAGPtrs[i])
		}
	}

	images, err := s.FrameImages()
	if err != nil {
		t.Fatalf("FrameImages: %v", err)
	}
	for i, img := range images {
		if got, want := archivetest.NRGBAAt(img, 0, 0), archivetest.GradientAt(2*i, 0); got != want {
			t.Errorf("frame %d origin = %v, want %v", i, got, want)
		}
	}

	raw, err := s.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if len(raw) != 4*(2+4) {
		t.Errorf("record is %d bytes, want %d", len(raw), 24)
	}
}

func TestSpriteNameFallback(t *testing.T) {
	a := openArchive(t, spriteArchive(t), quietOptions())

	tests := []struct {
		name   string
		sprite string
		frame  int
	}{
		{"spr_foo", "spr_foo", 0},
		{"spr_foo.png", "spr_foo", 0},
		{"spr_foo_3.png", "spr_foo", 3},
		{"spr_foo_1", "spr_foo", 1},
		{"spr_bar_2.png", "spr_bar_2", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := a.Sprite(tt.name)
			if err != nil {
				t.Fatalf("Sprite: %v", err)
			}
			if s.Name != tt.sprite {
				t.Errorf("resolved %s, want %s", s.Name, tt.sprite)
			}

			img, err := a.RawSprite(tt.name)
			if err != nil {
				t.Fatalf("RawSprite: %v", err)
			}
			want, err := s.Frames()[tt.frame].Image()
			if err != nil {
				t.Fatalf("frame image: %v", err)
			}
			if archivetest.NRGBAAt(img, 0, 0) != archivetest.NRGBAAt(want, 0, 0) {
				t.Errorf("RawSprite returned the wrong frame")
			}
		})
	}

	for _, name := range []string{"spr_baz", "foo_3.png", "spr_foo_x.png"} {
		if _, err := a.Sprite(name); !errors.Is(err, iff.ErrNotFound) {
			t.Errorf("Sprite(%s) error = %v, want NotFound", name, err)
		}
	}
	if _, err := a.RawSprite("spr_foo_9.png"); !errors.Is(err, iff.ErrNotFound) {
		t.Errorf("RawSprite past the last frame: error = %v, want NotFound", err)
	}
}

func TestSpriteLayoutV2(t *testing.T) {
	for _, words := range []int{-1, 0, 3} {
		b := spriteArchive(t)
		b.Major = 2
		b.SubRecordWords = words

		a := openArchive(t, b, quietOptions())
		for _, s := range a.Sprites() {
			want := 4
			if s.Name == "spr_bar_2" {
				want = 1
			}
			if len(s.Frames()) != want {
				t.Errorf("sub-record words %d: sprite %s has %d frames, want %d", words, s.Name, len(s.Frames()), want)
			}
		}
	}
}

func TestSpriteDanglingFrame(t *testing.T) {
	b := spriteArchive(t)
	b.Sprites = append(b.Sprites, archivetest.Sprite{Name: "spr_broken", FramePtrs: []int64{0}})

	if _, err := Open(b.Build(), quietOptions()); !errors.Is(err, iff.ErrDanglingReference) {
		t.Fatalf("unresolved frame: error = %v, want DanglingReference", err)
	}

	// A frame pointer at a string resolves, but not to an atlas rect.
	b.Sprites[2].FramePtrs = []int64{b.StrPtr["spr_foo"]}
	_, err := Open(b.Build(), quietOptions())
	if !errors.Is(err, iff.ErrDanglingReference) {
		t.Fatalf("mistyped frame: error = %v, want DanglingReference", err)
	}
	if !strings.Contains(err.Error(), "spr_broken") {
		t.Errorf("error %q does not name the sprite", err)
	}
}

func TestFonts(t *testing.T) {
	b := archivetest.New()
	b.Textures = [][]byte{archivetest.GradientPNG(t, 8, 8)}
	b.TPAGs = [][11]int16{archivetest.TPAG(0, 0, 8, 4, 0)}
	b.Fonts = []archivetest.Font{{
		Code:       "fnt_main",
		Display:    "Determination Mono",
		Size:       12,
		RangeStart: 32,
		RangeEnd:   127,
		Glyphs: []archivetest.Glyph{
			{Char: 'B', X: 2, Y: 0, W: 2, H: 3},
			{Char: 'A', X: 0, Y: 1, W: 2, H: 3, Kerning: 'B' | -1<<16},
		},
	}}

	a := openArchive(t, b, quietOptions())
	for _, name := range []string{"fnt_main", "Determination Mono"} {
		if _, err := a.Font(name); err != nil {
			t.Errorf("Font(%s): %v", name, err)
		}
	}
	f, _ := a.Font("fnt_main")
	if f.Size != 12 || f.Bold || !f.Italic || f.RangeStart != 32 || f.RangeEnd != 127 {
		t.Errorf("font metrics = %+v", f)
	}
	if f.Charset != 1 || f.Antialiasing != 1 {
		t.Errorf("charset %d, antialiasing %d, want 1 and 1", f.Charset, f.Antialiasing)
	}
	if f.Sheet != a.TPAGs()[0] {
		t.Errorf("font sheet does not resolve to the atlas rect")
	}

	glyphs := f.Glyphs()
	if len(glyphs) != 2 || glyphs[0].Char != 'A' || glyphs[1].Char != 'B' {
		t.Fatalf("Glyphs() = %v", glyphs)
	}
	if k := glyphs[0].Kerning; k.Other != 'B' || k.Amount != -1 {
		t.Errorf("kerning = %+v, want {B -1}", k)
	}
	if !f.CanDisplay("ABBA") || f.CanDisplay("ABC") {
		t.Errorf("CanDisplay is wrong")
	}
	if _, err := f.Glyph('Z'); !errors.Is(err, iff.ErrNotFound) {
		t.Errorf("Glyph(Z) error = %v, want NotFound", err)
	}

	img, err := glyphs[0].Image()
	if err != nil {
		t.Fatalf("glyph Image: %v", err)
	}
	if img.Bounds().Dx() != 2 || img.Bounds().Dy() != 3 {
		t.Errorf("glyph image %v, want 2x3", img.Bounds())
	}
	if got, want := archivetest.NRGBAAt(img, 1, 0), archivetest.GradientAt(1, 1); got != want {
		t.Errorf("glyph pixel = %v, want %v", got, want)
	}
}

func TestObjects(t *testing.T) {
	b := spriteArchive(t)
	b.Objects = []archivetest.Object{
		{Name: "obj_base", Sprite: -1, Parent: -1},
		{Name: "obj_player", Sprite: 0, Parent: 0, Shape: int(ShapeBox)},
		{Name: "obj_loop_a", Sprite: -1, Parent: 3},
		{Name: "obj_loop_b", Sprite: 1, Parent: 2},
		{Name: "obj_orphan", Sprite: -1, Parent: 40},
	}

	a := openArchive(t, b, quietOptions())
	if got := len(a.Objects()); got != 5 {
		t.Fatalf("got %d objects, want 5", got)
	}

	player, err := a.Object("obj_player")
	if err != nil {
		t.Fatalf("Object: %v", err)
	}
	if player.Sprite() == nil || player.Sprite().Name != "spr_foo" {
		t.Errorf("sprite = %v, want spr_foo", player.Sprite())
	}
	if player.Shape != ShapeBox || !player.Visible || player.Solid {
		t.Errorf("object flags = %+v", player)
	}
	ancestors, err := player.Ancestors()
	if err != nil {
		t.Fatalf("Ancestors: %v", err)
	}
	if len(ancestors) != 1 || ancestors[0].Name != "obj_base" {
		t.Errorf("Ancestors() = %v, want [obj_base]", ancestors)
	}

	loop, _ := a.Object("obj_loop_a")
	if _, err := loop.Ancestors(); !errors.Is(err, iff.ErrInvariantViolation) {
		t.Errorf("cycle error = %v, want InvariantViolation", err)
	}

	orphan, _ := a.Object("obj_orphan")
	if _, err := orphan.Parent(); !errors.Is(err, iff.ErrDanglingReference) {
		t.Errorf("Parent() error = %v, want DanglingReference", err)
	}
}

func TestObjectInvalidShape(t *testing.T) {
	b := archivetest.New()
	b.Objects = []archivetest.Object{{Name: "obj_bad", Sprite: -1, Parent: -1, Shape: 9}}
	if _, err := Open(b.Build(), quietOptions()); !errors.Is(err, iff.ErrInvariantViolation) {
		t.Errorf("error = %v, want InvariantViolation", err)
	}
}

func TestResourceLookup(t *testing.T) {
	b := spriteArchive(t)
	a := openArchive(t, b, quietOptions())

	r, err := a.ResourceAt(b.StrPtr["spr_foo"])
	if err != nil {
		t.Fatalf("ResourceAt: %v", err)
	}
	if r.Kind() != KindString {
		t.Errorf("kind = %s, want string", r.Kind())
	}
	if _, err := ResourceAs[*SpriteResource](a, b.StrPtr["spr_foo"]); !errors.Is(err, iff.ErrTypeMismatch) {
		t.Errorf("ResourceAs error = %v, want TypeMismatch", err)
	}
	if _, err := a.ResourceAt(3); !errors.Is(err, iff.ErrNotFound) {
		t.Errorf("ResourceAt(3) error = %v, want NotFound", err)
	}
	if s, err := ResourceAs[*StringResource](a, b.StrPtr["spr_foo"]); err != nil || s.Value() != "spr_foo" {
		t.Errorf("ResourceAs[*StringResource] = %v, %v", s, err)
	}
}

func TestStringDisplay(t *testing.T) {
	b := archivetest.New()
	b.Strings = []string{`\R1* Hello^1&\[1]World/%%`, "caf\xc3\xa9 \xff"}
	a := openArchive(t, b, quietOptions())

	s, err := ResourceAs[*StringResource](a, b.StrPtr[b.Strings[0]])
	if err != nil {
		t.Fatalf("ResourceAs: %v", err)
	}
	if got, want := s.Display(), "* Hello\n???World"; got != want {
		t.Errorf("Display() = %q, want %q", got, want)
	}

	s, err = ResourceAs[*StringResource](a, b.StrPtr[b.Strings[1]])
	if err != nil {
		t.Fatalf("ResourceAs: %v", err)
	}
	if got, want := s.Value(), "café \uFFFD"; got != want {
		t.Errorf("Value() = %q, want %q", got, want)
	}
}

func TestPointerList(t *testing.T) {
	b := archivetest.New()
	b.Extra = func(f *ifftest.Form) {
		f.Add("SEQN", func(start int64) []byte {
			first := start + 4 + 4 + 12
			return ifftest.LE(1, 3, uint32(first), uint32(0), uint32(first+8),
				[]byte("sequence"), []byte("tail"))
		})
	}
	a := openArchive(t, b, quietOptions())

	pl, err := a.PointerList("SEQN")
	if err != nil {
		t.Fatalf("PointerList: %v", err)
	}
	if pl.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", pl.Len())
	}
	first, _ := pl.At(0)
	second, _ := pl.At(1)
	if first.Index != 0 || first.Len() != 8 {
		t.Errorf("first entry = %v", first)
	}
	if second.Index != 2 || second.Len() != 4 {
		t.Errorf("second entry = %v", second)
	}
	if data, _ := second.Bytes(); string(data) != "tail" {
		t.Errorf("second entry bytes = %q", data)
	}
	if r, err := pl.AtPointer(first.Absolute()); err != nil || r != first {
		t.Errorf("AtPointer = %v, %v", r, err)
	}
	if _, err := pl.At(2); !errors.Is(err, iff.ErrNotFound) {
		t.Errorf("At(2) error = %v, want NotFound", err)
	}
	if _, err := a.PointerList("ROOM"); !errors.Is(err, iff.ErrMissingChunk) {
		t.Errorf("PointerList(ROOM) error = %v, want MissingChunk", err)
	}
}

func TestSummary(t *testing.T) {
	a := openArchive(t, spriteArchive(t), quietOptions())
	out := a.Summary()
	for _, want := range []string{`Game "Test Game"`, "Sprites:     2", "Chunks:", "-STRG"} {
		if !strings.Contains(out, want) {
			t.Errorf("Summary() lacks %q:\n%s", want, out)
		}
	}
}

func TestOpenFile(t *testing.T) {
	dir := t.TempDir()

	b := archivetest.New()
	b.Groups = []string{"audiogroup_default"}
	b.Sounds = []archivetest.Sound{
		{Name: "mus_intro", File: "mus_intro.ogg", Flags: archivetest.FlagRegular},
		{Name: "snd_hit", File: "snd_hit.wav", Flags: archivetest.FlagRegular | archivetest.FlagEmbedded, Ordinal: 1},
	}
	b.Blobs = [][]byte{[]byte("RIFFhit")}
	if err := os.WriteFile(filepath.Join(dir, "data.win"), b.Build(), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "mus_intro.ogg"), []byte("OggSintro"), 0o644); err != nil {
		t.Fatal(err)
	}

	a, err := OpenFile(filepath.Join(dir, "data.win"), quietOptions())
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	intro, err := a.Audio("mus_intro")
	if err != nil {
		t.Fatalf("Audio: %v", err)
	}
	data, err := intro.Bytes()
	if err != nil {
		t.Fatalf("external Bytes: %v", err)
	}
	if string(data) != "OggSintro" || intro.Len() != len(data) {
		t.Errorf("external track = %q (%d bytes)", data, intro.Len())
	}
	if intro.Absolute() != -1 || intro.Source() != nil {
		t.Errorf("external track claims chunk backing")
	}
}
