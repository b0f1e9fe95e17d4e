package export

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/color/palette"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jchantrell/gmdata/internal/archive"
	"github.com/jchantrell/gmdata/internal/archive/archivetest"
	"github.com/jchantrell/gmdata/internal/config"
)

func testArchive(t *testing.T, assets archive.MapAssets) *archive.Archive {
	t.Helper()
	b := archivetest.New()
	b.Textures = [][]byte{archivetest.GradientPNG(t, 8, 8)}
	b.TPAGs = [][11]int16{
		archivetest.TPAG(0, 0, 2, 2, 0),
		archivetest.TPAG(2, 0, 4, 3, 0),
		archivetest.TPAG(0, 4, 8, 4, 0),
	}
	b.Sprites = []archivetest.Sprite{
		{Name: "spr_player", Width: 4, Height: 3, Frames: []int{0, 1}},
		{Name: "spr_empty", Width: 1, Height: 1},
	}
	b.Fonts = []archivetest.Font{{
		Code: "fnt_main", Display: "Main", Size: 10, RangeStart: 32, RangeEnd: 127, Sheet: 2,
		Glyphs: []archivetest.Glyph{
			{Char: 'A', X: 0, Y: 0, W: 2, H: 3, Kerning: 'B' | 2<<16},
			{Char: 'B', X: 2, Y: 0, W: 2, H: 3},
		},
	}}
	b.Groups = []string{"audiogroup_default"}
	b.Sounds = []archivetest.Sound{
		{Name: "snd_jump", File: "snd_jump.wav", Flags: archivetest.FlagRegular | archivetest.FlagEmbedded},
		{Name: "mus_theme", File: "mus_theme.ogg", Flags: archivetest.FlagRegular, Ordinal: 1},
	}
	b.Blobs = [][]byte{[]byte("RIFFjump")}

	opts := archive.DefaultOptions()
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	if assets != nil {
		opts.Assets = assets
	}
	a, err := archive.Open(b.Build(), opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return a
}

func testExporter(a *archive.Archive, dir string, opts *Options) *Exporter {
	e := NewExporter(a, dir, opts)
	e.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	return e
}

func solid(w, h int, c color.Color) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestLayoutPaths(t *testing.T) {
	l := NewLayout("out")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"sprite frame", l.SpriteFramePath("spr_player", 3), filepath.Join("out", "sprites", "spr_player_3.png")},
		{"sprite frame sanitized", l.SpriteFramePath("ui/button", 0), filepath.Join("out", "sprites", "ui@button_0.png")},
		{"sprite gif", l.SpriteGIFPath("spr_player"), filepath.Join("out", "sprites", "spr_player.gif")},
		{"png texture", l.TexturePath(0, archive.FormatPNG), filepath.Join("out", "textures", "0.png")},
		{"qoi texture", l.TexturePath(2, archive.FormatBZ2QOI), filepath.Join("out", "textures", "2.bz2.qoi")},
		{"unknown texture", l.TexturePath(5, archive.FormatUnknown), filepath.Join("out", "textures", "5.bin")},
		{"wav", l.AudioPath(&archive.AudioResource{Name: "snd_jump", Flags: archive.FlagEmbedded}, 0), filepath.Join("out", "audio", "snd_jump.wav")},
		{"ogg", l.AudioPath(&archive.AudioResource{Name: "snd_wind", Flags: archive.FlagCompressed}, 1), filepath.Join("out", "audio", "snd_wind.ogg")},
		{"extension kept", l.AudioPath(&archive.AudioResource{Name: "snd_hit.wav", Flags: archive.FlagEmbedded}, 2), filepath.Join("out", "audio", "snd_hit.wav")},
		{"external", l.AudioPath(&archive.AudioResource{Name: "mus_theme", Filename: "music/theme.ogg", Flags: archive.FlagRegular}, 3), filepath.Join("out", "audio", "music@theme.ogg")},
		{"unclaimed blob", l.AudioPath(&archive.AudioResource{}, 4), filepath.Join("out", "audio", "blob_4.wav")},
		{"font sheet", l.FontSheetPath("fnt_main"), filepath.Join("out", "fonts", "fnt_main.png")},
		{"font metrics", l.FontMetricsPath("fnt_main"), filepath.Join("out", "fonts", "fnt_main.json")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %s, want %s", tt.got, tt.want)
			}
		})
	}
}

func TestEncodeGIF(t *testing.T) {
	white := color.Palette(palette.Plan9).Index(color.White)
	black := color.Palette(palette.Plan9).Index(color.Black)

	frames := []image.Image{solid(1, 1, color.White), solid(3, 2, color.White)}
	g, err := EncodeGIF(frames, GIFOptions{Scale: 2, FPS: 20})
	if err != nil {
		t.Fatalf("EncodeGIF: %v", err)
	}

	if g.Config.Width != 6 || g.Config.Height != 4 {
		t.Errorf("canvas = %dx%d, want 6x4", g.Config.Width, g.Config.Height)
	}
	if len(g.Image) != 2 {
		t.Fatalf("got %d frames, want 2", len(g.Image))
	}
	if g.LoopCount != 0 {
		t.Errorf("LoopCount = %d, want 0", g.LoopCount)
	}
	for i, d := range g.Delay {
		if d != 5 {
			t.Errorf("Delay[%d] = %d, want 5", i, d)
		}
	}

	first := g.Image[0]
	if got := first.Bounds(); got != image.Rect(0, 0, 6, 4) {
		t.Errorf("frame bounds = %v", got)
	}
	// A 1x1 frame scaled 2x occupies the bottom-right 2x2 block.
	for _, p := range []image.Point{{4, 2}, {5, 3}} {
		if got := first.ColorIndexAt(p.X, p.Y); int(got) != white {
			t.Errorf("pixel %v = %d, want white", p, got)
		}
	}
	for _, p := range []image.Point{{0, 0}, {3, 3}, {5, 1}} {
		if got := first.ColorIndexAt(p.X, p.Y); int(got) != black {
			t.Errorf("pixel %v = %d, want background", p, got)
		}
	}
	if got := g.Image[1].ColorIndexAt(0, 0); int(got) != white {
		t.Errorf("largest frame does not fill the canvas")
	}
}

func TestEncodeGIFErrors(t *testing.T) {
	frame := []image.Image{solid(1, 1, color.White)}
	tests := []struct {
		name   string
		frames []image.Image
		opts   GIFOptions
	}{
		{"no frames", nil, DefaultGIFOptions()},
		{"zero scale", frame, GIFOptions{Scale: 0, FPS: 10}},
		{"zero fps", frame, GIFOptions{Scale: 1, FPS: 0}},
		{"fps too high", frame, GIFOptions{Scale: 1, FPS: 101}},
		{"nil frame", []image.Image{nil}, DefaultGIFOptions()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EncodeGIF(tt.frames, tt.opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestExportAll(t *testing.T) {
	a := testArchive(t, archive.MapAssets{"mus_theme.ogg": []byte("OggStheme")})
	dir := t.TempDir()

	opts := DefaultOptions()
	opts.GIF = true
	opts.Workers = 2
	e := testExporter(a, dir, opts)

	var calls, lastTotal int
	stats, err := e.ExportAll(context.Background(), config.AllKinds, func(current, total int, _ string) {
		calls++
		lastTotal = total
		if current > total {
			t.Errorf("progress %d > total %d", current, total)
		}
	})
	if err != nil {
		t.Fatalf("ExportAll: %v", err)
	}

	// 2 sprites, 1 texture, 2 tracks, 1 font
	if calls != 6 || lastTotal != 6 {
		t.Errorf("progress calls = %d, total = %d, want 6", calls, lastTotal)
	}
	if stats.Files != 8 {
		t.Errorf("Files = %d, want 8", stats.Files)
	}
	if stats.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", stats.Skipped)
	}
	if stats.Bytes == 0 {
		t.Error("Bytes = 0")
	}

	for _, rel := range []string{
		"sprites/spr_player_0.png",
		"sprites/spr_player_1.png",
		"sprites/spr_player.gif",
		"textures/0.png",
		"audio/snd_jump.wav",
		"audio/mus_theme.ogg",
		"fonts/fnt_main.png",
		"fonts/fnt_main.json",
	} {
		if !FileExists(filepath.Join(dir, filepath.FromSlash(rel))) {
			t.Errorf("%s not written", rel)
		}
	}
	if FileExists(filepath.Join(dir, "sprites", "spr_empty_0.png")) {
		t.Error("frameless sprite was exported")
	}

	f, err := os.Open(filepath.Join(dir, "sprites", "spr_player_1.png"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decoding frame: %v", err)
	}
	if got := img.Bounds().Size(); got != image.Pt(4, 3) {
		t.Errorf("frame size = %v, want (4,3)", got)
	}
	if got, want := archivetest.NRGBAAt(img, 1, 2), archivetest.GradientAt(3, 2); got != want {
		t.Errorf("frame pixel = %v, want %v", got, want)
	}

	data, err := os.ReadFile(filepath.Join(dir, "audio", "snd_jump.wav"))
	if err != nil || string(data) != "RIFFjump" {
		t.Errorf("embedded track = %q, %v", data, err)
	}
	data, err = os.ReadFile(filepath.Join(dir, "audio", "mus_theme.ogg"))
	if err != nil || string(data) != "OggStheme" {
		t.Errorf("external track = %q, %v", data, err)
	}
}

func TestExportFontMetrics(t *testing.T) {
	dir := t.TempDir()
	e := testExporter(testArchive(t, nil), dir, nil)
	if _, err := e.ExportFonts(context.Background(), nil); err != nil {
		t.Fatalf("ExportFonts: %v", err)
	}

	data, err := os.ReadFile(e.Layout().FontMetricsPath("fnt_main"))
	if err != nil {
		t.Fatal(err)
	}
	var m FontMetrics
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("decoding metrics: %v", err)
	}
	if m.Name != "fnt_main" || m.DisplayName != "Main" || m.Size != 10 {
		t.Errorf("metrics = %+v", m)
	}
	if m.RangeStart != 32 || m.RangeEnd != 127 {
		t.Errorf("range = %d-%d, want 32-127", m.RangeStart, m.RangeEnd)
	}
	if len(m.Glyphs) != 2 {
		t.Fatalf("got %d glyphs, want 2", len(m.Glyphs))
	}
	a := m.Glyphs[0]
	if a.Char != "A" || a.Width != 2 || a.Height != 3 {
		t.Errorf("glyph A = %+v", a)
	}
	if a.Kerning == nil || a.Kerning.Other != "B" || a.Kerning.Amount != 2 {
		t.Errorf("glyph A kerning = %+v", a.Kerning)
	}
	if m.Glyphs[1].Kerning != nil {
		t.Errorf("glyph B kerning = %+v, want none", m.Glyphs[1].Kerning)
	}

	sheet, err := os.Open(e.Layout().FontSheetPath("fnt_main"))
	if err != nil {
		t.Fatal(err)
	}
	defer sheet.Close()
	cfg, err := png.DecodeConfig(sheet)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 8 || cfg.Height != 4 {
		t.Errorf("sheet = %dx%d, want 8x4", cfg.Width, cfg.Height)
	}
}

func TestExportSkipsExisting(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions()
	opts.Overwrite = false
	e := testExporter(testArchive(t, nil), dir, opts)

	existing := e.Layout().TexturePath(0, archive.FormatPNG)
	if err := os.MkdirAll(filepath.Dir(existing), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(existing, []byte("keep"), 0644); err != nil {
		t.Fatal(err)
	}

	stats, err := e.ExportTextures(context.Background(), nil)
	if err != nil {
		t.Fatalf("ExportTextures: %v", err)
	}
	if stats.Files != 0 || stats.Skipped != 1 {
		t.Errorf("stats = %+v, want 0 files and 1 skipped", stats)
	}
	if data, _ := os.ReadFile(existing); string(data) != "keep" {
		t.Errorf("existing file replaced with %q", data)
	}

	opts.Overwrite = true
	stats, err = e.ExportTextures(context.Background(), nil)
	if err != nil {
		t.Fatalf("ExportTextures: %v", err)
	}
	if stats.Files != 1 {
		t.Errorf("Files = %d, want 1", stats.Files)
	}
}

func TestExportUnclaimedBlobs(t *testing.T) {
	b := archivetest.New()
	b.Groups = []string{"audiogroup_default"}
	b.Sounds = []archivetest.Sound{
		{Name: "snd_jump", File: "snd_jump.wav", Flags: archivetest.FlagRegular | archivetest.FlagEmbedded},
	}
	b.Blobs = [][]byte{[]byte("RIFFjump"), []byte("OggSloose"), []byte("RIFFloose")}

	opts := archive.DefaultOptions()
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := archive.Open(b.Build(), opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	dir := t.TempDir()
	e := testExporter(a, dir, nil)
	stats, err := e.ExportAudio(context.Background(), nil)
	if err != nil {
		t.Fatalf("ExportAudio: %v", err)
	}
	if stats.Files != 3 || stats.Skipped != 0 {
		t.Errorf("stats = %+v, want 3 files", stats)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "audio"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != stats.Files {
		t.Errorf("%d files on disk, stats report %d", len(entries), stats.Files)
	}

	for name, want := range map[string]string{
		"snd_jump.wav": "RIFFjump",
		"blob_1.ogg":   "OggSloose",
		"blob_2.wav":   "RIFFloose",
	} {
		data, err := os.ReadFile(filepath.Join(dir, "audio", name))
		if err != nil || string(data) != want {
			t.Errorf("%s = %q, %v", name, data, err)
		}
	}
}

func TestExportMissingExternalTrack(t *testing.T) {
	dir := t.TempDir()
	e := testExporter(testArchive(t, archive.MapAssets{}), dir, nil)

	stats, err := e.ExportAudio(context.Background(), nil)
	if err != nil {
		t.Fatalf("ExportAudio: %v", err)
	}
	if stats.Files != 1 || stats.Skipped != 1 {
		t.Errorf("stats = %+v, want 1 file and 1 skipped", stats)
	}
	if FileExists(filepath.Join(dir, "audio", "mus_theme.ogg")) {
		t.Error("missing external track was written")
	}
}

func TestExportUnsupportedKind(t *testing.T) {
	e := testExporter(testArchive(t, nil), t.TempDir(), nil)
	_, err := e.ExportAll(context.Background(), []string{config.KindSprites, "rooms"}, nil)
	if err == nil || !strings.Contains(err.Error(), "rooms") {
		t.Errorf("error = %v, want unsupported kind", err)
	}
}

func TestExportCancelled(t *testing.T) {
	e := testExporter(testArchive(t, nil), t.TempDir(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.ExportAll(ctx, config.AllKinds, nil); err == nil {
		t.Error("expected error from cancelled context")
	}
}
