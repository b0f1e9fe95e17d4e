package export

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jchantrell/gmdata/internal/archive"
	"github.com/jchantrell/gmdata/internal/config"
	"github.com/jchantrell/gmdata/internal/utils"
)

// Layout maps resources to paths under an output directory
type Layout struct {
	root string
}

// NewLayout creates a layout rooted at dir
func NewLayout(dir string) *Layout {
	return &Layout{root: dir}
}

// Root returns the output directory
func (l *Layout) Root() string { return l.root }

// KindDir returns the directory holding one kind of resource
func (l *Layout) KindDir(kind string) string {
	return filepath.Join(l.root, kind)
}

// SpriteFramePath returns the PNG path of one sprite frame
func (l *Layout) SpriteFramePath(name string, frame int) string {
	return filepath.Join(l.KindDir(config.KindSprites), fmt.Sprintf("%s_%d.png", utils.SanitizeFileName(name), frame))
}

// SpriteGIFPath returns the animation path of a sprite
func (l *Layout) SpriteGIFPath(name string) string {
	return filepath.Join(l.KindDir(config.KindSprites), utils.SanitizeFileName(name)+".gif")
}

// TexturePath returns the path of a texture blob, named by index with an
// extension matching its format
func (l *Layout) TexturePath(index int, format archive.ImageFormat) string {
	return filepath.Join(l.KindDir(config.KindTextures), fmt.Sprintf("%d%s", index, textureExtension(format)))
}

func textureExtension(format archive.ImageFormat) string {
	switch format {
	case archive.FormatPNG:
		return ".png"
	case archive.FormatGIF:
		return ".gif"
	case archive.FormatJPEG:
		return ".jpg"
	case archive.FormatQOI:
		return ".qoi"
	case archive.FormatBZ2QOI:
		return ".bz2.qoi"
	default:
		return ".bin"
	}
}

// AudioPath returns the path of the track at index in reconciled order.
// External tracks keep their file name; embedded ones are named after the
// track with an extension from the flags. Blobs no metadata claimed are
// numbered by index and typed from their magic bytes.
func (l *Layout) AudioPath(r *archive.AudioResource, index int) string {
	dir := l.KindDir(config.KindAudio)
	if r.Name == "" && r.Flags == 0 {
		return filepath.Join(dir, fmt.Sprintf("blob_%d%s", index, blobExt(r)))
	}
	if !r.Embedded() && r.Filename != "" {
		return filepath.Join(dir, utils.SanitizeFileName(r.Filename))
	}
	ext := ".wav"
	if r.Flags.Has(archive.FlagCompressed) {
		ext = ".ogg"
	}
	name := utils.SanitizeFileName(r.Name)
	if strings.EqualFold(filepath.Ext(name), ext) {
		return filepath.Join(dir, name)
	}
	return filepath.Join(dir, name+ext)
}

func blobExt(r *archive.AudioResource) string {
	if data, err := r.Bytes(); err == nil && bytes.HasPrefix(data, []byte("OggS")) {
		return ".ogg"
	}
	return ".wav"
}

// FontSheetPath returns the PNG path of a font sheet
func (l *Layout) FontSheetPath(name string) string {
	return filepath.Join(l.KindDir(config.KindFonts), utils.SanitizeFileName(name)+".png")
}

// FontMetricsPath returns the JSON path of a font's glyph metrics
func (l *Layout) FontMetricsPath(name string) string {
	return filepath.Join(l.KindDir(config.KindFonts), utils.SanitizeFileName(name)+".json")
}

// EnsureDir creates a directory and all parent directories
func (l *Layout) EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// FileExists checks if a file exists
func FileExists(filename string) bool {
	_, err := os.Stat(filename)
	return err == nil
}

// FileSize returns the size of a file, or 0 if it doesn't exist
func FileSize(filename string) int64 {
	info, err := os.Stat(filename)
	if err != nil {
		return 0
	}
	return info.Size()
}
