package archive

import (
	"bytes"
	"fmt"
	"image"

	"github.com/jchantrell/gmdata/internal/iff"
)

// ImageFormat is the container format of an embedded texture blob.
type ImageFormat string

const (
	FormatPNG     ImageFormat = "PNG"
	FormatGIF     ImageFormat = "GIF"
	FormatJPEG    ImageFormat = "JPEG"
	FormatQOI     ImageFormat = "QOI"
	FormatBZ2QOI  ImageFormat = "BZ2+QOI"
	FormatUnknown ImageFormat = "UNKNOWN"
)

var formatMagic = []struct {
	magic  []byte
	format ImageFormat
}{
	{[]byte("\x89PNG\r\n\x1a\n"), FormatPNG},
	{[]byte("GIF8"), FormatGIF},
	{[]byte{0xff, 0xd8, 0xff}, FormatJPEG},
	{[]byte("fioq"), FormatQOI},
	{[]byte("2zoq"), FormatBZ2QOI},
}

// TextureResource is a texture sheet blob from the TXTR chunk.
type TextureResource struct {
	span
	Index int

	a *Archive
}

func (t *TextureResource) Kind() Kind { return KindTexture }

// Format sniffs the blob's magic bytes.
func (t *TextureResource) Format() ImageFormat {
	data, err := t.Bytes()
	if err != nil {
		return FormatUnknown
	}
	for _, m := range formatMagic {
		if bytes.HasPrefix(data, m.magic) {
			return m.format
		}
	}
	return FormatUnknown
}

// Image decodes the sheet through the archive's decoder and image cache.
func (t *TextureResource) Image() (image.Image, error) {
	return t.a.cache.GetOrCompute(fmt.Sprintf("txtr:%d", t.Absolute()), func() (image.Image, error) {
		data, err := t.Bytes()
		if err != nil {
			return nil, err
		}
		img, err := t.a.decoder.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("decoding %s texture %d: %w", t.Format(), t.Index, err)
		}
		return img, nil
	})
}

func (t *TextureResource) String() string {
	return fmt.Sprintf("TextureResource [%s image, %d bytes @ 0x%08x]", t.Format(), t.length, t.Absolute())
}

// textureLayout describes one TXTR entry variant. The blob pointer is the
// last field of the entry.
type textureLayout struct {
	entrySize int
}

func (l textureLayout) blobPointer() int { return l.entrySize - 4 }

var (
	textureLayoutV1 = textureLayout{entrySize: 8}
	textureLayoutV2 = textureLayout{entrySize: 12}
)

func textureLayoutFor(major int) textureLayout {
	if major >= 2 {
		return textureLayoutV2
	}
	return textureLayoutV1
}

// decodeTextures reads the texture entries and infers each blob's size from
// the next blob pointer.
func (a *Archive) decodeTextures(c *iff.Chunk) error {
	ptrs, err := readPointers(c, 0)
	if err != nil {
		return err
	}

	layout := textureLayoutFor(a.major)
	blobs := make([]int64, len(ptrs))
	for i, ptr := range ptrs {
		off, err := entryOffset(c, ptr)
		if err != nil {
			return fmt.Errorf("texture %d: %w", i, err)
		}
		v, err := c.Uint32(off + layout.blobPointer())
		if err != nil {
			return fmt.Errorf("texture %d blob pointer: %w", i, err)
		}
		blobs[i] = int64(v)
	}

	a.textures = make([]*TextureResource, 0, len(blobs))
	for i, size := range inferSizes(blobs, c.End()) {
		off, err := entryOffset(c, blobs[i])
		if err != nil {
			return fmt.Errorf("texture %d blob: %w", i, err)
		}
		s, err := newSpan(c, off, size)
		if err != nil {
			return fmt.Errorf("texture %d blob: %w", i, err)
		}
		res := &TextureResource{span: s, Index: i, a: a}
		a.textures = append(a.textures, res)
		a.register(blobs[i], res)
	}
	return nil
}
