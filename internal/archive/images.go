package archive

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/hashicorp/golang-lru/arc/v2"
	"golang.org/x/sync/singleflight"

	"github.com/jchantrell/gmdata/internal/iff"
)

// ImageDecoder turns an embedded texture blob into pixels.
type ImageDecoder interface {
	Decode(data []byte) (image.Image, error)
}

// StdDecoder decodes PNG, GIF and JPEG through the image package.
type StdDecoder struct{}

func (StdDecoder) Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return img, nil
}

// ImageCache holds decoded images that can be recomputed on demand. An
// implementation may evict entries at any time.
type ImageCache interface {
	GetOrCompute(key string, compute func() (image.Image, error)) (image.Image, error)
}

// ARCCache is a bounded adaptive replacement cache. Concurrent misses on
// the same key share one computation.
type ARCCache struct {
	entries *arc.ARCCache[string, image.Image]
	flight  singleflight.Group
}

// NewARCCache creates a cache holding at most size images.
func NewARCCache(size int) (*ARCCache, error) {
	entries, err := arc.NewARC[string, image.Image](size)
	if err != nil {
		return nil, fmt.Errorf("creating image cache: %w", err)
	}
	return &ARCCache{entries: entries}, nil
}

func (c *ARCCache) GetOrCompute(key string, compute func() (image.Image, error)) (image.Image, error) {
	if img, ok := c.entries.Get(key); ok {
		return img, nil
	}

	v, err, _ := c.flight.Do(key, func() (any, error) {
		if img, ok := c.entries.Get(key); ok {
			return img, nil
		}
		img, err := compute()
		if err != nil {
			return nil, err
		}
		c.entries.Add(key, img)
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(image.Image), nil
}

// Len returns the number of cached images.
func (c *ARCCache) Len() int { return c.entries.Len() }

// Purge drops every cached image.
func (c *ARCCache) Purge() { c.entries.Purge() }

// NopCache recomputes every image.
type NopCache struct{}

func (NopCache) GetOrCompute(_ string, compute func() (image.Image, error)) (image.Image, error) {
	return compute()
}

// cropImage copies the rectangle r, given relative to the image origin, into
// a new image anchored at (0,0).
func cropImage(img image.Image, r image.Rectangle) (image.Image, error) {
	b := img.Bounds()
	abs := r.Add(b.Min)
	if r.Min.X < 0 || r.Min.Y < 0 || !abs.In(b) {
		return nil, &iff.FormatError{
			Kind: iff.KindOutOfBounds,
			Msg:  fmt.Sprintf("rectangle %v exceeds %dx%d sheet", r, b.Dx(), b.Dy()),
		}
	}

	dst := image.NewNRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, abs.Min, draw.Src)
	return dst, nil
}

var (
	placeholderA = color.NRGBA{R: 0xff, B: 0xff, A: 0xff}
	placeholderB = color.NRGBA{A: 0xff}
)

// placeholder renders the magenta and black quadrants used for atlas rects
// whose sheet is missing.
func placeholder(w, h int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x < w/2) == (y < h/2) {
				img.SetNRGBA(x, y, placeholderA)
			} else {
				img.SetNRGBA(x, y, placeholderB)
			}
		}
	}
	return img
}
