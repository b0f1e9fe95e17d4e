package export

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"image/png"
	"os"
)

// GIFOptions controls sprite animation encoding
type GIFOptions struct {
	// Scale multiplies every frame with nearest-neighbour sampling
	Scale int

	// FPS sets the frame delay to 100/FPS hundredths of a second
	FPS int
}

// DefaultGIFOptions returns 1x scale at 10 frames per second
func DefaultGIFOptions() GIFOptions {
	return GIFOptions{Scale: 1, FPS: 10}
}

// EncodeGIF builds a looping animation from frames. The canvas fits the
// largest frame and smaller frames are aligned to its bottom-right corner.
func EncodeGIF(frames []image.Image, opts GIFOptions) (*gif.GIF, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames provided")
	}
	if opts.Scale < 1 {
		return nil, fmt.Errorf("scale %d < 1", opts.Scale)
	}
	if opts.FPS < 1 || opts.FPS > 100 {
		return nil, fmt.Errorf("frame rate %d outside 1-100", opts.FPS)
	}

	var maxW, maxH int
	for i, f := range frames {
		if f == nil {
			return nil, fmt.Errorf("frame %d is nil", i)
		}
		maxW = max(maxW, f.Bounds().Dx())
		maxH = max(maxH, f.Bounds().Dy())
	}
	canvas := image.Rect(0, 0, maxW*opts.Scale, maxH*opts.Scale)

	g := &gif.GIF{
		LoopCount: 0,
		Config: image.Config{
			ColorModel: color.Palette(palette.Plan9),
			Width:      canvas.Dx(),
			Height:     canvas.Dy(),
		},
	}
	delay := 100 / opts.FPS
	for _, f := range frames {
		scaled := scaleNearest(f, opts.Scale)
		size := scaled.Bounds().Size()
		at := canvas.Max.Sub(size)

		p := image.NewPaletted(canvas, palette.Plan9)
		draw.Draw(p, image.Rectangle{Min: at, Max: canvas.Max}, scaled, scaled.Bounds().Min, draw.Src)
		g.Image = append(g.Image, p)
		g.Delay = append(g.Delay, delay)
		g.Disposal = append(g.Disposal, gif.DisposalBackground)
	}
	return g, nil
}

// scaleNearest enlarges img by an integer factor
func scaleNearest(img image.Image, scale int) image.Image {
	if scale == 1 {
		return img
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
	for y := 0; y < out.Rect.Dy(); y++ {
		for x := 0; x < out.Rect.Dx(); x++ {
			out.Set(x, y, img.At(b.Min.X+x/scale, b.Min.Y+y/scale))
		}
	}
	return out
}

// writePNG encodes img to path
func writePNG(path string, img image.Image) (int64, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return 0, fmt.Errorf("encoding %s: %w", path, err)
	}
	return writeFile(path, buf.Bytes())
}

// writeGIF encodes g to path
func writeGIF(path string, g *gif.GIF) (int64, error) {
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		return 0, fmt.Errorf("encoding %s: %w", path, err)
	}
	return writeFile(path, buf.Bytes())
}

func writeFile(path string, data []byte) (int64, error) {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return 0, fmt.Errorf("writing file %s: %w", path, err)
	}
	return int64(len(data)), nil
}
