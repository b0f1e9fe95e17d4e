package export

import (
	"fmt"

	"github.com/jchantrell/gmdata/internal/archive"
)

func (e *Exporter) spriteJobs() []job {
	sprites := e.archive.Sprites()
	jobs := make([]job, 0, len(sprites))
	for _, s := range sprites {
		jobs = append(jobs, job{
			description: s.Name,
			run:         func() (result, error) { return e.exportSprite(s) },
		})
	}
	return jobs
}

// exportSprite writes <name>_<i>.png for each frame and <name>.gif when
// animations are enabled. Sprites without frames are skipped.
func (e *Exporter) exportSprite(s *archive.SpriteResource) (result, error) {
	var res result
	if len(s.Frames()) == 0 {
		e.log.Debug("Sprite has no frames", "sprite", s.Name)
		res.skipped++
		return res, nil
	}

	frames, err := s.FrameImages()
	if err != nil {
		return res, err
	}
	for i, img := range frames {
		err := e.write(e.layout.SpriteFramePath(s.Name, i), &res, func(path string) (int64, error) {
			return writePNG(path, img)
		})
		if err != nil {
			return res, fmt.Errorf("frame %d: %w", i, err)
		}
	}

	if e.options.GIF {
		err := e.write(e.layout.SpriteGIFPath(s.Name), &res, func(path string) (int64, error) {
			g, err := EncodeGIF(frames, e.options.GIFOptions)
			if err != nil {
				return 0, err
			}
			return writeGIF(path, g)
		})
		if err != nil {
			return res, fmt.Errorf("animation: %w", err)
		}
	}
	return res, nil
}

func (e *Exporter) textureJobs() []job {
	textures := e.archive.Textures()
	jobs := make([]job, 0, len(textures))
	for _, t := range textures {
		jobs = append(jobs, job{
			description: fmt.Sprintf("texture %d", t.Index),
			run:         func() (result, error) { return e.exportTexture(t) },
		})
	}
	return jobs
}

// exportTexture copies the texture blob as stored in the archive
func (e *Exporter) exportTexture(t *archive.TextureResource) (result, error) {
	var res result
	err := e.write(e.layout.TexturePath(t.Index, t.Format()), &res, func(path string) (int64, error) {
		data, err := t.Bytes()
		if err != nil {
			return 0, err
		}
		return writeFile(path, data)
	})
	return res, err
}
