package archive

import (
	"image"
	"path"
	"regexp"
	"strconv"

	"github.com/jchantrell/gmdata/internal/iff"
)

// Strings returns the string table in STRG order.
func (a *Archive) Strings() []*StringResource {
	return append([]*StringResource(nil), a.strings...)
}

// Textures returns the texture sheets in TXTR order.
func (a *Archive) Textures() []*TextureResource {
	return append([]*TextureResource(nil), a.textures...)
}

// TPAGs returns the atlas rects in TPAG order.
func (a *Archive) TPAGs() []*TPAGResource {
	return append([]*TPAGResource(nil), a.tpags...)
}

// Sprites returns the sprites in SPRT order.
func (a *Archive) Sprites() []*SpriteResource {
	return append([]*SpriteResource(nil), a.sprites...)
}

// Fonts returns the fonts in FONT order.
func (a *Archive) Fonts() []*FontResource {
	return append([]*FontResource(nil), a.fonts...)
}

// Objects returns the object definitions in OBJT order.
func (a *Archive) Objects() []*ObjectResource {
	return append([]*ObjectResource(nil), a.objects...)
}

// AudioTracks returns every track in reconciled order, unclaimed blobs
// included.
func (a *Archive) AudioTracks() []*AudioResource {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]*AudioResource(nil), a.audio...)
}

// AudioGroups returns the audio groups by index.
func (a *Archive) AudioGroups() []*AudioGroupResource {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]*AudioGroupResource(nil), a.groups...)
}

// Audio finds a track by name or by file name.
func (a *Archive) Audio(name string) (*AudioResource, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	r, ok := a.audioByName[name]
	if !ok {
		return nil, iff.Errorf(iff.KindNotFound, "no audio track %q", name)
	}
	return r, nil
}

// AudioGroup finds a group by name.
func (a *Archive) AudioGroup(name string) (*AudioGroupResource, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	g, ok := a.groupByName[name]
	if !ok {
		return nil, iff.Errorf(iff.KindNotFound, "no audio group %q", name)
	}
	return g, nil
}

// Font finds a font by code name or display name.
func (a *Archive) Font(name string) (*FontResource, error) {
	f, ok := a.fontByName[name]
	if !ok {
		return nil, iff.Errorf(iff.KindNotFound, "no font %q", name)
	}
	return f, nil
}

// Object finds an object definition by name.
func (a *Archive) Object(name string) (*ObjectResource, error) {
	o, ok := a.objectByName[name]
	if !ok {
		return nil, iff.Errorf(iff.KindNotFound, "no object %q", name)
	}
	return o, nil
}

var frameSuffix = regexp.MustCompile(`_(\d+)$`)

// resolveSprite finds a sprite by exact name, then without a file
// extension, then without a trailing frame number. frame is the stripped
// number, or -1 when none was stripped.
func (a *Archive) resolveSprite(name string) (*SpriteResource, int, error) {
	if s, ok := a.spriteByName[name]; ok {
		return s, -1, nil
	}
	base := name[:len(name)-len(path.Ext(name))]
	if s, ok := a.spriteByName[base]; ok {
		return s, -1, nil
	}
	if m := frameSuffix.FindStringSubmatchIndex(base); m != nil {
		if s, ok := a.spriteByName[base[:m[0]]]; ok {
			n, err := strconv.Atoi(base[m[2]:m[3]])
			if err == nil {
				return s, n, nil
			}
		}
	}
	return nil, 0, iff.Errorf(iff.KindNotFound, "no sprite %q", name)
}

// Sprite finds a sprite by name. Exported frame file names such as
// spr_player_3.png resolve to spr_player.
func (a *Archive) Sprite(name string) (*SpriteResource, error) {
	s, _, err := a.resolveSprite(name)
	return s, err
}

// RawSprite returns the frame image a file name refers to: the numbered
// frame for names like spr_player_3.png, frame 0 otherwise.
func (a *Archive) RawSprite(name string) (image.Image, error) {
	s, frame, err := a.resolveSprite(name)
	if err != nil {
		return nil, err
	}
	if frame < 0 {
		frame = 0
	}
	if frame >= len(s.frames) {
		return nil, iff.Errorf(iff.KindNotFound, "sprite %s has %d frames, want frame %d", s.Name, len(s.frames), frame)
	}
	return a.cache.GetOrCompute("raw:"+name, s.frames[frame].Image)
}

// ResourceAt returns whatever resource starts at the absolute position abs.
func (a *Archive) ResourceAt(abs int64) (Resource, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.resource(abs)
}

// ResourceAs returns the resource at abs if it has type T.
func ResourceAs[T Resource](a *Archive, abs int64) (T, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return resourceAs[T](a, abs)
}

// StringAt resolves a string pointer as stored in other chunks.
func (a *Archive) StringAt(abs int64) (string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stringAt(abs)
}

// TPAGAt resolves an atlas rect pointer.
func (a *Archive) TPAGAt(abs int64) (*TPAGResource, error) {
	return ResourceAs[*TPAGResource](a, abs)
}

// PointerList reads the offset table of any chunk inside FORM, including
// chunks with no typed decoder.
func (a *Archive) PointerList(tag string) (*PointerList, error) {
	c, err := a.form.Child(tag)
	if err != nil {
		return nil, err
	}
	return NewPointerList(c)
}

// Chunks returns the parsed container.
func (a *Archive) Chunks() *iff.File { return a.file }

// Title returns the game name from GEN8, or "???" when unavailable.
func (a *Archive) Title() string { return a.title }

// Version returns the effective major and minor version.
func (a *Archive) Version() (major, minor int) { return a.major, a.minor }

// BytecodeVersion returns the GEN8 bytecode version, or 0.
func (a *Archive) BytecodeVersion() int { return a.bytecode }
