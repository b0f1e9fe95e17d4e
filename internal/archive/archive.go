// Package archive decodes GameMaker data archives (data.win, game.unx,
// game.ios) into a graph of typed resources: strings, textures, atlas rects,
// sprites, fonts, objects and audio.
//
// Chunks cross-reference each other by absolute file position. Every decoded
// resource is recorded in one table keyed by that position, so a reference
// that does not resolve surfaces as a DanglingReference error.
package archive

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/jchantrell/gmdata/internal/iff"
)

// DefaultCacheSize is the number of decoded images kept by the default
// image cache.
const DefaultCacheSize = 256

var (
	requiredChunks = []string{"STRG", "TXTR", "TPAG", "SPRT", "SOND", "AUDO"}
	optionalChunks = []string{"AGRP", "FONT", "OBJT", "GEN8"}
)

// Options configures how an archive is opened.
type Options struct {
	// Assets resolves external audio and supplementary audio archives.
	Assets AssetSource

	// Decoder turns texture blobs into images.
	Decoder ImageDecoder

	// Cache holds decoded images. Nil selects an ARC cache of
	// DefaultCacheSize entries.
	Cache ImageCache

	// AudioFiles lists supplementary archives whose AUDO blobs are appended
	// to the archive's own.
	AudioFiles []string

	// AutoAudioSearch appends the blobs of every sibling asset that parses
	// as an archive.
	AutoAudioSearch bool

	// ForceVersion overrides the detected major version when non-zero.
	ForceVersion int

	Logger *slog.Logger
}

// DefaultOptions returns options with the standard image decoder.
func DefaultOptions() *Options {
	return &Options{
		Decoder: StdDecoder{},
		Logger:  slog.Default(),
	}
}

// Archive is a decoded data archive. Lookups are safe for concurrent use;
// ReloadAudio and AddAudioFile serialise against them.
type Archive struct {
	file   *iff.File
	form   *iff.Chunk
	chunks map[string]*iff.Chunk

	log     *slog.Logger
	assets  AssetSource
	decoder ImageDecoder
	cache   ImageCache

	title    string
	major    int
	minor    int
	bytecode int

	mu        sync.RWMutex
	resources map[int64]Resource

	strings      []*StringResource
	textures     []*TextureResource
	tpags        []*TPAGResource
	sprites      []*SpriteResource
	spriteByName map[string]*SpriteResource
	fonts        []*FontResource
	fontByName   map[string]*FontResource
	objects      []*ObjectResource
	objectByName map[string]*ObjectResource

	audio        []*AudioResource
	audioByName  map[string]*AudioResource
	groups       []*AudioGroupResource
	groupByName  map[string]*AudioGroupResource
	audioKeys    []int64
	audioFiles   []string
	autoSearch   bool
	missingAudio bool
}

// Open decodes an archive held in memory. Resources alias data, which must
// not be modified afterwards.
func Open(data []byte, opts *Options) (*Archive, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	a := &Archive{
		chunks:       make(map[string]*iff.Chunk),
		resources:    make(map[int64]Resource),
		log:          opts.Logger,
		assets:       opts.Assets,
		decoder:      opts.Decoder,
		cache:        opts.Cache,
		title:        "???",
		major:        1,
		audioFiles:   append([]string(nil), opts.AudioFiles...),
		autoSearch:   opts.AutoAudioSearch,
		spriteByName: make(map[string]*SpriteResource),
		fontByName:   make(map[string]*FontResource),
		objectByName: make(map[string]*ObjectResource),
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	if a.assets == nil {
		a.assets = MapAssets{}
	}
	if a.decoder == nil {
		a.decoder = StdDecoder{}
	}
	if a.cache == nil {
		c, err := NewARCCache(DefaultCacheSize)
		if err != nil {
			return nil, err
		}
		a.cache = c
	}

	if err := a.decode(data, opts.ForceVersion); err != nil {
		return nil, a.wrap(err)
	}
	return a, nil
}

// OpenFile reads and decodes the archive at path. Unless opts names an
// asset source, external files are resolved from the archive's directory.
func OpenFile(path string, opts *Options) (*Archive, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	o := DefaultOptions()
	if opts != nil {
		copied := *opts
		o = &copied
	}
	if o.Assets == nil {
		o.Assets = DirAssets{Dir: filepath.Dir(path), Exclude: []string{filepath.Base(path)}}
	}
	return Open(data, o)
}

func (a *Archive) decode(data []byte, forceVersion int) error {
	f, err := iff.Parse(data)
	if err != nil {
		return fmt.Errorf("parsing container: %w", err)
	}
	a.file = f

	form, err := f.Chunk("FORM")
	if err != nil {
		a.log.Debug("Malformed archive", "tree", f.Tree())
		return err
	}
	a.form = form

	for _, tag := range requiredChunks {
		c, err := form.Child(tag)
		if err != nil {
			a.log.Debug("Malformed archive", "missing", tag, "tree", f.Tree())
			return err
		}
		a.chunks[tag] = c
	}
	for _, tag := range optionalChunks {
		if c, err := form.Child(tag); err == nil {
			a.chunks[tag] = c
		}
	}

	a.readVersion()
	if forceVersion > 0 {
		a.major = forceVersion
	}

	if err := a.decodeStrings(a.chunk("STRG")); err != nil {
		return fmt.Errorf("decoding strings: %w", err)
	}
	a.readTitle()

	if err := a.decodeTextures(a.chunk("TXTR")); err != nil {
		return fmt.Errorf("decoding textures: %w", err)
	}
	if err := a.decodeTPAGs(a.chunk("TPAG")); err != nil {
		return fmt.Errorf("decoding atlas rects: %w", err)
	}
	if err := a.decodeSprites(a.chunk("SPRT")); err != nil {
		return fmt.Errorf("decoding sprites: %w", err)
	}
	if c := a.chunk("FONT"); c != nil {
		if err := a.decodeFonts(c); err != nil {
			return fmt.Errorf("decoding fonts: %w", err)
		}
	}
	if c := a.chunk("OBJT"); c != nil {
		if err := a.decodeObjects(c); err != nil {
			return fmt.Errorf("decoding objects: %w", err)
		}
	}
	if err := a.loadAudio(); err != nil {
		return err
	}

	a.log.Debug("Decoded archive",
		"title", a.title,
		"version", fmt.Sprintf("%d.%d", a.major, a.minor),
		"strings", len(a.strings),
		"textures", len(a.textures),
		"sprites", len(a.sprites),
		"tracks", len(a.audio),
		"resources", len(a.resources))
	return nil
}

// readVersion reads the GEN8 version fields. GEN8 is advisory: on any
// failure the defaults stay.
func (a *Archive) readVersion() {
	c := a.chunk("GEN8")
	if c == nil {
		return
	}
	bytecode, err1 := c.Byte(1)
	major, err2 := c.Int32(44)
	minor, err3 := c.Int32(48)
	if err := firstError(err1, err2, err3); err != nil {
		a.log.Debug("Ignoring unreadable GEN8 version", "error", err)
		return
	}
	a.bytecode = int(bytecode)
	a.major = int(major)
	a.minor = int(minor)
}

// readTitle resolves the GEN8 display name. Failures keep the default.
func (a *Archive) readTitle() {
	c := a.chunk("GEN8")
	if c == nil {
		return
	}
	ptr, err := c.Uint32(40)
	if err != nil {
		return
	}
	if name, err := a.stringAt(int64(ptr)); err == nil && name != "" {
		a.title = name
	}
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// wrap attaches the archive's identity to a decode failure.
func (a *Archive) wrap(err error) error {
	return fmt.Errorf("processing game %q (GM version %d.%d): %w", a.title, a.major, a.minor, err)
}

func (a *Archive) chunk(tag string) *iff.Chunk {
	return a.chunks[tag]
}

func (a *Archive) register(abs int64, r Resource) {
	a.resources[abs] = r
}

// resource looks up abs without locking; decoders run under the write lock
// or before the archive is shared.
func (a *Archive) resource(abs int64) (Resource, error) {
	r, ok := a.resources[abs]
	if !ok {
		return nil, iff.Errorf(iff.KindNotFound, "no resource at 0x%08x", abs)
	}
	return r, nil
}

func resourceAs[T Resource](a *Archive, abs int64) (T, error) {
	var zero T
	r, err := a.resource(abs)
	if err != nil {
		return zero, err
	}
	t, ok := r.(T)
	if !ok {
		return zero, iff.Errorf(iff.KindTypeMismatch, "resource at 0x%08x is a %s, want %T", abs, r.Kind(), zero)
	}
	return t, nil
}
