package archive

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/jchantrell/gmdata/internal/iff"
)

// AudioFlags is the SOND flag word.
type AudioFlags uint32

const (
	FlagEmbedded   AudioFlags = 0x01
	FlagCompressed AudioFlags = 0x02
	FlagRegular    AudioFlags = 0x64
)

// Has reports whether every bit of flag is set.
func (f AudioFlags) Has(flag AudioFlags) bool { return f&flag == flag }

func (f AudioFlags) String() string {
	var names []string
	for _, fl := range []struct {
		flag AudioFlags
		name string
	}{{FlagRegular, "REGULAR"}, {FlagEmbedded, "EMBEDDED"}, {FlagCompressed, "COMPRESSED"}} {
		if f.Has(fl.flag) {
			names = append(names, fl.name)
		}
	}
	return "[" + strings.Join(names, ", ") + "]"
}

// AudioGroupResource is a named set of tracks. Groups missing from AGRP are
// synthesised and have no chunk backing.
type AudioGroupResource struct {
	span

	Name  string
	Index int

	members []*AudioResource
}

func (g *AudioGroupResource) Kind() Kind { return KindAudioGroup }

// External reports whether the group was synthesised rather than read.
func (g *AudioGroupResource) External() bool { return g.src == nil }

// Members returns the group's tracks in reconciliation order.
func (g *AudioGroupResource) Members() []*AudioResource {
	return append([]*AudioResource(nil), g.members...)
}

func (g *AudioGroupResource) String() string {
	return fmt.Sprintf("AudioGroupResource [name=%s, index=%d, members=%d]", g.Name, g.Index, len(g.members))
}

// AudioResource is one track. Embedded tracks are AUDO blobs; the others are
// files next to the archive, read through the asset source on demand.
type AudioResource struct {
	span

	Name     string
	Filename string
	Type     string
	Flags    AudioFlags
	Effects  int
	Volume   float32
	Pitch    float32

	group *AudioGroupResource
	a     *Archive

	once sync.Once
	data []byte
	err  error
}

func (r *AudioResource) Kind() Kind { return KindAudio }

// Embedded reports whether the track is stored inside an archive.
func (r *AudioResource) Embedded() bool {
	return r.Flags.Has(FlagEmbedded) || r.Flags.Has(FlagCompressed)
}

// Group returns the owning group, or nil for a blob no metadata claimed.
func (r *AudioResource) Group() *AudioGroupResource { return r.group }

// Bytes returns the encoded audio. External tracks are read once and kept.
func (r *AudioResource) Bytes() ([]byte, error) {
	if r.src != nil {
		return r.span.Bytes()
	}
	r.once.Do(func() {
		if r.Filename == "" {
			r.err = iff.Errorf(iff.KindNotFound, "external track %s has no file name", r.Name)
			return
		}
		r.data, r.err = r.a.assets.ReadAsset(r.Filename)
		if r.err != nil {
			r.err = fmt.Errorf("reading external track %s: %w", r.Filename, r.err)
			return
		}
		if err := r.fixLength(len(r.data)); err != nil {
			r.err = err
		}
	})
	return r.data, r.err
}

func (r *AudioResource) verify() error {
	if r.Embedded() && r.src == nil {
		return iff.Errorf(iff.KindInvariantViolation, "track %s is flagged %s but has no chunk backing", r.Name, r.Flags)
	}
	return nil
}

func (r *AudioResource) setGroup(g *AudioGroupResource) error {
	if r.group != nil && r.group != g {
		return iff.Errorf(iff.KindInvariantViolation, "track %s already belongs to group %s", r.Name, r.group.Name)
	}
	r.group = g
	g.members = append(g.members, r)
	return nil
}

func (r *AudioResource) String() string {
	where := "external"
	if r.src != nil {
		where = fmt.Sprintf("0x%08x", r.Absolute())
	}
	return fmt.Sprintf("AudioResource [name=%s, file=%s, flags=%s, %d bytes @ %s]", r.Name, r.Filename, r.Flags, r.length, where)
}

// soundRecord is a decoded SOND entry awaiting reconciliation.
type soundRecord struct {
	ptr     int64
	name    string
	path    string
	typ     string
	flags   AudioFlags
	effects int
	volume  float32
	pitch   float32
	group   *AudioGroupResource
	ordinal int
}

// audioState holds the audio tables so a failed reload can put them back.
type audioState struct {
	audio        []*AudioResource
	audioByName  map[string]*AudioResource
	groups       []*AudioGroupResource
	groupByName  map[string]*AudioGroupResource
	audioKeys    []int64
	resources    map[int64]Resource
	missingAudio bool
}

func (a *Archive) saveAudio() *audioState {
	st := &audioState{
		audio:        a.audio,
		audioByName:  a.audioByName,
		groups:       a.groups,
		groupByName:  a.groupByName,
		audioKeys:    a.audioKeys,
		resources:    make(map[int64]Resource, len(a.audioKeys)),
		missingAudio: a.missingAudio,
	}
	for _, key := range a.audioKeys {
		if r, ok := a.resources[key]; ok {
			st.resources[key] = r
		}
	}
	return st
}

func (a *Archive) restoreAudio(st *audioState) {
	for _, key := range a.audioKeys {
		delete(a.resources, key)
	}
	for key, r := range st.resources {
		a.resources[key] = r
	}
	a.audio = st.audio
	a.audioByName = st.audioByName
	a.groups = st.groups
	a.groupByName = st.groupByName
	a.audioKeys = st.audioKeys
	a.missingAudio = st.missingAudio
}

// loadAudio rebuilds every audio table: blobs from AUDO and any
// supplementary archives, then groups, then the metadata merge. On failure
// the previous tables are restored.
func (a *Archive) loadAudio() (err error) {
	prev := a.saveAudio()
	defer func() {
		if err != nil {
			a.restoreAudio(prev)
		}
	}()

	for _, key := range a.audioKeys {
		delete(a.resources, key)
	}
	a.audioKeys = nil
	a.missingAudio = false
	a.audio = nil
	a.audioByName = nil

	blobs, err := a.readAudioBlobs(a.chunk("AUDO"), true)
	if err != nil {
		return fmt.Errorf("decoding audio data: %w", err)
	}
	a.audio = append(blobs, a.supplementBlobs()...)

	if err := a.decodeAudioGroups(); err != nil {
		return fmt.Errorf("decoding audio groups: %w", err)
	}
	if err := a.reconcileAudio(); err != nil {
		return fmt.Errorf("decoding audio metadata: %w", err)
	}

	if a.missingAudio {
		a.log.Warn("Archive references audio that is stored elsewhere",
			"tracks", len(a.audio),
			"supplements", len(a.audioFiles),
			"auto_search", a.autoSearch)
	}
	return nil
}

// readAudioBlobs reads the length-prefixed blobs of an AUDO chunk.
func (a *Archive) readAudioBlobs(c *iff.Chunk, register bool) ([]*AudioResource, error) {
	ptrs, err := readPointers(c, 0)
	if err != nil {
		return nil, err
	}

	blobs := make([]*AudioResource, 0, len(ptrs))
	for i, ptr := range ptrs {
		off, err := entryOffset(c, ptr)
		if err != nil {
			return nil, fmt.Errorf("audio blob %d: %w", i, err)
		}
		n, err := c.Int32(off)
		if err != nil {
			return nil, fmt.Errorf("audio blob %d length: %w", i, err)
		}
		s, err := newSpan(c, off+4, int(n))
		if err != nil {
			return nil, fmt.Errorf("audio blob %d: %w", i, err)
		}
		if _, err := s.Bytes(); err != nil {
			return nil, fmt.Errorf("audio blob %d: %w", i, err)
		}

		r := &AudioResource{span: s, a: a}
		blobs = append(blobs, r)
		if register {
			a.registerAudio(ptr, r)
		}
	}
	return blobs, nil
}

// supplementBlobs collects blobs from the explicit supplementary files and,
// with automatic search on, from every sibling asset. Candidates that cannot
// be read or hold no FORM/AUDO are skipped.
func (a *Archive) supplementBlobs() []*AudioResource {
	names := append([]string(nil), a.audioFiles...)
	if a.autoSearch {
		listed, err := a.assets.ListAssets()
		if err != nil {
			a.log.Debug("Listing audio candidates failed", "error", err)
		}
		seen := make(map[string]bool, len(names))
		for _, n := range names {
			seen[n] = true
		}
		for _, n := range listed {
			if !seen[n] {
				names = append(names, n)
			}
		}
	}

	var out []*AudioResource
	for _, name := range names {
		blobs, err := a.readSupplement(name)
		if err != nil {
			a.log.Debug("Skipping audio candidate", "file", name, "error", err)
			continue
		}
		a.log.Debug("Loaded audio supplement", "file", name, "blobs", len(blobs))
		out = append(out, blobs...)
	}
	return out
}

// readSupplement pulls the AUDO chunk out of an audio-group archive. Mapped
// sources are read sparsely: only chunk headers and AUDO itself are copied.
func (a *Archive) readSupplement(name string) ([]*AudioResource, error) {
	var (
		r    io.ReaderAt
		size int64
	)
	if mapped, ok := a.assets.(MappedAssetSource); ok {
		m, err := mapped.MapAsset(name)
		if err != nil {
			return nil, err
		}
		defer m.Close()
		r, size = m, int64(m.Len())
	} else {
		data, err := a.assets.ReadAsset(name)
		if err != nil {
			return nil, err
		}
		r, size = bytes.NewReader(data), int64(len(data))
	}

	audo, err := iff.ReadChunk(r, size, "FORM", "AUDO")
	if err != nil {
		return nil, err
	}
	return a.readAudioBlobs(audo, false)
}

// decodeAudioGroups reads AGRP. An absent or empty table yields a single
// DEFAULT group.
func (a *Archive) decodeAudioGroups() error {
	a.groups = nil
	a.groupByName = make(map[string]*AudioGroupResource)

	var ptrs []int64
	c := a.chunk("AGRP")
	if c != nil {
		var err error
		if ptrs, err = readPointers(c, 0); err != nil {
			return err
		}
	}
	if len(ptrs) == 0 {
		a.addGroup(&AudioGroupResource{Name: "DEFAULT", Index: 0})
		return nil
	}

	for i, ptr := range ptrs {
		off, err := entryOffset(c, ptr)
		if err != nil {
			return fmt.Errorf("audio group %d: %w", i, err)
		}
		namePtr, err := c.Uint32(off)
		if err != nil {
			return fmt.Errorf("audio group %d name: %w", i, err)
		}
		name, err := a.stringAt(int64(namePtr))
		if err != nil {
			return fmt.Errorf("audio group %d name: %w", i, err)
		}
		s, err := newSpan(c, off, 4)
		if err != nil {
			return err
		}
		g := &AudioGroupResource{span: s, Name: name, Index: i}
		a.addGroup(g)
		a.registerAudio(ptr, g)
	}
	return nil
}

func (a *Archive) addGroup(g *AudioGroupResource) {
	a.groups = append(a.groups, g)
	a.groupByName[g.Name] = g
}

// group returns the group at index, growing the table with anonymous groups
// when the index is past its end.
func (a *Archive) group(index int) *AudioGroupResource {
	if index < 0 {
		index = 0
	}
	for j := len(a.groups); j <= index; j++ {
		a.addGroup(&AudioGroupResource{Name: fmt.Sprintf("ANONYMOUS_%d", j), Index: j})
	}
	return a.groups[index]
}

func (a *Archive) decodeSound(c *iff.Chunk, ptr int64) (*soundRecord, error) {
	off, err := entryOffset(c, ptr)
	if err != nil {
		return nil, err
	}

	cur := c.Cursor(off)
	namePtr := int64(cur.Uint32())
	flags := AudioFlags(cur.Uint32())
	typePtr := int64(cur.Uint32())
	pathPtr := int64(cur.Uint32())
	effects := int(cur.Int32())
	volume := cur.Float32()
	pitch := cur.Float32()
	group := int(cur.Int32())
	ordinal := int(cur.Int32())
	if err := cur.Err(); err != nil {
		return nil, err
	}

	rec := &soundRecord{
		ptr:     ptr,
		flags:   flags,
		effects: effects,
		volume:  volume,
		pitch:   pitch,
		group:   a.group(group),
		ordinal: ordinal,
	}
	if rec.name, err = a.stringAt(namePtr); err != nil {
		return nil, fmt.Errorf("name: %w", err)
	}
	if rec.typ, err = a.stringAt(typePtr); err != nil {
		return nil, fmt.Errorf("type: %w", err)
	}
	if rec.path, err = a.stringAt(pathPtr); err != nil {
		return nil, fmt.Errorf("file: %w", err)
	}
	return rec, nil
}

// reconcileAudio matches SOND metadata to physical blobs. Metadata is not
// stored in blob order: sorting by (group, ordinal) recovers it. Embedded
// tracks claim the blob under the cursor, external tracks are inserted at
// the cursor. Running out of blobs marks the archive as missing audio and
// stops the walk.
func (a *Archive) reconcileAudio() error {
	c := a.chunk("SOND")
	ptrs, err := readPointers(c, 0)
	if err != nil {
		return err
	}

	records := make([]*soundRecord, 0, len(ptrs))
	for i, ptr := range ptrs {
		rec, err := a.decodeSound(c, ptr)
		if err != nil {
			return fmt.Errorf("sound %d at 0x%08x: %w", i, ptr, err)
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].group.Index != records[j].group.Index {
			return records[i].group.Index < records[j].group.Index
		}
		return records[i].ordinal < records[j].ordinal
	})

	a.audioByName = make(map[string]*AudioResource, 2*len(records))
	claimed := make(map[*AudioResource]bool, len(records))
	cursor := 0

	for _, rec := range records {
		var r *AudioResource
		if rec.flags.Has(FlagEmbedded) || rec.flags.Has(FlagCompressed) {
			if cursor >= len(a.audio) {
				a.missingAudio = true
				break
			}
			r = a.audio[cursor]
		} else {
			r = &AudioResource{a: a}
			a.audio = append(a.audio, nil)
			copy(a.audio[cursor+1:], a.audio[cursor:])
			a.audio[cursor] = r
		}
		cursor++

		if claimed[r] {
			return iff.Errorf(iff.KindInvariantViolation, "track %s claims audio resource %s twice (index %d)", rec.name, r, cursor-1)
		}
		claimed[r] = true

		r.Name = rec.name
		r.Filename = rec.path
		r.Type = rec.typ
		r.Flags = rec.flags
		r.Effects = rec.effects
		r.Volume = rec.volume
		r.Pitch = rec.pitch
		if err := r.verify(); err != nil {
			return err
		}
		if err := r.setGroup(rec.group); err != nil {
			return err
		}

		a.audioByName[rec.path] = r
		a.audioByName[rec.name] = r
		a.registerAudio(rec.ptr, r)
	}
	return nil
}

func (a *Archive) registerAudio(abs int64, r Resource) {
	a.register(abs, r)
	a.audioKeys = append(a.audioKeys, abs)
}

// MissingAudio reports whether embedded tracks outnumber the blobs found.
func (a *Archive) MissingAudio() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.missingAudio
}

// AutoAudioSearch reports whether ReloadAudio scans sibling assets.
func (a *Archive) AutoAudioSearch() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.autoSearch
}

// SetAutoAudioSearch toggles scanning of sibling assets on the next reload.
func (a *Archive) SetAutoAudioSearch(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.autoSearch = enabled
}

// AddAudioFile queues a supplementary archive for the next ReloadAudio. It
// is only accepted while audio is missing and reports false for a file that
// is already queued.
func (a *Archive) AddAudioFile(name string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.missingAudio {
		return false, fmt.Errorf("archive is not missing audio")
	}
	for _, existing := range a.audioFiles {
		if existing == name {
			return false, nil
		}
	}
	a.audioFiles = append(a.audioFiles, name)
	return true, nil
}

// ReloadAudio reruns audio decoding with the current supplements.
func (a *Archive) ReloadAudio() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.loadAudio(); err != nil {
		return a.wrap(err)
	}
	return nil
}
