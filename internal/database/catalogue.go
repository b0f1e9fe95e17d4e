package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jchantrell/gmdata/internal/archive"
)

func ref(table string) *Reference { return &Reference{Table: table} }

// CatalogueTables lists the catalogue schema in write order. Every
// reference points at a table written earlier, except the object parent
// which refers to its own table.
func CatalogueTables() []TableSchema {
	return []TableSchema{
		{Name: "ArchiveInfo", Columns: []Column{
			{Name: "Title", Type: TypeText},
			{Name: "Major", Type: TypeInteger},
			{Name: "Minor", Type: TypeInteger},
			{Name: "Bytecode", Type: TypeInteger},
			{Name: "MissingAudio", Type: TypeBool},
			{Name: "Chunks", Type: TypeText, Array: true},
			{Name: "CreatedAt", Type: TypeText},
		}},
		{Name: "Strings", Columns: []Column{
			{Name: "Offset", Type: TypeInteger},
			{Name: "Value", Type: TypeText},
			{Name: "Display", Type: TypeText},
		}},
		{Name: "Textures", Columns: []Column{
			{Name: "Offset", Type: TypeInteger},
			{Name: "Size", Type: TypeInteger},
			{Name: "Format", Type: TypeText},
		}},
		{Name: "Tpags", Columns: []Column{
			{Name: "Offset", Type: TypeInteger},
			{Name: "X", Type: TypeInteger},
			{Name: "Y", Type: TypeInteger},
			{Name: "Width", Type: TypeInteger},
			{Name: "Height", Type: TypeInteger},
			{Name: "TargetX", Type: TypeInteger},
			{Name: "TargetY", Type: TypeInteger},
			{Name: "TargetWidth", Type: TypeInteger},
			{Name: "TargetHeight", Type: TypeInteger},
			{Name: "BoundingWidth", Type: TypeInteger},
			{Name: "BoundingHeight", Type: TypeInteger},
			{Name: "Texture", Type: TypeInteger, References: ref("Textures")},
		}},
		{Name: "Sprites", Columns: []Column{
			{Name: "Offset", Type: TypeInteger},
			{Name: "Name", Type: TypeText},
			{Name: "Width", Type: TypeInteger},
			{Name: "Height", Type: TypeInteger},
			{Name: "Frames", Type: TypeInteger, Array: true, References: ref("Tpags")},
		}},
		{Name: "AudioGroups", Columns: []Column{
			{Name: "Offset", Type: TypeInteger},
			{Name: "Name", Type: TypeText},
			{Name: "External", Type: TypeBool},
		}},
		{Name: "Audio", Columns: []Column{
			{Name: "Offset", Type: TypeInteger},
			{Name: "Name", Type: TypeText},
			{Name: "Filename", Type: TypeText},
			{Name: "Type", Type: TypeText},
			{Name: "Flags", Type: TypeText},
			{Name: "Embedded", Type: TypeBool},
			{Name: "Size", Type: TypeInteger},
			{Name: "Effects", Type: TypeInteger},
			{Name: "Volume", Type: TypeReal},
			{Name: "Pitch", Type: TypeReal},
			{Name: "AudioGroup", Type: TypeInteger, References: ref("AudioGroups")},
		}},
		{Name: "Fonts", Columns: []Column{
			{Name: "Offset", Type: TypeInteger},
			{Name: "CodeName", Type: TypeText},
			{Name: "DisplayName", Type: TypeText},
			{Name: "Size", Type: TypeInteger},
			{Name: "Bold", Type: TypeBool},
			{Name: "Italic", Type: TypeBool},
			{Name: "RangeStart", Type: TypeInteger},
			{Name: "RangeEnd", Type: TypeInteger},
			{Name: "Charset", Type: TypeInteger},
			{Name: "Antialiasing", Type: TypeInteger},
			{Name: "ScaleX", Type: TypeReal},
			{Name: "ScaleY", Type: TypeReal},
			{Name: "Sheet", Type: TypeInteger, References: ref("Tpags")},
		}},
		{Name: "Glyphs", Columns: []Column{
			{Name: "Font", Type: TypeInteger, References: ref("Fonts")},
			{Name: "Character", Type: TypeText},
			{Name: "Codepoint", Type: TypeInteger},
			{Name: "X", Type: TypeInteger},
			{Name: "Y", Type: TypeInteger},
			{Name: "Width", Type: TypeInteger},
			{Name: "Height", Type: TypeInteger},
			{Name: "Shift", Type: TypeInteger},
			{Name: "Offset", Type: TypeInteger},
			{Name: "KerningOther", Type: TypeText},
			{Name: "KerningAmount", Type: TypeInteger},
		}},
		{Name: "Objects", Columns: []Column{
			{Name: "Offset", Type: TypeInteger},
			{Name: "Name", Type: TypeText},
			{Name: "Sprite", Type: TypeInteger, References: ref("Sprites")},
			{Name: "Visible", Type: TypeBool},
			{Name: "Solid", Type: TypeBool},
			{Name: "Depth", Type: TypeInteger},
			{Name: "Persistent", Type: TypeBool},
			{Name: "Parent", Type: TypeInteger},
			{Name: "Ancestors", Type: TypeInteger, Array: true},
			{Name: "Mask", Type: TypeInteger},
			{Name: "Physics", Type: TypeBool},
			{Name: "Sensor", Type: TypeBool},
			{Name: "Shape", Type: TypeText},
			{Name: "Density", Type: TypeReal},
			{Name: "Restitution", Type: TypeReal},
			{Name: "PhysicsGroup", Type: TypeReal},
			{Name: "LinearDamping", Type: TypeReal},
			{Name: "AngularDamping", Type: TypeReal},
			{Name: "Friction", Type: TypeReal},
			{Name: "Kinematic", Type: TypeReal},
		}},
	}
}

// CatalogueStats summarises one catalogue write
type CatalogueStats struct {
	Tables   int
	Rows     int
	PerTable map[string]int
	Duration time.Duration
}

// Catalogue writes the resources of an archive into SQLite tables
type Catalogue struct {
	ddl      *DDLManager
	inserter *BulkInserter
	tables   []TableSchema
}

// NewCatalogue creates a catalogue writer over db
func NewCatalogue(db *Database, options *BulkInsertOptions) *Catalogue {
	return &Catalogue{
		ddl:      NewDDLManager(db),
		inserter: NewBulkInserter(db, options),
		tables:   CatalogueTables(),
	}
}

// CreateSchema creates every catalogue table
func (c *Catalogue) CreateSchema(ctx context.Context, progress SchemaProgressCallback) error {
	return c.ddl.CreateSchemas(ctx, c.tables, progress)
}

// Drop removes every catalogue table
func (c *Catalogue) Drop(ctx context.Context) error {
	return c.ddl.DropSchemas(ctx, c.tables)
}

// Write inserts every resource of a, one table at a time. The schema must
// already exist.
func (c *Catalogue) Write(ctx context.Context, a *archive.Archive, progress SchemaProgressCallback) (*CatalogueStats, error) {
	start := time.Now()

	data, err := BuildTableData(a, c.tables)
	if err != nil {
		return nil, err
	}

	stats := &CatalogueStats{PerTable: make(map[string]int, len(data))}
	for i, td := range data {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := c.inserter.InsertTableData(ctx, td); err != nil {
			return nil, fmt.Errorf("writing %s: %w", td.Schema.SQLName(), err)
		}
		stats.Tables++
		stats.Rows += len(td.Rows)
		stats.PerTable[td.Schema.SQLName()] = len(td.Rows)
		if progress != nil {
			progress(i+1, len(data), td.Schema.Name)
		}
		slog.Debug("Wrote catalogue table", "table", td.Schema.SQLName(), "rows", len(td.Rows))
	}
	stats.Duration = time.Since(start)
	return stats, nil
}

// BuildTableData converts the resources of a into rows for tables, which
// must be the catalogue schema.
func BuildTableData(a *archive.Archive, tables []TableSchema) ([]*TableData, error) {
	b := newRowBuilder(a)
	out := make([]*TableData, 0, len(tables))
	for i := range tables {
		build, ok := b.builders()[tables[i].Name]
		if !ok {
			return nil, fmt.Errorf("no row builder for table %s", tables[i].Name)
		}
		out = append(out, &TableData{Schema: &tables[i], Rows: build()})
	}
	return out, nil
}

// rowBuilder holds the index of every resource so references can be
// written as _index values.
type rowBuilder struct {
	a *archive.Archive

	tpags   map[*archive.TPAGResource]int
	sprites map[*archive.SpriteResource]int
	objects map[*archive.ObjectResource]int
}

func newRowBuilder(a *archive.Archive) *rowBuilder {
	return &rowBuilder{
		a:       a,
		tpags:   indexOf(a.TPAGs()),
		sprites: indexOf(a.Sprites()),
		objects: indexOf(a.Objects()),
	}
}

func indexOf[T comparable](items []T) map[T]int {
	m := make(map[T]int, len(items))
	for i, item := range items {
		m[item] = i
	}
	return m
}

// lookup returns the index of item, or -1 when it is nil or unknown
func lookup[T comparable](m map[T]int, item T) int {
	if i, ok := m[item]; ok {
		return i
	}
	return -1
}

func (b *rowBuilder) builders() map[string]func() []RowData {
	return map[string]func() []RowData{
		"ArchiveInfo": b.archiveInfo,
		"Strings":     b.strings,
		"Textures":    b.textures,
		"Tpags":       b.atlasRects,
		"Sprites":     b.spriteRows,
		"AudioGroups": b.audioGroups,
		"Audio":       b.audio,
		"Fonts":       b.fontRows,
		"Glyphs":      b.glyphs,
		"Objects":     b.objectRows,
	}
}

func (b *rowBuilder) archiveInfo() []RowData {
	major, minor := b.a.Version()
	var chunks []string
	for _, c := range b.a.Chunks().Chunks() {
		chunks = append(chunks, c.Tag)
	}
	return []RowData{{Index: 0, Values: map[string]any{
		"Title":        b.a.Title(),
		"Major":        major,
		"Minor":        minor,
		"Bytecode":     b.a.BytecodeVersion(),
		"MissingAudio": b.a.MissingAudio(),
		"Chunks":       chunks,
		"CreatedAt":    time.Now().UTC().Format(time.RFC3339),
	}}}
}

func (b *rowBuilder) strings() []RowData {
	var rows []RowData
	for i, s := range b.a.Strings() {
		rows = append(rows, RowData{Index: i, Values: map[string]any{
			"Offset":  s.Absolute(),
			"Value":   s.Value(),
			"Display": s.Display(),
		}})
	}
	return rows
}

func (b *rowBuilder) textures() []RowData {
	var rows []RowData
	for _, t := range b.a.Textures() {
		rows = append(rows, RowData{Index: t.Index, Values: map[string]any{
			"Offset": t.Absolute(),
			"Size":   t.Len(),
			"Format": string(t.Format()),
		}})
	}
	return rows
}

func (b *rowBuilder) atlasRects() []RowData {
	var rows []RowData
	for i, t := range b.a.TPAGs() {
		texture := -1
		if sheet := t.Sheet(); sheet != nil {
			texture = sheet.Index
		}
		rows = append(rows, RowData{Index: i, Values: map[string]any{
			"Offset":         t.Absolute(),
			"X":              t.X,
			"Y":              t.Y,
			"Width":          t.Width,
			"Height":         t.Height,
			"TargetX":        t.TargetX,
			"TargetY":        t.TargetY,
			"TargetWidth":    t.TargetWidth,
			"TargetHeight":   t.TargetHeight,
			"BoundingWidth":  t.BoundingWidth,
			"BoundingHeight": t.BoundingHeight,
			"Texture":        texture,
		}})
	}
	return rows
}

func (b *rowBuilder) spriteRows() []RowData {
	var rows []RowData
	for i, s := range b.a.Sprites() {
		frames := make([]int, 0, len(s.Frames()))
		for _, f := range s.Frames() {
			frames = append(frames, lookup(b.tpags, f))
		}
		rows = append(rows, RowData{Index: i, Values: map[string]any{
			"Offset": s.Absolute(),
			"Name":   s.Name,
			"Width":  s.Width,
			"Height": s.Height,
			"Frames": frames,
		}})
	}
	return rows
}

func (b *rowBuilder) audioGroups() []RowData {
	var rows []RowData
	for _, g := range b.a.AudioGroups() {
		rows = append(rows, RowData{Index: g.Index, Values: map[string]any{
			"Offset":   offsetOrNil(g.Absolute()),
			"Name":     g.Name,
			"External": g.External(),
		}})
	}
	return rows
}

func (b *rowBuilder) audio() []RowData {
	var rows []RowData
	for i, r := range b.a.AudioTracks() {
		group := -1
		if g := r.Group(); g != nil {
			group = g.Index
		}
		values := map[string]any{
			"Offset":     offsetOrNil(r.Absolute()),
			"Name":       r.Name,
			"Filename":   r.Filename,
			"Type":       r.Type,
			"Flags":      r.Flags,
			"Embedded":   r.Embedded(),
			"Effects":    r.Effects,
			"Volume":     r.Volume,
			"Pitch":      r.Pitch,
			"AudioGroup": group,
		}
		if r.Embedded() {
			values["Size"] = r.Len()
		}
		rows = append(rows, RowData{Index: i, Values: values})
	}
	return rows
}

func (b *rowBuilder) fontRows() []RowData {
	var rows []RowData
	for i, f := range b.a.Fonts() {
		rows = append(rows, RowData{Index: i, Values: map[string]any{
			"Offset":       f.Absolute(),
			"CodeName":     f.CodeName,
			"DisplayName":  f.DisplayName,
			"Size":         f.Size,
			"Bold":         f.Bold,
			"Italic":       f.Italic,
			"RangeStart":   int(f.RangeStart),
			"RangeEnd":     int(f.RangeEnd),
			"Charset":      f.Charset,
			"Antialiasing": f.Antialiasing,
			"ScaleX":       f.ScaleX,
			"ScaleY":       f.ScaleY,
			"Sheet":        lookup(b.tpags, f.Sheet),
		}})
	}
	return rows
}

func (b *rowBuilder) glyphs() []RowData {
	var rows []RowData
	for fi, f := range b.a.Fonts() {
		for _, g := range f.Glyphs() {
			values := map[string]any{
				"Font":          fi,
				"Character":     string(g.Char),
				"Codepoint":     int(g.Char),
				"X":             g.X,
				"Y":             g.Y,
				"Width":         g.Width,
				"Height":        g.Height,
				"Shift":         g.Shift,
				"Offset":        g.Offset,
				"KerningAmount": g.Kerning.Amount,
			}
			if g.Kerning.Other != 0 {
				values["KerningOther"] = string(g.Kerning.Other)
			}
			rows = append(rows, RowData{Index: len(rows), Values: values})
		}
	}
	return rows
}

func (b *rowBuilder) objectRows() []RowData {
	var rows []RowData
	for i, o := range b.a.Objects() {
		values := map[string]any{
			"Offset":         o.Absolute(),
			"Name":           o.Name,
			"Sprite":         lookup(b.sprites, o.Sprite()),
			"Visible":        o.Visible,
			"Solid":          o.Solid,
			"Depth":          o.Depth,
			"Persistent":     o.Persistent,
			"Mask":           o.MaskIndex,
			"Physics":        o.Physics,
			"Sensor":         o.Sensor,
			"Shape":          o.Shape,
			"Density":        o.Density,
			"Restitution":    o.Restitution,
			"PhysicsGroup":   o.Group,
			"LinearDamping":  o.LinearDamping,
			"AngularDamping": o.AngularDamping,
			"Friction":       o.Friction,
			"Kinematic":      o.Kinematic,
		}
		if parent, err := o.Parent(); err == nil && parent != nil {
			values["Parent"] = lookup(b.objects, parent)
		}
		if ancestors, err := o.Ancestors(); err == nil {
			indices := make([]int, len(ancestors))
			for j, anc := range ancestors {
				indices[j] = lookup(b.objects, anc)
			}
			values["Ancestors"] = indices
		}
		rows = append(rows, RowData{Index: i, Values: values})
	}
	return rows
}

func offsetOrNil(abs int64) any {
	if abs < 0 {
		return nil
	}
	return abs
}
