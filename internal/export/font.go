package export

import (
	"encoding/json"

	"github.com/jchantrell/gmdata/internal/archive"
)

// FontMetrics is the JSON written next to each font sheet
type FontMetrics struct {
	Name         string        `json:"name"`
	DisplayName  string        `json:"display_name"`
	Size         int           `json:"size"`
	Bold         bool          `json:"bold"`
	Italic       bool          `json:"italic"`
	RangeStart   int           `json:"range_start"`
	RangeEnd     int           `json:"range_end"`
	Charset      int           `json:"charset"`
	Antialiasing int           `json:"antialiasing"`
	ScaleX       float32       `json:"scale_x"`
	ScaleY       float32       `json:"scale_y"`
	Glyphs       []GlyphMetric `json:"glyphs"`
}

// GlyphMetric locates one glyph on the font sheet
type GlyphMetric struct {
	Char    string         `json:"char"`
	X       int            `json:"x"`
	Y       int            `json:"y"`
	Width   int            `json:"width"`
	Height  int            `json:"height"`
	Shift   int            `json:"shift"`
	Offset  int            `json:"offset"`
	Kerning *KerningMetric `json:"kerning,omitempty"`
}

type KerningMetric struct {
	Other  string `json:"other"`
	Amount int    `json:"amount"`
}

// NewFontMetrics collects the metrics of f, glyphs ordered by character
func NewFontMetrics(f *archive.FontResource) FontMetrics {
	m := FontMetrics{
		Name:         f.CodeName,
		DisplayName:  f.DisplayName,
		Size:         f.Size,
		Bold:         f.Bold,
		Italic:       f.Italic,
		RangeStart:   int(f.RangeStart),
		RangeEnd:     int(f.RangeEnd),
		Charset:      f.Charset,
		Antialiasing: f.Antialiasing,
		ScaleX:       f.ScaleX,
		ScaleY:       f.ScaleY,
	}
	for _, g := range f.Glyphs() {
		gm := GlyphMetric{
			Char:   string(g.Char),
			X:      g.X,
			Y:      g.Y,
			Width:  g.Width,
			Height: g.Height,
			Shift:  g.Shift,
			Offset: g.Offset,
		}
		if g.Kerning.Other != 0 {
			gm.Kerning = &KerningMetric{Other: string(g.Kerning.Other), Amount: g.Kerning.Amount}
		}
		m.Glyphs = append(m.Glyphs, gm)
	}
	return m
}

func (e *Exporter) fontJobs() []job {
	fonts := e.archive.Fonts()
	jobs := make([]job, 0, len(fonts))
	for _, f := range fonts {
		jobs = append(jobs, job{
			description: f.CodeName,
			run:         func() (result, error) { return e.exportFont(f) },
		})
	}
	return jobs
}

// exportFont writes the font's atlas rect as PNG and its glyph metrics as JSON
func (e *Exporter) exportFont(f *archive.FontResource) (result, error) {
	var res result
	err := e.write(e.layout.FontSheetPath(f.CodeName), &res, func(path string) (int64, error) {
		img, err := f.Sheet.Image()
		if err != nil {
			return 0, err
		}
		return writePNG(path, img)
	})
	if err != nil {
		return res, err
	}

	err = e.write(e.layout.FontMetricsPath(f.CodeName), &res, func(path string) (int64, error) {
		data, err := json.MarshalIndent(NewFontMetrics(f), "", "  ")
		if err != nil {
			return 0, err
		}
		return writeFile(path, data)
	})
	return res, err
}
