// Package export writes decoded archive resources to disk.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jchantrell/gmdata/internal/archive"
	"github.com/jchantrell/gmdata/internal/config"
)

// Options configures an Exporter
type Options struct {
	// GIF also writes an animation next to each sprite's frames
	GIF bool

	// GIFOptions controls the animations
	GIFOptions GIFOptions

	// Overwrite replaces files that already exist with a non-zero size
	Overwrite bool

	// Workers bounds how many resources are written at once
	Workers int
}

// DefaultOptions returns options that write PNG frames only
func DefaultOptions() *Options {
	return &Options{
		GIFOptions: DefaultGIFOptions(),
		Overwrite:  true,
		Workers:    runtime.NumCPU(),
	}
}

// ProgressCallback is called to report export progress
type ProgressCallback func(current int, total int, description string)

// Stats summarises an export
type Stats struct {
	Files    int
	Skipped  int
	Bytes    int64
	Duration time.Duration
}

func (s *Stats) add(o result) {
	s.Files += o.files
	s.Skipped += o.skipped
	s.Bytes += o.bytes
}

// result is what one job wrote
type result struct {
	files   int
	skipped int
	bytes   int64
}

// job exports one resource
type job struct {
	description string
	run         func() (result, error)
}

// Exporter writes the resources of one archive below an output directory
type Exporter struct {
	archive *archive.Archive
	layout  *Layout
	options *Options
	log     *slog.Logger
}

// NewExporter creates a new exporter
func NewExporter(a *archive.Archive, outputDir string, options *Options) *Exporter {
	if options == nil {
		options = DefaultOptions()
	}
	return &Exporter{
		archive: a,
		layout:  NewLayout(outputDir),
		options: options,
		log:     slog.Default(),
	}
}

// Layout returns the exporter's output layout
func (e *Exporter) Layout() *Layout { return e.layout }

// ExportAll exports every requested kind with one shared progress count
func (e *Exporter) ExportAll(ctx context.Context, kinds []string, progress ProgressCallback) (*Stats, error) {
	var jobs []job
	for _, kind := range kinds {
		kindJobs, err := e.jobs(kind)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, kindJobs...)
	}
	return e.run(ctx, jobs, progress)
}

// ExportSprites writes every sprite frame as PNG, plus a GIF when enabled
func (e *Exporter) ExportSprites(ctx context.Context, progress ProgressCallback) (*Stats, error) {
	return e.export(ctx, config.KindSprites, progress)
}

// ExportTextures writes every texture blob unchanged
func (e *Exporter) ExportTextures(ctx context.Context, progress ProgressCallback) (*Stats, error) {
	return e.export(ctx, config.KindTextures, progress)
}

// ExportAudio writes every track
func (e *Exporter) ExportAudio(ctx context.Context, progress ProgressCallback) (*Stats, error) {
	return e.export(ctx, config.KindAudio, progress)
}

// ExportFonts writes every font sheet and its glyph metrics
func (e *Exporter) ExportFonts(ctx context.Context, progress ProgressCallback) (*Stats, error) {
	return e.export(ctx, config.KindFonts, progress)
}

func (e *Exporter) export(ctx context.Context, kind string, progress ProgressCallback) (*Stats, error) {
	jobs, err := e.jobs(kind)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, jobs, progress)
}

func (e *Exporter) jobs(kind string) ([]job, error) {
	switch kind {
	case config.KindSprites:
		return e.spriteJobs(), nil
	case config.KindTextures:
		return e.textureJobs(), nil
	case config.KindAudio:
		return e.audioJobs(), nil
	case config.KindFonts:
		return e.fontJobs(), nil
	default:
		return nil, fmt.Errorf("unsupported kind '%s'", kind)
	}
}

// run executes jobs on a bounded worker pool and stops at the first error
func (e *Exporter) run(ctx context.Context, jobs []job, progress ProgressCallback) (*Stats, error) {
	start := time.Now()
	stats := &Stats{}
	if len(jobs) == 0 {
		return stats, nil
	}

	workers := e.options.Workers
	if workers < 1 {
		workers = 1
	}

	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, j := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := j.run()
			if err != nil {
				return fmt.Errorf("exporting %s: %w", j.description, err)
			}

			mu.Lock()
			defer mu.Unlock()
			stats.add(res)
			done++
			if progress != nil {
				progress(done, len(jobs), j.description)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

// skip reports whether path already holds data that must not be replaced
func (e *Exporter) skip(path string) bool {
	if e.options.Overwrite {
		return false
	}
	if FileSize(path) > 0 {
		e.log.Debug("Skipping existing file", "path", path)
		return true
	}
	return false
}

// write stores data produced by fn at path unless skipped
func (e *Exporter) write(path string, res *result, fn func(path string) (int64, error)) error {
	if e.skip(path) {
		res.skipped++
		return nil
	}
	if err := e.layout.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	n, err := fn(path)
	if err != nil {
		return err
	}
	res.files++
	res.bytes += n
	return nil
}
