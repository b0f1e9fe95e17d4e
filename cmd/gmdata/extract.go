package main

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/jchantrell/gmdata/internal/export"
	"github.com/jchantrell/gmdata/internal/utils"
	"github.com/spf13/cobra"
)

var (
	exportGIF   bool
	gifScale    int
	gifFPS      int
	overwrite   bool
	workerCount int
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Export sprites, textures, audio and fonts to disk",
	Long: `Extract decodes the archive and writes the selected resource kinds below
the output directory:

  sprites/   one PNG per frame, plus an animated GIF with --gif
  textures/  texture sheets as stored in the archive
  audio/     embedded and external tracks
  fonts/     font sheets as PNG with glyph metrics as JSON

Embedded audio stored in other files can be recovered with --audio-file or
--auto-audio.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()

		var memStatsStart runtime.MemStats
		runtime.ReadMemStats(&memStatsStart)

		a, err := openArchive(cfg)
		if err != nil {
			return err
		}

		options := export.DefaultOptions()
		options.GIF = exportGIF
		options.GIFOptions = export.GIFOptions{Scale: gifScale, FPS: gifFPS}
		options.Overwrite = overwrite
		if workerCount > 0 {
			options.Workers = workerCount
		}

		slog.Info("Starting extract...", "title", a.Title(), "kinds", cfg.Kinds, "output", cfg.Output)

		exporter := export.NewExporter(a, cfg.Output, options)

		var progress *utils.Progress
		stats, err := exporter.ExportAll(context.Background(), cfg.Kinds, func(current, total int, description string) {
			if progress == nil {
				progress = utils.NewProgress("Exporting", total, progressEnabled())
			}
			progress.Update(current, description)
		})
		if progress != nil {
			progress.Finish()
		}
		if err != nil {
			return fmt.Errorf("exporting resources: %w", err)
		}

		var memStatsEnd runtime.MemStats
		runtime.ReadMemStats(&memStatsEnd)
		totalMemoryMB := float64(memStatsEnd.Alloc) / 1024.0 / 1024.0

		var fileRate float64
		if seconds := stats.Duration.Seconds(); seconds > 0 {
			fileRate = float64(stats.Files) / seconds
		}

		fmt.Printf("Files written: %s\n", utils.Number(int64(stats.Files)))
		fmt.Printf("Files skipped: %s\n", utils.Number(int64(stats.Skipped)))
		fmt.Printf("Bytes written: %s\n", utils.Bytes(stats.Bytes))
		fmt.Printf("Export duration: %s\n", utils.Duration(stats.Duration))
		fmt.Printf("Total duration: %s\n", utils.Duration(time.Since(start)))
		fmt.Printf("Write rate: %s files/sec\n", utils.Rate(fileRate))
		fmt.Printf("Memory usage: %.2fmb\n", totalMemoryMB)
		if a.MissingAudio() {
			fmt.Println("Some embedded audio was not found, try: gmdata extract --kinds audio --auto-audio")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
	defaults := export.DefaultGIFOptions()
	extractCmd.Flags().BoolVar(&exportGIF, "gif", false, "also write an animated GIF for every sprite")
	extractCmd.Flags().IntVar(&gifScale, "scale", defaults.Scale, "GIF scale factor")
	extractCmd.Flags().IntVar(&gifFPS, "fps", defaults.FPS, "GIF frames per second (1-100)")
	extractCmd.Flags().BoolVar(&overwrite, "overwrite", true, "replace files that already exist")
	extractCmd.Flags().IntVar(&workerCount, "workers", 0, "number of concurrent writers (default is the CPU count)")
}
