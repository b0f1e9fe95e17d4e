package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/jchantrell/gmdata/internal/archive"
	"github.com/jchantrell/gmdata/internal/config"
)

// archiveOptions builds decoder options from the configuration. Audio
// supplements are left out; recoverAudio applies them only when needed.
func archiveOptions(cfg *config.Config) (*archive.Options, error) {
	opts := archive.DefaultOptions()

	major, err := cfg.ForcedMajor()
	if err != nil {
		return nil, err
	}
	opts.ForceVersion = major

	cache, err := archive.NewARCCache(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating image cache: %w", err)
	}
	opts.Cache = cache

	if cfg.AssetsDir != "" {
		opts.Assets = archive.DirAssets{
			Dir:     cfg.AssetsDir,
			Exclude: []string{filepath.Base(cfg.Archive)},
		}
	}
	return opts, nil
}

// openArchive opens the configured archive and tries to recover missing
// embedded audio from the configured supplements
func openArchive(cfg *config.Config) (*archive.Archive, error) {
	opts, err := archiveOptions(cfg)
	if err != nil {
		return nil, err
	}

	slog.Info("Opening archive", "path", cfg.Archive)
	a, err := archive.OpenFile(cfg.Archive, opts)
	if err != nil {
		return nil, fmt.Errorf("opening archive %s: %w", cfg.Archive, err)
	}

	if err := recoverAudio(a, cfg.AudioFiles, cfg.AutoAudioSearch); err != nil {
		return nil, err
	}
	return a, nil
}

// recoverAudio reloads audio with supplementary archives when some embedded
// tracks have no blob
func recoverAudio(a *archive.Archive, files []string, autoSearch bool) error {
	if !a.MissingAudio() {
		return nil
	}
	if len(files) == 0 && !autoSearch {
		slog.Warn("Archive is missing embedded audio, use --audio-file or --auto-audio to load it")
		return nil
	}

	for _, name := range files {
		added, err := a.AddAudioFile(name)
		if err != nil {
			return fmt.Errorf("adding audio file %s: %w", name, err)
		}
		if !added {
			slog.Debug("Audio file already queued", "file", name)
		}
	}
	a.SetAutoAudioSearch(autoSearch)

	if err := a.ReloadAudio(); err != nil {
		return fmt.Errorf("reloading audio: %w", err)
	}
	if a.MissingAudio() {
		slog.Warn("Audio is still incomplete after loading supplements", "files", files, "auto_search", autoSearch)
	} else {
		slog.Info("Recovered missing audio", "tracks", len(a.AudioTracks()))
	}
	return nil
}
