package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/jchantrell/gmdata/internal/config"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

var (
	cfg     *config.Config
	cfgFile string

	archivePath     string
	assetsDir       string
	outputDir       string
	dbPath          string
	kinds           []string
	audioFiles      []string
	autoAudioSearch bool
	forceVersion    string
	cacheSize       int
	logLevel        string
	logFormat       string
	noProgress      bool
)

var rootCmd = &cobra.Command{
	Use:   "gmdata",
	Short: "GameMaker data archive inspection and extraction tool",
	Long: `gmdata reads the data archive of a GameMaker game (data.win, game.unx,
game.ios) and decodes its chunks into sprites, textures, fonts, objects and audio.

Resources can be exported to disk as PNG, GIF, JSON and audio files, or
written into a queryable SQLite catalogue.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		if cmd.Flags().Changed("archive") {
			cfg.Archive = archivePath
		}
		if cmd.Flags().Changed("assets-dir") {
			cfg.AssetsDir = assetsDir
		}
		if cmd.Flags().Changed("output") {
			cfg.Output = outputDir
		}
		if cmd.Flags().Changed("database") {
			cfg.Database = dbPath
		}
		if cmd.Flags().Changed("kinds") {
			cfg.Kinds = kinds
		}
		if cmd.Flags().Changed("audio-file") {
			cfg.AudioFiles = audioFiles
		}
		if cmd.Flags().Changed("auto-audio") {
			cfg.AutoAudioSearch = autoAudioSearch
		}
		if cmd.Flags().Changed("force-version") {
			cfg.ForceVersion = forceVersion
		}
		if cmd.Flags().Changed("cache-size") {
			cfg.CacheSize = cacheSize
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			cfg.LogFormat = logFormat
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		var level slog.Level
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}

		var handler slog.Handler
		if cfg.LogFormat == "json" {
			handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})
		} else {
			handler = tint.NewHandler(os.Stderr, &tint.Options{
				Level: level,
			})
		}

		logger := slog.New(handler)
		slog.SetDefault(logger)

		slog.Debug("Configuration",
			"archive", cfg.Archive,
			"assets_dir", cfg.AssetsDir,
			"output", cfg.Output,
			"database", cfg.Database,
			"kinds", cfg.Kinds,
			"audio_files", cfg.AudioFiles,
			"auto_audio_search", cfg.AutoAudioSearch,
			"force_version", cfg.ForceVersion,
			"cache_size", cfg.CacheSize,
			"log_level", cfg.LogLevel,
			"log_format", cfg.LogFormat)

		return nil
	},
}

// progressEnabled reports whether progress bars may be drawn
func progressEnabled() bool {
	return !(noProgress || cfg.LogFormat == "json" || cfg.LogLevel == "debug")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is gmdata.yaml in home or pwd)")
	rootCmd.PersistentFlags().StringVarP(&archivePath, "archive", "a", "", "data archive path")
	rootCmd.PersistentFlags().StringVar(&assetsDir, "assets-dir", "", "directory holding external audio (default is the archive's directory)")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "export output directory")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "database", "d", "", "catalogue database file path")
	rootCmd.PersistentFlags().StringSliceVar(&kinds, "kinds", []string{}, "comma-separated list of resource kinds to export (sprites, textures, audio, fonts)")
	rootCmd.PersistentFlags().StringSliceVar(&audioFiles, "audio-file", []string{}, "supplementary audio archive to load when embedded audio is missing (repeatable)")
	rootCmd.PersistentFlags().BoolVar(&autoAudioSearch, "auto-audio", false, "search sibling files for missing embedded audio")
	rootCmd.PersistentFlags().StringVar(&forceVersion, "force-version", "", "override the detected GameMaker version (e.g. 2.3)")
	rootCmd.PersistentFlags().IntVar(&cacheSize, "cache-size", 0, "number of decoded images to keep in memory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json)")
	rootCmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "disable progress bar")
}
