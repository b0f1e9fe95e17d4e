package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gmdata.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(viper.New(), writeConfig(t, ""))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Archive != "data.win" || cfg.Database != "gmdata.db" || cfg.Output != "out" {
		t.Errorf("paths = %+v", cfg)
	}
	if !slices.Equal(cfg.Kinds, AllKinds) {
		t.Errorf("Kinds = %v, want %v", cfg.Kinds, AllKinds)
	}
	if cfg.CacheSize != 256 || cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Errorf("defaults = %+v", cfg)
	}
	if major, err := cfg.ForcedMajor(); err != nil || major != 0 {
		t.Errorf("ForcedMajor() = %d, %v", major, err)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
archive: game.unx
audio_files: [audiogroup1.dat, audiogroup2.dat]
auto_audio_search: true
force_version: "2.3"
kinds: [sprites, audio]
log_level: debug
`)
	cfg, err := load(viper.New(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Archive != "game.unx" || !cfg.AutoAudioSearch {
		t.Errorf("cfg = %+v", cfg)
	}
	if !slices.Equal(cfg.AudioFiles, []string{"audiogroup1.dat", "audiogroup2.dat"}) {
		t.Errorf("AudioFiles = %v", cfg.AudioFiles)
	}
	if major, err := cfg.ForcedMajor(); err != nil || major != 2 {
		t.Errorf("ForcedMajor() = %d, %v, want 2", major, err)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"kind", "kinds: [sprites, rooms]", "unsupported kind 'rooms'"},
		{"level", "log_level: loud", "unsupported log level"},
		{"format", "log_format: xml", "unsupported log format"},
		{"version", `force_version: "two"`, "force_version"},
		{"cache", "cache_size: 0", "cache_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(viper.New(), writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want %q", err, tt.want)
			}
		})
	}
}
