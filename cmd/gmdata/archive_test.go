package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jchantrell/gmdata/internal/archive/archivetest"
	"github.com/jchantrell/gmdata/internal/config"
)

// writeGame lays out a game directory whose archive keeps one embedded
// track in audiogroup1.dat
func writeGame(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	b := archivetest.New()
	b.Title = "Recovery"
	b.Groups = []string{"audiogroup_default"}
	b.Sounds = []archivetest.Sound{
		{Name: "snd_near", File: "snd_near.wav", Flags: archivetest.FlagRegular | archivetest.FlagEmbedded},
		{Name: "mus_far", File: "mus_far.ogg", Flags: archivetest.FlagRegular | archivetest.FlagCompressed, Group: 1},
	}
	b.Blobs = [][]byte{[]byte("RIFFnear")}

	files := map[string][]byte{
		"data.win":        b.Build(),
		"audiogroup1.dat": archivetest.Supplement([]byte("OggSfar")),
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		Archive:   filepath.Join(dir, "data.win"),
		CacheSize: 16,
		Kinds:     config.AllKinds,
		LogLevel:  "error",
		LogFormat: "text",
	}
}

func TestOpenArchiveWithoutSupplements(t *testing.T) {
	a, err := openArchive(testConfig(writeGame(t)))
	if err != nil {
		t.Fatalf("openArchive: %v", err)
	}
	if a.Title() != "Recovery" {
		t.Errorf("Title() = %q", a.Title())
	}
	if !a.MissingAudio() {
		t.Error("MissingAudio() = false, want true")
	}
}

func TestOpenArchiveRecoversAudio(t *testing.T) {
	tests := []struct {
		name string
		edit func(cfg *config.Config)
	}{
		{"explicit file", func(cfg *config.Config) { cfg.AudioFiles = []string{"audiogroup1.dat"} }},
		{"auto search", func(cfg *config.Config) { cfg.AutoAudioSearch = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(writeGame(t))
			tt.edit(cfg)

			a, err := openArchive(cfg)
			if err != nil {
				t.Fatalf("openArchive: %v", err)
			}
			if a.MissingAudio() {
				t.Fatal("MissingAudio() = true after recovery")
			}
			far, err := a.Audio("mus_far")
			if err != nil {
				t.Fatalf("Audio(mus_far): %v", err)
			}
			if data, err := far.Bytes(); err != nil || string(data) != "OggSfar" {
				t.Errorf("mus_far = %q, %v", data, err)
			}
		})
	}
}

func TestArchiveOptions(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.ForceVersion = "2.3"
	cfg.AssetsDir = "assets"

	opts, err := archiveOptions(cfg)
	if err != nil {
		t.Fatalf("archiveOptions: %v", err)
	}
	if opts.ForceVersion != 2 {
		t.Errorf("ForceVersion = %d, want 2", opts.ForceVersion)
	}
	if opts.Cache == nil {
		t.Error("Cache not set")
	}
	if opts.Assets == nil {
		t.Error("Assets not set for assets_dir")
	}

	cfg.ForceVersion = "two"
	if _, err := archiveOptions(cfg); err == nil {
		t.Error("expected error for invalid version")
	}
}
