package archive

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/exp/mmap"
)

// AssetSource resolves files stored next to the archive, such as external
// audio and supplementary audio-group archives.
type AssetSource interface {
	ReadAsset(name string) ([]byte, error)

	// ListAssets returns the names ReadAsset accepts, for automatic audio
	// discovery.
	ListAssets() ([]string, error)
}

// MappedAssetSource is an AssetSource that can also expose a file through a
// read-only memory mapping, so callers pick out one chunk without copying
// the rest.
type MappedAssetSource interface {
	AssetSource
	MapAsset(name string) (*mmap.ReaderAt, error)
}

var _ MappedAssetSource = DirAssets{}

// DirAssets reads assets from a directory on disk.
type DirAssets struct {
	Dir string

	// Exclude lists base names ListAssets leaves out, typically the archive
	// itself.
	Exclude []string
}

func (d DirAssets) ReadAsset(name string) ([]byte, error) {
	return readFile(filepath.Join(d.Dir, filepath.FromSlash(name)))
}

// MapAsset maps name read-only. The caller closes the mapping.
func (d DirAssets) MapAsset(name string) (*mmap.ReaderAt, error) {
	path := filepath.Join(d.Dir, filepath.FromSlash(name))
	r, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mapping %s: %w", path, err)
	}
	return r, nil
}

func (d DirAssets) ListAssets() ([]string, error) {
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", d.Dir, err)
	}

	skip := make(map[string]bool, len(d.Exclude))
	for _, name := range d.Exclude {
		skip[name] = true
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || skip[e.Name()] {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// MapAssets serves assets from memory.
type MapAssets map[string][]byte

func (m MapAssets) ReadAsset(name string) ([]byte, error) {
	data, ok := m[name]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrNotExist}
	}
	return data, nil
}

func (m MapAssets) ListAssets() ([]string, error) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}
