package archive

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jchantrell/gmdata/internal/archive/archivetest"
	"github.com/jchantrell/gmdata/internal/iff"
)

func TestARCCache(t *testing.T) {
	c, err := NewARCCache(2)
	if err != nil {
		t.Fatalf("NewARCCache: %v", err)
	}

	var calls atomic.Int32
	compute := func() (image.Image, error) {
		calls.Add(1)
		return image.NewNRGBA(image.Rect(0, 0, 1, 1)), nil
	}

	first, err := c.GetOrCompute("a", compute)
	if err != nil {
		t.Fatalf("GetOrCompute: %v", err)
	}
	second, _ := c.GetOrCompute("a", compute)
	if first != second {
		t.Error("cached image was recomputed")
	}
	if calls.Load() != 1 {
		t.Errorf("compute ran %d times, want 1", calls.Load())
	}

	c.GetOrCompute("b", compute)
	c.GetOrCompute("c", compute)
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}

	c.Purge()
	if c.Len() != 0 {
		t.Errorf("Len() after Purge = %d", c.Len())
	}

	boom := errors.New("boom")
	if _, err := c.GetOrCompute("d", func() (image.Image, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Errorf("error = %v, want boom", err)
	}
	if c.Len() != 0 {
		t.Error("failed computation was cached")
	}
}

func TestARCCacheConcurrentMisses(t *testing.T) {
	c, err := NewARCCache(4)
	if err != nil {
		t.Fatalf("NewARCCache: %v", err)
	}

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func() (image.Image, error) {
		calls.Add(1)
		<-release
		return image.NewNRGBA(image.Rect(0, 0, 1, 1)), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.GetOrCompute("sheet", compute); err != nil {
				t.Errorf("GetOrCompute: %v", err)
			}
		}()
	}
	close(release)
	wg.Wait()

	if n := calls.Load(); n < 1 || n > 8 {
		t.Errorf("compute ran %d times", n)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestNopCache(t *testing.T) {
	var calls int
	compute := func() (image.Image, error) {
		calls++
		return image.NewNRGBA(image.Rect(0, 0, 1, 1)), nil
	}
	var c NopCache
	c.GetOrCompute("a", compute)
	c.GetOrCompute("a", compute)
	if calls != 2 {
		t.Errorf("compute ran %d times, want 2", calls)
	}
}

func TestCropImage(t *testing.T) {
	src := image.NewNRGBA(image.Rect(10, 10, 18, 18))
	src.SetNRGBA(12, 13, archivetest.GradientAt(5, 5))

	img, err := cropImage(src, image.Rect(2, 3, 4, 5))
	if err != nil {
		t.Fatalf("cropImage: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 2, 2) {
		t.Errorf("bounds = %v", img.Bounds())
	}
	if got := archivetest.NRGBAAt(img, 0, 0); got != archivetest.GradientAt(5, 5) {
		t.Errorf("pixel = %v", got)
	}

	_, err = cropImage(src, image.Rect(6, 6, 10, 10))
	var fe *iff.FormatError
	if !errors.As(err, &fe) || fe.Kind != iff.KindOutOfBounds {
		t.Errorf("error = %v, want OutOfBounds", err)
	}
}

func TestStdDecoderRejectsGarbage(t *testing.T) {
	if _, err := (StdDecoder{}).Decode([]byte("not an image")); err == nil {
		t.Error("Decode accepted garbage")
	}
}

func TestDirAssets(t *testing.T) {
	dir := t.TempDir()
	for name, data := range map[string]string{
		"data.win":        "archive",
		"audiogroup1.dat": "group",
		"mus_intro.ogg":   "OggS",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	d := DirAssets{Dir: dir, Exclude: []string{"data.win"}}
	names, err := d.ListAssets()
	if err != nil {
		t.Fatalf("ListAssets: %v", err)
	}
	slices.Sort(names)
	if want := []string{"audiogroup1.dat", "mus_intro.ogg"}; !slices.Equal(names, want) {
		t.Errorf("ListAssets() = %v, want %v", names, want)
	}

	data, err := d.ReadAsset("audiogroup1.dat")
	if err != nil || string(data) != "group" {
		t.Errorf("ReadAsset = %q, %v", data, err)
	}
	if _, err := d.ReadAsset("absent.dat"); err == nil {
		t.Error("ReadAsset of a missing file succeeded")
	}

	m, err := d.MapAsset("audiogroup1.dat")
	if err != nil {
		t.Fatalf("MapAsset: %v", err)
	}
	defer m.Close()
	if m.Len() != len("group") || m.At(0) != 'g' {
		t.Errorf("mapping has %d bytes, first %q", m.Len(), m.At(0))
	}
	if _, err := d.MapAsset("absent.dat"); err == nil {
		t.Error("MapAsset of a missing file succeeded")
	}
}

func TestMapAssets(t *testing.T) {
	m := MapAssets{"b": []byte("2"), "a": []byte("1")}
	names, _ := m.ListAssets()
	if !slices.Equal(names, []string{"a", "b"}) {
		t.Errorf("ListAssets() = %v", names)
	}
	if _, err := m.ReadAsset("c"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ReadAsset(c) error = %v, want ErrNotExist", err)
	}
}
