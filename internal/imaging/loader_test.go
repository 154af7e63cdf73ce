package imaging

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// createTestImage writes a solid-color PNG into dir and returns its path.
func createTestImage(t *testing.T, dir string, width, height int, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	tmpFile, err := os.CreateTemp(dir, "test-image-*.png")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer tmpFile.Close()

	if err := png.Encode(tmpFile, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}

	return tmpFile.Name()
}

func TestLoadFrame(t *testing.T) {
	path := createTestImage(t, t.TempDir(), 40, 30, color.RGBA{255, 128, 0, 255})

	f, err := LoadFrame(path, image.Point{})
	if err != nil {
		t.Fatalf("LoadFrame failed: %v", err)
	}
	if f.Width != 40 || f.Height != 30 {
		t.Errorf("size: got %dx%d, want 40x30", f.Width, f.Height)
	}
	b, g, r := f.BGR(10, 10)
	if b != 0 || g != 128 || r != 255 {
		t.Errorf("pixel: got BGR(%d,%d,%d), want BGR(0,128,255)", b, g, r)
	}
}

func TestLoadFrame_FitsToSize(t *testing.T) {
	path := createTestImage(t, t.TempDir(), 100, 50, color.White)

	f, err := LoadFrame(path, ResolutionQVGA)
	if err != nil {
		t.Fatalf("LoadFrame failed: %v", err)
	}
	if f.Size() != ResolutionQVGA {
		t.Errorf("size: got %v, want %v", f.Size(), ResolutionQVGA)
	}
}

func TestLoadFrame_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadFrame(filepath.Join(dir, "missing.png"), image.Point{}); err == nil {
		t.Error("LoadFrame should fail for a missing file")
	}

	garbage := filepath.Join(dir, "garbage.png")
	if err := os.WriteFile(garbage, []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrame(garbage, image.Point{}); err == nil {
		t.Error("LoadFrame should fail for an undecodable file")
	}
}

func TestFrameCache(t *testing.T) {
	dir := t.TempDir()
	path := createTestImage(t, dir, 20, 20, color.Black)
	cache := NewFrameCache()

	f1, err := cache.Load(path, image.Point{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Remove the file: the second load must be served from memory.
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	f2, err := cache.Load(path, image.Point{})
	if err != nil {
		t.Fatalf("cached Load failed: %v", err)
	}
	if f1 != f2 {
		t.Error("cached Load should return the same frame")
	}

	if _, err := cache.Load(path, ResolutionQVGA); err == nil {
		t.Error("a different size is a different cache entry and must hit the disk")
	}

	cache.Evict(path)
	if cache.Len() != 0 {
		t.Errorf("Len after Evict: got %d, want 0", cache.Len())
	}
}

func TestFrameCache_Clear(t *testing.T) {
	dir := t.TempDir()
	cache := NewFrameCache()
	for i := 0; i < 3; i++ {
		path := createTestImage(t, dir, 8, 8, color.White)
		if _, err := cache.Load(path, image.Point{}); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
	}
	if cache.Len() != 3 {
		t.Fatalf("Len: got %d, want 3", cache.Len())
	}
	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("Len after Clear: got %d, want 0", cache.Len())
	}
}

func TestFrameCache_Concurrent(t *testing.T) {
	path := createTestImage(t, t.TempDir(), 16, 16, color.White)
	cache := NewFrameCache()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Load(path, image.Point{}); err != nil {
				t.Errorf("concurrent Load failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if cache.Len() != 1 {
		t.Errorf("Len: got %d, want 1", cache.Len())
	}
}

func TestIsFrameFile(t *testing.T) {
	for path, want := range map[string]bool{
		"a.png":     true,
		"b.JPG":     true,
		"c.jpeg":    true,
		"d.gif":     true,
		"e.txt":     false,
		"noext":     false,
		"dir/f.Png": true,
	} {
		if got := IsFrameFile(path); got != want {
			t.Errorf("IsFrameFile(%q) = %v, want %v", path, got, want)
		}
	}
}
