package preview

import (
	"bytes"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

func testFrame(width, height int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, width, height))
}

func TestForImageGeneratesAndCaches(t *testing.T) {
	t.Parallel()

	g := NewGenerator(t.TempDir(), true)

	data, err := g.ForImage("result-1", testFrame(800, 600))
	if err != nil {
		t.Fatalf("ForImage failed: %v", err)
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("preview is not valid JPEG: %v", err)
	}
	if img.Bounds().Dx() > thumbWidth || img.Bounds().Dy() > thumbHeight {
		t.Errorf("preview %dx%d exceeds %dx%d", img.Bounds().Dx(), img.Bounds().Dy(), thumbWidth, thumbHeight)
	}

	// Second call must come from the cache: a nil frame would fail
	// generation but not a cache hit.
	cached, err := g.ForImage("result-1", nil)
	if err != nil {
		t.Fatalf("cached ForImage failed: %v", err)
	}
	if !bytes.Equal(data, cached) {
		t.Error("cached preview differs from generated preview")
	}
}

func TestForImagePreservesAspectRatio(t *testing.T) {
	t.Parallel()

	g := NewGenerator(t.TempDir(), true)

	data, err := g.ForImage("wide", testFrame(1000, 250))
	if err != nil {
		t.Fatalf("ForImage failed: %v", err)
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to decode preview: %v", err)
	}
	if img.Bounds().Dx() != thumbWidth || img.Bounds().Dy() != 50 {
		t.Errorf("preview = %dx%d, want 200x50", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestDisabledGenerator(t *testing.T) {
	t.Parallel()

	g := NewGenerator(t.TempDir(), false)

	if g.IsEnabled() {
		t.Error("IsEnabled() = true for disabled generator")
	}
	if _, err := g.ForImage("x", testFrame(10, 10)); err == nil {
		t.Error("disabled generator should refuse to generate")
	}
}

func TestForImageNilFrame(t *testing.T) {
	t.Parallel()

	g := NewGenerator(t.TempDir(), true)
	if _, err := g.ForImage("missing", nil); err == nil {
		t.Error("expected error for nil frame with cold cache")
	}
}

func TestReset(t *testing.T) {
	t.Parallel()

	cacheDir := t.TempDir()
	g := NewGenerator(cacheDir, true)

	if _, err := g.ForImage("a", testFrame(40, 40)); err != nil {
		t.Fatalf("ForImage failed: %v", err)
	}
	if _, err := g.ForImage("b", testFrame(40, 40)); err != nil {
		t.Fatalf("ForImage failed: %v", err)
	}

	g.Reset()

	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		t.Fatalf("failed to read cache dir: %v", err)
	}
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".jpg" {
			t.Errorf("cached preview %s survived reset", entry.Name())
		}
	}
}

func TestFromFileWithoutVips(t *testing.T) {
	t.Parallel()

	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "photo.png")
	if err := imaging.Save(testFrame(320, 240), src); err != nil {
		t.Fatalf("failed to write source image: %v", err)
	}

	g := NewGenerator(t.TempDir(), true)

	// vips is not initialized under test, so this exercises the
	// imaging fallback.
	data, err := g.FromFile("file-1", src)
	if err != nil {
		t.Fatalf("FromFile failed: %v", err)
	}
	if _, err := jpeg.Decode(bytes.NewReader(data)); err != nil {
		t.Errorf("preview is not valid JPEG: %v", err)
	}
}

func TestForVideoMissingFile(t *testing.T) {
	t.Parallel()

	g := NewGenerator(t.TempDir(), true)
	if _, err := g.ForVideo("v", filepath.Join(t.TempDir(), "nope.mp4")); err == nil {
		t.Error("expected error for missing video file")
	}
}
