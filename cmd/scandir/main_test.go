package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"sensitive-scanner/internal/mediatypes"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDirSourceEnumerate(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	touch(t, filepath.Join(root, "a.jpg"))
	touch(t, filepath.Join(root, "sub", "b.png"))
	touch(t, filepath.Join(root, "c.mp4"))
	touch(t, filepath.Join(root, "notes.txt"))
	touch(t, filepath.Join(root, ".hidden", "d.jpg"))

	src := &dirSource{root: root}

	assets, err := src.Enumerate(context.Background(), false)
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(assets) != 2 {
		t.Fatalf("got %d assets without videos, want 2", len(assets))
	}
	for _, a := range assets {
		if a.Kind != mediatypes.KindImage {
			t.Errorf("asset %s kind = %s, want image", a.ID, a.Kind)
		}
		if filepath.IsAbs(a.Path) {
			t.Errorf("asset path %s should be relative", a.Path)
		}
	}

	assets, err = src.Enumerate(context.Background(), true)
	if err != nil {
		t.Fatalf("Enumerate with videos: %v", err)
	}
	if len(assets) != 3 {
		t.Errorf("got %d assets with videos, want 3", len(assets))
	}
}

func TestDirSourceCancellation(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	touch(t, filepath.Join(root, "a.jpg"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := (&dirSource{root: root}).Enumerate(ctx, false); err == nil {
		t.Error("expected error from cancelled context")
	}
}
