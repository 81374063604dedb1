package storage

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testImage(t *testing.T, w, h int) *bytes.Buffer {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	return &buf
}

func TestSaveImageAndThumbnail(t *testing.T) {
	s, err := New(t.TempDir(), "/static/")
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	name, url, err := s.SaveImage(testImage(t, 800, 600), ".png")
	if err != nil {
		t.Fatalf("saving image: %v", err)
	}

	if url != "/static/"+name {
		t.Fatalf("unexpected public url %q for %q", url, name)
	}
	if _, err := os.Stat(filepath.Join(s.Dir(), name)); err != nil {
		t.Fatalf("original not on disk: %v", err)
	}

	if err := s.Thumbnail(name); err != nil {
		t.Fatalf("rendering thumbnail: %v", err)
	}

	base := strings.TrimSuffix(name, ".png")
	thumbPath := filepath.Join(s.Dir(), "thumb", base+".jpg")

	orig, err := os.Stat(filepath.Join(s.Dir(), name))
	if err != nil {
		t.Fatal(err)
	}
	thumb, err := os.Stat(thumbPath)
	if err != nil {
		t.Fatalf("thumbnail not on disk: %v", err)
	}
	if thumb.Size() == 0 || thumb.Size() >= orig.Size()*10 {
		t.Fatalf("suspicious thumbnail size %d (original %d)", thumb.Size(), orig.Size())
	}
}

func TestSaveImageRejectsUnknownExtension(t *testing.T) {
	s, err := New(t.TempDir(), "/static")
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	if _, _, err := s.SaveImage(bytes.NewBufferString("#!/bin/sh"), ".sh"); err == nil {
		t.Fatal("expected extension rejection")
	}
}

func TestSaveImageUniqueNames(t *testing.T) {
	s, err := New(t.TempDir(), "/static")
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		name, _, err := s.SaveImage(testImage(t, 2, 2), ".png")
		if err != nil {
			t.Fatal(err)
		}
		if seen[name] {
			t.Fatalf("duplicate generated name %q", name)
		}
		seen[name] = true
	}
}
