// Package storage is a disk-backed image store for product pictures:
// originals under the root directory, JPEG previews under thumb/.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/osanval/cafeto/random"
)

const thumbWidth = 320

var allowedExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

type Store struct {
	dir     string
	baseURL string
}

func New(dir string, baseURL string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, "thumb"), 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &Store{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir is the directory served under the public base URL.
func (s *Store) Dir() string { return s.dir }

// SaveImage writes the uploaded file under a fresh random name and
// returns that name with its public URL. Names are not caller-chosen, so
// an upload can never overwrite an unrelated file.
func (s *Store) SaveImage(r io.Reader, ext string) (name string, url string, err error) {
	ext = strings.ToLower(ext)
	if !allowedExt[ext] {
		return "", "", fmt.Errorf("unsupported image extension %q", ext)
	}

	name = fmt.Sprintf("%s-%d%s", random.String(12), time.Now().UnixNano(), ext)

	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", "", fmt.Errorf("creating image file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", "", fmt.Errorf("writing image file: %w", err)
	}

	return name, s.baseURL + "/" + name, nil
}

// Thumbnail renders a fixed-width JPEG preview of a stored image into
// the thumb/ subdirectory.
func (s *Store) Thumbnail(name string) error {
	img, err := imaging.Open(filepath.Join(s.dir, name))
	if err != nil {
		return fmt.Errorf("decoding image %s: %w", name, err)
	}

	thumb := imaging.Resize(img, thumbWidth, 0, imaging.Lanczos)

	base := strings.TrimSuffix(name, filepath.Ext(name))
	out := filepath.Join(s.dir, "thumb", base+".jpg")
	if err := imaging.Save(thumb, out); err != nil {
		return fmt.Errorf("saving thumbnail %s: %w", out, err)
	}

	return nil
}
