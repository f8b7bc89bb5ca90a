package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dark-geo/tile-downloader/tiles"
)

// Files stores tiles as individual files under root/{z}/{x}/{y}.{ext}.
// Keys are strictly content-addressed from the tile index; no directory
// scanning or extension guessing happens on read.
type Files struct {
	root string
	ext  string
}

// NewFiles creates a file store rooted at dir. ext is the filename extension
// without the dot, "png" by default.
func NewFiles(dir, ext string) (*Files, error) {
	if ext == "" {
		ext = "png"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Files{root: dir, ext: ext}, nil
}

func (s *Files) path(a tiles.Address) string {
	return filepath.Join(s.root,
		strconv.Itoa(a.Z), strconv.Itoa(a.X), fmt.Sprintf("%d.%s", a.Y, s.ext))
}

func (s *Files) Exists(a tiles.Address) bool {
	st, err := os.Stat(s.path(a))
	return err == nil && !st.IsDir()
}

func (s *Files) Read(a tiles.Address) ([]byte, error) {
	return os.ReadFile(s.path(a))
}

// Write persists tile bytes through a temp file and rename, so a cancelled
// run never leaves a truncated tile behind.
func (s *Files) Write(a tiles.Address, data []byte) error {
	p := s.path(a)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}
