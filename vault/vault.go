// Package vault stores installable plugin/theme archives, keyed by
// filename.
package vault

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrNotFound  = errors.New("vault item not found")
	ErrForbidden = errors.New("path escapes vault root")
)

// Item types.
const (
	TypePlugin = "plugin"
	TypeTheme  = "theme"
)

// Item describes one stored archive.
type Item struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size string `json:"size"`
}

// Store is a directory of zip archives.
type Store struct {
	Root string
}

// NewStore ensures the vault directory exists.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}
	return &Store{Root: root}, nil
}

// Path resolves a storage key to an absolute path, rejecting anything
// that escapes the vault root. This is the path-traversal defense; every
// lookup and delete goes through it.
func (s *Store) Path(name string) (string, error) {
	rootAbs, err := filepath.Abs(s.Root)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.Abs(filepath.Join(s.Root, name))
	if err != nil {
		return "", err
	}
	if resolved != rootAbs && !strings.HasPrefix(resolved, rootAbs+string(filepath.Separator)) {
		return "", ErrForbidden
	}
	if resolved == rootAbs {
		return "", ErrForbidden
	}
	return resolved, nil
}

// Save streams an uploaded archive into the vault.
func (s *Store) Save(name string, r io.Reader) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create vault file: %w", err)
	}
	defer file.Close()
	if _, err := io.Copy(file, r); err != nil {
		return fmt.Errorf("write vault file: %w", err)
	}
	return nil
}

// List returns the stored archives with inferred types.
func (s *Store) List() ([]Item, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".zip") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(s.Root, entry.Name())
		items = append(items, Item{
			Name: entry.Name(),
			Type: Classify(path),
			Size: fmt.Sprintf("%.2f MB", float64(info.Size())/(1024*1024)),
		})
	}
	return items, nil
}

// Delete removes a stored archive. Traversal-style keys are rejected with
// ErrForbidden, missing keys with ErrNotFound.
func (s *Store) Delete(name string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// Classify inspects an archive's entry list: a style.css near the root
// (depth two or less) marks a theme, everything else is a plugin.
func Classify(path string) string {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return TypePlugin
	}
	defer reader.Close()
	for _, f := range reader.File {
		name := strings.Trim(f.Name, "/")
		if filepath.Base(name) == "style.css" && strings.Count(name, "/") <= 1 {
			return TypeTheme
		}
	}
	return TypePlugin
}
