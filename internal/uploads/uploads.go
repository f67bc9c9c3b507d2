// Package uploads manages the upload directory: listing, sanitized saves,
// and a poll-based change watcher.
package uploads

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Extensions accepted for upload. Previews and printing support the same set.
var AllowedExtensions = []string{".pdf", ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff"}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// File describes one uploaded document. Identity is Name; entries are
// immutable once listed.
type File struct {
	Name  string `json:"name"`
	Size  int64  `json:"size"`
	SizeH string `json:"size_h"`
	MTime int64  `json:"mtime"`
}

// Store wraps the upload directory.
type Store struct {
	dir   string
	limit int
}

// NewStore creates a store; the directory is created if missing.
func NewStore(dir string, limit int) (*Store, error) {
	if limit < 1 {
		limit = 50
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return &Store{dir: dir, limit: limit}, nil
}

// Dir returns the upload directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the on-disk path for a stored name, rejecting traversal.
func (s *Store) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid filename")
	}
	return filepath.Join(s.dir, name), nil
}

// List returns uploads newest-first, capped at the store limit.
func (s *Store) List() []File {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return []File{}
	}

	files := make([]File, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, File{
			Name:  e.Name(),
			Size:  info.Size(),
			SizeH: HumanBytes(info.Size()),
			MTime: info.ModTime().Unix(),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].MTime > files[j].MTime })
	if len(files) > s.limit {
		files = files[:s.limit]
	}
	return files
}

// Save stores an uploaded document under a sanitized name. An existing name
// gets a timestamp suffix instead of being clobbered. Returns the stored name.
func (s *Store) Save(filename string, r io.Reader) (string, error) {
	name := SecureFilename(filename)
	if name == "" {
		return "", fmt.Errorf("invalid filename")
	}
	if !AllowedExtension(name) {
		return "", fmt.Errorf("unsupported file type; use PDF or common image formats")
	}

	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err == nil {
		ext := filepath.Ext(name)
		base := strings.TrimSuffix(name, ext)
		name = fmt.Sprintf("%s_%d%s", base, time.Now().Unix(), ext)
		path = filepath.Join(s.dir, name)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	return name, nil
}

// Delete removes a stored document.
func (s *Store) Delete(name string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	return os.Remove(path)
}

// AllowedExtension reports whether the filename carries a supported extension.
func AllowedExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range AllowedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// SecureFilename strips directories and unsafe characters from a client
// supplied filename, returning "" when nothing safe remains.
func SecureFilename(filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	return name
}

// HumanBytes formats a byte count for display.
func HumanBytes(n int64) string {
	if n < 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB", "TB"}
	v := float64(n)
	for i, u := range units {
		if v < 1024.0 || i == len(units)-1 {
			if u == "B" {
				return fmt.Sprintf("%d %s", int64(v), u)
			}
			return fmt.Sprintf("%.1f %s", v, u)
		}
		v /= 1024.0
	}
	return fmt.Sprintf("%.1f TB", v)
}
