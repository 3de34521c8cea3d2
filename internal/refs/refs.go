// Package refs implements rootcas's reference store: plain files holding a
// hex commit hash, written atomically, with hierarchical names (slashes
// allowed) and glob-based listing.
package refs

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/javanhut/rootcas/internal/objhash"
	"github.com/javanhut/rootcas/internal/rerr"
)

// Store manages one ref namespace rooted at a directory, e.g.
// <repo>/refs/heads or <repo>/refs/tags.
type Store struct {
	root string
	tmp  string
}

// New returns a Store rooted at root, using tmp for atomic writes.
func New(root, tmp string) *Store {
	return &Store{root: root, tmp: tmp}
}

// ValidateName rejects empty names, leading/trailing slashes, "//",
// NUL bytes, and "." or ".." path components.
func ValidateName(name string) error {
	if name == "" {
		return rerr.InvalidRef("empty ref name")
	}
	if strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") {
		return rerr.InvalidRef(name)
	}
	if strings.Contains(name, "//") {
		return rerr.InvalidRef(name)
	}
	if strings.ContainsRune(name, 0) {
		return rerr.InvalidRef(name)
	}
	for _, component := range strings.Split(name, "/") {
		if component == "." || component == ".." {
			return rerr.InvalidRef(name)
		}
	}
	return nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// Write creates or overwrites a ref, atomically.
func (s *Store) Write(name string, h objhash.Hash) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	refPath := s.path(name)
	parent := filepath.Dir(refPath)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return rerr.WithPath(err, parent)
	}
	if err := os.MkdirAll(s.tmp, 0o755); err != nil {
		return rerr.WithPath(err, s.tmp)
	}

	tmpPath := filepath.Join(s.tmp, uuid.NewString())
	if err := os.WriteFile(tmpPath, []byte(h.String()+"\n"), 0o644); err != nil {
		return rerr.WithPath(err, tmpPath)
	}
	if f, err := os.OpenFile(tmpPath, os.O_RDWR, 0); err == nil {
		f.Sync()
		f.Close()
	}

	if err := os.Rename(tmpPath, refPath); err != nil {
		os.Remove(tmpPath)
		return rerr.WithPath(err, refPath)
	}

	dir, err := os.Open(parent)
	if err != nil {
		return rerr.WithPath(err, parent)
	}
	defer dir.Close()
	return dir.Sync()
}

// Read reads a ref's hash.
func (s *Store) Read(name string) (objhash.Hash, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return objhash.Zero, rerr.RefNotFound(name)
		}
		return objhash.Zero, rerr.WithPath(err, s.path(name))
	}
	return objhash.FromHex(strings.TrimSpace(string(data)))
}

// Delete removes a ref.
func (s *Store) Delete(name string) error {
	if err := os.Remove(s.path(name)); err != nil {
		if os.IsNotExist(err) {
			return rerr.RefNotFound(name)
		}
		return rerr.WithPath(err, s.path(name))
	}
	return nil
}

// Exists reports whether a ref exists.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.path(name))
	return err == nil
}

// List returns every ref name under this store's root, sorted.
func (s *Store) List() ([]string, error) {
	var names []string
	if _, err := os.Stat(s.root); os.IsNotExist(err) {
		return names, nil
	}
	err := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, rerr.WithPath(err, s.root)
	}
	sort.Strings(names)
	return names, nil
}

// ListMatching returns every ref name matching a shell glob pattern
// (path/filepath.Match syntax — the pack carries no dedicated glob
// library, and filepath.Match's single-component "*"/"?"/"[...]" support
// is sufficient for the hierarchical patterns rootcas refs use).
func (s *Store) ListMatching(pattern string) ([]string, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	var matched []string
	for _, name := range all {
		ok, err := filepath.Match(pattern, name)
		if err != nil {
			return nil, rerr.InvalidRef(pattern)
		}
		if ok {
			matched = append(matched, name)
		}
	}
	return matched, nil
}

// Resolve interprets refOrHash as a literal 64-hex-char hash if it looks
// like one, otherwise looks it up as a ref name in s.
func Resolve(s *Store, refOrHash string) (objhash.Hash, error) {
	if len(refOrHash) == 64 && isHex(refOrHash) {
		return objhash.FromHex(refOrHash)
	}
	return s.Read(refOrHash)
}

func isHex(s string) bool {
	for _, c := range s {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}
