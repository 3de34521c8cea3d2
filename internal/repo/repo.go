// Package repo implements rootcas's repository lifecycle: directory
// layout, config.toml, the advisory exclusive lock, and the wiring
// between internal/store and internal/refs that every higher-level
// operation (commit, checkout, union, transfer) builds on.
package repo

import (
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/javanhut/rootcas/internal/nsmap"
	"github.com/javanhut/rootcas/internal/refs"
	"github.com/javanhut/rootcas/internal/rerr"
	"github.com/javanhut/rootcas/internal/store"
)

// Repo is an open rootcas repository.
type Repo struct {
	path   string
	config *Config
	Store  *store.Store
	Heads  *refs.Store
	Tags   *refs.Store
}

func (r *Repo) Path() string { return r.path }

func (r *Repo) ConfigPath() string  { return filepath.Join(r.path, "config.toml") }
func (r *Repo) ObjectsPath() string { return filepath.Join(r.path, "objects") }
func (r *Repo) BlobsPath() string   { return filepath.Join(r.ObjectsPath(), "blobs") }
func (r *Repo) TreesPath() string   { return filepath.Join(r.ObjectsPath(), "trees") }
func (r *Repo) CommitsPath() string { return filepath.Join(r.ObjectsPath(), "commits") }
func (r *Repo) RefsPath() string    { return filepath.Join(r.path, "refs", "heads") }
func (r *Repo) TagsPath() string    { return filepath.Join(r.path, "refs", "tags") }
func (r *Repo) TmpPath() string     { return filepath.Join(r.path, "tmp") }
func (r *Repo) LockPath() string    { return filepath.Join(r.path, ".lock") }

// Namespace returns the repository's current UID/GID namespace mapping.
func (r *Repo) Namespace() nsmap.Config { return r.config.namespace() }

// Config returns the repository's config, for remote management.
func (r *Repo) Config() *Config { return r.config }

// SaveConfig persists any changes made via Config() back to config.toml.
func (r *Repo) SaveConfig() error { return saveConfig(r.ConfigPath(), r.config) }

func wire(path string, cfg *Config) *Repo {
	r := &Repo{path: path, config: cfg}
	r.Store = store.New(r.ObjectsPath(), r.TmpPath(), r.Namespace)
	r.Heads = refs.New(r.RefsPath(), r.TmpPath())
	r.Tags = refs.New(r.TagsPath(), r.TmpPath())
	return r
}

// Init creates a new repository at path, capturing the process's current
// UID/GID namespace mapping into config.toml.
func Init(path string) (*Repo, error) {
	configPath := filepath.Join(path, "config.toml")
	if _, err := os.Stat(configPath); err == nil {
		return nil, rerr.RepoExists(path)
	}

	for _, dir := range []string{
		filepath.Join(path, "objects", "blobs"),
		filepath.Join(path, "objects", "trees"),
		filepath.Join(path, "objects", "commits"),
		filepath.Join(path, "refs", "heads"),
		filepath.Join(path, "refs", "tags"),
		filepath.Join(path, "tmp"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, rerr.WithPath(err, dir)
		}
	}

	ns, err := nsmap.Current()
	if err != nil {
		ns = nsmap.Identity()
	}
	cfg := newConfig(ns)
	if err := saveConfig(configPath, cfg); err != nil {
		return nil, err
	}

	return wire(path, cfg), nil
}

// Open opens an existing repository at path.
func Open(path string) (*Repo, error) {
	configPath := filepath.Join(path, "config.toml")
	if _, err := os.Stat(configPath); err != nil {
		return nil, rerr.NoRepo(path)
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return wire(path, cfg), nil
}

// Lock is a held advisory exclusive lock on the repository, released by
// calling Unlock.
type Lock struct {
	fl *flock.Flock
}

func (l *Lock) Unlock() error {
	return l.fl.Unlock()
}

// Lock blocks (with a short retry window) until the repository's exclusive
// lock can be acquired.
func (r *Repo) Lock() (*Lock, error) {
	fl := flock.New(r.LockPath())
	for i := 0; i < 50; i++ {
		ok, err := fl.TryLock()
		if err != nil {
			return nil, rerr.WithPath(err, r.LockPath())
		}
		if ok {
			return &Lock{fl: fl}, nil
		}
		time.Sleep(20 * time.Millisecond)
	}
	return nil, rerr.ErrLockContention
}

// TryLock attempts to acquire the repository's exclusive lock without
// blocking, returning (nil, nil) if it is already held elsewhere.
func (r *Repo) TryLock() (*Lock, error) {
	fl := flock.New(r.LockPath())
	ok, err := fl.TryLock()
	if err != nil {
		return nil, rerr.WithPath(err, r.LockPath())
	}
	if !ok {
		return nil, nil
	}
	return &Lock{fl: fl}, nil
}

// WithLock runs fn while holding the repository's exclusive lock.
func WithLock(r *Repo, fn func() error) error {
	lock, err := r.Lock()
	if err != nil {
		return err
	}
	defer lock.Unlock()
	return fn()
}
