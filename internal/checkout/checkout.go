// Package checkout materializes a commit's tree onto the filesystem: a
// two-pass walk that creates every non-hardlink entry first (so hardlink
// targets exist), then wires up hardlinks in a second pass.
package checkout

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/javanhut/rootcas/internal/fsdev"
	"github.com/javanhut/rootcas/internal/model"
	"github.com/javanhut/rootcas/internal/objhash"
	"github.com/javanhut/rootcas/internal/refs"
	"github.com/javanhut/rootcas/internal/repo"
	"github.com/javanhut/rootcas/internal/rerr"
	"github.com/javanhut/rootcas/internal/rlog"
)

// Options configures a checkout.
type Options struct {
	// Force allows checking out into a non-empty target directory.
	Force bool
	// Hardlink links regular files from the blob store instead of
	// copying them. DefaultOptions() sets it to true; the zero value
	// leaves it false.
	Hardlink bool
	// PreserveSparse reconstructs sparse file holes instead of writing
	// a fully dense file.
	PreserveSparse bool
}

// DefaultOptions matches the original tool's CheckoutOptions::default():
// hardlink-by-default, no force, no sparse reconstruction.
func DefaultOptions() Options {
	return Options{Hardlink: true}
}

// hardlinkTracker records where each logical path was materialized on
// disk, so later hardlink entries pointing at it can be linked.
type hardlinkTracker struct {
	paths map[string]string
}

func newHardlinkTracker() *hardlinkTracker {
	return &hardlinkTracker{paths: make(map[string]string)}
}

func (t *hardlinkTracker) record(logicalPath, fsPath string) {
	t.paths[logicalPath] = fsPath
}

func (t *hardlinkTracker) get(logicalPath string) (string, bool) {
	p, ok := t.paths[logicalPath]
	return p, ok
}

// Checkout resolves refName to a commit and materializes its tree at
// target.
func Checkout(r *repo.Repo, refName, target string, opts Options) error {
	commitHash, err := refs.Resolve(r.Heads, refName)
	if err != nil {
		return err
	}
	commit, err := r.Store.ReadCommit(commitHash)
	if err != nil {
		return err
	}
	tree, err := r.Store.ReadTree(commit.Tree)
	if err != nil {
		return err
	}

	if info, err := os.Stat(target); err == nil {
		if !info.IsDir() {
			return rerr.TargetNotEmpty(target)
		}
		if !opts.Force {
			entries, err := os.ReadDir(target)
			if err != nil {
				return rerr.WithPath(err, target)
			}
			if len(entries) != 0 {
				return rerr.TargetNotEmpty(target)
			}
		}
	} else {
		if err := os.MkdirAll(target, 0o755); err != nil {
			return rerr.WithPath(err, target)
		}
	}

	entry := rlog.WithRef(rlog.For("checkout", r.Path()), refName).WithField("target", target)

	tracker := newHardlinkTracker()
	if err := checkoutTree(r, tree, target, "", tracker, opts); err != nil {
		return err
	}
	entry.Info("checkout complete")
	return nil
}

func checkoutTree(r *repo.Repo, tree *model.Tree, target, prefix string, tracker *hardlinkTracker, opts Options) error {
	if err := os.MkdirAll(target, 0o755); err != nil {
		return rerr.WithPath(err, target)
	}

	// first pass: materialize everything except hardlinks, so their
	// targets exist before the second pass links to them.
	for _, entry := range tree.Entries {
		entryPath := filepath.Join(target, entry.Name)
		logicalPath := entry.Name
		if prefix != "" {
			logicalPath = prefix + "/" + entry.Name
		}

		switch entry.Type {
		case model.EntryHardlink:
			continue

		case model.EntryRegular:
			if err := checkoutRegularFile(r, entryPath, entry.Hash, entry.SparseMap, opts); err != nil {
				return err
			}
			tracker.record(logicalPath, entryPath)

		case model.EntrySymlink:
			if err := checkoutSymlink(r, entryPath, entry.Hash); err != nil {
				return err
			}
			tracker.record(logicalPath, entryPath)

		case model.EntryDirectory:
			subtree, err := r.Store.ReadTree(entry.Hash)
			if err != nil {
				return err
			}
			if err := checkoutTree(r, subtree, entryPath, logicalPath, tracker, opts); err != nil {
				return err
			}
			if err := fsdev.ApplyMetadata(entryPath, entry.UID, entry.GID, entry.Mode, entry.Xattrs); err != nil {
				return err
			}

		case model.EntryBlockDevice:
			if err := fsdev.CreateBlockDevice(entryPath, entry.Major, entry.Minor, entry.UID, entry.GID, entry.Mode, entry.Xattrs); err != nil {
				if errors.Is(err, rerr.ErrDeviceNodePermission) {
					rlog.For("checkout", r.Path()).WithField("path", entryPath).Warn("skipping block device: permission denied")
					continue
				}
				return err
			}

		case model.EntryCharDevice:
			if err := fsdev.CreateCharDevice(entryPath, entry.Major, entry.Minor, entry.UID, entry.GID, entry.Mode, entry.Xattrs); err != nil {
				if errors.Is(err, rerr.ErrDeviceNodePermission) {
					rlog.For("checkout", r.Path()).WithField("path", entryPath).Warn("skipping char device: permission denied")
					continue
				}
				return err
			}

		case model.EntryFifo:
			if err := fsdev.CreateFifo(entryPath, entry.UID, entry.GID, entry.Mode, entry.Xattrs); err != nil {
				return err
			}

		case model.EntrySocket:
			if err := fsdev.CreateSocketPlaceholder(entryPath, entry.UID, entry.GID, entry.Mode, entry.Xattrs); err != nil {
				return err
			}
		}
	}

	// second pass: wire up hardlinks now that every other entry exists.
	for _, entry := range tree.Entries {
		if entry.Type != model.EntryHardlink {
			continue
		}
		entryPath := filepath.Join(target, entry.Name)
		fsPath, ok := tracker.get(entry.TargetPath)
		if !ok {
			return rerr.HardlinkTargetNotFound(entry.TargetPath)
		}
		if err := fsdev.CreateHardlink(entryPath, fsPath); err != nil {
			return err
		}
	}

	return nil
}

func checkoutRegularFile(r *repo.Repo, dest string, h objhash.Hash, sparseMap []model.SparseRegion, opts Options) error {
	os.Remove(dest)

	switch {
	case len(sparseMap) > 0 && opts.PreserveSparse:
		data, err := r.Store.ReadBlob(h)
		if err != nil {
			return err
		}
		var totalSize uint64
		for _, region := range sparseMap {
			if end := region.End(); end > totalSize {
				totalSize = end
			}
		}
		blobInfo, err := os.Stat(r.Store.BlobPath(h))
		if err != nil {
			return rerr.WithPath(err, r.Store.BlobPath(h))
		}
		if err := fsdev.WriteSparseFile(dest, data, sparseMap, totalSize, uint32(blobInfo.Mode())); err != nil {
			return err
		}
		return nil

	case sparseMap != nil && len(sparseMap) == 0:
		// all holes: an empty sparse file.
		if err := os.WriteFile(dest, nil, 0o644); err != nil {
			return rerr.WithPath(err, dest)
		}
		return nil

	case opts.Hardlink:
		blob := r.Store.BlobPath(h)
		if err := os.Link(blob, dest); err != nil {
			return rerr.WithPath(err, dest)
		}
		return nil

	default:
		blob := r.Store.BlobPath(h)
		if err := copyFile(blob, dest); err != nil {
			return err
		}
		return nil
	}
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return rerr.WithPath(err, src)
	}
	info, err := os.Stat(src)
	if err != nil {
		return rerr.WithPath(err, src)
	}
	if err := os.WriteFile(dst, data, info.Mode()); err != nil {
		return rerr.WithPath(err, dst)
	}
	return nil
}

func checkoutSymlink(r *repo.Repo, dest string, h objhash.Hash) error {
	targetBytes, err := r.Store.ReadBlob(h)
	if err != nil {
		return err
	}
	blob := r.Store.BlobPath(h)
	meta, err := fsdev.Lstat(blob)
	if err != nil {
		return err
	}
	return fsdev.CreateSymlink(dest, string(targetBytes), meta.UID, meta.GID)
}
