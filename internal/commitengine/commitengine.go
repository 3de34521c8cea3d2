// Package commitengine walks a source directory tree and commits it into
// a repository's object store, producing a new commit with the current
// ref head (if any) as its parent.
package commitengine

import (
	"errors"
	"os"
	"path/filepath"
	"sort"

	"github.com/javanhut/rootcas/internal/fsdev"
	"github.com/javanhut/rootcas/internal/model"
	"github.com/javanhut/rootcas/internal/nsmap"
	"github.com/javanhut/rootcas/internal/objhash"
	"github.com/javanhut/rootcas/internal/refs"
	"github.com/javanhut/rootcas/internal/repo"
	"github.com/javanhut/rootcas/internal/rerr"
	"github.com/javanhut/rootcas/internal/rlog"
)

// hardlinkKey identifies an inode on a single device.
type hardlinkKey struct {
	dev, ino uint64
}

// hardlinkTracker records the first logical path at which each (dev, ino)
// pair was seen, so later occurrences are committed as EntryHardlink
// entries pointing back at it instead of duplicating blob content.
type hardlinkTracker struct {
	seen map[hardlinkKey]string
}

func newHardlinkTracker() *hardlinkTracker {
	return &hardlinkTracker{seen: make(map[hardlinkKey]string)}
}

// check returns the first-seen logical path for (dev, ino) and records the
// current path if this is the first occurrence. A non-empty, ok=true
// result means the caller should emit a hardlink entry instead of content.
func (h *hardlinkTracker) check(dev, ino uint64, logicalPath string) (string, bool) {
	key := hardlinkKey{dev, ino}
	if target, found := h.seen[key]; found {
		return target, true
	}
	h.seen[key] = logicalPath
	return "", false
}

// Options configures a commit operation.
type Options struct {
	Message  string
	Author   string
	Metadata map[string]string
}

// Commit walks source and records it as a new commit on refName, with the
// ref's current head (if any) as the sole parent.
func Commit(r *repo.Repo, source, refName string, opts Options) (objhash.Hash, error) {
	tracker := newHardlinkTracker()

	treeHash, err := commitTree(r, source, "", tracker)
	if err != nil {
		return objhash.Zero, err
	}

	var parents []objhash.Hash
	if parent, err := r.Heads.Read(refName); err == nil {
		parents = []objhash.Hash{parent}
	} else if !errors.Is(err, rerr.ErrRefNotFound) {
		return objhash.Zero, err
	}

	author := opts.Author
	if author == "" {
		author = "rootcas"
	}
	commit := &model.Commit{
		Tree:     treeHash,
		Parents:  parents,
		Author:   author,
		Message:  opts.Message,
		Metadata: opts.Metadata,
	}

	commitHash, err := r.Store.WriteCommit(commit)
	if err != nil {
		return objhash.Zero, err
	}
	if err := r.Heads.Write(refName, commitHash); err != nil {
		return objhash.Zero, err
	}

	rlog.WithRef(rlog.For("commit", r.Path()), refName).WithField("hash", commitHash.String()).Info("commit recorded")

	return commitHash, nil
}

func commitTree(r *repo.Repo, dir, prefix string, tracker *hardlinkTracker) (objhash.Hash, error) {
	ns := r.Namespace()

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return objhash.Zero, rerr.WithPath(err, dir)
	}
	names := make([]string, len(dirEntries))
	for i, de := range dirEntries {
		names[i] = de.Name()
	}
	sort.Strings(names)

	var entries []model.TreeEntry
	for _, name := range names {
		path := filepath.Join(dir, name)
		logicalPath := name
		if prefix != "" {
			logicalPath = prefix + "/" + name
		}

		meta, err := fsdev.Lstat(path)
		if err != nil {
			return objhash.Zero, err
		}

		insideUID, ok := nsmap.OutsideToInside(meta.UID, ns.UIDMap)
		if !ok {
			return objhash.Zero, rerr.UnmappedUID(meta.UID)
		}
		insideGID, ok := nsmap.OutsideToInside(meta.GID, ns.GIDMap)
		if !ok {
			return objhash.Zero, rerr.UnmappedGID(meta.GID)
		}

		entry, err := commitEntry(r, path, logicalPath, name, meta, insideUID, insideGID, tracker)
		if err != nil {
			return objhash.Zero, err
		}
		entries = append(entries, entry)
	}

	tree, err := model.NewTree(entries)
	if err != nil {
		return objhash.Zero, err
	}
	return r.Store.WriteTree(tree)
}

func commitEntry(r *repo.Repo, path, logicalPath, name string, meta fsdev.FileMetadata, insideUID, insideGID uint32, tracker *hardlinkTracker) (model.TreeEntry, error) {
	base := model.TreeEntry{Name: name, UID: insideUID, GID: insideGID, Mode: meta.Mode}

	switch meta.Type {
	case fsdev.FileRegular:
		if meta.CouldBeHardlink() {
			if target, isHardlink := tracker.check(meta.Dev, meta.Ino, logicalPath); isHardlink {
				base.Type = model.EntryHardlink
				base.TargetPath = target
				return base, nil
			}
		}

		xattrs, err := fsdev.ReadXattrs(path)
		if err != nil {
			return model.TreeEntry{}, err
		}

		content, sparseMap, err := readRegularContent(path)
		if err != nil {
			return model.TreeEntry{}, err
		}

		h, err := r.Store.WriteBlob(content, insideUID, insideGID, meta.Mode, xattrs)
		if err != nil {
			return model.TreeEntry{}, err
		}

		base.Type = model.EntryRegular
		base.Hash = h
		base.Size = meta.Size
		base.Xattrs = xattrs
		if sparseMap != nil {
			base.SparseMap = sparseMap
		}
		return base, nil

	case fsdev.FileSymlink:
		// symlinks carry no xattr list: there is no lsetxattr-equivalent
		// "don't follow" guarantee uniform across filesystems, and the
		// fixed SymlinkMode already makes the hash independent of the
		// link's reported mode for the same determinism reason.
		target, err := fsdev.ReadSymlinkTarget(path)
		if err != nil {
			return model.TreeEntry{}, err
		}
		h := objhash.ComputeSymlinkHash(insideUID, insideGID, nil, target)
		if _, err := r.Store.WriteBlob([]byte(target), insideUID, insideGID, objhash.SymlinkMode, nil); err != nil {
			return model.TreeEntry{}, err
		}
		base.Type = model.EntrySymlink
		base.Hash = h
		base.TargetPath = target
		return base, nil

	case fsdev.FileDirectory:
		xattrs, err := fsdev.ReadXattrs(path)
		if err != nil {
			return model.TreeEntry{}, err
		}
		subtreeHash, err := commitTree(r, path, logicalPath, tracker)
		if err != nil {
			return model.TreeEntry{}, err
		}
		base.Type = model.EntryDirectory
		base.Hash = subtreeHash
		base.Xattrs = xattrs
		return base, nil

	case fsdev.FileBlockDevice, fsdev.FileCharDevice:
		xattrs, err := fsdev.ReadXattrs(path)
		if err != nil {
			return model.TreeEntry{}, err
		}
		if meta.Type == fsdev.FileBlockDevice {
			base.Type = model.EntryBlockDevice
		} else {
			base.Type = model.EntryCharDevice
		}
		base.Major, base.Minor = meta.Major, meta.Minor
		base.Xattrs = xattrs
		return base, nil

	case fsdev.FileFifo:
		xattrs, err := fsdev.ReadXattrs(path)
		if err != nil {
			return model.TreeEntry{}, err
		}
		base.Type = model.EntryFifo
		base.Xattrs = xattrs
		return base, nil

	case fsdev.FileSocket:
		xattrs, err := fsdev.ReadXattrs(path)
		if err != nil {
			return model.TreeEntry{}, err
		}
		base.Type = model.EntrySocket
		base.Xattrs = xattrs
		return base, nil

	default:
		return model.TreeEntry{}, rerr.InvalidEntryName(name)
	}
}

// readRegularContent reads a regular file's bytes, detecting sparse holes
// where the filesystem supports SEEK_DATA/SEEK_HOLE. sparseMap is nil for
// a fully dense file (or one on a filesystem without hole support).
func readRegularContent(path string) ([]byte, []model.SparseRegion, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, rerr.WithPath(err, path)
	}
	defer f.Close()

	regions, ok, err := fsdev.DetectSparseRegions(f)
	if err != nil {
		return nil, nil, rerr.WithPath(err, path)
	}
	if !ok {
		if _, err := f.Seek(0, os.SEEK_SET); err != nil {
			return nil, nil, rerr.WithPath(err, path)
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, rerr.WithPath(err, path)
		}
		return content, nil, nil
	}
	if len(regions) == 0 {
		return []byte{}, []model.SparseRegion{}, nil
	}
	data, err := fsdev.ReadDataRegions(f, regions)
	if err != nil {
		return nil, nil, rerr.WithPath(err, path)
	}
	if len(regions) == 1 && regions[0].Offset == 0 {
		info, err := f.Stat()
		if err != nil {
			return nil, nil, rerr.WithPath(err, path)
		}
		if uint64(info.Size()) == regions[0].Length {
			return data, nil, nil // one region covering the whole file: no holes
		}
	}
	return data, regions, nil
}

// CountFiles reports the number of regular files under path, for progress
// reporting during a commit.
func CountFiles(path string) int {
	count := 0
	filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.Mode().IsRegular() {
			count++
		}
		return nil
	})
	return count
}

// Resolve is a convenience wrapper around refs.Resolve for a repo's heads.
func Resolve(r *repo.Repo, refOrHash string) (objhash.Hash, error) {
	return refs.Resolve(r.Heads, refOrHash)
}
