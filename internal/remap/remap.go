// Package remap translates every stored blob's on-disk ownership from a
// repository's recorded namespace mapping to the process's current one,
// the operation needed after a repository is moved between machines (or
// user namespaces) with different UID/GID ranges.
package remap

import (
	"os"
	"path/filepath"

	"github.com/javanhut/rootcas/internal/fsdev"
	"github.com/javanhut/rootcas/internal/nsmap"
	"github.com/javanhut/rootcas/internal/repo"
	"github.com/javanhut/rootcas/internal/rerr"
)

// Options configures a remap pass.
type Options struct {
	// Force skips blobs that can't be remapped into the current namespace
	// instead of failing the whole operation.
	Force bool
	// DryRun reports what would change without touching any file.
	DryRun bool
}

// Stats summarizes the result of a remap pass.
type Stats struct {
	Remapped              uint64
	SkippedUnmappedSource uint64
	SkippedUnmappedTarget uint64
	Total                 uint64
}

// Remap compares the repository's recorded namespace against the process's
// current one and, if they differ, chowns every stored blob from its old
// outside ownership to the equivalent ownership under the new mapping.
// If nothing changed (mappings already match), it returns immediately
// without acquiring the repository lock.
func Remap(r *repo.Repo, opts Options) (*Stats, error) {
	sourceNS := r.Namespace()

	currentUID, err := nsmap.CurrentUIDMap()
	if err != nil {
		return nil, err
	}
	currentGID, err := nsmap.CurrentGIDMap()
	if err != nil {
		return nil, err
	}
	currentNS := nsmap.Config{UIDMap: currentUID, GIDMap: currentGID}

	if nsmap.Equal(sourceNS, currentNS) {
		return &Stats{}, nil
	}

	lock, err := r.Lock()
	if err != nil {
		return nil, err
	}
	defer lock.Unlock()

	stats, err := remapBlobs(r.BlobsPath(), sourceNS, currentNS, opts)
	if err != nil {
		return nil, err
	}

	if !opts.DryRun && stats.Remapped > 0 {
		r.Config().SetNamespace(currentNS)
		if err := r.SaveConfig(); err != nil {
			return nil, err
		}
		if err := fsdev.FsyncDir(filepath.Dir(r.ConfigPath())); err != nil {
			return nil, err
		}
	}

	return stats, nil
}

func remapBlobs(blobsPath string, sourceNS, currentNS nsmap.Config, opts Options) (*Stats, error) {
	stats := &Stats{}

	prefixes, err := os.ReadDir(blobsPath)
	if err != nil {
		return nil, rerr.WithPath(err, blobsPath)
	}
	for _, prefix := range prefixes {
		if !prefix.IsDir() {
			continue
		}
		prefixPath := filepath.Join(blobsPath, prefix.Name())
		blobs, err := os.ReadDir(prefixPath)
		if err != nil {
			return nil, rerr.WithPath(err, prefixPath)
		}
		for _, blob := range blobs {
			if blob.IsDir() {
				continue
			}
			blobPath := filepath.Join(prefixPath, blob.Name())
			stats.Total++

			result, err := remapSingleBlob(blobPath, sourceNS, currentNS, opts)
			if err != nil {
				return nil, err
			}
			switch result {
			case remapped:
				stats.Remapped++
			case noChange:
			case skippedUnmappedSource:
				stats.SkippedUnmappedSource++
			case skippedUnmappedTarget:
				stats.SkippedUnmappedTarget++
			}
		}
	}
	return stats, nil
}

type remapResult int

const (
	noChange remapResult = iota
	remapped
	skippedUnmappedSource
	skippedUnmappedTarget
)

func remapSingleBlob(path string, sourceNS, currentNS nsmap.Config, opts Options) (remapResult, error) {
	meta, err := fsdev.Lstat(path)
	if err != nil {
		return noChange, err
	}

	oldInsideUID, ok := nsmap.OutsideToInside(meta.UID, sourceNS.UIDMap)
	if !ok {
		return skippedUnmappedSource, nil
	}
	oldInsideGID, ok := nsmap.OutsideToInside(meta.GID, sourceNS.GIDMap)
	if !ok {
		return skippedUnmappedSource, nil
	}

	newOutsideUID, ok := nsmap.InsideToOutside(oldInsideUID, currentNS.UIDMap)
	if !ok {
		if opts.Force {
			return skippedUnmappedTarget, nil
		}
		return noChange, rerr.UnmappedUID(oldInsideUID)
	}
	newOutsideGID, ok := nsmap.InsideToOutside(oldInsideGID, currentNS.GIDMap)
	if !ok {
		if opts.Force {
			return skippedUnmappedTarget, nil
		}
		return noChange, rerr.UnmappedGID(oldInsideGID)
	}

	if newOutsideUID == meta.UID && newOutsideGID == meta.GID {
		return noChange, nil
	}

	if !opts.DryRun {
		if err := fsdev.Lchown(path, newOutsideUID, newOutsideGID); err != nil {
			return noChange, err
		}
	}
	return remapped, nil
}
