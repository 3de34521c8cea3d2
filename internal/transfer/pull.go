package transfer

import (
	"github.com/javanhut/rootcas/internal/objhash"
	"github.com/javanhut/rootcas/internal/repo"
	"github.com/javanhut/rootcas/internal/rlog"
)

// PullOptions configures a pull.
type PullOptions struct {
	// FetchOnly fetches objects without updating dst's ref.
	FetchOnly bool
	// DryRun reports what would transfer without touching anything.
	DryRun bool
}

// PullResult reports what a pull transferred, or would transfer under
// DryRun.
type PullResult struct {
	Hash              objhash.Hash
	Stats             Stats
	ObjectsToTransfer int
}

// PullLocal fetches refName's objects from src into dst and, unless
// FetchOnly is set, points dst's refName at the same commit.
func PullLocal(src, dst *repo.Repo, refName string, opts PullOptions) (PullResult, error) {
	srcHash, err := src.Heads.Read(refName)
	if err != nil {
		return PullResult{}, err
	}

	var needed ObjectSet
	if err := collectCommitObjects(src, srcHash, &needed, make(map[objhash.Hash]struct{})); err != nil {
		return PullResult{}, err
	}

	existing, err := ListAllObjects(dst)
	if err != nil {
		return PullResult{}, err
	}
	needed = subtractExisting(needed, existing)

	if opts.DryRun {
		return PullResult{Hash: srcHash, ObjectsToTransfer: needed.TotalCount()}, nil
	}

	stats, err := CopyObjects(src, dst, needed)
	if err != nil {
		return PullResult{}, err
	}

	if !opts.FetchOnly {
		if err := dst.Heads.Write(refName, srcHash); err != nil {
			return PullResult{}, err
		}
	}

	rlog.WithRef(rlog.For("pull", dst.Path()), refName).WithFields(map[string]any{
		"fetch_only": opts.FetchOnly,
		"copied":     stats.Copied,
		"hardlinked": stats.Hardlinked,
		"skipped":    stats.Skipped,
	}).Info("pull complete")

	return PullResult{Hash: srcHash, Stats: stats}, nil
}

// subtractExisting removes from needed every hash already present in
// existing, so a repeat transfer only moves what changed.
func subtractExisting(needed, existing ObjectSet) ObjectSet {
	blobSet := toSet(existing.Blobs)
	treeSet := toSet(existing.Trees)
	commitSet := toSet(existing.Commits)

	return ObjectSet{
		Blobs:   filterOut(needed.Blobs, blobSet),
		Trees:   filterOut(needed.Trees, treeSet),
		Commits: filterOut(needed.Commits, commitSet),
	}
}

func toSet(hashes []objhash.Hash) map[objhash.Hash]struct{} {
	set := make(map[objhash.Hash]struct{}, len(hashes))
	for _, h := range hashes {
		set[h] = struct{}{}
	}
	return set
}

func filterOut(hashes []objhash.Hash, exclude map[objhash.Hash]struct{}) []objhash.Hash {
	var kept []objhash.Hash
	for _, h := range hashes {
		if _, ok := exclude[h]; !ok {
			kept = append(kept, h)
		}
	}
	return kept
}
