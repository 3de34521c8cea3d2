package transfer

import (
	"github.com/javanhut/rootcas/internal/objhash"
	"github.com/javanhut/rootcas/internal/repo"
	"github.com/javanhut/rootcas/internal/rerr"
	"github.com/javanhut/rootcas/internal/rlog"
)

// PushOptions configures a push.
type PushOptions struct {
	// Force updates dst's ref even if srcHash is not a fast-forward of
	// dst's current ref.
	Force bool
	// DryRun reports what would transfer without touching anything.
	DryRun bool
}

// PushResult reports what a push transferred, or would transfer under
// DryRun.
type PushResult struct {
	Hash              objhash.Hash
	Stats             Stats
	ObjectsToTransfer int
}

// PushLocal sends refName's objects from src to dst and updates dst's
// ref, rejecting the update unless it is a fast-forward or Force is set.
func PushLocal(src, dst *repo.Repo, refName string, opts PushOptions) (PushResult, error) {
	srcHash, err := src.Heads.Read(refName)
	if err != nil {
		return PushResult{}, err
	}

	if !opts.Force {
		if dstHash, err := dst.Heads.Read(refName); err == nil {
			ok, err := isAncestor(src, dstHash, srcHash)
			if err != nil {
				return PushResult{}, err
			}
			if !ok {
				return PushResult{}, rerr.Transport("non-fast-forward update rejected (use --force to override)")
			}
		}
	}

	var needed ObjectSet
	if err := collectCommitObjects(src, srcHash, &needed, make(map[objhash.Hash]struct{})); err != nil {
		return PushResult{}, err
	}

	existing, err := ListAllObjects(dst)
	if err != nil {
		return PushResult{}, err
	}
	needed = subtractExisting(needed, existing)

	if opts.DryRun {
		return PushResult{Hash: srcHash, ObjectsToTransfer: needed.TotalCount()}, nil
	}

	stats, err := CopyObjects(src, dst, needed)
	if err != nil {
		return PushResult{}, err
	}

	if err := dst.Heads.Write(refName, srcHash); err != nil {
		return PushResult{}, err
	}

	rlog.WithRef(rlog.For("push", dst.Path()), refName).WithFields(map[string]any{
		"force":      opts.Force,
		"copied":     stats.Copied,
		"hardlinked": stats.Hardlinked,
		"skipped":    stats.Skipped,
	}).Info("push complete")

	return PushResult{Hash: srcHash, Stats: stats}, nil
}
