package reach

import (
	"github.com/javanhut/rootcas/internal/model"
	"github.com/javanhut/rootcas/internal/objhash"
	"github.com/javanhut/rootcas/internal/repo"
	"github.com/javanhut/rootcas/internal/rlog"
	"github.com/javanhut/rootcas/internal/store"
)

// Stats reports what a gc pass removed (or would remove, under dry-run).
type Stats struct {
	BlobsRemoved   int
	TreesRemoved   int
	CommitsRemoved int
	BytesFreed     int64
}

// GC marks every object reachable from a ref, then removes everything else.
// With dryRun, objects are counted but not actually deleted.
func GC(r *repo.Repo, dryRun bool) (*Stats, error) {
	reachableBlobs := make(map[objhash.Hash]struct{})
	reachableTrees := make(map[objhash.Hash]struct{})
	reachableCommits := make(map[objhash.Hash]struct{})

	names, err := r.Heads.List()
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		commitHash, err := r.Heads.Read(name)
		if err != nil {
			return nil, err
		}
		if err := markCommit(r, commitHash, reachableBlobs, reachableTrees, reachableCommits); err != nil {
			return nil, err
		}
	}

	stats := &Stats{}
	if err := sweep(r, store.KindBlob, reachableBlobs, dryRun, &stats.BlobsRemoved, &stats.BytesFreed); err != nil {
		return nil, err
	}
	if err := sweep(r, store.KindTree, reachableTrees, dryRun, &stats.TreesRemoved, &stats.BytesFreed); err != nil {
		return nil, err
	}
	if err := sweep(r, store.KindCommit, reachableCommits, dryRun, &stats.CommitsRemoved, &stats.BytesFreed); err != nil {
		return nil, err
	}

	entry := rlog.For("gc", r.Path())
	entry.WithFields(map[string]any{
		"dry_run":         dryRun,
		"blobs_removed":   stats.BlobsRemoved,
		"trees_removed":   stats.TreesRemoved,
		"commits_removed": stats.CommitsRemoved,
		"bytes_freed":     stats.BytesFreed,
	}).Info("gc complete")

	return stats, nil
}

func markCommit(r *repo.Repo, commitHash objhash.Hash, reachableBlobs, reachableTrees, reachableCommits map[objhash.Hash]struct{}) error {
	if _, ok := reachableCommits[commitHash]; ok {
		return nil
	}
	reachableCommits[commitHash] = struct{}{}

	commit, err := r.Store.ReadCommit(commitHash)
	if err != nil {
		return err
	}
	if err := markTree(r, commit.Tree, reachableBlobs, reachableTrees); err != nil {
		return err
	}
	for _, parent := range commit.Parents {
		if err := markCommit(r, parent, reachableBlobs, reachableTrees, reachableCommits); err != nil {
			return err
		}
	}
	return nil
}

func markTree(r *repo.Repo, treeHash objhash.Hash, reachableBlobs, reachableTrees map[objhash.Hash]struct{}) error {
	if _, ok := reachableTrees[treeHash]; ok {
		return nil
	}
	reachableTrees[treeHash] = struct{}{}

	tree, err := r.Store.ReadTree(treeHash)
	if err != nil {
		return err
	}
	for _, entry := range tree.Entries {
		switch entry.Type {
		case model.EntryRegular, model.EntrySymlink:
			reachableBlobs[entry.Hash] = struct{}{}
		case model.EntryDirectory:
			if err := markTree(r, entry.Hash, reachableBlobs, reachableTrees); err != nil {
				return err
			}
		}
	}
	return nil
}

func sweep(r *repo.Repo, kind string, reachable map[objhash.Hash]struct{}, dryRun bool, removedCount *int, bytesFreed *int64) error {
	var toRemove []objhash.Hash
	err := r.Store.WalkKind(kind, func(h objhash.Hash) error {
		if _, ok := reachable[h]; ok {
			return nil
		}
		size, err := r.Store.Size(kind, h)
		if err != nil {
			return err
		}
		*bytesFreed += size
		*removedCount++
		toRemove = append(toRemove, h)
		return nil
	})
	if err != nil {
		return err
	}
	if dryRun {
		return nil
	}
	for _, h := range toRemove {
		if err := r.Store.RemoveObject(kind, h); err != nil {
			return err
		}
	}
	return nil
}
