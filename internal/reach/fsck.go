package reach

import (
	"errors"

	"github.com/javanhut/rootcas/internal/model"
	"github.com/javanhut/rootcas/internal/objhash"
	"github.com/javanhut/rootcas/internal/repo"
	"github.com/javanhut/rootcas/internal/rerr"
	"github.com/javanhut/rootcas/internal/rlog"
	"github.com/javanhut/rootcas/internal/store"
)

// ObjectKind names which object-store kind a fsck finding concerns.
type ObjectKind int

const (
	ObjectBlob ObjectKind = iota
	ObjectTree
	ObjectCommit
)

func (k ObjectKind) String() string {
	switch k {
	case ObjectBlob:
		return "blob"
	case ObjectTree:
		return "tree"
	case ObjectCommit:
		return "commit"
	default:
		return "unknown"
	}
}

// CorruptObject is an object whose stored hash doesn't match its contents.
type CorruptObject struct {
	Hash    objhash.Hash
	Kind    ObjectKind
	Message string
}

// MissingObject is an object referenced by a tree/commit but absent on disk.
type MissingObject struct {
	Hash         objhash.Hash
	Kind         ObjectKind
	ReferencedBy string
}

// Report summarizes a full repository integrity check.
type Report struct {
	ObjectsChecked  int
	CorruptObjects  []CorruptObject
	MissingObjects  []MissingObject
	DanglingObjects []objhash.Hash
}

// IsOK reports whether no corruption or missing-object problems were found.
// Dangling objects (unreachable but intact) are not themselves a failure.
func (r *Report) IsOK() bool {
	return len(r.CorruptObjects) == 0 && len(r.MissingObjects) == 0
}

// Fsck walks every ref, marking every object it can reach, then compares
// that reachable set against everything actually stored, reporting
// corruption, missing objects, and dangling (unreachable) objects.
func Fsck(r *repo.Repo) (*Report, error) {
	report := &Report{}
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
		if err := checkCommit(r, commitHash, name, reachableBlobs, reachableTrees, reachableCommits, report); err != nil {
			return nil, err
		}
	}

	if err := sweepChecked(r, store.KindBlob, ObjectBlob, reachableBlobs, report, false); err != nil {
		return nil, err
	}
	if err := sweepChecked(r, store.KindTree, ObjectTree, reachableTrees, report, true); err != nil {
		return nil, err
	}
	if err := sweepChecked(r, store.KindCommit, ObjectCommit, reachableCommits, report, true); err != nil {
		return nil, err
	}

	entry := rlog.For("fsck", r.Path())
	entry.WithFields(map[string]any{
		"objects_checked":  report.ObjectsChecked,
		"corrupt_objects":  len(report.CorruptObjects),
		"missing_objects":  len(report.MissingObjects),
		"dangling_objects": len(report.DanglingObjects),
	}).Info("fsck complete")

	return report, nil
}

// sweepChecked walks every object of kind on disk, recording dangling
// entries and — for trees/commits, whose compressed bytes are
// self-verifying — corrupt ones. Blob hashes depend on ownership/xattrs
// not recoverable from the file alone, so blobs are only checked for
// existence and danglingness.
func sweepChecked(r *repo.Repo, kind string, objKind ObjectKind, reachable map[objhash.Hash]struct{}, report *Report, verifyHash bool) error {
	return r.Store.WalkKind(kind, func(h objhash.Hash) error {
		report.ObjectsChecked++
		if verifyHash {
			var verifyErr error
			switch objKind {
			case ObjectTree:
				_, verifyErr = r.Store.ReadTree(h)
			case ObjectCommit:
				_, verifyErr = r.Store.ReadCommit(h)
			}
			if verifyErr != nil && errors.Is(verifyErr, rerr.ErrCorruptObject) {
				report.CorruptObjects = append(report.CorruptObjects, CorruptObject{
					Hash: h, Kind: objKind, Message: "hash mismatch",
				})
			}
		}
		if _, ok := reachable[h]; !ok {
			report.DanglingObjects = append(report.DanglingObjects, h)
		}
		return nil
	})
}

func checkCommit(r *repo.Repo, commitHash objhash.Hash, referencedBy string, reachableBlobs, reachableTrees, reachableCommits map[objhash.Hash]struct{}, report *Report) error {
	if _, ok := reachableCommits[commitHash]; ok {
		return nil
	}
	reachableCommits[commitHash] = struct{}{}

	commit, err := r.Store.ReadCommit(commitHash)
	if err != nil {
		if errors.Is(err, rerr.ErrObjectNotFound) {
			report.MissingObjects = append(report.MissingObjects, MissingObject{
				Hash: commitHash, Kind: ObjectCommit, ReferencedBy: referencedBy,
			})
			return nil
		}
		if errors.Is(err, rerr.ErrCorruptObject) {
			report.CorruptObjects = append(report.CorruptObjects, CorruptObject{
				Hash: commitHash, Kind: ObjectCommit, Message: "hash mismatch",
			})
			return nil
		}
		return err
	}

	if err := checkTree(r, commit.Tree, "commit "+commitHash.String(), reachableBlobs, reachableTrees, report); err != nil {
		return err
	}
	for _, parent := range commit.Parents {
		if err := checkCommit(r, parent, "commit "+commitHash.String(), reachableBlobs, reachableTrees, reachableCommits, report); err != nil {
			return err
		}
	}
	return nil
}

func checkTree(r *repo.Repo, treeHash objhash.Hash, referencedBy string, reachableBlobs, reachableTrees map[objhash.Hash]struct{}, report *Report) error {
	if _, ok := reachableTrees[treeHash]; ok {
		return nil
	}
	reachableTrees[treeHash] = struct{}{}

	tree, err := r.Store.ReadTree(treeHash)
	if err != nil {
		if errors.Is(err, rerr.ErrObjectNotFound) {
			report.MissingObjects = append(report.MissingObjects, MissingObject{
				Hash: treeHash, Kind: ObjectTree, ReferencedBy: referencedBy,
			})
			return nil
		}
		if errors.Is(err, rerr.ErrCorruptObject) {
			report.CorruptObjects = append(report.CorruptObjects, CorruptObject{
				Hash: treeHash, Kind: ObjectTree, Message: "hash mismatch",
			})
			return nil
		}
		return err
	}

	for _, entry := range tree.Entries {
		switch entry.Type {
		case model.EntryRegular, model.EntrySymlink:
			reachableBlobs[entry.Hash] = struct{}{}
			if !r.Store.Has(store.KindBlob, entry.Hash) {
				report.MissingObjects = append(report.MissingObjects, MissingObject{
					Hash: entry.Hash, Kind: ObjectBlob,
					ReferencedBy: "tree " + treeHash.String() + " entry " + entry.Name,
				})
			}
		case model.EntryDirectory:
			if err := checkTree(r, entry.Hash, "tree "+treeHash.String()+" entry "+entry.Name, reachableBlobs, reachableTrees, report); err != nil {
				return err
			}
		}
	}
	return nil
}
