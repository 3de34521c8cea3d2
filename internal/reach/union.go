package reach

import (
	"sort"

	"github.com/javanhut/rootcas/internal/model"
	"github.com/javanhut/rootcas/internal/objhash"
	"github.com/javanhut/rootcas/internal/refs"
	"github.com/javanhut/rootcas/internal/repo"
	"github.com/javanhut/rootcas/internal/rerr"
	"github.com/javanhut/rootcas/internal/rlog"
)

// ConflictResolution controls what union does when the same path exists
// with conflicting content in more than one input ref.
type ConflictResolution int

const (
	// ConflictError fails the union on any same-type conflict.
	ConflictError ConflictResolution = iota
	// ConflictFirst keeps the entry from the first ref that has it.
	ConflictFirst
	// ConflictLast keeps the entry from the last ref that has it.
	ConflictLast
)

// UnionOptions configures a union operation.
type UnionOptions struct {
	Message    string
	Author     string
	OnConflict ConflictResolution
}

// Union merges the trees of refs into a single new commit on outputRef,
// entirely within the object store; it never touches the filesystem. The
// new commit's parents are the resolved commit hashes of refs, in order.
func Union(r *repo.Repo, refNames []string, outputRef string, opts UnionOptions) (objhash.Hash, error) {
	if len(refNames) == 0 {
		return objhash.Zero, rerr.InvalidRef("no refs to union")
	}

	var trees []*model.Tree
	var parents []objhash.Hash

	for _, name := range refNames {
		commitHash, err := refs.Resolve(r.Heads, name)
		if err != nil {
			return objhash.Zero, err
		}
		parents = append(parents, commitHash)

		c, err := r.Store.ReadCommit(commitHash)
		if err != nil {
			return objhash.Zero, err
		}
		tree, err := r.Store.ReadTree(c.Tree)
		if err != nil {
			return objhash.Zero, err
		}
		trees = append(trees, tree)
	}

	merged, err := mergeTrees(r, trees, opts.OnConflict)
	if err != nil {
		return objhash.Zero, err
	}
	treeHash, err := r.Store.WriteTree(merged)
	if err != nil {
		return objhash.Zero, err
	}

	author := opts.Author
	if author == "" {
		author = "rootcas"
	}
	commit := &model.Commit{
		Tree:    treeHash,
		Parents: parents,
		Author:  author,
		Message: opts.Message,
	}
	commitHash, err := r.Store.WriteCommit(commit)
	if err != nil {
		return objhash.Zero, err
	}
	if err := r.Heads.Write(outputRef, commitHash); err != nil {
		return objhash.Zero, err
	}

	rlog.WithRef(rlog.For("union", r.Path()), outputRef).WithFields(map[string]any{
		"inputs": refNames,
		"hash":   commitHash.String(),
	}).Info("union complete")

	return commitHash, nil
}

// candidateEntry pairs a tree entry with the index of the input tree it
// came from, for merge-conflict resolution.
type candidateEntry struct {
	index int
	entry model.TreeEntry
}

// mergeTrees merges the named entries of every tree into one, recursing
// into directories that appear in more than one tree.
func mergeTrees(r *repo.Repo, trees []*model.Tree, onConflict ConflictResolution) (*model.Tree, error) {
	seen := make(map[string]struct{})
	var names []string
	for _, t := range trees {
		for _, e := range t.Entries {
			if _, ok := seen[e.Name]; !ok {
				seen[e.Name] = struct{}{}
				names = append(names, e.Name)
			}
		}
	}
	sort.Strings(names)

	var merged []model.TreeEntry
	for _, name := range names {
		var candidates []candidateEntry
		for i, t := range trees {
			if e, ok := t.Get(name); ok {
				candidates = append(candidates, candidateEntry{i, *e})
			}
		}

		if len(candidates) == 1 {
			merged = append(merged, candidates[0].entry)
			continue
		}

		entry, err := mergeEntries(r, name, candidates, onConflict)
		if err != nil {
			return nil, err
		}
		merged = append(merged, entry)
	}

	return model.NewTree(merged)
}

func mergeEntries(r *repo.Repo, name string, candidates []candidateEntry, onConflict ConflictResolution) (model.TreeEntry, error) {
	allDirs := true
	for _, c := range candidates {
		if c.entry.Type != model.EntryDirectory {
			allDirs = false
			break
		}
	}

	if allDirs {
		var subtrees []*model.Tree
		var last model.TreeEntry
		for _, c := range candidates {
			subtree, err := r.Store.ReadTree(c.entry.Hash)
			if err != nil {
				return model.TreeEntry{}, err
			}
			subtrees = append(subtrees, subtree)
			last = c.entry
		}

		mergedSubtree, err := mergeTrees(r, subtrees, onConflict)
		if err != nil {
			return model.TreeEntry{}, err
		}
		mergedHash, err := r.Store.WriteTree(mergedSubtree)
		if err != nil {
			return model.TreeEntry{}, err
		}

		return model.TreeEntry{
			Name:   name,
			Type:   model.EntryDirectory,
			Hash:   mergedHash,
			UID:    last.UID,
			GID:    last.GID,
			Mode:   last.Mode,
			Xattrs: last.Xattrs,
		}, nil
	}

	firstIsDir := candidates[0].entry.Type == model.EntryDirectory
	for _, c := range candidates[1:] {
		if (c.entry.Type == model.EntryDirectory) != firstIsDir {
			return model.TreeEntry{}, rerr.UnionTypeConflict(name, candidates[0].entry.Type.String(), c.entry.Type.String())
		}
	}

	switch onConflict {
	case ConflictFirst:
		return candidates[0].entry, nil
	case ConflictLast:
		return candidates[len(candidates)-1].entry, nil
	default:
		return model.TreeEntry{}, rerr.UnionConflict(name)
	}
}
