// Package transfer moves objects and refs between repositories: a local
// path (copying/hardlinking objects directly between two on-disk stores)
// and a remote wire protocol (line-oriented requests over any
// io.Reader/io.Writer, suitable for a TCP connection or a piped
// subprocess) for pushing to and pulling from a repository on another
// host.
package transfer

import (
	"os"
	"path/filepath"

	"github.com/javanhut/rootcas/internal/model"
	"github.com/javanhut/rootcas/internal/objhash"
	"github.com/javanhut/rootcas/internal/repo"
	"github.com/javanhut/rootcas/internal/rerr"
	"github.com/javanhut/rootcas/internal/store"
)

// ObjectSet names a set of objects by kind, scheduled for transfer.
type ObjectSet struct {
	Blobs   []objhash.Hash
	Trees   []objhash.Hash
	Commits []objhash.Hash
}

// IsEmpty reports whether the set names no objects at all.
func (o ObjectSet) IsEmpty() bool {
	return len(o.Blobs) == 0 && len(o.Trees) == 0 && len(o.Commits) == 0
}

// TotalCount is the number of objects named across all three kinds.
func (o ObjectSet) TotalCount() int {
	return len(o.Blobs) + len(o.Trees) + len(o.Commits)
}

// Stats reports what CopyObjects actually did.
type Stats struct {
	Copied           int
	Hardlinked       int
	Skipped          int
	BytesTransferred int64
}

// ListAllObjects enumerates every object in r's store, by kind.
func ListAllObjects(r *repo.Repo) (ObjectSet, error) {
	var set ObjectSet
	if err := r.Store.WalkKind(store.KindBlob, func(h objhash.Hash) error {
		set.Blobs = append(set.Blobs, h)
		return nil
	}); err != nil {
		return ObjectSet{}, err
	}
	if err := r.Store.WalkKind(store.KindTree, func(h objhash.Hash) error {
		set.Trees = append(set.Trees, h)
		return nil
	}); err != nil {
		return ObjectSet{}, err
	}
	if err := r.Store.WalkKind(store.KindCommit, func(h objhash.Hash) error {
		set.Commits = append(set.Commits, h)
		return nil
	}); err != nil {
		return ObjectSet{}, err
	}
	return set, nil
}

// CopyObjects copies the named objects from src's store into dst's,
// hardlinking where the two repositories share a filesystem and falling
// back to a byte copy otherwise. Objects already present at the
// destination are skipped.
func CopyObjects(src, dst *repo.Repo, objects ObjectSet) (Stats, error) {
	var stats Stats
	for _, h := range objects.Blobs {
		if err := copyOneObject(src, dst, store.KindBlob, h, &stats); err != nil {
			return stats, err
		}
	}
	for _, h := range objects.Trees {
		if err := copyOneObject(src, dst, store.KindTree, h, &stats); err != nil {
			return stats, err
		}
	}
	for _, h := range objects.Commits {
		if err := copyOneObject(src, dst, store.KindCommit, h, &stats); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func copyOneObject(src, dst *repo.Repo, kind string, h objhash.Hash, stats *Stats) error {
	srcPath := objectPath(src, kind, h)
	dstPath := objectPath(dst, kind, h)

	if _, err := os.Stat(dstPath); err == nil {
		stats.Skipped++
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return rerr.WithPath(err, dstPath)
	}

	if err := os.Link(srcPath, dstPath); err == nil {
		stats.Hardlinked++
		return nil
	}

	data, err := os.ReadFile(srcPath)
	if err != nil {
		return rerr.WithPath(err, srcPath)
	}
	if err := os.WriteFile(dstPath, data, 0o644); err != nil {
		return rerr.WithPath(err, dstPath)
	}
	stats.BytesTransferred += int64(len(data))
	stats.Copied++
	return nil
}

func objectPath(r *repo.Repo, kind string, h objhash.Hash) string {
	dir, file := h.PathComponents()
	switch kind {
	case store.KindBlob:
		return r.Store.BlobPath(h)
	case store.KindTree:
		return filepath.Join(r.TreesPath(), dir, file)
	case store.KindCommit:
		return filepath.Join(r.CommitsPath(), dir, file)
	default:
		return ""
	}
}

// collectCommitObjects walks a commit and every object it reaches
// (its tree, recursively, and its parent commits) into objects, never
// visiting the same hash twice.
func collectCommitObjects(r *repo.Repo, commitHash objhash.Hash, objects *ObjectSet, visited map[objhash.Hash]struct{}) error {
	if _, ok := visited[commitHash]; ok {
		return nil
	}
	visited[commitHash] = struct{}{}
	objects.Commits = append(objects.Commits, commitHash)

	c, err := r.Store.ReadCommit(commitHash)
	if err != nil {
		return err
	}
	if err := collectTreeObjects(r, c.Tree, objects, visited); err != nil {
		return err
	}
	for _, parent := range c.Parents {
		if err := collectCommitObjects(r, parent, objects, visited); err != nil {
			return err
		}
	}
	return nil
}

// collectTreeObjects walks a tree and every blob/subtree it reaches into
// objects, never visiting the same hash twice.
func collectTreeObjects(r *repo.Repo, treeHash objhash.Hash, objects *ObjectSet, visited map[objhash.Hash]struct{}) error {
	if _, ok := visited[treeHash]; ok {
		return nil
	}
	visited[treeHash] = struct{}{}
	objects.Trees = append(objects.Trees, treeHash)

	tree, err := r.Store.ReadTree(treeHash)
	if err != nil {
		return err
	}
	for _, entry := range tree.Entries {
		switch entry.Type {
		case model.EntryRegular, model.EntrySymlink:
			if _, ok := visited[entry.Hash]; !ok {
				visited[entry.Hash] = struct{}{}
				objects.Blobs = append(objects.Blobs, entry.Hash)
			}
		case model.EntryDirectory:
			if err := collectTreeObjects(r, entry.Hash, objects, visited); err != nil {
				return err
			}
		}
	}
	return nil
}

// isAncestor reports whether ancestor is reachable by following parent
// links from descendant (including descendant itself).
func isAncestor(r *repo.Repo, ancestor, descendant objhash.Hash) (bool, error) {
	if ancestor == descendant {
		return true, nil
	}
	toVisit := []objhash.Hash{descendant}
	visited := make(map[objhash.Hash]struct{})

	for len(toVisit) > 0 {
		h := toVisit[len(toVisit)-1]
		toVisit = toVisit[:len(toVisit)-1]

		if h == ancestor {
			return true, nil
		}
		if _, ok := visited[h]; ok {
			continue
		}
		visited[h] = struct{}{}

		c, err := r.Store.ReadCommit(h)
		if err != nil {
			continue
		}
		toVisit = append(toVisit, c.Parents...)
	}
	return false, nil
}
