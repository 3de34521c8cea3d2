// Package reach implements rootcas's reachability-based operations: diff
// between two commits, fsck integrity verification, and gc sweeping of
// unreachable objects.
package reach

import (
	"sort"

	"github.com/javanhut/rootcas/internal/model"
	"github.com/javanhut/rootcas/internal/objhash"
	"github.com/javanhut/rootcas/internal/refs"
	"github.com/javanhut/rootcas/internal/repo"
)

// ChangeKind classifies one path's difference between two trees.
type ChangeKind int

const (
	Added ChangeKind = iota
	Deleted
	Modified
	MetadataOnly
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Deleted:
		return "deleted"
	case Modified:
		return "modified"
	case MetadataOnly:
		return "metadata-only"
	default:
		return "unknown"
	}
}

// DiffEntry is one path-level change between two trees.
type DiffEntry struct {
	Path string
	Kind ChangeKind
}

// Diff compares the trees of two refs (or literal hashes), resolved
// through heads.
func Diff(r *repo.Repo, ref1, ref2 string) ([]DiffEntry, error) {
	hash1, err := refs.Resolve(r.Heads, ref1)
	if err != nil {
		return nil, err
	}
	hash2, err := refs.Resolve(r.Heads, ref2)
	if err != nil {
		return nil, err
	}

	commit1, err := r.Store.ReadCommit(hash1)
	if err != nil {
		return nil, err
	}
	commit2, err := r.Store.ReadCommit(hash2)
	if err != nil {
		return nil, err
	}

	return DiffTrees(r, commit1.Tree, commit2.Tree, "")
}

// DiffTrees compares two tree hashes, recursing into unchanged-name
// subdirectories whose hash differs.
func DiffTrees(r *repo.Repo, tree1, tree2 objhash.Hash, prefix string) ([]DiffEntry, error) {
	if tree1 == tree2 {
		return nil, nil
	}
	t1, err := r.Store.ReadTree(tree1)
	if err != nil {
		return nil, err
	}
	t2, err := r.Store.ReadTree(tree2)
	if err != nil {
		return nil, err
	}
	return diffTreeContents(r, t1, t2, prefix)
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

func diffTreeContents(r *repo.Repo, t1, t2 *model.Tree, prefix string) ([]DiffEntry, error) {
	names := make(map[string]struct{})
	for _, e := range t1.Entries {
		names[e.Name] = struct{}{}
	}
	for _, e := range t2.Entries {
		names[e.Name] = struct{}{}
	}
	sortedNames := make([]string, 0, len(names))
	for n := range names {
		sortedNames = append(sortedNames, n)
	}
	sort.Strings(sortedNames)

	var changes []DiffEntry
	for _, name := range sortedNames {
		path := joinPath(prefix, name)
		e1, ok1 := t1.Get(name)
		e2, ok2 := t2.Get(name)

		switch {
		case !ok1 && ok2:
			changes = append(changes, DiffEntry{Path: path, Kind: Added})
			if e2.Type == model.EntryDirectory {
				subtree, err := r.Store.ReadTree(e2.Hash)
				if err != nil {
					return nil, err
				}
				if err := reportAllEntries(r, subtree, path, Added, &changes); err != nil {
					return nil, err
				}
			}

		case ok1 && !ok2:
			changes = append(changes, DiffEntry{Path: path, Kind: Deleted})
			if e1.Type == model.EntryDirectory {
				subtree, err := r.Store.ReadTree(e1.Hash)
				if err != nil {
					return nil, err
				}
				if err := reportAllEntries(r, subtree, path, Deleted, &changes); err != nil {
					return nil, err
				}
			}

		case ok1 && ok2:
			if e1.Type == model.EntryDirectory && e2.Type == model.EntryDirectory {
				if e1.Hash != e2.Hash {
					sub, err := DiffTrees(r, e1.Hash, e2.Hash, path)
					if err != nil {
						return nil, err
					}
					changes = append(changes, sub...)
				}
				if e1.UID != e2.UID || e1.GID != e2.GID || e1.Mode != e2.Mode || !xattrsEqual(e1.Xattrs, e2.Xattrs) {
					changes = append(changes, DiffEntry{Path: path, Kind: MetadataOnly})
				}
			} else if e1.Type != e2.Type {
				changes = append(changes, DiffEntry{Path: path, Kind: Modified})
			} else if e1.Hash != e2.Hash {
				changes = append(changes, DiffEntry{Path: path, Kind: Modified})
			} else if !entryEqual(*e1, *e2) {
				changes = append(changes, DiffEntry{Path: path, Kind: MetadataOnly})
			}
		}
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes, nil
}

func reportAllEntries(r *repo.Repo, tree *model.Tree, prefix string, kind ChangeKind, changes *[]DiffEntry) error {
	for _, e := range tree.Entries {
		path := joinPath(prefix, e.Name)
		*changes = append(*changes, DiffEntry{Path: path, Kind: kind})
		if e.Type == model.EntryDirectory {
			subtree, err := r.Store.ReadTree(e.Hash)
			if err != nil {
				return err
			}
			if err := reportAllEntries(r, subtree, path, kind, changes); err != nil {
				return err
			}
		}
	}
	return nil
}

func xattrsEqual(a, b []model.Xattr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || string(a[i].Value) != string(b[i].Value) {
			return false
		}
	}
	return true
}

func entryEqual(a, b model.TreeEntry) bool {
	if a.Type != b.Type || a.Hash != b.Hash || a.Size != b.Size || a.UID != b.UID ||
		a.GID != b.GID || a.Mode != b.Mode || a.Major != b.Major || a.Minor != b.Minor ||
		a.TargetPath != b.TargetPath {
		return false
	}
	if !xattrsEqual(a.Xattrs, b.Xattrs) {
		return false
	}
	if len(a.SparseMap) != len(b.SparseMap) {
		return false
	}
	for i := range a.SparseMap {
		if a.SparseMap[i] != b.SparseMap[i] {
			return false
		}
	}
	return true
}
