// Package model implements rootcas's data model: Tree, TreeEntry, Commit,
// and their CBOR encoding. Entries are stored sorted by name so the
// compressed, hashed bytes are a pure function of tree contents.
package model

import (
	"sort"
	"strings"

	"github.com/javanhut/rootcas/internal/objhash"
	"github.com/javanhut/rootcas/internal/rerr"
)

// EntryType discriminates the kind of filesystem object a TreeEntry names.
type EntryType uint8

const (
	EntryRegular EntryType = iota
	EntrySymlink
	EntryDirectory
	EntryBlockDevice
	EntryCharDevice
	EntryFifo
	EntrySocket
	EntryHardlink
)

func (t EntryType) String() string {
	switch t {
	case EntryRegular:
		return "regular"
	case EntrySymlink:
		return "symlink"
	case EntryDirectory:
		return "directory"
	case EntryBlockDevice:
		return "block-device"
	case EntryCharDevice:
		return "char-device"
	case EntryFifo:
		return "fifo"
	case EntrySocket:
		return "socket"
	case EntryHardlink:
		return "hardlink"
	default:
		return "unknown"
	}
}

// SparseRegion marks a contiguous run of non-hole bytes within a regular
// file, as detected by SEEK_DATA/SEEK_HOLE.
type SparseRegion struct {
	Offset uint64
	Length uint64
}

func (s SparseRegion) End() uint64 { return s.Offset + s.Length }

// Xattr is an extended attribute, reused from objhash so hashing and
// modeling share one type.
type Xattr = objhash.Xattr

// TreeEntry names one child of a directory. Which fields are meaningful
// depends on Type:
//
//	Regular:      Hash, Size, SparseMap (optional), UID, GID, Mode, Xattrs
//	Symlink:      Hash (of the target string), UID, GID
//	Directory:    Hash (of child Tree), UID, GID, Mode, Xattrs
//	Block/CharDevice: UID, GID, Mode, Xattrs, Major, Minor
//	Fifo/Socket:  UID, GID, Mode, Xattrs
//	Hardlink:     TargetPath (logical path of the first occurrence)
type TreeEntry struct {
	Name       string
	Type       EntryType
	Hash       objhash.Hash
	Size       uint64
	SparseMap  []SparseRegion
	UID        uint32
	GID        uint32
	Mode       uint32
	Xattrs     []Xattr
	Major      uint32
	Minor      uint32
	TargetPath string
}

// validateEntryName rejects names that cannot round-trip through a flat
// tree entry list: empty, containing '/', or the special "." / "..".
func validateEntryName(name string) error {
	if name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
		return rerr.InvalidEntryName(name)
	}
	return nil
}

// Tree is a sorted, deduplicated list of directory entries.
type Tree struct {
	Entries []TreeEntry
}

// NewTree validates and sorts entries into a canonical Tree.
func NewTree(entries []TreeEntry) (*Tree, error) {
	sorted := make([]TreeEntry, len(entries))
	copy(sorted, entries)
	for _, e := range sorted {
		if err := validateEntryName(e.Name); err != nil {
			return nil, err
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Name == sorted[i-1].Name {
			return nil, rerr.DuplicateEntryName(sorted[i].Name)
		}
	}
	return &Tree{Entries: sorted}, nil
}

// Get looks up an entry by name using binary search over the sorted slice.
func (t *Tree) Get(name string) (*TreeEntry, bool) {
	i := sort.Search(len(t.Entries), func(i int) bool { return t.Entries[i].Name >= name })
	if i < len(t.Entries) && t.Entries[i].Name == name {
		return &t.Entries[i], true
	}
	return nil, false
}

// Commit records a single snapshot: its root tree, zero or more parents
// (more than one for a union/merge commit), and free-form metadata.
type Commit struct {
	Tree      objhash.Hash
	Parents   []objhash.Hash
	Author    string
	Timestamp int64
	Message   string
	Metadata  map[string]string
}

func (c *Commit) IsRoot() bool  { return len(c.Parents) == 0 }
func (c *Commit) IsMerge() bool { return len(c.Parents) > 1 }
