package model

import (
	"reflect"
	"testing"

	"github.com/javanhut/rootcas/internal/objhash"
)

func TestTreeSortingAndDedup(t *testing.T) {
	tr, err := NewTree([]TreeEntry{
		{Name: "b.txt", Type: EntryRegular},
		{Name: "a.txt", Type: EntryRegular},
	})
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}
	if tr.Entries[0].Name != "a.txt" || tr.Entries[1].Name != "b.txt" {
		t.Fatalf("entries not sorted: %+v", tr.Entries)
	}
}

func TestTreeRejectsDuplicateNames(t *testing.T) {
	_, err := NewTree([]TreeEntry{
		{Name: "x", Type: EntryRegular},
		{Name: "x", Type: EntryDirectory},
	})
	if err == nil {
		t.Fatal("expected duplicate name error")
	}
}

func TestTreeRejectsSlashInName(t *testing.T) {
	_, err := NewTree([]TreeEntry{{Name: "a/b", Type: EntryRegular}})
	if err == nil {
		t.Fatal("expected invalid entry name error")
	}
}

func TestTreeGet(t *testing.T) {
	tr, err := NewTree([]TreeEntry{
		{Name: "c", Type: EntryRegular},
		{Name: "a", Type: EntryRegular},
		{Name: "b", Type: EntryRegular},
	})
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}
	if _, ok := tr.Get("b"); !ok {
		t.Fatal("expected to find entry b")
	}
	if _, ok := tr.Get("missing"); ok {
		t.Fatal("did not expect to find missing entry")
	}
}

func TestTreeCBORRoundtrip(t *testing.T) {
	h := objhash.ComputeBlobHash(0, 0, 0o644, nil, []byte("hello"))
	tr, err := NewTree([]TreeEntry{
		{
			Name: "file.txt", Type: EntryRegular, Hash: h, Size: 5,
			UID: 1000, GID: 1000, Mode: 0o644,
			Xattrs: []Xattr{{Name: "user.a", Value: []byte("v")}},
		},
		{
			Name: "link", Type: EntrySymlink, Hash: objhash.ComputeSymlinkHash(0, 0, nil, "/target"),
			UID: 0, GID: 0,
		},
		{
			Name: "dev", Type: EntryBlockDevice, UID: 0, GID: 0, Mode: 0o660, Major: 8, Minor: 1,
		},
		{
			Name: "hl", Type: EntryHardlink, TargetPath: "file.txt",
		},
	})
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}

	encoded := EncodeTree(tr)
	decoded, err := DecodeTree(encoded)
	if err != nil {
		t.Fatalf("DecodeTree: %v", err)
	}
	if !reflect.DeepEqual(tr.Entries, decoded.Entries) {
		t.Fatalf("roundtrip mismatch:\n got  %+v\n want %+v", decoded.Entries, tr.Entries)
	}
}

func TestTreeCBORDeterminism(t *testing.T) {
	tr, _ := NewTree([]TreeEntry{{Name: "a", Type: EntryRegular}})
	if string(EncodeTree(tr)) != string(EncodeTree(tr)) {
		t.Fatal("encoding the same tree twice produced different bytes")
	}
}

func TestSparseEntryRoundtrip(t *testing.T) {
	tr, err := NewTree([]TreeEntry{
		{
			Name: "sparse.bin", Type: EntryRegular, Size: 4096,
			SparseMap: []SparseRegion{{Offset: 0, Length: 10}, {Offset: 4000, Length: 96}},
		},
	})
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}
	decoded, err := DecodeTree(EncodeTree(tr))
	if err != nil {
		t.Fatalf("DecodeTree: %v", err)
	}
	if !reflect.DeepEqual(tr.Entries[0].SparseMap, decoded.Entries[0].SparseMap) {
		t.Fatalf("sparse map mismatch: %+v vs %+v", tr.Entries[0].SparseMap, decoded.Entries[0].SparseMap)
	}
}

func TestCommitCBORDeterminismRegardlessOfMetadataInsertionOrder(t *testing.T) {
	c1 := &Commit{
		Tree: objhash.ComputeBlobHash(0, 0, 0, nil, nil),
		Author: "a", Timestamp: 100, Message: "m",
		Metadata: map[string]string{"z": "1", "a": "2"},
	}
	c2 := &Commit{
		Tree: c1.Tree,
		Author: "a", Timestamp: 100, Message: "m",
		Metadata: map[string]string{"a": "2", "z": "1"},
	}
	if string(EncodeCommit(c1)) != string(EncodeCommit(c2)) {
		t.Fatal("metadata insertion order affected encoding")
	}
}

func TestCommitCBORRoundtrip(t *testing.T) {
	c := &Commit{
		Tree:      objhash.ComputeBlobHash(1, 1, 1, nil, []byte("t")),
		Parents:   []objhash.Hash{objhash.ComputeBlobHash(2, 2, 2, nil, []byte("p"))},
		Author:    "root",
		Timestamp: -1,
		Message:   "first commit",
		Metadata:  map[string]string{"hostname": "build-01"},
	}
	decoded, err := DecodeCommit(EncodeCommit(c))
	if err != nil {
		t.Fatalf("DecodeCommit: %v", err)
	}
	if decoded.Tree != c.Tree || decoded.Author != c.Author || decoded.Timestamp != c.Timestamp || decoded.Message != c.Message {
		t.Fatalf("roundtrip mismatch: %+v", decoded)
	}
	if decoded.Metadata["hostname"] != "build-01" {
		t.Fatalf("metadata mismatch: %+v", decoded.Metadata)
	}
	if !reflect.DeepEqual(decoded.Parents, c.Parents) {
		t.Fatalf("parents mismatch: %+v vs %+v", decoded.Parents, c.Parents)
	}
}

func TestCommitRootAndMerge(t *testing.T) {
	root := &Commit{}
	if !root.IsRoot() || root.IsMerge() {
		t.Fatal("empty-parent commit should be root and not merge")
	}
	merge := &Commit{Parents: []objhash.Hash{{1}, {2}}}
	if merge.IsRoot() || !merge.IsMerge() {
		t.Fatal("two-parent commit should be merge and not root")
	}
}
