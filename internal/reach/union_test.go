package reach

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/javanhut/rootcas/internal/commitengine"
	"github.com/javanhut/rootcas/internal/model"
	"github.com/javanhut/rootcas/internal/rerr"
)

func TestUnionNoOverlap(t *testing.T) {
	r, dir := newTestRepo(t)

	source1 := filepath.Join(dir, "source1")
	os.Mkdir(source1, 0o755)
	writeFile(t, filepath.Join(source1, "file1.txt"), "content1")
	if _, err := commitengine.Commit(r, source1, "ref1", commitengine.Options{}); err != nil {
		t.Fatalf("Commit ref1: %v", err)
	}

	source2 := filepath.Join(dir, "source2")
	os.Mkdir(source2, 0o755)
	writeFile(t, filepath.Join(source2, "file2.txt"), "content2")
	if _, err := commitengine.Commit(r, source2, "ref2", commitengine.Options{}); err != nil {
		t.Fatalf("Commit ref2: %v", err)
	}

	hash, err := Union(r, []string{"ref1", "ref2"}, "merged", UnionOptions{})
	if err != nil {
		t.Fatalf("Union: %v", err)
	}

	commitObj, err := r.Store.ReadCommit(hash)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	tree, err := r.Store.ReadTree(commitObj.Tree)
	if err != nil {
		t.Fatalf("ReadTree: %v", err)
	}
	if len(tree.Entries) != 2 {
		t.Fatalf("len(tree.Entries) = %d, want 2", len(tree.Entries))
	}
	if _, ok := tree.Get("file1.txt"); !ok {
		t.Fatal("expected file1.txt")
	}
	if _, ok := tree.Get("file2.txt"); !ok {
		t.Fatal("expected file2.txt")
	}
	if len(commitObj.Parents) != 2 {
		t.Fatalf("len(Parents) = %d, want 2", len(commitObj.Parents))
	}
}

func TestUnionDirectoryMerge(t *testing.T) {
	r, dir := newTestRepo(t)

	source1 := filepath.Join(dir, "source1")
	os.MkdirAll(filepath.Join(source1, "dir"), 0o755)
	writeFile(t, filepath.Join(source1, "dir", "a.txt"), "a")
	if _, err := commitengine.Commit(r, source1, "ref1", commitengine.Options{}); err != nil {
		t.Fatalf("Commit ref1: %v", err)
	}

	source2 := filepath.Join(dir, "source2")
	os.MkdirAll(filepath.Join(source2, "dir"), 0o755)
	writeFile(t, filepath.Join(source2, "dir", "b.txt"), "b")
	if _, err := commitengine.Commit(r, source2, "ref2", commitengine.Options{}); err != nil {
		t.Fatalf("Commit ref2: %v", err)
	}

	hash, err := Union(r, []string{"ref1", "ref2"}, "merged", UnionOptions{})
	if err != nil {
		t.Fatalf("Union: %v", err)
	}

	commitObj, _ := r.Store.ReadCommit(hash)
	tree, _ := r.Store.ReadTree(commitObj.Tree)
	if len(tree.Entries) != 1 {
		t.Fatalf("len(tree.Entries) = %d, want 1", len(tree.Entries))
	}
	dirEntry, ok := tree.Get("dir")
	if !ok || dirEntry.Type != model.EntryDirectory {
		t.Fatal("expected dir directory entry")
	}
	subtree, err := r.Store.ReadTree(dirEntry.Hash)
	if err != nil {
		t.Fatalf("ReadTree subtree: %v", err)
	}
	if len(subtree.Entries) != 2 {
		t.Fatalf("len(subtree.Entries) = %d, want 2", len(subtree.Entries))
	}
	if _, ok := subtree.Get("a.txt"); !ok {
		t.Fatal("expected a.txt")
	}
	if _, ok := subtree.Get("b.txt"); !ok {
		t.Fatal("expected b.txt")
	}
}

func TestUnionFileConflictError(t *testing.T) {
	r, dir := newTestRepo(t)

	source1 := filepath.Join(dir, "source1")
	os.Mkdir(source1, 0o755)
	writeFile(t, filepath.Join(source1, "conflict.txt"), "version1")
	if _, err := commitengine.Commit(r, source1, "ref1", commitengine.Options{}); err != nil {
		t.Fatalf("Commit ref1: %v", err)
	}

	source2 := filepath.Join(dir, "source2")
	os.Mkdir(source2, 0o755)
	writeFile(t, filepath.Join(source2, "conflict.txt"), "version2")
	if _, err := commitengine.Commit(r, source2, "ref2", commitengine.Options{}); err != nil {
		t.Fatalf("Commit ref2: %v", err)
	}

	_, err := Union(r, []string{"ref1", "ref2"}, "merged", UnionOptions{})
	if !errors.Is(err, rerr.ErrUnionConflict) {
		t.Fatalf("err = %v, want ErrUnionConflict", err)
	}
}

func TestUnionFileConflictLast(t *testing.T) {
	r, dir := newTestRepo(t)

	source1 := filepath.Join(dir, "source1")
	os.Mkdir(source1, 0o755)
	writeFile(t, filepath.Join(source1, "conflict.txt"), "version1")
	if _, err := commitengine.Commit(r, source1, "ref1", commitengine.Options{}); err != nil {
		t.Fatalf("Commit ref1: %v", err)
	}

	source2 := filepath.Join(dir, "source2")
	os.Mkdir(source2, 0o755)
	writeFile(t, filepath.Join(source2, "conflict.txt"), "version2")
	if _, err := commitengine.Commit(r, source2, "ref2", commitengine.Options{}); err != nil {
		t.Fatalf("Commit ref2: %v", err)
	}

	hash, err := Union(r, []string{"ref1", "ref2"}, "merged", UnionOptions{OnConflict: ConflictLast})
	if err != nil {
		t.Fatalf("Union: %v", err)
	}
	commitObj, _ := r.Store.ReadCommit(hash)
	tree, _ := r.Store.ReadTree(commitObj.Tree)
	if _, ok := tree.Get("conflict.txt"); !ok {
		t.Fatal("expected conflict.txt")
	}
}

func TestUnionTypeConflict(t *testing.T) {
	r, dir := newTestRepo(t)

	source1 := filepath.Join(dir, "source1")
	os.Mkdir(source1, 0o755)
	writeFile(t, filepath.Join(source1, "name"), "file content")
	if _, err := commitengine.Commit(r, source1, "ref1", commitengine.Options{}); err != nil {
		t.Fatalf("Commit ref1: %v", err)
	}

	source2 := filepath.Join(dir, "source2")
	os.MkdirAll(filepath.Join(source2, "name"), 0o755)
	writeFile(t, filepath.Join(source2, "name", "inside.txt"), "inside")
	if _, err := commitengine.Commit(r, source2, "ref2", commitengine.Options{}); err != nil {
		t.Fatalf("Commit ref2: %v", err)
	}

	_, err := Union(r, []string{"ref1", "ref2"}, "merged", UnionOptions{OnConflict: ConflictLast})
	if !errors.Is(err, rerr.ErrUnionTypeConflict) {
		t.Fatalf("err = %v, want ErrUnionTypeConflict", err)
	}
}

func TestUnionThreeWay(t *testing.T) {
	r, dir := newTestRepo(t)

	refNames := []string{"ref1", "ref2", "ref3"}
	for i, name := range refNames {
		source := filepath.Join(dir, "source"+string(rune('0'+i)))
		fileName := "file" + string(rune('0'+i)) + ".txt"
		writeFile(t, filepath.Join(source, fileName), "content")
		if _, err := commitengine.Commit(r, source, name, commitengine.Options{}); err != nil {
			t.Fatalf("Commit %s: %v", name, err)
		}
	}

	hash, err := Union(r, refNames, "merged", UnionOptions{})
	if err != nil {
		t.Fatalf("Union: %v", err)
	}
	commitObj, _ := r.Store.ReadCommit(hash)
	tree, _ := r.Store.ReadTree(commitObj.Tree)
	if len(tree.Entries) != 3 {
		t.Fatalf("len(tree.Entries) = %d, want 3", len(tree.Entries))
	}
	if len(commitObj.Parents) != 3 {
		t.Fatalf("len(Parents) = %d, want 3", len(commitObj.Parents))
	}
}
