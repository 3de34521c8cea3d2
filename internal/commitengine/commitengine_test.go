package commitengine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/javanhut/rootcas/internal/model"
	"github.com/javanhut/rootcas/internal/repo"
)

func testRepo(t *testing.T) *repo.Repo {
	t.Helper()
	dir := t.TempDir()
	r, err := repo.Init(filepath.Join(dir, "repo"))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return r
}

func TestCommitSingleFile(t *testing.T) {
	dir := t.TempDir()
	r, err := repo.Init(filepath.Join(dir, "repo"))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	source := filepath.Join(dir, "source")
	if err := os.Mkdir(source, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(source, "hello.txt"), []byte("world"), 0o644); err != nil {
		t.Fatal(err)
	}

	hash, err := Commit(r, source, "test/ref", Options{Message: "test commit"})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	resolved, err := r.Heads.Read("test/ref")
	if err != nil {
		t.Fatalf("Read ref: %v", err)
	}
	if resolved != hash {
		t.Fatalf("ref = %s, want %s", resolved, hash)
	}

	commitObj, err := r.Store.ReadCommit(hash)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	tree, err := r.Store.ReadTree(commitObj.Tree)
	if err != nil {
		t.Fatalf("ReadTree: %v", err)
	}
	if len(tree.Entries) != 1 {
		t.Fatalf("len(tree.Entries) = %d, want 1", len(tree.Entries))
	}
	if _, ok := tree.Get("hello.txt"); !ok {
		t.Fatal("expected hello.txt entry")
	}
}

func TestCommitNestedDirectories(t *testing.T) {
	dir := t.TempDir()
	r, err := repo.Init(filepath.Join(dir, "repo"))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	source := filepath.Join(dir, "source")
	if err := os.MkdirAll(filepath.Join(source, "a", "b", "c"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(source, "a", "b", "c", "file.txt"), []byte("deep"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(source, "top.txt"), []byte("top"), 0o644); err != nil {
		t.Fatal(err)
	}

	hash, err := Commit(r, source, "nested", Options{})
	if err != nil {
		t.Fatalf("Commit: %v", err)
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

	aEntry, ok := tree.Get("a")
	if !ok || aEntry.Type != model.EntryDirectory {
		t.Fatal("expected directory entry 'a'")
	}
	subtree, err := r.Store.ReadTree(aEntry.Hash)
	if err != nil {
		t.Fatalf("ReadTree(a): %v", err)
	}
	if _, ok := subtree.Get("b"); !ok {
		t.Fatal("expected nested entry 'b'")
	}
}

func TestCommitSymlink(t *testing.T) {
	dir := t.TempDir()
	r, err := repo.Init(filepath.Join(dir, "repo"))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	source := filepath.Join(dir, "source")
	if err := os.Mkdir(source, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("/target/path", filepath.Join(source, "link")); err != nil {
		t.Fatal(err)
	}

	hash, err := Commit(r, source, "symlink-test", Options{})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	commitObj, _ := r.Store.ReadCommit(hash)
	tree, _ := r.Store.ReadTree(commitObj.Tree)
	entry, ok := tree.Get("link")
	if !ok || entry.Type != model.EntrySymlink {
		t.Fatal("expected symlink entry")
	}
}

func TestCommitHardlinks(t *testing.T) {
	dir := t.TempDir()
	r, err := repo.Init(filepath.Join(dir, "repo"))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	source := filepath.Join(dir, "source")
	if err := os.Mkdir(source, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(source, "original"), []byte("content"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Link(filepath.Join(source, "original"), filepath.Join(source, "link")); err != nil {
		t.Fatal(err)
	}

	hash, err := Commit(r, source, "hardlink-test", Options{})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	commitObj, _ := r.Store.ReadCommit(hash)
	tree, _ := r.Store.ReadTree(commitObj.Tree)

	var foundRegular, foundHardlink bool
	for _, e := range tree.Entries {
		switch e.Type {
		case model.EntryRegular:
			foundRegular = true
		case model.EntryHardlink:
			foundHardlink = true
		}
	}
	if !foundRegular || !foundHardlink {
		t.Fatalf("expected one regular and one hardlink entry, got regular=%v hardlink=%v", foundRegular, foundHardlink)
	}
}

func TestCommitUpdatesParent(t *testing.T) {
	dir := t.TempDir()
	r, err := repo.Init(filepath.Join(dir, "repo"))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	source := filepath.Join(dir, "source")
	if err := os.Mkdir(source, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(source, "file.txt"), []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	hash1, err := Commit(r, source, "versioned", Options{Message: "v1"})
	if err != nil {
		t.Fatalf("Commit v1: %v", err)
	}

	if err := os.WriteFile(filepath.Join(source, "file.txt"), []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}
	hash2, err := Commit(r, source, "versioned", Options{Message: "v2"})
	if err != nil {
		t.Fatalf("Commit v2: %v", err)
	}

	commit2, err := r.Store.ReadCommit(hash2)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if len(commit2.Parents) != 1 || commit2.Parents[0] != hash1 {
		t.Fatalf("commit2.Parents = %v, want [%s]", commit2.Parents, hash1)
	}
}

func TestCommitEmptyDirectory(t *testing.T) {
	r := testRepo(t)
	dir := t.TempDir()
	source := filepath.Join(dir, "source")
	if err := os.Mkdir(source, 0o755); err != nil {
		t.Fatal(err)
	}

	hash, err := Commit(r, source, "empty", Options{})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	commitObj, _ := r.Store.ReadCommit(hash)
	tree, _ := r.Store.ReadTree(commitObj.Tree)
	if len(tree.Entries) != 0 {
		t.Fatalf("expected empty tree, got %d entries", len(tree.Entries))
	}
}
