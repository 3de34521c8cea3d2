package fsdev

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestLstatRegularFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(path, []byte("content"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	meta, err := Lstat(path)
	if err != nil {
		t.Fatalf("Lstat: %v", err)
	}
	if meta.Type != FileRegular {
		t.Fatalf("Type = %v, want FileRegular", meta.Type)
	}
	if meta.Mode&0o777 != 0o644 {
		t.Fatalf("Mode = %o, want 0644", meta.Mode)
	}
}

func TestLstatDirectory(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "subdir")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	meta, err := Lstat(sub)
	if err != nil {
		t.Fatalf("Lstat: %v", err)
	}
	if meta.Type != FileDirectory {
		t.Fatalf("Type = %v, want FileDirectory", meta.Type)
	}
}

func TestCreateSymlinkAndReadTarget(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(dir, "link")
	uid, gid := os.Geteuid(), os.Getegid()

	if err := CreateSymlink(link, "/some/target/path", uint32(uid), uint32(gid)); err != nil {
		t.Fatalf("CreateSymlink: %v", err)
	}
	target, err := ReadSymlinkTarget(link)
	if err != nil {
		t.Fatalf("ReadSymlinkTarget: %v", err)
	}
	if target != "/some/target/path" {
		t.Fatalf("target = %q", target)
	}
	meta, err := Lstat(link)
	if err != nil {
		t.Fatalf("Lstat: %v", err)
	}
	if meta.Type != FileSymlink {
		t.Fatalf("Type = %v, want FileSymlink", meta.Type)
	}
}

func TestCreateFifo(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fifo")
	uid, gid := os.Geteuid(), os.Getegid()

	if err := CreateFifo(path, uint32(uid), uint32(gid), 0o644, nil); err != nil {
		t.Fatalf("CreateFifo: %v", err)
	}
	meta, err := Lstat(path)
	if err != nil {
		t.Fatalf("Lstat: %v", err)
	}
	if meta.Type != FileFifo {
		t.Fatalf("Type = %v, want FileFifo", meta.Type)
	}
}

func TestCreateHardlink(t *testing.T) {
	dir := t.TempDir()
	original := filepath.Join(dir, "original")
	link := filepath.Join(dir, "link")
	if err := os.WriteFile(original, []byte("content"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := CreateHardlink(link, original); err != nil {
		t.Fatalf("CreateHardlink: %v", err)
	}
	origMeta, _ := Lstat(original)
	linkMeta, _ := Lstat(link)
	if origMeta.Ino != linkMeta.Ino || origMeta.Dev != linkMeta.Dev {
		t.Fatalf("hardlink inode mismatch: %+v vs %+v", origMeta, linkMeta)
	}
	if !linkMeta.CouldBeHardlink() {
		t.Fatal("expected nlink > 1 after hardlinking")
	}
}

func TestApplyMetadataMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file")
	if err := os.WriteFile(path, []byte("content"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	uid, gid := os.Geteuid(), os.Getegid()
	if err := ApplyMetadata(path, uint32(uid), uint32(gid), 0o600, nil); err != nil {
		t.Fatalf("ApplyMetadata: %v", err)
	}
	meta, err := Lstat(path)
	if err != nil {
		t.Fatalf("Lstat: %v", err)
	}
	if meta.Mode&0o777 != 0o600 {
		t.Fatalf("Mode = %o, want 0600", meta.Mode)
	}
}

func TestNonSparseFileHasNoHoles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dense.bin")
	data := bytes.Repeat([]byte{0xAB}, 4096)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	regions, ok, err := DetectSparseRegions(f)
	if err != nil {
		t.Fatalf("DetectSparseRegions: %v", err)
	}
	if !ok {
		t.Skip("filesystem does not support SEEK_DATA/SEEK_HOLE")
	}
	if len(regions) != 1 || regions[0].Offset != 0 || regions[0].Length != uint64(len(data)) {
		t.Fatalf("unexpected regions for dense file: %+v", regions)
	}
}

func TestEmptyFileHasNoRegions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.bin")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	regions, ok, err := DetectSparseRegions(f)
	if err != nil {
		t.Fatalf("DetectSparseRegions: %v", err)
	}
	if !ok {
		t.Skip("filesystem does not support SEEK_DATA/SEEK_HOLE")
	}
	if len(regions) != 0 {
		t.Fatalf("expected no regions for empty file, got %+v", regions)
	}
}
