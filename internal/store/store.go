// Package store implements rootcas's object store: content-addressed
// blobs written with full ownership/xattr/atomic-write semantics, and
// CBOR+zstd-encoded trees and commits addressed by the SHA-256 of their
// compressed bytes.
package store

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/javanhut/rootcas/internal/fsdev"
	"github.com/javanhut/rootcas/internal/model"
	"github.com/javanhut/rootcas/internal/nsmap"
	"github.com/javanhut/rootcas/internal/objhash"
	"github.com/javanhut/rootcas/internal/rerr"
)

// zstdLevel is fixed at 3 so compressed bytes — and therefore the
// compressed-bytes hash — are a pure function of tree/commit content.
const zstdLevel = zstd.SpeedDefault // klauspost's level 3 equivalent

// Store is the on-disk object store rooted at <repo>/objects, backed by
// <repo>/tmp for atomic writes.
type Store struct {
	objectsRoot string
	tmpRoot     string
	namespace   func() nsmap.Config
}

// New constructs a Store. namespace is called on every write to translate
// inside (logical) UID/GID to the outside (on-disk) values current for
// this repository.
func New(objectsRoot, tmpRoot string, namespace func() nsmap.Config) *Store {
	return &Store{objectsRoot: objectsRoot, tmpRoot: tmpRoot, namespace: namespace}
}

func (s *Store) kindDir(kind string) string {
	return filepath.Join(s.objectsRoot, kind)
}

func (s *Store) objectPath(kind string, h objhash.Hash) string {
	dir, file := h.PathComponents()
	return filepath.Join(s.kindDir(kind), dir, file)
}

// Has reports whether an object of the given kind exists.
func (s *Store) Has(kind string, h objhash.Hash) bool {
	_, err := os.Stat(s.objectPath(kind, h))
	return err == nil
}

const (
	KindBlob   = "blobs"
	KindTree   = "trees"
	KindCommit = "commits"
)

// BlobPath returns the on-disk path of a blob, for hardlink-based checkout.
func (s *Store) BlobPath(h objhash.Hash) string {
	return s.objectPath(KindBlob, h)
}

func (s *Store) tempFile() (*os.File, string, error) {
	if err := os.MkdirAll(s.tmpRoot, 0o755); err != nil {
		return nil, "", rerr.WithPath(err, s.tmpRoot)
	}
	name := uuid.NewString()
	path := filepath.Join(s.tmpRoot, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		return nil, "", rerr.WithPath(err, path)
	}
	return f, path, nil
}

// atomicInstall moves a completed temp file into its final object path:
// ensure parent dir, rename, fsync parent dir.
func (s *Store) atomicInstall(tmpPath, finalPath string) error {
	parent := filepath.Dir(finalPath)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		os.Remove(tmpPath)
		return rerr.WithPath(err, parent)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return rerr.WithPath(err, finalPath)
	}
	return fsdev.FsyncDir(parent)
}

// WriteBlob computes the blob hash over (inside uid/gid, mode, xattrs,
// content), and if no object with that hash exists yet, atomically writes
// it with translated (outside) ownership, mode and xattrs.
func (s *Store) WriteBlob(content []byte, insideUID, insideGID, mode uint32, xattrs []objhash.Xattr) (objhash.Hash, error) {
	h := objhash.ComputeBlobHash(insideUID, insideGID, mode, xattrs, content)
	if s.Has(KindBlob, h) {
		return h, nil
	}

	f, tmpPath, err := s.tempFile()
	if err != nil {
		return h, err
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return h, rerr.WithPath(err, tmpPath)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return h, rerr.WithPath(err, tmpPath)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return h, rerr.WithPath(err, tmpPath)
	}

	if err := os.Chmod(tmpPath, os.FileMode(mode&0o7777)); err != nil {
		os.Remove(tmpPath)
		return h, rerr.WithPath(err, tmpPath)
	}

	outsideUID, outsideGID := insideUID, insideGID
	if ns := s.namespace(); !ns.IsIdentity() {
		if u, ok := nsmap.InsideToOutside(insideUID, ns.UIDMap); ok {
			outsideUID = u
		} else {
			os.Remove(tmpPath)
			return h, rerr.UnmappedUID(insideUID)
		}
		if g, ok := nsmap.InsideToOutside(insideGID, ns.GIDMap); ok {
			outsideGID = g
		} else {
			os.Remove(tmpPath)
			return h, rerr.UnmappedGID(insideGID)
		}
	}
	if err := fsdev.Lchown(tmpPath, outsideUID, outsideGID); err != nil {
		os.Remove(tmpPath)
		return h, err
	}
	if err := fsdev.SetXattrs(tmpPath, xattrs); err != nil {
		os.Remove(tmpPath)
		return h, err
	}

	finalPath := s.objectPath(KindBlob, h)
	if err := s.atomicInstall(tmpPath, finalPath); err != nil {
		return h, err
	}
	return h, nil
}

// BlobWriter streams large regular file content into a blob without
// buffering the whole file in memory.
type BlobWriter struct {
	store  *Store
	file   *os.File
	tmp    string
	hasher *objhash.BlobHasher
	mode   uint32
	uid    uint32
	gid    uint32
	xattrs []objhash.Xattr
}

// NewBlobWriter opens a streaming blob writer.
func (s *Store) NewBlobWriter(insideUID, insideGID, mode uint32, xattrs []objhash.Xattr) (*BlobWriter, error) {
	f, tmp, err := s.tempFile()
	if err != nil {
		return nil, err
	}
	return &BlobWriter{
		store:  s,
		file:   f,
		tmp:    tmp,
		hasher: objhash.NewBlobHasher(insideUID, insideGID, mode, xattrs),
		mode:   mode,
		uid:    insideUID,
		gid:    insideGID,
		xattrs: xattrs,
	}, nil
}

func (w *BlobWriter) Write(p []byte) (int, error) {
	if _, err := w.hasher.Write(p); err != nil {
		return 0, err
	}
	return w.file.Write(p)
}

// Finish finalizes the hash, and if no object with that hash exists,
// installs the temp file atomically; otherwise discards it.
func (w *BlobWriter) Finish() (objhash.Hash, error) {
	h := w.hasher.Sum()

	if err := w.file.Sync(); err != nil {
		w.file.Close()
		os.Remove(w.tmp)
		return h, rerr.WithPath(err, w.tmp)
	}
	if err := w.file.Close(); err != nil {
		os.Remove(w.tmp)
		return h, rerr.WithPath(err, w.tmp)
	}

	if w.store.Has(KindBlob, h) {
		os.Remove(w.tmp)
		return h, nil
	}

	if err := os.Chmod(w.tmp, os.FileMode(w.mode&0o7777)); err != nil {
		os.Remove(w.tmp)
		return h, rerr.WithPath(err, w.tmp)
	}

	outsideUID, outsideGID := w.uid, w.gid
	if ns := w.store.namespace(); !ns.IsIdentity() {
		u, ok := nsmap.InsideToOutside(w.uid, ns.UIDMap)
		if !ok {
			os.Remove(w.tmp)
			return h, rerr.UnmappedUID(w.uid)
		}
		g, ok := nsmap.InsideToOutside(w.gid, ns.GIDMap)
		if !ok {
			os.Remove(w.tmp)
			return h, rerr.UnmappedGID(w.gid)
		}
		outsideUID, outsideGID = u, g
	}
	if err := fsdev.Lchown(w.tmp, outsideUID, outsideGID); err != nil {
		os.Remove(w.tmp)
		return h, err
	}
	if err := fsdev.SetXattrs(w.tmp, w.xattrs); err != nil {
		os.Remove(w.tmp)
		return h, err
	}

	finalPath := w.store.objectPath(KindBlob, h)
	if err := w.store.atomicInstall(w.tmp, finalPath); err != nil {
		return h, err
	}
	return h, nil
}

// ReadBlob reads the content of a blob by hash, without interpreting its
// ownership/mode (those are recorded in the owning TreeEntry and applied
// to the blob file itself by WriteBlob).
func (s *Store) ReadBlob(h objhash.Hash) ([]byte, error) {
	path := s.objectPath(KindBlob, h)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, rerr.ObjectNotFound(h.String())
		}
		return nil, rerr.WithPath(err, path)
	}
	return data, nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstdLevel))
	if err != nil {
		return nil, err
	}
	if _, err := enc.Write(data); err != nil {
		enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return io.ReadAll(dec)
}

func (s *Store) writeCompressedObject(kind string, encoded []byte) (objhash.Hash, error) {
	compressed, err := compress(encoded)
	if err != nil {
		return objhash.Zero, err
	}
	h := objhash.ComputeCompressedHash(compressed)
	if s.Has(kind, h) {
		return h, nil
	}

	f, tmp, err := s.tempFile()
	if err != nil {
		return h, err
	}
	if _, err := f.Write(compressed); err != nil {
		f.Close()
		os.Remove(tmp)
		return h, rerr.WithPath(err, tmp)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return h, rerr.WithPath(err, tmp)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return h, rerr.WithPath(err, tmp)
	}

	finalPath := s.objectPath(kind, h)
	if err := s.atomicInstall(tmp, finalPath); err != nil {
		return h, err
	}
	return h, nil
}

func (s *Store) readCompressedObject(kind string, h objhash.Hash) ([]byte, error) {
	path := s.objectPath(kind, h)
	compressed, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, rerr.ObjectNotFound(h.String())
		}
		return nil, rerr.WithPath(err, path)
	}
	if objhash.ComputeCompressedHash(compressed) != h {
		return nil, rerr.CorruptObject(h.String())
	}
	return decompress(compressed)
}

// WriteTree encodes t as CBOR, zstd-compresses it, and stores it addressed
// by the SHA-256 of the compressed bytes.
func (s *Store) WriteTree(t *model.Tree) (objhash.Hash, error) {
	return s.writeCompressedObject(KindTree, model.EncodeTree(t))
}

// ReadTree reads and decodes a tree by hash, verifying the compressed
// bytes' hash before decompressing.
func (s *Store) ReadTree(h objhash.Hash) (*model.Tree, error) {
	raw, err := s.readCompressedObject(KindTree, h)
	if err != nil {
		return nil, err
	}
	return model.DecodeTree(raw)
}

// WriteCommit encodes c as CBOR, zstd-compresses it, and stores it
// addressed by the SHA-256 of the compressed bytes.
func (s *Store) WriteCommit(c *model.Commit) (objhash.Hash, error) {
	return s.writeCompressedObject(KindCommit, model.EncodeCommit(c))
}

// ReadCommit reads and decodes a commit by hash.
func (s *Store) ReadCommit(h objhash.Hash) (*model.Commit, error) {
	raw, err := s.readCompressedObject(KindCommit, h)
	if err != nil {
		return nil, err
	}
	return model.DecodeCommit(raw)
}

// WalkKind calls fn with every object hash stored under kind.
func (s *Store) WalkKind(kind string, fn func(objhash.Hash) error) error {
	root := s.kindDir(kind)
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return rerr.WithPath(err, root)
	}
	for _, dirEntry := range entries {
		if !dirEntry.IsDir() {
			continue
		}
		subdir := filepath.Join(root, dirEntry.Name())
		files, err := os.ReadDir(subdir)
		if err != nil {
			return rerr.WithPath(err, subdir)
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			h, err := objhash.FromHex(dirEntry.Name() + f.Name())
			if err != nil {
				continue
			}
			if err := fn(h); err != nil {
				return err
			}
		}
	}
	return nil
}

// RemoveObject deletes an object of the given kind by hash, used by gc.
func (s *Store) RemoveObject(kind string, h objhash.Hash) error {
	path := s.objectPath(kind, h)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return rerr.WithPath(err, path)
	}
	return nil
}

// Size reports the on-disk size of an object, used for gc byte accounting.
func (s *Store) Size(kind string, h objhash.Hash) (int64, error) {
	st, err := os.Stat(s.objectPath(kind, h))
	if err != nil {
		return 0, rerr.WithPath(err, s.objectPath(kind, h))
	}
	return st.Size(), nil
}
