// Package objhash implements rootcas's content-addressing hash: a
// domain-separated SHA-256 over a blob's inside-namespace ownership, mode,
// sorted xattrs and content, plus the plain SHA-256 used for the compressed
// tree/commit objects.
package objhash

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"sort"

	"github.com/javanhut/rootcas/internal/rerr"
)

// Hash is a SHA-256 content digest.
type Hash [32]byte

// Zero is the sentinel empty hash.
var Zero Hash

// SymlinkMode is the fixed mode recorded for symlink blobs so that hashing
// a symlink never depends on the filesystem's reported link mode.
const SymlinkMode uint32 = 0o120777

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	return h == Zero
}

// FromHex parses a 64-character hex string into a Hash.
func FromHex(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 32 {
		return h, rerr.InvalidHashHex(s)
	}
	copy(h[:], b)
	return h, nil
}

// PathComponents splits the hash's hex form into the object store's
// two-level directory layout: first 2 hex chars, remaining 62.
func (h Hash) PathComponents() (dir, file string) {
	hexStr := h.String()
	return hexStr[:2], hexStr[2:]
}

// Xattr is an extended attribute name/value pair, hashed in sorted order.
type Xattr struct {
	Name  string
	Value []byte
}

func sortedXattrs(xattrs []Xattr) []Xattr {
	sorted := make([]Xattr, len(xattrs))
	copy(sorted, xattrs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return sorted
}

func putU32(h hash.Hash, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	h.Write(buf[:])
}

func writeHeader(h hash.Hash, insideUID, insideGID, mode uint32, xattrs []Xattr) {
	putU32(h, insideUID)
	putU32(h, insideGID)
	putU32(h, mode)

	sorted := sortedXattrs(xattrs)
	putU32(h, uint32(len(sorted)))
	for _, x := range sorted {
		putU32(h, uint32(len(x.Name)))
		h.Write([]byte(x.Name))
		putU32(h, uint32(len(x.Value)))
		h.Write(x.Value)
	}
}

func sum(h hash.Hash) Hash {
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// ComputeBlobHash hashes (inside_uid, inside_gid, mode, sorted xattrs,
// content). uid/gid must be inside-namespace (logical) values, never
// on-disk values, so that a repo accessed under different UID/GID
// namespace mappings hashes identically.
func ComputeBlobHash(insideUID, insideGID, mode uint32, xattrs []Xattr, content []byte) Hash {
	h := sha256.New()
	writeHeader(h, insideUID, insideGID, mode, xattrs)
	h.Write(content)
	return sum(h)
}

// ComputeSymlinkHash hashes a symlink, treating its target as content and
// always using SymlinkMode regardless of the link's reported mode.
func ComputeSymlinkHash(insideUID, insideGID uint32, xattrs []Xattr, target string) Hash {
	return ComputeBlobHash(insideUID, insideGID, SymlinkMode, xattrs, []byte(target))
}

// ComputeCompressedHash hashes the compressed bytes of a tree or commit
// object, as opposed to the canonical-content hash used for blobs.
func ComputeCompressedHash(compressed []byte) Hash {
	return Hash(sha256.Sum256(compressed))
}

// BlobHasher streams content into a blob hash without buffering it,
// used by store.BlobWriter for streamed blob writes.
type BlobHasher struct {
	h hash.Hash
}

// NewBlobHasher starts a streaming blob hash, writing the fixed header and
// sorted xattrs immediately.
func NewBlobHasher(insideUID, insideGID, mode uint32, xattrs []Xattr) *BlobHasher {
	h := sha256.New()
	writeHeader(h, insideUID, insideGID, mode, xattrs)
	return &BlobHasher{h: h}
}

func (b *BlobHasher) Write(p []byte) (int, error) {
	return b.h.Write(p)
}

func (b *BlobHasher) Sum() Hash {
	return sum(b.h)
}
