package model

import (
	"sort"

	"github.com/javanhut/rootcas/internal/cbor"
	"github.com/javanhut/rootcas/internal/objhash"
)

// EncodeTree serializes a Tree as a canonical CBOR array of entries. Entry
// order is already canonical (Tree.Entries is sorted), and each entry is
// itself a fixed-position array so no map-key canonicalization is needed.
func EncodeTree(t *Tree) []byte {
	w := cbor.NewWriter()
	w.WriteArrayHeader(len(t.Entries))
	for _, e := range t.Entries {
		encodeEntry(w, e)
	}
	return w.Bytes()
}

func encodeEntry(w *cbor.Writer, e TreeEntry) {
	// [name, type, hash, size, sparse_map, uid, gid, mode, xattrs, major, minor, target_path]
	w.WriteArrayHeader(12)
	w.WriteText(e.Name)
	w.WriteUint(uint64(e.Type))

	switch e.Type {
	case EntryRegular, EntrySymlink, EntryDirectory:
		w.WriteBytes(e.Hash[:])
	default:
		w.WriteNull()
	}

	if e.Type == EntryRegular {
		w.WriteUint(e.Size)
	} else {
		w.WriteNull()
	}

	if e.Type == EntryRegular && len(e.SparseMap) > 0 {
		w.WriteArrayHeader(len(e.SparseMap))
		for _, r := range e.SparseMap {
			w.WriteArrayHeader(2)
			w.WriteUint(r.Offset)
			w.WriteUint(r.Length)
		}
	} else {
		w.WriteNull()
	}

	switch e.Type {
	case EntryRegular, EntryDirectory, EntryBlockDevice, EntryCharDevice, EntryFifo, EntrySocket, EntrySymlink:
		w.WriteUint(uint64(e.UID))
		w.WriteUint(uint64(e.GID))
	default:
		w.WriteNull()
		w.WriteNull()
	}

	switch e.Type {
	case EntryRegular, EntryDirectory, EntryBlockDevice, EntryCharDevice, EntryFifo, EntrySocket:
		w.WriteUint(uint64(e.Mode))
	default:
		w.WriteNull()
	}

	switch e.Type {
	case EntryRegular, EntryDirectory, EntryBlockDevice, EntryCharDevice, EntryFifo, EntrySocket:
		sorted := make([]Xattr, len(e.Xattrs))
		copy(sorted, e.Xattrs)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
		w.WriteArrayHeader(len(sorted))
		for _, x := range sorted {
			w.WriteArrayHeader(2)
			w.WriteText(x.Name)
			w.WriteBytes(x.Value)
		}
	default:
		w.WriteNull()
	}

	if e.Type == EntryBlockDevice || e.Type == EntryCharDevice {
		w.WriteUint(uint64(e.Major))
		w.WriteUint(uint64(e.Minor))
	} else {
		w.WriteNull()
		w.WriteNull()
	}

	if e.Type == EntryHardlink {
		w.WriteText(e.TargetPath)
	} else {
		w.WriteNull()
	}
}

// DecodeTree parses a CBOR-encoded Tree. The result is not re-validated:
// callers that need validation should run entries back through NewTree.
func DecodeTree(data []byte) (*Tree, error) {
	r := cbor.NewReader(data)
	n, err := r.ReadArrayHeader()
	if err != nil {
		return nil, err
	}
	entries := make([]TreeEntry, 0, n)
	for i := 0; i < n; i++ {
		e, err := decodeEntry(r)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return &Tree{Entries: entries}, nil
}

func decodeEntry(r *cbor.Reader) (TreeEntry, error) {
	var e TreeEntry
	if _, err := r.ReadArrayHeader(); err != nil {
		return e, err
	}

	name, err := r.ReadText()
	if err != nil {
		return e, err
	}
	e.Name = name

	typ, err := r.ReadUint()
	if err != nil {
		return e, err
	}
	e.Type = EntryType(typ)

	if !r.PeekIsNull() {
		h, err := r.ReadBytes()
		if err != nil {
			return e, err
		}
		copy(e.Hash[:], h)
	}

	if !r.PeekIsNull() {
		size, err := r.ReadUint()
		if err != nil {
			return e, err
		}
		e.Size = size
	}

	if !r.PeekIsNull() {
		n, err := r.ReadArrayHeader()
		if err != nil {
			return e, err
		}
		e.SparseMap = make([]SparseRegion, 0, n)
		for i := 0; i < n; i++ {
			if _, err := r.ReadArrayHeader(); err != nil {
				return e, err
			}
			off, err := r.ReadUint()
			if err != nil {
				return e, err
			}
			length, err := r.ReadUint()
			if err != nil {
				return e, err
			}
			e.SparseMap = append(e.SparseMap, SparseRegion{Offset: off, Length: length})
		}
	}

	if !r.PeekIsNull() {
		uid, err := r.ReadUint()
		if err != nil {
			return e, err
		}
		e.UID = uint32(uid)
	}
	if !r.PeekIsNull() {
		gid, err := r.ReadUint()
		if err != nil {
			return e, err
		}
		e.GID = uint32(gid)
	}

	if !r.PeekIsNull() {
		mode, err := r.ReadUint()
		if err != nil {
			return e, err
		}
		e.Mode = uint32(mode)
	}

	if !r.PeekIsNull() {
		n, err := r.ReadArrayHeader()
		if err != nil {
			return e, err
		}
		if n > 0 {
			e.Xattrs = make([]Xattr, 0, n)
		}
		for i := 0; i < n; i++ {
			if _, err := r.ReadArrayHeader(); err != nil {
				return e, err
			}
			xname, err := r.ReadText()
			if err != nil {
				return e, err
			}
			xval, err := r.ReadBytes()
			if err != nil {
				return e, err
			}
			e.Xattrs = append(e.Xattrs, Xattr{Name: xname, Value: xval})
		}
	}

	if !r.PeekIsNull() {
		major, err := r.ReadUint()
		if err != nil {
			return e, err
		}
		e.Major = uint32(major)
	}
	if !r.PeekIsNull() {
		minor, err := r.ReadUint()
		if err != nil {
			return e, err
		}
		e.Minor = uint32(minor)
	}

	if !r.PeekIsNull() {
		target, err := r.ReadText()
		if err != nil {
			return e, err
		}
		e.TargetPath = target
	}

	return e, nil
}

// EncodeCommit serializes a Commit as a canonical CBOR array:
// [tree, parents, author, timestamp, message, metadata].
func EncodeCommit(c *Commit) []byte {
	w := cbor.NewWriter()
	w.WriteArrayHeader(6)
	w.WriteBytes(c.Tree[:])

	w.WriteArrayHeader(len(c.Parents))
	for _, p := range c.Parents {
		w.WriteBytes(p[:])
	}

	w.WriteText(c.Author)
	w.WriteInt(c.Timestamp)
	w.WriteText(c.Message)

	keys := make([]string, 0, len(c.Metadata))
	for k := range c.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	w.WriteArrayHeader(len(keys))
	for _, k := range keys {
		w.WriteArrayHeader(2)
		w.WriteText(k)
		w.WriteText(c.Metadata[k])
	}

	return w.Bytes()
}

// DecodeCommit parses a CBOR-encoded Commit.
func DecodeCommit(data []byte) (*Commit, error) {
	r := cbor.NewReader(data)
	if _, err := r.ReadArrayHeader(); err != nil {
		return nil, err
	}

	treeBytes, err := r.ReadBytes()
	if err != nil {
		return nil, err
	}
	var c Commit
	copy(c.Tree[:], treeBytes)

	n, err := r.ReadArrayHeader()
	if err != nil {
		return nil, err
	}
	c.Parents = make([]objhash.Hash, 0, n)
	for i := 0; i < n; i++ {
		pb, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		var p objhash.Hash
		copy(p[:], pb)
		c.Parents = append(c.Parents, p)
	}

	c.Author, err = r.ReadText()
	if err != nil {
		return nil, err
	}
	c.Timestamp, err = r.ReadInt()
	if err != nil {
		return nil, err
	}
	c.Message, err = r.ReadText()
	if err != nil {
		return nil, err
	}

	mn, err := r.ReadArrayHeader()
	if err != nil {
		return nil, err
	}
	if mn > 0 {
		c.Metadata = make(map[string]string, mn)
		for i := 0; i < mn; i++ {
			if _, err := r.ReadArrayHeader(); err != nil {
				return nil, err
			}
			k, err := r.ReadText()
			if err != nil {
				return nil, err
			}
			v, err := r.ReadText()
			if err != nil {
				return nil, err
			}
			c.Metadata[k] = v
		}
	}

	return &c, nil
}
