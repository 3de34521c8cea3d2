package objhash

import "testing"

func TestHashHexRoundtrip(t *testing.T) {
	original, err := FromHex("abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789"[:64])
	if err != nil {
		t.Fatalf("FromHex: %v", err)
	}
	parsed, err := FromHex(original.String())
	if err != nil {
		t.Fatalf("FromHex roundtrip: %v", err)
	}
	if parsed != original {
		t.Fatalf("roundtrip mismatch: %s != %s", parsed, original)
	}
}

func TestHashInvalidHex(t *testing.T) {
	cases := []string{
		"not valid hex",
		"abcd",
		"abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789ff",
	}
	for _, c := range cases {
		if _, err := FromHex(c); err == nil {
			t.Errorf("FromHex(%q) expected error", c)
		}
	}
}

func TestHashPathComponents(t *testing.T) {
	h, err := FromHex("abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789"[:64])
	if err != nil {
		t.Fatalf("FromHex: %v", err)
	}
	dir, file := h.PathComponents()
	if dir != "ab" {
		t.Errorf("dir = %q, want ab", dir)
	}
	if len(file) != 62 {
		t.Errorf("file len = %d, want 62", len(file))
	}
}

func TestBlobHashDeterminism(t *testing.T) {
	h1 := ComputeBlobHash(0, 0, 0o644, nil, []byte("hello"))
	h2 := ComputeBlobHash(0, 0, 0o644, nil, []byte("hello"))
	if h1 != h2 {
		t.Fatal("identical inputs produced different hashes")
	}
}

func TestBlobHashSensitivity(t *testing.T) {
	base := ComputeBlobHash(0, 0, 0o644, nil, []byte("hello"))
	variants := map[string]Hash{
		"uid":     ComputeBlobHash(1, 0, 0o644, nil, []byte("hello")),
		"gid":     ComputeBlobHash(0, 1, 0o644, nil, []byte("hello")),
		"mode":    ComputeBlobHash(0, 0, 0o755, nil, []byte("hello")),
		"content": ComputeBlobHash(0, 0, 0o644, nil, []byte("world")),
	}
	for name, v := range variants {
		if v == base {
			t.Errorf("%s: expected hash to differ from base", name)
		}
	}
}

func TestBlobHashXattrOrderingIrrelevant(t *testing.T) {
	x1 := []Xattr{{Name: "user.a", Value: []byte{1}}, {Name: "user.b", Value: []byte{2}}}
	x2 := []Xattr{{Name: "user.b", Value: []byte{2}}, {Name: "user.a", Value: []byte{1}}}

	h1 := ComputeBlobHash(0, 0, 0o644, x1, []byte("hello"))
	h2 := ComputeBlobHash(0, 0, 0o644, x2, []byte("hello"))
	if h1 != h2 {
		t.Fatal("xattr order should not affect hash")
	}
}

func TestBlobHashXattrValueSensitivity(t *testing.T) {
	x1 := []Xattr{{Name: "user.test", Value: []byte{1, 2, 3}}}
	x2 := []Xattr{{Name: "user.test", Value: []byte{4, 5, 6}}}

	h1 := ComputeBlobHash(0, 0, 0o644, x1, []byte("hello"))
	h2 := ComputeBlobHash(0, 0, 0o644, x2, []byte("hello"))
	if h1 == h2 {
		t.Fatal("different xattr values should produce different hashes")
	}
}

func TestSymlinkHash(t *testing.T) {
	h1 := ComputeSymlinkHash(0, 0, nil, "/target/path")
	h2 := ComputeSymlinkHash(0, 0, nil, "/target/path")
	if h1 != h2 {
		t.Fatal("identical symlink targets produced different hashes")
	}
	h3 := ComputeSymlinkHash(0, 0, nil, "/other/path")
	if h1 == h3 {
		t.Fatal("different symlink targets produced the same hash")
	}
}

func TestStreamingHasherMatchesDirect(t *testing.T) {
	direct := ComputeBlobHash(0, 0, 0o644, nil, []byte("helloworld"))

	streaming := NewBlobHasher(0, 0, 0o644, nil)
	streaming.Write([]byte("hello"))
	streaming.Write([]byte("world"))

	if streaming.Sum() != direct {
		t.Fatal("streaming hasher diverged from direct computation")
	}
}
