package remap

import (
	"path/filepath"
	"testing"

	"github.com/javanhut/rootcas/internal/repo"
)

func TestRemapNoChangeWhenMappingsMatch(t *testing.T) {
	dir := t.TempDir()
	r, err := repo.Init(filepath.Join(dir, "repo"))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	stats, err := Remap(r, Options{})
	if err != nil {
		t.Fatalf("Remap: %v", err)
	}
	if stats.Total != 0 || stats.Remapped != 0 {
		t.Fatalf("expected no-op remap right after init, got %+v", stats)
	}
}
