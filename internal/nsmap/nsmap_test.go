package nsmap

import "testing"

func TestOverflowSafety(t *testing.T) {
	r := Range{InsideStart: 0, OutsideStart: 0, Count: ^uint32(0)}
	if !r.ContainsInside(^uint32(0) - 1) {
		t.Fatal("expected max-1 to be contained in a full-width range")
	}
	if r.ContainsInside(^uint32(0)) {
		t.Fatal("range end is exclusive even when saturated")
	}
}

func TestIdentityRoundtrip(t *testing.T) {
	id := Identity()
	inside, ok := OutsideToInside(12345, id.UIDMap)
	if !ok || inside != 12345 {
		t.Fatalf("identity map should be a no-op, got %d ok=%v", inside, ok)
	}
}

func TestSingleRangeTranslation(t *testing.T) {
	ranges := []Range{{InsideStart: 0, OutsideStart: 100000, Count: 65536}}
	outside, ok := InsideToOutside(0, ranges)
	if !ok || outside != 100000 {
		t.Fatalf("InsideToOutside(0) = %d, %v", outside, ok)
	}
	inside, ok := OutsideToInside(100001, ranges)
	if !ok || inside != 1 {
		t.Fatalf("OutsideToInside(100001) = %d, %v", inside, ok)
	}
	if _, ok := OutsideToInside(200000, ranges); ok {
		t.Fatal("expected id outside range to be unmapped")
	}
}

func TestRemapComposesThroughInsideID(t *testing.T) {
	oldRanges := []Range{{InsideStart: 0, OutsideStart: 100000, Count: 1000}}
	newRanges := []Range{{InsideStart: 0, OutsideStart: 200000, Count: 1000}}

	remapped, ok := Remap(100050, oldRanges, newRanges)
	if !ok || remapped != 200050 {
		t.Fatalf("Remap = %d, %v, want 200050", remapped, ok)
	}
}

func TestRemapUnmappedSource(t *testing.T) {
	oldRanges := []Range{{InsideStart: 0, OutsideStart: 100000, Count: 10}}
	newRanges := []Range{{InsideStart: 0, OutsideStart: 200000, Count: 10}}
	if _, ok := Remap(999999, oldRanges, newRanges); ok {
		t.Fatal("expected unmapped source id to fail remap")
	}
}

func TestParseIDMap(t *testing.T) {
	content := "         0     100000      65536\n     1000       2000         10\n\nmalformed line here\n"
	ranges, err := ParseIDMap(content)
	if err != nil {
		t.Fatalf("ParseIDMap: %v", err)
	}
	if len(ranges) != 2 {
		t.Fatalf("expected 2 ranges, got %d: %+v", len(ranges), ranges)
	}
	if ranges[0] != (Range{InsideStart: 0, OutsideStart: 100000, Count: 65536}) {
		t.Fatalf("unexpected range: %+v", ranges[0])
	}
}

func TestConfigEqual(t *testing.T) {
	a := Identity()
	b := Identity()
	if !Equal(a, b) {
		t.Fatal("two identity configs should be equal")
	}
	c := Config{UIDMap: []Range{{InsideStart: 0, OutsideStart: 1, Count: 1}}, GIDMap: a.GIDMap}
	if Equal(a, c) {
		t.Fatal("differing uid maps should not be equal")
	}
}
