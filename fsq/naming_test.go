package fsq

import "testing"

func TestDefaultNamingRoundTrip(t *testing.T) {
	naming := DefaultNaming{}

	cur := naming.GenerateCurrent(101)
	if cur != "current-00000000000000000101.bin" {
		t.Fatalf("unexpected current name: %s", cur)
	}
	kind, ts, ok := naming.Parse(cur)
	if !ok || kind != KindCurrent || ts != 101 {
		t.Fatalf("Parse(%s) = %v, %v, %v", cur, kind, ts, ok)
	}

	fin := naming.GenerateFinalized(101)
	if fin != "finalized-00000000000000000101.bin" {
		t.Fatalf("unexpected finalized name: %s", fin)
	}
	kind, ts, ok = naming.Parse(fin)
	if !ok || kind != KindFinalized || ts != 101 {
		t.Fatalf("Parse(%s) = %v, %v, %v", fin, kind, ts, ok)
	}
}

func TestDefaultNamingRejectsMalformed(t *testing.T) {
	naming := DefaultNaming{}

	cases := []string{
		"garbage.bin",
		"current-101.bin",
		"current-00000000000000000101.txt",
		"finalized-+0000000000000000101.bin",
		"finalized- 0000000000000000101.bin",
	}
	for _, name := range cases {
		if _, _, ok := naming.Parse(name); ok {
			t.Errorf("Parse(%q) unexpectedly succeeded", name)
		}
	}
}

func TestDefaultNamingSortOrder(t *testing.T) {
	naming := DefaultNaming{}
	a := naming.GenerateFinalized(5)
	b := naming.GenerateFinalized(10)
	c := naming.GenerateFinalized(100)

	if !(a < b && b < c) {
		t.Fatalf("lexicographic order broken: %s, %s, %s", a, b, c)
	}
}
