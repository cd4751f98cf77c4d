package notebook

import "testing"

func TestSourceChecksum_StableForSameSource(t *testing.T) {
	cells := []CodeCell{
		{Index: 0, Lines: []string{"a := 1", "_ = a"}},
		{Index: 1, Lines: []string{"b := 2", "_ = b"}},
	}

	s1, err := SourceChecksum(cells)
	if err != nil {
		t.Fatalf("SourceChecksum: %v", err)
	}
	s2, err := SourceChecksum(cells)
	if err != nil {
		t.Fatalf("SourceChecksum: %v", err)
	}
	if s1 != s2 {
		t.Fatalf("expected same checksum, got %q vs %q", s1, s2)
	}
	if len(s1) != 6 {
		t.Fatalf("expected 6-char checksum, got %q (len=%d)", s1, len(s1))
	}
}

func TestSourceChecksum_ChangesWhenCodeChanges(t *testing.T) {
	cells := []CodeCell{{Index: 0, Lines: []string{"a := 1", "_ = a"}}}
	s1, err := SourceChecksum(cells)
	if err != nil {
		t.Fatalf("SourceChecksum: %v", err)
	}

	cells[0].Lines[0] = "a := 2"
	s2, err := SourceChecksum(cells)
	if err != nil {
		t.Fatalf("SourceChecksum: %v", err)
	}
	if s1 == s2 {
		t.Fatalf("checksum did not change when the code changed: %q", s1)
	}
}

func TestSourceChecksum_DependsOnCellOrder(t *testing.T) {
	forward := []CodeCell{
		{Index: 0, Lines: []string{"a := 1", "_ = a"}},
		{Index: 1, Lines: []string{"b := 2", "_ = b"}},
	}
	reversed := []CodeCell{
		{Index: 0, Lines: []string{"b := 2", "_ = b"}},
		{Index: 1, Lines: []string{"a := 1", "_ = a"}},
	}

	s1, err := SourceChecksum(forward)
	if err != nil {
		t.Fatalf("SourceChecksum: %v", err)
	}
	s2, err := SourceChecksum(reversed)
	if err != nil {
		t.Fatalf("SourceChecksum: %v", err)
	}
	if s1 == s2 {
		t.Fatalf("reordering cells changes the executed program, checksum must differ")
	}
}
