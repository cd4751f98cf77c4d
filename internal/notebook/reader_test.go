package notebook

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeNotebook(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.ipynb")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing notebook: %v", err)
	}
	return path
}

func TestReadArraySource(t *testing.T) {
	path := writeNotebook(t, `{
		"cells": [
			{"cell_type": "markdown", "source": ["# title"]},
			{"cell_type": "code", "source": ["a := 1\n", "b := 2"]}
		]
	}`)

	cells, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(cells) != 2 {
		t.Fatalf("expected 2 cells, got %d", len(cells))
	}
	if cells[1].Source != "a := 1\nb := 2" {
		t.Fatalf("unexpected joined source: %q", cells[1].Source)
	}
}

func TestReadStringSource(t *testing.T) {
	path := writeNotebook(t, `{
		"cells": [{"cell_type": "code", "source": "x := 1\ny := 2\n"}]
	}`)

	cells, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	code := CodeCells(cells)
	if len(code) != 1 {
		t.Fatalf("expected 1 code cell, got %d", len(code))
	}
	if len(code[0].Lines) != 2 {
		t.Fatalf("expected 2 lines, got %v", code[0].Lines)
	}
}

func TestCodeCellsReindexesCodeOnly(t *testing.T) {
	cells := []Cell{
		{Type: "markdown", Source: "# heading"},
		{Type: "code", Source: "a := 1"},
		{Type: "raw", Source: "..."},
		{Type: "code", Source: "b := 2"},
	}

	code := CodeCells(cells)
	if len(code) != 2 {
		t.Fatalf("expected 2 code cells, got %d", len(code))
	}
	if code[0].Index != 0 || code[1].Index != 1 {
		t.Fatalf("code cells must be re-indexed by ordinal among code cells: %+v", code)
	}
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "nope.ipynb"))
	var docErr *DocumentReadError
	if !errors.As(err, &docErr) {
		t.Fatalf("expected DocumentReadError, got %v", err)
	}
}

func TestReadInvalidJSON(t *testing.T) {
	path := writeNotebook(t, "not json at all")
	_, err := Read(path)
	var docErr *DocumentReadError
	if !errors.As(err, &docErr) {
		t.Fatalf("expected DocumentReadError, got %v", err)
	}
}

func TestSplitLinesKeepsInteriorBlanks(t *testing.T) {
	lines := splitLines("a := 1\n\nb := 2\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines (with interior blank), got %v", lines)
	}
	if lines[1] != "" {
		t.Fatalf("interior blank should survive splitting: %v", lines)
	}
}
