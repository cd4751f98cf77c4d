package linemap

import (
	"sort"
	"strings"

	"nbprof/internal/notebook"
)

// EntryPoint is the name of the synthetic wrapper function the merged unit
// declares on its first line.
const EntryPoint = "runNotebookFunc"

// LineRecord ties one instrumented line of the merged unit back to the cell
// and original source line it was copied from.
type LineRecord struct {
	CellIndex    int
	OriginalLine int // 1-based within the cell's own source
	Code         string
}

// Index maps merged-unit line numbers to their originating LineRecord. It
// is built once per run, append-only during construction, and read-only
// afterwards.
type Index struct {
	records map[int]LineRecord
	keys    []int
	// first mapped merged-unit line per cell, in cell order
	cellStarts map[int]int
	cellOrder  []int
}

func newIndex() *Index {
	return &Index{
		records:    make(map[int]LineRecord),
		cellStarts: make(map[int]int),
	}
}

func (ix *Index) add(line int, rec LineRecord) {
	ix.records[line] = rec
	ix.keys = append(ix.keys, line)
	if _, seen := ix.cellStarts[rec.CellIndex]; !seen {
		ix.cellStarts[rec.CellIndex] = line
	}
}

func (ix *Index) addCell(cellIndex int) {
	ix.cellOrder = append(ix.cellOrder, cellIndex)
}

// Lookup resolves a merged-unit line number to its LineRecord.
func (ix *Index) Lookup(line int) (LineRecord, bool) {
	rec, ok := ix.records[line]
	return rec, ok
}

// Len is the number of mapped lines, exactly the number of non-blank code
// lines across all code cells.
func (ix *Index) Len() int {
	return len(ix.keys)
}

// Keys returns the mapped merged-unit line numbers in append order.
func (ix *Index) Keys() []int {
	out := make([]int, len(ix.keys))
	copy(out, ix.keys)
	return out
}

// Cells returns every code cell index in document order, including cells
// that contributed no mapped lines.
func (ix *Index) Cells() []int {
	out := make([]int, len(ix.cellOrder))
	copy(out, ix.cellOrder)
	return out
}

// CellStart returns the merged-unit line number of the cell's first mapped
// line. Cells with no mapped lines have no start.
func (ix *Index) CellStart(cellIndex int) (int, bool) {
	line, ok := ix.cellStarts[cellIndex]
	return line, ok
}

// CellStartLines returns the start lines of all cells that have one, in
// ascending merged-unit order.
func (ix *Index) CellStartLines() []int {
	lines := make([]int, 0, len(ix.cellStarts))
	for _, line := range ix.cellStarts {
		lines = append(lines, line)
	}
	sort.Ints(lines)
	return lines
}

// Build concatenates the code cells into one instrumentable function and
// records the mapping from each emitted line to its origin.
//
// Line 1 of the merged unit is the wrapper declaration, so mapped lines
// start at 2. Blank and whitespace-only lines are dropped before indexing;
// they never consume a merged-unit line. No separator lines are emitted
// between cells, which keeps the running line counter and the emitted text
// trivially in lockstep.
func Build(cells []notebook.CodeCell) (string, *Index) {
	merged := []string{"func " + EntryPoint + "() {"}
	index := newIndex()
	currentLine := 2

	for _, cell := range cells {
		index.addCell(cell.Index)
		for i, line := range cell.Lines {
			if strings.TrimSpace(line) == "" {
				continue
			}
			merged = append(merged, "\t"+line)
			index.add(currentLine, LineRecord{
				CellIndex:    cell.Index,
				OriginalLine: i + 1,
				Code:         line,
			})
			currentLine++
		}
	}

	merged = append(merged, "}")
	return strings.Join(merged, "\n"), index
}
