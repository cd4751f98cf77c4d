package notebook

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"nbprof/internal/logging"
)

// Cell is one authored unit of a notebook, in document order.
type Cell struct {
	Type   string
	Source string
}

// CodeCell is a code cell re-indexed by its ordinal position among code
// cells only. Non-code cells never receive an index.
type CodeCell struct {
	Index int
	Lines []string
}

// DocumentReadError indicates the input could not be parsed into cells.
type DocumentReadError struct {
	Path string
	Err  error
}

func (e *DocumentReadError) Error() string {
	return fmt.Sprintf("reading notebook %s: %v", e.Path, e.Err)
}

func (e *DocumentReadError) Unwrap() error {
	return e.Err
}

// rawNotebook mirrors the nbformat v4 on-disk layout. Cell sources appear
// either as an array of line strings or as one joined string; both forms
// occur in the wild.
type rawNotebook struct {
	Cells []rawCell `json:"cells"`
}

type rawCell struct {
	CellType string          `json:"cell_type"`
	Source   json.RawMessage `json:"source"`
}

func decodeSource(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var joined string
	if err := json.Unmarshal(raw, &joined); err == nil {
		return joined, nil
	}
	var parts []string
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", fmt.Errorf("cell source is neither string nor string array: %w", err)
	}
	return strings.Join(parts, ""), nil
}

// Read parses the notebook file at path into its ordered cells.
func Read(path string) ([]Cell, error) {
	logger := logging.GetLogger()

	data, err := os.ReadFile(path)
	if err != nil {
		logger.WithField("path", path).WithError(err).Error("Failed to read notebook file")
		return nil, &DocumentReadError{Path: path, Err: err}
	}

	var nb rawNotebook
	if err := json.Unmarshal(data, &nb); err != nil {
		logger.WithField("path", path).WithError(err).Error("Failed to parse notebook JSON")
		return nil, &DocumentReadError{Path: path, Err: err}
	}

	cells := make([]Cell, 0, len(nb.Cells))
	for i, rc := range nb.Cells {
		source, err := decodeSource(rc.Source)
		if err != nil {
			return nil, &DocumentReadError{Path: path, Err: fmt.Errorf("cell %d: %w", i, err)}
		}
		cells = append(cells, Cell{Type: rc.CellType, Source: source})
	}

	return cells, nil
}

// CodeCells filters cells down to code cells and splits their sources into
// raw lines. Indices are assigned by position among code cells.
func CodeCells(cells []Cell) []CodeCell {
	var code []CodeCell
	for _, cell := range cells {
		if cell.Type != "code" {
			continue
		}
		code = append(code, CodeCell{
			Index: len(code),
			Lines: splitLines(cell.Source),
		})
	}
	return code
}

func splitLines(source string) []string {
	if source == "" {
		return nil
	}
	lines := strings.Split(source, "\n")
	// A trailing newline yields one empty trailing element, which is not an
	// authored line.
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
