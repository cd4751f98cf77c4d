package profiler

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"nbprof/internal/config"
	"nbprof/internal/report"
)

func writeNotebook(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing notebook: %v", err)
	}
	return path
}

func readJSON(t *testing.T, path string) map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading artifact %s: %v", path, err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("artifact %s is not valid JSON: %v", path, err)
	}
	return decoded
}

func TestRunWritesSuccessArtifact(t *testing.T) {
	path := writeNotebook(t, "simple.ipynb", `{
		"cells": [
			{"cell_type": "markdown", "source": ["# demo"]},
			{"cell_type": "code", "source": ["_ = 1 + 1"]},
			{"cell_type": "code", "source": ["s := 0\n", "for i := 0; i < 100; i++ {\n", "\ts += i\n", "}\n", "_ = s"]}
		]
	}`)

	outputPath, err := Run(path, config.Default())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outputPath != report.SuccessPath(path) {
		t.Fatalf("unexpected artifact path: %s", outputPath)
	}

	artifact := readJSON(t, outputPath)

	if _, ok := artifact["error"]; ok {
		t.Fatalf("success artifact must not carry an error field")
	}

	cells, ok := artifact["cells"].(map[string]interface{})
	if !ok || len(cells) != 2 {
		t.Fatalf("expected 2 code cells in artifact, got %v", artifact["cells"])
	}
	for key, raw := range cells {
		cell := raw.(map[string]interface{})
		if cell["classification"] == "" {
			t.Fatalf("cell %s has no classification", key)
		}
	}

	metadata := artifact["metadata"].(map[string]interface{})
	if metadata["function_name"] != "runNotebookFunc" {
		t.Fatalf("unexpected entry point in metadata: %v", metadata["function_name"])
	}
	if checksum, _ := metadata["source_checksum"].(string); len(checksum) != 6 {
		t.Fatalf("metadata missing the source checksum: %v", metadata["source_checksum"])
	}

	summary := artifact["summary"].(map[string]interface{})
	if summary["total_execution_time_seconds"].(float64) <= 0 {
		t.Fatalf("summary missing elapsed time: %v", summary)
	}

	if _, err := os.Stat(report.ErrorPath(path)); !os.IsNotExist(err) {
		t.Fatalf("error artifact must not exist on success")
	}
}

func TestRunWritesErrorArtifactOnFailingCell(t *testing.T) {
	path := writeNotebook(t, "failing.ipynb", `{
		"cells": [
			{"cell_type": "code", "source": ["a := 1\n", "_ = a"]},
			{"cell_type": "code", "source": ["panic(\"second cell\")"]}
		]
	}`)

	outputPath, err := Run(path, config.Default())
	if err == nil {
		t.Fatalf("expected the run to fail")
	}
	if outputPath != report.ErrorPath(path) {
		t.Fatalf("expected error artifact path, got %s", outputPath)
	}

	artifact := readJSON(t, outputPath)
	if artifact["error"] == nil || artifact["error"] == "" {
		t.Fatalf("error artifact missing error field: %v", artifact)
	}
	if artifact["traceback"] == nil || artifact["traceback"] == "" {
		t.Fatalf("error artifact missing traceback: %v", artifact)
	}

	// The first cell's partial measurements are discarded, not reported.
	cells := artifact["cells"].(map[string]interface{})
	if len(cells) != 0 {
		t.Fatalf("partial instrumentation data must not be reported: %v", cells)
	}

	if _, err := os.Stat(report.SuccessPath(path)); !os.IsNotExist(err) {
		t.Fatalf("success artifact must not exist on failure")
	}
}

func TestRunWritesErrorArtifactOnUnreadableDocument(t *testing.T) {
	path := writeNotebook(t, "broken.ipynb", "{ not json")

	outputPath, err := Run(path, config.Default())
	if err == nil {
		t.Fatalf("expected a document read error")
	}
	if outputPath != report.ErrorPath(path) {
		t.Fatalf("expected error artifact path, got %s", outputPath)
	}

	artifact := readJSON(t, outputPath)
	if artifact["error"] == nil {
		t.Fatalf("error artifact missing error field")
	}
}

func TestRunEmptyNotebook(t *testing.T) {
	path := writeNotebook(t, "empty.ipynb", `{"cells": []}`)

	outputPath, err := Run(path, config.Default())
	if err != nil {
		t.Fatalf("a notebook with zero code cells should still produce a report: %v", err)
	}

	artifact := readJSON(t, outputPath)
	cells := artifact["cells"].(map[string]interface{})
	if len(cells) != 0 {
		t.Fatalf("expected no cells, got %v", cells)
	}
}
