package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"nbprof/internal/attribution"
)

func TestPathDerivation(t *testing.T) {
	success := SuccessPath("/data/analysis.ipynb")
	errPath := ErrorPath("/data/analysis.ipynb")

	if success != "/data/analysis_profile.json" {
		t.Fatalf("unexpected success path: %s", success)
	}
	if errPath != "/data/analysis_profile_error.json" {
		t.Fatalf("unexpected error path: %s", errPath)
	}
	if success == errPath {
		t.Fatalf("success and error paths must never coincide")
	}
}

func TestFromAggregatesStringKeys(t *testing.T) {
	aggs := map[int]*attribution.CellAggregate{
		0: {
			Lines: map[int]*attribution.LineStat{
				3: {Code: "x := 1", Hits: 1, Time: 2.5, PerHit: 2.5, Percent: 100},
			},
			TotalTime:        2.5,
			TotalHits:        1,
			PercentOfRunTime: 100,
			Classification:   "Normal",
		},
		1: {Lines: map[int]*attribution.LineStat{}},
	}

	cells := FromAggregates(aggs)

	c0, ok := cells["0"]
	if !ok {
		t.Fatalf("cell 0 missing under string key")
	}
	line, ok := c0.Lines["3"]
	if !ok {
		t.Fatalf("line 3 missing under string key")
	}
	if line.Code != "x := 1" || line.Hits != 1 {
		t.Fatalf("unexpected line payload: %+v", line)
	}

	c1, ok := cells["1"]
	if !ok || len(c1.Lines) != 0 {
		t.Fatalf("unmeasured cell must appear with empty lines: %+v", c1)
	}
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out_profile.json")

	rep := &Report{
		Metadata: Metadata{
			NotebookPath: "/data/analysis.ipynb",
			Timestamp:    "2026-08-23 10:00:00",
			FunctionName: "runNotebookFunc",
		},
		Cells: map[string]*Cell{
			"0": {Lines: map[string]*Line{}, Classification: "Normal"},
		},
		Summary: &Summary{TotalExecutionTimeSeconds: 0.5, MemoryUsedMB: 1.25},
	}

	if err := rep.Write(path); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading report back: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if _, ok := decoded["error"]; ok {
		t.Fatalf("success report must not carry an error field")
	}
	if _, ok := decoded["cells"]; !ok {
		t.Fatalf("report missing cells")
	}
}

func TestWriteErrorReportAlwaysCarriesError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out_profile_error.json")

	rep := &Report{
		Error:     "boom",
		Traceback: "boom\n\tat cell 2",
	}
	if err := rep.Write(path); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("error report is not valid JSON: %v", err)
	}
	if decoded["error"] != "boom" {
		t.Fatalf("error field missing from error report: %v", decoded)
	}
	if _, ok := decoded["cells"]; !ok {
		t.Fatalf("cells must be present (possibly empty) in the error report")
	}
}
