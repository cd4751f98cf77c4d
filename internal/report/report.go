// Package report defines the profile artifact shape and writes it next to
// the notebook. Success and error artifacts have deterministically derived,
// distinct paths so the two outcomes can never be confused.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"nbprof/internal/attribution"
	"nbprof/internal/logging"
	"nbprof/internal/perfstat"
)

const (
	successSuffix = "_profile.json"
	errorSuffix   = "_profile_error.json"
	// Timestamp layout used in the artifact metadata.
	TimestampLayout = "2006-01-02 15:04:05"
)

type Metadata struct {
	NotebookPath   string `json:"notebook_path"`
	Timestamp      string `json:"profile_timestamp"`
	FunctionName   string `json:"function_name"`
	SourceChecksum string `json:"source_checksum,omitempty"`
}

type Line struct {
	Code       string  `json:"code"`
	Hits       int64   `json:"hits"`
	Time       float64 `json:"time"`
	TimePerHit float64 `json:"time_per_hit"`
	Percent    float64 `json:"percent"`
}

type Cell struct {
	Lines            map[string]*Line `json:"lines"`
	TotalTime        float64          `json:"total_time"`
	TotalHits        int64            `json:"total_hits"`
	MemoryDeltaMB    float64          `json:"memory_delta_mb"`
	PercentOfRunTime float64          `json:"percent_of_run_time"`
	Classification   string           `json:"classification"`
}

type Summary struct {
	TotalExecutionTimeSeconds float64            `json:"total_execution_time_seconds"`
	MemoryUsedMB              float64            `json:"memory_used_mb"`
	CPUTimeSeconds            float64            `json:"cpu_time_seconds"`
	HardwareCounters          *perfstat.Counters `json:"hardware_counters,omitempty"`
}

// Report is the structured artifact of one profiling run. On failure the
// Error field is always set and Cells/Summary hold whatever existed at the
// point of failure.
type Report struct {
	Metadata  Metadata         `json:"metadata"`
	Cells     map[string]*Cell `json:"cells"`
	Summary   *Summary         `json:"summary"`
	Error     string           `json:"error,omitempty"`
	Traceback string           `json:"traceback,omitempty"`
}

// FromAggregates converts the reducer's output into the artifact shape,
// with cell indices and original line numbers as string keys.
func FromAggregates(aggs map[int]*attribution.CellAggregate) map[string]*Cell {
	cells := make(map[string]*Cell, len(aggs))
	for cellIndex, agg := range aggs {
		cell := &Cell{
			Lines:            make(map[string]*Line, len(agg.Lines)),
			TotalTime:        agg.TotalTime,
			TotalHits:        agg.TotalHits,
			MemoryDeltaMB:    agg.MemoryDeltaMB,
			PercentOfRunTime: agg.PercentOfRunTime,
			Classification:   agg.Classification,
		}
		for lineNo, stat := range agg.Lines {
			cell.Lines[strconv.Itoa(lineNo)] = &Line{
				Code:       stat.Code,
				Hits:       stat.Hits,
				Time:       stat.Time,
				TimePerHit: stat.PerHit,
				Percent:    stat.Percent,
			}
		}
		cells[strconv.Itoa(cellIndex)] = cell
	}
	return cells
}

// SuccessPath derives the success artifact path from the notebook path:
// same stem, fixed suffix in place of the extension.
func SuccessPath(notebookPath string) string {
	return stem(notebookPath) + successSuffix
}

// ErrorPath derives the diagnostics artifact path. It never coincides with
// SuccessPath for the same input.
func ErrorPath(notebookPath string) string {
	return stem(notebookPath) + errorSuffix
}

func stem(notebookPath string) string {
	return strings.TrimSuffix(notebookPath, filepath.Ext(notebookPath))
}

// Write serializes the report as indented JSON to path.
func (r *Report) Write(path string) error {
	logger := logging.GetLogger()

	if r.Cells == nil {
		r.Cells = make(map[string]*Cell)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		logger.WithField("path", path).WithError(err).Error("Failed to write report")
		return fmt.Errorf("writing report %s: %w", path, err)
	}

	return nil
}
