// Package attribution folds the raw per-line instrumentation records back
// into per-cell, per-original-line aggregates using the line index built by
// the mapper.
package attribution

import (
	"regexp"
	"strconv"
	"strings"

	"nbprof/internal/linemap"
	"nbprof/internal/logging"
)

// rawRecord matches one measured line of the instrumentation output:
// line number, hits, total time, time per hit, percent, trailing code text.
// Header, separator and footer lines do not match and carry no measurement.
var rawRecord = regexp.MustCompile(`^\s*(\d+)\s+(\d+)\s+([\d.]+)\s+([\d.]+)\s+([\d.]+)\s+(.*)`)

// LineStat is the measured aggregate for one original source line. Times
// are in microseconds.
type LineStat struct {
	Code    string
	Hits    int64
	Time    float64
	PerHit  float64
	Percent float64 // within the owning cell, computed at finalization
}

// CellAggregate accumulates measurements for one code cell. Accumulation is
// strictly additive; percentages and classification are filled in by a
// separate finalization pass once all records have been folded.
type CellAggregate struct {
	Lines            map[int]*LineStat
	TotalTime        float64
	TotalHits        int64
	MemoryDeltaMB    float64
	PercentOfRunTime float64
	Classification   string
}

// MemorySamples carries the process-memory figures taken around and during
// the run: one sample at the first execution of each sampled cell's first
// line, plus the whole-run bounds.
type MemorySamples struct {
	CheckpointRSS map[int]float64 // merged-unit line -> RSS MB at first hit
	AfterMB       float64
}

// Reduce parses the raw instrumentation output and builds one aggregate per
// code cell. Cells with no matched records still appear with empty lines
// and zero totals. Records referencing merged-unit lines absent from the
// index are instrumentation noise and are skipped.
func Reduce(statsText string, index *linemap.Index, mem MemorySamples) map[int]*CellAggregate {
	logger := logging.GetLogger()

	cells := make(map[int]*CellAggregate)
	for _, cellIndex := range index.Cells() {
		cells[cellIndex] = &CellAggregate{Lines: make(map[int]*LineStat)}
	}

	skipped := 0
	for _, raw := range strings.Split(statsText, "\n") {
		m := rawRecord.FindStringSubmatch(raw)
		if m == nil {
			continue
		}

		tracedLine, _ := strconv.Atoi(m[1])
		hits, _ := strconv.ParseInt(m[2], 10, 64)
		timeVal, _ := strconv.ParseFloat(m[3], 64)
		perHit, _ := strconv.ParseFloat(m[4], 64)

		rec, ok := index.Lookup(tracedLine)
		if !ok {
			skipped++
			continue
		}

		agg := cells[rec.CellIndex]
		agg.Lines[rec.OriginalLine] = &LineStat{
			Code:   strings.TrimSpace(rec.Code),
			Hits:   hits,
			Time:   timeVal,
			PerHit: perHit,
		}
		agg.TotalTime += timeVal
		agg.TotalHits += hits
	}

	if skipped > 0 {
		logger.WithField("records", skipped).Debug("Skipped instrumentation records with unmapped line numbers")
	}

	attributeMemory(cells, index, mem)
	return cells
}

// attributeMemory derives per-cell memory deltas from the checkpoint
// samples: a cell's delta spans from its own first-line sample to the next
// sampled cell's, with the whole-run after-figure closing the last span.
// Cells that were never sampled keep a zero delta.
func attributeMemory(cells map[int]*CellAggregate, index *linemap.Index, mem MemorySamples) {
	starts := index.CellStartLines()

	var sampled []int // merged-unit start lines that actually got a sample
	for _, line := range starts {
		if _, ok := mem.CheckpointRSS[line]; ok {
			sampled = append(sampled, line)
		}
	}

	for i, line := range sampled {
		next := mem.AfterMB
		if i+1 < len(sampled) {
			next = mem.CheckpointRSS[sampled[i+1]]
		}
		rec, ok := index.Lookup(line)
		if !ok {
			continue
		}
		cells[rec.CellIndex].MemoryDeltaMB = next - mem.CheckpointRSS[line]
	}
}

// Finalize computes the derived percentages in a single pass after all raw
// records have been folded in. With a zero denominator every percentage is
// exactly 0; re-finalizing does not change any value.
func Finalize(cells map[int]*CellAggregate) {
	var totalTimeAll float64
	for _, agg := range cells {
		totalTimeAll += agg.TotalTime
	}

	for _, agg := range cells {
		if totalTimeAll > 0 {
			agg.PercentOfRunTime = agg.TotalTime / totalTimeAll * 100
		} else {
			agg.PercentOfRunTime = 0
		}

		for _, line := range agg.Lines {
			if agg.TotalTime > 0 {
				line.Percent = line.Time / agg.TotalTime * 100
			} else {
				line.Percent = 0
			}
		}
	}
}
