// Package classify assigns each cell exactly one performance label from a
// closed taxonomy, by ordered rule precedence over its measured aggregate.
package classify

import (
	"strings"

	"nbprof/internal/attribution"
)

// Label is the heuristic performance classification of one cell.
type Label string

const (
	PerformanceCritical Label = "Performance-Critical"
	CPUIntensive        Label = "CPU-Intensive"
	LoopIntensive       Label = "Loop-Intensive"
	MemoryIntensive     Label = "Memory-Intensive"
	IOIntensive         Label = "I/O-Intensive"
	Normal              Label = "Normal"
)

// Thresholds are the fixed tuning constants of the rule set. They are
// plain data so each rule can be exercised independently of dispatch order.
type Thresholds struct {
	// Rule 1: share of total measured run time.
	RunTimePercent float64
	// Rule 2: average time per hit, microseconds.
	CPUPerHitMicros float64
	// Rule 3: hit count floor and per-hit ceiling, microseconds.
	LoopHits         int64
	LoopPerHitMicros float64
	// Rule 4: cell memory delta as a fraction of the run's delta.
	MemoryFraction float64
	// Rule 5b: per-hit floor for lexically detected loops, microseconds.
	LexicalLoopPerHitMicros float64
}

// DefaultThresholds returns the standard rule constants.
func DefaultThresholds() Thresholds {
	return Thresholds{
		RunTimePercent:          30,
		CPUPerHitMicros:         1000,
		LoopHits:                10000,
		LoopPerHitMicros:        10,
		MemoryFraction:          0.30,
		LexicalLoopPerHitMicros: 5000,
	}
}

// Lexical idioms scanned over lowercased recorded line text. These are
// superficial pattern matches, not semantic analysis.
var ioPatterns = []string{
	"os.open", "os.create", "os.readfile", "os.writefile",
	"ioutil.readfile", "ioutil.writefile",
	"io.copy", "io.readall",
	"bufio.newreader", "bufio.newwriter", "bufio.newscanner",
	"http.get", "http.post", "http.newrequest",
	"csv.newreader", "csv.newwriter",
	"json.newdecoder", "json.newencoder", "json.unmarshal", "json.marshal",
	"sql.open", ".query(", ".exec(",
}

var loopPatterns = []string{"for ", "range "}

// Classify returns the single label for one cell aggregate, evaluated by
// strict rule precedence: the first matching rule wins. It is a pure
// function of its inputs.
func Classify(agg *attribution.CellAggregate, globalMemoryDeltaMB float64, th Thresholds) Label {
	avgPerHit := 0.0
	if agg.TotalHits > 0 {
		avgPerHit = agg.TotalTime / float64(agg.TotalHits)
	}

	switch {
	case agg.PercentOfRunTime > th.RunTimePercent:
		return PerformanceCritical
	case avgPerHit > th.CPUPerHitMicros:
		return CPUIntensive
	case agg.TotalHits > th.LoopHits && avgPerHit < th.LoopPerHitMicros:
		return LoopIntensive
	case globalMemoryDeltaMB > 0 && agg.MemoryDeltaMB/globalMemoryDeltaMB > th.MemoryFraction:
		return MemoryIntensive
	}

	if matchesAny(agg, ioPatterns) {
		return IOIntensive
	}
	if matchesAny(agg, loopPatterns) && avgPerHit > th.LexicalLoopPerHitMicros {
		return LoopIntensive
	}

	return Normal
}

func matchesAny(agg *attribution.CellAggregate, patterns []string) bool {
	for _, line := range agg.Lines {
		code := strings.ToLower(line.Code)
		for _, p := range patterns {
			if strings.Contains(code, p) {
				return true
			}
		}
	}
	return false
}
