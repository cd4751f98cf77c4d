// Package lineprof is the line instrumentation capability: it rewrites a
// merged source unit so every statement reports back to a probe, and turns
// the collected hit/time counters into line_profiler-style text records.
package lineprof

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ProbeImport is the import path under which the probe package is exposed
// to the interpreted unit.
const ProbeImport = "nbprobe"

type lineCount struct {
	hits  int64
	nanos int64
}

// Profiler accumulates per-line hit counts and self time. Self time means
// the elapsed time between a line's probe firing and the next probe firing
// anywhere in the unit, attributed to the earlier line.
//
// A Profiler belongs to exactly one run and is not safe for concurrent use;
// the merged unit executes single-threaded.
type Profiler struct {
	sourceLines []string
	counts      map[int]*lineCount

	checkpoints map[int]bool
	ckSamples   map[int]float64
	sample      func() float64

	lastLine int
	lastTime time.Time
}

func New() *Profiler {
	return &Profiler{
		counts:      make(map[int]*lineCount),
		checkpoints: make(map[int]bool),
		ckSamples:   make(map[int]float64),
	}
}

// AttachSource gives the profiler the merged unit text so stats output can
// echo line contents the way line profilers conventionally do.
func (p *Profiler) AttachSource(merged string) {
	p.sourceLines = strings.Split(merged, "\n")
}

// SetCheckpoints registers merged-unit lines whose first hit triggers a
// sample (typically process memory). Samples are keyed by line number.
func (p *Profiler) SetCheckpoints(lines []int, sample func() float64) {
	for _, line := range lines {
		p.checkpoints[line] = true
	}
	p.sample = sample
}

// Hit is the probe callback injected before every statement. The line
// argument is the statement's merged-unit line number.
func (p *Profiler) Hit(line int) {
	now := time.Now()
	if p.lastLine != 0 {
		p.count(p.lastLine).nanos += now.Sub(p.lastTime).Nanoseconds()
	}
	p.count(line).hits++
	if p.checkpoints[line] && p.sample != nil {
		if _, done := p.ckSamples[line]; !done {
			p.ckSamples[line] = p.sample()
		}
	}
	p.lastLine = line
	p.lastTime = now
}

// Done closes out the run, attributing the tail interval since the last
// probe to the last line hit. Safe to call when nothing was hit.
func (p *Profiler) Done() {
	if p.lastLine != 0 {
		p.count(p.lastLine).nanos += time.Since(p.lastTime).Nanoseconds()
		p.lastLine = 0
	}
}

func (p *Profiler) count(line int) *lineCount {
	c, ok := p.counts[line]
	if !ok {
		c = &lineCount{}
		p.counts[line] = c
	}
	return c
}

// CheckpointSamples returns the samples taken at checkpoint lines, keyed by
// merged-unit line number.
func (p *Profiler) CheckpointSamples() map[int]float64 {
	out := make(map[int]float64, len(p.ckSamples))
	for line, v := range p.ckSamples {
		out[line] = v
	}
	return out
}

// Stats renders the collected measurements as ordered text records, one per
// observed line, with times in microseconds. Lines never hit are absent.
// The layout follows the conventional line profiler table:
//
//	Line #      Hits         Time  Per Hit   % Time  Line Contents
func (p *Profiler) Stats() string {
	lines := make([]int, 0, len(p.counts))
	var totalNanos int64
	for line, c := range p.counts {
		lines = append(lines, line)
		totalNanos += c.nanos
	}
	sort.Ints(lines)

	var b strings.Builder
	fmt.Fprintf(&b, "Timer unit: 1e-06 s\n\n")
	fmt.Fprintf(&b, "Total time: %g s\n\n", float64(totalNanos)/1e9)
	fmt.Fprintf(&b, "Line #      Hits         Time  Per Hit   %% Time  Line Contents\n")
	fmt.Fprintf(&b, "==============================================================\n")

	for _, line := range lines {
		c := p.counts[line]
		timeUs := float64(c.nanos) / 1e3
		perHit := 0.0
		if c.hits > 0 {
			perHit = timeUs / float64(c.hits)
		}
		percent := 0.0
		if totalNanos > 0 {
			percent = float64(c.nanos) / float64(totalNanos) * 100
		}
		fmt.Fprintf(&b, "%6d %9d %12.1f %8.1f %8.1f  %s\n",
			line, c.hits, timeUs, perHit, percent, p.sourceLine(line))
	}

	return b.String()
}

func (p *Profiler) sourceLine(line int) string {
	if line >= 1 && line <= len(p.sourceLines) {
		return p.sourceLines[line-1]
	}
	return ""
}
