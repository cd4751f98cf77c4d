// Package perfstat measures a single function invocation with hardware
// performance counters where the platform provides them. The profiler
// treats these figures as optional run metadata; any failure to open the
// counters degrades to a nil result.
package perfstat

// Counters holds the hardware counter readings for one measured invocation.
type Counters struct {
	Instructions uint64 `json:"instructions"`
	Cycles       uint64 `json:"cycles"`
}
