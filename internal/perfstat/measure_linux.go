//go:build linux

package perfstat

import (
	"fmt"
	"runtime"

	"github.com/elastic/go-perf"

	"nbprof/internal/logging"
)

// Measure runs f once on a locked OS thread with instruction and cycle
// counters attached to that thread. Counter failures do not prevent f from
// running; they surface as an error alongside a nil Counters.
func Measure(f func()) (*Counters, error) {
	logger := logging.GetLogger()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	events, err := openEvents()
	if err != nil {
		logger.WithError(err).Debug("Hardware counters unavailable")
		f()
		return nil, err
	}
	defer func() {
		for _, ev := range events {
			ev.Close()
		}
	}()

	for _, ev := range events {
		if err := ev.Enable(); err != nil {
			f()
			return nil, fmt.Errorf("failed to enable perf event: %w", err)
		}
	}

	f()

	counters := &Counters{}
	targets := []*uint64{&counters.Instructions, &counters.Cycles}
	for i, ev := range events {
		if err := ev.Disable(); err != nil {
			return nil, fmt.Errorf("failed to disable perf event: %w", err)
		}
		count, err := ev.ReadCount()
		if err != nil {
			return nil, fmt.Errorf("failed to read perf event: %w", err)
		}
		*targets[i] = uint64(count.Value)
	}

	return counters, nil
}

func openEvents() ([]*perf.Event, error) {
	hardwareCounters := []perf.HardwareCounter{
		perf.Instructions,
		perf.CPUCycles,
	}

	var events []*perf.Event
	for _, counter := range hardwareCounters {
		attr := &perf.Attr{}
		counter.Configure(attr)
		event, err := perf.Open(attr, perf.CallingThread, perf.AnyCPU, nil)
		if err != nil {
			for _, ev := range events {
				ev.Close()
			}
			return nil, fmt.Errorf("failed to open perf event %v: %w", counter, err)
		}
		events = append(events, event)
	}
	return events, nil
}
