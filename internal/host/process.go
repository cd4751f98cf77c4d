// Package host exposes the process metrics the profiler samples around a
// run: resident set size and consumed CPU time of the current process.
package host

import (
	"os"
	"runtime"
	"strconv"
	"strings"
)

// USER_HZ is fixed at 100 on every platform Go supports.
const clockTicksPerSecond = 100

// ProcessMemoryMB returns the current resident set size in megabytes, read
// from /proc/self/status. Where procfs is unavailable it falls back to the
// Go heap figure, which still yields usable deltas.
func ProcessMemoryMB() float64 {
	if data, err := os.ReadFile("/proc/self/status"); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			if !strings.HasPrefix(line, "VmRSS:") {
				continue
			}
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				if kb, err := strconv.ParseFloat(fields[1], 64); err == nil {
					return kb / 1024
				}
			}
		}
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return float64(ms.HeapAlloc) / (1024 * 1024)
}

// ProcessCPUSeconds returns the user+system CPU time consumed by the
// current process, read from /proc/self/stat. Returns 0 where procfs is
// unavailable.
func ProcessCPUSeconds() float64 {
	data, err := os.ReadFile("/proc/self/stat")
	if err != nil {
		return 0
	}

	// Field 2 (comm) may contain spaces; everything after the closing
	// parenthesis is positional. utime and stime are fields 14 and 15
	// overall, i.e. positions 11 and 12 after comm.
	s := string(data)
	end := strings.LastIndex(s, ")")
	if end < 0 {
		return 0
	}
	fields := strings.Fields(s[end+1:])
	if len(fields) < 13 {
		return 0
	}

	utime, err1 := strconv.ParseFloat(fields[11], 64)
	stime, err2 := strconv.ParseFloat(fields[12], 64)
	if err1 != nil || err2 != nil {
		return 0
	}

	return (utime + stime) / clockTicksPerSecond
}
