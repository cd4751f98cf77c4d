// Package harness executes the merged unit exactly once inside a fresh
// interpreter namespace and captures the measurements around that single
// invocation: wall-clock time, process memory before and after, CPU time,
// optional hardware counters, and the raw per-line instrumentation output.
package harness

import (
	"fmt"
	"reflect"
	"runtime/debug"
	"sync"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"nbprof/internal/host"
	"nbprof/internal/lineprof"
	"nbprof/internal/logging"
	"nbprof/internal/perfstat"
)

// prelude is evaluated before the merged unit so notebook cells can use the
// usual packages without their own import declarations, which a function
// body cannot carry.
const prelude = `import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)`

// The instrumentation capability has process-global enable/disable
// semantics: two in-flight runs must never overlap.
var runMu sync.Mutex

// ExecutionError is raised when the merged unit fails to evaluate or its
// single invocation panics. It carries the diagnostic trace for the error
// artifact.
type ExecutionError struct {
	Message string
	Trace   string
}

func (e *ExecutionError) Error() string {
	return e.Message
}

// Result holds everything one run produced.
type Result struct {
	StatsText     string
	CheckpointRSS map[int]float64

	MemBeforeMB float64
	MemAfterMB  float64
	Elapsed     time.Duration
	CPUSeconds  float64
	HWCounters  *perfstat.Counters
}

// MemoryDeltaMB is memory after minus memory before. It may be negative
// when the collector reclaims during the run and is reported as-is.
func (r *Result) MemoryDeltaMB() float64 {
	return r.MemAfterMB - r.MemBeforeMB
}

// Run instruments and executes the merged unit. checkpointLines are
// merged-unit line numbers whose first hit samples process memory, used
// downstream for per-cell memory attribution.
//
// The callable is invoked at most once; any failure discards the partial
// instrumentation data and returns an ExecutionError.
func Run(merged string, entryPoint string, checkpointLines []int) (*Result, error) {
	runMu.Lock()
	defer runMu.Unlock()

	logger := logging.GetHarnessLogger()

	profiler := lineprof.New()
	profiler.AttachSource(merged)
	profiler.SetCheckpoints(checkpointLines, host.ProcessMemoryMB)

	instrumented, err := lineprof.Instrument(merged, entryPoint)
	if err != nil {
		// A cell with a syntax error makes the whole unit unbuildable;
		// this surfaces the same way as a runtime failure.
		return nil, &ExecutionError{Message: err.Error(), Trace: err.Error()}
	}

	fn, err := materialize(instrumented, entryPoint, profiler)
	if err != nil {
		return nil, &ExecutionError{Message: err.Error(), Trace: err.Error()}
	}

	logger.WithField("entry_point", entryPoint).Debug("Invoking merged unit")

	cpuBefore := host.ProcessCPUSeconds()
	memBefore := host.ProcessMemoryMB()

	start := time.Now()
	hw, execErr := invoke(fn)
	elapsed := time.Since(start)

	memAfter := host.ProcessMemoryMB()
	cpuAfter := host.ProcessCPUSeconds()

	profiler.Done()

	if execErr != nil {
		logger.WithField("error", execErr.Message).Error("Merged unit raised during invocation")
		return nil, execErr
	}

	logger.WithField("elapsed", elapsed).Debug("Merged unit finished")

	return &Result{
		StatsText:     profiler.Stats(),
		CheckpointRSS: profiler.CheckpointSamples(),
		MemBeforeMB:   memBefore,
		MemAfterMB:    memAfter,
		Elapsed:       elapsed,
		CPUSeconds:    cpuAfter - cpuBefore,
		HWCounters:    hw,
	}, nil
}

// materialize evaluates the instrumented unit in an isolated interpreter
// namespace and returns its entry point as a callable.
func materialize(instrumented string, entryPoint string, profiler *lineprof.Profiler) (func(), error) {
	i := interp.New(interp.Options{})

	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("loading stdlib symbols: %w", err)
	}

	probeSymbols := interp.Exports{
		lineprof.ProbeImport + "/" + lineprof.ProbeImport: {
			"Hit": reflect.ValueOf(profiler.Hit),
		},
	}
	if err := i.Use(probeSymbols); err != nil {
		return nil, fmt.Errorf("loading probe symbols: %w", err)
	}

	if _, err := i.Eval(prelude); err != nil {
		return nil, fmt.Errorf("evaluating import prelude: %w", err)
	}
	if _, err := i.Eval(fmt.Sprintf("import %q", lineprof.ProbeImport)); err != nil {
		return nil, fmt.Errorf("importing probe package: %w", err)
	}

	if _, err := i.Eval(instrumented); err != nil {
		return nil, fmt.Errorf("evaluating merged unit: %w", err)
	}

	v, err := i.Eval(entryPoint)
	if err != nil {
		return nil, fmt.Errorf("resolving entry point %s: %w", entryPoint, err)
	}
	fn, ok := v.Interface().(func())
	if !ok {
		return nil, fmt.Errorf("entry point %s is not func()", entryPoint)
	}
	return fn, nil
}

// invoke calls the merged unit exactly once under hardware counters,
// converting any panic raised by notebook code into an ExecutionError.
func invoke(fn func()) (hw *perfstat.Counters, execErr *ExecutionError) {
	defer func() {
		if r := recover(); r != nil {
			execErr = &ExecutionError{
				Message: fmt.Sprint(r),
				Trace:   fmt.Sprintf("%v\n%s", r, debug.Stack()),
			}
		}
	}()

	hw, err := perfstat.Measure(fn)
	if err != nil {
		// Counter setup failures are metadata loss, not run failures.
		logging.GetHarnessLogger().WithError(err).Debug("Hardware counter measurement unavailable")
	}
	return hw, nil
}
