// Package profiler orchestrates one profiling run: read the notebook, map
// its code cells into a merged unit, execute it under line instrumentation,
// fold the measurements back to cells, classify, and write the artifact.
// Every stage runs strictly in sequence; nothing is shared between runs.
package profiler

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"nbprof/internal/attribution"
	"nbprof/internal/classify"
	"nbprof/internal/config"
	"nbprof/internal/database"
	"nbprof/internal/harness"
	"nbprof/internal/linemap"
	"nbprof/internal/logging"
	"nbprof/internal/notebook"
	"nbprof/internal/report"
)

// Run profiles the notebook at notebookPath and writes the report artifact.
// It returns the artifact path: the success report on a clean run, or the
// diagnostics artifact together with the causing error on a failed one.
func Run(notebookPath string, cfg *config.ProfileConfig) (string, error) {
	logger := logging.GetLogger()

	absPath, err := filepath.Abs(notebookPath)
	if err != nil {
		absPath = notebookPath
	}

	metadata := report.Metadata{
		NotebookPath: absPath,
		Timestamp:    time.Now().Format(report.TimestampLayout),
		FunctionName: linemap.EntryPoint,
	}

	cells, err := notebook.Read(notebookPath)
	if err != nil {
		return writeErrorReport(notebookPath, metadata, err.Error(), err.Error()), err
	}

	codeCells := notebook.CodeCells(cells)
	if checksum, csErr := notebook.SourceChecksum(codeCells); csErr == nil {
		metadata.SourceChecksum = checksum
	}
	merged, index := linemap.Build(codeCells)

	logger.WithFields(logrus.Fields{
		"notebook":   absPath,
		"code_cells": len(codeCells),
		"lines":      index.Len(),
	}).Info("Built merged unit")

	result, err := harness.Run(merged, linemap.EntryPoint, index.CellStartLines())
	if err != nil {
		trace := err.Error()
		var execErr *harness.ExecutionError
		if errors.As(err, &execErr) {
			trace = execErr.Trace
		}
		// Instrumentation data collected before the failure is discarded;
		// partial line attribution would be inconsistent.
		return writeErrorReport(notebookPath, metadata, err.Error(), trace), err
	}

	mem := attribution.MemorySamples{
		CheckpointRSS: result.CheckpointRSS,
		AfterMB:       result.MemAfterMB,
	}
	aggregates := attribution.Reduce(result.StatsText, index, mem)
	attribution.Finalize(aggregates)

	thresholds := cfg.Thresholds()
	globalDelta := result.MemoryDeltaMB()
	for _, agg := range aggregates {
		agg.Classification = string(classify.Classify(agg, globalDelta, thresholds))
	}

	rep := &report.Report{
		Metadata: metadata,
		Cells:    report.FromAggregates(aggregates),
		Summary: &report.Summary{
			TotalExecutionTimeSeconds: result.Elapsed.Seconds(),
			MemoryUsedMB:              globalDelta,
			CPUTimeSeconds:            result.CPUSeconds,
			HardwareCounters:          result.HWCounters,
		},
	}

	outputPath := report.SuccessPath(notebookPath)
	if err := rep.Write(outputPath); err != nil {
		return "", err
	}
	logger.WithField("path", outputPath).Info("Saved profile report")

	export(cfg, rep)

	return outputPath, nil
}

// writeErrorReport emits the diagnostics artifact. Failure to write it is
// logged but never masks the original error.
func writeErrorReport(notebookPath string, metadata report.Metadata, message, trace string) string {
	logger := logging.GetLogger()

	rep := &report.Report{
		Metadata:  metadata,
		Error:     message,
		Traceback: trace,
	}

	errorPath := report.ErrorPath(notebookPath)
	if err := rep.Write(errorPath); err != nil {
		logger.WithError(err).Error("Failed to write error report")
		return ""
	}
	logger.WithField("path", errorPath).Info("Saved error report")
	return errorPath
}

// export pushes the finished report to InfluxDB when an export target is
// configured, either in the config file or through INFLUXDB_* variables.
// Export failures are logged and otherwise ignored.
func export(cfg *config.ProfileConfig, rep *report.Report) {
	logger := logging.GetLogger()

	dbConfig := cfg.Profile.Export.DB
	if !cfg.Profile.Export.Enabled {
		envConfig, ok := database.FromEnv()
		if !ok {
			return
		}
		dbConfig = envConfig
	}

	exporter, err := database.NewProfileExporter(dbConfig)
	if err != nil {
		logger.WithError(err).Warn("Export target unreachable")
		spool(rep)
		return
	}
	defer exporter.Close()

	if err := exporter.Export(rep); err != nil {
		logger.WithError(err).Warn("Failed to export profile report")
		spool(rep)
		return
	}
	logger.Info("Exported profile report")
}

// spool keeps the report on disk when the export target cannot take it, so
// the data can be replayed later instead of being lost.
func spool(rep *report.Report) {
	logger := logging.GetLogger()

	path, err := database.WriteSpoolArtifact(database.DefaultSpoolDir(), database.BuildSpoolArtifact(rep))
	if err != nil {
		logger.WithError(err).Error("Failed to spool profile report")
		return
	}
	logger.WithField("path", path).Info("Spooled profile report for later export")
}
