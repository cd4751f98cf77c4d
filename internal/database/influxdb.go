// Package database optionally exports finished profile reports to InfluxDB
// so runs of the same notebook can be compared over time. Export is a side
// channel; a failed export never fails the profiling run that produced the
// report.
package database

import (
	"context"
	"fmt"
	"os"
	"time"

	"nbprof/internal/config"
	"nbprof/internal/logging"
	"nbprof/internal/report"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sirupsen/logrus"
)

type ProfileExporter struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	bucket   string
	org      string
}

// NewProfileExporter connects to the configured InfluxDB instance and
// verifies it is healthy before returning.
func NewProfileExporter(cfg config.DatabaseConfig) (*ProfileExporter, error) {
	logger := logging.GetLogger()

	client := influxdb2.NewClient(cfg.Host, cfg.Token)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		logger.WithField("host", cfg.Host).WithError(err).Error("Failed to connect to InfluxDB")
		return nil, err
	}
	if health.Status != "pass" {
		logger.WithFields(logrus.Fields{
			"host":    cfg.Host,
			"status":  health.Status,
			"message": health.Message,
		}).Error("InfluxDB health check failed")
		return nil, fmt.Errorf("influxdb health check failed: %s", health.Status)
	}

	writeAPI := client.WriteAPIBlocking(cfg.Org, cfg.Bucket)

	logger.WithFields(logrus.Fields{
		"host":   cfg.Host,
		"bucket": cfg.Bucket,
		"org":    cfg.Org,
	}).Info("Connected to InfluxDB")

	return &ProfileExporter{
		client:   client,
		writeAPI: writeAPI,
		bucket:   cfg.Bucket,
		org:      cfg.Org,
	}, nil
}

// FromEnv builds a DatabaseConfig from the INFLUXDB_* environment
// variables, returning false when they are not all present.
func FromEnv() (config.DatabaseConfig, bool) {
	cfg := config.DatabaseConfig{
		Host:   os.Getenv("INFLUXDB_HOST"),
		Bucket: os.Getenv("INFLUXDB_BUCKET"),
		Token:  os.Getenv("INFLUXDB_TOKEN"),
		Org:    os.Getenv("INFLUXDB_ORG"),
	}
	if cfg.Host == "" || cfg.Bucket == "" || cfg.Token == "" || cfg.Org == "" {
		return config.DatabaseConfig{}, false
	}
	return cfg, true
}

// Export writes one point per profiled cell plus one run summary point.
func (pe *ProfileExporter) Export(rep *report.Report) error {
	ctx := context.Background()
	now := time.Now()

	var points []*write.Point

	for cellIndex, cell := range rep.Cells {
		point := influxdb2.NewPoint("cell_profile",
			map[string]string{
				"notebook":       rep.Metadata.NotebookPath,
				"cell_index":     cellIndex,
				"classification": cell.Classification,
			},
			map[string]interface{}{
				"total_time":          cell.TotalTime,
				"total_hits":          cell.TotalHits,
				"memory_delta_mb":     cell.MemoryDeltaMB,
				"percent_of_run_time": cell.PercentOfRunTime,
			},
			now)
		points = append(points, point)
	}

	if rep.Summary != nil {
		point := influxdb2.NewPoint("run_summary",
			map[string]string{
				"notebook":        rep.Metadata.NotebookPath,
				"function_name":   rep.Metadata.FunctionName,
				"source_checksum": rep.Metadata.SourceChecksum,
			},
			map[string]interface{}{
				"total_execution_time_seconds": rep.Summary.TotalExecutionTimeSeconds,
				"memory_used_mb":               rep.Summary.MemoryUsedMB,
				"cpu_time_seconds":             rep.Summary.CPUTimeSeconds,
			},
			now)
		points = append(points, point)
	}

	if len(points) == 0 {
		return nil
	}

	if err := pe.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("failed to write profile points: %w", err)
	}

	return nil
}

func (pe *ProfileExporter) Close() {
	pe.client.Close()
}
