package database

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"nbprof/internal/report"
)

// SpoolArtifact is the on-disk fallback for a profile report whose export
// failed. Spooled artifacts can be replayed against InfluxDB once the target
// is reachable again.
type SpoolArtifact struct {
	Version int `json:"version"`

	CreatedAt time.Time `json:"created_at"`

	NotebookPath   string `json:"notebook_path"`
	SourceChecksum string `json:"source_checksum"`

	Report *report.Report `json:"report"`
}

func DefaultSpoolDir() string {
	if v := strings.TrimSpace(os.Getenv("NBPROF_SPOOL_DIR")); v != "" {
		return v
	}
	return "spool"
}

// BuildSpoolArtifact wraps a finished report for spooling.
func BuildSpoolArtifact(rep *report.Report) *SpoolArtifact {
	artifact := &SpoolArtifact{
		Version:   1,
		CreatedAt: time.Now(),
		Report:    rep,
	}
	if rep != nil {
		artifact.NotebookPath = rep.Metadata.NotebookPath
		artifact.SourceChecksum = rep.Metadata.SourceChecksum
	}
	return artifact
}

// WriteSpoolArtifact writes a gzip-compressed JSON artifact to disk atomically.
// It returns the final file path.
func WriteSpoolArtifact(dir string, artifact *SpoolArtifact) (string, error) {
	if artifact == nil {
		return "", fmt.Errorf("spool artifact is nil")
	}
	if dir == "" {
		dir = DefaultSpoolDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	checksum := artifact.SourceChecksum
	if checksum == "" {
		checksum = "nocsum"
	}
	stem := strings.TrimSuffix(filepath.Base(artifact.NotebookPath), filepath.Ext(artifact.NotebookPath))
	if stem == "" || stem == "." {
		stem = "profile"
	}
	name := fmt.Sprintf(
		"%s_%s_%s.json.gz",
		stem,
		artifact.CreatedAt.UTC().Format("20060102T150405Z"),
		checksum,
	)
	finalPath := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, name+".tmp.*")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()

	ok := false
	defer func() {
		_ = tmp.Close()
		if !ok {
			_ = os.Remove(tmpPath)
		}
	}()

	gz := gzip.NewWriter(tmp)
	enc := json.NewEncoder(gz)
	enc.SetIndent("", "  ")
	if err := enc.Encode(artifact); err != nil {
		_ = gz.Close()
		return "", err
	}
	if err := gz.Close(); err != nil {
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", err
	}
	ok = true
	return finalPath, nil
}

// ReadSpoolArtifact loads one spooled artifact back from disk.
func ReadSpoolArtifact(path string) (*SpoolArtifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	var artifact SpoolArtifact
	if err := json.NewDecoder(gz).Decode(&artifact); err != nil {
		return nil, err
	}
	return &artifact, nil
}
