package config

import (
	"nbprof/internal/classify"
)

// ProfileConfig is the optional YAML configuration. A run with no config
// file uses defaults throughout; the only degrees of freedom are the
// classification thresholds and the export sink.
type ProfileConfig struct {
	Profile ProfileInfo `yaml:"profile"`
}

type ProfileInfo struct {
	LogLevel   string          `yaml:"log_level,omitempty"`
	Thresholds ThresholdConfig `yaml:"thresholds,omitempty"`
	Export     ExportConfig    `yaml:"export,omitempty"`
}

// ThresholdConfig overrides individual classification thresholds. Unset
// fields keep their defaults.
type ThresholdConfig struct {
	RunTimePercent          *float64 `yaml:"run_time_percent,omitempty"`
	CPUPerHitMicros         *float64 `yaml:"cpu_per_hit_micros,omitempty"`
	LoopHits                *int64   `yaml:"loop_hits,omitempty"`
	LoopPerHitMicros        *float64 `yaml:"loop_per_hit_micros,omitempty"`
	MemoryFraction          *float64 `yaml:"memory_fraction,omitempty"`
	LexicalLoopPerHitMicros *float64 `yaml:"lexical_loop_per_hit_micros,omitempty"`
}

type ExportConfig struct {
	Enabled bool           `yaml:"enabled,omitempty"`
	DB      DatabaseConfig `yaml:"db,omitempty"`
}

type DatabaseConfig struct {
	Host   string `yaml:"host,omitempty"`
	Bucket string `yaml:"bucket,omitempty"`
	Token  string `yaml:"token,omitempty"`
	Org    string `yaml:"org,omitempty"`
}

// Default returns the configuration used when no config file is given.
func Default() *ProfileConfig {
	return &ProfileConfig{}
}

// Thresholds resolves the effective classification thresholds, applying
// overrides on top of the defaults.
func (c *ProfileConfig) Thresholds() classify.Thresholds {
	th := classify.DefaultThresholds()
	o := c.Profile.Thresholds

	if o.RunTimePercent != nil {
		th.RunTimePercent = *o.RunTimePercent
	}
	if o.CPUPerHitMicros != nil {
		th.CPUPerHitMicros = *o.CPUPerHitMicros
	}
	if o.LoopHits != nil {
		th.LoopHits = *o.LoopHits
	}
	if o.LoopPerHitMicros != nil {
		th.LoopPerHitMicros = *o.LoopPerHitMicros
	}
	if o.MemoryFraction != nil {
		th.MemoryFraction = *o.MemoryFraction
	}
	if o.LexicalLoopPerHitMicros != nil {
		th.LexicalLoopPerHitMicros = *o.LexicalLoopPerHitMicros
	}

	return th
}
