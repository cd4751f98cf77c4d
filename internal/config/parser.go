package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"nbprof/internal/logging"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads and validates the optional YAML configuration,
// expanding ${VAR} references from the environment first.
func LoadConfig(filepath string) (*ProfileConfig, error) {
	logger := logging.GetLogger()

	data, err := os.ReadFile(filepath)
	if err != nil {
		logger.WithField("filepath", filepath).WithError(err).Error("Failed to read config file")
		return nil, err
	}

	expanded := expandEnvVars(string(data))

	var config ProfileConfig
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		logger.WithField("filepath", filepath).WithError(err).Error("Failed to parse config file")
		return nil, err
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

func expandEnvVars(content string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(content, func(match string) string {
		envVar := strings.Trim(match, "${}")
		if value := os.Getenv(envVar); value != "" {
			return value
		}
		return match
	})
}

func validateConfig(config *ProfileConfig) error {
	th := config.Profile.Thresholds

	if th.RunTimePercent != nil && (*th.RunTimePercent <= 0 || *th.RunTimePercent > 100) {
		return fmt.Errorf("run_time_percent must be in (0, 100]")
	}
	if th.CPUPerHitMicros != nil && *th.CPUPerHitMicros <= 0 {
		return fmt.Errorf("cpu_per_hit_micros must be greater than 0")
	}
	if th.LoopHits != nil && *th.LoopHits <= 0 {
		return fmt.Errorf("loop_hits must be greater than 0")
	}
	if th.LoopPerHitMicros != nil && *th.LoopPerHitMicros <= 0 {
		return fmt.Errorf("loop_per_hit_micros must be greater than 0")
	}
	if th.MemoryFraction != nil && (*th.MemoryFraction <= 0 || *th.MemoryFraction > 1) {
		return fmt.Errorf("memory_fraction must be in (0, 1]")
	}
	if th.LexicalLoopPerHitMicros != nil && *th.LexicalLoopPerHitMicros <= 0 {
		return fmt.Errorf("lexical_loop_per_hit_micros must be greater than 0")
	}

	if config.Profile.Export.Enabled {
		db := config.Profile.Export.DB
		if db.Host == "" || db.Bucket == "" || db.Token == "" || db.Org == "" {
			return fmt.Errorf("incomplete export database configuration")
		}
	}

	return nil
}
