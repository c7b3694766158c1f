package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/signupload/internal/loadtest/executor"
)

// LoadConfig loads a test configuration from a file.
//
// The file format is determined by extension:
//   - .yaml, .yml -> YAML
//   - .json -> JSON
func LoadConfig(path string) (*TestConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(data, path)
}

// ParseConfig parses configuration data.
//
// The format is determined by the file extension in path, or defaults to YAML
// if the path is empty or has an unknown extension.
func ParseConfig(data []byte, path string) (*TestConfig, error) {
	var config TestConfig

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config (unknown format %s): %w", ext, err)
		}
	}

	return &config, nil
}

// ParseDurationString parses a duration string with support for common formats.
//
// Supported formats:
//   - Standard Go duration: "30s", "2m", "1h30m", "500ms"
//   - Seconds as integer: "30" (treated as 30 seconds)
func ParseDurationString(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}

	seconds, err := strconv.Atoi(s)
	if err == nil {
		return time.Duration(seconds) * time.Second, nil
	}

	return 0, fmt.Errorf("invalid duration format: %s", s)
}

// ParseStages parses a compact schedule such as "1m:10,5m:10,1m:0".
func ParseStages(schedule string) ([]StageConfig, error) {
	var stages []StageConfig

	for i, part := range strings.Split(schedule, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		colonIdx := strings.LastIndex(part, ":")
		if colonIdx == -1 {
			return nil, fmt.Errorf("stage %d: expected 'duration:target' format, got '%s'", i+1, part)
		}

		durationStr := part[:colonIdx]
		targetStr := part[colonIdx+1:]

		if _, err := ParseDurationString(durationStr); err != nil {
			return nil, fmt.Errorf("stage %d: invalid duration '%s': %w", i+1, durationStr, err)
		}

		target, err := strconv.Atoi(targetStr)
		if err != nil {
			return nil, fmt.Errorf("stage %d: invalid target '%s': %w", i+1, targetStr, err)
		}

		stages = append(stages, StageConfig{
			Duration: durationStr,
			Target:   target,
			Name:     fmt.Sprintf("stage-%d", i+1),
		})
	}

	if len(stages) == 0 {
		return nil, fmt.Errorf("at least one stage is required")
	}

	return stages, nil
}

// ApplyDefaults applies default values to a TestConfig.
func ApplyDefaults(config *TestConfig) {
	if config.Name == "" {
		if config.Profile != "" {
			config.Name = config.Profile
		} else {
			config.Name = "baseline"
		}
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.ThinkTime == 0 {
		config.ThinkTime = Duration(time.Second)
	}
	if config.ReportsDir == "" {
		config.ReportsDir = "reports"
	}
	if config.GracefulStop == 0 {
		config.GracefulStop = Duration(executor.DefaultGracefulStop)
	}

	if config.Settings.Timeout == 0 {
		config.Settings.Timeout = Duration(30 * time.Second)
	}
	if config.Settings.MaxIdleConnsPerHost == 0 {
		config.Settings.MaxIdleConnsPerHost = 100
	}
	if config.Settings.UserAgent == "" {
		config.Settings.UserAgent = DefaultUserAgent
	}

	for i := range config.Stages {
		if config.Stages[i].Name == "" {
			config.Stages[i].Name = fmt.Sprintf("stage-%d", i+1)
		}
	}

	if config.Metadata.TestType == "" {
		config.Metadata.TestType = "Load Test"
	}
	if config.Metadata.DurationText == "" {
		config.Metadata.DurationText = DescribeStages(config.Stages)
	}
}

// ToExecutorConfig converts the schedule into a ramping-vus executor config.
func (c *TestConfig) ToExecutorConfig() (*executor.Config, error) {
	stages := make([]executor.Stage, 0, len(c.Stages))
	for i, s := range c.Stages {
		d, err := ParseDurationString(s.Duration)
		if err != nil {
			return nil, fmt.Errorf("stages[%d]: %w", i, err)
		}
		stages = append(stages, executor.Stage{Duration: d, Target: s.Target, Name: s.Name})
	}

	return &executor.Config{
		Name:         c.Name,
		Type:         executor.TypeRampingVUs,
		Stages:       stages,
		GracefulStop: time.Duration(c.GracefulStop),
	}, nil
}

// MaxVUs returns the peak concurrency of the schedule.
func (c *TestConfig) MaxVUs() int {
	max := 0
	for _, s := range c.Stages {
		if s.Target > max {
			max = s.Target
		}
	}
	return max
}

// TotalDuration returns the sum of all stage durations. Unparsable stages
// count as zero; Validate reports them.
func (c *TestConfig) TotalDuration() time.Duration {
	var total time.Duration
	for _, s := range c.Stages {
		d, _ := ParseDurationString(s.Duration)
		total += d
	}
	return total
}

// DescribeStages renders a schedule for humans, e.g.
// "7m0s (1m0s ramp up, 5m0s steady, 1m0s ramp down)".
func DescribeStages(stages []StageConfig) string {
	if len(stages) == 0 {
		return ""
	}

	var total time.Duration
	parts := make([]string, 0, len(stages))
	prev := 0
	for _, s := range stages {
		d, _ := ParseDurationString(s.Duration)
		total += d

		kind := "steady"
		switch {
		case s.Target > prev:
			kind = "ramp up"
		case s.Target < prev:
			kind = "ramp down"
		}
		parts = append(parts, fmt.Sprintf("%s %s", d, kind))
		prev = s.Target
	}

	return fmt.Sprintf("%s (%s)", total, strings.Join(parts, ", "))
}
