// Package config provides configuration parsing and validation for a signup
// load test run.
package config

import (
	"time"
)

// DefaultBaseURL is the target used when neither file nor flag sets one.
const DefaultBaseURL = "https://app-stg.swiftassess.com"

// DefaultUserAgent is the browser User-Agent sent with the signup form.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// TestConfig is the root configuration for a load test run.
//
// Example YAML:
//
//	name: baseline
//	profile: baseline
//	baseUrl: https://app-stg.swiftassess.com
//	stages:
//	  - duration: 1m
//	    target: 10
//	  - duration: 5m
//	    target: 10
//	  - duration: 1m
//	    target: 0
//	thresholds:
//	  http_req_duration: ["p(95)<2000"]
//	  http_req_failed: ["rate<0.01"]
//	  errors: ["rate<0.01"]
type TestConfig struct {
	// Name of the test; report files are named after it
	Name string `json:"name" yaml:"name"`

	// Profile is the built-in profile this config started from (optional)
	Profile string `json:"profile,omitempty" yaml:"profile,omitempty"`

	// BaseURL is the target application
	BaseURL string `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`

	// Stages is the concurrency schedule
	Stages []StageConfig `json:"stages" yaml:"stages"`

	// Thresholds maps a metric name to pass/fail expressions
	Thresholds map[string][]string `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`

	// ThinkTime is the pacing unit between journey steps (default 1s)
	ThinkTime Duration `json:"thinkTime,omitempty" yaml:"thinkTime,omitempty"`

	// Seed for profile selection; 0 means seeded from the clock
	Seed int64 `json:"seed,omitempty" yaml:"seed,omitempty"`

	// ReportsDir is where the results and HTML report are written
	ReportsDir string `json:"reportsDir,omitempty" yaml:"reportsDir,omitempty"`

	// GracefulStop is how long in-flight iterations may run after the schedule
	GracefulStop Duration `json:"gracefulStop,omitempty" yaml:"gracefulStop,omitempty"`

	// Settings contains HTTP settings
	Settings Settings `json:"settings,omitempty" yaml:"settings,omitempty"`

	// Metadata is the static description printed in the report
	Metadata Metadata `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// StageConfig defines a single stage of the schedule.
type StageConfig struct {
	// Duration of this stage (e.g., "30s", "2m")
	Duration string `json:"duration" yaml:"duration"`

	// Target VU count at the end of the stage
	Target int `json:"target" yaml:"target"`

	// Name is an optional name for this stage (for reporting)
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Settings contains HTTP client settings.
type Settings struct {
	// Timeout is the HTTP request timeout
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// InsecureSkipVerify skips TLS certificate verification
	InsecureSkipVerify bool `json:"insecureSkipVerify,omitempty" yaml:"insecureSkipVerify,omitempty"`

	// UserAgent is sent with every request
	UserAgent string `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`

	// MaxIdleConnsPerHost limits idle connections per host
	MaxIdleConnsPerHost int `json:"maxIdleConnsPerHost,omitempty" yaml:"maxIdleConnsPerHost,omitempty"`
}

// Metadata describes the test in the report's analysis block.
type Metadata struct {
	TestType     string `json:"testType,omitempty" yaml:"testType,omitempty"`
	Objective    string `json:"objective,omitempty" yaml:"objective,omitempty"`
	DurationText string `json:"durationText,omitempty" yaml:"durationText,omitempty"`
}

// Duration is a time.Duration that can be unmarshaled from JSON/YAML strings.
type Duration time.Duration

// GetDuration returns the duration or a default if empty.
func (d Duration) GetDuration(defaultValue time.Duration) time.Duration {
	if d == 0 {
		return defaultValue
	}
	return time.Duration(d)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	if s == "" || s == "null" {
		*d = 0
		return nil
	}

	dur, err := ParseDurationString(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	if s == "" {
		*d = 0
		return nil
	}

	dur, err := ParseDurationString(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}
