package config

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/wesleyorama2/signupload/internal/loadtest/metrics"
)

// Test names end up in report file names.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Validate validates the entire test configuration.
//
// Returns nil if valid, or a *ValidationErrors containing all validation errors.
func (c *TestConfig) Validate() error {
	errs := &ValidationErrors{}

	if c.Name != "" && !namePattern.MatchString(c.Name) {
		errs.Add("name", "name may only contain letters, digits, '.', '_' and '-'")
	}

	if c.Profile != "" {
		if _, ok := Profiles()[c.Profile]; !ok {
			errs.Add("profile", fmt.Sprintf("unknown profile: %s", c.Profile))
		}
	}

	if c.BaseURL != "" {
		validateBaseURL(c.BaseURL, errs)
	}

	if len(c.Stages) == 0 {
		errs.Add("stages", "at least one stage is required")
	}
	for i, stage := range c.Stages {
		validateStage(fmt.Sprintf("stages[%d]", i), &stage, errs)
	}

	validateThresholds(c.Thresholds, errs)

	if c.ThinkTime < 0 {
		errs.Add("thinkTime", "thinkTime cannot be negative")
	}
	if c.GracefulStop < 0 {
		errs.Add("gracefulStop", "gracefulStop cannot be negative")
	}
	if c.Settings.Timeout < 0 {
		errs.Add("settings.timeout", "timeout cannot be negative")
	}
	if c.Settings.MaxIdleConnsPerHost < 0 {
		errs.Add("settings.maxIdleConnsPerHost", "maxIdleConnsPerHost cannot be negative")
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateBaseURL(raw string, errs *ValidationErrors) {
	u, err := url.Parse(raw)
	if err != nil {
		errs.Add("baseUrl", fmt.Sprintf("invalid URL: %v", err))
		return
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		errs.Add("baseUrl", "scheme must be http or https")
	}
	if u.Host == "" {
		errs.Add("baseUrl", "host is required")
	}
}

// validateStage validates a single stage configuration.
func validateStage(prefix string, stage *StageConfig, errs *ValidationErrors) {
	if stage.Duration == "" {
		errs.Add(prefix+".duration", "duration is required")
	} else if d, err := ParseDurationString(stage.Duration); err != nil {
		errs.Add(prefix+".duration", fmt.Sprintf("invalid duration: %v", err))
	} else if d <= 0 {
		errs.Add(prefix+".duration", "duration must be greater than 0")
	}

	if stage.Target < 0 {
		errs.Add(prefix+".target", "target cannot be negative")
	}
}

// validateThresholds parses every expression, in metric name order.
func validateThresholds(thresholds map[string][]string, errs *ValidationErrors) {
	names := make([]string, 0, len(thresholds))
	for name := range thresholds {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if name == "" {
			errs.Add("thresholds", "metric name cannot be empty")
			continue
		}
		for i, expr := range thresholds[name] {
			if _, err := metrics.ParseThreshold(expr); err != nil {
				errs.Add(fmt.Sprintf("thresholds.%s[%d]", name, i), err.Error())
			}
		}
	}
}
