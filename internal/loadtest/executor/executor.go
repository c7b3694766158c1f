// Package executor provides the load generation strategy for a run.
package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wesleyorama2/signupload/internal/loadtest"
	"github.com/wesleyorama2/signupload/internal/loadtest/metrics"
)

// Type identifies the type of executor.
type Type string

const (
	// TypeRampingVUs ramps VU count up and down according to stages.
	TypeRampingVUs Type = "ramping-vus"
)

// DefaultGracefulStop is how long in-flight iterations may run once the
// schedule has ended.
const DefaultGracefulStop = 30 * time.Second

// Executor defines the interface for load generation strategies.
type Executor interface {
	// Type returns the executor type.
	Type() Type

	// Init initializes the executor with configuration.
	// Called once before Run().
	Init(ctx context.Context, config *Config) error

	// Run starts the executor and blocks until completion.
	Run(ctx context.Context, scheduler *loadtest.VUScheduler, registry *metrics.Registry) error

	// GetProgress returns current progress (0.0 to 1.0).
	GetProgress() float64

	// GetActiveVUs returns current active VU count.
	GetActiveVUs() int

	// GetStats returns executor-specific statistics.
	GetStats() *Stats

	// Stop ends the schedule early, still honouring the graceful stop.
	Stop(ctx context.Context) error
}

// New returns an uninitialized executor of the given type.
func New(t Type) (Executor, error) {
	switch t {
	case TypeRampingVUs, "":
		return NewRampingVUs(), nil
	default:
		return nil, fmt.Errorf("unknown executor type: %s", t)
	}
}

// Config contains configuration for an executor.
type Config struct {
	// Name is the name of this executor instance
	Name string `json:"name" yaml:"name"`

	// Type is the executor type
	Type Type `json:"type" yaml:"type"`

	// Stages is the concurrency schedule
	Stages []Stage `json:"stages,omitempty" yaml:"stages,omitempty"`

	// Graceful stop timeout
	GracefulStop time.Duration `json:"gracefulStop,omitempty" yaml:"gracefulStop,omitempty"`

	// Tick is how often the target VU count is recomputed (default 100ms)
	Tick time.Duration `json:"-" yaml:"-"`
}

// Stage defines one segment of the concurrency schedule.
type Stage struct {
	// Duration of this stage
	Duration time.Duration `json:"duration" yaml:"duration"`

	// Target VU count reached at the end of the stage
	Target int `json:"target" yaml:"target"`

	// Optional name for this stage (for reporting)
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Stats contains real-time executor statistics.
type Stats struct {
	// Timing
	StartTime     time.Time     `json:"startTime"`
	CurrentTime   time.Time     `json:"currentTime"`
	Elapsed       time.Duration `json:"elapsed"`
	TotalDuration time.Duration `json:"totalDuration"`

	// VU stats
	ActiveVUs int `json:"activeVUs"`
	TargetVUs int `json:"targetVUs"`

	Iterations int64 `json:"iterations"`

	// Stage info
	CurrentStage     int           `json:"currentStage"`
	CurrentStageName string        `json:"currentStageName"`
	TotalStages      int           `json:"totalStages"`
	Phase            metrics.Phase `json:"phase"`
}

// Validate validates the executor configuration.
func (c *Config) Validate() error {
	if c.Type != TypeRampingVUs {
		return &ValidationError{Field: "type", Message: "unknown executor type: " + string(c.Type)}
	}
	if len(c.Stages) == 0 {
		return &ValidationError{Field: "stages", Message: "at least one stage is required"}
	}
	for i, stage := range c.Stages {
		if stage.Duration <= 0 {
			return &ValidationError{Field: fmt.Sprintf("stages[%d].duration", i), Message: "duration must be > 0"}
		}
		if stage.Target < 0 {
			return &ValidationError{Field: fmt.Sprintf("stages[%d].target", i), Message: "target must be >= 0"}
		}
	}
	if c.GracefulStop < 0 {
		return &ValidationError{Field: "gracefulStop", Message: "gracefulStop must be >= 0"}
	}
	return nil
}

// TotalDuration is the sum of all stage durations.
func (c *Config) TotalDuration() time.Duration {
	var total time.Duration
	for _, stage := range c.Stages {
		total += stage.Duration
	}
	return total
}

// MaxTarget is the highest VU count any stage reaches.
func (c *Config) MaxTarget() int {
	max := 0
	for _, stage := range c.Stages {
		if stage.Target > max {
			max = stage.Target
		}
	}
	return max
}

// String renders the schedule as "1m0s:10,5m0s:10,1m0s:0".
func (c *Config) String() string {
	parts := make([]string, len(c.Stages))
	for i, stage := range c.Stages {
		parts[i] = fmt.Sprintf("%s:%d", stage.Duration, stage.Target)
	}
	return strings.Join(parts, ",")
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "validation error on field '" + e.Field + "': " + e.Message
}
