// Package engine provides the orchestrator for a load test run.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wesleyorama2/signupload/internal/loadtest"
	"github.com/wesleyorama2/signupload/internal/loadtest/check"
	"github.com/wesleyorama2/signupload/internal/loadtest/config"
	"github.com/wesleyorama2/signupload/internal/loadtest/executor"
	"github.com/wesleyorama2/signupload/internal/loadtest/metrics"
)

// Engine is the orchestrator for a load test run.
//
// It coordinates:
//   - Configuration validation
//   - The ramping-vus executor and its VU scheduler
//   - Metrics and checks collection
//   - Threshold evaluation
//
// Example usage:
//
//	eng, _ := engine.New(cfg)
//	journey := buildIteration(eng.Registry(), eng.Checks())
//	result, _ := eng.Run(ctx, journey)
//	fmt.Printf("Test passed: %v\n", result.Passed)
type Engine struct {
	config   *config.TestConfig
	registry *metrics.Registry
	checks   *check.Registry
	logger   zerolog.Logger

	httpConfig loadtest.HTTPClientConfig

	mu        sync.RWMutex
	executor  executor.Executor
	running   bool
	startTime time.Time
}

// Result contains the complete outcome of a run.
type Result struct {
	RunID     string        `json:"runId"`
	Name      string        `json:"name"`
	StartTime time.Time     `json:"startTime"`
	EndTime   time.Time     `json:"endTime"`
	Duration  time.Duration `json:"duration"`

	// Interrupted is set when the run was cancelled before the schedule ended
	Interrupted bool `json:"interrupted"`

	Metrics    map[string]metrics.Sample `json:"metrics"`
	Requests   map[string]metrics.Sample `json:"requests,omitempty"`
	Checks     []check.Result            `json:"checks"`
	Phases     []metrics.PhaseChange     `json:"phases,omitempty"`
	Thresholds []ThresholdResult         `json:"thresholds,omitempty"`
	Passed     bool                      `json:"passed"`
}

// ThresholdResult contains the result of a threshold evaluation.
type ThresholdResult struct {
	Metric     string  `json:"metric"`
	Expression string  `json:"expression"`
	Passed     bool    `json:"passed"`
	Value      float64 `json:"value"`
	Message    string  `json:"message,omitempty"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New validates cfg, applies defaults and creates the metric and check
// registries the iteration will write into.
func New(cfg *config.TestConfig, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	config.ApplyDefaults(cfg)

	registry := metrics.NewRegistry()

	e := &Engine{
		config:   cfg,
		registry: registry,
		checks:   check.NewRegistry(registry.Checks),
		logger:   zerolog.Nop(),
		httpConfig: loadtest.HTTPClientConfig{
			Timeout:             time.Duration(cfg.Settings.Timeout),
			MaxIdleConns:        1000,
			MaxIdleConnsPerHost: cfg.Settings.MaxIdleConnsPerHost,
			IdleConnTimeout:     90 * time.Second,
			InsecureSkipVerify:  cfg.Settings.InsecureSkipVerify,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Registry returns the metric registry of the run.
func (e *Engine) Registry() *metrics.Registry {
	return e.registry
}

// Checks returns the check registry of the run.
func (e *Engine) Checks() *check.Registry {
	return e.checks
}

// Config returns the effective configuration.
func (e *Engine) Config() *config.TestConfig {
	return e.config
}

// Run executes the schedule with iteration and returns the results.
//
// Cancelling ctx ends the schedule early; results gathered so far are still
// returned with Interrupted set.
func (e *Engine) Run(ctx context.Context, iteration loadtest.Iteration) (*Result, error) {
	execConfig, err := e.config.ToExecutorConfig()
	if err != nil {
		return nil, err
	}

	exec, err := executor.New(execConfig.Type)
	if err != nil {
		return nil, err
	}
	if err := exec.Init(ctx, execConfig); err != nil {
		return nil, fmt.Errorf("failed to initialize executor: %w", err)
	}

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, fmt.Errorf("engine is already running")
	}
	e.running = true
	e.executor = exec
	e.startTime = time.Now()
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	scheduler := loadtest.NewVUScheduler(iteration, e.registry, e.httpConfig, loadtest.WithLogger(e.logger))

	e.logger.Info().
		Str("name", e.config.Name).
		Str("base_url", e.config.BaseURL).
		Str("stages", execConfig.String()).
		Int("max_vus", execConfig.MaxTarget()).
		Msg("starting load test")

	runErr := exec.Run(ctx, scheduler, e.registry)
	if !scheduler.Shutdown(execConfig.GracefulStop) {
		e.logger.Warn().Msg("some virtual users did not stop in time")
	}

	result := e.buildResult(ctx.Err() != nil)

	e.logger.Info().
		Bool("passed", result.Passed).
		Dur("duration", result.Duration).
		Float64("http_reqs", e.registry.HTTPReqs.Value()).
		Msg("load test finished")

	return result, runErr
}

func (e *Engine) buildResult(interrupted bool) *Result {
	end := time.Now()
	thresholds := e.evaluateThresholds()

	passed := true
	for _, tr := range thresholds {
		if !tr.Passed {
			passed = false
			break
		}
	}

	return &Result{
		RunID:       uuid.NewString(),
		Name:        e.config.Name,
		StartTime:   e.startTime,
		EndTime:     end,
		Duration:    end.Sub(e.startTime),
		Interrupted: interrupted,
		Metrics:     e.registry.Snapshot(),
		Requests:    e.registry.RequestSnapshot(),
		Checks:      e.checks.Results(),
		Phases:      e.registry.Phases().History(),
		Thresholds:  thresholds,
		Passed:      passed,
	}
}

// evaluateThresholds evaluates all configured thresholds, in metric name order.
func (e *Engine) evaluateThresholds() []ThresholdResult {
	names := make([]string, 0, len(e.config.Thresholds))
	for name := range e.config.Thresholds {
		names = append(names, name)
	}
	sort.Strings(names)

	elapsed := e.registry.Elapsed()

	var results []ThresholdResult
	for _, name := range names {
		for _, expr := range e.config.Thresholds[name] {
			results = append(results, e.evaluateThreshold(name, expr, elapsed))
		}
	}
	return results
}

func (e *Engine) evaluateThreshold(name, expr string, elapsed time.Duration) ThresholdResult {
	result := ThresholdResult{Metric: name, Expression: expr}

	th, err := metrics.ParseThreshold(expr)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse expression: %v", err)
		return result
	}

	m, ok := e.registry.Get(name)
	if !ok {
		result.Message = fmt.Sprintf("metric %s was never recorded", name)
		return result
	}

	actual, passed, err := th.Evaluate(m, elapsed)
	if err != nil {
		result.Message = err.Error()
		return result
	}

	result.Value = actual
	result.Passed = passed
	if !passed {
		result.Message = fmt.Sprintf("%s is %.4f, threshold: %s", th.Aggregation, actual, expr)
	}
	return result
}

// IsRunning returns true if the engine is currently running.
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Stop ends the schedule early. Run returns once the graceful stop is over.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.RLock()
	exec := e.executor
	running := e.running
	e.mu.RUnlock()

	if !running || exec == nil {
		return nil
	}
	return exec.Stop(ctx)
}

// GetProgress returns the run progress (0.0 to 1.0).
func (e *Engine) GetProgress() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.executor == nil {
		return 0.0
	}
	return e.executor.GetProgress()
}

// GetStats returns current executor stats, or nil before Run.
func (e *Engine) GetStats() *executor.Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.executor == nil {
		return nil
	}
	return e.executor.GetStats()
}
