// Package metrics provides the named metric types virtual users write into
// during a run and the registry that snapshots them at the end.
//
// Four metric types exist:
//   - Counter: monotonically increasing sum (http_reqs, iterations)
//   - Gauge: last written value with min/max (vus)
//   - Rate: fraction of true values (http_req_failed, checks, errors)
//   - Trend: distribution of values in milliseconds (http_req_duration)
//
// # Thread Safety
//
// Every metric is safe for concurrent writers. Counters, gauges and rates
// are lock-free; trends hold a mutex around their HDR histogram.
package metrics

import (
	"fmt"
	"sort"
	"sync"
	"time"

	lhttp "github.com/wesleyorama2/signupload/internal/http"
)

// Type identifies the kind of a metric.
type Type string

const (
	TypeCounter Type = "counter"
	TypeGauge   Type = "gauge"
	TypeRate    Type = "rate"
	TypeTrend   Type = "trend"
)

// ValueType describes what the values of a metric measure.
type ValueType string

const (
	ContainsDefault ValueType = "default"
	ContainsTime    ValueType = "time"
	ContainsData    ValueType = "data"
)

// Built-in metric names.
const (
	HTTPReqs          = "http_reqs"
	HTTPReqDuration   = "http_req_duration"
	HTTPReqFailed     = "http_req_failed"
	DataReceived      = "data_received"
	Iterations        = "iterations"
	IterationDuration = "iteration_duration"
	Checks            = "checks"
	VUs               = "vus"
	VUsMax            = "vus_max"
)

// Sample is the serializable end-of-run view of one metric.
type Sample struct {
	Type     Type               `json:"type"`
	Contains ValueType          `json:"contains"`
	Values   map[string]float64 `json:"values"`
}

// Metric is implemented by every metric type.
type Metric interface {
	Name() string
	Type() Type
	Sample(elapsed time.Duration) Sample
}

// Registry owns all metrics of a run.
//
// Built-in metrics are created by NewRegistry and exposed as fields so the hot
// path never takes the registry lock. Custom metrics are created on demand.
type Registry struct {
	HTTPReqs          *Counter
	HTTPReqDuration   *Trend
	HTTPReqFailed     *Rate
	DataReceived      *Counter
	Iterations        *Counter
	IterationDuration *Trend
	Checks            *Rate
	VUs               *Gauge
	VUsMax            *Gauge

	mu      sync.RWMutex
	metrics map[string]Metric

	// Per-request-name duration trends
	requests   map[string]*Trend
	requestsMu sync.RWMutex

	phases *PhaseTracker

	startTime time.Time
	config    Config
}

// Config contains configuration for the registry.
type Config struct {
	// HistogramMin is the minimum recordable value in microseconds (default: 1)
	HistogramMin int64

	// HistogramMax is the maximum recordable value in microseconds (default: 1 hour)
	HistogramMax int64

	// HistogramSigFigs is the number of significant figures (default: 3)
	HistogramSigFigs int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		HistogramMin:     1,
		HistogramMax:     3600000000,
		HistogramSigFigs: 3,
	}
}

// NewRegistry creates a registry with the built-in metrics registered.
func NewRegistry() *Registry {
	return NewRegistryWithConfig(DefaultConfig())
}

// NewRegistryWithConfig creates a registry with custom histogram settings.
func NewRegistryWithConfig(config Config) *Registry {
	r := &Registry{
		metrics:   make(map[string]Metric),
		requests:  make(map[string]*Trend),
		phases:    NewPhaseTracker(),
		startTime: time.Now(),
		config:    config,
	}

	r.HTTPReqs = r.mustRegister(NewCounter(HTTPReqs, ContainsDefault)).(*Counter)
	r.HTTPReqDuration = r.mustRegister(r.newTrend(HTTPReqDuration)).(*Trend)
	r.HTTPReqFailed = r.mustRegister(NewRate(HTTPReqFailed)).(*Rate)
	r.DataReceived = r.mustRegister(NewCounter(DataReceived, ContainsData)).(*Counter)
	r.Iterations = r.mustRegister(NewCounter(Iterations, ContainsDefault)).(*Counter)
	r.IterationDuration = r.mustRegister(r.newTrend(IterationDuration)).(*Trend)
	r.Checks = r.mustRegister(NewRate(Checks)).(*Rate)
	r.VUs = r.mustRegister(NewGauge(VUs)).(*Gauge)
	r.VUsMax = r.mustRegister(NewGauge(VUsMax)).(*Gauge)

	return r
}

func (r *Registry) newTrend(name string) *Trend {
	return NewTrend(name, r.config.HistogramMin, r.config.HistogramMax, r.config.HistogramSigFigs)
}

func (r *Registry) mustRegister(m Metric) Metric {
	got, err := r.register(m)
	if err != nil {
		panic(err)
	}
	return got
}

// register adds m, or returns the existing metric of the same name and type.
func (r *Registry) register(m Metric) (Metric, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.metrics[m.Name()]; ok {
		if existing.Type() != m.Type() {
			return nil, fmt.Errorf("metric %q already registered as %s, not %s", m.Name(), existing.Type(), m.Type())
		}
		return existing, nil
	}

	r.metrics[m.Name()] = m
	return m, nil
}

// NewRate returns the rate metric called name, creating it if needed.
func (r *Registry) NewRate(name string) (*Rate, error) {
	m, err := r.register(NewRate(name))
	if err != nil {
		return nil, err
	}
	return m.(*Rate), nil
}

// NewTrend returns the trend metric called name, creating it if needed.
func (r *Registry) NewTrend(name string) (*Trend, error) {
	m, err := r.register(r.newTrend(name))
	if err != nil {
		return nil, err
	}
	return m.(*Trend), nil
}

// NewCounter returns the counter metric called name, creating it if needed.
func (r *Registry) NewCounter(name string) (*Counter, error) {
	m, err := r.register(NewCounter(name, ContainsDefault))
	if err != nil {
		return nil, err
	}
	return m.(*Counter), nil
}

// Get looks up a metric by name.
func (r *Registry) Get(name string) (Metric, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.metrics[name]
	return m, ok
}

// Names returns all registered metric names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.metrics))
	for name := range r.metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RecordRequest implements the HTTP client's Sink.
//
// Every completed request feeds http_reqs, http_req_duration, http_req_failed
// and data_received exactly once.
func (r *Registry) RecordRequest(name string, status int, duration time.Duration, bytes int64, err error) {
	ms := float64(duration) / float64(time.Millisecond)

	r.HTTPReqs.Add(1)
	r.HTTPReqDuration.Add(ms)
	r.HTTPReqFailed.Add(lhttp.IsFailure(status, err))
	r.DataReceived.Add(float64(bytes))

	if name != "" {
		r.requestTrend(name).Add(ms)
	}
}

func (r *Registry) requestTrend(name string) *Trend {
	r.requestsMu.RLock()
	t, ok := r.requests[name]
	r.requestsMu.RUnlock()
	if ok {
		return t
	}

	r.requestsMu.Lock()
	defer r.requestsMu.Unlock()
	if t, ok = r.requests[name]; !ok {
		t = r.newTrend(name)
		r.requests[name] = t
	}
	return t
}

// RecordIteration records one finished iteration.
func (r *Registry) RecordIteration(duration time.Duration) {
	r.Iterations.Add(1)
	r.IterationDuration.Add(float64(duration) / float64(time.Millisecond))
}

// SetActiveVUs updates the vus gauge and raises vus_max when exceeded.
func (r *Registry) SetActiveVUs(count int) {
	r.VUs.Set(float64(count))
	if float64(count) > r.VUsMax.Value() {
		r.VUsMax.Set(float64(count))
	}
}

// Phases returns the phase tracker of the run.
func (r *Registry) Phases() *PhaseTracker {
	return r.phases
}

// Elapsed returns the time since the registry was created.
func (r *Registry) Elapsed() time.Duration {
	return time.Since(r.startTime)
}

// StartTime returns when the registry was created.
func (r *Registry) StartTime() time.Time {
	return r.startTime
}

// Snapshot returns the samples of all metrics keyed by name.
func (r *Registry) Snapshot() map[string]Sample {
	elapsed := r.Elapsed()

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Sample, len(r.metrics))
	for name, m := range r.metrics {
		out[name] = m.Sample(elapsed)
	}
	return out
}

// RequestSnapshot returns per-request-name duration samples.
func (r *Registry) RequestSnapshot() map[string]Sample {
	elapsed := r.Elapsed()

	r.requestsMu.RLock()
	defer r.requestsMu.RUnlock()

	out := make(map[string]Sample, len(r.requests))
	for name, t := range r.requests {
		out[name] = t.Sample(elapsed)
	}
	return out
}
