package metrics

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Counter is a monotonically increasing sum.
type Counter struct {
	name     string
	contains ValueType
	bits     atomic.Uint64
}

// NewCounter creates a counter.
func NewCounter(name string, contains ValueType) *Counter {
	return &Counter{name: name, contains: contains}
}

func (c *Counter) Name() string { return c.name }
func (c *Counter) Type() Type   { return TypeCounter }

// Add adds v to the counter.
func (c *Counter) Add(v float64) {
	for {
		old := c.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + v)
		if c.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

// Value returns the current sum.
func (c *Counter) Value() float64 {
	return math.Float64frombits(c.bits.Load())
}

// Sample implements Metric. rate is per second of elapsed run time.
func (c *Counter) Sample(elapsed time.Duration) Sample {
	count := c.Value()
	rate := 0.0
	if elapsed > 0 {
		rate = count / elapsed.Seconds()
	}
	return Sample{
		Type:     TypeCounter,
		Contains: c.contains,
		Values:   map[string]float64{"count": count, "rate": rate},
	}
}

// Gauge holds the last written value.
type Gauge struct {
	name string
	mu   sync.Mutex
	set  bool
	val  float64
	min  float64
	max  float64
}

// NewGauge creates a gauge.
func NewGauge(name string) *Gauge {
	return &Gauge{name: name}
}

func (g *Gauge) Name() string { return g.name }
func (g *Gauge) Type() Type   { return TypeGauge }

// Set stores v.
func (g *Gauge) Set(v float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.set || v < g.min {
		g.min = v
	}
	if !g.set || v > g.max {
		g.max = v
	}
	g.val = v
	g.set = true
}

// Value returns the last written value.
func (g *Gauge) Value() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.val
}

// Sample implements Metric.
func (g *Gauge) Sample(time.Duration) Sample {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Sample{
		Type:     TypeGauge,
		Contains: ContainsDefault,
		Values:   map[string]float64{"value": g.val, "min": g.min, "max": g.max},
	}
}

// Rate tracks the fraction of added values that were true.
type Rate struct {
	name   string
	trues  atomic.Int64
	totals atomic.Int64
}

// NewRate creates a rate.
func NewRate(name string) *Rate {
	return &Rate{name: name}
}

func (r *Rate) Name() string { return r.name }
func (r *Rate) Type() Type   { return TypeRate }

// Add records one boolean observation.
func (r *Rate) Add(v bool) {
	if v {
		r.trues.Add(1)
	}
	r.totals.Add(1)
}

// Passes returns how many observations were true.
func (r *Rate) Passes() int64 { return r.trues.Load() }

// Total returns the number of observations.
func (r *Rate) Total() int64 { return r.totals.Load() }

// Value returns trues/total, or 0 when nothing was recorded.
func (r *Rate) Value() float64 {
	total := r.totals.Load()
	if total == 0 {
		return 0
	}
	return float64(r.trues.Load()) / float64(total)
}

// Sample implements Metric.
//
// passes counts true observations and fails counts false ones. For failure
// rates such as http_req_failed, passes therefore holds the failed requests.
func (r *Rate) Sample(time.Duration) Sample {
	trues := r.trues.Load()
	total := r.totals.Load()
	rate := 0.0
	if total > 0 {
		rate = float64(trues) / float64(total)
	}
	return Sample{
		Type:     TypeRate,
		Contains: ContainsDefault,
		Values: map[string]float64{
			"rate":   rate,
			"passes": float64(trues),
			"fails":  float64(total - trues),
		},
	}
}

// Trend records a distribution of millisecond values.
//
// Count, sum, min and max are exact. Percentiles come from an HDR histogram
// with microsecond resolution.
type Trend struct {
	name string

	mu    sync.Mutex
	hist  *hdrhistogram.Histogram
	count int64
	sum   float64
	min   float64
	max   float64

	histMin int64
	histMax int64
}

// NewTrend creates a trend. histMin/histMax are in microseconds.
func NewTrend(name string, histMin, histMax int64, sigFigs int) *Trend {
	return &Trend{
		name:    name,
		hist:    hdrhistogram.New(histMin, histMax, sigFigs),
		histMin: histMin,
		histMax: histMax,
	}
}

func (t *Trend) Name() string { return t.name }
func (t *Trend) Type() Type   { return TypeTrend }

// Add records a value in milliseconds.
func (t *Trend) Add(ms float64) {
	micros := int64(ms * 1000)
	if micros < t.histMin {
		micros = t.histMin
	}
	if micros > t.histMax {
		micros = t.histMax
	}

	// HDR histogram RecordValue is NOT thread-safe
	t.mu.Lock()
	defer t.mu.Unlock()

	t.hist.RecordValue(micros)
	if t.count == 0 || ms < t.min {
		t.min = ms
	}
	if t.count == 0 || ms > t.max {
		t.max = ms
	}
	t.count++
	t.sum += ms
}

// Count returns the number of recorded values.
func (t *Trend) Count() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Percentile returns the q-th percentile (0-100) in milliseconds.
func (t *Trend) Percentile(q float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.percentile(q)
}

func (t *Trend) percentile(q float64) float64 {
	if t.count == 0 {
		return 0
	}
	return float64(t.hist.ValueAtQuantile(q)) / 1000
}

// Avg returns the exact mean in milliseconds.
func (t *Trend) Avg() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.count == 0 {
		return 0
	}
	return t.sum / float64(t.count)
}

// Sample implements Metric.
func (t *Trend) Sample(time.Duration) Sample {
	t.mu.Lock()
	defer t.mu.Unlock()

	avg := 0.0
	if t.count > 0 {
		avg = t.sum / float64(t.count)
	}

	return Sample{
		Type:     TypeTrend,
		Contains: ContainsTime,
		Values: map[string]float64{
			"count": float64(t.count),
			"avg":   avg,
			"min":   t.min,
			"max":   t.max,
			"med":   t.percentile(50),
			"p(90)": t.percentile(90),
			"p(95)": t.percentile(95),
			"p(99)": t.percentile(99),
		},
	}
}
