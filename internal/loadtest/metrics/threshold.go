package metrics

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// thresholdPattern matches "p(95)<2000", "p99 <= 3000", "rate < 0.01", "avg<=200", "count>1000".
var thresholdPattern = regexp.MustCompile(`^([a-z]+\d*(?:\.\d+)?(?:\(\d+(?:\.\d+)?\))?)\s*(<=|>=|==|!=|<|>)\s*([-+]?\d+(?:\.\d+)?)$`)

// shorthand percentile names such as p95.
var shortPercentile = regexp.MustCompile(`^p(\d+(?:\.\d+)?)$`)

// Threshold is a parsed pass/fail expression over one aggregation of a metric.
// Trend values are compared in milliseconds.
type Threshold struct {
	Source      string
	Aggregation string
	Operator    string
	Value       float64

	// percentile is set for p(N) aggregations
	percentile float64
}

// ParseThreshold parses a threshold expression.
func ParseThreshold(expr string) (*Threshold, error) {
	src := strings.TrimSpace(expr)
	if src == "" {
		return nil, fmt.Errorf("threshold expression cannot be empty")
	}

	m := thresholdPattern.FindStringSubmatch(src)
	if m == nil {
		return nil, fmt.Errorf("invalid threshold expression %q", expr)
	}

	value, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid threshold value %q: %w", m[3], err)
	}

	t := &Threshold{Source: src, Aggregation: m[1], Operator: m[2], Value: value}

	if sm := shortPercentile.FindStringSubmatch(t.Aggregation); sm != nil {
		t.Aggregation = "p(" + sm[1] + ")"
	}

	switch {
	case strings.HasPrefix(t.Aggregation, "p("):
		p, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimPrefix(t.Aggregation, "p("), ")"), 64)
		if err != nil || p < 0 || p > 100 {
			return nil, fmt.Errorf("invalid percentile in %q", expr)
		}
		t.percentile = p
	case t.Aggregation == "avg", t.Aggregation == "min", t.Aggregation == "max",
		t.Aggregation == "med", t.Aggregation == "rate", t.Aggregation == "count",
		t.Aggregation == "value":
	default:
		return nil, fmt.Errorf("unknown aggregation %q in %q", t.Aggregation, expr)
	}

	return t, nil
}

// supports reports whether the aggregation applies to metrics of type mt.
func (t *Threshold) supports(mt Type) bool {
	switch mt {
	case TypeTrend:
		return strings.HasPrefix(t.Aggregation, "p(") || t.Aggregation == "avg" ||
			t.Aggregation == "min" || t.Aggregation == "max" || t.Aggregation == "med"
	case TypeRate:
		return t.Aggregation == "rate"
	case TypeCounter:
		return t.Aggregation == "count" || t.Aggregation == "rate"
	case TypeGauge:
		return t.Aggregation == "value" || t.Aggregation == "min" || t.Aggregation == "max"
	}
	return false
}

// Evaluate reads the aggregation from m and compares it.
func (t *Threshold) Evaluate(m Metric, elapsed time.Duration) (actual float64, passed bool, err error) {
	if !t.supports(m.Type()) {
		return 0, false, fmt.Errorf("%s is not supported on %s metric %s", t.Aggregation, m.Type(), m.Name())
	}

	if trend, ok := m.(*Trend); ok && strings.HasPrefix(t.Aggregation, "p(") {
		actual = trend.Percentile(t.percentile)
	} else {
		actual = m.Sample(elapsed).Values[t.Aggregation]
	}

	return actual, compareValues(actual, t.Operator, t.Value), nil
}

func (t *Threshold) String() string {
	return t.Source
}

// compareValues compares two values using the given operator.
func compareValues(actual float64, op string, threshold float64) bool {
	switch op {
	case "<":
		return actual < threshold
	case "<=":
		return actual <= threshold
	case ">":
		return actual > threshold
	case ">=":
		return actual >= threshold
	case "==":
		return actual == threshold
	case "!=":
		return actual != threshold
	default:
		return false
	}
}
