package summary

import (
	"bytes"
	"fmt"
	"html/template"
	"math"
	"os"
	"time"

	"github.com/tidwall/gjson"
)

// Error-rate classes used to color the report.
const (
	ClassGood    = "good"
	ClassWarning = "warning"
	ClassError   = "error"
)

// Report is the view model rendered into the HTML summary.
type Report struct {
	Title       string
	GeneratedAt time.Time

	TotalRequests  float64
	FailedRequests float64
	ErrorRate      float64
	ErrorClass     string

	AvgResponseTime float64
	P95ResponseTime float64
	P99ResponseTime float64

	Checks     []CheckEntry
	Thresholds []ThresholdRow
	Passed     bool

	Analysis Metadata
}

// ThresholdRow is one evaluated threshold in the report.
type ThresholdRow struct {
	Metric     string
	Expression string
	Passed     bool
	Value      float64
}

// FromJSON builds the report model from a serialized results file. Missing
// metric fields read as zero.
func FromJSON(raw []byte) (*Report, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("results are not valid JSON")
	}
	doc := gjson.ParseBytes(raw)

	duration := doc.Get("metrics.http_req_duration.values")
	total := doc.Get("metrics.http_reqs.values.count").Float()
	failed := doc.Get("metrics.http_req_failed.values.passes").Float()

	r := &Report{
		Title:           Title(doc.Get("name").String()),
		GeneratedAt:     time.Now(),
		TotalRequests:   total,
		FailedRequests:  failed,
		ErrorRate:       ErrorRatePercent(failed, total),
		AvgResponseTime: duration.Get("avg").Float(),
		P95ResponseTime: duration.Get(gjson.Escape("p(95)")).Float(),
		P99ResponseTime: duration.Get(gjson.Escape("p(99)")).Float(),
		Passed:          doc.Get("passed").Bool(),
		Analysis: Metadata{
			TestType:        doc.Get("metadata.testType").String(),
			ConcurrentUsers: int(doc.Get("metadata.concurrentUsers").Int()),
			Duration:        doc.Get("metadata.duration").String(),
			Objective:       doc.Get("metadata.objective").String(),
			BaseURL:         doc.Get("metadata.baseUrl").String(),
			Stages:          doc.Get("metadata.stages").String(),
		},
	}
	r.ErrorClass = Classify(r.ErrorRate)

	doc.Get("root_group.checks").ForEach(func(_, c gjson.Result) bool {
		r.Checks = append(r.Checks, CheckEntry{
			Name:   c.Get("name").String(),
			Passes: c.Get("passes").Int(),
			Fails:  c.Get("fails").Int(),
		})
		return true
	})

	doc.Get("thresholds").ForEach(func(_, t gjson.Result) bool {
		r.Thresholds = append(r.Thresholds, ThresholdRow{
			Metric:     t.Get("metric").String(),
			Expression: t.Get("expression").String(),
			Passed:     t.Get("passed").Bool(),
			Value:      t.Get("value").Float(),
		})
		return true
	})

	return r, nil
}

// ErrorRatePercent returns failed/total as a percentage rounded to two
// decimals, or 0 when there were no requests.
func ErrorRatePercent(failed, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(failed/total*100*100) / 100
}

// Classify maps an error-rate percentage to its report class.
func Classify(pct float64) string {
	switch {
	case pct > 5:
		return ClassError
	case pct >= 1:
		return ClassWarning
	default:
		return ClassGood
	}
}

// RenderHTML renders the report page.
func RenderHTML(r *Report) (string, error) {
	if r == nil {
		return "", fmt.Errorf("report cannot be nil")
	}

	tmpl, err := template.New("summary").Funcs(templateFuncs()).Parse(htmlTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, r); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

// WriteHTML renders the report page to path.
func WriteHTML(r *Report, path string) error {
	html, err := RenderHTML(r)
	if err != nil {
		return fmt.Errorf("failed to generate HTML: %w", err)
	}
	if err := os.WriteFile(path, []byte(html), 0644); err != nil {
		return fmt.Errorf("failed to write HTML file: %w", err)
	}
	return nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"fixed2":    func(v float64) string { return fmt.Sprintf("%.2f", v) },
		"count":     func(v float64) string { return fmt.Sprintf("%.0f", v) },
		"checkRate": checkRate,
		"timestamp": func(t time.Time) string { return t.Format("2006-01-02 15:04:05 MST") },
	}
}

// checkRate returns the pass percentage of a check.
func checkRate(c CheckEntry) string {
	total := c.Passes + c.Fails
	if total == 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", float64(c.Passes)/float64(total)*100)
}
