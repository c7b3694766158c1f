// Command generate-sample-report writes a results file and HTML summary from
// synthetic baseline data, for previewing the report layout.
package main

import (
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/wesleyorama2/signupload/internal/loadtest/check"
	"github.com/wesleyorama2/signupload/internal/loadtest/config"
	"github.com/wesleyorama2/signupload/internal/loadtest/engine"
	"github.com/wesleyorama2/signupload/internal/loadtest/metrics"
	"github.com/wesleyorama2/signupload/internal/signup"
	"github.com/wesleyorama2/signupload/internal/summary"
)

func main() {
	dir := "sample-reports"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	cfg, _ := config.Profile(config.ProfileBaseline)
	config.ApplyDefaults(cfg)

	data, err := sampleData(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	files, err := summary.HandleSummary(dir, cfg.Name, data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Sample results: %s\n", files.JSON)
	fmt.Printf("Sample report:  %s\n", files.HTML)
}

// sampleData simulates 300 signup iterations against a mostly healthy target.
func sampleData(cfg *config.TestConfig) (*summary.Data, error) {
	rng := rand.New(rand.NewSource(1))
	registry := metrics.NewRegistry()
	checks := check.NewRegistry(registry.Checks)

	errs, latency, err := signup.Recorders(registry)
	if err != nil {
		return nil, err
	}

	step := func(name string, status int, ms float64, ok bool) {
		var reqErr error
		if status == 0 {
			reqErr = errors.New("connection reset by peer")
		}
		registry.RecordRequest(name, status, time.Duration(ms*float64(time.Millisecond)), 48*1024, reqErr)
		errs.Add(!ok)
		latency.Add(ms)
	}

	for i := 0; i < 300; i++ {
		pageMs := 80 + rng.Float64()*400
		pageOK := checks.Run(
			check.New(signup.CheckPageLoads, true),
			check.New(signup.CheckPageHasForm, true),
			check.New(signup.CheckPageFast, pageMs < 2000),
		)
		step(signup.RequestSignupPage, http.StatusOK, pageMs, pageOK)

		status := http.StatusFound
		if rng.Intn(100) < 2 {
			status = http.StatusInternalServerError
		}
		submitMs := 200 + rng.Float64()*1500
		if rng.Intn(100) == 0 {
			submitMs = 3200
		}
		submitOK := checks.Run(
			check.New(signup.CheckSubmitOK, status == http.StatusFound),
			check.New(signup.CheckSubmitFast, submitMs < 3000),
		)
		checks.Run(check.New(signup.CheckNoServerErrors, status < 500))
		step(signup.RequestSignupSubmit, status, submitMs, submitOK)

		if status == http.StatusFound {
			dashMs := 60 + rng.Float64()*300
			dashOK := checks.Run(
				check.New(signup.CheckDashboardLoads, true),
				check.New(signup.CheckDashboardFast, dashMs < 2000),
			)
			step(signup.RequestDashboard, http.StatusOK, dashMs, dashOK)
		}
		registry.RecordIteration(4*time.Second + time.Duration(rng.Intn(2000))*time.Millisecond)
	}
	registry.SetActiveVUs(10)

	end := time.Now()
	result := &engine.Result{
		RunID:     "sample",
		Name:      cfg.Name,
		StartTime: end.Add(-cfg.TotalDuration()),
		EndTime:   end,
		Duration:  cfg.TotalDuration(),
		Metrics:   registry.Snapshot(),
		Requests:  registry.RequestSnapshot(),
		Checks:    checks.Results(),
		Passed:    true,
	}

	for metric, exprs := range cfg.Thresholds {
		m, ok := registry.Get(metric)
		if !ok {
			continue
		}
		for _, expr := range exprs {
			th, err := metrics.ParseThreshold(expr)
			if err != nil {
				return nil, err
			}
			actual, passed, err := th.Evaluate(m, result.Duration)
			if err != nil {
				return nil, err
			}
			result.Thresholds = append(result.Thresholds, engine.ThresholdResult{
				Metric: metric, Expression: expr, Passed: passed, Value: actual,
			})
			result.Passed = result.Passed && passed
		}
	}

	return summary.New(result, cfg), nil
}
