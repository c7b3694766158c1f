// Package summary turns a finished run into the end-of-run artifacts: the
// results JSON and the HTML summary page.
package summary

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wesleyorama2/signupload/internal/loadtest/check"
	"github.com/wesleyorama2/signupload/internal/loadtest/config"
	"github.com/wesleyorama2/signupload/internal/loadtest/engine"
	"github.com/wesleyorama2/signupload/internal/loadtest/metrics"
)

// Data is the serialized end-of-run object.
type Data struct {
	RunID      string                    `json:"runId"`
	Name       string                    `json:"name"`
	Metadata   Metadata                  `json:"metadata"`
	StartTime  time.Time                 `json:"startTime"`
	EndTime    time.Time                 `json:"endTime"`
	State      State                     `json:"state"`
	Metrics    map[string]metrics.Sample `json:"metrics"`
	Requests   map[string]metrics.Sample `json:"requests,omitempty"`
	RootGroup  Group                     `json:"root_group"`
	Thresholds []engine.ThresholdResult  `json:"thresholds"`
	Passed     bool                      `json:"passed"`
}

// Metadata describes the load profile for the analysis block.
type Metadata struct {
	TestType        string `json:"testType"`
	ConcurrentUsers int    `json:"concurrentUsers"`
	Duration        string `json:"duration"`
	Objective       string `json:"objective"`
	BaseURL         string `json:"baseUrl"`
	Stages          string `json:"stages"`
}

// State holds run-level facts.
type State struct {
	TestRunDurationMs float64 `json:"testRunDurationMs"`
	Interrupted       bool    `json:"interrupted"`
}

// Group is a named set of checks.
type Group struct {
	Name   string       `json:"name"`
	Checks []CheckEntry `json:"checks"`
}

// CheckEntry is one check tally in the results file.
type CheckEntry struct {
	Name   string `json:"name"`
	Passes int64  `json:"passes"`
	Fails  int64  `json:"fails"`
}

// Files lists the artifacts written by HandleSummary.
type Files struct {
	JSON string
	HTML string
}

// New builds the summary data of a run.
func New(result *engine.Result, cfg *config.TestConfig) *Data {
	d := &Data{
		RunID:      result.RunID,
		Name:       result.Name,
		StartTime:  result.StartTime,
		EndTime:    result.EndTime,
		Metrics:    result.Metrics,
		Requests:   result.Requests,
		Thresholds: result.Thresholds,
		Passed:     result.Passed,
		State: State{
			TestRunDurationMs: float64(result.Duration) / float64(time.Millisecond),
			Interrupted:       result.Interrupted,
		},
		RootGroup: Group{Checks: checkEntries(result.Checks)},
	}
	if d.Thresholds == nil {
		d.Thresholds = []engine.ThresholdResult{}
	}

	if cfg != nil {
		d.Metadata = Metadata{
			TestType:        cfg.Metadata.TestType,
			ConcurrentUsers: cfg.MaxVUs(),
			Duration:        cfg.Metadata.DurationText,
			Objective:       cfg.Metadata.Objective,
			BaseURL:         cfg.BaseURL,
		}
		if ec, err := cfg.ToExecutorConfig(); err == nil {
			d.Metadata.Stages = ec.String()
		}
	}
	return d
}

func checkEntries(results []check.Result) []CheckEntry {
	entries := make([]CheckEntry, 0, len(results))
	for _, r := range results {
		entries = append(entries, CheckEntry{Name: r.Name, Passes: r.Passes, Fails: r.Fails})
	}
	return entries
}

// HandleSummary writes <dir>/<name>_test_results.json and
// <dir>/<name>_test_summary.html, creating dir when missing.
func HandleSummary(dir, name string, data *Data) (*Files, error) {
	if data == nil {
		return nil, fmt.Errorf("summary data cannot be nil")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create reports directory: %w", err)
	}

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode results: %w", err)
	}

	files := &Files{
		JSON: filepath.Join(dir, name+"_test_results.json"),
		HTML: filepath.Join(dir, name+"_test_summary.html"),
	}

	if err := os.WriteFile(files.JSON, raw, 0644); err != nil {
		return nil, fmt.Errorf("failed to write results file: %w", err)
	}

	report, err := FromJSON(raw)
	if err != nil {
		return nil, err
	}
	report.Title = Title(name)

	if err := WriteHTML(report, files.HTML); err != nil {
		return nil, err
	}
	return files, nil
}

// Title returns the report title for a run name: "baseline" becomes
// "Baseline Test Results".
func Title(name string) string {
	if name == "" {
		return "Test Results"
	}
	return strings.ToUpper(name[:1]) + name[1:] + " Test Results"
}
