package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/signupload/internal/summary"
)

const (
	resultsSuffix = "_test_results.json"
	summarySuffix = "_test_summary.html"
)

func newReportCmd() *cobra.Command {
	var out, title string

	cmd := &cobra.Command{
		Use:   "report <results.json>",
		Short: "Render the HTML summary of a saved results file",
		Long: `Validate a results file written by "signupload run" and render its HTML
summary again. By default baseline_test_results.json is rendered to
baseline_test_summary.html next to it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := renderReport(args[0], out, title)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Report: %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "", "Output HTML path")
	cmd.Flags().StringVar(&title, "title", "", "Report title (defaults to the test name)")
	return cmd
}

// renderReport re-renders the HTML summary of resultsPath and returns the
// path it was written to.
func renderReport(resultsPath, out, title string) (string, error) {
	raw, err := os.ReadFile(resultsPath)
	if err != nil {
		return "", fmt.Errorf("failed to read results: %w", err)
	}
	if err := summary.ValidateResults(raw); err != nil {
		return "", fmt.Errorf("invalid results file %s: %w", resultsPath, err)
	}

	report, err := summary.FromJSON(raw)
	if err != nil {
		return "", err
	}
	if title != "" {
		report.Title = title
	}

	if out == "" {
		out = defaultReportPath(resultsPath)
	}
	if err := summary.WriteHTML(report, out); err != nil {
		return "", err
	}
	return out, nil
}

// defaultReportPath maps x_test_results.json to x_test_summary.html.
func defaultReportPath(resultsPath string) string {
	if strings.HasSuffix(resultsPath, resultsSuffix) {
		return strings.TrimSuffix(resultsPath, resultsSuffix) + summarySuffix
	}
	return strings.TrimSuffix(resultsPath, ".json") + ".html"
}
