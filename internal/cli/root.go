package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

// ErrThresholdsFailed is returned by the run command when at least one
// threshold failed. The summary has already been printed at that point.
var ErrThresholdsFailed = errors.New("one or more thresholds failed")

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "signupload",
		Short:   "Load test a web signup flow",
		Version: version,
		Long: `signupload drives a population of virtual users through a signup flow:
load the signup page, submit the form with a generated identity, then visit
the dashboard. Concurrency follows a staged ramp; the run ends with a results
file, an HTML summary and pass/fail thresholds.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newProfilesCmd())
	return root
}

// Execute runs the CLI with os.Args and returns the process exit code.
func Execute() int {
	return run(NewRootCmd(), os.Args[1:], os.Stderr)
}

func run(root *cobra.Command, args []string, stderr io.Writer) int {
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		if !errors.Is(err, ErrThresholdsFailed) {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}
