package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/signupload/internal/loadtest/config"
)

func newProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List the built-in load profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printProfiles(cmd.OutOrStdout())
		},
	}
}

func printProfiles(w io.Writer) error {
	for _, name := range config.ProfileNames() {
		p, _ := config.Profile(name)
		config.ApplyDefaults(p)

		exec, err := p.ToExecutorConfig()
		if err != nil {
			return err
		}

		fmt.Fprintf(w, "%s - %s\n", name, p.Metadata.TestType)
		fmt.Fprintf(w, "  Objective:  %s\n", p.Metadata.Objective)
		fmt.Fprintf(w, "  Duration:   %s\n", p.Metadata.DurationText)
		fmt.Fprintf(w, "  Stages:     %s\n", exec.String())
		fmt.Fprintf(w, "  Max VUs:    %d\n", p.MaxVUs())

		metrics := make([]string, 0, len(p.Thresholds))
		for m := range p.Thresholds {
			metrics = append(metrics, m)
		}
		sort.Strings(metrics)
		for i, m := range metrics {
			label := "Thresholds:"
			if i > 0 {
				label = ""
			}
			fmt.Fprintf(w, "  %-11s %s %s\n", label, m, strings.Join(p.Thresholds[m], ", "))
		}
		fmt.Fprintln(w)
	}
	return nil
}
