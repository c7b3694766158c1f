package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wesleyorama2/signupload/internal/loadtest/config"
	"github.com/wesleyorama2/signupload/internal/loadtest/engine"
	"github.com/wesleyorama2/signupload/internal/logging"
	"github.com/wesleyorama2/signupload/internal/output"
	"github.com/wesleyorama2/signupload/internal/signup"
	"github.com/wesleyorama2/signupload/internal/summary"
)

// runOptions holds the flags of the run command.
type runOptions struct {
	configFile   string
	baseURL      string
	profile      string
	name         string
	stages       string
	seed         int64
	thinkTime    time.Duration
	gracefulStop time.Duration
	reportsDir   string
	noReport     bool
	insecure     bool
	quiet        bool
	noColor      bool
	logLevel     string
	interval     time.Duration
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the signup load test",
		Long: `Run the signup journey against the target with a staged VU ramp.

Built-in profile:
  signupload run --profile baseline

Custom schedule against a local target:
  signupload run --base-url http://localhost:8080 --stages "30s:5,1m:5,30s:0"

From a configuration file (YAML or JSON):
  signupload run --config load.yaml

Results are written to <reports-dir>/<name>_test_results.json and
<reports-dir>/<name>_test_summary.html. The command exits with status 1
when a threshold fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoadTest(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "Configuration file (YAML or JSON)")
	flags.StringVar(&opts.baseURL, "base-url", "", "Target base URL (default "+config.DefaultBaseURL+")")
	flags.StringVarP(&opts.profile, "profile", "p", "", "Built-in load profile: baseline, stress or spike")
	flags.StringVar(&opts.name, "name", "", "Test name used for report files (defaults to the profile name)")
	flags.StringVar(&opts.stages, "stages", "", `Stage schedule as "duration:target,..." (e.g. "1m:10,5m:10,1m:0")`)
	flags.Int64Var(&opts.seed, "seed", 0, "Seed for user selection (0 seeds from the clock)")
	flags.DurationVar(&opts.thinkTime, "think-time", 0, "Think-time unit between steps (default 1s)")
	flags.DurationVar(&opts.gracefulStop, "graceful-stop", 0, "Time in-flight iterations may run after the schedule (default 30s)")
	flags.StringVar(&opts.reportsDir, "reports-dir", "", "Directory for the results and HTML report (default reports)")
	flags.BoolVar(&opts.noReport, "no-report", false, "Do not write report files")
	flags.BoolVar(&opts.insecure, "insecure", false, "Skip TLS certificate verification")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "Only print the final verdict")
	flags.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	flags.StringVar(&opts.logLevel, "log-level", logging.DefaultLevel, "Log level: debug, info, warn, error")
	flags.DurationVar(&opts.interval, "progress-interval", time.Second, "Live progress refresh interval")

	return cmd
}

// testConfig resolves the effective configuration: profile, then file, then flags.
func (o *runOptions) testConfig() (*config.TestConfig, error) {
	override := &config.TestConfig{}
	if o.configFile != "" {
		loaded, err := config.LoadConfig(o.configFile)
		if err != nil {
			return nil, err
		}
		override = loaded
	}

	if o.profile != "" {
		override.Profile = o.profile
	}
	if override.Profile == "" && o.configFile == "" {
		override.Profile = config.ProfileBaseline
	}
	if o.name != "" {
		override.Name = o.name
	}
	if o.baseURL != "" {
		override.BaseURL = o.baseURL
	}
	if o.stages != "" {
		stages, err := config.ParseStages(o.stages)
		if err != nil {
			return nil, fmt.Errorf("invalid --stages: %w", err)
		}
		override.Stages = stages
		override.Metadata.DurationText = ""
	}
	if o.seed != 0 {
		override.Seed = o.seed
	}
	if o.thinkTime != 0 {
		override.ThinkTime = config.Duration(o.thinkTime)
	}
	if o.gracefulStop != 0 {
		override.GracefulStop = config.Duration(o.gracefulStop)
	}
	if o.reportsDir != "" {
		override.ReportsDir = o.reportsDir
	}
	if o.insecure {
		override.Settings.InsecureSkipVerify = true
	}

	return config.Resolve(override)
}

func runLoadTest(ctx context.Context, opts *runOptions, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := opts.testConfig()
	if err != nil {
		return err
	}

	logger, err := logging.Auto(stderr, opts.logLevel)
	if err != nil {
		return err
	}

	eng, err := engine.New(cfg, engine.WithLogger(logger))
	if err != nil {
		return err
	}
	cfg = eng.Config()

	journey, err := newJourney(eng, logger)
	if err != nil {
		return err
	}

	execConfig, err := cfg.ToExecutorConfig()
	if err != nil {
		return err
	}

	console := output.NewConsole(output.ConsoleConfig{
		TestName: cfg.Name,
		Writer:   stdout,
		Quiet:    opts.quiet,
		NoColor:  opts.noColor,
	})
	console.PrintHeader(cfg.BaseURL, execConfig.String(), cfg.MaxVUs())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var result *engine.Result
	done := make(chan struct{})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(done)
		var runErr error
		result, runErr = eng.Run(ctx, journey)
		return runErr
	})
	g.Go(func() error {
		return progressLoop(gctx, done, eng, console, opts.interval)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("load test failed: %w", err)
	}

	var files *summary.Files
	if !opts.noReport {
		files, err = summary.HandleSummary(cfg.ReportsDir, cfg.Name, summary.New(result, cfg))
		if err != nil {
			return err
		}
	}

	console.PrintSummary(result, files)

	if !result.Passed {
		return ErrThresholdsFailed
	}
	return nil
}

func newJourney(eng *engine.Engine, logger zerolog.Logger) (*signup.Journey, error) {
	cfg := eng.Config()

	errs, latency, err := signup.Recorders(eng.Registry())
	if err != nil {
		return nil, err
	}

	pool, err := signup.NewPool(signup.DefaultProfiles(), cfg.Seed)
	if err != nil {
		return nil, err
	}

	return signup.NewJourney(signup.Options{
		BaseURL:   cfg.BaseURL,
		Pool:      pool,
		Tokens:    signup.NewTokenSource(nil),
		Checks:    eng.Checks(),
		Errors:    errs,
		Latency:   latency,
		ThinkTime: time.Duration(cfg.ThinkTime),
		Logger:    logger,
		UserAgent: cfg.Settings.UserAgent,
	})
}

// progressLoop refreshes the live display until the run is done.
func progressLoop(ctx context.Context, done <-chan struct{}, eng *engine.Engine, console *output.Console, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if eng.IsRunning() {
				console.Update(output.StatsFromEngine(eng))
			}
		}
	}
}
