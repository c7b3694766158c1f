// Package output provides console output for a running load test.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/wesleyorama2/signupload/internal/loadtest/engine"
	"github.com/wesleyorama2/signupload/internal/loadtest/metrics"
	"github.com/wesleyorama2/signupload/internal/summary"
)

// ANSI escape codes for cursor control
const (
	cursorUp  = "\033[%dA" // Move cursor up N lines
	clearLine = "\033[2K"  // Clear entire line

	boxHorizontal  = "━"
	boxVertical    = "│"
	boxTopLeft     = "┌"
	boxTopRight    = "┐"
	boxBottomLeft  = "└"
	boxBottomRight = "┘"

	progressFilled = "█"
	progressEmpty  = "░"
)

// LiveStats contains real-time statistics for display.
type LiveStats struct {
	Progress  float64
	Elapsed   time.Duration
	Remaining time.Duration

	ActiveVUs int
	TargetVUs int

	TotalRequests int64
	Failed        int64
	ErrorRate     float64 // 0.0 to 1.0
	RPS           float64
	Iterations    int64

	// Latencies in milliseconds
	LatencyP95 float64
	LatencyAvg float64

	Phase        string
	CurrentStage int
	TotalStages  int
}

// Console manages live console output during a run.
type Console struct {
	testName string
	writer   io.Writer
	colors   *ColorScheme
	isTTY    bool
	noColor  bool
	quiet    bool

	mu          sync.Mutex
	linesOutput int
}

// ConsoleConfig contains configuration for Console.
type ConsoleConfig struct {
	TestName    string
	Writer      io.Writer
	Quiet       bool
	NoColor     bool
	ForceColors bool
	ForceTTY    bool
}

// NewConsole creates a new console output handler.
func NewConsole(config ConsoleConfig) *Console {
	if config.Writer == nil {
		config.Writer = os.Stdout
	}

	isTTY := config.ForceTTY || isTerminal(config.Writer)
	useColors := !config.NoColor && (config.ForceColors || (isTTY && supportsColors()))

	colors := NoColorScheme()
	if useColors {
		colors = DefaultColorScheme()
		for _, c := range colors.all() {
			c.EnableColor()
		}
	}

	return &Console{
		testName: config.TestName,
		writer:   config.Writer,
		colors:   colors,
		isTTY:    isTTY,
		noColor:  !useColors,
		quiet:    config.Quiet,
	}
}

// isTerminal checks if the writer is a terminal.
func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return checkIsTerminal(f)
	}
	return false
}

// supportsColors checks if the terminal supports colors.
func supportsColors() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}
	term := os.Getenv("TERM")
	return term != "" && term != "dumb"
}

// IsTTY returns whether the output is a terminal.
func (c *Console) IsTTY() bool {
	return c.isTTY
}

// PrintHeader prints the run header.
func (c *Console) PrintHeader(baseURL, stages string, maxVUs int) {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	line := strings.Repeat(boxHorizontal, 56)
	c.writeln(c.colors.Rule.Sprint(line))
	c.writeln(c.colors.Title.Sprintf("%s - Running", c.testName))
	c.writeln(c.colors.Rule.Sprint(line))
	c.writeln(fmt.Sprintf("Target:   %s", c.colors.Value.Sprint(baseURL)))
	c.writeln(fmt.Sprintf("Stages:   %s", stages))
	c.writeln(fmt.Sprintf("Max VUs:  %s", c.colors.Value.Sprint(maxVUs)))
	c.writeln("")
}

// Update redraws the live display. On a non-terminal writer a single status
// line is printed instead.
func (c *Console) Update(stats *LiveStats) {
	if c.quiet || stats == nil {
		return
	}
	if !c.isTTY {
		c.printLine(stats)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.clearLive()

	lines := c.renderLiveStats(stats)
	c.linesOutput = len(lines)
	for _, line := range lines {
		c.writeln(line)
	}
}

func (c *Console) clearLive() {
	if c.linesOutput == 0 {
		return
	}
	c.write(fmt.Sprintf(cursorUp, c.linesOutput))
	for i := 0; i < c.linesOutput; i++ {
		c.write(clearLine + "\n")
	}
	c.write(fmt.Sprintf(cursorUp, c.linesOutput))
	c.linesOutput = 0
}

// renderLiveStats renders the live statistics display.
func (c *Console) renderLiveStats(stats *LiveStats) []string {
	var lines []string

	bar := renderProgressBar(stats.Progress, 40)
	timeInfo := fmt.Sprintf("%s / %s", formatDuration(stats.Elapsed), formatDuration(stats.Elapsed+stats.Remaining))
	lines = append(lines, fmt.Sprintf("Progress: %s %s | %s",
		c.colors.Progress.Sprint(bar),
		c.colors.Title.Sprintf("%.0f%%", stats.Progress*100),
		c.colors.Dim.Sprint(timeInfo)))

	phase := stats.Phase
	if stats.TotalStages > 0 {
		phase = fmt.Sprintf("%s (%d/%d)", stats.Phase, stats.CurrentStage, stats.TotalStages)
	}
	lines = append(lines, fmt.Sprintf("Stage:    %s", c.colors.Phase.Sprint(phase)))
	lines = append(lines, "")

	boxWidth := 55
	lines = append(lines, c.colors.Dim.Sprint(boxTopLeft+strings.Repeat(boxHorizontal, boxWidth-2)+boxTopRight))

	vus := fmt.Sprintf("VUs:     %s / %d", c.colors.Value.Sprint(stats.ActiveVUs), stats.TargetVUs)
	reqs := fmt.Sprintf("Requests:    %s", c.colors.Value.Sprint(formatNumber(stats.TotalRequests)))
	lines = append(lines, c.formatBoxRow(vus, reqs, boxWidth))

	errColor := c.colors.ForClass(summary.Classify(stats.ErrorRate * 100))
	rps := fmt.Sprintf("RPS:     %s", c.colors.Good.Sprintf("%.1f", stats.RPS))
	errs := fmt.Sprintf("Errors:      %s (%s)",
		errColor.Sprint(stats.Failed),
		errColor.Sprintf("%.1f%%", stats.ErrorRate*100))
	lines = append(lines, c.formatBoxRow(rps, errs, boxWidth))

	p95 := fmt.Sprintf("P95:     %s", c.colors.Latency.Sprint(formatMillis(stats.LatencyP95)))
	avg := fmt.Sprintf("Avg:         %s", c.colors.Latency.Sprint(formatMillis(stats.LatencyAvg)))
	lines = append(lines, c.formatBoxRow(p95, avg, boxWidth))

	lines = append(lines, c.colors.Dim.Sprint(boxBottomLeft+strings.Repeat(boxHorizontal, boxWidth-2)+boxBottomRight))
	return lines
}

// formatBoxRow formats a row inside the stats box with two columns.
func (c *Console) formatBoxRow(left, right string, boxWidth int) string {
	colWidth := (boxWidth - 4) / 2

	leftPadding := colWidth - visibleLen(left)
	if leftPadding < 0 {
		leftPadding = 0
	}
	rightPadding := colWidth - visibleLen(right)
	if rightPadding < 0 {
		rightPadding = 0
	}

	border := c.colors.Dim.Sprint(boxVertical)
	return fmt.Sprintf("%s %s%s%s %s%s %s",
		border,
		left, strings.Repeat(" ", leftPadding),
		border,
		right, strings.Repeat(" ", rightPadding),
		border)
}

func (c *Console) printLine(stats *LiveStats) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.writeln(fmt.Sprintf("[%s] %s | Progress: %.0f%% | VUs: %d/%d | Reqs: %d | RPS: %.1f | Errors: %d (%.1f%%) | P95: %s",
		formatDuration(stats.Elapsed),
		stats.Phase,
		stats.Progress*100,
		stats.ActiveVUs,
		stats.TargetVUs,
		stats.TotalRequests,
		stats.RPS,
		stats.Failed,
		stats.ErrorRate*100,
		formatMillis(stats.LatencyP95)))
}

// PrintSummary prints the end-of-run summary. files may be nil when no
// report was written.
func (c *Console) PrintSummary(result *engine.Result, files *summary.Files) {
	if result == nil {
		return
	}
	if c.quiet {
		if result.Passed {
			c.writeln(c.colors.Good.Sprint("PASSED"))
		} else {
			c.writeln(c.colors.Bad.Sprint("FAILED"))
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isTTY {
		c.clearLive()
	}

	line := strings.Repeat(boxHorizontal, 56)
	status := c.colors.Good.Sprint("Completed ✓")
	if !result.Passed {
		status = c.colors.Bad.Sprint("Failed ✗")
	}
	if result.Interrupted {
		status += c.colors.Warning.Sprint(" (interrupted)")
	}

	c.writeln("")
	c.writeln(c.colors.Rule.Sprint(line))
	c.writeln(fmt.Sprintf("%s - %s", c.colors.Title.Sprint(result.Name), status))
	c.writeln(c.colors.Rule.Sprint(line))
	c.writeln("")

	total := value(result.Metrics, metrics.HTTPReqs, "count")
	failed := value(result.Metrics, metrics.HTTPReqFailed, "passes")
	pct := summary.ErrorRatePercent(failed, total)

	c.writeln(fmt.Sprintf("Duration:      %s", c.colors.Value.Sprint(formatDuration(result.Duration))))
	c.writeln(fmt.Sprintf("Total Reqs:    %s", c.colors.Value.Sprint(formatNumber(int64(total)))))
	c.writeln(fmt.Sprintf("Failed Reqs:   %s", c.colors.Value.Sprint(formatNumber(int64(failed)))))
	c.writeln(fmt.Sprintf("Error Rate:    %s", c.colors.ForClass(summary.Classify(pct)).Sprintf("%.2f%%", pct)))
	c.writeln(fmt.Sprintf("Iterations:    %s", c.colors.Value.Sprint(formatNumber(int64(value(result.Metrics, metrics.Iterations, "count"))))))
	c.writeln("")

	c.writeln(c.colors.Title.Sprint("Response Times:"))
	for _, row := range []struct{ label, key string }{
		{"Avg", "avg"}, {"Min", "min"}, {"Med", "med"},
		{"P90", "p(90)"}, {"P95", "p(95)"}, {"P99", "p(99)"}, {"Max", "max"},
	} {
		c.writeln(fmt.Sprintf("  %-10s %s", row.label+":", formatMillis(value(result.Metrics, metrics.HTTPReqDuration, row.key))))
	}
	c.writeln("")

	if len(result.Checks) > 0 {
		c.writeln(c.colors.Title.Sprint("Checks:"))
		for _, chk := range result.Checks {
			icon := SuccessIcon(c.noColor)
			if chk.Fails > 0 {
				icon = ErrorIcon(c.noColor)
			}
			c.writeln(fmt.Sprintf("  %s %s %s", icon, chk.Name,
				c.colors.Dim.Sprintf("(%.2f%% - %d/%d)", chk.Rate()*100, chk.Passes, chk.Passes+chk.Fails)))
		}
		c.writeln("")
	}

	if len(result.Thresholds) > 0 {
		c.writeln(c.colors.Title.Sprint("Thresholds:"))
		for _, t := range result.Thresholds {
			icon := SuccessIcon(c.noColor)
			if !t.Passed {
				icon = ErrorIcon(c.noColor)
			}
			detail := fmt.Sprintf("(actual: %.4g)", t.Value)
			if t.Message != "" && !t.Passed {
				detail = "(" + t.Message + ")"
			}
			c.writeln(fmt.Sprintf("  %s %s %s %s", icon, t.Metric, t.Expression, c.colors.Dim.Sprint(detail)))
		}
		c.writeln("")
	}

	if files != nil {
		c.writeln(c.colors.Title.Sprint("Reports:"))
		c.writeln("  " + c.colors.Highlight.Sprint(files.JSON))
		c.writeln("  " + c.colors.Highlight.Sprint(files.HTML))
		c.writeln("")
	}
}

func (c *Console) write(s string) {
	fmt.Fprint(c.writer, s)
}

func (c *Console) writeln(s string) {
	fmt.Fprintln(c.writer, s)
}

// StatsFromEngine samples live statistics from a running engine.
func StatsFromEngine(eng *engine.Engine) *LiveStats {
	reg := eng.Registry()
	stats := &LiveStats{
		Progress:      eng.GetProgress(),
		Phase:         string(reg.Phases().Current()),
		TotalRequests: int64(reg.HTTPReqs.Value()),
		Failed:        reg.HTTPReqFailed.Passes(),
		ErrorRate:     reg.HTTPReqFailed.Value(),
		Iterations:    int64(reg.Iterations.Value()),
		LatencyP95:    reg.HTTPReqDuration.Percentile(95),
		LatencyAvg:    reg.HTTPReqDuration.Avg(),
	}

	if s := eng.GetStats(); s != nil {
		stats.Elapsed = s.Elapsed
		stats.Remaining = s.TotalDuration - s.Elapsed
		if stats.Remaining < 0 {
			stats.Remaining = 0
		}
		stats.ActiveVUs = s.ActiveVUs
		stats.TargetVUs = s.TargetVUs
		stats.CurrentStage = s.CurrentStage
		stats.TotalStages = s.TotalStages
		if s.Elapsed > 0 {
			stats.RPS = float64(stats.TotalRequests) / s.Elapsed.Seconds()
		}
	}
	return stats
}

func value(samples map[string]metrics.Sample, name, key string) float64 {
	s, ok := samples[name]
	if !ok {
		return 0
	}
	return s.Values[key]
}

func renderProgressBar(progress float64, width int) string {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	filled := int(progress * float64(width))
	return "[" + strings.Repeat(progressFilled, filled) + strings.Repeat(progressEmpty, width-filled) + "]"
}

// formatDuration formats a duration in a human-readable format.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %02ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
}

// formatMillis formats a millisecond value with two decimals.
func formatMillis(ms float64) string {
	if ms >= 1000 {
		return fmt.Sprintf("%.2fs", ms/1000)
	}
	return fmt.Sprintf("%.2fms", ms)
}

// formatNumber formats a number with thousands separators.
func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	var result strings.Builder
	offset := len(str) % 3
	if offset > 0 {
		result.WriteString(str[:offset])
	}
	for i := offset; i < len(str); i += 3 {
		if result.Len() > 0 {
			result.WriteString(",")
		}
		result.WriteString(str[i : i+3])
	}
	return result.String()
}

// visibleLen returns the printed width of s, ignoring ANSI escapes.
func visibleLen(s string) int {
	n := 0
	inEscape := false
	for _, r := range s {
		if r == '\033' {
			inEscape = true
			continue
		}
		if inEscape {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				inEscape = false
			}
			continue
		}
		n++
	}
	return n
}
