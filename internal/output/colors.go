package output

import (
	"github.com/fatih/color"

	"github.com/wesleyorama2/signupload/internal/summary"
)

// ColorScheme defines the colors used for the console display
type ColorScheme struct {
	Rule      *color.Color
	Title     *color.Color
	Value     *color.Color
	Progress  *color.Color
	Phase     *color.Color
	Latency   *color.Color
	Dim       *color.Color
	Good      *color.Color
	Warning   *color.Color
	Bad       *color.Color
	Highlight *color.Color
}

// DefaultColorScheme returns the default color scheme
func DefaultColorScheme() *ColorScheme {
	return &ColorScheme{
		Rule:      color.New(color.FgCyan),
		Title:     color.New(color.Bold),
		Value:     color.New(color.FgCyan),
		Progress:  color.New(color.FgGreen),
		Phase:     color.New(color.FgMagenta),
		Latency:   color.New(color.FgBlue),
		Dim:       color.New(color.Faint),
		Good:      color.New(color.FgGreen),
		Warning:   color.New(color.FgYellow),
		Bad:       color.New(color.FgRed),
		Highlight: color.New(color.FgMagenta, color.Bold),
	}
}

// NoColorScheme returns a color scheme with all colors disabled
func NoColorScheme() *ColorScheme {
	scheme := DefaultColorScheme()
	for _, c := range scheme.all() {
		c.DisableColor()
	}
	return scheme
}

func (s *ColorScheme) all() []*color.Color {
	return []*color.Color{
		s.Rule, s.Title, s.Value, s.Progress, s.Phase, s.Latency,
		s.Dim, s.Good, s.Warning, s.Bad, s.Highlight,
	}
}

// ForClass returns the color of an error-rate class.
func (s *ColorScheme) ForClass(class string) *color.Color {
	switch class {
	case summary.ClassError:
		return s.Bad
	case summary.ClassWarning:
		return s.Warning
	default:
		return s.Good
	}
}

// SuccessIcon returns a checkmark symbol with appropriate color
func SuccessIcon(noColor bool) string {
	if noColor {
		return "✓"
	}
	return color.New(color.FgGreen).Sprint("✓")
}

// ErrorIcon returns an X symbol with appropriate color
func ErrorIcon(noColor bool) string {
	if noColor {
		return "✗"
	}
	return color.New(color.FgRed).Sprint("✗")
}
