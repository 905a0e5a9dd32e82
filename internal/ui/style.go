package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Sprint color functions for building styled strings.
var (
	Bold        = color.New(color.Bold).SprintFunc()
	Dim         = color.New(color.Faint).SprintFunc()
	Cyan        = color.New(color.FgCyan).SprintFunc()
	Green       = color.New(color.FgGreen).SprintFunc()
	Red         = color.New(color.FgRed).SprintFunc()
	Yellow      = color.New(color.FgYellow).SprintFunc()
	Magenta     = color.New(color.FgMagenta).SprintFunc()
	BoldCyan    = color.New(color.Bold, color.FgCyan).SprintFunc()
	BoldGreen   = color.New(color.Bold, color.FgGreen).SprintFunc()
	BoldRed     = color.New(color.Bold, color.FgRed).SprintFunc()
	BoldYellow  = color.New(color.Bold, color.FgYellow).SprintFunc()
	BoldMagenta = color.New(color.Bold, color.FgMagenta).SprintFunc()
	BoldWhite   = color.New(color.Bold, color.FgWhite).SprintFunc()
)

// PrintLogo renders the colored pertsim logo to w.
func PrintLogo(w io.Writer) {
	frame := color.New(color.FgCyan)
	curve := color.New(color.FgYellow)
	axis := color.New(color.FgCyan, color.Faint)
	brand := color.New(color.Bold, color.FgMagenta)
	tag := color.New(color.Faint)

	fmt.Fprintln(w)
	frame.Fprintln(w, "   +--------------------------+")
	curve.Fprintln(w, "   |           .-''-.         |")
	curve.Fprintln(w, "   |        .-'      '-.      |")
	curve.Fprintln(w, "   |   ..--'            '--.. |")
	axis.Fprintln(w, "   |==========================|")
	brand.Fprintln(w, "   |    P E R T   S I M       |")
	frame.Fprintln(w, "   +--------------------------+")
	tag.Fprintf(w, "   %s Monte Carlo schedule risk\n", Dim("🎲"))
	fmt.Fprintln(w)
}

// taskColors is a palette of distinct bold colors for differentiating tasks.
var taskColors = []func(a ...interface{}) string{
	BoldMagenta,
	BoldCyan,
	BoldYellow,
	BoldGreen,
	color.New(color.Bold, color.FgHiBlue).SprintFunc(),
	color.New(color.Bold, color.FgHiRed).SprintFunc(),
}

// taskColorIndex hashes a task ID to a palette index.
func taskColorIndex(taskID string) int {
	var h uint32
	for _, c := range taskID {
		h = h*31 + uint32(c)
	}
	return int(h % uint32(len(taskColors)))
}

// TaskPrefix returns a colored [task-id] prefix string.
// Each task ID gets a distinct color from the palette.
func TaskPrefix(taskID string) string {
	c := taskColors[taskColorIndex(taskID)]
	return Dim("[") + c(taskID) + Dim("]")
}

// StatusIcon returns a colored status icon for compact table display.
func StatusIcon(status string) string {
	switch status {
	case "completed":
		return Green("✓")
	case "cancelled":
		return Yellow("⊘")
	case "failed":
		return Red("✗")
	default:
		return Dim("◌")
	}
}

// Priority returns a colored task priority label.
func Priority(priority string) string {
	switch priority {
	case "Critical":
		return BoldRed(priority)
	case "High":
		return Yellow(priority)
	case "Medium":
		return Cyan(priority)
	default:
		return Dim(priority)
	}
}

// RiskLevel returns a colored sensitivity risk label.
func RiskLevel(level string) string {
	switch level {
	case "High":
		return BoldRed(level)
	case "Medium":
		return Yellow(level)
	default:
		return Green(level)
	}
}

// Bar draws a horizontal bar of width cells filled in proportion to frac.
func Bar(frac float64, width int) string {
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	n := int(frac*float64(width) + 0.5)
	return Cyan(strings.Repeat("█", n)) + Dim(strings.Repeat("·", width-n))
}
