package tui

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"sparkviz/internal/analyzer"
	"sparkviz/internal/insight"
)

// Options controls how the TUI renderer behaves.
type Options struct {
	EnableColor  bool
	MaxDepth     int
	ShowWarnings bool
	BarWidth     int
}

// Render prints an ASCII tree of the plan, with duration bars and
// warnings when runtime metrics are attached.
func Render(w io.Writer, analysis *analyzer.PlanAnalysis, opts Options) error {
	if w == nil {
		return errors.New("tui: writer is nil")
	}
	if analysis == nil || analysis.Root == nil {
		return errors.New("tui: empty analysis")
	}

	if opts.BarWidth <= 0 {
		opts.BarWidth = 20
	}

	if analysis.HasMetrics {
		_, _ = fmt.Fprintf(w, "Plan of %d operators | total %.0f ms | %d rows out | spill %s\n",
			analysis.NodeCount, analysis.TotalDurationMs, analysis.TotalRows,
			analyzer.HumanizeBytes(analysis.TotalSpillBytes))
	} else {
		_, _ = fmt.Fprintf(w, "Plan of %d operators (no runtime metrics attached)\n", analysis.NodeCount)
	}
	_, _ = fmt.Fprintf(w, "Shuffles %d | Broadcast joins %d | Unknown operators %d\n\n",
		analysis.ShuffleCount, analysis.BroadcastJoins, analysis.UnknownCount)

	renderInsights(w, analysis)

	_, _ = fmt.Fprintf(w, "%s\n", renderLine(analysis.Root, opts))
	printChildren(w, analysis.Root, "", opts)

	return nil
}

func printChildren(w io.Writer, parent *analyzer.NodeStats, prefix string, opts Options) {
	for i, child := range parent.Children {
		renderBranch(w, child, prefix, i == len(parent.Children)-1, opts)
	}
}

func renderBranch(w io.Writer, node *analyzer.NodeStats, prefix string, isLast bool, opts Options) {
	connector := "|-- "
	childPrefix := prefix + "|   "
	if isLast {
		connector = "`-- "
		childPrefix = prefix + "    "
	}

	_, _ = fmt.Fprintf(w, "%s%s%s\n", prefix, connector, renderLine(node, opts))

	if opts.MaxDepth > 0 && node.Depth >= opts.MaxDepth {
		if len(node.Children) > 0 {
			_, _ = fmt.Fprintf(w, "%s`-- ... (%d more nodes)\n", childPrefix, countDescendants(node))
		}
		return
	}

	printChildren(w, node, childPrefix, opts)
}

func renderLine(node *analyzer.NodeStats, opts Options) string {
	label := insight.CompactLabel(node.Node)
	parts := []string{label, "[" + string(node.Node.Kind) + "]"}

	if node.Node.Metrics != nil {
		if node.DurationMs > 0 {
			parts = append(parts, fmt.Sprintf("%.0f ms", node.DurationMs))
			bar := drawBar(node.PercentDuration, opts.BarWidth)
			if color := pickColor(node.PercentDuration); opts.EnableColor && color != "" {
				bar = applyColor(bar, color)
			}
			parts = append(parts, fmt.Sprintf("%5.1f%%", node.PercentDuration*100), bar)
		}
		parts = append(parts, fmt.Sprintf("rows %d", node.Rows))
		if node.SpillBytes > 0 {
			parts = append(parts, "spill "+analyzer.HumanizeBytes(node.SpillBytes))
		}
	}

	line := strings.Join(parts, " | ")
	if opts.ShowWarnings && len(node.Warnings) > 0 {
		warning := strings.Join(node.Warnings, "; ")
		if opts.EnableColor {
			warning = applyColor(warning, "yellow")
		}
		line += " [" + warning + "]"
	}
	return line
}

func renderInsights(w io.Writer, analysis *analyzer.PlanAnalysis) {
	messages := insight.BuildMessages(analysis)
	if len(messages) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w, "Insights:")
	for _, msg := range messages {
		_, _ = fmt.Fprintf(w, "  - %s %s\n", severityIcon(msg.Severity), msg.Text)
	}
	_, _ = fmt.Fprintln(w)
}

func drawBar(ratio float64, width int) string {
	if width <= 0 {
		return ""
	}
	clamped := math.Min(math.Max(ratio, 0), 1)
	fill := int(math.Round(clamped * float64(width)))
	if clamped > 0 && fill == 0 {
		fill = 1
	}
	if fill > width {
		fill = width
	}
	return strings.Repeat("#", fill) + strings.Repeat("-", width-fill)
}

func pickColor(ratio float64) string {
	switch {
	case ratio >= 0.40:
		return "red"
	case ratio >= 0.20:
		return "yellow"
	case ratio >= 0.10:
		return "cyan"
	default:
		return ""
	}
}

func applyColor(text, color string) string {
	code := ""
	switch color {
	case "red":
		code = "\033[31m"
	case "yellow":
		code = "\033[33m"
	case "cyan":
		code = "\033[36m"
	default:
		return text
	}
	return code + text + "\033[0m"
}

func countDescendants(node *analyzer.NodeStats) int {
	total := 0
	var walk func(*analyzer.NodeStats)
	walk = func(n *analyzer.NodeStats) {
		for _, child := range n.Children {
			total++
			walk(child)
		}
	}
	walk(node)
	return total
}

func severityIcon(sev insight.Severity) string {
	switch sev {
	case insight.SeverityCritical:
		return "🔥"
	case insight.SeverityWarning:
		return "⚠️"
	default:
		return "ℹ️"
	}
}
