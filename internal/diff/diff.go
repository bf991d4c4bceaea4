package diff

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"sparkviz/internal/analyzer"
	"sparkviz/internal/config"
)

// Options configures the diff sensitivity.
type Options struct {
	MinRowsDelta     int64
	MinDurationMs    float64
	MinPercentChange float64
	MaxItems         int
}

// Report summarises the delta between two plan analyses.
type Report struct {
	Summary      SummaryDiff `json:"summary"`
	Added        []string    `json:"added"`
	Removed      []string    `json:"removed"`
	Regressions  []Entry     `json:"regressions"`
	Improvements []Entry     `json:"improvements"`
	Options      Options     `json:"-"`
}

// SummaryDiff covers high-level plan differences.
type SummaryDiff struct {
	BaseNodes        int     `json:"base_nodes"`
	TargetNodes      int     `json:"target_nodes"`
	BaseDurationMs   float64 `json:"base_duration_ms"`
	TargetDurationMs float64 `json:"target_duration_ms"`
	DeltaDurationMs  float64 `json:"delta_duration_ms"`
	PercentDuration  float64 `json:"percent_duration"`
	BaseShuffles     int     `json:"base_shuffles"`
	TargetShuffles   int     `json:"target_shuffles"`
	BaseSpillBytes   int64   `json:"base_spill_bytes"`
	TargetSpillBytes int64   `json:"target_spill_bytes"`
}

// Entry captures the delta for all nodes sharing one signature.
type Entry struct {
	Signature        string  `json:"signature"`
	BaseDurationMs   float64 `json:"base_duration_ms"`
	TargetDurationMs float64 `json:"target_duration_ms"`
	DeltaDurationMs  float64 `json:"delta_duration_ms"`
	PercentChange    float64 `json:"percent_change"`
	BaseRows         int64   `json:"base_rows"`
	TargetRows       int64   `json:"target_rows"`
	DeltaRows        int64   `json:"delta_rows"`
	BaseSpillBytes   int64   `json:"base_spill_bytes"`
	TargetSpillBytes int64   `json:"target_spill_bytes"`
}

// Compare builds a diff report for two plan analyses.
func Compare(base, target *analyzer.PlanAnalysis, opts Options) (*Report, error) {
	if base == nil || base.Root == nil {
		return nil, fmt.Errorf("diff: base analysis missing")
	}
	if target == nil || target.Root == nil {
		return nil, fmt.Errorf("diff: target analysis missing")
	}

	opts = applyDefaults(opts)

	baseAgg := aggregate(base.Root)
	targetAgg := aggregate(target.Root)

	var added, removed []string
	var regressions, improvements []Entry
	for _, sig := range unionKeys(baseAgg, targetAgg) {
		baseMetrics, inBase := baseAgg[sig]
		targetMetrics, inTarget := targetAgg[sig]

		switch {
		case !inBase:
			added = append(added, sig)
		case !inTarget:
			removed = append(removed, sig)
		}

		entry := buildEntry(sig, baseMetrics, targetMetrics)
		if passesRegression(entry, opts) {
			regressions = append(regressions, entry)
		} else if passesImprovement(entry, opts) {
			improvements = append(improvements, entry)
		}
	}

	sort.Slice(regressions, func(i, j int) bool {
		return regressions[i].DeltaDurationMs > regressions[j].DeltaDurationMs
	})
	sort.Slice(improvements, func(i, j int) bool {
		return improvements[i].DeltaDurationMs < improvements[j].DeltaDurationMs
	})
	if opts.MaxItems > 0 {
		if len(regressions) > opts.MaxItems {
			regressions = regressions[:opts.MaxItems]
		}
		if len(improvements) > opts.MaxItems {
			improvements = improvements[:opts.MaxItems]
		}
	}

	return &Report{
		Summary: SummaryDiff{
			BaseNodes:        base.NodeCount,
			TargetNodes:      target.NodeCount,
			BaseDurationMs:   base.TotalDurationMs,
			TargetDurationMs: target.TotalDurationMs,
			DeltaDurationMs:  target.TotalDurationMs - base.TotalDurationMs,
			PercentDuration:  percentChange(base.TotalDurationMs, target.TotalDurationMs),
			BaseShuffles:     base.ShuffleCount,
			TargetShuffles:   target.ShuffleCount,
			BaseSpillBytes:   base.TotalSpillBytes,
			TargetSpillBytes: target.TotalSpillBytes,
		},
		Added:        added,
		Removed:      removed,
		Regressions:  regressions,
		Improvements: improvements,
		Options:      opts,
	}, nil
}

// Markdown renders the report as a Markdown document.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("# plan diff\n\n")
	b.WriteString("## Summary\n")
	_, _ = fmt.Fprintf(&b, "- Nodes: %d → %d\n", r.Summary.BaseNodes, r.Summary.TargetNodes)
	_, _ = fmt.Fprintf(&b, "- Shuffles: %d → %d\n", r.Summary.BaseShuffles, r.Summary.TargetShuffles)
	if r.Summary.BaseDurationMs > 0 || r.Summary.TargetDurationMs > 0 {
		_, _ = fmt.Fprintf(&b, "- Duration: %.0f ms → %.0f ms (%+.0f ms, %+.1f%%)\n",
			r.Summary.BaseDurationMs, r.Summary.TargetDurationMs,
			r.Summary.DeltaDurationMs, r.Summary.PercentDuration)
	}
	if r.Summary.BaseSpillBytes > 0 || r.Summary.TargetSpillBytes > 0 {
		_, _ = fmt.Fprintf(&b, "- Spill: %s → %s\n",
			analyzer.HumanizeBytes(r.Summary.BaseSpillBytes),
			analyzer.HumanizeBytes(r.Summary.TargetSpillBytes))
	}
	b.WriteString("\n### Structure\n")
	if len(r.Added) == 0 && len(r.Removed) == 0 {
		b.WriteString("- Same operator set\n")
	}
	for _, sig := range r.Added {
		_, _ = fmt.Fprintf(&b, "- Added: %s\n", sig)
	}
	for _, sig := range r.Removed {
		_, _ = fmt.Fprintf(&b, "- Removed: %s\n", sig)
	}

	writeEntries := func(title string, entries []Entry) {
		_, _ = fmt.Fprintf(&b, "\n### %s\n", title)
		if len(entries) == 0 {
			b.WriteString("- None above threshold\n")
			return
		}
		b.WriteString("| Operator | Base (ms) | Target (ms) | Δ ms | Δ % | Rows |\n")
		b.WriteString("|---|---:|---:|---:|---:|---|\n")
		for _, entry := range entries {
			_, _ = fmt.Fprintf(&b, "| %s | %.0f | %.0f | %+.0f | %+.1f%% | %d → %d |\n",
				entry.Signature,
				entry.BaseDurationMs,
				entry.TargetDurationMs,
				entry.DeltaDurationMs,
				entry.PercentChange,
				entry.BaseRows,
				entry.TargetRows)
		}
	}
	writeEntries("Regressions", r.Regressions)
	writeEntries("Improvements", r.Improvements)
	return b.String()
}

// JSON marshals the diff report into an indented JSON document.
func (r *Report) JSON() ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("nil report")
	}
	type alias Report
	return json.MarshalIndent((*alias)(r), "", "  ")
}

type aggregated struct {
	DurationMs float64
	Rows       int64
	SpillBytes int64
}

func aggregate(root *analyzer.NodeStats) map[string]aggregated {
	result := map[string]aggregated{}
	var walk func(*analyzer.NodeStats)
	walk = func(n *analyzer.NodeStats) {
		sig := signature(n)
		entry := result[sig]
		entry.DurationMs += n.DurationMs
		entry.Rows += n.Rows
		entry.SpillBytes += n.SpillBytes
		result[sig] = entry
		for _, child := range n.Children {
			walk(child)
		}
	}
	walk(root)
	return result
}

func signature(node *analyzer.NodeStats) string {
	parts := []string{node.Node.Name}
	fields := node.Node.Fields
	if fields.Scan != nil && fields.Scan.Source != "" {
		parts = append(parts, fields.Scan.Source)
	}
	if fields.Join != nil && fields.Join.Type != "" {
		parts = append(parts, fields.Join.Type)
	}
	if fields.Exchange != nil && fields.Exchange.Partitioning != "" {
		parts = append(parts, fields.Exchange.Partitioning)
	}
	return strings.Join(parts, " · ")
}

func unionKeys(base, target map[string]aggregated) []string {
	seen := map[string]struct{}{}
	for k := range base {
		seen[k] = struct{}{}
	}
	for k := range target {
		seen[k] = struct{}{}
	}
	all := make([]string, 0, len(seen))
	for k := range seen {
		all = append(all, k)
	}
	sort.Strings(all)
	return all
}

func buildEntry(sig string, base, target aggregated) Entry {
	return Entry{
		Signature:        sig,
		BaseDurationMs:   base.DurationMs,
		TargetDurationMs: target.DurationMs,
		DeltaDurationMs:  target.DurationMs - base.DurationMs,
		PercentChange:    percentChange(base.DurationMs, target.DurationMs),
		BaseRows:         base.Rows,
		TargetRows:       target.Rows,
		DeltaRows:        target.Rows - base.Rows,
		BaseSpillBytes:   base.SpillBytes,
		TargetSpillBytes: target.SpillBytes,
	}
}

func passesRegression(entry Entry, opts Options) bool {
	if entry.DeltaDurationMs >= opts.MinDurationMs && entry.PercentChange >= opts.MinPercentChange {
		return true
	}
	return entry.BaseSpillBytes == 0 && entry.TargetSpillBytes > 0
}

func passesImprovement(entry Entry, opts Options) bool {
	if entry.DeltaDurationMs <= -opts.MinDurationMs && entry.PercentChange <= -opts.MinPercentChange {
		return true
	}
	return entry.BaseSpillBytes > 0 && entry.TargetSpillBytes == 0
}

func percentChange(base, target float64) float64 {
	const eps = 1e-9
	if math.Abs(base) <= eps {
		if math.Abs(target) <= eps {
			return 0
		}
		if target > 0 {
			return 100
		}
		return -100
	}
	return (target - base) / base * 100
}

func applyDefaults(opts Options) Options {
	cfg := config.Active().Diff
	if opts.MinRowsDelta <= 0 {
		opts.MinRowsDelta = cfg.MinRowsDelta
	}
	if opts.MinDurationMs <= 0 {
		opts.MinDurationMs = cfg.MinDurationMs
	}
	if opts.MinPercentChange <= 0 {
		opts.MinPercentChange = cfg.MinPercentChange
	}
	if opts.MaxItems <= 0 {
		opts.MaxItems = cfg.MaxItems
	}
	return opts
}
