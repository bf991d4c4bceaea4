package analyzer

import (
	"fmt"
	"sort"

	"sparkviz/internal/config"
	"sparkviz/internal/model"
)

// PlanAnalysis contains derived statistics for a parsed plan.
type PlanAnalysis struct {
	Tree            *model.PlanTree
	Root            *NodeStats
	NodeCount       int
	HasMetrics      bool
	TotalDurationMs float64
	TotalRows       int64
	TotalSpillBytes int64
	ShuffleCount    int
	BroadcastJoins  int
	UnknownCount    int
	MaxPartitions   int
	HotNodes        []*NodeStats
	SpillNodes      []*NodeStats
}

// NodeStats augments a plan node with computed statistics.
type NodeStats struct {
	Node            *model.PlanNode
	Parent          *NodeStats
	Depth           int
	DurationMs      float64
	PercentDuration float64
	Rows            int64
	SpillBytes      int64
	Warnings        []string
	Children        []*NodeStats
}

// Analyze derives statistics for the provided plan tree. Metrics are
// optional: without them the analysis still counts structure (shuffles,
// broadcasts, unknown operators) but carries no timings.
func Analyze(tree *model.PlanTree) (*PlanAnalysis, error) {
	if tree == nil || tree.Root == nil {
		return nil, fmt.Errorf("analyze: missing plan tree")
	}

	analysis := &PlanAnalysis{Tree: tree, NodeCount: tree.Len()}
	analysis.Root = buildStats(analysis, tree.Root, nil, 0)

	annotateRatios(analysis.Root, analysis.TotalDurationMs)

	all := flatten(analysis.Root)
	for _, stats := range all {
		stats.Warnings = deriveWarnings(analysis, stats)
	}
	analysis.HotNodes = selectHotNodes(all)
	analysis.SpillNodes = selectSpillNodes(all)

	return analysis, nil
}

func buildStats(analysis *PlanAnalysis, node *model.PlanNode, parent *NodeStats, depth int) *NodeStats {
	stats := &NodeStats{Node: node, Parent: parent, Depth: depth}

	if m := node.Metrics; m != nil {
		analysis.HasMetrics = true
		stats.DurationMs = m.DurationMs
		stats.Rows = m.Rows
		stats.SpillBytes = m.SpillBytes
		analysis.TotalDurationMs += m.DurationMs
		analysis.TotalRows += m.Rows
		analysis.TotalSpillBytes += m.SpillBytes
	}

	switch node.Kind {
	case model.KindExchange:
		if ex := node.Fields.Exchange; ex != nil {
			if ex.Shuffle {
				analysis.ShuffleCount++
			}
			if ex.Partitions > analysis.MaxPartitions {
				analysis.MaxPartitions = ex.Partitions
			}
		}
	case model.KindJoin:
		if j := node.Fields.Join; j != nil && j.Broadcast {
			analysis.BroadcastJoins++
		}
	case model.KindUnknown:
		analysis.UnknownCount++
	}

	for _, child := range node.Children {
		stats.Children = append(stats.Children, buildStats(analysis, child, stats, depth+1))
	}
	return stats
}

func annotateRatios(node *NodeStats, total float64) {
	if total > 0 {
		node.PercentDuration = node.DurationMs / total
	}
	for _, child := range node.Children {
		annotateRatios(child, total)
	}
}

func flatten(root *NodeStats) []*NodeStats {
	var out []*NodeStats
	var walk func(*NodeStats)
	walk = func(n *NodeStats) {
		out = append(out, n)
		for _, child := range n.Children {
			walk(child)
		}
	}
	walk(root)
	return out
}

func selectHotNodes(nodes []*NodeStats) []*NodeStats {
	candidates := make([]*NodeStats, 0, len(nodes))
	for _, n := range nodes {
		if n.PercentDuration > 0 {
			candidates = append(candidates, n)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].PercentDuration > candidates[j].PercentDuration
	})

	limit := 5
	if len(candidates) < limit {
		limit = len(candidates)
	}
	cutoff := 0.10

	var out []*NodeStats
	for _, candidate := range candidates[:limit] {
		if candidate.PercentDuration < cutoff {
			break
		}
		out = append(out, candidate)
	}
	if len(out) == 0 {
		out = candidates[:limit]
	}
	return out
}

func selectSpillNodes(nodes []*NodeStats) []*NodeStats {
	var out []*NodeStats
	for _, n := range nodes {
		if n.SpillBytes > 0 {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SpillBytes > out[j].SpillBytes
	})
	return out
}

func deriveWarnings(analysis *PlanAnalysis, stats *NodeStats) []string {
	cfg := config.Active().Insights
	var warnings []string
	if stats.PercentDuration >= cfg.HotStageWarningPercent {
		warnings = append(warnings, fmt.Sprintf("self time %.1f%% of plan", stats.PercentDuration*100))
	}
	if stats.SpillBytes > 0 {
		warnings = append(warnings, fmt.Sprintf("spilled %s", HumanizeBytes(stats.SpillBytes)))
	}
	if ex := stats.Node.Fields.Exchange; ex != nil && ex.Partitions >= cfg.ShuffleWarnPartitions {
		warnings = append(warnings, fmt.Sprintf("%d shuffle partitions", ex.Partitions))
	}
	return warnings
}

// HumanizeBytes converts a byte count into a readable size.
func HumanizeBytes(n int64) string {
	b := float64(n)
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.2f GiB", b/(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.2f MiB", b/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.2f KiB", b/(1<<10))
	default:
		return fmt.Sprintf("%.0f B", b)
	}
}
