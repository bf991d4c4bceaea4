package insight

import (
	"fmt"
	"strings"

	"sparkviz/internal/analyzer"
	"sparkviz/internal/config"
	"sparkviz/internal/model"
)

// Severity expresses the urgency of an insight message.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Message represents an actionable observation about a plan.
type Message struct {
	Severity Severity
	Text     string
	NodeID   int
}

// BuildMessages derives human-readable observations for a plan.
func BuildMessages(analysis *analyzer.PlanAnalysis) []Message {
	if analysis == nil {
		return nil
	}
	var out []Message

	if msg := hotStageMessage(analysis); msg != nil {
		out = append(out, *msg)
	}
	out = append(out, spillMessages(analysis)...)
	if msg := shuffleMessage(analysis); msg != nil {
		out = append(out, *msg)
	}
	if msg := broadcastMessage(analysis); msg != nil {
		out = append(out, *msg)
	}
	if msg := unknownMessage(analysis); msg != nil {
		out = append(out, *msg)
	}

	if max := config.Active().Insights.MaxMessages; max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

func hotStageMessage(analysis *analyzer.PlanAnalysis) *Message {
	if len(analysis.HotNodes) == 0 {
		return nil
	}
	cfg := config.Active().Insights
	hot := analysis.HotNodes[0]
	text := fmt.Sprintf("Hot operator: %s took %.0f ms (%.1f%% of plan)",
		CompactLabel(hot.Node), hot.DurationMs, hot.PercentDuration*100)
	if hot.Rows > 0 {
		text += fmt.Sprintf(", %d rows out", hot.Rows)
	}
	severity := SeverityInfo
	switch {
	case hot.PercentDuration >= cfg.HotStageCriticalPercent:
		severity = SeverityCritical
	case hot.PercentDuration >= cfg.HotStageWarningPercent:
		severity = SeverityWarning
	}
	return &Message{Severity: severity, Text: text, NodeID: hot.Node.ID}
}

func spillMessages(analysis *analyzer.PlanAnalysis) []Message {
	cfg := config.Active().Insights
	var msgs []Message
	for i, node := range analysis.SpillNodes {
		if i >= 2 {
			break
		}
		text := fmt.Sprintf("%s spilled %s to disk; consider more memory per task or fewer, larger partitions",
			CompactLabel(node.Node), analyzer.HumanizeBytes(node.SpillBytes))
		severity := SeverityWarning
		if node.SpillBytes >= cfg.SpillCriticalBytes {
			severity = SeverityCritical
		} else if node.SpillBytes < cfg.SpillWarningBytes {
			severity = SeverityInfo
		}
		msgs = append(msgs, Message{Severity: severity, Text: text, NodeID: node.Node.ID})
	}
	return msgs
}

func shuffleMessage(analysis *analyzer.PlanAnalysis) *Message {
	if analysis.ShuffleCount == 0 {
		return nil
	}
	cfg := config.Active().Insights
	text := fmt.Sprintf("Plan shuffles data %d time(s)", analysis.ShuffleCount)
	severity := SeverityInfo
	if analysis.MaxPartitions >= cfg.ShuffleWarnPartitions {
		text += fmt.Sprintf(", widest exchange uses %d partitions; check partition sizing", analysis.MaxPartitions)
		severity = SeverityWarning
	}
	return &Message{Severity: severity, Text: text, NodeID: -1}
}

func broadcastMessage(analysis *analyzer.PlanAnalysis) *Message {
	if analysis.BroadcastJoins == 0 {
		return nil
	}
	text := fmt.Sprintf("%d broadcast join(s): the smaller side is replicated to every worker instead of shuffled", analysis.BroadcastJoins)
	return &Message{Severity: SeverityInfo, Text: text, NodeID: -1}
}

func unknownMessage(analysis *analyzer.PlanAnalysis) *Message {
	if analysis.UnknownCount == 0 {
		return nil
	}
	text := fmt.Sprintf("%d operator(s) were not recognized and are shown as generic nodes", analysis.UnknownCount)
	return &Message{Severity: SeverityInfo, Text: text, NodeID: -1}
}

// CompactLabel shortens long node labels for inline summaries.
func CompactLabel(node *model.PlanNode) string {
	label := node.Label()
	if len(label) > 60 {
		return label[:57] + "..."
	}
	return label
}

// NormalizeWhitespace collapses whitespace for use in HTML or text.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
