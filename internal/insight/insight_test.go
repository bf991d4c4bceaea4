package insight_test

import (
	"strings"
	"testing"

	"sparkviz/internal/insight"
	"sparkviz/internal/model"
	"sparkviz/test"
)

func TestBuildMessagesForMeasuredPlan(t *testing.T) {
	analysis := test.LoadSampleAnalysis(t, "aggregate.txt", "aggregate_metrics.json")

	messages := insight.BuildMessages(analysis)
	if len(messages) == 0 {
		t.Fatalf("expected insight messages")
	}

	hot := messages[0]
	if !strings.Contains(hot.Text, "Hot operator") {
		t.Fatalf("expected the hot-operator message first, got %q", hot.Text)
	}
	if hot.Severity != insight.SeverityCritical {
		t.Fatalf("expected critical severity for a >40%% operator, got %q", hot.Severity)
	}
	if hot.NodeID < 0 {
		t.Fatalf("hot message must point at a node, got %d", hot.NodeID)
	}

	var spill, shuffle *insight.Message
	for i := range messages {
		switch {
		case strings.Contains(messages[i].Text, "spilled"):
			spill = &messages[i]
		case strings.Contains(messages[i].Text, "shuffles data"):
			shuffle = &messages[i]
		}
	}
	if spill == nil {
		t.Fatalf("expected a spill message in %v", messages)
	}
	if spill.Severity != insight.SeverityWarning {
		t.Fatalf("128 MiB of spill should warn, got %q", spill.Severity)
	}
	if shuffle == nil {
		t.Fatalf("expected a shuffle message in %v", messages)
	}
	if shuffle.Severity != insight.SeverityInfo {
		t.Fatalf("200 partitions is below the warning threshold, got %q", shuffle.Severity)
	}
}

func TestBuildMessagesForStaticPlan(t *testing.T) {
	analysis := test.LoadSampleAnalysis(t, "aqe_broadcast.txt", "")

	messages := insight.BuildMessages(analysis)
	var broadcast, unknown bool
	for _, msg := range messages {
		if strings.Contains(msg.Text, "broadcast join") {
			broadcast = true
		}
		if strings.Contains(msg.Text, "not recognized") {
			unknown = true
		}
	}
	if !broadcast {
		t.Fatalf("expected a broadcast-join note in %v", messages)
	}
	if !unknown {
		t.Fatalf("expected an unknown-operator note in %v", messages)
	}
}

func TestBuildMessagesNilAnalysis(t *testing.T) {
	if got := insight.BuildMessages(nil); got != nil {
		t.Fatalf("expected nil messages, got %v", got)
	}
}

func TestCompactLabel(t *testing.T) {
	short := &model.PlanNode{Name: "Filter"}
	if got := insight.CompactLabel(short); got != "Filter" {
		t.Fatalf("expected short label untouched, got %q", got)
	}

	long := &model.PlanNode{Name: strings.Repeat("x", 80)}
	got := insight.CompactLabel(long)
	if len(got) != 60 || !strings.HasSuffix(got, "...") {
		t.Fatalf("expected truncated label, got %q (len %d)", got, len(got))
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	if got := insight.NormalizeWhitespace("  a \t b\nc  "); got != "a b c" {
		t.Fatalf("unexpected normalization: %q", got)
	}
}
