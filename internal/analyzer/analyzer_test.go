package analyzer_test

import (
	"strings"
	"testing"

	"sparkviz/internal/analyzer"
	"sparkviz/internal/model"
	"sparkviz/test"
)

func TestAnalyzeWithMetrics(t *testing.T) {
	analysis := test.LoadSampleAnalysis(t, "aggregate.txt", "aggregate_metrics.json")

	if !analysis.HasMetrics {
		t.Fatalf("expected metrics to be detected")
	}
	if analysis.NodeCount != 5 {
		t.Fatalf("expected 5 nodes, got %d", analysis.NodeCount)
	}
	if analysis.TotalDurationMs != 7250 {
		t.Fatalf("expected total duration 7250 ms, got %v", analysis.TotalDurationMs)
	}
	if analysis.TotalRows != 2402825 {
		t.Fatalf("expected total rows 2402825, got %d", analysis.TotalRows)
	}
	if analysis.TotalSpillBytes != 134217728 {
		t.Fatalf("expected 128 MiB of spill, got %d", analysis.TotalSpillBytes)
	}
	if analysis.ShuffleCount != 1 || analysis.MaxPartitions != 200 {
		t.Fatalf("unexpected shuffle stats: count=%d partitions=%d", analysis.ShuffleCount, analysis.MaxPartitions)
	}
	if analysis.UnknownCount != 0 {
		t.Fatalf("expected no unknown operators, got %d", analysis.UnknownCount)
	}

	if len(analysis.HotNodes) == 0 {
		t.Fatalf("expected hot nodes")
	}
	hottest := analysis.HotNodes[0]
	if hottest.Node.Kind != model.KindScan {
		t.Fatalf("expected the scan to dominate, got %q", hottest.Node.Kind)
	}
	if hottest.PercentDuration <= 0.40 || hottest.PercentDuration >= 0.45 {
		t.Fatalf("unexpected hottest share: %v", hottest.PercentDuration)
	}

	if len(analysis.SpillNodes) != 1 {
		t.Fatalf("expected one spilling node, got %d", len(analysis.SpillNodes))
	}
	spiller := analysis.SpillNodes[0]
	if spiller.Node.Kind != model.KindExchange {
		t.Fatalf("expected the exchange to spill, got %q", spiller.Node.Kind)
	}
	found := false
	for _, warning := range spiller.Warnings {
		if strings.Contains(warning, "spilled") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a spill warning, got %v", spiller.Warnings)
	}
}

func TestAnalyzeStaticPlan(t *testing.T) {
	analysis := test.LoadSampleAnalysis(t, "aqe_broadcast.txt", "")

	if analysis.HasMetrics {
		t.Fatalf("static plan must not report metrics")
	}
	if analysis.BroadcastJoins != 1 {
		t.Fatalf("expected one broadcast join, got %d", analysis.BroadcastJoins)
	}
	if analysis.ShuffleCount != 0 {
		t.Fatalf("broadcast exchange is not a shuffle, got %d", analysis.ShuffleCount)
	}
	if analysis.UnknownCount != 2 {
		t.Fatalf("expected adaptive wrapper and query stage as unknowns, got %d", analysis.UnknownCount)
	}
	if len(analysis.HotNodes) != 0 {
		t.Fatalf("expected no hot nodes without timings, got %d", len(analysis.HotNodes))
	}
}

func TestAnalyzeNilTree(t *testing.T) {
	if _, err := analyzer.Analyze(nil); err == nil {
		t.Fatalf("expected error for missing tree")
	}
}

func TestHumanizeBytes(t *testing.T) {
	cases := map[int64]string{
		512:            "512 B",
		2048:           "2.00 KiB",
		134217728:      "128.00 MiB",
		1 << 30:        "1.00 GiB",
	}
	for in, want := range cases {
		if got := analyzer.HumanizeBytes(in); got != want {
			t.Fatalf("HumanizeBytes(%d) = %q, want %q", in, got, want)
		}
	}
}
