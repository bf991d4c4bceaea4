package tui_test

import (
	"bytes"
	"strings"
	"testing"

	"sparkviz/internal/render/tui"
	"sparkviz/test"
)

func TestRenderMeasuredPlan(t *testing.T) {
	analysis := test.LoadSampleAnalysis(t, "aggregate.txt", "aggregate_metrics.json")

	var buf bytes.Buffer
	err := tui.Render(&buf, analysis, tui.Options{ShowWarnings: true})
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"Plan of 5 operators",
		"total 7250 ms",
		"Insights:",
		"HashAggregate",
		"`-- ",
		"spill 128.00 MiB",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Fatalf("colors must be off by default:\n%s", out)
	}
}

func TestRenderStaticPlan(t *testing.T) {
	analysis := test.LoadSampleAnalysis(t, "aqe_broadcast.txt", "")

	var buf bytes.Buffer
	if err := tui.Render(&buf, analysis, tui.Options{}); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "no runtime metrics attached") {
		t.Fatalf("expected static header, got:\n%s", out)
	}
	if strings.Contains(out, " ms") {
		t.Fatalf("static plans must not print timings:\n%s", out)
	}
}

func TestRenderMaxDepth(t *testing.T) {
	analysis := test.LoadSampleAnalysis(t, "aggregate.txt", "")

	var buf bytes.Buffer
	if err := tui.Render(&buf, analysis, tui.Options{MaxDepth: 1}); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(buf.String(), "more nodes") {
		t.Fatalf("expected depth truncation marker, got:\n%s", buf.String())
	}
}

func TestRenderEmptyAnalysis(t *testing.T) {
	var buf bytes.Buffer
	if err := tui.Render(&buf, nil, tui.Options{}); err == nil {
		t.Fatalf("expected error for missing analysis")
	}
}
