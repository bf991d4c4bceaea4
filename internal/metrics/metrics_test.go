package metrics_test

import (
	"strings"
	"testing"

	"sparkviz/internal/metrics"
	"sparkviz/internal/parser"
	"sparkviz/test"
)

const orderedPlan = `*(12) HashAggregate(keys=[a#1], functions=[sum(b#2)])
+- Exchange hashpartitioning(a#1, 64)
   +- *(11) HashAggregate(keys=[a#1], functions=[partial_sum(b#2)])
      +- *(10) FileScan parquet db.t[a#1,b#2]
`

func TestMergeByEngineID(t *testing.T) {
	tree, err := parser.Parse(orderedPlan)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	// The stray "1" key matches the exchange's traversal id but not any
	// echoed ordinal; an ordinal-keyed source must ignore it.
	source, err := metrics.ParseJSON(strings.NewReader(`{
		"12": {"number of output rows": 10, "aggregate time": 120},
		"11": {"number of output rows": 500, "aggregate time": 300},
		"10": {"number of output rows": 9000, "scan time": "450"},
		"1": {"number of output rows": 77}
	}`))
	if err != nil {
		t.Fatalf("parse metrics: %v", err)
	}

	if matched := metrics.Merge(tree, source); matched != 3 {
		t.Fatalf("expected 3 nodes matched, got %d", matched)
	}

	root := tree.Root
	if root.Metrics == nil || root.Metrics.Rows != 10 || root.Metrics.DurationMs != 120 {
		t.Fatalf("unexpected root metrics: %+v", root.Metrics)
	}

	exchange := tree.Node(1)
	if exchange.Metrics != nil {
		t.Fatalf("exchange has no metrics key and must stay bare, got %+v", exchange.Metrics)
	}

	scan := tree.Node(3)
	if scan.Metrics == nil || scan.Metrics.Rows != 9000 || scan.Metrics.DurationMs != 450 {
		t.Fatalf("unexpected scan metrics (string counter must coerce): %+v", scan.Metrics)
	}
}

func TestMergeByTraversalOrder(t *testing.T) {
	tree := test.LoadSampleTree(t, "aggregate.txt", "aggregate_metrics.json")

	root := tree.Root
	if root.EngineID != "3" {
		t.Fatalf("expected engine id 3 on root, got %q", root.EngineID)
	}
	// The sample source is keyed by traversal order. The root's echoed
	// ordinal "3" collides with the Project's key, so the merge must
	// settle on traversal keying for the whole source: the root reads
	// key "0", not the Project's counters under "3".
	if root.Metrics == nil || root.Metrics.Rows != 25 || root.Metrics.DurationMs != 180 {
		t.Fatalf("unexpected root metrics: %+v", root.Metrics)
	}

	exchange := tree.Node(1)
	if exchange.Metrics == nil || exchange.Metrics.SpillBytes != 134217728 {
		t.Fatalf("expected spill bytes on exchange, got %+v", exchange.Metrics)
	}
	if exchange.Metrics.Counters["shuffle write time"] != 950 {
		t.Fatalf("expected raw counters preserved, got %v", exchange.Metrics.Counters)
	}

	project := tree.Node(3)
	if project.EngineID != "1" {
		t.Fatalf("expected engine id 1 on project, got %q", project.EngineID)
	}
	if project.Metrics == nil || project.Metrics.Rows != 1200000 {
		t.Fatalf("project must read its own traversal key, got %+v", project.Metrics)
	}

	scan := tree.Node(4)
	if scan.Metrics == nil || scan.Metrics.DurationMs != 3100 {
		t.Fatalf("unexpected scan metrics: %+v", scan.Metrics)
	}
}

func TestMergeWithoutSource(t *testing.T) {
	tree, err := parser.Parse(orderedPlan)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if matched := metrics.Merge(tree, nil); matched != 0 {
		t.Fatalf("expected no matches for empty source, got %d", matched)
	}
	for id := 0; id < tree.Len(); id++ {
		if tree.Node(id).Metrics != nil {
			t.Fatalf("node %d should carry no metrics", id)
		}
	}
}

func TestParseJSONRejectsNonObject(t *testing.T) {
	if _, err := metrics.ParseJSON(strings.NewReader(`[1, 2, 3]`)); err == nil {
		t.Fatalf("expected error for non-object metrics document")
	}
}
