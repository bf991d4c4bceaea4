package parser_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"sparkviz/internal/model"
	"sparkviz/internal/parser"
	"sparkviz/test"
)

func TestParseSimplePlan(t *testing.T) {
	tree := test.LoadSampleTree(t, "simple.txt", "")

	if got := tree.Len(); got != 3 {
		t.Fatalf("expected 3 nodes, got %d", got)
	}
	if tree.Flow != model.FlowBottomUp {
		t.Fatalf("expected bottom-up flow, got %q", tree.Flow)
	}

	root := tree.Root
	if root.Kind != model.KindProject || root.Name != "Project" {
		t.Fatalf("unexpected root: kind=%q name=%q", root.Kind, root.Name)
	}
	if cols := root.Fields.Project.Columns; len(cols) != 2 || cols[0] != "id" || cols[1] != "total" {
		t.Fatalf("unexpected project columns: %v", cols)
	}
	if len(root.Children) != 1 {
		t.Fatalf("expected one child under root, got %d", len(root.Children))
	}

	filter := root.Children[0]
	if filter.Kind != model.KindFilter {
		t.Fatalf("expected filter node, got %q", filter.Kind)
	}
	if got := filter.Fields.Filter.Condition; got != "(total#2 > 100)" {
		t.Fatalf("unexpected filter condition: %q", got)
	}

	scan := filter.Children[0]
	if scan.Kind != model.KindScan {
		t.Fatalf("expected scan node, got %q", scan.Kind)
	}
	info := scan.Fields.Scan
	if info.Format != "PARQUET" {
		t.Fatalf("unexpected scan format: %q", info.Format)
	}
	if info.Source != "db.orders" {
		t.Fatalf("unexpected scan source: %q", info.Source)
	}
	if len(info.PushedFilters) != 1 || info.PushedFilters[0] != "IsNotNull(total)" {
		t.Fatalf("unexpected pushed filters: %v", info.PushedFilters)
	}

	// IDs are assigned in line order and resolvable through the tree.
	for i, want := range []*model.PlanNode{root, filter, scan} {
		if want.ID != i {
			t.Fatalf("expected node %d to have id %d, got %d", i, i, want.ID)
		}
		if tree.Node(i) != want {
			t.Fatalf("node lookup mismatch for id %d", i)
		}
	}
}

func TestParseSelectsPhysicalSection(t *testing.T) {
	tree := test.LoadSampleTree(t, "sort_merge_join.txt", "")

	if got := tree.Len(); got != 8 {
		t.Fatalf("expected 8 physical operators, got %d", got)
	}

	root := tree.Root
	if root.Kind != model.KindJoin || root.Name != "SortMergeJoin" {
		t.Fatalf("unexpected root: kind=%q name=%q", root.Kind, root.Name)
	}
	if root.EngineID != "5" {
		t.Fatalf("expected engine id 5 on root, got %q", root.EngineID)
	}
	if join := root.Fields.Join; join.Type != "Inner" || join.Broadcast {
		t.Fatalf("unexpected join info: %+v", join)
	}
	if len(root.Children) != 2 {
		t.Fatalf("expected two join inputs, got %d", len(root.Children))
	}

	left := root.Children[0]
	if left.Kind != model.KindSort {
		t.Fatalf("expected sort on the left input, got %q", left.Kind)
	}
	if orders := left.Fields.Sort.Orders; len(orders) != 1 || orders[0].Column != "id" || orders[0].Direction != "ASC" {
		t.Fatalf("unexpected sort orders: %v", orders)
	}

	exchange := left.Children[0]
	if exchange.Kind != model.KindExchange {
		t.Fatalf("expected exchange under sort, got %q", exchange.Kind)
	}
	ex := exchange.Fields.Exchange
	if ex.Partitioning != "hash" || ex.Partitions != 200 || !ex.Shuffle || ex.Broadcast {
		t.Fatalf("unexpected exchange info: %+v", ex)
	}

	c2r := exchange.Children[0]
	if c2r.Kind != model.KindUnknown || c2r.Summary == "" {
		t.Fatalf("expected ColumnarToRow as a generic node with its raw text, got kind=%q summary=%q", c2r.Kind, c2r.Summary)
	}

	leftScan := c2r.Children[0]
	if leftScan.Fields.Scan.Source != "orders" {
		t.Fatalf("expected source from scan location, got %q", leftScan.Fields.Scan.Source)
	}
	if pushed := leftScan.Fields.Scan.PushedFilters; len(pushed) != 1 || pushed[0] != "IsNotNull(id)" {
		t.Fatalf("unexpected pushed filters: %v", pushed)
	}

	rightScan := root.Children[1].Children[0].Children[0]
	if rightScan.Fields.Scan.Source != "db.customers" {
		t.Fatalf("expected table-token source on right scan, got %q", rightScan.Fields.Scan.Source)
	}
}

func TestParseAdaptivePlanKeepsFinalOnly(t *testing.T) {
	tree := test.LoadSampleTree(t, "aqe_broadcast.txt", "")

	if got := tree.Len(); got != 7 {
		t.Fatalf("expected 7 nodes from the final plan, got %d", got)
	}

	root := tree.Root
	if root.Name != "AdaptiveSparkPlan" || root.Kind != model.KindUnknown {
		t.Fatalf("unexpected root: kind=%q name=%q", root.Kind, root.Name)
	}

	join := root.Children[0]
	if join.Kind != model.KindJoin || join.EngineID != "2" {
		t.Fatalf("unexpected join node: kind=%q engine=%q", join.Kind, join.EngineID)
	}
	info := join.Fields.Join
	if info.Type != "Inner" || !info.Broadcast || info.BuildSide != "Right" {
		t.Fatalf("unexpected join info: %+v", info)
	}
	if len(join.Children) != 2 {
		t.Fatalf("expected two join inputs, got %d", len(join.Children))
	}

	stage := join.Children[1]
	if stage.Kind != model.KindUnknown {
		t.Fatalf("expected query-stage wrapper to stay generic, got %q", stage.Kind)
	}
	broadcast := stage.Children[0]
	ex := broadcast.Fields.Exchange
	if ex == nil || !ex.Broadcast || ex.Shuffle || ex.Reused {
		t.Fatalf("unexpected broadcast exchange info: %+v", ex)
	}
}

func TestParseMalformedInputs(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"whitespace":     "   \n\t\n",
		"depth jump":     "Union\n  Project [a#1]\n      Scan parquet t1",
		"second root":    "Project [a#1]\nFilter (a#1 > 1)",
		"ragged indent":  "Project [a#1]\n   Filter (a#1 > 1)\n    Scan parquet t1",
		"ragged markers": "Project [a#1]\n+-  Filter (a#1 > 1)",
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parser.Parse(text)
			if err == nil {
				t.Fatalf("expected error for %s input", name)
			}
			var malformed *parser.MalformedPlanError
			if !errors.As(err, &malformed) {
				t.Fatalf("expected MalformedPlanError, got %T: %v", err, err)
			}
		})
	}
}

func TestParseUnknownOperatorFallback(t *testing.T) {
	tree, err := parser.Parse("SomethingCustom xyz#1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	node := tree.Root
	if node.Kind != model.KindUnknown {
		t.Fatalf("expected unknown kind, got %q", node.Kind)
	}
	if node.Name != "SomethingCustom" || node.Summary != "SomethingCustom xyz#1" {
		t.Fatalf("expected full text preserved, got name=%q summary=%q", node.Name, node.Summary)
	}
}

func TestParseIsDeterministic(t *testing.T) {
	text := test.ReadSample(t, "sort_merge_join.txt")

	first, err := parser.Parse(text)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	second, err := parser.Parse(text)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	a, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b, err := json.Marshal(second)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("expected identical trees across parses")
	}
}
