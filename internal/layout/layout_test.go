package layout_test

import (
	"testing"

	"sparkviz/internal/config"
	"sparkviz/internal/layout"
	"sparkviz/internal/model"
	"sparkviz/test"
)

func TestComputeChain(t *testing.T) {
	tree := test.LoadSampleTree(t, "aggregate.txt", "")

	lay := layout.Compute(tree)
	if len(lay.Nodes) != 5 {
		t.Fatalf("expected 5 positioned nodes, got %d", len(lay.Nodes))
	}
	if lay.Direction != model.FlowBottomUp {
		t.Fatalf("unexpected direction: %q", lay.Direction)
	}

	for i, node := range lay.Nodes {
		if node.ID != i {
			t.Fatalf("nodes must be ordered by id, got %d at index %d", node.ID, i)
		}
		if node.X != 0 {
			t.Fatalf("a single chain occupies one slot, node %d at x=%v", node.ID, node.X)
		}
		if want := float64(i) * (layout.NodeHeight + layout.VGap); node.Y != want {
			t.Fatalf("node %d at y=%v, want %v", node.ID, node.Y, want)
		}
	}

	if len(lay.Edges) != 4 {
		t.Fatalf("expected 4 edges, got %d", len(lay.Edges))
	}
	for _, edge := range lay.Edges {
		if edge.From <= edge.To {
			t.Fatalf("bottom-up edges run child to parent, got %d -> %d", edge.From, edge.To)
		}
	}

	if lay.Width != layout.NodeWidth {
		t.Fatalf("unexpected width: %v", lay.Width)
	}
	if want := 4*(layout.NodeHeight+layout.VGap) + layout.NodeHeight; lay.Height != want {
		t.Fatalf("unexpected height: %v, want %v", lay.Height, want)
	}
}

func TestComputeCentersParents(t *testing.T) {
	tree := test.LoadSampleTree(t, "sort_merge_join.txt", "")

	lay := layout.Compute(tree)

	byID := map[int]layout.Node{}
	for _, node := range lay.Nodes {
		byID[node.ID] = node
	}

	root := byID[tree.Root.ID]
	left := byID[tree.Root.Children[0].ID]
	right := byID[tree.Root.Children[1].ID]
	if want := (left.X + right.X) / 2; root.X != want {
		t.Fatalf("root at x=%v, want centered %v", root.X, want)
	}
	if left.X >= right.X {
		t.Fatalf("siblings must keep input order, got %v >= %v", left.X, right.X)
	}
	if !byID[4].Leaf || byID[2].Leaf {
		t.Fatalf("leaf flags wrong: %+v %+v", byID[4], byID[2])
	}
}

func TestColorForPaletteOverride(t *testing.T) {
	t.Cleanup(func() { config.Use(config.Default()) })

	if got := layout.ColorFor(model.KindScan); got != "#2e7d32" {
		t.Fatalf("unexpected default scan color: %q", got)
	}
	if got := layout.ColorFor(model.OpKind("bogus")); got != layout.ColorFor(model.KindUnknown) {
		t.Fatalf("unexpected fallback color: %q", got)
	}

	cfg := config.Default()
	cfg.Palette = map[string]string{"scan": "#111111"}
	config.Use(cfg)
	if got := layout.ColorFor(model.KindScan); got != "#111111" {
		t.Fatalf("expected palette override, got %q", got)
	}
}

func TestComputeEmptyTree(t *testing.T) {
	lay := layout.Compute(nil)
	if len(lay.Nodes) != 0 || len(lay.Edges) != 0 {
		t.Fatalf("expected empty layout, got %+v", lay)
	}
}
