// Package layout positions a plan tree for rendering: one axis is
// nesting depth, the other is sibling order, with parents centered over
// their subtrees so no two subtrees overlap.
package layout

import (
	"sort"

	"sparkviz/internal/config"
	"sparkviz/internal/model"
)

// Geometry of the default node grid. Renderers may scale it but the
// relative positions are the contract.
const (
	NodeWidth  = 180.0
	NodeHeight = 56.0
	HGap       = 40.0
	VGap       = 70.0
)

// Node is one positioned operator.
type Node struct {
	ID      int          `json:"id"`
	X       float64      `json:"x"`
	Y       float64      `json:"y"`
	Width   float64      `json:"width"`
	Height  float64      `json:"height"`
	Label   string       `json:"label"`
	Kind    model.OpKind `json:"kind"`
	Color   string       `json:"color"`
	Leaf    bool         `json:"leaf"`
	Depth   int          `json:"depth"`
	Summary string       `json:"summary"`
}

// Edge is one arrow of the diagram. From and To are node ids ordered in
// data-flow direction.
type Edge struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Layout is the positioned form of a plan tree.
type Layout struct {
	Nodes     []Node              `json:"nodes"`
	Edges     []Edge              `json:"edges"`
	Width     float64             `json:"width"`
	Height    float64             `json:"height"`
	Direction model.FlowDirection `json:"direction"`
}

// defaultPalette maps operator kinds to their diagram colors.
var defaultPalette = map[model.OpKind]string{
	model.KindScan:      "#2e7d32",
	model.KindFilter:    "#f9a825",
	model.KindJoin:      "#c62828",
	model.KindExchange:  "#ef6c00",
	model.KindAggregate: "#6a1b9a",
	model.KindSort:      "#1565c0",
	model.KindProject:   "#00838f",
	model.KindWindow:    "#283593",
	model.KindUnion:     "#4e342e",
	model.KindUnknown:   "#616161",
}

// ColorFor resolves a kind to its palette color, honoring config
// overrides.
func ColorFor(kind model.OpKind) string {
	if overrides := config.Active().Palette; overrides != nil {
		if c, ok := overrides[string(kind)]; ok && c != "" {
			return c
		}
	}
	if c, ok := defaultPalette[kind]; ok {
		return c
	}
	return defaultPalette[model.KindUnknown]
}

// Compute lays out the tree: y grows with depth, x is assigned by a
// tidy pass that gives each leaf its own slot and centers every parent
// over its children.
func Compute(tree *model.PlanTree) *Layout {
	if tree == nil || tree.Root == nil {
		return &Layout{}
	}

	lay := &Layout{Direction: tree.Flow}

	var (
		nextSlot float64
		maxDepth int
		place    func(node *model.PlanNode, depth int) float64
	)
	place = func(node *model.PlanNode, depth int) float64 {
		if depth > maxDepth {
			maxDepth = depth
		}

		var x float64
		if len(node.Children) == 0 {
			x = nextSlot
			nextSlot += NodeWidth + HGap
		} else {
			first, last := 0.0, 0.0
			for i, child := range node.Children {
				cx := place(child, depth+1)
				if i == 0 {
					first = cx
				}
				last = cx
			}
			x = (first + last) / 2
		}

		lay.Nodes = append(lay.Nodes, Node{
			ID:      node.ID,
			X:       x,
			Y:       float64(depth) * (NodeHeight + VGap),
			Width:   NodeWidth,
			Height:  NodeHeight,
			Label:   node.Label(),
			Kind:    node.Kind,
			Color:   ColorFor(node.Kind),
			Leaf:    len(node.Children) == 0,
			Depth:   depth,
			Summary: node.Summary,
		})
		for _, child := range node.Children {
			if tree.Flow == model.FlowBottomUp {
				lay.Edges = append(lay.Edges, Edge{From: child.ID, To: node.ID})
			} else {
				lay.Edges = append(lay.Edges, Edge{From: node.ID, To: child.ID})
			}
		}
		return x
	}
	place(tree.Root, 0)

	sort.Slice(lay.Nodes, func(i, j int) bool { return lay.Nodes[i].ID < lay.Nodes[j].ID })

	if nextSlot == 0 {
		nextSlot = NodeWidth + HGap
	}
	lay.Width = nextSlot - HGap
	lay.Height = float64(maxDepth)*(NodeHeight+VGap) + NodeHeight
	return lay
}
