// Package dot renders a plan tree through Graphviz, either as DOT text
// or as a rasterized SVG, using the same layout contract as the HTML
// renderer (kind colors, arrows in data-flow direction).
package dot

import (
	"context"
	"fmt"
	"io"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"

	"sparkviz/internal/insight"
	"sparkviz/internal/layout"
	"sparkviz/internal/model"
)

// Format selects the Graphviz output encoding.
type Format string

const (
	FormatDOT Format = "dot"
	FormatSVG Format = "svg"
)

// Render writes the plan tree in the requested format.
func Render(ctx context.Context, w io.Writer, tree *model.PlanTree, format Format) error {
	if tree == nil || tree.Root == nil {
		return fmt.Errorf("dot render: empty plan tree")
	}

	g, err := graphviz.New(ctx)
	if err != nil {
		return fmt.Errorf("dot render: init graphviz: %w", err)
	}
	defer func() { _ = g.Close() }()

	graph, err := g.Graph()
	if err != nil {
		return fmt.Errorf("dot render: create graph: %w", err)
	}
	defer func() { _ = graph.Close() }()

	if err := build(graph, tree); err != nil {
		return err
	}

	var gformat graphviz.Format
	switch format {
	case FormatSVG:
		gformat = graphviz.SVG
	case FormatDOT, "":
		gformat = graphviz.XDOT
	default:
		return fmt.Errorf("dot render: unsupported format %q", format)
	}
	if err := g.Render(ctx, graph, gformat, w); err != nil {
		return fmt.Errorf("dot render: render: %w", err)
	}
	return nil
}

func build(graph *cgraph.Graph, tree *model.PlanTree) error {
	var addNode func(node *model.PlanNode) (*cgraph.Node, error)
	addNode = func(node *model.PlanNode) (*cgraph.Node, error) {
		gv, err := graph.CreateNodeByName(nodeName(node))
		if err != nil {
			return nil, fmt.Errorf("dot render: node %d: %w", node.ID, err)
		}
		gv.SetShape(cgraph.BoxShape)
		gv.SetStyle(cgraph.FilledNodeStyle)
		gv.SetFillColor(layout.ColorFor(node.Kind))
		gv.SetFontColor("white")
		gv.SetLabel(insight.CompactLabel(node))

		for _, child := range node.Children {
			gvChild, err := addNode(child)
			if err != nil {
				return nil, err
			}
			// Arrows follow the data flow: from source child up to the
			// consuming parent.
			from, to := gvChild, gv
			if tree.Flow == model.FlowTopDown {
				from, to = gv, gvChild
			}
			edge, err := graph.CreateEdgeByName("", from, to)
			if err != nil {
				return nil, fmt.Errorf("dot render: edge %d->%d: %w", child.ID, node.ID, err)
			}
			if ex := child.Fields.Exchange; ex != nil && ex.Broadcast {
				edge.SetStyle(cgraph.DashedEdgeStyle)
				edge.SetLabel("broadcast")
			}
		}
		return gv, nil
	}

	_, err := addNode(tree.Root)
	return err
}

func nodeName(node *model.PlanNode) string {
	return fmt.Sprintf("n%d", node.ID)
}
