package parser

import "sparkviz/internal/model"

// buildTree links classified nodes into a rooted tree using depth as the
// nesting signal. It keeps a stack of the current ancestor at each
// depth: each node pops the stack to its own depth, attaches to the node
// left on top, and pushes itself.
func buildTree(lines []PlanLine, nodes []*model.PlanNode) (*model.PlanTree, error) {
	tree := &model.PlanTree{
		Nodes: make(map[int]*model.PlanNode, len(lines)),
		// The engine prints the result operator first and the data
		// sources below it, so data flows bottom-up through the text.
		Flow: model.FlowBottomUp,
	}

	var stack []*model.PlanNode
	for i, line := range lines {
		node := nodes[i]
		node.ID = i
		tree.Nodes[node.ID] = node

		depth := line.Depth
		if depth > len(stack) {
			// A child can only be one level below the previous line;
			// guessing a parent would silently misattach the subtree.
			return nil, malformed(line.Number, "depth jumps from %d to %d", len(stack)-1, depth)
		}
		stack = stack[:depth]

		if depth == 0 {
			if tree.Root != nil {
				return nil, malformed(line.Number, "second root operator %q", node.Name)
			}
			tree.Root = node
		} else {
			parent := stack[depth-1]
			parent.Children = append(parent.Children, node)
		}
		stack = append(stack, node)
	}

	if tree.Root == nil {
		return nil, malformed(0, "plan has no root operator")
	}
	return tree, nil
}
