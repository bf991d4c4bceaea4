// Package parser converts the indented textual form of a query
// execution plan into a structured tree of classified operator nodes.
//
// The pipeline is Normalize (section selection and depth derivation),
// Classify (per-kind field extraction) and the tree builder. Only
// Normalize and the builder can fail, and only with MalformedPlanError;
// classification degrades to KindUnknown instead of rejecting a plan.
package parser

import "sparkviz/internal/model"

// Parse converts a raw plan text into a PlanTree with sequential node
// ids in traversal order.
func Parse(text string) (*model.PlanTree, error) {
	lines, err := Normalize(text)
	if err != nil {
		return nil, err
	}

	nodes := make([]*model.PlanNode, len(lines))
	for i, line := range lines {
		nodes[i] = Classify(line)
	}

	return buildTree(lines, nodes)
}
