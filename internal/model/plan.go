package model

import "strconv"

// OpKind is the semantic category of a plan operator.
type OpKind string

const (
	KindScan      OpKind = "scan"
	KindFilter    OpKind = "filter"
	KindJoin      OpKind = "join"
	KindExchange  OpKind = "exchange"
	KindAggregate OpKind = "aggregate"
	KindSort      OpKind = "sort"
	KindProject   OpKind = "project"
	KindWindow    OpKind = "window"
	KindUnion     OpKind = "union"
	KindUnknown   OpKind = "unknown"
)

// Kinds lists every operator kind in palette order.
var Kinds = []OpKind{
	KindScan, KindFilter, KindJoin, KindExchange, KindAggregate,
	KindSort, KindProject, KindWindow, KindUnion, KindUnknown,
}

// FlowDirection records how the plan text orders parents and children.
type FlowDirection string

const (
	// FlowBottomUp means the text prints the result first and the data
	// sources below it; rendered arrows point from child to parent.
	FlowBottomUp FlowDirection = "bottom-up"
	// FlowTopDown means sources print first; arrows point parent to child.
	FlowTopDown FlowDirection = "top-down"
)

// JoinInfo carries join-specific fields.
type JoinInfo struct {
	Type      string `json:"type,omitempty"`
	Condition string `json:"condition,omitempty"`
	BuildSide string `json:"build_side,omitempty"`
	Broadcast bool   `json:"broadcast,omitempty"`
}

// ExchangeInfo carries shuffle/exchange-specific fields.
type ExchangeInfo struct {
	Partitioning string `json:"partitioning,omitempty"`
	Partitions   int    `json:"partitions,omitempty"`
	Shuffle      bool   `json:"shuffle,omitempty"`
	Broadcast    bool   `json:"broadcast,omitempty"`
	Reused       bool   `json:"reused,omitempty"`
}

// ScanInfo carries data-source fields for scan operators.
type ScanInfo struct {
	Source        string   `json:"source,omitempty"`
	Format        string   `json:"format,omitempty"`
	PushedFilters []string `json:"pushed_filters,omitempty"`
}

// AggregateInfo carries grouping keys and aggregate functions.
type AggregateInfo struct {
	Keys      []string `json:"keys,omitempty"`
	Functions []string `json:"functions,omitempty"`
	Mode      string   `json:"mode,omitempty"`
}

// SortOrder is one (column, direction) entry of a sort specification.
type SortOrder struct {
	Column    string `json:"column"`
	Direction string `json:"direction"`
}

// SortInfo carries the ordered sort specification.
type SortInfo struct {
	Orders []SortOrder `json:"orders,omitempty"`
	Global bool        `json:"global,omitempty"`
}

// ProjectInfo carries the projected column list.
type ProjectInfo struct {
	Columns []string `json:"columns,omitempty"`
}

// FilterInfo carries the filter condition text.
type FilterInfo struct {
	Condition string `json:"condition,omitempty"`
}

// WindowInfo carries window-function fields.
type WindowInfo struct {
	Functions   []string `json:"functions,omitempty"`
	PartitionBy []string `json:"partition_by,omitempty"`
	OrderBy     []string `json:"order_by,omitempty"`
}

// Fields is the closed set of kind-specific variants. Exactly the
// variant matching the node's kind is populated; the rest stay nil.
type Fields struct {
	Join      *JoinInfo      `json:"join,omitempty"`
	Exchange  *ExchangeInfo  `json:"exchange,omitempty"`
	Scan      *ScanInfo      `json:"scan,omitempty"`
	Aggregate *AggregateInfo `json:"aggregate,omitempty"`
	Sort      *SortInfo      `json:"sort,omitempty"`
	Project   *ProjectInfo   `json:"project,omitempty"`
	Filter    *FilterInfo    `json:"filter,omitempty"`
	Window    *WindowInfo    `json:"window,omitempty"`
}

// Metrics is the optional runtime record attached after the merge step.
type Metrics struct {
	Rows       int64            `json:"rows,omitempty"`
	SpillBytes int64            `json:"spill_bytes,omitempty"`
	DurationMs float64          `json:"duration_ms,omitempty"`
	Counters   map[string]int64 `json:"counters,omitempty"`
}

// PlanNode is one operator in the parsed plan tree.
type PlanNode struct {
	// ID is assigned sequentially in traversal order and is stable for
	// a given plan text.
	ID int `json:"id"`
	// EngineID is the ordinal echoed in the plan text ("*(3) ..."),
	// empty when the engine printed none. Used only for metric matching.
	EngineID string      `json:"engine_id,omitempty"`
	Name     string      `json:"name"`
	Kind     OpKind      `json:"kind"`
	Summary  string      `json:"summary"`
	Fields   Fields      `json:"fields"`
	Metrics  *Metrics    `json:"metrics,omitempty"`
	Children []*PlanNode `json:"children,omitempty"`
}

// PlanTree is the parsed plan: a single root plus a flat id index.
type PlanTree struct {
	Root  *PlanNode         `json:"root"`
	Nodes map[int]*PlanNode `json:"-"`
	Flow  FlowDirection     `json:"flow"`
}

// Node returns the node with the given parse id, or nil.
func (t *PlanTree) Node(id int) *PlanNode {
	if t == nil {
		return nil
	}
	return t.Nodes[id]
}

// Len reports the number of nodes in the tree.
func (t *PlanTree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Nodes)
}

// Walk visits every node in traversal (id) order.
func (t *PlanTree) Walk(fn func(*PlanNode)) {
	if t == nil || t.Root == nil {
		return
	}
	var walk func(*PlanNode)
	walk = func(n *PlanNode) {
		fn(n)
		for _, child := range n.Children {
			walk(child)
		}
	}
	walk(t.Root)
}

// Label builds a short human-readable label for the node.
func (n *PlanNode) Label() string {
	if n == nil {
		return ""
	}
	label := n.Name
	switch n.Kind {
	case KindScan:
		if n.Fields.Scan != nil && n.Fields.Scan.Source != "" {
			label += " " + n.Fields.Scan.Source
		}
	case KindJoin:
		if n.Fields.Join != nil && n.Fields.Join.Type != "" {
			label += " (" + n.Fields.Join.Type + ")"
		}
	case KindExchange:
		if n.Fields.Exchange != nil && n.Fields.Exchange.Partitions > 0 {
			label += " (" + strconv.Itoa(n.Fields.Exchange.Partitions) + " partitions)"
		}
	}
	return label
}
