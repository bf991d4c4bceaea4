// Package metrics merges a runtime-metrics source onto a parsed plan
// tree. The source is keyed by the engine's own per-node identifier;
// the merge never fails, it only attaches what it can match.
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"sparkviz/internal/model"
)

// Counters is the raw name→value metric map reported for one node.
type Counters map[string]int64

// Source maps engine-native node ids to their runtime counters.
type Source map[string]Counters

// ParseJSON reads a metrics document of the form
// {"3": {"number of output rows": 1200, ...}, ...}.
// Counter values may arrive as numbers or numeric strings.
func ParseJSON(r io.Reader) (Source, error) {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()

	var payload map[string]map[string]any
	if err := decoder.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode metrics json: %w", err)
	}

	source := make(Source, len(payload))
	for id, raw := range payload {
		counters := make(Counters, len(raw))
		for name, value := range raw {
			counters[name] = asInt64(value)
		}
		source[id] = counters
	}
	return source, nil
}

// Merge attaches metrics to every node the source has a key for and
// returns the number of nodes matched. A nil or empty source is the
// normal static-plan case and leaves every node untouched.
//
// The source is keyed either by the engine-echoed ordinals or by
// traversal order. The scheme is decided once for the whole source:
// small ordinals routinely collide with other nodes' traversal ids, so
// resolving per node would attach one node's counters to another.
func Merge(tree *model.PlanTree, source Source) int {
	if tree == nil || len(source) == 0 {
		return 0
	}

	byEngine := engineKeyed(tree, source)

	matched := 0
	tree.Walk(func(node *model.PlanNode) {
		var key string
		if byEngine {
			if node.EngineID == "" {
				return
			}
			key = node.EngineID
		} else {
			key = strconv.Itoa(node.ID)
		}
		counters, ok := source[key]
		if !ok {
			return
		}
		node.Metrics = normalize(counters)
		matched++
	})
	return matched
}

// engineKeyed reports whether the source keys line up better with the
// echoed ordinals than with traversal order. Ties go to the ordinals:
// they are the engine's own identifiers.
func engineKeyed(tree *model.PlanTree, source Source) bool {
	engine, traversal := 0, 0
	tree.Walk(func(node *model.PlanNode) {
		if node.EngineID != "" {
			if _, ok := source[node.EngineID]; ok {
				engine++
			}
		}
		if _, ok := source[strconv.Itoa(node.ID)]; ok {
			traversal++
		}
	})
	return engine > 0 && engine >= traversal
}

// normalize lifts the well-known counters into typed fields while
// keeping the full raw map.
func normalize(counters Counters) *model.Metrics {
	m := &model.Metrics{Counters: make(map[string]int64, len(counters))}
	for name, value := range counters {
		m.Counters[name] = value
		lower := strings.ToLower(name)
		switch {
		case strings.Contains(lower, "output rows") || lower == "numoutputrows":
			m.Rows = value
		case strings.Contains(lower, "spill"):
			m.SpillBytes += value
		case strings.Contains(lower, "time") || strings.Contains(lower, "duration"):
			if ms := float64(value); ms > m.DurationMs {
				m.DurationMs = ms
			}
		}
	}
	return m
}

func asInt64(val any) int64 {
	switch v := val.(type) {
	case nil:
		return 0
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(math.Round(v))
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		return int64(math.Round(f))
	case string:
		if v == "" {
			return 0
		}
		if strings.ContainsRune(v, '.') {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return 0
			}
			return int64(math.Round(f))
		}
		i, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0
		}
		return i
	default:
		return 0
	}
}
