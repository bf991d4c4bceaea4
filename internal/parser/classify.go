package parser

import (
	"regexp"
	"strconv"
	"strings"

	"sparkviz/internal/model"
)

// Field caps keep node cards readable; anything beyond is noise in a
// diagram and still available through the raw summary.
const (
	maxColumns       = 5
	maxFunctions     = 3
	maxPushedFilters = 3
	maxGroupingKeys  = 3
)

var (
	attrIDRe        = regexp.MustCompile(`#\d+L?`)
	joinTypeRe      = regexp.MustCompile(`\b(Inner|LeftOuter|RightOuter|FullOuter|LeftSemi|LeftAnti|Cross)\b`)
	buildSideRe     = regexp.MustCompile(`BuildSide:\s*(Left|Right)|\bBuild(Left|Right)\b`)
	joinCondRe      = regexp.MustCompile(`condition:?\s*([^\n]+)`)
	bracketRe       = regexp.MustCompile(`\[([^\]]+)\]`)
	aggKeysRe       = regexp.MustCompile(`keys=\[([^\]]*)\]`)
	aggFunctionsRe  = regexp.MustCompile(`functions=\[([^\]]+)\]`)
	aggFuncCallRe   = regexp.MustCompile(`(?i)\b(partial_)?(sum|count|avg|min|max|first|last|collect_list|collect_set)\s*\([^)]*\)`)
	locationRe      = regexp.MustCompile(`(?:Location|Table):\s*([^\n,\]]+)`)
	qualifiedNameRe = regexp.MustCompile(`\b(?:\w+\.)?(\w+)\.(\w+)`)
	pushedFiltersRe = regexp.MustCompile(`PushedFilters?:\s*\[([^\]]+)\]`)
	sortOrderRe     = regexp.MustCompile(`([\w.#]+)\s+(ASC|DESC)`)
	partitioningRe  = regexp.MustCompile(`(?i)(hash|range|roundrobin|single)partition(?:ing)?`)
	partCountArgRe  = regexp.MustCompile(`partitioning\([^)]*?(\d+)\s*\)`)
	partCountRe     = regexp.MustCompile(`(?i)(\d+)\s*partitions?\b`)
	funcNameRe      = regexp.MustCompile(`(\w+)\(`)
)

var scanFormats = []string{"parquet", "orc", "json", "csv", "avro", "delta", "text", "jdbc"}

// Classify maps one normalized plan line to a partially built node:
// kind, kind-specific fields and summary. It never fails; unrecognized
// operators become KindUnknown with the raw text as summary.
func Classify(line PlanLine) *model.PlanNode {
	text := line.Text
	name := text
	if idx := strings.IndexAny(text, " ([,"); idx > 0 {
		name = text[:idx]
	}

	node := &model.PlanNode{
		EngineID: line.EngineID,
		Name:     name,
		Summary:  text,
	}

	// Keyword checks run in a fixed order so composite names resolve the
	// way the vocabulary intends: SortMergeJoin is a join, SortAggregate
	// an aggregate.
	switch {
	case strings.Contains(name, "Exchange") || strings.Contains(name, "Shuffle"):
		node.Kind = model.KindExchange
		node.Fields.Exchange = extractExchange(name, text)
	case strings.Contains(name, "Scan"):
		node.Kind = model.KindScan
		node.Fields.Scan = extractScan(name, text)
	case strings.Contains(name, "Join"):
		node.Kind = model.KindJoin
		node.Fields.Join = extractJoin(name, text)
	case strings.Contains(name, "Filter"):
		node.Kind = model.KindFilter
		node.Fields.Filter = extractFilter(text)
	case strings.Contains(name, "Aggregate"):
		node.Kind = model.KindAggregate
		node.Fields.Aggregate = extractAggregate(text)
	case strings.Contains(name, "Sort"):
		node.Kind = model.KindSort
		node.Fields.Sort = extractSort(text)
	case strings.Contains(name, "Project"):
		node.Kind = model.KindProject
		node.Fields.Project = extractProject(text)
	case strings.Contains(name, "Window"):
		node.Kind = model.KindWindow
		node.Fields.Window = extractWindow(text)
	case strings.Contains(name, "Union"):
		node.Kind = model.KindUnion
	default:
		node.Kind = model.KindUnknown
	}

	return node
}

func extractJoin(name, text string) *model.JoinInfo {
	info := &model.JoinInfo{}
	if m := joinTypeRe.FindStringSubmatch(text); m != nil {
		info.Type = m[1]
	}
	if m := buildSideRe.FindStringSubmatch(text); m != nil {
		if m[1] != "" {
			info.BuildSide = m[1]
		} else {
			info.BuildSide = m[2]
		}
	}
	if m := joinCondRe.FindStringSubmatch(text); m != nil {
		info.Condition = strings.TrimSpace(m[1])
	}
	info.Broadcast = strings.Contains(name, "Broadcast") ||
		strings.Contains(strings.ToLower(text), "broadcast")
	return info
}

func extractFilter(text string) *model.FilterInfo {
	cond := strings.TrimSpace(strings.TrimPrefix(text, "Filter"))
	cond = strings.TrimPrefix(cond, ":")
	cond = strings.TrimSpace(cond)
	if strings.HasPrefix(cond, "[") && strings.HasSuffix(cond, "]") {
		cond = strings.TrimSpace(cond[1 : len(cond)-1])
	}
	return &model.FilterInfo{Condition: cond}
}

func extractProject(text string) *model.ProjectInfo {
	info := &model.ProjectInfo{}
	if m := bracketRe.FindStringSubmatch(text); m != nil {
		info.Columns = splitClean(m[1], maxColumns)
	}
	return info
}

func extractAggregate(text string) *model.AggregateInfo {
	info := &model.AggregateInfo{}
	if m := aggKeysRe.FindStringSubmatch(text); m != nil {
		info.Keys = splitClean(m[1], maxGroupingKeys)
	}
	if m := aggFunctionsRe.FindStringSubmatch(text); m != nil {
		info.Functions = splitFuncs(m[1], maxFunctions)
	} else {
		calls := aggFuncCallRe.FindAllString(text, maxFunctions)
		for _, call := range calls {
			info.Functions = append(info.Functions, stripAttrIDs(call))
		}
	}
	for _, fn := range info.Functions {
		if strings.HasPrefix(fn, "partial_") {
			info.Mode = "partial"
			break
		}
	}
	if info.Mode == "" && len(info.Functions) > 0 {
		info.Mode = "final"
	}
	return info
}

func extractScan(name, text string) *model.ScanInfo {
	info := &model.ScanInfo{}

	lower := strings.ToLower(text)
	for _, format := range scanFormats {
		if strings.Contains(lower, format) {
			info.Format = strings.ToUpper(format)
			break
		}
	}

	if m := locationRe.FindStringSubmatch(text); m != nil {
		info.Source = lastPathSegment(strings.TrimSpace(m[1]))
	} else if source := scanTarget(name, text, info.Format); source != "" {
		info.Source = source
	} else if m := qualifiedNameRe.FindStringSubmatch(text); m != nil {
		info.Source = m[1] + "." + m[2]
	}

	if m := pushedFiltersRe.FindStringSubmatch(text); m != nil {
		info.PushedFilters = splitClean(m[1], maxPushedFilters)
	}
	return info
}

// scanTarget reads the table token of simple scan strings such as
// "FileScan parquet db.orders[id,amount]" or "Scan parquet orders".
func scanTarget(name, text, format string) string {
	rest := strings.TrimSpace(strings.TrimPrefix(text, name))
	if format != "" {
		fields := strings.Fields(rest)
		for i, field := range fields {
			if strings.EqualFold(field, format) && i+1 < len(fields) {
				target := fields[i+1]
				if idx := strings.IndexByte(target, '['); idx >= 0 {
					target = target[:idx]
				}
				return strings.Trim(target, ",")
			}
		}
	}
	return ""
}

func extractSort(text string) *model.SortInfo {
	info := &model.SortInfo{Global: strings.Contains(text, "global=true")}
	for _, m := range sortOrderRe.FindAllStringSubmatch(text, -1) {
		info.Orders = append(info.Orders, model.SortOrder{
			Column:    stripAttrIDs(m[1]),
			Direction: strings.ToUpper(m[2]),
		})
	}
	return info
}

func extractWindow(text string) *model.WindowInfo {
	info := &model.WindowInfo{}
	groups := bracketRe.FindAllStringSubmatch(text, 3)
	if len(groups) > 0 {
		for _, call := range funcNameRe.FindAllStringSubmatch(groups[0][1], maxFunctions) {
			if call[1] == "windowspecdefinition" || call[1] == "specifiedwindowframe" {
				continue
			}
			info.Functions = append(info.Functions, call[1])
		}
	}
	if len(groups) > 1 {
		info.PartitionBy = splitClean(groups[1][1], maxGroupingKeys)
	}
	if len(groups) > 2 {
		info.OrderBy = splitClean(groups[2][1], maxGroupingKeys)
	}
	return info
}

func extractExchange(name, text string) *model.ExchangeInfo {
	info := &model.ExchangeInfo{}
	if m := partitioningRe.FindStringSubmatch(text); m != nil {
		info.Partitioning = strings.ToLower(m[1])
	}
	if m := partCountArgRe.FindStringSubmatch(text); m != nil {
		info.Partitions, _ = strconv.Atoi(m[1])
	} else if m := partCountRe.FindStringSubmatch(text); m != nil {
		info.Partitions, _ = strconv.Atoi(m[1])
	}
	if info.Partitioning == "single" && info.Partitions == 0 {
		info.Partitions = 1
	}

	info.Broadcast = strings.Contains(name, "Broadcast")
	info.Shuffle = !info.Broadcast
	info.Reused = strings.Contains(name, "Reused")
	return info
}

func splitClean(list string, max int) []string {
	parts := strings.Split(list, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(stripAttrIDs(part))
		if part == "" {
			continue
		}
		out = append(out, part)
		if len(out) == max {
			break
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// splitFuncs splits a comma-separated function list without breaking
// inside parenthesized argument lists.
func splitFuncs(list string, max int) []string {
	var (
		out   []string
		depth int
		start int
	)
	flush := func(end int) {
		part := strings.TrimSpace(stripAttrIDs(list[start:end]))
		if part != "" && len(out) < max {
			out = append(out, part)
		}
	}
	for i, r := range list {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				flush(i)
				start = i + 1
			}
		}
	}
	flush(len(list))
	if len(out) == 0 {
		return nil
	}
	return out
}

func stripAttrIDs(s string) string {
	return attrIDRe.ReplaceAllString(s, "")
}

func lastPathSegment(path string) string {
	path = strings.TrimRight(path, "/")
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
