package parser

import (
	"regexp"
	"strings"
)

// PlanLine is one operator line of the selected plan section, with the
// nesting depth derived from its indentation.
type PlanLine struct {
	// Number is the 1-based line number within the selected section.
	Number int
	Raw    string
	Depth  int
	// EngineID is the ordinal the engine echoed before the operator
	// ("*(3) HashAggregate" → "3"), empty when absent.
	EngineID string
	// Text is the operator text with markers and ordinal stripped.
	Text string
}

var (
	sectionHeaderRe = regexp.MustCompile(`^==\s*(.+?)\s*==$`)
	ordinalRe       = regexp.MustCompile(`^\*?\((\d+)\)\s+`)
)

// markerChars are the characters engines use to draw parent/child
// nesting ahead of the operator text.
const markerChars = ":+-| "

// Normalize selects the physical-plan section of a raw plan text and
// turns it into operator lines with depths. It is the only stage besides
// the tree builder allowed to fail, and only with MalformedPlanError.
func Normalize(text string) ([]PlanLine, error) {
	if strings.TrimSpace(text) == "" {
		return nil, malformed(0, "empty plan text")
	}

	section := selectSection(strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n"))
	if len(section) == 0 {
		return nil, malformed(0, "no parsable plan section")
	}

	var (
		lines      []PlanLine
		indentUnit int
	)
	for i, raw := range section {
		line := strings.TrimRight(raw, " \t")
		if strings.TrimSpace(line) == "" {
			continue
		}

		trailing := strings.TrimLeft(line, markerChars)
		// Adaptive plans nest a "== Final Plan ==" subsection followed by
		// the pre-execution "== Initial Plan ==" copy. Keep the final
		// plan, drop the header lines, and stop at the initial copy.
		if strings.HasPrefix(trailing, "==") {
			if strings.Contains(trailing, "Initial Plan") {
				break
			}
			continue
		}

		col := len(line) - len(trailing)
		prefix := line[:col]

		var depth int
		switch {
		case col == 0:
			depth = 0
		case strings.ContainsAny(prefix, ":+-|"):
			// Branch markers come in three-character units ("+- ", ":  ").
			if col%3 != 0 {
				return nil, malformed(i+1, "ambiguous nesting marker %q", prefix)
			}
			depth = col / 3
		default:
			// Plain indentation: the first indented line fixes the unit.
			if indentUnit == 0 {
				indentUnit = col
			}
			if col%indentUnit != 0 {
				return nil, malformed(i+1, "indentation %d is not a multiple of %d", col, indentUnit)
			}
			depth = col / indentUnit
		}

		engineID := ""
		if m := ordinalRe.FindStringSubmatch(trailing); m != nil {
			engineID = m[1]
			trailing = trailing[len(m[0]):]
		}
		trailing = strings.TrimPrefix(trailing, "*")
		trailing = strings.TrimSpace(trailing)
		if trailing == "" {
			continue
		}

		lines = append(lines, PlanLine{
			Number:   i + 1,
			Raw:      line,
			Depth:    depth,
			EngineID: engineID,
			Text:     trailing,
		})
	}

	if len(lines) == 0 {
		return nil, malformed(0, "no operator lines in plan section")
	}
	return lines, nil
}

// selectSection picks the relevant top-level section of a multi-section
// plan dump: the physical plan when present, otherwise the last section
// (engines print the executed plan last), otherwise the whole text.
func selectSection(all []string) []string {
	type section struct {
		name  string
		lines []string
	}

	var (
		sections []section
		current  *section
	)
	for _, raw := range all {
		if m := sectionHeaderRe.FindStringSubmatch(strings.TrimSpace(raw)); m != nil {
			sections = append(sections, section{name: m[1]})
			current = &sections[len(sections)-1]
			continue
		}
		if current != nil {
			current.lines = append(current.lines, raw)
		}
	}

	if len(sections) == 0 {
		return all
	}
	for _, s := range sections {
		if strings.Contains(s.name, "Physical Plan") {
			return s.lines
		}
	}
	return sections[len(sections)-1].lines
}
