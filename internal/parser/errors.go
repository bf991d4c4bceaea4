package parser

import "fmt"

// MalformedPlanError is the single fatal parse failure: no parsable plan
// section, or a structural depth violation. Everything else degrades.
type MalformedPlanError struct {
	// Line is the 1-based line number in the selected section, 0 when
	// the failure is not tied to a line.
	Line   int
	Reason string
}

func (e *MalformedPlanError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed plan: line %d: %s", e.Line, e.Reason)
	}
	return "malformed plan: " + e.Reason
}

func malformed(line int, format string, args ...any) error {
	return &MalformedPlanError{Line: line, Reason: fmt.Sprintf(format, args...)}
}
