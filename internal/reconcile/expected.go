package reconcile

import (
	"slices"
	"sort"
)

// ExpectedTable maps a preview status code to the full statuses a PEP page
// may declare for it. It is read-only once built.
type ExpectedTable struct {
	accepted map[string][]string
}

// NewExpectedTable copies src into an immutable table.
func NewExpectedTable(src map[string][]string) ExpectedTable {
	accepted := make(map[string][]string, len(src))
	for code, statuses := range src {
		accepted[code] = slices.Clone(statuses)
	}
	return ExpectedTable{accepted: accepted}
}

// Lookup returns a copy of the accepted statuses for code.
func (e ExpectedTable) Lookup(code string) ([]string, bool) {
	statuses, ok := e.accepted[code]
	if !ok {
		return nil, false
	}
	return slices.Clone(statuses), true
}

// Accepts reports whether status is consistent with code. known is false
// when the code has no entry at all, in which case ok is meaningless.
func (e ExpectedTable) Accepts(code, status string) (ok, known bool) {
	statuses, known := e.accepted[code]
	if !known {
		return false, false
	}
	return slices.Contains(statuses, status), true
}

// Codes returns the known codes in sorted order.
func (e ExpectedTable) Codes() []string {
	codes := make([]string, 0, len(e.accepted))
	for code := range e.accepted {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
