// Package reconcile cross-checks the status a PEP page declares against the
// preview code shown for it in the PEP index, and counts PEPs per code.
//
// Every observation is tallied under its preview code. The comparison only
// runs when the code has an entry in the ExpectedTable: an unknown code is
// reported once as a warning and still counted.
package reconcile

import (
	"strings"

	"github.com/pfrederiksen/pydocs/internal/logger"
	"github.com/pfrederiksen/pydocs/internal/report"
)

// Outcome is the result of a single observation.
type Outcome int

const (
	OutcomeMatch Outcome = iota
	OutcomeMismatch
	OutcomeUnknownCode
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMatch:
		return "match"
	case OutcomeMismatch:
		return "mismatch"
	case OutcomeUnknownCode:
		return "unknown_code"
	default:
		return "unknown"
	}
}

// TotalLabel is the first cell of the closing row of Table.
const TotalLabel = "Total"

// Tally counts observations per code and remembers the order codes were first seen in.
type Tally struct {
	counts map[string]int
	order  []string
}

func (t *Tally) add(code string) {
	if t.counts == nil {
		t.counts = make(map[string]int)
	}
	if _, seen := t.counts[code]; !seen {
		t.order = append(t.order, code)
	}
	t.counts[code]++
}

// Count returns the number of observations for code.
func (t *Tally) Count(code string) int {
	return t.counts[code]
}

// Codes returns every observed code in first-seen order.
func (t *Tally) Codes() []string {
	return append([]string(nil), t.order...)
}

// Total is the sum of all counts.
func (t *Tally) Total() int {
	total := 0
	for _, n := range t.counts {
		total += n
	}
	return total
}

// Reconciler accumulates a Tally over one run and logs disagreements.
type Reconciler struct {
	expected ExpectedTable
	tally    Tally
	log      *logger.Logger
	metrics  *logger.Metrics
}

// New creates a Reconciler. A nil log uses the package default logger.
func New(expected ExpectedTable, log *logger.Logger) *Reconciler {
	if log == nil {
		log = logger.Default()
	}
	return &Reconciler{
		expected: expected,
		log:      log,
		metrics:  logger.DefaultMetrics(),
	}
}

// WithMetrics sets the tracker that receives pep.* counters.
func (r *Reconciler) WithMetrics(m *logger.Metrics) *Reconciler {
	r.metrics = m
	return r
}

// Observe records one PEP: code is the preview code from the index, status the
// status declared on pageURL.
func (r *Reconciler) Observe(code, status, pageURL string) Outcome {
	r.tally.add(code)

	ok, known := r.expected.Accepts(code, status)
	if !known {
		r.metrics.IncrCounter("pep.unknown_code")
		r.log.Warn("unknown preview status", logger.Fields{"code": code, "url": pageURL})
		return OutcomeUnknownCode
	}
	if !ok {
		accepted, _ := r.expected.Lookup(code)
		r.metrics.IncrCounter("pep.mismatch")
		r.log.Info("status mismatch", logger.Fields{
			"url":      pageURL,
			"preview":  code,
			"status":   status,
			"expected": strings.Join(accepted, ", "),
		})
		return OutcomeMismatch
	}
	return OutcomeMatch
}

// Tally returns the counts gathered so far.
func (r *Reconciler) Tally() *Tally {
	return &r.tally
}

// Table renders one (code, count) row per code in first-seen order followed
// by the total.
func (r *Reconciler) Table() *report.Table {
	tbl := report.New("Status", "Count")
	for _, code := range r.tally.order {
		tbl.Add(code, r.tally.counts[code])
	}
	tbl.Add(TotalLabel, r.tally.Total())
	return tbl
}
