package usage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/ragstream/internal/domain"
)

// Period selects the budget window of a report.
type Period = domain.BudgetPeriod

const (
	// PeriodDay is the current UTC day.
	PeriodDay = domain.PeriodDay
	// PeriodMonth is the current UTC month.
	PeriodMonth = domain.PeriodMonth
)

// ParsePeriod resolves a period name; empty selects PeriodMonth.
func ParsePeriod(s string) (Period, error) {
	switch Period(strings.ToLower(strings.TrimSpace(s))) {
	case "", PeriodMonth:
		return PeriodMonth, nil
	case PeriodDay:
		return PeriodDay, nil
	default:
		return "", fmt.Errorf("%w: period must be day or month, got %q", domain.ErrInputValidation, s)
	}
}

// Report is provider token usage (embedding and completion) within one budget window.
// Limit and Remaining are zero when the window is unlimited.
type Report struct {
	Period    Period
	Start     time.Time
	End       time.Time
	Tokens    int64
	ByStage   map[domain.Stage]int64
	Limit     int64
	Remaining int64
}

// Exhausted reports whether a limited window has no tokens left.
func (r Report) Exhausted() bool { return r.Limit > 0 && r.Remaining <= 0 }

// Service handles usage reporting.
type Service struct {
	br  BudgetReader
	now func() time.Time
}

// New creates a Service. br can be nil (unlimited mode).
func New(br BudgetReader) *Service {
	return &Service{br: br, now: time.Now}
}

// GetReport builds a usage report for the given period. Unknown periods report the month.
func (s *Service) GetReport(_ context.Context, period Period) Report {
	if period != PeriodDay {
		period = PeriodMonth
	}

	r := Report{Period: period, ByStage: make(map[domain.Stage]int64, len(domain.Stages))}
	for _, stage := range domain.Stages {
		r.ByStage[stage] = 0
	}
	if s.br == nil {
		r.Start, r.End = period.Bounds(s.now())
		return r
	}

	w := s.br.Window(period)
	r.Start, r.End = w.Start, w.End
	r.Tokens = w.Used
	r.Limit = w.Limit
	if w.Limit > 0 {
		r.Remaining = w.Remaining
	}
	for stage, n := range w.ByStage {
		r.ByStage[stage] = n
	}
	return r
}
