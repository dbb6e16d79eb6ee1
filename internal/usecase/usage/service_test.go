package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/ragstream/internal/domain"
)

// --- Mock ---

type mockBudgetReader struct {
	windows map[domain.BudgetPeriod]domain.BudgetWindow
	asked   []domain.BudgetPeriod
}

func (m *mockBudgetReader) Window(p domain.BudgetPeriod) domain.BudgetWindow {
	m.asked = append(m.asked, p)
	return m.windows[p]
}

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

// --- Tests ---

func TestGetReport_DailyPeriod(t *testing.T) {
	start := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	br := &mockBudgetReader{windows: map[domain.BudgetPeriod]domain.BudgetWindow{
		domain.PeriodDay: {
			Period: domain.PeriodDay, Start: start, End: start.AddDate(0, 0, 1),
			Limit: 10000, Used: 3000, Remaining: 7000,
			ByStage: map[domain.Stage]int64{domain.StageIngest: 2400, domain.StageQuery: 600},
		},
	}}

	r := New(br).GetReport(context.Background(), PeriodDay)

	if r.Period != PeriodDay {
		t.Errorf("expected period %q, got %q", PeriodDay, r.Period)
	}
	if !r.Start.Equal(start) || !r.End.Equal(start.AddDate(0, 0, 1)) {
		t.Errorf("window = %v..%v", r.Start, r.End)
	}
	if r.Tokens != 3000 || r.Limit != 10000 || r.Remaining != 7000 {
		t.Errorf("report = %+v", r)
	}
	if r.ByStage[domain.StageIngest] != 2400 || r.ByStage[domain.StageQuery] != 600 {
		t.Errorf("by stage = %v", r.ByStage)
	}
	if n, ok := r.ByStage[domain.StageOther]; !ok || n != 0 {
		t.Errorf("every stage must be listed, got %v", r.ByStage)
	}
	if r.Exhausted() {
		t.Error("expected not exhausted")
	}
}

func TestGetReport_MonthlyPeriodExhausted(t *testing.T) {
	br := &mockBudgetReader{windows: map[domain.BudgetPeriod]domain.BudgetWindow{
		domain.PeriodMonth: {Period: domain.PeriodMonth, Limit: 100000, Used: 100400, Remaining: 0},
	}}

	r := New(br).GetReport(context.Background(), PeriodMonth)

	if r.Tokens != 100400 || !r.Exhausted() {
		t.Errorf("report = %+v, exhausted = %v", r, r.Exhausted())
	}
}

func TestGetReport_UnlimitedWindowHasZeroRemaining(t *testing.T) {
	br := &mockBudgetReader{windows: map[domain.BudgetPeriod]domain.BudgetWindow{
		domain.PeriodMonth: {Period: domain.PeriodMonth, Used: 42, Remaining: -1},
	}}

	r := New(br).GetReport(context.Background(), PeriodMonth)

	if r.Limit != 0 || r.Remaining != 0 || r.Tokens != 42 || r.Exhausted() {
		t.Errorf("report = %+v", r)
	}
}

func TestGetReport_NilBudgetReader(t *testing.T) {
	svc := New(nil)
	svc.now = fixedClock(time.Date(2026, 12, 31, 23, 0, 0, 0, time.UTC))

	r := svc.GetReport(context.Background(), PeriodMonth)

	if r.Limit != 0 || r.Remaining != 0 || r.Tokens != 0 {
		t.Errorf("expected zero values without budget, got %+v", r)
	}
	if want := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC); !r.Start.Equal(want) {
		t.Errorf("start = %v, want %v", r.Start, want)
	}
	if want := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC); !r.End.Equal(want) {
		t.Errorf("end = %v, want %v", r.End, want)
	}
	if r.Exhausted() {
		t.Error("unlimited report must not be exhausted")
	}
}

func TestGetReport_UnknownPeriodFallsBackToMonth(t *testing.T) {
	br := &mockBudgetReader{}
	r := New(br).GetReport(context.Background(), Period("year"))
	if r.Period != PeriodMonth {
		t.Errorf("period = %q, want month", r.Period)
	}
	if len(br.asked) != 1 || br.asked[0] != domain.PeriodMonth {
		t.Errorf("asked for %v", br.asked)
	}
}

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in      string
		want    Period
		wantErr bool
	}{
		{"", PeriodMonth, false},
		{"month", PeriodMonth, false},
		{" Day ", PeriodDay, false},
		{"total", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePeriod(tt.in)
		if tt.wantErr {
			if !errors.Is(err, domain.ErrInputValidation) {
				t.Errorf("ParsePeriod(%q) err = %v, want ErrInputValidation", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParsePeriod(%q) = %q, %v", tt.in, got, err)
		}
	}
}
