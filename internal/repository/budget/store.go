package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/ragstream/internal/domain"
)

// Counter TTLs outlive their window so a late reader still sees the final value.
const (
	DailyTTL   = 48 * time.Hour
	MonthlyTTL = 62 * 24 * time.Hour
)

// store is the consumer interface for counter operations (ISP).
type store interface {
	IncrByWithTTL(ctx context.Context, key string, val int64, ttl time.Duration) (int64, error)
	GetInts(ctx context.Context, keys ...string) ([]int64, error)
}

// Store keeps one total and one per-stage counter for every budget window:
//
//	{prefix}budget:{provider}:daily:2026-03-07
//	{prefix}budget:{provider}:daily:2026-03-07:ingest
//	{prefix}budget:{provider}:monthly:2026-03:query
type Store struct {
	store    store
	prefix   string
	provider string
}

// New creates a budget store.
func New(s store, keyPrefix, provider string) *Store {
	return &Store{store: s, prefix: keyPrefix, provider: provider}
}

// WindowKey returns the total counter key of the window starting at start.
func (s *Store) WindowKey(period domain.BudgetPeriod, start time.Time) string {
	if period == domain.PeriodDay {
		return fmt.Sprintf("%sbudget:%s:daily:%s", s.prefix, s.provider, start.UTC().Format("2006-01-02"))
	}
	return fmt.Sprintf("%sbudget:%s:monthly:%s", s.prefix, s.provider, start.UTC().Format("2006-01"))
}

func (s *Store) stageKey(period domain.BudgetPeriod, start time.Time, stage domain.Stage) string {
	return s.WindowKey(period, start) + ":" + string(stage)
}

// Add spends n tokens of stage in the window and returns the counters as
// stored, which include spend recorded by other replicas. ByStage holds only stage.
func (s *Store) Add(
	ctx context.Context, period domain.BudgetPeriod, start time.Time, stage domain.Stage, n int64,
) (domain.BudgetWindow, error) {
	ttl := MonthlyTTL
	if period == domain.PeriodDay {
		ttl = DailyTTL
	}

	total, err := s.store.IncrByWithTTL(ctx, s.WindowKey(period, start), n, ttl)
	if err != nil {
		return domain.BudgetWindow{}, fmt.Errorf("budget %s total: %w", period, err)
	}
	staged, err := s.store.IncrByWithTTL(ctx, s.stageKey(period, start, stage), n, ttl)
	if err != nil {
		return domain.BudgetWindow{}, fmt.Errorf("budget %s %s: %w", period, stage, err)
	}

	_, end := period.Bounds(start)
	return domain.BudgetWindow{
		Period:  period,
		Start:   start,
		End:     end,
		Used:    total,
		ByStage: map[domain.Stage]int64{stage: staged},
	}, nil
}

// Load reads the window total and every stage counter in one pipeline.
func (s *Store) Load(ctx context.Context, period domain.BudgetPeriod, start time.Time) (domain.BudgetWindow, error) {
	keys := make([]string, 0, 1+len(domain.Stages))
	keys = append(keys, s.WindowKey(period, start))
	for _, stage := range domain.Stages {
		keys = append(keys, s.stageKey(period, start, stage))
	}

	vals, err := s.store.GetInts(ctx, keys...)
	if err != nil {
		return domain.BudgetWindow{}, fmt.Errorf("budget %s load: %w", period, err)
	}
	if len(vals) != len(keys) {
		return domain.BudgetWindow{}, fmt.Errorf("budget %s load: %d values for %d keys", period, len(vals), len(keys))
	}

	_, end := period.Bounds(start)
	w := domain.BudgetWindow{
		Period:  period,
		Start:   start,
		End:     end,
		Used:    vals[0],
		ByStage: make(map[domain.Stage]int64, len(domain.Stages)),
	}
	for i, stage := range domain.Stages {
		w.ByStage[stage] = vals[i+1]
	}
	return w, nil
}
