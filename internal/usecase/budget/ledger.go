// Package budget meters provider tokens spent by the ingest and query pipelines
// against daily and monthly limits.
package budget

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragstream/internal/domain"
	"github.com/kailas-cloud/ragstream/internal/metrics"
)

// storeTimeout bounds counter writes made after the provider call has returned.
const storeTimeout = 2 * time.Second

// Action defines behavior when a window is spent.
type Action string

const (
	// ActionWarn logs and lets the call through.
	ActionWarn Action = "warn"
	// ActionReject refuses the call with *domain.BudgetExceededError.
	ActionReject Action = "reject"
)

// ParseAction parses a configured action. Empty means warn.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case "", ActionWarn:
		return ActionWarn, nil
	case ActionReject:
		return ActionReject, nil
	default:
		return "", domain.NewConfigurationError("openai.budget.action", fmt.Sprintf("unknown action %q", s))
	}
}

// Limits caps tokens per window. Zero means unlimited.
type Limits struct {
	Daily   int64
	Monthly int64
}

// Enabled reports whether any window is limited.
func (l Limits) Enabled() bool { return l.Daily > 0 || l.Monthly > 0 }

type window struct {
	period  domain.BudgetPeriod
	limit   int64
	start   time.Time
	end     time.Time
	used    int64
	byStage map[domain.Stage]int64
}

func newWindow(period domain.BudgetPeriod, limit int64, now time.Time) *window {
	w := &window{period: period, limit: limit}
	w.reset(now)
	return w
}

func (w *window) reset(now time.Time) {
	w.start, w.end = w.period.Bounds(now)
	w.used = 0
	w.byStage = make(map[domain.Stage]int64, len(domain.Stages))
}

// roll starts a new window once now has passed the end of the current one.
func (w *window) roll(now time.Time) {
	if !now.Before(w.end) {
		w.reset(now)
	}
}

func (w *window) spent() bool { return w.limit > 0 && w.used >= w.limit }

func (w *window) remaining() int64 {
	if w.limit == 0 {
		return -1
	}
	return max(w.limit-w.used, 0)
}

// merge raises the counters to what the store holds. Stored values include
// every replica's spend; local values may include writes still in flight.
func (w *window) merge(stored domain.BudgetWindow) {
	if !stored.Start.Equal(w.start) {
		return
	}
	w.used = max(w.used, stored.Used)
	for stage, n := range stored.ByStage {
		w.byStage[stage] = max(w.byStage[stage], n)
	}
}

func (w *window) snapshot() domain.BudgetWindow {
	return domain.BudgetWindow{
		Period:    w.period,
		Start:     w.start,
		End:       w.end,
		Limit:     w.limit,
		Used:      w.used,
		Remaining: w.remaining(),
		ByStage:   maps.Clone(w.byStage),
	}
}

// Ledger tracks token spend in memory, checks it on the hot path without a
// round trip, and writes every spend through to an optional CounterStore.
type Ledger struct {
	mu      sync.Mutex
	day     *window
	month   *window
	action  Action
	store   CounterStore
	now     func() time.Time
	logger  *zap.Logger
	limited bool
}

// Option tunes a Ledger.
type Option interface {
	apply(*Ledger)
}

type optionFunc func(*Ledger)

func (f optionFunc) apply(l *Ledger) { f(l) }

// WithStore persists counters so replicas and restarts share one budget.
func WithStore(s CounterStore) Option {
	return optionFunc(func(l *Ledger) { l.store = s })
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return optionFunc(func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	})
}

// New creates a ledger for the given limits.
func New(limits Limits, action Action, logger *zap.Logger, opts ...Option) *Ledger {
	l := &Ledger{action: action, now: time.Now, logger: logger, limited: limits.Enabled()}
	for _, o := range opts {
		o.apply(l)
	}
	now := l.now()
	l.day = newWindow(domain.PeriodDay, limits.Daily, now)
	l.month = newWindow(domain.PeriodMonth, limits.Monthly, now)
	return l
}

// Enabled reports whether any window is limited.
func (l *Ledger) Enabled() bool { return l.limited }

// Restore loads the current windows from the store. Without a store it is a no-op.
func (l *Ledger) Restore(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	l.mu.Lock()
	l.roll()
	starts := map[domain.BudgetPeriod]time.Time{domain.PeriodDay: l.day.start, domain.PeriodMonth: l.month.start}
	l.mu.Unlock()

	for period, start := range starts {
		stored, err := l.store.Load(ctx, period, start)
		if err != nil {
			return fmt.Errorf("restore %s budget: %w", period, err)
		}
		l.mu.Lock()
		l.windowFor(period).merge(stored)
		l.mu.Unlock()
	}
	l.publish()

	day, month := l.Window(domain.PeriodDay), l.Window(domain.PeriodMonth)
	l.logger.Info("Token budget restored",
		zap.Int64("daily_used", day.Used),
		zap.Int64("monthly_used", month.Used),
		zap.Int64("daily_ingest", day.ByStage[domain.StageIngest]),
		zap.Int64("daily_query", day.ByStage[domain.StageQuery]),
	)
	return nil
}

// Allow checks the windows before a provider call made for ctx's stage.
func (l *Ledger) Allow(ctx context.Context) error {
	stage := domain.StageFrom(ctx)

	l.mu.Lock()
	l.roll()
	var spent *window
	switch {
	case l.day.spent():
		spent = l.day
	case l.month.spent():
		spent = l.month
	}
	var exceeded *domain.BudgetExceededError
	if spent != nil {
		exceeded = &domain.BudgetExceededError{Period: spent.period, Stage: stage, Limit: spent.limit, Used: spent.used}
	}
	l.mu.Unlock()

	if exceeded == nil {
		return nil
	}
	if l.action == ActionReject {
		metrics.BudgetRejectionsTotal.WithLabelValues(string(stage)).Inc()
		return exceeded
	}
	l.logger.Warn("Token budget exceeded",
		zap.String("stage", string(stage)),
		zap.String("period", string(exceeded.Period)),
		zap.Int64("used", exceeded.Used),
		zap.Int64("limit", exceeded.Limit),
	)
	return nil
}

// Spend records tokens used under ctx's stage and writes them through to the store.
// Store failures are logged; the in-memory counters stay authoritative for this replica.
func (l *Ledger) Spend(ctx context.Context, tokens int) {
	if tokens <= 0 {
		return
	}
	stage := domain.StageFrom(ctx)
	n := int64(tokens)

	l.mu.Lock()
	l.roll()
	for _, w := range []*window{l.day, l.month} {
		w.used += n
		w.byStage[stage] += n
	}
	starts := map[domain.BudgetPeriod]time.Time{domain.PeriodDay: l.day.start, domain.PeriodMonth: l.month.start}
	l.mu.Unlock()

	if l.store != nil {
		// Callers may already be cancelled (client hung up after the answer); keep values, drop cancellation.
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
		for period, start := range starts {
			stored, err := l.store.Add(sctx, period, start, stage, n)
			if err != nil {
				l.logger.Warn("Failed to persist token spend",
					zap.String("period", string(period)),
					zap.String("stage", string(stage)),
					zap.Error(err),
				)
				continue
			}
			l.mu.Lock()
			l.windowFor(period).merge(stored)
			l.mu.Unlock()
		}
		cancel()
	}
	l.publish()
}

// Window returns a snapshot of the current window of period.
func (l *Ledger) Window(period domain.BudgetPeriod) domain.BudgetWindow {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.roll()
	return l.windowFor(period).snapshot()
}

func (l *Ledger) windowFor(period domain.BudgetPeriod) *window {
	if period == domain.PeriodDay {
		return l.day
	}
	return l.month
}

// roll must be called with mu held.
func (l *Ledger) roll() {
	now := l.now()
	l.day.roll(now)
	l.month.roll(now)
}

func (l *Ledger) publish() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, w := range []*window{l.day, l.month} {
		if w.limit > 0 {
			metrics.BudgetTokensRemaining.WithLabelValues(string(w.period)).Set(float64(w.remaining()))
		}
	}
}
