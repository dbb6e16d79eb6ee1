package budget

import (
	"context"
	"time"

	"github.com/kailas-cloud/ragstream/internal/domain"
)

// CounterStore persists window counters shared by every replica.
type CounterStore interface {
	// Add spends n tokens of stage and returns the stored window counters.
	Add(ctx context.Context, period domain.BudgetPeriod, start time.Time, stage domain.Stage, n int64) (domain.BudgetWindow, error)
	// Load reads the stored counters of one window.
	Load(ctx context.Context, period domain.BudgetPeriod, start time.Time) (domain.BudgetWindow, error)
}
