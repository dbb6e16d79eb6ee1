package usage

import "github.com/kailas-cloud/ragstream/internal/domain"

// BudgetReader provides read-only access to provider token budget windows.
type BudgetReader interface {
	Window(period domain.BudgetPeriod) domain.BudgetWindow
}
