package domain

import (
	"context"
	"time"
)

// Stage names the pipeline a provider call is made for.
type Stage string

const (
	// StageIngest is document upload: chunk embeddings.
	StageIngest Stage = "ingest"
	// StageQuery is answering: question embedding and completion.
	StageQuery Stage = "query"
	// StageOther is any call made outside the two pipelines (health checks, tooling).
	StageOther Stage = "other"
)

// Stages lists the stages tracked by the token ledger, in report order.
var Stages = []Stage{StageIngest, StageQuery, StageOther}

type stageKey struct{}

// WithStage tags ctx with the pipeline stage that owns the provider calls made under it.
func WithStage(ctx context.Context, s Stage) context.Context {
	return context.WithValue(ctx, stageKey{}, s)
}

// StageFrom returns the stage tagged on ctx, StageOther when untagged.
func StageFrom(ctx context.Context) Stage {
	if s, ok := ctx.Value(stageKey{}).(Stage); ok && s != "" {
		return s
	}
	return StageOther
}

// TokenKind distinguishes embedding input tokens from completion tokens.
type TokenKind string

const (
	// TokensEmbedding counts embedding input tokens.
	TokensEmbedding TokenKind = "embedding"
	// TokensCompletion counts prompt plus generated tokens of a chat completion.
	TokensCompletion TokenKind = "completion"
)

// TokenUsage is the provider-reported usage of one completion.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
}

// Total returns prompt plus completion tokens.
func (u TokenUsage) Total() int { return u.PromptTokens + u.CompletionTokens }

// UsageReporter is implemented by token streams whose usage is known once they end.
// ok is false until the provider has reported it.
type UsageReporter interface {
	Usage() (usage TokenUsage, ok bool)
}

// BudgetPeriod selects a budget window.
type BudgetPeriod string

const (
	// PeriodDay is the current UTC day.
	PeriodDay BudgetPeriod = "day"
	// PeriodMonth is the current UTC month.
	PeriodMonth BudgetPeriod = "month"
)

// Bounds returns the UTC window of p containing t: [start, end).
func (p BudgetPeriod) Bounds(t time.Time) (start, end time.Time) {
	t = t.UTC()
	if p == PeriodDay {
		start = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 0, 1)
	}
	start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// BudgetWindow is a snapshot of token spend within one window.
// Limit is zero and Remaining is -1 when the window is unlimited.
type BudgetWindow struct {
	Period    BudgetPeriod
	Start     time.Time
	End       time.Time
	Limit     int64
	Used      int64
	Remaining int64
	ByStage   map[Stage]int64
}

// Exhausted reports whether a limited window has no tokens left.
func (w BudgetWindow) Exhausted() bool { return w.Limit > 0 && w.Used >= w.Limit }
