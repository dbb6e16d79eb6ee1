package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// UsagePeriod is the budget window of a usage report.
type UsagePeriod string

// UsagePeriod constants.
const (
	PeriodDay   UsagePeriod = "day"
	PeriodMonth UsagePeriod = "month"
)

// UsageReport contains provider token usage (embeddings and answers) for a budget window.
type UsageReport struct {
	Period      UsagePeriod `json:"period"`
	PeriodStart time.Time   `json:"periodStartAt"`
	PeriodEnd   time.Time   `json:"periodEndAt"`
	Usage       struct {
		Tokens int64 `json:"tokens"`
		// ByStage splits Tokens into "ingest", "query" and "other".
		ByStage map[string]int64 `json:"byStage"`
	} `json:"usage"`
	Budget BudgetStatus `json:"budget"`
}

// BudgetStatus tracks token quota state. TokensLimit is zero when unlimited.
type BudgetStatus struct {
	TokensLimit     int64      `json:"tokensLimit"`
	TokensRemaining int64      `json:"tokensRemaining"`
	IsExhausted     bool       `json:"isExhausted"`
	ResetsAt        *time.Time `json:"resetsAt,omitempty"`
}

// Usage returns the token usage report for period. Empty selects month.
func (c *Client) Usage(ctx context.Context, period UsagePeriod) (rep UsageReport, err error) {
	start := time.Now()
	defer func() { c.obs.observe("usage", start, err, "period", string(period)) }()

	path := "/usage"
	if period != "" {
		path += "?period=" + url.QueryEscape(string(period))
	}
	req, err := c.newRequest(ctx, http.MethodGet, path, http.NoBody)
	if err != nil {
		return UsageReport{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return UsageReport{}, fmt.Errorf("ragstream: usage: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return UsageReport{}, decodeAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(&rep); err != nil {
		return UsageReport{}, fmt.Errorf("ragstream: decode usage response: %w", err)
	}
	return rep, nil
}
