package health

import (
	"context"
	"sync"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// DefaultCheckTimeout bounds a single component check.
const DefaultCheckTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

type namedCheck struct {
	name  string
	check func(ctx context.Context) error
}

// Service coordinates health checks.
type Service struct {
	checks  []namedCheck
	timeout time.Duration
}

// New creates a Service. embedding and completion can be nil.
func New(db DBPinger, embedding, completion Checker) *Service {
	s := &Service{timeout: DefaultCheckTimeout}
	s.checks = append(s.checks, namedCheck{"database", db.Ping})
	if embedding != nil {
		s.checks = append(s.checks, namedCheck{"embedding", embedding.HealthCheck})
	}
	if completion != nil {
		s.checks = append(s.checks, namedCheck{"completion", completion.HealthCheck})
	}
	return s
}

// WithTimeout overrides the per-check timeout.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Check runs all component checks concurrently.
func (s *Service) Check(ctx context.Context) Report {
	results := make([]CheckResult, len(s.checks))

	var wg sync.WaitGroup
	for i, c := range s.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			if err := c.check(cctx); err != nil {
				results[i] = CheckError
				return
			}
			results[i] = CheckOK
		}()
	}
	wg.Wait()

	checks := make(map[string]CheckResult, len(s.checks))
	status := Healthy
	for i, c := range s.checks {
		checks[c.name] = results[i]
		if results[i] == CheckError {
			status = Degraded
		}
	}

	return Report{Status: status, Checks: checks}
}
