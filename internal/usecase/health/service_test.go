package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

// --- Mocks ---

type mockDBPinger struct {
	err error
}

func (m *mockDBPinger) Ping(_ context.Context) error { return m.err }

type mockEmbeddingChecker struct {
	err error
}

func (m *mockEmbeddingChecker) HealthCheck(_ context.Context) error { return m.err }

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockDBPinger{}, &mockEmbeddingChecker{}, nil)
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if r.Checks["database"] != CheckOK {
		t.Errorf("expected database %q, got %q", CheckOK, r.Checks["database"])
	}
	if r.Checks["embedding"] != CheckOK {
		t.Errorf("expected embedding %q, got %q", CheckOK, r.Checks["embedding"])
	}
}

func TestCheck_DBError(t *testing.T) {
	svc := New(&mockDBPinger{err: errors.New("conn refused")}, &mockEmbeddingChecker{}, nil)
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["database"] != CheckError {
		t.Errorf("expected database %q, got %q", CheckError, r.Checks["database"])
	}
	if r.Checks["embedding"] != CheckOK {
		t.Errorf("expected embedding %q, got %q", CheckOK, r.Checks["embedding"])
	}
}

func TestCheck_EmbeddingError(t *testing.T) {
	svc := New(&mockDBPinger{}, &mockEmbeddingChecker{err: errors.New("timeout")}, nil)
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["database"] != CheckOK {
		t.Errorf("expected database %q, got %q", CheckOK, r.Checks["database"])
	}
	if r.Checks["embedding"] != CheckError {
		t.Errorf("expected embedding %q, got %q", CheckError, r.Checks["embedding"])
	}
}

func TestCheck_BothFail(t *testing.T) {
	svc := New(
		&mockDBPinger{err: errors.New("db down")},
		&mockEmbeddingChecker{err: errors.New("emb down")},
		nil,
	)
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["database"] != CheckError {
		t.Error("expected database error")
	}
	if r.Checks["embedding"] != CheckError {
		t.Error("expected embedding error")
	}
}

func TestCheck_NoEmbedding(t *testing.T) {
	svc := New(&mockDBPinger{}, nil, nil)
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if r.Checks["database"] != CheckOK {
		t.Errorf("expected database %q, got %q", CheckOK, r.Checks["database"])
	}
	if _, ok := r.Checks["embedding"]; ok {
		t.Error("embedding check should be absent when embedding is nil")
	}
}

func TestCheck_NoEmbedding_DBError(t *testing.T) {
	svc := New(&mockDBPinger{err: errors.New("fail")}, nil, nil)
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["database"] != CheckError {
		t.Error("expected database error")
	}
	if _, ok := r.Checks["embedding"]; ok {
		t.Error("embedding check should be absent when embedding is nil")
	}
}

func TestCheck_CompletionError(t *testing.T) {
	svc := New(&mockDBPinger{}, &mockEmbeddingChecker{}, &mockEmbeddingChecker{err: errors.New("401")})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["completion"] != CheckError {
		t.Errorf("expected completion %q, got %q", CheckError, r.Checks["completion"])
	}
	if len(r.Checks) != 3 {
		t.Errorf("expected 3 checks, got %d", len(r.Checks))
	}
}

type slowPinger struct{}

func (slowPinger) Ping(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestCheck_Timeout(t *testing.T) {
	svc := New(slowPinger{}, nil, nil).WithTimeout(10 * time.Millisecond)

	r := svc.Check(context.Background())
	if r.Checks["database"] != CheckError {
		t.Errorf("expected timed out check to fail, got %q", r.Checks["database"])
	}
}
