package storage

import (
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesSchemaAndIsReopenable(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.LogOperation(OperationLog{ID: "op-1", UserID: "u1", Operation: "summary", Status: "completed"}); err != nil {
		t.Fatalf("LogOperation: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopening must re-run migrate without re-applying anything and keep
	// the existing rows.
	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	ops, err := s2.ListOperations("u1", 10, 0)
	if err != nil {
		t.Fatalf("ListOperations: %v", err)
	}
	if len(ops) != 1 || ops[0].ID != "op-1" {
		t.Errorf("ops = %+v, want the one surviving record", ops)
	}
}

func TestParseMigrationVersion(t *testing.T) {
	v, err := parseMigrationVersion("0001_init.sql")
	if err != nil || v != 1 {
		t.Errorf("got (%d, %v), want (1, nil)", v, err)
	}
	if _, err := parseMigrationVersion("init.sql"); err == nil {
		t.Error("expected error for missing numeric prefix")
	}
	if _, err := parseMigrationVersion("_init.sql"); err == nil {
		t.Error("expected error for empty prefix")
	}
}

func TestLogAndListOperations(t *testing.T) {
	s := newTestStore(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []OperationLog{
		{ID: "a", UserID: "u1", Operation: "summary", Status: "completed", TokensUsed: 120, Model: "m", CreatedAt: base},
		{ID: "b", UserID: "u1", Operation: "tags", Status: "failed", ErrorCode: "TAGS_FAILED", CreatedAt: base.Add(time.Minute)},
		{ID: "c", UserID: "u2", Operation: "search", Status: "completed", TokensUsed: 300, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, r := range records {
		if err := s.LogOperation(r); err != nil {
			t.Fatalf("LogOperation(%s): %v", r.ID, err)
		}
	}

	ops, err := s.ListOperations("u1", 10, 0)
	if err != nil {
		t.Fatalf("ListOperations: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("got %d ops for u1, want 2", len(ops))
	}
	// Newest first.
	if ops[0].ID != "b" || ops[1].ID != "a" {
		t.Errorf("order = [%s %s], want [b a]", ops[0].ID, ops[1].ID)
	}
	if ops[0].ErrorCode != "TAGS_FAILED" || ops[0].Status != "failed" {
		t.Errorf("failed record round-trip: %+v", ops[0])
	}
	if !ops[1].CreatedAt.Equal(base) {
		t.Errorf("CreatedAt = %v, want %v", ops[1].CreatedAt, base)
	}

	// Pagination.
	page, err := s.ListOperations("u1", 1, 1)
	if err != nil {
		t.Fatalf("ListOperations offset: %v", err)
	}
	if len(page) != 1 || page[0].ID != "a" {
		t.Errorf("page = %+v, want just a", page)
	}
}

func TestLogOperation_DefaultsCreatedAt(t *testing.T) {
	s := newTestStore(t)

	if err := s.LogOperation(OperationLog{ID: "x", UserID: "u1", Operation: "enrich", Status: "completed"}); err != nil {
		t.Fatalf("LogOperation: %v", err)
	}
	ops, err := s.ListOperations("u1", 1, 0)
	if err != nil {
		t.Fatalf("ListOperations: %v", err)
	}
	if ops[0].CreatedAt.IsZero() {
		t.Error("CreatedAt not defaulted")
	}
}

func TestTakeRateToken_ConsumesQuota(t *testing.T) {
	s := newTestStore(t)

	const limit = 3
	window := time.Minute

	for i := 0; i < limit; i++ {
		allowed, remaining, _, err := s.TakeRateToken("u1", limit, window)
		if err != nil {
			t.Fatalf("TakeRateToken #%d: %v", i, err)
		}
		if !allowed {
			t.Fatalf("call %d denied, want allowed", i)
		}
		if want := limit - i - 1; remaining != want {
			t.Errorf("call %d remaining = %d, want %d", i, remaining, want)
		}
	}

	allowed, remaining, resetAt, err := s.TakeRateToken("u1", limit, window)
	if err != nil {
		t.Fatalf("TakeRateToken over limit: %v", err)
	}
	if allowed || remaining != 0 {
		t.Errorf("over-limit call: allowed=%v remaining=%d", allowed, remaining)
	}
	if until := time.Until(resetAt); until <= 0 || until > window {
		t.Errorf("resetAt %v out of window", resetAt)
	}
}

func TestTakeRateToken_PrincipalsIndependent(t *testing.T) {
	s := newTestStore(t)

	if allowed, _, _, _ := s.TakeRateToken("u1", 1, time.Minute); !allowed {
		t.Fatal("u1 first call denied")
	}
	if allowed, _, _, _ := s.TakeRateToken("u1", 1, time.Minute); allowed {
		t.Fatal("u1 second call allowed past limit")
	}
	if allowed, _, _, _ := s.TakeRateToken("u2", 1, time.Minute); !allowed {
		t.Error("u2 affected by u1's quota")
	}
}

func TestTakeRateToken_WindowSlides(t *testing.T) {
	s := newTestStore(t)

	window := 30 * time.Millisecond
	if allowed, _, _, _ := s.TakeRateToken("u1", 1, window); !allowed {
		t.Fatal("first call denied")
	}
	if allowed, _, _, _ := s.TakeRateToken("u1", 1, window); allowed {
		t.Fatal("second call allowed inside window")
	}

	time.Sleep(2 * window)

	allowed, remaining, _, err := s.TakeRateToken("u1", 1, window)
	if err != nil {
		t.Fatalf("TakeRateToken after expiry: %v", err)
	}
	if !allowed {
		t.Error("hit not pruned after window elapsed")
	}
	if remaining != 0 {
		t.Errorf("remaining = %d, want 0 with limit 1", remaining)
	}
}
