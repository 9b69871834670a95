package ratelimit

import (
	"log/slog"
	"time"
)

// RateStore is the storage capability the SQLite limiter depends on.
// Implemented by *storage.Store.
type RateStore interface {
	TakeRateToken(principal string, limit int, window time.Duration) (allowed bool, remaining int, resetAt time.Time, err error)
}

// SQLite enforces the sliding window through a shared SQLite store, so
// quota holds across processes sharing the database. Any store error
// fails open with a warning: availability beats strict enforcement.
type SQLite struct {
	store RateStore
	quota Quota
}

// NewSQLite creates a SQLite-backed limiter. Zero quota fields fall back
// to DefaultQuota.
func NewSQLite(store RateStore, quota Quota) *SQLite {
	if quota.Limit <= 0 {
		quota.Limit = DefaultQuota.Limit
	}
	if quota.Window <= 0 {
		quota.Window = DefaultQuota.Window
	}
	return &SQLite{store: store, quota: quota}
}

func (s *SQLite) Check(principal string) Decision {
	allowed, remaining, resetAt, err := s.store.TakeRateToken(principal, s.quota.Limit, s.quota.Window)
	if err != nil {
		slog.Warn("rate limit store unavailable, failing open", "principal", principal, "error", err)
		return Decision{Allowed: true, Remaining: s.quota.Limit, ResetAt: time.Now().Add(s.quota.Window)}
	}
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: allowed, Remaining: remaining, ResetAt: resetAt}
}
