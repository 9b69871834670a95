package ratelimit

import (
	"sync"
	"time"
)

// Memory is an in-process sliding-window limiter. Each principal owns an
// independent window of hit timestamps; expired hits are trimmed on every
// check. Suitable for single-process deployments.
type Memory struct {
	mu     sync.Mutex
	quota  Quota
	hits   map[string][]time.Time
	now    func() time.Time // injectable for tests
}

// NewMemory creates a Memory limiter with the given quota. Zero quota
// fields fall back to DefaultQuota.
func NewMemory(quota Quota) *Memory {
	if quota.Limit <= 0 {
		quota.Limit = DefaultQuota.Limit
	}
	if quota.Window <= 0 {
		quota.Window = DefaultQuota.Window
	}
	return &Memory{
		quota: quota,
		hits:  make(map[string][]time.Time),
		now:   time.Now,
	}
}

// Check consumes one unit of quota for principal if any remains.
// Increment and compare happen under one lock acquisition.
func (m *Memory) Check(principal string) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-m.quota.Window)

	window := trimExpired(m.hits[principal], cutoff)

	if len(window) >= m.quota.Limit {
		m.hits[principal] = window
		return Decision{
			Allowed:   false,
			Remaining: 0,
			ResetAt:   window[0].Add(m.quota.Window),
		}
	}

	window = append(window, now)
	m.hits[principal] = window
	return Decision{
		Allowed:   true,
		Remaining: m.quota.Limit - len(window),
		ResetAt:   window[0].Add(m.quota.Window),
	}
}

// trimExpired drops timestamps at or before cutoff, copying so the
// retained slice does not alias the old backing array indefinitely.
func trimExpired(in []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(in) && !in[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return in
	}
	out := make([]time.Time, len(in)-i)
	copy(out, in[i:])
	return out
}
