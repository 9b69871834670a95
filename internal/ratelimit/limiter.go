// Package ratelimit tracks per-principal sliding-window quotas for AI
// operations. Limiters never return errors: a broken or unconfigured
// backend fails open so enrichment stays available.
package ratelimit

import "time"

// Decision is the outcome of one quota check, computed fresh per call.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Quota configures a limiter: Limit requests per Window.
type Quota struct {
	Limit  int
	Window time.Duration
}

// DefaultQuota is the per-user budget for AI operations.
var DefaultQuota = Quota{Limit: 20, Window: time.Minute}

// Limiter decides whether a principal may consume one unit of quota.
// Check both observes and consumes: an allowed call counts against the
// window atomically, so two concurrent checks cannot both take the last
// unit.
type Limiter interface {
	Check(principal string) Decision
}

// Noop always allows. Used when rate limiting is disabled or as the
// fail-open stand-in when no backend is configured.
type Noop struct {
	Quota Quota
}

func (n *Noop) Check(string) Decision {
	q := n.Quota
	if q.Limit == 0 {
		q = DefaultQuota
	}
	return Decision{Allowed: true, Remaining: q.Limit, ResetAt: time.Now().Add(q.Window)}
}
