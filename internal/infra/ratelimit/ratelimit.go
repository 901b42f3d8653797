package ratelimit

import (
	"context"
	"time"
)

// Rule is a fixed window: at most Limit hits per Window.
type Rule struct {
	Limit  int
	Window time.Duration
}

type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string, rule Rule) (Decision, error)
}

// windowStart aligns now to the rule's window grid.
func windowStart(now time.Time, w time.Duration) time.Time {
	return now.Truncate(w)
}

func decide(count int64, rule Rule, now, start time.Time) Decision {
	d := Decision{Allowed: count <= int64(rule.Limit)}
	if left := int64(rule.Limit) - count; left > 0 {
		d.Remaining = int(left)
	}
	if !d.Allowed {
		d.RetryAfter = start.Add(rule.Window).Sub(now)
	}
	return d
}
