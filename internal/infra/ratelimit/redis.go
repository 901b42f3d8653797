package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Redis struct {
	c   *redis.Client
	now func() time.Time
}

func NewRedis(c *redis.Client) *Redis {
	return &Redis{c: c, now: time.Now}
}

// Allow counts the hit with INCR on a key scoped to the current window. The
// key outlives its window by a second and is never reused.
func (r *Redis) Allow(ctx context.Context, key string, rule Rule) (Decision, error) {
	now := r.now()
	start := windowStart(now, rule.Window)
	k := fmt.Sprintf("rl:%s:%d", key, start.Unix())

	var incr *redis.IntCmd
	_, err := r.c.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.Expire(ctx, k, rule.Window+time.Second)
		return nil
	})
	if err != nil {
		return Decision{Allowed: true}, err
	}
	return decide(incr.Val(), rule, now, start), nil
}
