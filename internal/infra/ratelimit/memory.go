package ratelimit

import (
	"context"
	"sync"
	"time"
)

type counter struct {
	start time.Time
	count int64
	ttl   time.Duration
}

// Memory is a process-local fixed-window limiter.
type Memory struct {
	mu       sync.Mutex
	counters map[string]*counter
	now      func() time.Time

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func NewMemory(sweep time.Duration) *Memory {
	m := &Memory{
		counters: make(map[string]*counter),
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if sweep <= 0 {
		sweep = time.Minute
	}
	go m.sweepLoop(sweep)
	return m
}

func (m *Memory) Allow(_ context.Context, key string, rule Rule) (Decision, error) {
	now := m.now()
	start := windowStart(now, rule.Window)

	m.mu.Lock()
	c, ok := m.counters[key]
	if !ok || !c.start.Equal(start) {
		c = &counter{start: start, ttl: rule.Window}
		m.counters[key] = c
	}
	c.count++
	count := c.count
	m.mu.Unlock()

	return decide(count, rule, now, start), nil
}

func (m *Memory) Sweep() {
	now := m.now()
	m.mu.Lock()
	for k, c := range m.counters {
		if !now.Before(c.start.Add(c.ttl)) {
			delete(m.counters, k)
		}
	}
	m.mu.Unlock()
}

func (m *Memory) sweepLoop(every time.Duration) {
	defer close(m.done)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-t.C:
			m.Sweep()
		}
	}
}

func (m *Memory) Close() {
	m.once.Do(func() { close(m.stop) })
	<-m.done
}
