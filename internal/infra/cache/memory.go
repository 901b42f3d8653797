package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is a process-local TTL cache. A background goroutine drops expired
// entries every sweep interval until Close.
type Memory struct {
	mu    sync.RWMutex
	items map[string]entry
	now   func() time.Time

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func NewMemory(sweep time.Duration) *Memory {
	m := &Memory{
		items: make(map[string]entry),
		now:   time.Now,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	if sweep <= 0 {
		sweep = time.Minute
	}
	go m.sweepLoop(sweep)
	return m
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()
	if !ok || !m.now().Before(e.expiresAt) {
		return nil, ErrMiss
	}
	return e.value, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	buf := make([]byte, len(value))
	copy(buf, value)
	m.mu.Lock()
	m.items[key] = entry{value: buf, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.items, k)
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *Memory) Sweep() {
	now := m.now()
	m.mu.Lock()
	for k, e := range m.items {
		if !now.Before(e.expiresAt) {
			delete(m.items, k)
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

// Close stops the sweeper and waits for it to exit. Safe to call twice.
func (m *Memory) Close() {
	m.once.Do(func() { close(m.stop) })
	<-m.done
}
