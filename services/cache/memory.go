package cache

import (
	"context"
	"sync"
	"time"
)

const (
	defaultExpiration = time.Minute
	sweepInterval     = 5 * time.Minute
)

type memoryItem struct {
	data     []byte
	expireAt time.Time
}

// Memory is a process-local cache. Values are stored marshaled so Get
// behaves the same as the Redis backend.
type Memory struct {
	mu        sync.RWMutex
	items     map[string]memoryItem
	janitor   *time.Ticker
	done      chan struct{}
	closeOnce sync.Once
}

func NewMemory() *Memory {
	m := &Memory{
		items:   make(map[string]memoryItem),
		janitor: time.NewTicker(sweepInterval),
		done:    make(chan struct{}),
	}
	go m.sweep()
	return m
}

func (m *Memory) sweep() {
	for {
		select {
		case <-m.done:
			return
		case <-m.janitor.C:
			now := time.Now()
			m.mu.Lock()
			for k, item := range m.items {
				if now.After(item.expireAt) {
					delete(m.items, k)
				}
			}
			m.mu.Unlock()
		}
	}
}

func (m *Memory) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if expiration <= 0 {
		expiration = defaultExpiration
	}

	m.mu.Lock()
	m.items[key] = memoryItem{data: data, expireAt: time.Now().Add(expiration)}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.RLock()
	item, ok := m.items[key]
	m.mu.RUnlock()

	if !ok || time.Now().After(item.expireAt) {
		return ErrCacheMiss
	}
	return decode(item.data, dest)
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.items, k)
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error {
	m.closeOnce.Do(func() {
		m.janitor.Stop()
		close(m.done)
	})
	return nil
}
