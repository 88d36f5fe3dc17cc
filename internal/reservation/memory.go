package reservation

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	count   int
	expires time.Time
}

// MemoryLimiter tracks in-flight counts within one process.
type MemoryLimiter struct {
	mu       sync.Mutex
	ttl      time.Duration
	counters map[string]*memoryEntry
}

// NewMemoryLimiter constructs a MemoryLimiter. Counters idle longer than ttl
// are dropped so a crashed request cannot pin a subject forever.
func NewMemoryLimiter(ttl time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		ttl:      ttl,
		counters: make(map[string]*memoryEntry),
	}
}

// Acquire increments the key's counter when it stays within limit.
func (l *MemoryLimiter) Acquire(_ context.Context, key string, limit int, now time.Time) (Result, error) {
	if key == "" || limit < 0 {
		return Result{Allowed: true}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	entry := l.counters[key]
	if entry != nil && l.ttl > 0 && now.After(entry.expires) {
		delete(l.counters, key)
		entry = nil
	}
	current := 0
	if entry != nil {
		current = entry.count
	}
	if current >= limit {
		return Result{Allowed: false, InFlight: current}, nil
	}
	if entry == nil {
		entry = &memoryEntry{}
		l.counters[key] = entry
	}
	entry.count++
	entry.expires = now.Add(l.ttl)
	return Result{Allowed: true, InFlight: entry.count}, nil
}

// Release decrements the key's counter.
func (l *MemoryLimiter) Release(_ context.Context, key string) error {
	if key == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	entry := l.counters[key]
	if entry == nil {
		return nil
	}
	entry.count--
	if entry.count <= 0 {
		delete(l.counters, key)
	}
	return nil
}
