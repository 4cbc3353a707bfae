package repository

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"salontime/internal/availability"
	"salontime/internal/domain"
)

type memoryEntry struct {
	entry     domain.SlotEntry
	expiresAt time.Time
}

// MemorySlotCache is a process-local SlotCache with per-entry TTL.
type MemorySlotCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	gens    map[string]int64
	ttl     time.Duration
	now     func() time.Time
}

func NewMemorySlotCache(ttl time.Duration) *MemorySlotCache {
	return &MemorySlotCache{
		entries: make(map[string]memoryEntry),
		gens:    make(map[string]int64),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemorySlotCache) Get(_ context.Context, key string) (*domain.SlotEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, nil
	}
	out := domain.SlotEntry{Closed: e.entry.Closed, Slots: append([]availability.Slot{}, e.entry.Slots...)}
	return &out, nil
}

func (c *MemorySlotCache) Set(_ context.Context, key string, entry *domain.SlotEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = memoryEntry{
		entry:     domain.SlotEntry{Closed: entry.Closed, Slots: append([]availability.Slot{}, entry.Slots...)},
		expiresAt: c.now().Add(c.ttl),
	}
	return nil
}

func (c *MemorySlotCache) Generation(_ context.Context, prefixes ...string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	parts := make([]string, len(prefixes))
	for i, prefix := range prefixes {
		parts[i] = strconv.FormatInt(c.gens[prefix], 10)
	}
	return strings.Join(parts, "."), nil
}

func (c *MemorySlotCache) InvalidatePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gens[prefix]++

	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

// MemoryDayLocker serializes holders of the same key inside one process.
// Each key is a one-slot channel so waiting can be abandoned with ctx.
type MemoryDayLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
	wait  time.Duration
}

func NewMemoryDayLocker(wait time.Duration) *MemoryDayLocker {
	return &MemoryDayLocker{locks: make(map[string]chan struct{}), wait: wait}
}

func (l *MemoryDayLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	ch, ok := l.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[key] = ch
	}
	l.mu.Unlock()

	if l.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, ErrLockTimeout
	}
}
