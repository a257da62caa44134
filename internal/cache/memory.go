package cache

import (
	"context"
	"sync"
	"time"
)

const defaultMaxEntries = 10000

// MemoryClient keeps verdicts for the lifetime of the process. When full,
// the entry stored first is dropped.
type MemoryClient struct {
	mu      sync.Mutex
	entries map[string]memEntry
	seq     uint64
	limit   int
	now     func() time.Time
}

type memEntry struct {
	value   []byte
	expires time.Time // zero: no expiry
	seq     uint64
}

// NewMemoryClient creates a cache holding at most limit entries.
func NewMemoryClient(limit int) *MemoryClient {
	if limit <= 0 {
		limit = defaultMaxEntries
	}
	return &MemoryClient{
		entries: make(map[string]memEntry),
		limit:   limit,
		now:     time.Now,
	}
}

func (c *MemoryClient) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		delete(c.entries, key)
		return nil, ErrCacheMiss
	}
	return e.value, nil
}

// Set stores value for ttl. A zero ttl never expires.
func (c *MemoryClient) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.limit {
		c.dropFirst()
	}

	c.seq++
	e := memEntry{value: value, seq: c.seq}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}
	c.entries[key] = e
	return nil
}

func (c *MemoryClient) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *MemoryClient) Close() error { return nil }

// Len returns the number of stored entries, expired ones included.
func (c *MemoryClient) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryClient) dropFirst() {
	var (
		victim string
		oldest uint64
	)
	for k, e := range c.entries {
		if victim == "" || e.seq < oldest {
			victim, oldest = k, e.seq
		}
	}
	delete(c.entries, victim)
}
