package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memEntry struct {
	val     []byte
	expires time.Time
}

const DefaultMemorySweepInterval = time.Minute

// Memory is a process-local Cache used when Redis is not configured. Expired
// entries are dropped on read and by Purge; with a max entry count set, a
// write that would exceed it first evicts the entry closest to expiry.
type Memory struct {
	mu         sync.Mutex
	m          map[string]memEntry
	now        func() time.Time
	maxEntries int
}

type MemoryOption func(*Memory)

// WithMaxEntries bounds the number of held entries. Zero means unbounded.
func WithMaxEntries(n int) MemoryOption {
	return func(c *Memory) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	c := &Memory{m: make(map[string]memEntry), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start purges expired entries every interval until ctx is done.
func (c *Memory) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultMemorySweepInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Purge()
			}
		}
	}()
}

// Purge deletes every expired entry and returns how many were removed.
func (c *Memory) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purgeLocked(c.now())
}

func (c *Memory) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}

func (c *Memory) purgeLocked(now time.Time) int {
	n := 0
	for k, e := range c.m {
		if !e.expires.IsZero() && now.After(e.expires) {
			delete(c.m, k)
			n++
		}
	}
	return n
}

// evictLocked removes the entry that would expire first. Entries without a
// ttl go last.
func (c *Memory) evictLocked() {
	var (
		victim string
		soon   time.Time
		found  bool
	)
	for k, e := range c.m {
		switch {
		case !found:
		case e.expires.IsZero():
			continue
		case !soon.IsZero() && !e.expires.Before(soon):
			continue
		}
		victim, soon, found = k, e.expires, true
	}
	if found {
		delete(c.m, victim)
	}
}

func (c *Memory) GetBytes(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && c.now().After(e.expires) {
		delete(c.m, key)
		return nil, false, nil
	}
	return e.val, true, nil
}

func (c *Memory) SetBytes(_ context.Context, key string, val []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := memEntry{val: append([]byte(nil), val...)}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}
	if _, exists := c.m[key]; !exists && c.maxEntries > 0 && len(c.m) >= c.maxEntries {
		if c.purgeLocked(c.now()) == 0 {
			c.evictLocked()
		}
	}
	c.m[key] = e
	return nil
}

func (c *Memory) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	b, hit, err := c.GetBytes(ctx, key)
	if err != nil || !hit {
		return false, err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		_ = c.Del(ctx, key)
		return false, nil
	}
	return true, nil
}

func (c *Memory) SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return c.SetBytes(ctx, key, b, ttl)
}

func (c *Memory) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.m, k)
	}
	return nil
}
