// Package audiocache holds synthesized speech buffers for the telephony
// provider to fetch over plain HTTP. Entries live for a short TTL and are
// removed on first retrieval, so an asset URL works exactly once.
package audiocache

import (
	"log/slog"
	"sync"
	"time"
)

// Defaults for entry lifetime and sweep cadence.
const (
	DefaultTTL           = 5 * time.Minute
	DefaultSweepInterval = 60 * time.Second
)

type entry struct {
	buf       []byte
	expiresAt time.Time
}

// Cache is a keyed in-memory buffer store with destructive reads and a
// background sweep that drops entries never fetched before their TTL.
// Construct one per process and share it by reference.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry

	ttl        time.Duration
	sweepEvery time.Duration
	logger     *slog.Logger
	now        func() time.Time

	stopOnce sync.Once
	done     chan struct{}
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides the entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// WithSweepInterval overrides the background sweep cadence.
func WithSweepInterval(d time.Duration) Option {
	return func(c *Cache) {
		c.sweepEvery = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates a cache. Call Start to run the background sweep and Stop
// on shutdown.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:    make(map[string]entry),
		ttl:        DefaultTTL,
		sweepEvery: DefaultSweepInterval,
		logger:     slog.Default(),
		now:        time.Now,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "audiocache")
	return c
}

// Store inserts buf under id with expiry now + TTL. Overwriting an
// existing id is allowed; ids are freshly generated so it should not
// happen in practice.
func (c *Cache) Store(id string, buf []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = entry{
		buf:       buf,
		expiresAt: c.now().Add(c.ttl),
	}
}

// Take removes and returns the buffer for id. The second return is false
// when the id is unknown, expired, or already taken; the three cases are
// indistinguishable to the caller.
func (c *Cache) Take(id string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	delete(c.entries, id)
	if c.now().After(e.expiresAt) {
		return nil, false
	}
	return e.buf, true
}

// Len returns the current number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Start runs the background sweep loop in a goroutine.
func (c *Cache) Start() {
	go func() {
		ticker := time.NewTicker(c.sweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Sweep()
			case <-c.done:
				return
			}
		}
	}()
}

// Stop terminates the sweep loop. Safe to call more than once.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
	})
}

// Sweep removes all expired entries and returns how many were dropped.
func (c *Cache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	dropped := 0
	for id, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, id)
			dropped++
		}
	}
	remaining := len(c.entries)
	c.mu.Unlock()

	if dropped > 0 {
		c.logger.Debug("swept expired audio", "dropped", dropped, "remaining", remaining)
	}
	return dropped
}
