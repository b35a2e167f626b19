// Package cache memoizes grammar check results keyed by the exact text that
// was checked.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/dshills/corrector/internal/backend"
)

// DefaultTTL is how long an entry stays fresh.
const DefaultTTL = 60 * time.Second

// Freshness classifies the outcome of a Lookup.
type Freshness int

const (
	// Missing means no entry exists for the key.
	Missing Freshness = iota
	// Fresh means the entry is younger than the TTL.
	Fresh
	// Expired means the entry outlived the TTL. It is returned once and
	// evicted.
	Expired
)

// String returns the freshness name.
func (f Freshness) String() string {
	switch f {
	case Missing:
		return "missing"
	case Fresh:
		return "fresh"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// Entry is one cached check result.
type Entry struct {
	Key        string
	Matches    []backend.Match
	InsertedAt time.Time
}

// Cache is a TTL cache of check results. It is safe for concurrent use.
//
// Expiry is evaluated on read against the entry's insertion time; there is
// no background sweep.
type Cache struct {
	store *gocache.Cache
	ttl   time.Duration
	now   func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates a cache whose entries stay fresh for ttl. A non-positive ttl
// selects DefaultTTL.
func New(ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		store: gocache.New(gocache.NoExpiration, 0),
		ttl:   ttl,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the freshness window.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Lookup returns the entry for key and its freshness. An expired entry is
// removed before returning, so a second Lookup reports Missing.
func (c *Cache) Lookup(key string) (Entry, Freshness) {
	v, ok := c.store.Get(key)
	if !ok {
		return Entry{}, Missing
	}
	e := v.(Entry)

	if c.now().Sub(e.InsertedAt) >= c.ttl {
		c.store.Delete(key)
		return e, Expired
	}
	return e, Fresh
}

// Get returns the matches for key if a fresh entry exists. Expired entries
// are evicted.
func (c *Cache) Get(key string) ([]backend.Match, bool) {
	e, f := c.Lookup(key)
	if f != Fresh {
		return nil, false
	}
	return e.Matches, true
}

// Put stores matches for key, replacing any previous entry.
func (c *Cache) Put(key string, matches []backend.Match) {
	c.store.Set(key, Entry{
		Key:        key,
		Matches:    matches,
		InsertedAt: c.now(),
	}, gocache.NoExpiration)
}

// Len returns the number of stored entries, fresh or not.
func (c *Cache) Len() int {
	return c.store.ItemCount()
}

// Flush removes every entry.
func (c *Cache) Flush() {
	c.store.Flush()
}
