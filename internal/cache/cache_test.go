package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/corrector/internal/backend"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(ttl time.Duration) (*Cache, *fakeClock) {
	clk := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New(ttl, WithClock(clk.Now)), clk
}

func sampleMatches() []backend.Match {
	return []backend.Match{{
		Offset:       14,
		Length:       7,
		Message:      "Possible error ortogràfic.",
		RuleID:       "MORFOLOGIK_RULE_CA_ES",
		Category:     backend.CategoryMisspelling,
		Replacements: []string{"frase"},
	}}
}

func TestCache_PutGet(t *testing.T) {
	c, _ := newTestCache(time.Minute)

	_, ok := c.Get("Aquesta és una pfrase.")
	assert.False(t, ok)

	c.Put("Aquesta és una pfrase.", sampleMatches())
	got, ok := c.Get("Aquesta és una pfrase.")
	require.True(t, ok)
	assert.Equal(t, sampleMatches(), got)
	assert.Equal(t, 1, c.Len())
}

func TestCache_KeyIsExact(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	c.Put("hola", nil)

	_, ok := c.Get("hola ")
	assert.False(t, ok)
	_, ok = c.Get("Hola")
	assert.False(t, ok)
}

func TestCache_EmptyResultIsCached(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	c.Put("text correcte", []backend.Match{})

	got, ok := c.Get("text correcte")
	require.True(t, ok)
	assert.Empty(t, got)
}

func TestCache_Expiry(t *testing.T) {
	c, clk := newTestCache(time.Minute)
	c.Put("k", sampleMatches())

	clk.Advance(59 * time.Second)
	_, f := c.Lookup("k")
	assert.Equal(t, Fresh, f)

	clk.Advance(time.Second)
	e, f := c.Lookup("k")
	assert.Equal(t, Expired, f)
	assert.Equal(t, sampleMatches(), e.Matches)

	_, f = c.Lookup("k")
	assert.Equal(t, Missing, f)
	assert.Equal(t, 0, c.Len())
}

func TestCache_GetEvictsExpired(t *testing.T) {
	c, clk := newTestCache(time.Minute)
	c.Put("k", sampleMatches())
	clk.Advance(2 * time.Minute)

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCache_PutRefreshesInsertion(t *testing.T) {
	c, clk := newTestCache(time.Minute)
	c.Put("k", nil)
	clk.Advance(50 * time.Second)
	c.Put("k", sampleMatches())
	clk.Advance(50 * time.Second)

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Len(t, got, 1)
}

func TestCache_Flush(t *testing.T) {
	c, _ := newTestCache(0)
	assert.Equal(t, DefaultTTL, c.TTL())

	c.Put("a", nil)
	c.Put("b", nil)
	c.Flush()
	assert.Equal(t, 0, c.Len())
}

func TestCache_Concurrent(t *testing.T) {
	c, _ := newTestCache(time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Put("k", sampleMatches())
				c.Get("k")
				c.Lookup("other")
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, c.Len())
}

func TestFreshness_String(t *testing.T) {
	assert.Equal(t, "fresh", Fresh.String())
	assert.Equal(t, "expired", Expired.String())
	assert.Equal(t, "missing", Missing.String())
}
