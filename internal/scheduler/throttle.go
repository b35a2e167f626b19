package scheduler

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Notifier receives check failures worth telling the user about.
type Notifier interface {
	Notify(uri string, err error)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(uri string, err error)

// Notify implements Notifier.
func (f NotifierFunc) Notify(uri string, err error) { f(uri, err) }

// throttle allows one notification per document and message per cooldown.
type throttle struct {
	mu       sync.Mutex
	cooldown time.Duration
	limiters map[string]*rate.Limiter
}

func newThrottle(cooldown time.Duration) *throttle {
	return &throttle{
		cooldown: cooldown,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (t *throttle) allow(uri, message string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cooldown <= 0 {
		return true
	}
	key := uri + "\x00" + message
	l, ok := t.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Every(t.cooldown), 1)
		t.limiters[key] = l
	}
	return l.AllowN(now, 1)
}

func (t *throttle) setCooldown(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if d == t.cooldown {
		return
	}
	t.cooldown = d
	clear(t.limiters)
}

// forget drops the limiters of one document.
func (t *throttle) forget(uri string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	prefix := uri + "\x00"
	for key := range t.limiters {
		if strings.HasPrefix(key, prefix) {
			delete(t.limiters, key)
		}
	}
}
