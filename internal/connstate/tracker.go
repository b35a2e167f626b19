// Package connstate tracks the health of the grammar service connection.
//
// A Tracker counts consecutive exhausted-retry failures and derives an
// exponential backoff window from that count. Requests that arrive inside the
// window are refused without touching the network.
package connstate

import (
	"math"
	"sync"
	"time"
)

// State is the coarse connection state.
type State int

const (
	// Healthy means the last check succeeded.
	Healthy State = iota
	// Degraded means at least one failure but fewer than the threshold.
	Degraded
	// Unavailable means the failure count reached the threshold.
	Unavailable
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Config holds tracker parameters.
type Config struct {
	// Threshold is the failure count at which the state becomes Unavailable.
	Threshold int
	// BackoffBase is the backoff after the first failure.
	BackoffBase time.Duration
	// BackoffCap bounds the backoff.
	BackoffCap time.Duration
}

// DefaultConfig returns the default tracker configuration.
func DefaultConfig() Config {
	return Config{
		Threshold:   3,
		BackoffBase: 1 * time.Second,
		BackoffCap:  10 * time.Second,
	}
}

// Status is the published view of the connection.
type Status struct {
	Online            bool
	ConsecutiveErrors int
	State             State
	NextRetryIn       time.Duration
	HasNextRetry      bool
}

// NextRetryInSeconds returns the remaining backoff rounded up to whole
// seconds, and false when no retry is pending.
func (s Status) NextRetryInSeconds() (int, bool) {
	if !s.HasNextRetry {
		return 0, false
	}
	return int(math.Ceil(s.NextRetryIn.Seconds())), true
}

// Tracker records check outcomes. It is safe for concurrent use.
type Tracker struct {
	mu sync.Mutex

	cfg         Config
	errorCount  int
	lastFailure time.Time
	now         func() time.Time

	nextID    int
	observers map[int]func(Status)
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// New creates a tracker. Zero fields in cfg take their defaults.
func New(cfg Config, opts ...Option) *Tracker {
	def := DefaultConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = def.BackoffBase
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = def.BackoffCap
	}
	if cfg.BackoffCap < cfg.BackoffBase {
		cfg.BackoffCap = cfg.BackoffBase
	}

	t := &Tracker{
		cfg:       cfg,
		now:       time.Now,
		observers: make(map[int]func(Status)),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Config returns the tracker configuration.
func (t *Tracker) Config() Config {
	return t.cfg
}

// RecordSuccess resets the tracker to Healthy.
func (t *Tracker) RecordSuccess() {
	t.mu.Lock()
	changed := t.errorCount != 0
	t.errorCount = 0
	t.lastFailure = time.Time{}
	t.mu.Unlock()

	if changed {
		t.notify()
	}
}

// RecordFailure counts one exhausted-retry failure and returns the new
// consecutive error count.
func (t *Tracker) RecordFailure() int {
	t.mu.Lock()
	t.errorCount++
	t.lastFailure = t.now()
	n := t.errorCount
	t.mu.Unlock()

	t.notify()
	return n
}

// Reset clears the failure history. Used when the active backend changes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.errorCount = 0
	t.lastFailure = time.Time{}
	t.mu.Unlock()

	t.notify()
}

// ErrorCount returns the consecutive failure count.
func (t *Tracker) ErrorCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.errorCount
}

// Backoff returns the backoff window for the current failure count.
func (t *Tracker) Backoff() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.backoffLocked()
}

// backoffLocked computes min(base * 2^(n-1), cap). Must hold t.mu.
func (t *Tracker) backoffLocked() time.Duration {
	return backoffFor(t.cfg, t.errorCount)
}

func backoffFor(cfg Config, n int) time.Duration {
	if n <= 0 {
		return 0
	}
	d := cfg.BackoffBase
	for i := 1; i < n; i++ {
		d *= 2
		if d >= cfg.BackoffCap {
			return cfg.BackoffCap
		}
	}
	if d > cfg.BackoffCap {
		return cfg.BackoffCap
	}
	return d
}

// Blocked reports whether a request made now falls inside the backoff
// window, and how long remains.
func (t *Tracker) Blocked() (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	remaining := t.remainingLocked()
	return remaining, remaining > 0
}

func (t *Tracker) remainingLocked() time.Duration {
	if t.errorCount == 0 {
		return 0
	}
	until := t.lastFailure.Add(t.backoffLocked())
	remaining := until.Sub(t.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// State returns the coarse connection state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stateLocked()
}

func (t *Tracker) stateLocked() State {
	switch {
	case t.errorCount == 0:
		return Healthy
	case t.errorCount < t.cfg.Threshold:
		return Degraded
	default:
		return Unavailable
	}
}

// Status returns a snapshot for observers.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statusLocked()
}

func (t *Tracker) statusLocked() Status {
	s := Status{
		Online:            t.errorCount == 0,
		ConsecutiveErrors: t.errorCount,
		State:             t.stateLocked(),
	}
	if t.errorCount > 0 {
		s.NextRetryIn = t.remainingLocked()
		s.HasNextRetry = true
	}
	return s
}

// Subscribe registers fn to receive the status after every change. The
// returned function removes the subscription.
func (t *Tracker) Subscribe(fn func(Status)) func() {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.observers[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.observers, id)
		t.mu.Unlock()
	}
}

// notify delivers the current status outside the lock so observers may call
// back into the tracker.
func (t *Tracker) notify() {
	t.mu.Lock()
	s := t.statusLocked()
	fns := make([]func(Status), 0, len(t.observers))
	for _, fn := range t.observers {
		fns = append(fns, fn)
	}
	t.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
