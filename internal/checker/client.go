// Package checker performs grammar checks against the hosted API or the
// local engine.
//
// A Client layers a result cache, a backoff gate, bounded retries and
// automatic failover over the raw backend protocol. Unrecoverable failures
// are returned as *NetworkError; the client never performs UI actions.
package checker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dshills/corrector/internal/backend"
	"github.com/dshills/corrector/internal/cache"
	"github.com/dshills/corrector/internal/connstate"
	"github.com/dshills/corrector/internal/logging"
	"github.com/dshills/corrector/internal/metrics"
)

var tracer = otel.Tracer("corrector.checker")

// LocalEngine is the part of the engine supervisor the client needs.
type LocalEngine interface {
	// Start makes the engine ready, starting it if necessary.
	Start(ctx context.Context) error
	// Available reports whether the engine is running or could be started.
	Available(ctx context.Context) error
}

// Options configures a Client. Zero values take defaults.
type Options struct {
	Mode      Mode
	HostedURL string
	LocalURL  string
	Language  string
	VerbForms backend.VerbForms

	// MaxRetries is the number of network attempts per check.
	MaxRetries int
	// RetryBase is the sleep after the first failed attempt; it doubles.
	RetryBase time.Duration
	// Timeout bounds one network attempt.
	Timeout time.Duration
	// CacheTTL is the result cache freshness window.
	CacheTTL time.Duration
	// Tracker configures backoff and the failover threshold.
	Tracker connstate.Config
}

// DefaultOptions returns the default client options.
func DefaultOptions() Options {
	return Options{
		Mode:       ModeHosted,
		HostedURL:  backend.DefaultHostedURL,
		LocalURL:   backend.DefaultLocalURL,
		Language:   backend.DefaultLanguage,
		MaxRetries: 3,
		RetryBase:  1 * time.Second,
		Timeout:    backend.DefaultTimeout,
		CacheTTL:   cache.DefaultTTL,
		Tracker:    connstate.DefaultConfig(),
	}
}

func (o *Options) applyDefaults() {
	def := DefaultOptions()
	if o.HostedURL == "" {
		o.HostedURL = def.HostedURL
	}
	if o.LocalURL == "" {
		o.LocalURL = def.LocalURL
	}
	if o.Language == "" {
		o.Language = def.Language
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = def.MaxRetries
	}
	if o.RetryBase <= 0 {
		o.RetryBase = def.RetryBase
	}
	if o.Timeout <= 0 {
		o.Timeout = def.Timeout
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = def.CacheTTL
	}
}

func (o Options) validate() error {
	if o.Mode != ModeHosted && o.Mode != ModeLocal {
		return fmt.Errorf("invalid mode %d", o.Mode)
	}
	for _, u := range []string{o.HostedURL, o.LocalURL} {
		parsed, err := url.Parse(u)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("invalid backend URL %q", u)
		}
	}
	if err := backend.ValidateLanguage(o.Language); err != nil {
		return err
	}
	if _, err := backend.ParseVerbForms(string(o.VerbForms)); err != nil {
		return err
	}
	return nil
}

// Client performs checks. It is safe for concurrent use.
type Client struct {
	opts Options

	mu        sync.RWMutex // guards language and verbForms
	language  string
	verbForms backend.VerbForms

	backend *backend.Client
	cache   *cache.Cache
	tracker *connstate.Tracker
	modes   *modeMachine
	engine  LocalEngine

	logger *slog.Logger
	now    func() time.Time
	sleep  func(context.Context, time.Duration) error

	unsubscribe func()
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithBackend replaces the protocol client.
func WithBackend(b *backend.Client) Option {
	return func(c *Client) {
		c.backend = b
	}
}

// WithClock sets the time source used by the cache and tracker.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// WithSleep replaces the inter-attempt sleep.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		c.sleep = sleep
	}
}

// New creates a client. engine may be nil, in which case local mode always
// fails over to hosted and automatic failover never happens.
func New(opts Options, engine LocalEngine, options ...Option) (*Client, error) {
	opts.applyDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	c := &Client{
		opts:      opts,
		language:  opts.Language,
		verbForms: opts.VerbForms,
		modes:     newModeMachine(opts.Mode),
		engine:    engine,
		now:       time.Now,
		sleep:     sleepContext,
	}
	for _, o := range options {
		o(c)
	}
	c.logger = logging.OrDiscard(c.logger).With("component", "checker")
	if c.backend == nil {
		c.backend = backend.NewClient(backend.WithTimeout(opts.Timeout))
	}
	c.cache = cache.New(opts.CacheTTL, cache.WithClock(c.now))
	c.tracker = connstate.New(opts.Tracker, connstate.WithClock(c.now))
	c.unsubscribe = c.tracker.Subscribe(func(s connstate.Status) {
		metrics.ConsecutiveErrors.Set(float64(s.ConsecutiveErrors))
	})
	return c, nil
}

// Mode returns the active backend mode.
func (c *Client) Mode() Mode {
	return c.modes.current()
}

// SetMode switches the backend on explicit user request. Switching resets
// the connection history.
func (c *Client) SetMode(m Mode) {
	if c.modes.set(m) {
		c.logger.Info("backend mode changed", "mode", m)
		c.tracker.Reset()
	}
}

// Status returns the connection status.
func (c *Client) Status() connstate.Status {
	return c.tracker.Status()
}

// Subscribe registers fn to receive connection status changes.
func (c *Client) Subscribe(fn func(connstate.Status)) func() {
	return c.tracker.Subscribe(fn)
}

// Blocked reports whether checks are currently held back by backoff.
func (c *Client) Blocked() (time.Duration, bool) {
	return c.tracker.Blocked()
}

// Language returns the check language and verb-form variant.
func (c *Client) Language() (string, backend.VerbForms) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.language, c.verbForms
}

// UpdateLanguage changes the check language. Cached results are dropped
// since they were computed for the previous language.
func (c *Client) UpdateLanguage(lang string, vf backend.VerbForms) error {
	if err := backend.ValidateLanguage(lang); err != nil {
		return err
	}
	if _, err := backend.ParseVerbForms(string(vf)); err != nil {
		return err
	}

	c.mu.Lock()
	changed := c.language != lang || c.verbForms != vf
	c.language = lang
	c.verbForms = vf
	c.mu.Unlock()

	if changed {
		c.cache.Flush()
		c.logger.Info("language changed", "language", lang, "verb_forms", string(vf))
	}
	return nil
}

// BaseURL returns the base URL for mode.
func (c *Client) BaseURL(m Mode) string {
	if m == ModeLocal {
		return c.opts.LocalURL
	}
	return c.opts.HostedURL
}

// Close releases the client's resources.
func (c *Client) Close() {
	c.unsubscribe()
	c.cache.Flush()
}

// Check returns the matches for text.
//
// Fresh cached results are returned without a network call. While the
// backoff window is open the last cached result (possibly stale) or an empty
// result is returned without counting as an attempt. Otherwise the active
// backend is tried up to MaxRetries times. If every attempt fails, a stale
// cached result is returned when one exists; failing that the error is a
// *NetworkError.
func (c *Client) Check(ctx context.Context, text string) ([]backend.Match, error) {
	ctx, span := tracer.Start(ctx, "checker.Check",
		trace.WithAttributes(attribute.Int("checker.text_length", len(text))),
	)
	defer span.End()

	matches, err := c.check(ctx, span, text, false, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("checker.matches", len(matches)))
	return matches, nil
}

// check runs one pass. redirected is set on the single allowed re-run after
// a mode switch; fallback carries the expired entry the first pass evicted,
// so the re-run can still serve it.
func (c *Client) check(ctx context.Context, span trace.Span, text string, redirected bool, fallback *cache.Entry) ([]backend.Match, error) {
	mode := c.modes.current()
	span.SetAttributes(attribute.String("checker.mode", mode.String()))

	if mode == ModeLocal {
		if err := c.startEngine(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("local engine not ready, using hosted backend", "error", err)
			if c.modes.fallBack() {
				metrics.FailoversTotal.WithLabelValues(ModeLocal.String(), ModeHosted.String()).Inc()
				c.tracker.Reset()
			}
			if redirected {
				if fallback != nil {
					return c.serveStale(mode, fallback), nil
				}
				metrics.ChecksTotal.WithLabelValues(mode.String(), "error").Inc()
				return nil, &NetworkError{Mode: ModeLocal, Err: err}
			}
			return c.check(ctx, span, text, true, fallback)
		}
	}

	entry, freshness := c.cache.Lookup(text)
	metrics.CacheLookups.WithLabelValues(freshness.String()).Inc()
	span.SetAttributes(attribute.String("checker.cache", freshness.String()))
	if freshness == cache.Fresh {
		metrics.ChecksTotal.WithLabelValues(mode.String(), "cache_hit").Inc()
		return entry.Matches, nil
	}
	if freshness == cache.Expired {
		fallback = &entry
	}

	if remaining, blocked := c.tracker.Blocked(); blocked {
		metrics.ChecksTotal.WithLabelValues(mode.String(), "backoff").Inc()
		c.logger.Debug("check held back by backoff", "remaining", remaining, "stale", fallback != nil)
		if fallback != nil {
			return fallback.Matches, nil
		}
		return []backend.Match{}, nil
	}

	matches, attempts, err := c.attempt(ctx, mode, text)
	span.SetAttributes(attribute.Int("checker.attempts", attempts))
	if err == nil {
		c.tracker.RecordSuccess()
		c.modes.succeed()
		c.cache.Put(text, matches)
		metrics.ChecksTotal.WithLabelValues(mode.String(), "ok").Inc()
		return matches, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	n := c.tracker.RecordFailure()
	c.logger.Warn("check failed", "mode", mode, "attempts", attempts, "consecutive_errors", n, "error", err)

	if mode == ModeHosted && !redirected && n >= c.tracker.Config().Threshold && c.modes.beginFailover() {
		if c.evaluateFailover(ctx) {
			return c.check(ctx, span, text, true, fallback)
		}
	}

	if fallback != nil {
		return c.serveStale(mode, fallback), nil
	}
	metrics.ChecksTotal.WithLabelValues(mode.String(), "error").Inc()
	return nil, &NetworkError{Mode: mode, Attempts: attempts, Err: err}
}

func (c *Client) serveStale(mode Mode, entry *cache.Entry) []backend.Match {
	metrics.ChecksTotal.WithLabelValues(mode.String(), "stale").Inc()
	c.logger.Info("serving stale cached result", "mode", mode)
	return entry.Matches
}

// evaluateFailover probes the local engine and switches to it when it is
// running or startable.
func (c *Client) evaluateFailover(ctx context.Context) bool {
	if c.engine == nil {
		return false
	}
	if err := c.engine.Available(ctx); err != nil {
		c.logger.Info("failover skipped, local engine not available", "error", err)
		return false
	}
	if !c.modes.failover() {
		return false
	}
	metrics.FailoversTotal.WithLabelValues(ModeHosted.String(), ModeLocal.String()).Inc()
	c.tracker.Reset()
	c.logger.Warn("hosted backend unavailable, switched to local engine")
	return true
}

func (c *Client) startEngine(ctx context.Context) error {
	if c.engine == nil {
		return ErrNoLocalEngine
	}
	if err := c.engine.Start(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrLocalEngineUnavailable, err)
	}
	return nil
}

// attempt calls the backend up to MaxRetries times, sleeping RetryBase,
// 2*RetryBase, ... between attempts. Non-transient errors end the loop.
func (c *Client) attempt(ctx context.Context, mode Mode, text string) ([]backend.Match, int, error) {
	lang, vf := c.Language()
	req := backend.Request{Text: text, Language: lang, VerbForms: vf}
	base := c.BaseURL(mode)

	delay := c.opts.RetryBase
	var lastErr error
	for attempt := 1; attempt <= c.opts.MaxRetries; attempt++ {
		start := time.Now()
		matches, err := c.backend.Check(ctx, base, req)
		metrics.AttemptDuration.WithLabelValues(mode.String()).Observe(time.Since(start).Seconds())
		if err == nil {
			metrics.AttemptsTotal.WithLabelValues(mode.String(), "ok").Inc()
			if attempt > 1 {
				c.logger.Info("check succeeded after retry", "mode", mode, "attempt", attempt)
			}
			return matches, attempt, nil
		}
		lastErr = err

		transient := backend.IsTransient(err)
		outcome := "error"
		if transient {
			outcome = "transient"
		}
		metrics.AttemptsTotal.WithLabelValues(mode.String(), outcome).Inc()

		if !transient || attempt == c.opts.MaxRetries || ctx.Err() != nil {
			return nil, attempt, lastErr
		}

		c.logger.Debug("check attempt failed, retrying",
			"mode", mode, "attempt", attempt, "max", c.opts.MaxRetries, "delay", delay, "error", err)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, attempt, errors.Join(lastErr, err)
		}
		delay *= 2
	}
	return nil, c.opts.MaxRetries, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
