// Package scheduler turns document changes into debounced check cycles and
// publishes their results as document-absolute diagnostics.
//
// Each document has at most one pending debounce timer. Cycles for the same
// document may overlap; every cycle takes a token when it starts and only
// the most recently started cycle is allowed to publish. A failed cycle
// leaves the previous diagnostics in place.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/corrector/internal/backend"
	"github.com/dshills/corrector/internal/checker"
	"github.com/dshills/corrector/internal/connstate"
	"github.com/dshills/corrector/internal/document"
	"github.com/dshills/corrector/internal/extract"
	"github.com/dshills/corrector/internal/logging"
	"github.com/dshills/corrector/internal/metrics"
)

var (
	// ErrClosed is returned by CheckNow after Close.
	ErrClosed = errors.New("scheduler closed")

	// ErrNotCheckable is returned by CheckNow for documents whose language
	// is not configured for checking.
	ErrNotCheckable = errors.New("document language not checked")
)

// DeferredError reports a cycle that did not run because the checker is
// backing off.
type DeferredError struct {
	RetryIn time.Duration
}

func (e *DeferredError) Error() string {
	return fmt.Sprintf("check deferred for %s while the service recovers", e.RetryIn.Round(time.Second))
}

// Checker is the part of the check client the scheduler needs.
type Checker interface {
	Check(ctx context.Context, text string) ([]backend.Match, error)
	Status() connstate.Status
	Subscribe(fn func(connstate.Status)) func()
	Blocked() (time.Duration, bool)
}

// Publisher receives results. Calls may come from any goroutine.
type Publisher interface {
	// PublishDiagnostics replaces the diagnostics shown for uri.
	PublishDiagnostics(uri string, diags []AnnotatedError)
	// PublishConnectionStatus updates the connection indicator.
	PublishConnectionStatus(status connstate.Status)
}

// Options configures a Scheduler. Zero values take defaults, except for the
// booleans which are taken as given.
type Options struct {
	// Delay is the debounce window.
	Delay time.Duration
	// AutoCheck enables checks from Schedule. CheckNow ignores it.
	AutoCheck bool
	// CommentsOnly restricts code languages to their comments.
	CommentsOnly bool
	// EnabledLanguages are checked as a whole.
	EnabledLanguages []string
	// CodeLanguages are checked comments-only, or whole when CommentsOnly
	// is off.
	CodeLanguages []string
	// SuppressedRules are dropped before publishing.
	SuppressedRules []string
	// DisableCapitalization suppresses the sentence-start capitalization rule.
	DisableCapitalization bool
	// NotifyCooldown is the minimum gap between two identical failure
	// notifications for one document.
	NotifyCooldown time.Duration
}

// DefaultOptions returns the default scheduler options.
func DefaultOptions() Options {
	return Options{
		Delay:            500 * time.Millisecond,
		AutoCheck:        true,
		CommentsOnly:     true,
		EnabledLanguages: []string{"plaintext", "markdown", "latex"},
		CodeLanguages:    []string{"javascript", "typescript", "python", "java"},
		NotifyCooldown:   30 * time.Second,
	}
}

func (o *Options) applyDefaults() {
	def := DefaultOptions()
	if o.Delay <= 0 {
		o.Delay = def.Delay
	}
	if o.EnabledLanguages == nil {
		o.EnabledLanguages = def.EnabledLanguages
	}
	if o.CodeLanguages == nil {
		o.CodeLanguages = def.CodeLanguages
	}
	if o.NotifyCooldown < 0 {
		o.NotifyCooldown = 0
	}
}

// docState is the per-document bookkeeping.
type docState struct {
	timer *time.Timer
	// gen invalidates timers that fired after being replaced.
	gen uint64
	// started is the token of the most recently started cycle. Tokens
	// come from one counter so a cleared document never reuses one.
	started uint64
	diags   []AnnotatedError
}

// Scheduler runs check cycles. It is safe for concurrent use.
type Scheduler struct {
	checker   Checker
	publisher Publisher
	notifier  Notifier
	logger    *slog.Logger
	now       func() time.Time

	mu        sync.Mutex
	opts      Options
	filter    ruleFilter
	docs      map[string]*docState
	nextGen   uint64
	nextToken uint64
	closed    bool

	throttle *throttle
	wg       sync.WaitGroup

	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// WithNotifier sets the receiver of throttled failure notifications.
func WithNotifier(n Notifier) Option {
	return func(s *Scheduler) {
		s.notifier = n
	}
}

// WithClock sets the time source used for notification throttling.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// New creates a scheduler. Connection status changes reported by c are
// forwarded to p until Close.
func New(c Checker, p Publisher, opts Options, options ...Option) *Scheduler {
	opts.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		checker:   c,
		publisher: p,
		now:       time.Now,
		opts:      opts,
		filter:    newRuleFilter(opts),
		docs:      make(map[string]*docState),
		throttle:  newThrottle(opts.NotifyCooldown),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, o := range options {
		o(s)
	}
	s.logger = logging.OrDiscard(s.logger).With("component", "scheduler")
	s.unsubscribe = c.Subscribe(p.PublishConnectionStatus)
	return s
}

// Options returns the current options.
func (s *Scheduler) Options() Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

// UpdateOptions replaces the options. Pending timers keep their delay;
// published diagnostics are not re-filtered until the next cycle.
func (s *Scheduler) UpdateOptions(opts Options) {
	opts.applyDefaults()
	s.mu.Lock()
	s.opts = opts
	s.filter = newRuleFilter(opts)
	s.mu.Unlock()
	s.throttle.setCooldown(opts.NotifyCooldown)
}

// ShouldCheck reports whether doc's language is configured for checking.
func (s *Scheduler) ShouldCheck(doc document.Document) bool {
	_, ok := s.spans(doc.Text(), doc.LanguageID(), s.Options())
	return ok
}

// spans selects what to check for a document.
func (s *Scheduler) spans(text, languageID string, opts Options) (iter.Seq[extract.Span], bool) {
	switch {
	case slices.Contains(opts.EnabledLanguages, languageID):
		return extract.Whole(text), true
	case !slices.Contains(opts.CodeLanguages, languageID):
		return nil, false
	case !opts.CommentsOnly:
		return extract.Whole(text), true
	case extract.IsCodeLanguage(languageID):
		return extract.Comments(text, languageID), true
	default:
		return nil, false
	}
}

// Schedule requests a check of doc after the debounce delay. A request
// replaces any pending one for the same document.
func (s *Scheduler) Schedule(doc document.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.opts.AutoCheck {
		return
	}
	s.armLocked(doc, s.opts.Delay)
}

// armLocked replaces the pending timer for doc.
func (s *Scheduler) armLocked(doc document.Document, delay time.Duration) {
	uri := doc.URI()
	st := s.stateLocked(uri)
	if st.timer != nil {
		st.timer.Stop()
	}

	s.nextGen++
	gen := s.nextGen
	st.gen = gen

	st.timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		cur, ok := s.docs[uri]
		if s.closed || !ok || cur.gen != gen {
			s.mu.Unlock()
			return
		}
		cur.timer = nil
		s.wg.Add(1)
		s.mu.Unlock()

		defer s.wg.Done()
		s.fire(doc, gen)
	})
}

// fire runs a debounced cycle. Errors end here.
func (s *Scheduler) fire(doc document.Document, gen uint64) {
	err := s.run(s.ctx, doc)

	var deferred *DeferredError
	switch {
	case err == nil:
	case errors.As(err, &deferred):
		s.mu.Lock()
		if cur, ok := s.docs[doc.URI()]; ok && !s.closed && cur.gen == gen && cur.timer == nil {
			s.armLocked(doc, deferred.RetryIn)
		}
		s.mu.Unlock()
	case errors.Is(err, context.Canceled), errors.Is(err, ErrNotCheckable):
	default:
		s.notify(doc.URI(), err)
	}
}

// CheckNow runs a cycle for doc immediately and waits for it.
func (s *Scheduler) CheckNow(ctx context.Context, doc document.Document) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	return s.run(ctx, doc)
}

// run executes one check cycle.
func (s *Scheduler) run(ctx context.Context, doc document.Document) error {
	uri := doc.URI()
	text := doc.Text()
	version := doc.Version()

	s.mu.Lock()
	opts := s.opts
	filter := s.filter
	s.mu.Unlock()

	spans, ok := s.spans(text, doc.LanguageID(), opts)
	if !ok {
		metrics.CyclesTotal.WithLabelValues("skipped").Inc()
		return ErrNotCheckable
	}

	if remaining, blocked := s.checker.Blocked(); blocked {
		metrics.CyclesTotal.WithLabelValues("deferred").Inc()
		s.publisher.PublishConnectionStatus(s.checker.Status())
		return &DeferredError{RetryIn: remaining}
	}

	token := s.begin(uri)
	logger := s.logger.With("cycle", uuid.NewString(), "uri", uri, "version", version)
	logger.Debug("check cycle started", "token", token)

	idx := document.NewOffsetIndex(text)
	diags := []AnnotatedError{}
	for span := range spans {
		req := CheckRequest{Text: span.Text, SpanOffset: span.Offset, Version: version}

		if remaining, blocked := s.checker.Blocked(); blocked {
			metrics.CyclesTotal.WithLabelValues("deferred").Inc()
			s.publisher.PublishConnectionStatus(s.checker.Status())
			logger.Debug("check cycle deferred", "remaining", remaining)
			return &DeferredError{RetryIn: remaining}
		}

		matches, err := s.checker.Check(ctx, req.Text)
		if err != nil {
			metrics.CyclesTotal.WithLabelValues("failed").Inc()
			s.publisher.PublishConnectionStatus(s.checker.Status())
			if ctx.Err() == nil {
				logger.Warn("check cycle failed", "span_offset", req.SpanOffset, "error", err)
			}
			return err
		}

		for _, m := range matches {
			if filter.suppressed(m.RuleID) {
				continue
			}
			rng, ok := remap(idx, span, m)
			if !ok {
				logger.Debug("match outside span dropped", "offset", m.Offset, "length", m.Length, "rule", m.RuleID)
				continue
			}
			diags = append(diags, annotate(idx, rng, m))
		}
	}
	diags = finalize(uri, diags)

	if !s.commit(uri, token, diags) {
		metrics.CyclesTotal.WithLabelValues("stale").Inc()
		logger.Debug("stale check cycle discarded", "token", token)
		return nil
	}

	metrics.CyclesTotal.WithLabelValues("published").Inc()
	metrics.DiagnosticsPublished.Observe(float64(len(diags)))
	logger.Debug("diagnostics published", "count", len(diags))
	s.publisher.PublishDiagnostics(uri, diags)
	s.publisher.PublishConnectionStatus(s.checker.Status())
	return nil
}

// begin starts a cycle and returns its token.
func (s *Scheduler) begin(uri string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextToken++
	s.stateLocked(uri).started = s.nextToken
	return s.nextToken
}

// commit stores diags if token belongs to the latest started cycle.
func (s *Scheduler) commit(uri string, token uint64, diags []AnnotatedError) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.docs[uri]
	if !ok || s.closed || st.started != token {
		return false
	}
	st.diags = diags
	return true
}

func (s *Scheduler) stateLocked(uri string) *docState {
	st, ok := s.docs[uri]
	if !ok {
		st = &docState{}
		s.docs[uri] = st
	}
	return st
}

func (s *Scheduler) notify(uri string, err error) {
	if s.notifier == nil {
		return
	}
	msg := checker.Remediation(err)
	if msg == "" {
		msg = err.Error()
	}
	if !s.throttle.allow(uri, msg, s.now()) {
		s.logger.Debug("failure notification throttled", "uri", uri)
		return
	}
	s.notifier.Notify(uri, err)
}

// Diagnostics returns a copy of the published diagnostics for uri.
func (s *Scheduler) Diagnostics(uri string) []AnnotatedError {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.docs[uri]
	if !ok {
		return nil
	}
	return slices.Clone(st.diags)
}

// RemoveDiagnostic drops the diagnostic whose range equals rng and
// republishes the remaining set.
func (s *Scheduler) RemoveDiagnostic(uri string, rng document.Range) bool {
	s.mu.Lock()
	st, ok := s.docs[uri]
	if !ok {
		s.mu.Unlock()
		return false
	}
	i := slices.IndexFunc(st.diags, func(d AnnotatedError) bool {
		return d.Range == rng
	})
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	st.diags = slices.Delete(slices.Clone(st.diags), i, i+1)
	remaining := slices.Clone(st.diags)
	s.mu.Unlock()

	s.publisher.PublishDiagnostics(uri, remaining)
	return true
}

// Clear forgets a document: its pending timer, its diagnostics and any
// in-flight cycle's results.
func (s *Scheduler) Clear(uri string) {
	s.mu.Lock()
	st, ok := s.docs[uri]
	if ok {
		if st.timer != nil {
			st.timer.Stop()
		}
		delete(s.docs, uri)
	}
	s.mu.Unlock()

	s.throttle.forget(uri)
	if ok {
		s.publisher.PublishDiagnostics(uri, []AnnotatedError{})
	}
}

// ClearAll clears every document.
func (s *Scheduler) ClearAll() {
	s.mu.Lock()
	uris := make([]string, 0, len(s.docs))
	for uri := range s.docs {
		uris = append(uris, uri)
	}
	s.mu.Unlock()

	for _, uri := range uris {
		s.Clear(uri)
	}
}

// Close stops pending timers, cancels running cycles and waits for them.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for _, st := range s.docs {
		if st.timer != nil {
			st.timer.Stop()
		}
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.unsubscribe()
}
