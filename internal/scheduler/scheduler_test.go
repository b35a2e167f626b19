package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/corrector/internal/backend"
	"github.com/dshills/corrector/internal/checker"
	"github.com/dshills/corrector/internal/connstate"
	"github.com/dshills/corrector/internal/document"
)

type fakeChecker struct {
	mu      sync.Mutex
	texts   []string
	reply   func(ctx context.Context, text string) ([]backend.Match, error)
	status  connstate.Status
	blocked time.Duration
	subs    []func(connstate.Status)
}

func (c *fakeChecker) Check(ctx context.Context, text string) ([]backend.Match, error) {
	c.mu.Lock()
	c.texts = append(c.texts, text)
	reply := c.reply
	c.mu.Unlock()
	if reply == nil {
		return []backend.Match{}, nil
	}
	return reply(ctx, text)
}

func (c *fakeChecker) Status() connstate.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *fakeChecker) Subscribe(fn func(connstate.Status)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.subs = nil
	}
}

func (c *fakeChecker) Blocked() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blocked, c.blocked > 0
}

func (c *fakeChecker) setReply(fn func(ctx context.Context, text string) ([]backend.Match, error)) {
	c.mu.Lock()
	c.reply = fn
	c.mu.Unlock()
}

func (c *fakeChecker) calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.texts...)
}

type recorder struct {
	mu       sync.Mutex
	diags    map[string][][]AnnotatedError
	statuses []connstate.Status
}

func newRecorder() *recorder {
	return &recorder{diags: make(map[string][][]AnnotatedError)}
}

func (r *recorder) PublishDiagnostics(uri string, diags []AnnotatedError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diags[uri] = append(r.diags[uri], diags)
}

func (r *recorder) PublishConnectionStatus(s connstate.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *recorder) published(uri string) [][]AnnotatedError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]AnnotatedError(nil), r.diags[uri]...)
}

func (r *recorder) statusCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.statuses)
}

func replyWith(matches ...backend.Match) func(context.Context, string) ([]backend.Match, error) {
	return func(context.Context, string) ([]backend.Match, error) {
		return matches, nil
	}
}

func newTestScheduler(t *testing.T, c *fakeChecker, opts Options, options ...Option) (*Scheduler, *recorder) {
	t.Helper()
	rec := newRecorder()
	s := New(c, rec, opts, options...)
	t.Cleanup(s.Close)
	return s, rec
}

func TestCheckNow_WholeDocument(t *testing.T) {
	c := &fakeChecker{}
	c.setReply(replyWith(backend.Match{
		Offset:       14,
		Length:       7,
		Message:      "Possible error ortogràfic.",
		RuleID:       "MORFOLOGIK_RULE_CA_ES",
		Category:     backend.CategoryMisspelling,
		Replacements: []string{"frase"},
	}))
	s, rec := newTestScheduler(t, c, DefaultOptions())

	doc := document.NewFile("file:///tmp/a.txt", "plaintext", "Aquesta és una pfrase.")
	require.NoError(t, s.CheckNow(context.Background(), doc))

	assert.Equal(t, []string{"Aquesta és una pfrase."}, c.calls())
	got := s.Diagnostics(doc.URI())
	require.Len(t, got, 1)
	d := got[0]
	assert.Equal(t, document.Range{Start: 14, End: 21}, d.Range)
	assert.Equal(t, []string{"frase"}, d.Replacements)
	assert.Equal(t, "file:///tmp/a.txt-0", d.ID)
	assert.Equal(t, SeverityError, d.Severity)
	assert.Equal(t, " pfrase", d.Text)
	assert.Equal(t, document.Position{Line: 0, Character: 14}, d.Start)
	assert.Equal(t, document.Position{Line: 0, Character: 21}, d.End)

	require.Len(t, rec.published(doc.URI()), 1)
	assert.Positive(t, rec.statusCount())
}

func TestCheckNow_CommentRemap(t *testing.T) {
	text := "const x = 1;\n// Aixo es un comentari\nlet y = 2;\n"
	c := &fakeChecker{}
	c.setReply(func(_ context.Context, got string) ([]backend.Match, error) {
		if got != "Aixo es un comentari" {
			return []backend.Match{}, nil
		}
		return []backend.Match{{Offset: 0, Length: 4, RuleID: "MORFOLOGIK_RULE_CA_ES", Category: backend.CategoryMisspelling}}, nil
	})
	s, _ := newTestScheduler(t, c, DefaultOptions())

	doc := document.NewFile("file:///tmp/a.js", "javascript", text)
	require.NoError(t, s.CheckNow(context.Background(), doc))

	assert.Equal(t, []string{"Aixo es un comentari"}, c.calls())
	got := s.Diagnostics(doc.URI())
	require.Len(t, got, 1)
	start := strings.Index(text, "Aixo")
	assert.Equal(t, document.Range{Start: start, End: start + 4}, got[0].Range)
	assert.Equal(t, "Aixo", got[0].Text)
}

func TestCheckNow_RemapMultibyte(t *testing.T) {
	text := "let café = '😀';\n/*\n * Això és un comentari\n * amb dues línies\n */\n"
	c := &fakeChecker{}
	c.setReply(func(_ context.Context, got string) ([]backend.Match, error) {
		// "línies" sits on the second comment line
		i := strings.Index(got, "línies")
		if i < 0 {
			return []backend.Match{}, nil
		}
		return []backend.Match{{Offset: document.ByteToUTF16(got, i), Length: 6, Category: backend.CategoryGrammar}}, nil
	})
	s, _ := newTestScheduler(t, c, DefaultOptions())

	doc := document.NewFile("file:///tmp/b.js", "javascript", text)
	require.NoError(t, s.CheckNow(context.Background(), doc))

	got := s.Diagnostics(doc.URI())
	require.Len(t, got, 1)
	want := document.ByteToUTF16(text, strings.Index(text, "línies"))
	assert.Equal(t, document.Range{Start: want, End: want + 6}, got[0].Range)
	assert.Equal(t, "línies", got[0].Text)
	assert.Equal(t, 3, got[0].Start.Line)
	assert.Equal(t, SeverityWarning, got[0].Severity)
}

func TestCheckNow_DropsMatchOutsideSpan(t *testing.T) {
	c := &fakeChecker{}
	c.setReply(replyWith(
		backend.Match{Offset: 0, Length: 4, RuleID: "A"},
		backend.Match{Offset: 10, Length: 50, RuleID: "B"},
	))
	s, _ := newTestScheduler(t, c, DefaultOptions())

	doc := document.NewFile("file:///tmp/a.txt", "plaintext", "Bon dia a tothom.")
	require.NoError(t, s.CheckNow(context.Background(), doc))

	got := s.Diagnostics(doc.URI())
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].RuleID)
}

func TestCheckNow_StaleCycleDiscarded(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	c := &fakeChecker{}
	c.setReply(func(_ context.Context, text string) ([]backend.Match, error) {
		if text == "Primera versió." {
			close(entered)
			<-release
			return []backend.Match{{Offset: 0, Length: 7, RuleID: "OLD"}}, nil
		}
		return []backend.Match{{Offset: 0, Length: 5, RuleID: "NEW"}}, nil
	})
	s, rec := newTestScheduler(t, c, DefaultOptions())

	doc := document.NewFile("file:///tmp/a.txt", "plaintext", "Primera versió.")
	first := make(chan error, 1)
	go func() {
		first <- s.CheckNow(context.Background(), doc)
	}()
	<-entered

	doc.SetText("Segona versió.")
	require.NoError(t, s.CheckNow(context.Background(), doc))

	close(release)
	require.NoError(t, <-first)

	got := s.Diagnostics(doc.URI())
	require.Len(t, got, 1)
	assert.Equal(t, "NEW", got[0].RuleID)
	assert.Len(t, rec.published(doc.URI()), 1)
}

func TestCheckNow_OlderCycleYieldsToStartedCycle(t *testing.T) {
	releaseOld := make(chan struct{})
	releaseNew := make(chan struct{})
	oldEntered := make(chan struct{})
	newEntered := make(chan struct{})
	c := &fakeChecker{}
	c.setReply(func(_ context.Context, text string) ([]backend.Match, error) {
		if text == "Primera versió." {
			close(oldEntered)
			<-releaseOld
			return []backend.Match{{Offset: 0, Length: 7, RuleID: "OLD"}}, nil
		}
		close(newEntered)
		<-releaseNew
		return []backend.Match{{Offset: 0, Length: 5, RuleID: "NEW"}}, nil
	})
	s, rec := newTestScheduler(t, c, DefaultOptions())

	doc := document.NewFile("file:///tmp/a.txt", "plaintext", "Primera versió.")
	errs := make(chan error, 2)
	go func() { errs <- s.CheckNow(context.Background(), doc) }()
	<-oldEntered
	doc.SetText("Segona versió.")
	go func() { errs <- s.CheckNow(context.Background(), doc) }()
	<-newEntered

	// The older cycle completes first but a newer one has started.
	close(releaseOld)
	require.NoError(t, <-errs)
	assert.Empty(t, rec.published(doc.URI()))
	assert.Empty(t, s.Diagnostics(doc.URI()))

	close(releaseNew)
	require.NoError(t, <-errs)
	got := s.Diagnostics(doc.URI())
	require.Len(t, got, 1)
	assert.Equal(t, "NEW", got[0].RuleID)
}

func TestCheckNow_FailureKeepsDiagnostics(t *testing.T) {
	c := &fakeChecker{}
	c.setReply(replyWith(backend.Match{Offset: 0, Length: 3, RuleID: "A"}))
	s, rec := newTestScheduler(t, c, DefaultOptions())

	doc := document.NewFile("file:///tmp/a.txt", "plaintext", "Bon dia.")
	require.NoError(t, s.CheckNow(context.Background(), doc))
	require.Len(t, s.Diagnostics(doc.URI()), 1)
	statuses := rec.statusCount()

	netErr := &checker.NetworkError{Mode: checker.ModeHosted, Attempts: 3, Err: errors.New("connection refused")}
	c.mu.Lock()
	c.status = connstate.Status{Online: false, ConsecutiveErrors: 1}
	c.mu.Unlock()
	c.setReply(func(context.Context, string) ([]backend.Match, error) { return nil, netErr })

	doc.SetText("Bon dia a tots.")
	err := s.CheckNow(context.Background(), doc)
	require.ErrorIs(t, err, checker.ErrBackendUnavailable)

	assert.Len(t, s.Diagnostics(doc.URI()), 1)
	assert.Len(t, rec.published(doc.URI()), 1)
	assert.Greater(t, rec.statusCount(), statuses)
	rec.mu.Lock()
	last := rec.statuses[len(rec.statuses)-1]
	rec.mu.Unlock()
	assert.Equal(t, 1, last.ConsecutiveErrors)
}

func TestCheckNow_DeferredWhileBlocked(t *testing.T) {
	c := &fakeChecker{blocked: 2 * time.Second}
	s, rec := newTestScheduler(t, c, DefaultOptions())

	doc := document.NewFile("file:///tmp/a.txt", "plaintext", "Bon dia.")
	err := s.CheckNow(context.Background(), doc)

	var deferred *DeferredError
	require.ErrorAs(t, err, &deferred)
	assert.Equal(t, 2*time.Second, deferred.RetryIn)
	assert.Empty(t, c.calls())
	assert.Empty(t, rec.published(doc.URI()))
	assert.Equal(t, 1, rec.statusCount())
}

func TestCheckNow_RuleFiltering(t *testing.T) {
	matches := []backend.Match{
		{Offset: 0, Length: 3, RuleID: CapitalizationRule},
		{Offset: 4, Length: 3, RuleID: "EXIGEIX_VERBS_CENTRAL"},
		{Offset: 8, Length: 4, RuleID: "MORFOLOGIK_RULE_CA_ES"},
	}
	tests := []struct {
		name string
		opts func(*Options)
		want []string
	}{
		{"none suppressed", func(*Options) {}, []string{CapitalizationRule, "EXIGEIX_VERBS_CENTRAL", "MORFOLOGIK_RULE_CA_ES"}},
		{"capitalization", func(o *Options) { o.DisableCapitalization = true }, []string{"EXIGEIX_VERBS_CENTRAL", "MORFOLOGIK_RULE_CA_ES"}},
		{"suppressed list", func(o *Options) { o.SuppressedRules = []string{"EXIGEIX_VERBS_CENTRAL"} }, []string{CapitalizationRule, "MORFOLOGIK_RULE_CA_ES"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeChecker{}
			c.setReply(replyWith(matches...))
			opts := DefaultOptions()
			tt.opts(&opts)
			s, _ := newTestScheduler(t, c, opts)

			doc := document.NewFile("file:///tmp/a.txt", "plaintext", "bon dia tots plegats")
			require.NoError(t, s.CheckNow(context.Background(), doc))

			var got []string
			for _, d := range s.Diagnostics(doc.URI()) {
				got = append(got, d.RuleID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUpdateOptions_AppliesToNextCycle(t *testing.T) {
	c := &fakeChecker{}
	c.setReply(replyWith(backend.Match{Offset: 0, Length: 3, RuleID: CapitalizationRule}))
	s, _ := newTestScheduler(t, c, DefaultOptions())

	doc := document.NewFile("file:///tmp/a.txt", "plaintext", "bon dia.")
	require.NoError(t, s.CheckNow(context.Background(), doc))
	require.Len(t, s.Diagnostics(doc.URI()), 1)

	opts := s.Options()
	opts.DisableCapitalization = true
	s.UpdateOptions(opts)

	require.NoError(t, s.CheckNow(context.Background(), doc))
	assert.Empty(t, s.Diagnostics(doc.URI()))
}

func TestShouldCheck(t *testing.T) {
	tests := []struct {
		lang         string
		commentsOnly bool
		want         bool
	}{
		{"plaintext", true, true},
		{"markdown", true, true},
		{"javascript", true, true},
		{"python", true, true},
		{"python", false, true},
		{"rust", true, false},
		{"go", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.lang, func(t *testing.T) {
			opts := DefaultOptions()
			opts.CommentsOnly = tt.commentsOnly
			s, _ := newTestScheduler(t, &fakeChecker{}, opts)
			doc := document.NewFile("file:///tmp/x", tt.lang, "text")
			assert.Equal(t, tt.want, s.ShouldCheck(doc))
		})
	}
}

func TestCheckNow_CommentsOnlyOff(t *testing.T) {
	text := "# Bon dia\nx = 1\n"
	c := &fakeChecker{}
	opts := DefaultOptions()
	opts.CommentsOnly = false
	s, _ := newTestScheduler(t, c, opts)

	doc := document.NewFile("file:///tmp/a.py", "python", text)
	require.NoError(t, s.CheckNow(context.Background(), doc))
	assert.Equal(t, []string{text}, c.calls())
}

func TestCheckNow_NotCheckable(t *testing.T) {
	c := &fakeChecker{}
	s, _ := newTestScheduler(t, c, DefaultOptions())

	doc := document.NewFile("file:///tmp/a.rs", "rust", "// Bon dia\n")
	assert.ErrorIs(t, s.CheckNow(context.Background(), doc), ErrNotCheckable)
	assert.Empty(t, c.calls())
}

func TestSchedule_Debounce(t *testing.T) {
	c := &fakeChecker{}
	opts := DefaultOptions()
	opts.Delay = 30 * time.Millisecond
	s, rec := newTestScheduler(t, c, opts)

	doc := document.NewFile("file:///tmp/a.txt", "plaintext", "u")
	for _, text := range []string{"un", "un t", "un tex", "un text"} {
		doc.SetText(text)
		s.Schedule(doc)
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return len(rec.published(doc.URI())) == 1
	}, 2*time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, []string{"un text"}, c.calls())
	assert.Len(t, rec.published(doc.URI()), 1)
}

func TestSchedule_AutoCheckOff(t *testing.T) {
	c := &fakeChecker{}
	opts := DefaultOptions()
	opts.Delay = 10 * time.Millisecond
	opts.AutoCheck = false
	s, _ := newTestScheduler(t, c, opts)

	s.Schedule(document.NewFile("file:///tmp/a.txt", "plaintext", "Bon dia."))
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, c.calls())
}

func TestSchedule_DeferredCycleRearms(t *testing.T) {
	c := &fakeChecker{blocked: 40 * time.Millisecond}
	opts := DefaultOptions()
	opts.Delay = 10 * time.Millisecond
	s, rec := newTestScheduler(t, c, opts)

	doc := document.NewFile("file:///tmp/a.txt", "plaintext", "Bon dia.")
	s.Schedule(doc)

	require.Eventually(t, func() bool { return rec.statusCount() > 0 }, time.Second, 5*time.Millisecond)
	c.mu.Lock()
	c.blocked = 0
	c.mu.Unlock()

	require.Eventually(t, func() bool {
		return len(rec.published(doc.URI())) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"Bon dia."}, c.calls())
}

func TestNotify_Throttled(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	var notified []error

	c := &fakeChecker{}
	c.setReply(func(context.Context, string) ([]backend.Match, error) {
		return nil, &checker.NetworkError{Mode: checker.ModeHosted, Attempts: 3, Err: errors.New("timeout")}
	})
	s, _ := newTestScheduler(t, c, DefaultOptions(),
		WithClock(func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		}),
		WithNotifier(NotifierFunc(func(_ string, err error) {
			mu.Lock()
			defer mu.Unlock()
			notified = append(notified, err)
		})),
	)

	doc := document.NewFile("file:///tmp/a.txt", "plaintext", "Bon dia.")
	s.fire(doc, 0)
	s.fire(doc, 0)
	mu.Lock()
	assert.Len(t, notified, 1)
	now = now.Add(31 * time.Second)
	mu.Unlock()

	s.fire(doc, 0)
	mu.Lock()
	assert.Len(t, notified, 2)
	mu.Unlock()

	// A different document is throttled on its own.
	s.fire(document.NewFile("file:///tmp/b.txt", "plaintext", "Bon dia."), 0)
	mu.Lock()
	assert.Len(t, notified, 3)
	mu.Unlock()
}

func TestQuickFixesAndApplyFix(t *testing.T) {
	c := &fakeChecker{}
	c.setReply(func(_ context.Context, text string) ([]backend.Match, error) {
		if strings.Contains(text, "pfrase") {
			return []backend.Match{{Offset: 15, Length: 6, RuleID: "MORFOLOGIK_RULE_CA_ES", Replacements: []string{"frase", "fase"}}}, nil
		}
		return []backend.Match{}, nil
	})
	s, rec := newTestScheduler(t, c, DefaultOptions())

	doc := document.NewFile("file:///tmp/a.txt", "plaintext", "Aquesta és una pfrase.")
	require.NoError(t, s.CheckNow(context.Background(), doc))

	fixes := s.QuickFixes(doc.URI(), document.Range{Start: 17, End: 17})
	require.Len(t, fixes, 2)
	assert.Equal(t, `Change to "frase"`, fixes[0].Title)
	assert.Equal(t, `Change to "fase"`, fixes[1].Title)
	assert.Equal(t, document.Range{Start: 15, End: 21}, fixes[0].Range)
	assert.Equal(t, doc.URI()+"-0", fixes[0].DiagnosticID)

	assert.Empty(t, s.QuickFixes(doc.URI(), document.Range{Start: 0, End: 3}))

	require.NoError(t, s.ApplyFix(context.Background(), doc, doc.URI(), fixes[0].Range, fixes[0].Replacement))
	assert.Equal(t, "Aquesta és una frase.", doc.Text())
	assert.Empty(t, s.Diagnostics(doc.URI()))

	published := rec.published(doc.URI())
	require.Len(t, published, 2)
	assert.Empty(t, published[1])
}

func TestApplyFix_EditorError(t *testing.T) {
	c := &fakeChecker{}
	c.setReply(replyWith(backend.Match{Offset: 0, Length: 3, Replacements: []string{"Bon"}}))
	s, _ := newTestScheduler(t, c, DefaultOptions())

	doc := document.NewFile("file:///tmp/a.txt", "plaintext", "bon dia.")
	require.NoError(t, s.CheckNow(context.Background(), doc))

	other := document.NewFile("file:///tmp/b.txt", "plaintext", "")
	err := s.ApplyFix(context.Background(), other, doc.URI(), document.Range{Start: 0, End: 3}, "Bon")
	require.ErrorIs(t, err, document.ErrUnknownDocument)
	assert.Len(t, s.Diagnostics(doc.URI()), 1)
}

func TestRemoveDiagnostic(t *testing.T) {
	c := &fakeChecker{}
	c.setReply(replyWith(
		backend.Match{Offset: 0, Length: 3, RuleID: "A"},
		backend.Match{Offset: 4, Length: 3, RuleID: "B"},
	))
	s, rec := newTestScheduler(t, c, DefaultOptions())

	doc := document.NewFile("file:///tmp/a.txt", "plaintext", "bon dia.")
	require.NoError(t, s.CheckNow(context.Background(), doc))

	assert.False(t, s.RemoveDiagnostic(doc.URI(), document.Range{Start: 1, End: 3}))
	assert.True(t, s.RemoveDiagnostic(doc.URI(), document.Range{Start: 0, End: 3}))

	got := s.Diagnostics(doc.URI())
	require.Len(t, got, 1)
	assert.Equal(t, "B", got[0].RuleID)
	assert.Len(t, rec.published(doc.URI()), 2)
	assert.False(t, s.RemoveDiagnostic("file:///tmp/none.txt", document.Range{Start: 0, End: 3}))
}

func TestClear(t *testing.T) {
	c := &fakeChecker{}
	c.setReply(replyWith(backend.Match{Offset: 0, Length: 3}))
	s, rec := newTestScheduler(t, c, DefaultOptions())

	a := document.NewFile("file:///tmp/a.txt", "plaintext", "bon dia.")
	b := document.NewFile("file:///tmp/b.txt", "plaintext", "bon dia.")
	require.NoError(t, s.CheckNow(context.Background(), a))
	require.NoError(t, s.CheckNow(context.Background(), b))

	s.Clear(a.URI())
	assert.Empty(t, s.Diagnostics(a.URI()))
	assert.Len(t, s.Diagnostics(b.URI()), 1)
	published := rec.published(a.URI())
	assert.Empty(t, published[len(published)-1])

	s.ClearAll()
	assert.Empty(t, s.Diagnostics(b.URI()))
}

func TestSubscribeForwardsStatus(t *testing.T) {
	c := &fakeChecker{}
	_, rec := newTestScheduler(t, c, DefaultOptions())

	c.mu.Lock()
	subs := append([]func(connstate.Status){}, c.subs...)
	c.mu.Unlock()
	require.Len(t, subs, 1)

	subs[0](connstate.Status{Online: false, ConsecutiveErrors: 2})
	assert.Equal(t, 1, rec.statusCount())
}

func TestClose(t *testing.T) {
	c := &fakeChecker{}
	opts := DefaultOptions()
	opts.Delay = 20 * time.Millisecond
	rec := newRecorder()
	s := New(c, rec, opts)

	doc := document.NewFile("file:///tmp/a.txt", "plaintext", "Bon dia.")
	s.Schedule(doc)
	s.Close()
	s.Close()

	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, c.calls())
	assert.ErrorIs(t, s.CheckNow(context.Background(), doc), ErrClosed)

	c.mu.Lock()
	assert.Empty(t, c.subs)
	c.mu.Unlock()
}

func TestSeverityFor(t *testing.T) {
	assert.Equal(t, SeverityError, SeverityFor(backend.CategoryMisspelling))
	assert.Equal(t, SeverityWarning, SeverityFor(backend.CategoryTypographical))
	assert.Equal(t, SeverityWarning, SeverityFor(backend.CategoryGrammar))
	assert.Equal(t, SeverityInformation, SeverityFor(backend.CategoryStyle))
	assert.Equal(t, SeverityWarning, SeverityFor(backend.CategoryOther))
	assert.Equal(t, "error", SeverityError.String())
}
