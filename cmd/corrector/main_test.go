package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/tidwall/gjson"

	"github.com/dshills/corrector/internal/backend"
	"github.com/dshills/corrector/internal/checker"
	"github.com/dshills/corrector/internal/config"
	"github.com/dshills/corrector/internal/connstate"
	"github.com/dshills/corrector/internal/document"
	"github.com/dshills/corrector/internal/scheduler"
)

func init() {
	color.NoColor = true
}

// wordChecker flags every occurrence of word.
type wordChecker struct {
	word, fix string
}

func (c wordChecker) Check(_ context.Context, text string) ([]backend.Match, error) {
	var out []backend.Match
	for i := 0; ; {
		j := strings.Index(text[i:], c.word)
		if j < 0 {
			return out, nil
		}
		out = append(out, backend.Match{
			Offset:       i + j,
			Length:       len(c.word),
			Message:      "Possible spelling mistake found.",
			RuleID:       "MORFOLOGIK_RULE_CA_ES",
			Category:     backend.CategoryMisspelling,
			Replacements: []string{c.fix},
		})
		i += j + len(c.word)
	}
}

func (wordChecker) Status() connstate.Status                { return connstate.Status{Online: true} }
func (wordChecker) Subscribe(func(connstate.Status)) func() { return func() {} }
func (wordChecker) Blocked() (time.Duration, bool)          { return 0, false }

func newTestScheduler(t *testing.T, out *printer) *scheduler.Scheduler {
	t.Helper()
	s := scheduler.New(wordChecker{word: "pfrase", fix: "frase"}, out, scheduler.DefaultOptions())
	t.Cleanup(s.Close)
	return s
}

func TestCheckFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("Hola pfrase i pfrase.\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	out := newPrinter(&stdout, &stderr, false)
	sched := newTestScheduler(t, out)

	n, err := checkFile(context.Background(), sched, out, path, false)
	if err != nil {
		t.Fatalf("checkFile: %v", err)
	}
	if n != 2 {
		t.Errorf("issues = %d, want 2", n)
	}
	got := stdout.String()
	if !strings.Contains(got, path+":1:6: error: Possible spelling mistake found. [MORFOLOGIK_RULE_CA_ES]") {
		t.Errorf("first issue missing from output:\n%s", got)
	}
	if !strings.Contains(got, path+":1:15:") {
		t.Errorf("second issue missing from output:\n%s", got)
	}
	if !strings.Contains(got, `pfrase → "frase"`) {
		t.Errorf("suggestion missing from output:\n%s", got)
	}
}

func TestCheckFile_Fix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.md")
	if err := os.WriteFile(path, []byte("Hola pfrase i pfrase.\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var stdout bytes.Buffer
	out := newPrinter(&stdout, &bytes.Buffer{}, false)
	sched := newTestScheduler(t, out)

	n, err := checkFile(context.Background(), sched, out, path, true)
	if err != nil {
		t.Fatalf("checkFile: %v", err)
	}
	if n != 0 {
		t.Errorf("issues left = %d, want 0", n)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "Hola frase i frase.\n" {
		t.Errorf("fixed file = %q", data)
	}
	info, _ := os.Stat(path)
	if info.Mode().Perm() != 0o600 {
		t.Errorf("file mode changed to %v", info.Mode().Perm())
	}
	if !strings.Contains(stdout.String(), "2 fix(es) applied") {
		t.Errorf("output = %q", stdout.String())
	}
}

func TestCheckFile_NotCheckable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "query.sql")
	if err := os.WriteFile(path, []byte("-- pfrase\nSELECT 1;\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := newPrinter(&bytes.Buffer{}, &bytes.Buffer{}, false)
	sched := newTestScheduler(t, out)

	if _, err := checkFile(context.Background(), sched, out, path, false); !errors.Is(err, scheduler.ErrNotCheckable) {
		t.Errorf("checkFile = %v, want ErrNotCheckable", err)
	}
}

func TestApplyFixes_SkipsOverlaps(t *testing.T) {
	doc := document.NewFile("file:///x.txt", "plaintext", "abcdef")
	out := newPrinter(&bytes.Buffer{}, &bytes.Buffer{}, false)
	sched := newTestScheduler(t, out)

	diags := []scheduler.AnnotatedError{
		{Range: document.Range{Start: 0, End: 3}, Replacements: []string{"X"}},
		{Range: document.Range{Start: 2, End: 4}, Replacements: []string{"Y"}},
		{Range: document.Range{Start: 4, End: 6}},
	}
	fixed, err := applyFixes(context.Background(), sched, doc, diags)
	if err != nil {
		t.Fatal(err)
	}
	if fixed != 1 {
		t.Errorf("fixed = %d, want 1", fixed)
	}
	if doc.Text() != "abYef" {
		t.Errorf("text = %q, want abYef", doc.Text())
	}
}

func TestPrinter_Live(t *testing.T) {
	var stdout, stderr bytes.Buffer
	p := newPrinter(&stdout, &stderr, true)

	p.PublishDiagnostics("file:///tmp/a.txt", nil)
	if !strings.Contains(stdout.String(), "no issues") {
		t.Errorf("stdout = %q", stdout.String())
	}

	p.PublishConnectionStatus(connstate.Status{Online: true, State: connstate.Healthy})
	if stderr.Len() != 0 {
		t.Errorf("initial healthy status should be silent, got %q", stderr.String())
	}
	p.PublishConnectionStatus(connstate.Status{State: connstate.Degraded, ConsecutiveErrors: 1, NextRetryIn: 1500 * time.Millisecond, HasNextRetry: true})
	p.PublishConnectionStatus(connstate.Status{State: connstate.Degraded, ConsecutiveErrors: 1})
	if got := strings.Count(stderr.String(), "degraded"); got != 1 {
		t.Errorf("degraded printed %d times:\n%s", got, stderr.String())
	}
	if !strings.Contains(stderr.String(), "retrying in 2s") {
		t.Errorf("stderr = %q", stderr.String())
	}

	p.Notify("file:///tmp/a.txt", &checker.NetworkError{Mode: checker.ModeHosted, Attempts: 3, Err: errors.New("boom")})
	if !strings.Contains(stderr.String(), "Could not reach the hosted grammar API") {
		t.Errorf("remediation missing: %q", stderr.String())
	}
}

func TestStatusJSON(t *testing.T) {
	cfg := config.New(config.WithEnvPrefix(""), config.WithFile(filepath.Join(t.TempDir(), "none.toml")))
	cfg.Set("network.maxRetries", "many")
	settings := cfg.Settings()

	out, err := statusJSON(cfg, settings, "hosted", nil, errors.New("connection refused"))
	if err != nil {
		t.Fatal(err)
	}
	if !gjson.Valid(out) {
		t.Fatalf("invalid JSON: %s", out)
	}
	if got := gjson.Get(out, "mode").String(); got != "hosted" {
		t.Errorf("mode = %q", got)
	}
	if !gjson.Get(out, "backends.hosted.reachable").Bool() {
		t.Error("hosted should be reachable")
	}
	if gjson.Get(out, "backends.local.reachable").Bool() {
		t.Error("local should not be reachable")
	}
	if got := gjson.Get(out, "backends.local.error").String(); got != "connection refused" {
		t.Errorf("local error = %q", got)
	}
	if got := gjson.Get(out, "config.layers.0").String(); got != config.LayerDefaults {
		t.Errorf("first layer = %q", got)
	}
	if !gjson.Get(out, `configErrors.network\.maxRetries`).Exists() {
		t.Errorf("config error missing: %s", out)
	}
}

func TestPIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", pidFileName)
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	pid, err := readPIDFile(path)
	if err != nil {
		t.Fatalf("readPIDFile: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("pid = %d, want %d", pid, os.Getpid())
	}

	if err := os.WriteFile(path, []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := readPIDFile(path); err == nil {
		t.Error("expected error for garbage pid file")
	}
	if _, err := readPIDFile(filepath.Join(t.TempDir(), "missing")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v", err)
	}
}

func TestApplyMode(t *testing.T) {
	opts := checker.DefaultOptions()
	opts.Mode = checker.ModeHosted
	c, err := checker.New(opts, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	// The client moved to local at runtime; the file still says hosted.
	c.SetMode(checker.ModeLocal)

	if applyMode(c, "hosted", "softcatala") {
		t.Error("equivalent mode names should not switch")
	}
	if applyMode(c, "hosted", "hosted") {
		t.Error("unchanged mode should not switch")
	}
	if got := c.Mode(); got != checker.ModeLocal {
		t.Errorf("mode after reload = %v, want local", got)
	}

	if applyMode(c, "hosted", "bogus") {
		t.Error("invalid mode should be ignored")
	}
	if !applyMode(c, "local", "hosted") {
		t.Error("changed mode should switch")
	}
	if got := c.Mode(); got != checker.ModeHosted {
		t.Errorf("mode = %v, want hosted", got)
	}
}
