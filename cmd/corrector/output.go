package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/dshills/corrector/internal/checker"
	"github.com/dshills/corrector/internal/connstate"
	"github.com/dshills/corrector/internal/document"
	"github.com/dshills/corrector/internal/scheduler"
)

// maxSuggestions bounds the replacements shown per diagnostic.
const maxSuggestions = 3

// printer writes diagnostics and connection changes to a terminal. In live
// mode every published set is printed; otherwise callers print explicitly.
type printer struct {
	mu   sync.Mutex
	out  io.Writer
	errw io.Writer
	live bool
	last *connstate.Status
}

func newPrinter(out, errw io.Writer, live bool) *printer {
	return &printer{out: out, errw: errw, live: live}
}

// PublishDiagnostics implements scheduler.Publisher.
func (p *printer) PublishDiagnostics(uri string, diags []scheduler.AnnotatedError) {
	if !p.live {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	path := document.URIToFilePath(uri)
	if len(diags) == 0 {
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Fprintf(p.out, "%s %s: no issues\n", green("✓"), path)
		return
	}
	p.writeLocked(path, diags)
}

// PublishConnectionStatus implements scheduler.Publisher. Only changes of
// state are printed.
func (p *printer) PublishConnectionStatus(st connstate.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.last != nil && p.last.State == st.State && p.last.Online == st.Online {
		return
	}
	first := p.last == nil
	p.last = &st
	if first && st.State == connstate.Healthy {
		return
	}
	fmt.Fprintln(p.errw, formatStatus(st))
}

// Notify implements scheduler.Notifier.
func (p *printer) Notify(uri string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	yellow := color.New(color.FgYellow).SprintFunc()
	msg := checker.Remediation(err)
	if msg == "" {
		msg = err.Error()
	}
	fmt.Fprintf(p.errw, "%s %s: %s\n", yellow("⚠"), document.URIToFilePath(uri), msg)
}

// write prints diags for path.
func (p *printer) write(path string, diags []scheduler.AnnotatedError) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeLocked(path, diags)
}

func (p *printer) writeLocked(path string, diags []scheduler.AnnotatedError) {
	for _, d := range diags {
		fmt.Fprintln(p.out, formatDiagnostic(path, d))
	}
}

func formatDiagnostic(path string, d scheduler.AnnotatedError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:%d:%d: %s: %s",
		path, d.Start.Line+1, d.Start.Character+1, severityColor(d.Severity)(d.Severity.String()), d.Message)

	gray := color.New(color.FgHiBlack).SprintFunc()
	fmt.Fprintf(&b, " %s", gray("["+d.RuleID+"]"))

	if len(d.Replacements) > 0 {
		shown := d.Replacements
		if len(shown) > maxSuggestions {
			shown = shown[:maxSuggestions]
		}
		quoted := make([]string, len(shown))
		for i, r := range shown {
			quoted[i] = fmt.Sprintf("%q", r)
		}
		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Fprintf(&b, "\n    %s %s", d.Text, cyan("→ "+strings.Join(quoted, ", ")))
	}
	return b.String()
}

func severityColor(s scheduler.Severity) func(a ...any) string {
	switch s {
	case scheduler.SeverityError:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case scheduler.SeverityWarning:
		return color.New(color.FgYellow).SprintFunc()
	default:
		return color.New(color.FgBlue).SprintFunc()
	}
}

func formatStatus(st connstate.Status) string {
	switch st.State {
	case connstate.Healthy:
		return color.New(color.FgGreen).Sprint("● connected")
	case connstate.Degraded:
		s := fmt.Sprintf("◐ degraded (%d consecutive errors)", st.ConsecutiveErrors)
		if secs, ok := st.NextRetryInSeconds(); ok {
			s += fmt.Sprintf(", retrying in %ds", secs)
		}
		return color.New(color.FgYellow).Sprint(s)
	default:
		s := fmt.Sprintf("○ unavailable (%d consecutive errors)", st.ConsecutiveErrors)
		if secs, ok := st.NextRetryInSeconds(); ok {
			s += fmt.Sprintf(", retrying in %ds", secs)
		}
		return color.New(color.FgRed).Sprint(s)
	}
}
