package scheduler

import (
	"fmt"
	"sort"

	"github.com/dshills/corrector/internal/backend"
	"github.com/dshills/corrector/internal/document"
	"github.com/dshills/corrector/internal/extract"
)

// CapitalizationRule is the rule suppressed by DisableCapitalization.
const CapitalizationRule = "UPPERCASE_SENTENCE_START"

// Severity is the importance of a diagnostic. Values follow LSP numbering.
type Severity int

const (
	SeverityError       Severity = 1
	SeverityWarning     Severity = 2
	SeverityInformation Severity = 3
	SeverityHint        Severity = 4
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInformation:
		return "info"
	case SeverityHint:
		return "hint"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// SeverityFor maps an issue category to a severity.
func SeverityFor(c backend.IssueCategory) Severity {
	switch c {
	case backend.CategoryMisspelling:
		return SeverityError
	case backend.CategoryStyle:
		return SeverityInformation
	default:
		return SeverityWarning
	}
}

// CheckRequest is one span of a cycle on its way to the checker.
type CheckRequest struct {
	Text       string
	SpanOffset int
	Version    int64
}

// AnnotatedError is a match placed in document coordinates.
type AnnotatedError struct {
	// ID is "<uri>-<ordinal>". It is not stable across cycles.
	ID string

	// Range is in UTF-16 code units of the whole document.
	Range document.Range
	Start document.Position
	End   document.Position

	Message      string
	RuleID       string
	Category     backend.IssueCategory
	Replacements []string
	Severity     Severity

	// Text is the flagged document text.
	Text string
}

// remap places m, reported against span.Text, into document coordinates.
// It reports false when the match falls outside the span.
func remap(idx *document.OffsetIndex, span extract.Span, m backend.Match) (document.Range, bool) {
	if m.Offset < 0 || m.Length <= 0 || m.End() > document.UTF16Len(span.Text) {
		return document.Range{}, false
	}

	start := span.DocumentOffset(document.UTF16ToByte(span.Text, m.Offset))
	end := span.DocumentOffset(document.UTF16ToByte(span.Text, m.End()))
	rng := document.Range{Start: idx.ToUTF16(start), End: idx.ToUTF16(end)}
	if rng.Len() == 0 {
		return document.Range{}, false
	}
	return rng, true
}

// annotate builds the diagnostic for a remapped match. The ID is assigned
// once the full set is sorted.
func annotate(idx *document.OffsetIndex, rng document.Range, m backend.Match) AnnotatedError {
	return AnnotatedError{
		Range:        rng,
		Start:        idx.Position(rng.Start),
		End:          idx.Position(rng.End),
		Message:      m.Message,
		RuleID:       m.RuleID,
		Category:     m.Category,
		Replacements: m.Replacements,
		Severity:     SeverityFor(m.Category),
		Text:         idx.Slice(rng),
	}
}

// finalize orders diagnostics by position and numbers them.
func finalize(uri string, diags []AnnotatedError) []AnnotatedError {
	sort.SliceStable(diags, func(i, j int) bool {
		if diags[i].Range.Start != diags[j].Range.Start {
			return diags[i].Range.Start < diags[j].Range.Start
		}
		return diags[i].Range.End < diags[j].Range.End
	})
	for i := range diags {
		diags[i].ID = fmt.Sprintf("%s-%d", uri, i)
	}
	return diags
}

// ruleFilter reports whether a rule is suppressed.
type ruleFilter map[string]bool

func newRuleFilter(opts Options) ruleFilter {
	f := make(ruleFilter, len(opts.SuppressedRules)+1)
	for _, id := range opts.SuppressedRules {
		f[id] = true
	}
	if opts.DisableCapitalization {
		f[CapitalizationRule] = true
	}
	return f
}

func (f ruleFilter) suppressed(ruleID string) bool {
	return f[ruleID]
}
