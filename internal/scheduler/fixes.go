package scheduler

import (
	"context"
	"fmt"

	"github.com/dshills/corrector/internal/document"
)

// QuickFix replaces a flagged range with one suggestion.
type QuickFix struct {
	Title       string
	Range       document.Range
	Replacement string

	// DiagnosticID is the ID of the diagnostic the fix resolves.
	DiagnosticID string
}

// QuickFixes returns one fix per replacement of every diagnostic touching
// rng. An empty rng selects diagnostics containing its position.
func (s *Scheduler) QuickFixes(uri string, rng document.Range) []QuickFix {
	var fixes []QuickFix
	for _, d := range s.Diagnostics(uri) {
		if !touches(d.Range, rng) {
			continue
		}
		for _, r := range d.Replacements {
			fixes = append(fixes, QuickFix{
				Title:        fmt.Sprintf("Change to %q", r),
				Range:        d.Range,
				Replacement:  r,
				DiagnosticID: d.ID,
			})
		}
	}
	return fixes
}

func touches(d, rng document.Range) bool {
	if d == rng || d.Overlaps(rng) {
		return true
	}
	return rng.Len() == 0 && (d.Contains(rng.Start) || d.End == rng.Start)
}

// ApplyFix writes replacement over rng through editor and drops the
// diagnostic at rng.
func (s *Scheduler) ApplyFix(ctx context.Context, editor document.Editor, uri string, rng document.Range, replacement string) error {
	if err := editor.ApplyEdit(ctx, uri, rng, replacement); err != nil {
		return fmt.Errorf("apply fix: %w", err)
	}
	s.RemoveDiagnostic(uri, rng)
	return nil
}
