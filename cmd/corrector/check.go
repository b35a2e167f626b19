package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dshills/corrector/internal/document"
	"github.com/dshills/corrector/internal/scheduler"
)

var checkCmd = &cobra.Command{
	Use:   "check FILE...",
	Short: "Check files once and print the issues found",
	Long: `Check each file and print one line per issue.

Prose files (plain text, Markdown, LaTeX) are checked in full. For source
files only comments are checked unless check.commentsOnly is false. The
command exits with status 1 when any issue is found.

Example:
  $ corrector check README.md main.go
  README.md:3:15: error: Possible spelling mistake found. [MORFOLOGIK_RULE_CA_ES]
      pfrase → "frase"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().Bool("fix", false, "Apply the first suggestion of every issue and rewrite the file")
	checkCmd.Flags().Bool("all", false, "Check whole source files, not only comments")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	fix, _ := cmd.Flags().GetBool("fix")
	all, _ := cmd.Flags().GetBool("all")

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	opts := s.settings.SchedulerOptions()
	if all {
		opts.CommentsOnly = false
	}
	out := newPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), false)
	sched := scheduler.New(s.client, out, opts,
		scheduler.WithLogger(s.log.Logger),
		scheduler.WithNotifier(out))
	defer sched.Close()

	ctx := cmd.Context()
	issues := 0
	var failed error
	for _, path := range args {
		n, err := checkFile(ctx, sched, out, path, fix)
		issues += n
		switch {
		case errors.Is(err, scheduler.ErrNotCheckable):
			gray := color.New(color.FgHiBlack).SprintFunc()
			fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", gray(path+": skipped, language not checked"))
		case err != nil:
			failed = errors.Join(failed, fmt.Errorf("%s: %w", path, err))
		}
	}

	if failed != nil {
		return failed
	}
	if issues > 0 {
		return errIssuesFound
	}
	return nil
}

// checkFile checks one file and returns the number of issues left.
func checkFile(ctx context.Context, sched *scheduler.Scheduler, out *printer, path string, fix bool) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, err
	}
	doc := document.NewFile(document.FilePathToURI(abs), document.DetectLanguageID(path), string(data))

	if err := sched.CheckNow(ctx, doc); err != nil {
		return 0, err
	}
	diags := sched.Diagnostics(doc.URI())

	if fix && len(diags) > 0 {
		fixed, err := applyFixes(ctx, sched, doc, diags)
		if err != nil {
			return 0, err
		}
		if fixed > 0 {
			info, err := os.Stat(path)
			if err != nil {
				return 0, err
			}
			if err := os.WriteFile(path, []byte(doc.Text()), info.Mode().Perm()); err != nil {
				return 0, err
			}
			green := color.New(color.FgGreen).SprintFunc()
			fmt.Fprintf(out.out, "%s %s: %d fix(es) applied\n", green("✓"), path, fixed)
		}
		diags = sched.Diagnostics(doc.URI())
	}

	out.write(path, diags)
	return len(diags), nil
}

// applyFixes applies the first replacement of each diagnostic, last first
// so earlier ranges stay valid. Diagnostics overlapping an applied fix are
// left alone.
func applyFixes(ctx context.Context, sched *scheduler.Scheduler, doc *document.File, diags []scheduler.AnnotatedError) (int, error) {
	fixed := 0
	floor := -1
	for i := len(diags) - 1; i >= 0; i-- {
		d := diags[i]
		if len(d.Replacements) == 0 {
			continue
		}
		if floor >= 0 && d.Range.End > floor {
			continue
		}
		if err := sched.ApplyFix(ctx, doc, doc.URI(), d.Range, d.Replacements[0]); err != nil {
			return fixed, err
		}
		floor = d.Range.Start
		fixed++
	}
	return fixed, nil
}
