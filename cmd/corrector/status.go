package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tidwall/sjson"

	"github.com/dshills/corrector/internal/backend"
	"github.com/dshills/corrector/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the effective configuration and backend reachability",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().Bool("json", false, "Print machine-readable JSON")
	rootCmd.AddCommand(statusCmd)
}

// probe reports whether baseURL answers a health probe.
func probe(ctx context.Context, baseURL string) error {
	c := backend.NewClient(backend.WithProbeTimeout(backend.DefaultProbeTimeout))
	return c.Probe(ctx, baseURL)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	hostedErr := probe(ctx, s.settings.Server.HostedURL)
	localErr := probe(ctx, s.settings.Server.LocalURL)
	mode := s.client.Mode()

	if asJSON {
		out, err := statusJSON(s.cfg, s.settings, mode.String(), hostedErr, localErr)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "\n%s\n\n", cyan("=== Corrector Status ==="))
	fmt.Fprintf(w, "Config:    %s\n", s.cfg.Path())
	fmt.Fprintf(w, "Layers:    %v\n", s.cfg.Layers())
	fmt.Fprintf(w, "Mode:      %s\n", mode)
	lang := s.settings.Check.Language
	if s.settings.Check.VerbForms != "" {
		lang += " (" + s.settings.Check.VerbForms + ")"
	}
	fmt.Fprintf(w, "Language:  %s\n", lang)
	fmt.Fprintf(w, "Hosted:    %s %s\n", reachability(hostedErr), s.settings.Server.HostedURL)
	fmt.Fprintf(w, "Local:     %s %s\n", reachability(localErr), s.settings.Server.LocalURL)
	for path, err := range s.cfg.ConfigErrors() {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Fprintf(w, "%s %s: %v\n", yellow("⚠"), path, err)
	}
	fmt.Fprintln(w)
	return nil
}

func reachability(err error) string {
	if err == nil {
		return color.New(color.FgGreen).Sprint("●")
	}
	return color.New(color.FgRed).Sprint("○")
}

// statusJSON renders the status report.
func statusJSON(cfg *config.Config, settings config.Settings, mode string, hostedErr, localErr error) (string, error) {
	fields := []struct {
		path  string
		value any
	}{
		{"config.path", cfg.Path()},
		{"config.layers", cfg.Layers()},
		{"mode", mode},
		{"language", settings.Check.Language},
		{"verbForms", settings.Check.VerbForms},
		{"commentsOnly", settings.Check.CommentsOnly},
		{"backends.hosted.url", settings.Server.HostedURL},
		{"backends.hosted.reachable", hostedErr == nil},
		{"backends.local.url", settings.Server.LocalURL},
		{"backends.local.reachable", localErr == nil},
	}

	out := "{}"
	var err error
	for _, f := range fields {
		if out, err = sjson.Set(out, f.path, f.value); err != nil {
			return "", err
		}
	}
	if hostedErr != nil {
		if out, err = sjson.Set(out, "backends.hosted.error", hostedErr.Error()); err != nil {
			return "", err
		}
	}
	if localErr != nil {
		if out, err = sjson.Set(out, "backends.local.error", localErr.Error()); err != nil {
			return "", err
		}
	}
	for path, cerr := range cfg.ConfigErrors() {
		if out, err = sjson.Set(out, "configErrors."+sjsonEscape(path), cerr.Error()); err != nil {
			return "", err
		}
	}
	return out, nil
}

// sjsonEscape escapes the path separators in a dotted config key.
func sjsonEscape(key string) string {
	var b []byte
	for i := 0; i < len(key); i++ {
		switch key[i] {
		case '.', '*', '?':
			b = append(b, '\\')
		}
		b = append(b, key[i])
	}
	return string(b)
}
