package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dshills/corrector/internal/backend"
	"github.com/dshills/corrector/internal/checker"
	"github.com/dshills/corrector/internal/config"
	"github.com/dshills/corrector/internal/document"
	"github.com/dshills/corrector/internal/metrics"
	"github.com/dshills/corrector/internal/scheduler"
	"github.com/dshills/corrector/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch FILE...",
	Short: "Re-check files every time they are saved",
	Long: `Watch the given files and re-check each one after it changes. Checks
are debounced by check.delay. Configuration file changes are applied
without restarting. Press Ctrl-C to stop.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	logger := s.log.Logger

	out := newPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), true)
	sched := scheduler.New(s.client, out, s.settings.SchedulerOptions(),
		scheduler.WithLogger(logger),
		scheduler.WithNotifier(out))
	defer sched.Close()

	w, err := watch.New(watch.WithLogger(logger))
	if err != nil {
		return err
	}
	defer w.Close()

	docs := make(map[string]*document.File)
	for _, path := range args {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(abs)
		if err != nil {
			return err
		}
		doc := document.NewFile(document.FilePathToURI(abs), document.DetectLanguageID(abs), string(data))
		if !sched.ShouldCheck(doc) {
			gray := color.New(color.FgHiBlack).SprintFunc()
			fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", gray(path+": skipped, language not checked"))
			continue
		}
		if err := w.Add(abs); err != nil {
			return err
		}
		docs[abs] = doc
		sched.Schedule(doc)
	}
	if len(docs) == 0 {
		return errors.New("no checkable files")
	}

	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "addr", metricsAddr, "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("serving metrics", "addr", metricsAddr)
	}

	go func() {
		err := s.cfg.Watch(ctx, func(settings config.Settings, err error) {
			if err != nil {
				logger.Warn("config reload rejected", "error", err)
				return
			}
			applySettings(s, sched, settings)
		})
		if err != nil {
			logger.Warn("config watch disabled", "path", s.cfg.Path(), "error", err)
		}
	}()

	cyan := color.New(color.FgCyan).SprintFunc()
	fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", cyan(fmt.Sprintf("Watching %d file(s). Press Ctrl-C to stop.", len(docs))))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			doc := docs[ev.Path]
			if doc == nil {
				continue
			}
			if ev.Op.Has(watch.OpRemove) || ev.Op.Has(watch.OpRename) {
				if _, err := os.Stat(ev.Path); err != nil {
					logger.Info("watched file removed", "path", ev.Path)
					sched.Clear(doc.URI())
					continue
				}
			}
			data, err := os.ReadFile(ev.Path)
			if err != nil {
				logger.Warn("read failed", "path", ev.Path, "error", err)
				continue
			}
			doc.SetText(string(data))
			sched.Schedule(doc)
		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)
		}
	}
}

// applySettings pushes reloaded settings into the running components.
// Service URLs and engine options take effect on the next start.
func applySettings(s *session, sched *scheduler.Scheduler, settings config.Settings) {
	sched.UpdateOptions(settings.SchedulerOptions())

	applyMode(s.client, s.settings.Server.Mode, settings.Server.Mode)
	if vf, err := backend.ParseVerbForms(settings.Check.VerbForms); err == nil {
		if err := s.client.UpdateLanguage(settings.Check.Language, vf); err != nil {
			s.log.Warn("language not applied", "error", err)
		}
	}
	s.settings = settings
	s.log.Info("configuration reloaded")
}

// applyMode switches the client only when the configured mode changed, so
// reloading an unrelated setting keeps an automatic failover in place.
func applyMode(c *checker.Client, prev, next string) bool {
	mode, err := checker.ParseMode(next)
	if err != nil {
		return false
	}
	if old, err := checker.ParseMode(prev); err == nil && old == mode {
		return false
	}
	c.SetMode(mode)
	return true
}
