package config

import (
	"errors"
	"net/url"
	"time"

	"github.com/dshills/corrector/internal/backend"
	"github.com/dshills/corrector/internal/checker"
	"github.com/dshills/corrector/internal/connstate"
	"github.com/dshills/corrector/internal/engine"
	"github.com/dshills/corrector/internal/logging"
	"github.com/dshills/corrector/internal/scheduler"
)

// Validate reports every unacceptable setting. The result matches
// ErrValidationFailed.
func (s Settings) Validate() error {
	var errs []error
	fail := func(path, msg string, v any) {
		errs = append(errs, &ValidationError{Path: path, Message: msg, Value: v})
	}

	if _, err := checker.ParseMode(s.Server.Mode); err != nil {
		fail("server.mode", "must be hosted, softcatala or local", s.Server.Mode)
	}
	for path, u := range map[string]string{"server.hostedUrl": s.Server.HostedURL, "server.localUrl": s.Server.LocalURL} {
		if parsed, err := url.Parse(u); err != nil || parsed.Scheme == "" || parsed.Host == "" {
			fail(path, "must be an absolute URL", u)
		}
	}
	if s.Server.Port < 0 || s.Server.Port > 65535 {
		fail("server.port", "must be between 0 and 65535", s.Server.Port)
	}

	if err := backend.ValidateLanguage(s.Check.Language); err != nil {
		fail("check.language", "must be a BCP 47 language tag or auto", s.Check.Language)
	}
	if _, err := backend.ParseVerbForms(s.Check.VerbForms); err != nil {
		fail("check.verbForms", "must be empty, central, valencia or balear", s.Check.VerbForms)
	}

	positive := []struct {
		path string
		d    time.Duration
	}{
		{"server.startTimeout", s.Server.StartTimeout},
		{"check.delay", s.Check.Delay},
		{"network.timeout", s.Network.Timeout},
		{"network.retryBase", s.Network.RetryBase},
		{"network.cacheTtl", s.Network.CacheTTL},
		{"network.backoffBase", s.Network.BackoffBase},
		{"network.backoffCap", s.Network.BackoffCap},
	}
	for _, p := range positive {
		if p.d <= 0 {
			fail(p.path, "must be a positive duration", p.d)
		}
	}
	if s.Network.BackoffCap > 0 && s.Network.BackoffCap < s.Network.BackoffBase {
		fail("network.backoffCap", "must not be below network.backoffBase", s.Network.BackoffCap)
	}
	if s.Network.NotifyCooldown < 0 {
		fail("network.notifyCooldown", "must not be negative", s.Network.NotifyCooldown)
	}
	if s.Network.MaxRetries < 1 {
		fail("network.maxRetries", "must be at least 1", s.Network.MaxRetries)
	}
	if s.Network.FailoverThreshold < 1 {
		fail("network.failoverThreshold", "must be at least 1", s.Network.FailoverThreshold)
	}

	if _, err := logging.ParseLevel(s.Logging.Level); err != nil {
		fail("logging.level", "must be debug, info, warn or error", s.Logging.Level)
	}
	if s.Logging.Format != "text" && s.Logging.Format != "json" {
		fail("logging.format", "must be text or json", s.Logging.Format)
	}

	return errors.Join(errs...)
}

// CheckerOptions builds the check client options.
func (s Settings) CheckerOptions() (checker.Options, error) {
	mode, err := checker.ParseMode(s.Server.Mode)
	if err != nil {
		return checker.Options{}, err
	}
	vf, err := backend.ParseVerbForms(s.Check.VerbForms)
	if err != nil {
		return checker.Options{}, err
	}
	return checker.Options{
		Mode:       mode,
		HostedURL:  s.Server.HostedURL,
		LocalURL:   s.Server.LocalURL,
		Language:   s.Check.Language,
		VerbForms:  vf,
		MaxRetries: s.Network.MaxRetries,
		RetryBase:  s.Network.RetryBase,
		Timeout:    s.Network.Timeout,
		CacheTTL:   s.Network.CacheTTL,
		Tracker: connstate.Config{
			Threshold:   s.Network.FailoverThreshold,
			BackoffBase: s.Network.BackoffBase,
			BackoffCap:  s.Network.BackoffCap,
		},
	}, nil
}

// SchedulerOptions builds the scheduler options.
func (s Settings) SchedulerOptions() scheduler.Options {
	return scheduler.Options{
		Delay:                 s.Check.Delay,
		AutoCheck:             s.Check.AutoCheck,
		CommentsOnly:          s.Check.CommentsOnly,
		EnabledLanguages:      s.Check.EnabledLanguages,
		CodeLanguages:         s.Check.CodeLanguages,
		SuppressedRules:       s.Check.SuppressedRules,
		DisableCapitalization: s.Check.DisableCapitalization,
		NotifyCooldown:        s.Network.NotifyCooldown,
	}
}

// EngineOptions builds the local engine supervisor options.
func (s Settings) EngineOptions() engine.Options {
	opts := engine.DefaultOptions()
	opts.BaseURL = s.Server.LocalURL
	opts.Port = s.Server.Port
	if s.Server.DataDir != "" {
		opts.DataDir = s.Server.DataDir
	}
	if len(s.Server.InstallDirs) > 0 {
		opts.InstallDirs = s.Server.InstallDirs
	}
	opts.JavaPath = s.Server.JavaPath
	opts.StartTimeout = s.Server.StartTimeout
	return opts
}

// LoggingConfig builds the logger configuration.
func (s Settings) LoggingConfig() logging.Config {
	return logging.Config{
		Level:  s.Logging.Level,
		Format: s.Logging.Format,
		File:   s.Logging.File,
	}
}
