package config

import (
	"time"

	"github.com/dshills/corrector/internal/backend"
	"github.com/dshills/corrector/internal/cache"
	"github.com/dshills/corrector/internal/connstate"
	"github.com/dshills/corrector/internal/engine"
	"github.com/dshills/corrector/internal/scheduler"
)

// Section accessor methods return snapshot structs. Mutating the returned
// struct does not modify the underlying configuration.

// ServerConfig selects and locates the grammar service.
type ServerConfig struct {
	// Mode is "hosted" (alias "softcatala") or "local".
	Mode      string
	HostedURL string
	LocalURL  string

	// Port is the local engine listen port. Zero derives it from LocalURL.
	Port        int
	DataDir     string
	InstallDirs []string
	JavaPath    string

	StartTimeout time.Duration
}

// CheckConfig controls what is checked and how results are filtered.
type CheckConfig struct {
	Language              string
	VerbForms             string
	CommentsOnly          bool
	Delay                 time.Duration
	AutoCheck             bool
	SuppressedRules       []string
	DisableCapitalization bool
	EnabledLanguages      []string
	CodeLanguages         []string
}

// NetworkConfig tunes retries, backoff and caching.
type NetworkConfig struct {
	Timeout           time.Duration
	MaxRetries        int
	RetryBase         time.Duration
	CacheTTL          time.Duration
	BackoffBase       time.Duration
	BackoffCap        time.Duration
	FailoverThreshold int
	NotifyCooldown    time.Duration
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string
	Format string
	File   string
}

// Settings is a complete snapshot.
type Settings struct {
	Server  ServerConfig
	Check   CheckConfig
	Network NetworkConfig
	Logging LoggingConfig
}

// defaultConfig returns the defaults layer.
func defaultConfig() map[string]any {
	eng := engine.DefaultOptions()
	sched := scheduler.DefaultOptions()
	tracker := connstate.DefaultConfig()

	return map[string]any{
		"server": map[string]any{
			"mode":         "hosted",
			"hostedUrl":    backend.DefaultHostedURL,
			"localUrl":     backend.DefaultLocalURL,
			"port":         int64(0),
			"dataDir":      eng.DataDir,
			"installDirs":  toAny(eng.InstallDirs),
			"javaPath":     "",
			"startTimeout": eng.StartTimeout.String(),
		},
		"check": map[string]any{
			"language":              backend.DefaultLanguage,
			"verbForms":             "",
			"commentsOnly":          sched.CommentsOnly,
			"delay":                 sched.Delay.String(),
			"autoCheck":             sched.AutoCheck,
			"suppressedRules":       []any{},
			"disableCapitalization": false,
			"enabledLanguages":      toAny(sched.EnabledLanguages),
			"codeLanguages":         toAny(sched.CodeLanguages),
		},
		"network": map[string]any{
			"timeout":           backend.DefaultTimeout.String(),
			"maxRetries":        int64(3),
			"retryBase":         "1s",
			"cacheTtl":          cache.DefaultTTL.String(),
			"backoffBase":       tracker.BackoffBase.String(),
			"backoffCap":        tracker.BackoffCap.String(),
			"failoverThreshold": int64(tracker.Threshold),
			"notifyCooldown":    sched.NotifyCooldown.String(),
		},
		"logging": map[string]any{
			"level":  "info",
			"format": "text",
			"file":   "",
		},
	}
}

func toAny(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

// Server returns the server section.
func (c *Config) Server() ServerConfig {
	eng := engine.DefaultOptions()
	return ServerConfig{
		Mode:         c.getStringOr("server.mode", "hosted"),
		HostedURL:    c.getStringOr("server.hostedUrl", backend.DefaultHostedURL),
		LocalURL:     c.getStringOr("server.localUrl", backend.DefaultLocalURL),
		Port:         c.getIntOr("server.port", 0),
		DataDir:      c.getStringOr("server.dataDir", eng.DataDir),
		InstallDirs:  c.getStringSliceOr("server.installDirs", eng.InstallDirs),
		JavaPath:     c.getStringOr("server.javaPath", ""),
		StartTimeout: c.getDurationOr("server.startTimeout", eng.StartTimeout),
	}
}

// Check returns the check section.
func (c *Config) Check() CheckConfig {
	sched := scheduler.DefaultOptions()
	return CheckConfig{
		Language:              c.getStringOr("check.language", backend.DefaultLanguage),
		VerbForms:             c.getStringOr("check.verbForms", ""),
		CommentsOnly:          c.getBoolOr("check.commentsOnly", sched.CommentsOnly),
		Delay:                 c.getDurationOr("check.delay", sched.Delay),
		AutoCheck:             c.getBoolOr("check.autoCheck", sched.AutoCheck),
		SuppressedRules:       c.getStringSliceOr("check.suppressedRules", nil),
		DisableCapitalization: c.getBoolOr("check.disableCapitalization", false),
		EnabledLanguages:      c.getStringSliceOr("check.enabledLanguages", sched.EnabledLanguages),
		CodeLanguages:         c.getStringSliceOr("check.codeLanguages", sched.CodeLanguages),
	}
}

// Network returns the network section.
func (c *Config) Network() NetworkConfig {
	tracker := connstate.DefaultConfig()
	return NetworkConfig{
		Timeout:           c.getDurationOr("network.timeout", backend.DefaultTimeout),
		MaxRetries:        c.getIntOr("network.maxRetries", 3),
		RetryBase:         c.getDurationOr("network.retryBase", time.Second),
		CacheTTL:          c.getDurationOr("network.cacheTtl", cache.DefaultTTL),
		BackoffBase:       c.getDurationOr("network.backoffBase", tracker.BackoffBase),
		BackoffCap:        c.getDurationOr("network.backoffCap", tracker.BackoffCap),
		FailoverThreshold: c.getIntOr("network.failoverThreshold", tracker.Threshold),
		NotifyCooldown:    c.getDurationOr("network.notifyCooldown", scheduler.DefaultOptions().NotifyCooldown),
	}
}

// Logging returns the logging section.
func (c *Config) Logging() LoggingConfig {
	return LoggingConfig{
		Level:  c.getStringOr("logging.level", "info"),
		Format: c.getStringOr("logging.format", "text"),
		File:   c.getStringOr("logging.file", ""),
	}
}

// Settings returns every section.
func (c *Config) Settings() Settings {
	return Settings{
		Server:  c.Server(),
		Check:   c.Check(),
		Network: c.Network(),
		Logging: c.Logging(),
	}
}
