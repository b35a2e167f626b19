package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dshills/corrector/internal/config/loader"
	"github.com/dshills/corrector/internal/logging"
)

// EnvPrefix is the prefix of environment variables read by default.
const EnvPrefix = "CORRECTOR_"

// Layer names, lowest priority first.
const (
	LayerDefaults = "defaults"
	LayerFile     = "file"
	LayerEnv      = "environment"
	LayerFlags    = "flags"
)

type layer struct {
	name string
	data map[string]any
}

// Config holds the merged configuration. It is safe for concurrent use.
type Config struct {
	mu sync.RWMutex

	path      string
	explicit  bool
	fs        loader.FileSystem
	envPrefix string
	flags     map[string]any
	logger    *slog.Logger

	layers []layer
	merged map[string]any

	// configErrors records type problems found by the section accessors.
	configErrors map[string]error
}

// Option configures a Config.
type Option func(*Config)

// WithFile sets the config file. A missing explicit file is an error.
func WithFile(path string) Option {
	return func(c *Config) {
		if path != "" {
			c.path = path
			c.explicit = true
		}
	}
}

// WithFileSystem replaces the file system used to read the config file.
func WithFileSystem(fsys loader.FileSystem) Option {
	return func(c *Config) {
		c.fs = fsys
	}
}

// WithEnvPrefix sets the environment variable prefix. Empty disables the
// environment layer.
func WithEnvPrefix(prefix string) Option {
	return func(c *Config) {
		c.envPrefix = prefix
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.logger = l
	}
}

// New creates an unloaded Config. Accessors return defaults until Load.
func New(opts ...Option) *Config {
	c := &Config{
		path:      DefaultPath(),
		fs:        loader.DefaultFS(),
		envPrefix: EnvPrefix,
		flags:     make(map[string]any),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrDiscard(c.logger).With("component", "config")
	c.layers = []layer{{name: LayerDefaults, data: defaultConfig()}}
	c.merged = c.mergeLocked()
	return c
}

// Load reads every layer. It may be called again to reload.
func (c *Config) Load(_ context.Context) error {
	layers := []layer{{name: LayerDefaults, data: defaultConfig()}}

	fileData, err := c.loadFile()
	if err != nil {
		return err
	}
	if fileData != nil {
		layers = append(layers, layer{name: LayerFile, data: fileData})
	}

	if c.envPrefix != "" {
		envData, err := loader.NewEnvLoader(c.envPrefix).Load()
		if err != nil {
			return err
		}
		if len(envData) > 0 {
			layers = append(layers, layer{name: LayerEnv, data: envData})
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.flags) > 0 {
		layers = append(layers, layer{name: LayerFlags, data: c.flags})
	}
	c.layers = layers
	c.merged = c.mergeLocked()
	c.configErrors = nil
	return nil
}

func (c *Config) loadFile() (map[string]any, error) {
	l, err := loader.ForFile(c.fs, c.path)
	if err != nil {
		return nil, err
	}
	data, err := l.Load()
	if err != nil {
		return nil, err
	}
	if data == nil {
		if c.explicit {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, c.path)
		}
		c.logger.Debug("no config file", "path", c.path)
		return nil, nil
	}
	c.logger.Debug("config file loaded", "path", c.path)
	return data, nil
}

func (c *Config) mergeLocked() map[string]any {
	merged := make(map[string]any)
	for _, l := range c.layers {
		merged = loader.DeepMerge(merged, l.data)
	}
	return merged
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.path
}

// Layers returns the names of the loaded layers, lowest priority first.
func (c *Config) Layers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, len(c.layers))
	for i, l := range c.layers {
		names[i] = l.name
	}
	return names
}

// Set stores a value in the flags layer, which survives reloads.
func (c *Config) Set(path string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	loader.SetByPath(c.flags, path, value)
	if len(c.layers) == 0 || c.layers[len(c.layers)-1].name != LayerFlags {
		c.layers = append(c.layers, layer{name: LayerFlags, data: c.flags})
	}
	c.merged = c.mergeLocked()
}

// Merged returns a copy of the merged configuration.
func (c *Config) Merged() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return loader.Clone(c.merged)
}

// Get returns the merged value at path.
func (c *Config) Get(path string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return loader.GetByPath(c.merged, path)
}

// GetString returns a string value at the given path.
func (c *Config) GetString(path string) (string, error) {
	v, ok := c.Get(path)
	if !ok {
		return "", ErrSettingNotFound
	}
	s, ok := v.(string)
	if !ok {
		return "", &TypeError{Path: path, Expected: "string", Actual: typeName(v)}
	}
	return s, nil
}

// GetInt returns an integer value at the given path.
func (c *Config) GetInt(path string) (int, error) {
	v, ok := c.Get(path)
	if !ok {
		return 0, ErrSettingNotFound
	}
	switch val := v.(type) {
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case float64:
		if val == math.Trunc(val) {
			return int(val), nil
		}
	}
	return 0, &TypeError{Path: path, Expected: "int", Actual: typeName(v)}
}

// GetBool returns a boolean value at the given path.
func (c *Config) GetBool(path string) (bool, error) {
	v, ok := c.Get(path)
	if !ok {
		return false, ErrSettingNotFound
	}
	b, ok := v.(bool)
	if !ok {
		return false, &TypeError{Path: path, Expected: "bool", Actual: typeName(v)}
	}
	return b, nil
}

// GetDuration returns a duration at the given path. Strings use
// time.ParseDuration syntax; bare numbers are milliseconds.
func (c *Config) GetDuration(path string) (time.Duration, error) {
	v, ok := c.Get(path)
	if !ok {
		return 0, ErrSettingNotFound
	}
	switch val := v.(type) {
	case time.Duration:
		return val, nil
	case string:
		d, err := time.ParseDuration(strings.TrimSpace(val))
		if err != nil {
			return 0, &TypeError{Path: path, Expected: "duration", Actual: fmt.Sprintf("string %q", val)}
		}
		return d, nil
	case int:
		return time.Duration(val) * time.Millisecond, nil
	case int64:
		return time.Duration(val) * time.Millisecond, nil
	case float64:
		return time.Duration(val * float64(time.Millisecond)), nil
	default:
		return 0, &TypeError{Path: path, Expected: "duration", Actual: typeName(v)}
	}
}

// GetStringSlice returns a string list at the given path. A single string
// is split on commas.
func (c *Config) GetStringSlice(path string) ([]string, error) {
	v, ok := c.Get(path)
	if !ok {
		return nil, ErrSettingNotFound
	}

	switch val := v.(type) {
	case []string:
		return append([]string(nil), val...), nil
	case []any:
		result := make([]string, len(val))
		for i, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, &TypeError{Path: path, Expected: "[]string", Actual: typeName(v)}
			}
			result[i] = s
		}
		return result, nil
	case string:
		var result []string
		for _, s := range strings.Split(val, ",") {
			if s = strings.TrimSpace(s); s != "" {
				result = append(result, s)
			}
		}
		return result, nil
	default:
		return nil, &TypeError{Path: path, Expected: "[]string", Actual: typeName(v)}
	}
}

// The getXOr helpers return the default for a missing setting and record
// every other error.

func (c *Config) getStringOr(path string, def string) string {
	v, err := c.GetString(path)
	if err != nil {
		c.recordConfigError(path, err)
		return def
	}
	return v
}

func (c *Config) getIntOr(path string, def int) int {
	v, err := c.GetInt(path)
	if err != nil {
		c.recordConfigError(path, err)
		return def
	}
	return v
}

func (c *Config) getBoolOr(path string, def bool) bool {
	v, err := c.GetBool(path)
	if err != nil {
		c.recordConfigError(path, err)
		return def
	}
	return v
}

func (c *Config) getDurationOr(path string, def time.Duration) time.Duration {
	v, err := c.GetDuration(path)
	if err != nil {
		c.recordConfigError(path, err)
		return def
	}
	return v
}

func (c *Config) getStringSliceOr(path string, def []string) []string {
	v, err := c.GetStringSlice(path)
	if err != nil {
		c.recordConfigError(path, err)
		return append([]string(nil), def...)
	}
	return v
}

// recordConfigError keeps the first error per path.
func (c *Config) recordConfigError(path string, err error) {
	if errors.Is(err, ErrSettingNotFound) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.configErrors == nil {
		c.configErrors = make(map[string]error)
	}
	if _, exists := c.configErrors[path]; !exists {
		c.configErrors[path] = err
		c.logger.Warn("invalid setting, using default", "path", path, "error", err)
	}
}

// ConfigErrors returns the type errors recorded by the section accessors.
func (c *Config) ConfigErrors() map[string]error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.configErrors == nil {
		return nil
	}
	result := make(map[string]error, len(c.configErrors))
	for k, v := range c.configErrors {
		result[k] = v
	}
	return result
}

// DefaultPath returns the per-user config file path.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "corrector", "config.toml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "corrector", "config.toml")
}

func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	switch v.(type) {
	case string:
		return "string"
	case int, int64:
		return "int"
	case float64:
		return "float64"
	case bool:
		return "bool"
	case time.Duration:
		return "duration"
	case []string:
		return "[]string"
	case []any:
		return "[]any"
	case map[string]any:
		return "map"
	default:
		return fmt.Sprintf("%T", v)
	}
}
