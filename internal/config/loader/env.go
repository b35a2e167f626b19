package loader

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvLoader loads configuration from environment variables.
type EnvLoader struct {
	prefix  string            // e.g. "CORRECTOR_"
	mapping map[string]string // env var -> setting path
	environ func() []string
}

// NewEnvLoader creates a loader for variables starting with prefix. The
// prefix includes the trailing underscore.
func NewEnvLoader(prefix string) *EnvLoader {
	return NewEnvLoaderWithMapping(prefix, DefaultEnvMapping(prefix))
}

// NewEnvLoaderWithMapping creates a loader with explicit mappings.
func NewEnvLoaderWithMapping(prefix string, mapping map[string]string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: mapping,
		environ: os.Environ,
	}
}

// DefaultEnvMapping returns the short variable names that do not follow the
// SECTION_SETTING scheme.
func DefaultEnvMapping(prefix string) map[string]string {
	return map[string]string{
		prefix + "MODE":       "server.mode",
		prefix + "HOSTED_URL": "server.hostedUrl",
		prefix + "LOCAL_URL":  "server.localUrl",
		prefix + "JAVA":       "server.javaPath",
		prefix + "DATA_DIR":   "server.dataDir",
		prefix + "LANGUAGE":   "check.language",
		prefix + "VERB_FORMS": "check.verbForms",
		prefix + "LOG_LEVEL":  "logging.level",
		prefix + "LOG_FORMAT": "logging.format",
		prefix + "LOG_FILE":   "logging.file",
	}
}

// AddMapping maps envVar onto a setting path.
func (l *EnvLoader) AddMapping(envVar, path string) {
	if l.mapping == nil {
		l.mapping = make(map[string]string)
	}
	l.mapping[envVar] = path
}

// Load implements Loader. Empty values count as set.
func (l *EnvLoader) Load() (map[string]any, error) {
	config := make(map[string]any)

	for _, kv := range l.environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if path, mapped := l.mapping[name]; mapped {
			SetByPath(config, path, ParseValue(value))
			continue
		}
		if !strings.HasPrefix(name, l.prefix) {
			continue
		}
		if path := l.envToPath(name); path != "" {
			SetByPath(config, path, ParseValue(value))
		}
	}

	return config, nil
}

// envToPath converts CORRECTOR_CHECK_COMMENTS_ONLY to check.commentsOnly.
func (l *EnvLoader) envToPath(env string) string {
	name := strings.TrimPrefix(env, l.prefix)
	parts := strings.Split(strings.ToLower(name), "_")
	if len(parts) == 0 || parts[0] == "" {
		return ""
	}
	if len(parts) == 1 {
		return parts[0]
	}

	setting := parts[1]
	for _, p := range parts[2:] {
		if p != "" {
			setting += strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return parts[0] + "." + setting
}

// ParseValue converts an environment string to the most specific type it
// represents: bool, int64, float64, time.Duration, a JSON array or object,
// or the string itself.
func ParseValue(s string) any {
	if s == "" {
		return s
	}

	switch strings.ToLower(s) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{") {
		var v any
		if err := json.Unmarshal([]byte(s), &v); err == nil {
			return v
		}
	}
	return s
}
