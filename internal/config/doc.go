// Package config loads corrector's settings.
//
// Configuration is organized in layers with higher layers overriding lower:
//
//	┌─────────────────────────────┐
//	│  4. Command Line Flags      │  ← Highest priority
//	├─────────────────────────────┤
//	│  3. Environment Variables   │  ← CORRECTOR_*
//	├─────────────────────────────┤
//	│  2. Config File             │  ← ~/.config/corrector/config.toml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │  ← Lowest priority
//	└─────────────────────────────┘
//
// The config file may be TOML or YAML, chosen by extension:
//
//	# ~/.config/corrector/config.toml
//	[server]
//	mode = "hosted"
//
//	[check]
//	language = "ca-ES-valencia"
//	commentsOnly = true
//	suppressedRules = ["WHITESPACE_RULE"]
//
//	[network]
//	timeout = "30s"
//
// Environment variables follow CORRECTOR_SECTION_SETTING, so
// CORRECTOR_CHECK_COMMENTS_ONLY=false sets check.commentsOnly. A few short
// names such as CORRECTOR_MODE and CORRECTOR_LANGUAGE are also accepted.
//
// Section accessors return snapshots. Values of the wrong type fall back to
// the default and are recorded; ConfigErrors reports them.
package config
