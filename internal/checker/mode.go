package checker

import (
	"fmt"
	"strings"
	"sync"
)

// Mode selects which backend serves checks.
type Mode int

const (
	// ModeHosted uses the hosted grammar API.
	ModeHosted Mode = iota
	// ModeLocal uses a locally running engine.
	ModeLocal
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeHosted:
		return "hosted"
	case ModeLocal:
		return "local"
	default:
		return "unknown"
	}
}

// ParseMode parses a mode name. "softcatala" is accepted as an alias of
// "hosted".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "hosted", "softcatala":
		return ModeHosted, nil
	case "local":
		return ModeLocal, nil
	default:
		return ModeHosted, fmt.Errorf("unknown backend mode %q", s)
	}
}

// modeMachine holds the active mode and the failover latch.
//
// The latch is set when an automatic failover is evaluated and cleared only
// by a successful check, so each error streak gets at most one evaluation.
type modeMachine struct {
	mu      sync.Mutex
	mode    Mode
	latched bool
}

func newModeMachine(m Mode) *modeMachine {
	return &modeMachine{mode: m}
}

func (m *modeMachine) current() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

func (m *modeMachine) isLatched() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latched
}

// set applies an explicit user choice. Reports whether the mode changed.
func (m *modeMachine) set(mode Mode) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	changed := m.mode != mode
	m.mode = mode
	return changed
}

// succeed clears the latch.
func (m *modeMachine) succeed() {
	m.mu.Lock()
	m.latched = false
	m.mu.Unlock()
}

// beginFailover claims the one evaluation allowed per error streak. It
// succeeds only in hosted mode with the latch clear, and sets the latch.
func (m *modeMachine) beginFailover() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode != ModeHosted || m.latched {
		return false
	}
	m.latched = true
	return true
}

// failover moves hosted to local. Reports whether the mode changed.
func (m *modeMachine) failover() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode != ModeHosted {
		return false
	}
	m.mode = ModeLocal
	return true
}

// fallBack moves local to hosted after the engine failed to start. Reports
// whether the mode changed.
func (m *modeMachine) fallBack() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode != ModeLocal {
		return false
	}
	m.mode = ModeHosted
	return true
}
