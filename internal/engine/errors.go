package engine

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrNotInstalled is returned when no valid installation is found.
	ErrNotInstalled = errors.New("engine not installed")

	// ErrRuntimeNotFound is returned when no usable Java runtime is found.
	ErrRuntimeNotFound = errors.New("java runtime not found")

	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("engine supervisor closed")

	// ErrStoppedDuringStartup is returned by Start when Stop or Close
	// interrupts the attempt.
	ErrStoppedDuringStartup = errors.New("engine stopped during startup")

	// ErrProcessNotRunning is returned when signalling a process that is
	// not running.
	ErrProcessNotRunning = errors.New("process not running")

	// ErrProcessAlreadyStarted is returned when starting a process twice.
	ErrProcessAlreadyStarted = errors.New("process already started")
)

// Reason classifies a startup failure.
type Reason int

const (
	ReasonNotInstalled Reason = iota
	ReasonRuntimeNotFound
	ReasonSpawnFailed
	ReasonExitedEarly
	ReasonNotReady
)

// String returns a short description.
func (r Reason) String() string {
	switch r {
	case ReasonNotInstalled:
		return "engine not installed"
	case ReasonRuntimeNotFound:
		return "runtime not found"
	case ReasonSpawnFailed:
		return "spawn failed"
	case ReasonExitedEarly:
		return "process exited before becoming ready"
	case ReasonNotReady:
		return "did not become ready in time"
	default:
		return fmt.Sprintf("unknown(%d)", int(r))
	}
}

// StartupError reports a failed start attempt. Start attempts are not
// retried automatically.
type StartupError struct {
	Reason Reason
	// Output is the tail of the process output, when a process was spawned.
	Output string
	Err    error
}

func (e *StartupError) Error() string {
	if e.Err == nil {
		return "local engine: " + e.Reason.String()
	}
	return fmt.Sprintf("local engine: %s: %v", e.Reason, e.Err)
}

func (e *StartupError) Unwrap() error {
	return e.Err
}

// Remediation returns user guidance for the failure.
func (e *StartupError) Remediation() string {
	switch e.Reason {
	case ReasonNotInstalled:
		return "Install LanguageTool 6.0 (languagetool-server.jar and libs/) into one of the configured install directories."
	case ReasonRuntimeNotFound:
		return "Install a Java runtime or set JAVA_HOME. Java can be downloaded from https://www.java.com/download/."
	case ReasonExitedEarly:
		return "The LanguageTool server exited during startup. Check its output and make sure the port is free."
	default:
		return "The LanguageTool server could not be started. Switch to the hosted API or start the server manually."
	}
}
