package checker

import (
	"errors"
	"fmt"
)

var (
	// ErrBackendUnavailable is matched by every NetworkError.
	ErrBackendUnavailable = errors.New("grammar service unavailable")

	// ErrLocalEngineUnavailable is wrapped when the local engine could not
	// be made ready.
	ErrLocalEngineUnavailable = errors.New("local engine unavailable")

	// ErrNoLocalEngine is returned when local mode is selected but no
	// engine was supplied.
	ErrNoLocalEngine = errors.New("no local engine configured")
)

// NetworkError reports a check that failed on every attempt with no cached
// result to fall back on.
type NetworkError struct {
	// Mode is the backend that failed.
	Mode Mode
	// Attempts is the number of network attempts made. Zero when the local
	// engine never became ready.
	Attempts int
	// Err is the last underlying failure.
	Err error
}

func (e *NetworkError) Error() string {
	if e.Attempts == 0 {
		return fmt.Sprintf("%s backend unavailable: %v", e.Mode, e.Err)
	}
	return fmt.Sprintf("%s backend unavailable after %d attempt(s): %v", e.Mode, e.Attempts, e.Err)
}

func (e *NetworkError) Unwrap() []error {
	return []error{ErrBackendUnavailable, e.Err}
}

// Remediation returns user guidance for the failure.
func (e *NetworkError) Remediation() string {
	switch {
	case errors.Is(e.Err, ErrNoLocalEngine), errors.Is(e.Err, ErrLocalEngineUnavailable):
		return "The local LanguageTool engine could not be started. Check that it is installed and Java is available, or switch to the hosted API."
	case e.Mode == ModeLocal:
		return "Could not reach the local LanguageTool server. Make sure it is running (corrector engine start) or switch to the hosted API."
	default:
		return "Could not reach the hosted grammar API. Check your internet connection or switch to the local engine."
	}
}

// Remediation returns user guidance for err, or "" when err is not a
// NetworkError.
func Remediation(err error) string {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Remediation()
	}
	return ""
}
