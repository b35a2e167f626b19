package engine

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// ProcessState represents the state of a child process.
type ProcessState int

const (
	// ProcessCreated indicates the process has been created but not started.
	ProcessCreated ProcessState = iota
	// ProcessRunning indicates the process is currently running.
	ProcessRunning
	// ProcessExited indicates the process has exited normally or with an error.
	ProcessExited
	// ProcessKilled indicates the process was killed by a signal.
	ProcessKilled
)

// String returns a human-readable state name.
func (s ProcessState) String() string {
	switch s {
	case ProcessCreated:
		return "created"
	case ProcessRunning:
		return "running"
	case ProcessExited:
		return "exited"
	case ProcessKilled:
		return "killed"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// outputLimit bounds the captured output tail.
const outputLimit = 8 << 10

// Process is a child process owned by the supervisor.
//
// Process wraps an exec.Cmd with exit tracking and captures the tail of its
// combined stdout and stderr for startup diagnostics. It is safe for
// concurrent use.
type Process struct {
	// ID is the unique identifier for this process.
	ID string

	// Name is a human-readable name for the process.
	Name string

	// Cmd is the underlying exec.Cmd.
	Cmd *exec.Cmd

	// Started is the time the process was started.
	Started time.Time

	done     chan struct{}
	state    atomic.Int32
	exitCode atomic.Int32
	output   *tailBuffer

	mu      sync.RWMutex
	exitErr error

	waitOnce sync.Once
}

// NewProcess wraps cmd. The command must not have been started.
func NewProcess(name string, cmd *exec.Cmd) *Process {
	p := &Process{
		ID:     uuid.New().String(),
		Name:   name,
		Cmd:    cmd,
		done:   make(chan struct{}),
		output: newTailBuffer(outputLimit),
	}
	p.state.Store(int32(ProcessCreated))
	p.exitCode.Store(-1) // -1 indicates not exited
	return p
}

// State returns the current process state.
func (p *Process) State() ProcessState {
	return ProcessState(p.state.Load())
}

// ExitCode returns the process exit code, or -1 if it has not exited.
func (p *Process) ExitCode() int {
	return int(p.exitCode.Load())
}

// ExitError returns the error from waiting on the process.
func (p *Process) ExitError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exitErr
}

// Done returns a channel that is closed when the process exits.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// IsRunning returns true if the process is currently running.
func (p *Process) IsRunning() bool {
	return p.State() == ProcessRunning
}

// HasExited returns true if the process has exited (normally or killed).
func (p *Process) HasExited() bool {
	state := p.State()
	return state == ProcessExited || state == ProcessKilled
}

// PID returns the process ID, or -1 if not started.
func (p *Process) PID() int {
	if p.Cmd.Process == nil {
		return -1
	}
	return p.Cmd.Process.Pid
}

// Output returns the captured tail of stdout and stderr.
func (p *Process) Output() string {
	return p.output.String()
}

// Signal sends a signal to the process.
func (p *Process) Signal(sig os.Signal) error {
	if !p.IsRunning() || p.Cmd.Process == nil {
		return ErrProcessNotRunning
	}
	return p.Cmd.Process.Signal(sig)
}

// Terminate sends SIGTERM to the process.
func (p *Process) Terminate() error {
	return p.Signal(syscall.SIGTERM)
}

// Kill sends SIGKILL to the process.
func (p *Process) Kill() error {
	return p.Signal(syscall.SIGKILL)
}

// Start starts the process. Output not otherwise redirected is captured.
func (p *Process) Start() error {
	if p.State() != ProcessCreated {
		return ErrProcessAlreadyStarted
	}

	if p.Cmd.Stdout == nil {
		p.Cmd.Stdout = p.output
	}
	if p.Cmd.Stderr == nil {
		p.Cmd.Stderr = p.output
	}

	if err := p.Cmd.Start(); err != nil {
		return fmt.Errorf("start process: %w", err)
	}

	p.Started = time.Now()
	p.state.Store(int32(ProcessRunning))

	go p.waitLoop()

	return nil
}

// Stop sends SIGTERM, waits up to grace for the process to exit, then
// sends SIGKILL. It returns once the process has exited. Stopping a process
// that is not running is a no-op.
func (p *Process) Stop(grace time.Duration) error {
	if !p.IsRunning() {
		return nil
	}

	if err := p.Terminate(); err != nil && !p.HasExited() {
		return fmt.Errorf("terminate %s: %w", p.Name, err)
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-p.done:
		return nil
	case <-timer.C:
	}

	if err := p.Kill(); err != nil && !p.HasExited() {
		return fmt.Errorf("kill %s: %w", p.Name, err)
	}
	<-p.done
	return nil
}

// waitLoop waits for the process to exit and updates state.
func (p *Process) waitLoop() {
	p.waitOnce.Do(func() {
		err := p.Cmd.Wait()

		p.mu.Lock()
		p.exitErr = err
		p.mu.Unlock()

		exitCode := 0
		state := ProcessExited

		if err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				exitCode = exitErr.ExitCode()
				if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
					state = ProcessKilled
				}
			} else {
				exitCode = -1
			}
		}

		p.exitCode.Store(int32(exitCode))
		p.state.Store(int32(state))
		close(p.done)
	})
}

// Runtime returns how long the process has been running.
func (p *Process) Runtime() time.Duration {
	if p.Started.IsZero() {
		return 0
	}
	return time.Since(p.Started)
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(b []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf, b...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0:0], t.buf[over:]...)
	}
	return len(b), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
