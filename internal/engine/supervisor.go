package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dshills/corrector/internal/backend"
	"github.com/dshills/corrector/internal/logging"
	"github.com/dshills/corrector/internal/metrics"
)

// State is the supervisor lifecycle state.
type State int

const (
	Stopped State = iota
	Starting
	Ready
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// MainClass is the LanguageTool HTTP server entry point.
const MainClass = "org.languagetool.server.HTTPServer"

const defaultPort = 8081

// Options configures a Supervisor. Zero values take defaults.
type Options struct {
	// BaseURL is the local engine API base, e.g. http://localhost:8081/v2.
	BaseURL string
	// Port is the listen port. Defaults to the BaseURL port, else 8081.
	Port int
	// DataDir holds the per-user installation and removal marker.
	DataDir string
	// InstallDirs is the installation search order.
	InstallDirs []string
	// JavaPath, when set, is the only runtime considered.
	JavaPath string
	// StartTimeout bounds health polling after launch.
	StartTimeout time.Duration
	// PollInterval is the delay between health probes.
	PollInterval time.Duration
	// StopGrace is how long Stop waits after SIGTERM before SIGKILL.
	StopGrace time.Duration
}

// DefaultOptions returns the default supervisor options.
func DefaultOptions() Options {
	dataDir := DefaultDataDir()
	return Options{
		BaseURL:      backend.DefaultLocalURL,
		Port:         defaultPort,
		DataDir:      dataDir,
		InstallDirs:  DefaultInstallDirs(dataDir),
		StartTimeout: 60 * time.Second,
		PollInterval: 1 * time.Second,
		StopGrace:    5 * time.Second,
	}
}

func (o *Options) applyDefaults() {
	def := DefaultOptions()
	if o.BaseURL == "" {
		o.BaseURL = def.BaseURL
	}
	if o.Port <= 0 {
		o.Port = portFromURL(o.BaseURL)
	}
	if o.DataDir == "" {
		o.DataDir = def.DataDir
	}
	if len(o.InstallDirs) == 0 {
		o.InstallDirs = DefaultInstallDirs(o.DataDir)
	}
	if o.StartTimeout <= 0 {
		o.StartTimeout = def.StartTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = def.PollInterval
	}
	if o.StopGrace <= 0 {
		o.StopGrace = def.StopGrace
	}
}

func portFromURL(raw string) int {
	u, err := url.Parse(raw)
	if err != nil {
		return defaultPort
	}
	if p, err := strconv.Atoi(u.Port()); err == nil && p > 0 {
		return p
	}
	return defaultPort
}

// CommandFunc builds the engine command.
type CommandFunc func(java string, args ...string) *exec.Cmd

// Supervisor starts, health-checks and stops the local engine.
//
// Concurrent Start calls share one in-flight attempt. The attempt runs on
// the supervisor's own context, so a caller giving up does not abort it for
// the others. Supervisor is safe for concurrent use.
type Supervisor struct {
	opts   Options
	probe  *backend.Client
	logger *slog.Logger

	command     CommandFunc
	findRuntime RuntimeFinder

	lifetime context.Context
	cancel   context.CancelFunc
	flight   singleflight.Group

	mu       sync.Mutex
	state    State
	proc     *Process
	external bool
	closed   bool
	// stops counts Stop calls; a start attempt that sees it change gives up.
	stops uint64
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Supervisor) {
		s.logger = l
	}
}

// WithProbe sets the client used for health probes.
func WithProbe(c *backend.Client) Option {
	return func(s *Supervisor) {
		s.probe = c
	}
}

// WithCommand replaces the command builder.
func WithCommand(fn CommandFunc) Option {
	return func(s *Supervisor) {
		s.command = fn
	}
}

// WithRuntimeFinder replaces Java discovery.
func WithRuntimeFinder(fn RuntimeFinder) Option {
	return func(s *Supervisor) {
		s.findRuntime = fn
	}
}

// New creates a stopped supervisor.
func New(opts Options, options ...Option) *Supervisor {
	opts.applyDefaults()

	s := &Supervisor{
		opts:    opts,
		command: exec.Command,
	}
	s.findRuntime = func(ctx context.Context) (string, error) {
		return FindJava(ctx, s.opts.JavaPath)
	}
	for _, o := range options {
		o(s)
	}
	if s.probe == nil {
		s.probe = backend.NewClient(backend.WithProbeTimeout(backend.DefaultProbeTimeout))
	}
	s.logger = logging.OrDiscard(s.logger).With("component", "engine")
	s.lifetime, s.cancel = context.WithCancel(context.Background())
	return s
}

// Options returns the effective options.
func (s *Supervisor) Options() Options {
	return s.opts
}

// State returns the lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status describes the supervisor for display.
type Status struct {
	State    State
	External bool
	PID      int
	BaseURL  string
	Uptime   time.Duration
}

// Status returns a snapshot.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{State: s.state, External: s.external, PID: -1, BaseURL: s.opts.BaseURL}
	if s.proc != nil {
		st.PID = s.proc.PID()
		st.Uptime = s.proc.Runtime()
	}
	return st
}

// Start makes the engine ready. It returns immediately when already ready
// and joins the in-flight attempt when one is running. Failures are
// *StartupError and are not retried.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state == Ready {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	ch := s.flight.DoChan("start", func() (any, error) {
		return nil, s.start(s.lifetime)
	})
	select {
	case r := <-ch:
		return r.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Supervisor) start(ctx context.Context) (err error) {
	s.mu.Lock()
	if s.state == Ready {
		s.mu.Unlock()
		return nil
	}
	s.state = Starting
	gen := s.stops
	s.mu.Unlock()

	began := time.Now()
	defer func() {
		if err != nil {
			s.setState(Stopped)
			metrics.EngineStarts.WithLabelValues("error").Inc()
			s.logger.Error("local engine failed to start", "error", err)
			return
		}
		metrics.EngineStarts.WithLabelValues("ok").Inc()
		metrics.EngineStartDuration.Observe(time.Since(began).Seconds())
	}()

	if s.probe.Probe(ctx, s.opts.BaseURL) == nil {
		s.mu.Lock()
		if s.stops != gen {
			s.mu.Unlock()
			return ErrStoppedDuringStartup
		}
		s.external = true
		s.state = Ready
		s.mu.Unlock()
		s.logger.Info("reusing running local engine", "url", s.opts.BaseURL)
		return nil
	}

	inst, err := FindInstallation(s.opts.DataDir, s.opts.InstallDirs)
	if err != nil {
		return &StartupError{Reason: ReasonNotInstalled, Err: err}
	}

	java, err := s.findRuntime(ctx)
	if err != nil {
		return &StartupError{Reason: ReasonRuntimeNotFound, Err: err}
	}
	if s.stoppedSince(gen) {
		return ErrStoppedDuringStartup
	}

	cmd := s.command(java,
		"-cp", inst.Classpath(),
		MainClass,
		"--port", strconv.Itoa(s.opts.Port),
		"--allow-origin", "*",
	)
	cmd.Dir = inst.Dir

	proc := NewProcess("languagetool", cmd)
	if err := proc.Start(); err != nil {
		return &StartupError{Reason: ReasonSpawnFailed, Err: err}
	}
	s.logger.Info("local engine launched", "pid", proc.PID(), "port", s.opts.Port, "dir", inst.Dir)

	s.mu.Lock()
	if s.stops != gen {
		s.mu.Unlock()
		s.logger.Info("stopped during startup, terminating engine", "pid", proc.PID())
		_ = proc.Stop(s.opts.StopGrace)
		return ErrStoppedDuringStartup
	}
	s.proc = proc
	s.external = false
	s.mu.Unlock()

	if err := s.waitReady(ctx, proc); err != nil {
		_ = proc.Stop(s.opts.StopGrace)
		s.mu.Lock()
		if s.proc == proc {
			s.proc = nil
		}
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	if s.proc != proc || s.stops != gen {
		s.mu.Unlock()
		return &StartupError{Reason: ReasonExitedEarly, Output: proc.Output(), Err: ErrStoppedDuringStartup}
	}
	s.state = Ready
	s.mu.Unlock()

	go s.monitor(proc)
	s.logger.Info("local engine ready", "pid", proc.PID(), "elapsed", time.Since(began).Round(time.Millisecond))
	return nil
}

// waitReady polls the health endpoint until it answers, the process exits,
// or StartTimeout elapses.
func (s *Supervisor) waitReady(ctx context.Context, proc *Process) error {
	deadline := time.NewTimer(s.opts.StartTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		if s.probe.Probe(ctx, s.opts.BaseURL) == nil {
			return nil
		}

		select {
		case <-proc.Done():
			return &StartupError{
				Reason: ReasonExitedEarly,
				Output: proc.Output(),
				Err:    fmt.Errorf("exit code %d", proc.ExitCode()),
			}
		case <-deadline.C:
			return &StartupError{
				Reason: ReasonNotReady,
				Output: proc.Output(),
				Err:    fmt.Errorf("no healthy response within %s", s.opts.StartTimeout),
			}
		case <-ctx.Done():
			return &StartupError{Reason: ReasonNotReady, Output: proc.Output(), Err: ctx.Err()}
		case <-ticker.C:
		}
	}
}

// monitor resets the state when an owned engine exits on its own.
func (s *Supervisor) monitor(proc *Process) {
	<-proc.Done()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proc != proc {
		return
	}
	s.proc = nil
	s.state = Stopped
	s.logger.Warn("local engine exited", "pid", proc.PID(), "exit_code", proc.ExitCode())
}

func (s *Supervisor) stoppedSince(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops != gen
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Available reports whether the engine is running or could be started: it
// answers the health probe, or an installation and a Java runtime exist.
func (s *Supervisor) Available(ctx context.Context) error {
	if s.State() == Ready {
		return nil
	}
	if s.probe.Probe(ctx, s.opts.BaseURL) == nil {
		return nil
	}
	if _, err := FindInstallation(s.opts.DataDir, s.opts.InstallDirs); err != nil {
		return &StartupError{Reason: ReasonNotInstalled, Err: err}
	}
	if _, err := s.findRuntime(ctx); err != nil {
		return &StartupError{Reason: ReasonRuntimeNotFound, Err: err}
	}
	return nil
}

// Stop terminates the engine if this supervisor spawned it. An external
// instance is left running. Stop is idempotent.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	proc := s.proc
	s.proc = nil
	s.external = false
	s.state = Stopped
	s.stops++
	s.mu.Unlock()

	if proc == nil {
		return nil
	}
	s.logger.Info("stopping local engine", "pid", proc.PID())
	return proc.Stop(s.opts.StopGrace)
}

// Close stops the engine and rejects further starts.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	return s.Stop()
}
