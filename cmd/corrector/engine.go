package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dshills/corrector/internal/engine"
)

var engineCmd = &cobra.Command{
	Use:   "engine",
	Short: "Manage the local LanguageTool engine",
}

var engineStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the local engine and keep it running until interrupted",
	Long: `Find the LanguageTool installation and a Java runtime, launch the
server and wait until it answers health probes. The engine is stopped
when the command exits. If an engine is already listening on the
configured port it is reused and left running.`,
	Args: cobra.NoArgs,
	RunE: runEngineStart,
}

var engineStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop an engine started with corrector engine start",
	Args:  cobra.NoArgs,
	RunE:  runEngineStop,
}

var engineStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the local engine is installed and reachable",
	Args:  cobra.NoArgs,
	RunE:  runEngineStatus,
}

func init() {
	engineStopCmd.Flags().Duration("timeout", 15*time.Second, "How long to wait for the engine to stop")
	engineCmd.AddCommand(engineStartCmd, engineStopCmd, engineStatusCmd)
	rootCmd.AddCommand(engineCmd)
}

func runEngineStart(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", yellow("Starting local engine..."))

	started := time.Now()
	if err := s.engine.Start(ctx); err != nil {
		return err
	}

	st := s.engine.Status()
	green := color.New(color.FgGreen).SprintFunc()
	if st.External {
		fmt.Fprintf(cmd.OutOrStdout(), "%s Engine already running at %s\n", green("✓"), st.BaseURL)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Engine ready at %s (PID %d, %s)\n",
		green("✓"), st.BaseURL, st.PID, time.Since(started).Round(100*time.Millisecond))
	fmt.Fprintln(cmd.ErrOrStderr(), "Press Ctrl-C to stop.")

	pidFile := filepath.Join(s.settings.Server.DataDir, pidFileName)
	if err := writePIDFile(pidFile); err != nil {
		s.log.Warn("pid file not written, engine stop will not find this process", "path", pidFile, "error", err)
	} else {
		defer os.Remove(pidFile)
	}

	<-ctx.Done()
	fmt.Fprintln(cmd.ErrOrStderr(), "Stopping engine...")
	return s.engine.Stop()
}

// pidFileName holds the PID of the foreground engine start command.
const pidFileName = "engine.pid"

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o640)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid file %s", path)
	}
	return pid, nil
}

// runEngineStop interrupts the engine start command, which stops the
// engine it spawned on the way out.
func runEngineStop(cmd *cobra.Command, _ []string) error {
	timeout, _ := cmd.Flags().GetDuration("timeout")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	pidFile := filepath.Join(cfg.Server().DataDir, pidFileName)

	pid, err := readPIDFile(pidFile)
	if errors.Is(err, os.ErrNotExist) {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Fprintf(cmd.OutOrStdout(), "%s No engine started by corrector is running\n", yellow("ℹ"))
		return nil
	}
	if err != nil {
		return err
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		// The process is gone; the pid file is stale.
		_ = os.Remove(pidFile)
		return fmt.Errorf("signal PID %d: %w", pid, err)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(pidFile); errors.Is(err, os.ErrNotExist) {
			green := color.New(color.FgGreen).SprintFunc()
			fmt.Fprintf(cmd.OutOrStdout(), "%s Engine stopped\n", green("✓"))
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("engine (PID %d) did not stop within %s", pid, timeout)
}

func runEngineStatus(cmd *cobra.Command, _ []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	rep := inspectEngine(cmd.Context(), s.engine)
	fmt.Fprintln(cmd.OutOrStdout(), rep.String())
	return nil
}

// engineReport describes the local engine without starting it.
type engineReport struct {
	BaseURL   string
	Running   bool
	Installed string
	Runtime   string
	Problem   error
}

func inspectEngine(ctx context.Context, sup *engine.Supervisor) engineReport {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := sup.Options()
	rep := engineReport{BaseURL: opts.BaseURL}
	rep.Running = probe(ctx, opts.BaseURL) == nil

	if inst, err := engine.FindInstallation(opts.DataDir, opts.InstallDirs); err == nil {
		rep.Installed = inst.Dir
	} else {
		rep.Problem = &engine.StartupError{Reason: engine.ReasonNotInstalled, Err: err}
	}
	if java, err := engine.FindJava(ctx, opts.JavaPath); err == nil {
		rep.Runtime = java
	} else if rep.Problem == nil {
		rep.Problem = &engine.StartupError{Reason: engine.ReasonRuntimeNotFound, Err: err}
	}
	return rep
}

func (r engineReport) String() string {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	state := red("○ not running")
	if r.Running {
		state = green("● running")
	}
	install := gray("not found")
	if r.Installed != "" {
		install = r.Installed
	}
	runtime := gray("not found")
	if r.Runtime != "" {
		runtime = r.Runtime
	}
	out := fmt.Sprintf("Engine:       %s (%s)\nInstallation: %s\nJava:         %s", state, r.BaseURL, install, runtime)
	if r.Problem != nil && !r.Running {
		out += "\n" + red(remediation(r.Problem))
	}
	return out
}
