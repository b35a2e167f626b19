// Package main is the entry point for the corrector command.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dshills/corrector/internal/checker"
	"github.com/dshills/corrector/internal/config"
	"github.com/dshills/corrector/internal/engine"
	"github.com/dshills/corrector/internal/logging"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// errIssuesFound makes check exit with status 1 without printing an error.
var errIssuesFound = errors.New("issues found")

var (
	configPath string
	modeFlag   string
	langFlag   string
	levelFlag  string
	noColor    bool

	rootCmd = &cobra.Command{
		Use:   "corrector",
		Short: "Catalan grammar and spelling checker",
		Long: `corrector checks Catalan prose and source code comments against a
LanguageTool grammar service, either the hosted API or a local engine.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	flags.StringVar(&modeFlag, "mode", "", "Backend mode (hosted, softcatala, local)")
	flags.StringVarP(&langFlag, "language", "l", "", "Check language (e.g. ca-ES, ca-ES-valencia)")
	flags.StringVar(&levelFlag, "log-level", "", "Log level (debug, info, warn, error)")
	flags.BoolVar(&noColor, "no-color", false, "Disable colored output")
}

func main() {
	os.Exit(run())
}

func run() int {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errIssuesFound) {
			return 1
		}
		red := color.New(color.FgRed).SprintFunc()
		fmt.Fprintf(os.Stderr, "%s %v\n", red("Error:"), err)
		if hint := remediation(err); hint != "" {
			fmt.Fprintf(os.Stderr, "  %s\n", hint)
		}
		return 1
	}
	return 0
}

func remediation(err error) string {
	if hint := checker.Remediation(err); hint != "" {
		return hint
	}
	var se *engine.StartupError
	if errors.As(err, &se) {
		return se.Remediation()
	}
	return ""
}

// session is the wiring shared by the subcommands.
type session struct {
	cfg      *config.Config
	settings config.Settings
	log      *logging.Logger
	engine   *engine.Supervisor
	client   *checker.Client
}

// loadConfig reads the configuration and applies the global flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.New(config.WithFile(configPath))

	flags := cmd.Flags()
	if flags.Changed("mode") {
		cfg.Set("server.mode", modeFlag)
	}
	if flags.Changed("language") {
		cfg.Set("check.language", langFlag)
	}
	if flags.Changed("log-level") {
		cfg.Set("logging.level", levelFlag)
	}

	if err := cfg.Load(cmd.Context()); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Settings().Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newSession builds the logger, the engine supervisor and the check client.
func newSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	settings := cfg.Settings()

	logger, err := logging.New(settings.LoggingConfig())
	if err != nil {
		return nil, err
	}
	for path, err := range cfg.ConfigErrors() {
		logger.Warn("invalid setting, using default", "path", path, "error", err)
	}

	sup := engine.New(settings.EngineOptions(), engine.WithLogger(logger.Logger))

	opts, err := settings.CheckerOptions()
	if err != nil {
		_ = sup.Close()
		_ = logger.Close()
		return nil, err
	}
	client, err := checker.New(opts, sup, checker.WithLogger(logger.Logger))
	if err != nil {
		_ = sup.Close()
		_ = logger.Close()
		return nil, err
	}

	return &session{
		cfg:      cfg,
		settings: settings,
		log:      logger,
		engine:   sup,
		client:   client,
	}, nil
}

// Close stops a spawned engine and flushes the log file.
func (s *session) Close() {
	s.client.Close()
	if err := s.engine.Close(); err != nil {
		s.log.Warn("engine stop failed", "error", err)
	}
	_ = s.log.Close()
}
