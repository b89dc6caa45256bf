// Package main is the entry point for the presence CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/profilecard/presence/internal/buildinfo"
	clierrors "github.com/profilecard/presence/internal/errors"
	"github.com/profilecard/presence/internal/observability"
	"github.com/profilecard/presence/internal/output"
)

// Set via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const showCursor = "\033[?25h"

func main() {
	os.Exit(run())
}

func run() int {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprint(os.Stderr, showCursor)
			panic(r)
		}
	}()

	buildinfo.Version = version
	buildinfo.Commit = commit

	if err := newRootCmd().Execute(); err != nil {
		return handleError(output.Default(), err)
	}

	return 0
}

// Cobra reports these as plain errors; they all mean the command line was wrong.
var usageErrorPrefixes = []string{
	"unknown command",
	"unknown flag",
	"unknown shorthand flag",
	"invalid argument",
}

// handleError prints err and returns the process exit code.
func handleError(out *output.Writer, err error) int {
	var cliErr *clierrors.CLIError
	if clierrors.As(err, &cliErr) {
		out.Failure("%s", cliErr.Message)

		if cliErr.Hint != "" {
			out.Info("%s", cliErr.Hint)
		}

		return cliErr.Code
	}

	msg := err.Error()
	out.Failure("%s", msg)

	if !isUsageError(msg) {
		return clierrors.ExitGeneral
	}

	if !strings.Contains(msg, "--help") {
		out.Info("Run 'presence --help' for usage")
	}

	return clierrors.ExitUsage
}

func isUsageError(msg string) bool {
	if strings.Contains(msg, "required flag") {
		return true
	}

	for _, prefix := range usageErrorPrefixes {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}

	return false
}

// rootFlags are the persistent flags every command inherits. Each one falls
// back to a PRESENCE_* environment variable.
type rootFlags struct {
	json      bool
	quiet     bool
	noColor   bool
	noInput   bool
	logLevel  string
	logFormat string
	logFile   string
	logStderr string
}

func (f *rootFlags) register(fs *pflag.FlagSet) {
	fs.BoolVar(&f.json, "json", false, "Output in JSON format")
	fs.BoolVar(&f.quiet, "quiet", false, "Minimal output (for CI)")
	fs.BoolVar(&f.noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&f.noInput, "no-input", false, "Disable interactive prompts")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level: error, warn, info, debug")
	fs.StringVar(&f.logFormat, "log-format", "", "Log format: json, text")
	fs.StringVar(&f.logFile, "log-file", "", "Optional structured log file path")
	fs.StringVar(&f.logStderr, "log-stderr", "", "Structured logging to stderr: auto, on, off")
}

// applyOutput copies the output switches onto out.
func (f *rootFlags) applyOutput(out *output.Writer) {
	out.JSON = pickBoolFlagOrEnv(f.json, "PRESENCE_JSON")
	out.Quiet = pickBoolFlagOrEnv(f.quiet, "PRESENCE_QUIET")
	out.NoInput = pickBoolFlagOrEnv(f.noInput, "PRESENCE_NO_INPUT") || pickBoolFlagOrEnv(false, "CI")

	if pickBoolFlagOrEnv(f.noColor, "NO_COLOR") {
		out.SetNoColor(true)
	}
}

func (f *rootFlags) loggerConfig(cmd *cobra.Command, out *output.Writer) *observability.Config {
	return &observability.Config{
		Level:          pickFlagOrEnv(f.logLevel, "PRESENCE_LOG_LEVEL", "info"),
		Format:         pickFlagOrEnv(f.logFormat, "PRESENCE_LOG_FORMAT", "json"),
		LogFile:        pickFlagOrEnv(f.logFile, "PRESENCE_LOG_FILE", ""),
		StderrMode:     pickFlagOrEnv(f.logStderr, "PRESENCE_LOG_STDERR", "auto"),
		InteractiveTTY: out.Terminal().IsTTY && isInteractiveCommand(cmd),
		SessionID:      uuid.NewString(),
		CommandPath:    cmd.CommandPath(),
		Version:        version,
		Commit:         commit,
	}
}

func newRootCmd() *cobra.Command {
	var flags rootFlags

	out := output.Default()

	rootCmd := &cobra.Command{
		Use:   "presence",
		Short: "Live Discord and Steam presence for a profile card",
		Long: `presence keeps a live view of a Discord user's status through the Lanyard
gateway and renders it as a profile card. It also reads Steam presence and
manages the card's colour, image, link and behaviour settings.

Get started:
  presence config set presence.discord_id <id>
  presence lookup                Check that Lanyard tracks the user
  presence watch --tui           Show the live card
  presence doctor                Diagnose common issues`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			flags.applyOutput(out)

			logger, cleanup, err := observability.NewLogger(flags.loggerConfig(cmd, out))
			if err != nil {
				return &clierrors.CLIError{
					Message: fmt.Sprintf("Invalid logging configuration: %v", err),
					Hint:    "Use --log-level (error|warn|info|debug), --log-format (json|text), --log-stderr (auto|on|off), and/or --log-file",
					Code:    clierrors.ExitUsage,
				}
			}

			slog.SetDefault(logger)

			ctx := observability.WithLogger(out.WithContext(cmd.Context()), logger)
			cmd.SetContext(ctx)

			if cleanup != nil {
				cmd.PostRunE = wrapPostRunCleanup(cmd.PostRunE, cleanup)
			}

			startTelemetry(ctx, cmd, logger)

			return nil
		},
	}

	flags.register(rootCmd.PersistentFlags())

	rootCmd.SuggestionsMinimumDistance = 2

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &clierrors.CLIError{
			Message: err.Error(),
			Hint:    fmt.Sprintf("Run '%s --help' for available flags", cmd.CommandPath()),
			Code:    clierrors.ExitUsage,
		}
	})

	rootCmd.AddCommand(
		newWatchCmd(),
		newLookupCmd(),
		newSteamCmd(),
		newProfileCmd(),
		newRelayCmd(),
		newConfigCmd(),
		newDoctorCmd(),
		newPathsCmd(),
		newVersionCmd(),
		newCompletionCmd(),
	)

	return rootCmd
}

// startTelemetry enables tracing when OTEL_ENABLED is set and flushes spans
// after the command.
func startTelemetry(ctx context.Context, cmd *cobra.Command, logger *slog.Logger) {
	shutdown, err := observability.SetupTelemetry(ctx, &observability.TelemetryConfig{
		Enabled: observability.IsTelemetryEnabled(),
		Version: version,
		Commit:  commit,
	})
	if err != nil {
		logger.Warn("telemetry initialization failed", slog.String("error", err.Error()))
	}

	if shutdown == nil {
		return
	}

	cmd.PostRunE = wrapNamedPostRunCleanup(cmd.PostRunE, "telemetry resources", func() error {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return shutdown(flushCtx)
	})
}

func wrapPostRunCleanup(postRun func(*cobra.Command, []string) error, cleanup func() error) func(*cobra.Command, []string) error {
	return wrapNamedPostRunCleanup(postRun, "logger resources", cleanup)
}

// wrapNamedPostRunCleanup runs cleanup after postRun, including when postRun
// fails. The postRun error wins.
func wrapNamedPostRunCleanup(postRun func(*cobra.Command, []string) error, name string, cleanup func() error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if postRun != nil {
			if err := postRun(cmd, args); err != nil {
				_ = cleanup()
				return err
			}
		}

		if err := cleanup(); err != nil {
			return fmt.Errorf("cleanup %s: %w", name, err)
		}

		return nil
	}
}

func pickBoolFlagOrEnv(flagValue bool, envKey string) bool {
	if flagValue {
		return true
	}

	switch strings.ToLower(strings.TrimSpace(os.Getenv(envKey))) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func pickFlagOrEnv(flagValue, envKey, fallback string) string {
	for _, v := range []string{flagValue, os.Getenv(envKey)} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}

	return fallback
}

// isInteractiveCommand reports whether cmd takes over the terminal. Auto
// stderr logging is turned off for those.
func isInteractiveCommand(cmd *cobra.Command) bool {
	if cmd.Name() != "watch" {
		return false
	}

	tui, err := cmd.Flags().GetBool("tui")

	return err == nil && tui
}
