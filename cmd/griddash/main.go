package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/npratt/griddash/internal/app"
	"github.com/npratt/griddash/internal/config"
	"github.com/npratt/griddash/internal/dashboard"
	"github.com/npratt/griddash/internal/shutdown"
	"github.com/npratt/griddash/internal/tui"
)

var version = "dev"

func main() {
	logLevel := &slog.LevelVar{}
	logger := NewJSONLogger(os.Stderr, logLevel)

	viper.SetEnvPrefix("GRIDDASH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd := newRootCmd(logger, logLevel)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Log output goes to logger, whose
// level is raised to debug by --verbose.
func newRootCmd(logger *slog.Logger, logLevel *slog.LevelVar) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "griddash",
		Short: "Terminal dashboard of live JSON tables",
		Long: `griddash draws a grid of tables in the terminal. Each table shows
static rows, a local JSON file or a remote JSON endpoint, refreshed on its
own interval. Failing sources keep their last good rows and are retried
with backoff. The tables file is reloaded whenever it changes.`,
		SilenceUsage: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().Bool(FlagVerbose, false, "Enable verbose (debug) logging")
	rootCmd.PersistentFlags().String(FlagConfig, "", "Config file path (default: .griddash/config.yaml)")
	rootCmd.PersistentFlags().String(FlagTables, "", "Tables file path (default: tables.json)")
	rootCmd.PersistentFlags().String(FlagLogFile, "", "Log file path used while the TUI is active")

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})

	// Version command
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "griddash %s\n", version)
		},
	}

	// Run command
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start the dashboard",
		Long: `Start the dashboard.

The TUI is used when stdout is a terminal. Otherwise griddash runs headless,
refreshing tables and logging the outcomes until interrupted. --tui forces
the display; without a terminal it prints the grid whenever it changes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, logger, logLevel)
			if err != nil {
				return err
			}

			// Determine TUI mode: explicit flag > auto-detect from TTY
			tuiEnabled := viper.GetBool(FlagTUI)
			if !cmd.Flags().Changed(FlagTUI) {
				tuiEnabled = tui.IsTerminal()
			}

			// TUI mode: redirect logs to a file before anything logs
			appLogger := logger
			if tuiEnabled {
				logResult, err := SetupFileLogger(cfg.Paths.Log, logLevel, cfg.LogRotation)
				if err != nil {
					return err
				}
				defer func() { _ = logResult.Close() }()
				appLogger = logResult.Logger
				slog.SetDefault(appLogger)
			}

			a, err := app.New(cfg, app.WithLogger(appLogger))
			if err != nil {
				return err
			}

			var ui app.UI
			if tuiEnabled {
				ui = tui.New(a,
					tui.WithOnRefresh(a.Refresh),
					tui.WithFrameInterval(cfg.UI.FrameInterval),
				)
			}

			appLogger.Info("griddash starting",
				"version", version,
				"tables", cfg.Tables,
				"tui", tuiEnabled,
				"watch", cfg.Watch.Enabled,
			)

			return shutdown.Run(cmd.Context(), appLogger, shutdownTimeout, func(ctx context.Context) error {
				return a.Run(ctx, ui)
			})
		},
	}
	runCmd.Flags().Bool(FlagTUI, false, "Enable terminal UI (default: when stdout is a terminal)")
	runCmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})

	// Plain "griddash" behaves like "griddash run".
	rootCmd.RunE = runCmd.RunE
	rootCmd.Flags().AddFlagSet(runCmd.Flags())

	// Snapshot command
	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Refresh every table once and print the grid",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, logger, logLevel)
			if err != nil {
				return err
			}

			a, err := app.New(cfg, app.WithLogger(logger))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), shutdown.Signals...)
			defer stop()

			snap := a.Once(ctx)
			if n := snap.Failing(); n > 0 {
				logger.Warn("some tables failed to refresh", "failing", n)
			}

			width := viper.GetInt(FlagWidth)
			if width <= 0 {
				width, _ = tui.TerminalSize()
			}
			if width <= 0 {
				width = defaultWidth
			}

			grid := tui.RenderGrid(snap, width, tui.GridHeight(snap, width), time.Now())
			_, err = fmt.Fprintln(cmd.OutOrStdout(), grid)
			return err
		},
	}
	snapshotCmd.Flags().Int(FlagWidth, 0, "Output width (default: terminal width or 100)")
	snapshotCmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})

	// Validate command
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the tables file and describe the grid",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, logger, logLevel)
			if err != nil {
				return err
			}

			layout, err := dashboard.Load(cfg.Tables)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n%s", cfg.Tables, layout.Summary())
			return err
		},
	}

	// Register all commands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(validateCmd)

	return rootCmd
}

// loadConfig applies --verbose, loads settings from files, env and flags,
// and resolves paths against the working directory.
func loadConfig(cmd *cobra.Command, logger *slog.Logger, logLevel *slog.LevelVar) (*config.Config, error) {
	if viper.GetBool(FlagVerbose) {
		logLevel.Set(slog.LevelDebug)
		logger.Debug("verbose logging enabled")
	}

	cfg, err := config.LoadConfig(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// Apply CLI flag overrides (only if explicitly set)
	if cmd.Flags().Changed(FlagLogFile) {
		cfg.Paths.Log = viper.GetString(FlagLogFile)
	}

	if err := config.ResolvePaths(cfg, ""); err != nil {
		return nil, fmt.Errorf("resolve paths: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
