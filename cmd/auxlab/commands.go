package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/dshills/auxlab/internal/app"
	"github.com/dshills/auxlab/internal/config"
	"github.com/dshills/auxlab/internal/config/loader"
	"github.com/dshills/auxlab/internal/console"
	"github.com/dshills/auxlab/internal/engine/luaengine"
)

// scriptFailedError reports how many lines of a script failed.
type scriptFailedError struct {
	failed int
}

func (e *scriptFailedError) Error() string {
	return fmt.Sprintf("%d command(s) failed", e.failed)
}

func exitCode(err error) int {
	var sf *scriptFailedError
	if errors.As(err, &sf) {
		return 2
	}
	return 1
}

var flags struct {
	configPath string
	logFile    string
	logLevel   string
	noWatch    bool
	noHistory  bool
}

var rootCmd = &cobra.Command{
	Use:   "auxlab",
	Short: "Interactive console and debugger for the auxlab signal language",
	Long: `auxlab evaluates signal-processing commands, loads user-defined functions
from the search path and debugs them with breakpoints, stepping and
inspectors for signals, tables, text and binary data.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return session(cmd.Context(), func(ctx context.Context, c *console.Console) error {
			return c.RunTerminal(ctx)
		})
	},
}

var runCmd = &cobra.Command{
	Use:   "run <script>",
	Short: "Run a script of console commands and exit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		return session(cmd.Context(), func(ctx context.Context, c *console.Console) error {
			failed, err := c.RunScript(ctx, f)
			if err != nil {
				return err
			}
			if failed > 0 {
				return &scriptFailedError{failed: failed}
			}
			return nil
		})
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := loadSettings()
		if err != nil {
			return err
		}
		path := flags.configPath
		if path == "" {
			path = config.DefaultPath()
		}
		out, err := toml.Marshal(s)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", path, out)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "auxlab %s\n", versionString())
	},
}

func versionString() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
}

func init() {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("auxlab %s\n", versionString()))

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "settings file (TOML or YAML)")
	pf.StringVar(&flags.logFile, "log-file", "", "write logs to this file")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.BoolVar(&flags.noWatch, "no-watch", false, "do not reload UDF files when they change")
	pf.BoolVar(&flags.noHistory, "no-history", false, "do not load or save command history")

	rootCmd.AddCommand(runCmd, configCmd, versionCmd)
}

func loadSettings() (config.Settings, error) {
	path := flags.configPath
	if path == "" {
		path = config.DefaultPath()
	}
	s, err := config.Load(path, loader.NewEnvLoader(loader.EnvPrefix))
	if err != nil {
		return config.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	if flags.logLevel != "" {
		s.Console.LogLevel = flags.logLevel
	}
	return s, nil
}

// session builds the application, runs fn against a console and shuts
// everything down on return or on SIGINT/SIGTERM.
func session(parent context.Context, fn func(context.Context, *console.Console) error) error {
	if parent == nil {
		parent = context.Background()
	}
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	cfg := app.DefaultLoggerConfig()
	cfg.Level = app.ParseLogLevel(settings.Console.LogLevel)
	logger := app.NullLogger
	if flags.logFile != "" {
		f, err := app.OpenLogFile(flags.logFile)
		if err != nil {
			return err
		}
		defer f.Close()
		cfg.Output = f
		logger = app.NewLogger(cfg)
	}

	settingsPath := flags.configPath
	if settingsPath == "" {
		settingsPath = config.DefaultPath()
	}
	opts := app.Options{
		Engine:          luaengine.New(),
		Settings:        settings,
		SettingsPath:    settingsPath,
		BreakpointsPath: filepath.Join(config.Dir(), "breakpoints.json"),
		Logger:          logger,
		WatchFiles:      !flags.noWatch,
	}
	if !flags.noHistory {
		opts.HistoryPath = settings.Console.HistoryFile
		if opts.HistoryPath == "" {
			opts.HistoryPath = filepath.Join(config.Dir(), "history")
		}
	}

	application, err := app.New(opts)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		_ = application.Close()
		return fmt.Errorf("start: %w", err)
	}

	runErr := fn(ctx, console.New(application, os.Stdout))
	if err := application.Close(); err != nil {
		logger.Error("shutdown: %v", err)
	}
	if errors.Is(runErr, app.ErrQuit) || errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}
