package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/raaihank/codesense/internal/completion"
	"github.com/raaihank/codesense/internal/config"
	"github.com/raaihank/codesense/internal/explain"
	"github.com/raaihank/codesense/internal/logger"
	"github.com/raaihank/codesense/internal/ui"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

var (
	configPath string
	envFile    string
	verbose    bool

	cfg *config.Config
	log *logger.Logger

	rootCmd = &cobra.Command{
		Use:   "codesense",
		Short: "Explain programming errors in plain language",
		Long: `CodeSense sends an error message, and optionally the code that raised it,
to a hosted language model and explains what went wrong. Emails, URLs, keys and
other identifiers are masked first when privacy mode is on.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return bootstrap(cmd)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file loaded into the environment if present")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at the configured level instead of warnings only")

	rootCmd.AddCommand(explainCmd, redactCmd, historyCmd, cacheCmd, serveCmd, healthCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		warn := lipgloss.NewRenderer(os.Stderr).NewStyle().Foreground(lipgloss.Color("214"))
		fmt.Fprintln(os.Stderr, warn.Render(userMessage(err)))
		os.Exit(1)
	}
}

// bootstrap loads .env, the config file and the logger for every command.
func bootstrap(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}

	loaded, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	loggerConfig := logger.Config{
		Level:  loaded.Logging.Level,
		Format: loaded.Logging.Format,
	}
	if loaded.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled: loaded.Logging.File.Enabled,
			Path:    loaded.Logging.File.Path,
		}
	}

	l, err := logger.New(loggerConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// The server logs at the configured level; one-shot commands stay quiet.
	if cmd != serveCmd && !verbose {
		if err := l.SetLevel("warn"); err != nil {
			return err
		}
	}

	cfg, log = loaded, l
	return nil
}

// userMessage turns a command error into the line shown to the user.
func userMessage(err error) string {
	var failure *completion.Failure
	switch {
	case errors.Is(err, explain.ErrEmptyInput):
		return "Please enter an error message first."
	case errors.As(err, &failure):
		return "API Error: " + failure.Error()
	case errors.Is(err, ui.ErrAborted):
		return "Cancelled."
	case errors.Is(err, config.ErrMissingAPIKey):
		return "Configuration error: " + err.Error()
	default:
		return "Error: " + err.Error()
	}
}
