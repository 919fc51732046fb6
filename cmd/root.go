package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/inovacc/subbot/internal/application"
	"github.com/inovacc/subbot/internal/bot"
	"github.com/inovacc/subbot/internal/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	testFlag  bool
	verbose   bool
	logFormat string

	configFlags *config.Flags
)

var rootCmd = &cobra.Command{
	Use:   application.AppName,
	Short: "Ticket and chat notifications for new repository submissions",
	Long: `subbot polls a Member Node for metadata objects created or updated since
its previous run, opens or updates a support ticket for each new submission,
relays new ticket correspondence, and posts a summary to a chat webhook.

Run it from a scheduler (cron, systemd timer); each invocation is one pass.

Examples:
  subbot
  subbot --test
  subbot --config /etc/subbot.yaml --verbose`,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE:         runPass,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVarP(&testFlag, "test", "t", false, "Send a test message to chat and exit")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "auto", "Log format: auto, text or json (auto picks text on a terminal)")

	configFlags = config.BindFlags(rootCmd.PersistentFlags())
}

func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	format := logFormat
	if format == "auto" {
		format = "json"
		if isTerminal(w) {
			format = "text"
		}
	}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}

// isTerminal reports whether w is an interactive terminal. Scheduled
// passes log to a pipe or journal and get JSON.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func runPass(cmd *cobra.Command, _ []string) error {
	logger := newLogger(cmd.ErrOrStderr())

	cfg, err := config.Load(configFlags.Options())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(runContext(cmd), os.Interrupt)
	defer stop()

	if testFlag {
		if err := cfg.ValidateChat(); err != nil {
			return err
		}

		runner := bot.New(bot.Options{Notifier: bot.NewNotifier(cfg), Logger: logger})
		if err := runner.Test(ctx); err != nil {
			return err
		}

		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Test message sent.")

		return nil
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	runner, store, err := bot.FromConfig(cfg, logger)
	if err != nil {
		return err
	}

	defer func() { _ = store.Close() }()

	report, err := runner.Run(ctx)
	if err != nil {
		logger.Error("pass failed", slog.String("error", err.Error()))
		return err
	}

	logger.Debug("pass report",
		slog.String("run", report.RunID),
		slog.Int("objects", report.Count),
		slog.Int("qualifying", len(report.PIDs)),
	)

	return nil
}

func runContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}

	return context.Background()
}
