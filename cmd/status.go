package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/inovacc/subbot/internal/config"
	"github.com/inovacc/subbot/internal/state"
	"github.com/spf13/cobra"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last-run marker and recent runs",
	Long: `Show the window the next pass will cover.

With the bolt state backend the most recent runs are listed as well.

Examples:
  subbot status
  subbot status --state-backend bolt --limit 5`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().IntVar(&statusLimit, "limit", 10, "Number of recent runs to show (bolt backend)")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFlags.Options())
	if err != nil {
		return err
	}

	store, err := state.Open(cfg)
	if err != nil {
		return err
	}

	defer func() { _ = store.Close() }()

	ctx := runContext(cmd)

	last, ok, err := store.Load(ctx)
	if err != nil {
		return err
	}

	var runs []state.Run
	if rec, isRecorder := store.(state.Recorder); isRecorder {
		runs, err = rec.Runs(ctx, statusLimit)
		if err != nil {
			return err
		}
	}

	printStatus(cmd.OutOrStdout(), cfg, last, ok, runs, time.Now())

	return nil
}

func printStatus(w io.Writer, cfg *config.Config, last time.Time, ok bool, runs []state.Run, now time.Time) {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14"))

	_, _ = fmt.Fprintln(w, headerStyle.Render("subbot status"))
	_, _ = fmt.Fprintf(w, "%s %s (%s)\n", labelStyle.Render("state:  "), cfg.State.Path, cfg.State.Backend)

	if !ok {
		_, _ = fmt.Fprintf(w, "%s %s\n", labelStyle.Render("marker: "), valueStyle.Render("none (next pass starts now)"))
	} else {
		_, _ = fmt.Fprintf(w, "%s %s (%s ago)\n",
			labelStyle.Render("marker: "),
			valueStyle.Render(state.FormatMarker(last)),
			now.Sub(last).Round(time.Second),
		)
	}

	if len(runs) == 0 {
		return
	}

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "%s\n", headerStyle.Render(fmt.Sprintf("%-36s  %-27s  %7s  %10s  %7s  %5s",
		"RUN", "TO", "OBJECTS", "QUALIFYING", "TICKETS", "CORR")))

	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%-36s  %-27s  %7d  %10d  %7d  %5d\n",
			r.ID, state.FormatMarker(r.To), r.Objects, r.Qualifying, len(r.Tickets), r.Correspondence)
	}
}
