// Package bot drives a single polling pass: list new objects, reconcile
// tickets, relay correspondence and advance the last-run marker.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/inovacc/subbot/internal/notify"
	"github.com/inovacc/subbot/internal/repository"
	"github.com/inovacc/subbot/internal/state"
	"github.com/inovacc/subbot/internal/tickets"
	"github.com/inovacc/subbot/internal/tracker"
)

// ObjectLister lists objects modified within a window.
type ObjectLister interface {
	ListObjects(ctx context.Context, from, to time.Time) (*repository.ObjectList, error)
}

// TicketReconciler is the ticket work of a pass.
type TicketReconciler interface {
	Reconcile(ctx context.Context, pids []string) ([]tickets.Ref, error)
	RecentCorrespondence(ctx context.Context, since time.Time) ([][]string, error)
}

// Options holds a Runner's collaborators.
type Options struct {
	State    state.Store
	Objects  ObjectLister
	Tracker  tracker.Tracker
	Tickets  TicketReconciler
	Notifier notify.Sender

	FormatID string
	Prefixes []string
	Message  notify.MessageOptions

	Logger *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Runner executes passes.
type Runner struct {
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// Report summarises a completed pass.
type Report struct {
	RunID          string
	Window         state.Window
	Count          int
	PIDs           []string
	Tickets        []tickets.Ref
	Correspondence int
}

// New creates a Runner.
func New(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Runner{
		opts:   opts,
		logger: logger,
		now:    now,
	}
}

// Test posts the test message and touches nothing else.
func (r *Runner) Test(ctx context.Context) error {
	r.logger.Info("sending a test message")

	if err := r.opts.Notifier.Test(ctx); err != nil {
		return fmt.Errorf("test message: %w", err)
	}

	return nil
}

// Run executes one pass. On any error the marker is left untouched so the
// next pass covers the same window again.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.New().String()}
	logger := r.logger.With(slog.String("run", report.RunID))

	last, ok, err := r.opts.State.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load last run: %w", err)
	}

	report.Window = state.NewWindow(last, ok, r.now())

	logger.Info("starting pass",
		slog.Time("from", report.Window.From),
		slog.Time("to", report.Window.To),
		slog.Bool("first_run", !ok),
	)

	if err := r.opts.Tracker.Login(ctx); err != nil {
		var authErr *tracker.AuthError
		if errors.As(err, &authErr) {
			r.send(ctx, logger, notify.AuthFailureText)
		}

		return nil, err
	}

	defer func() {
		if err := r.opts.Tracker.Close(); err != nil {
			logger.Warn("failed to close tracker session", slog.String("error", err.Error()))
		}
	}()

	list, err := r.opts.Objects.ListObjects(ctx, report.Window.From, report.Window.To)
	if err != nil {
		return nil, err
	}

	report.Count, err = list.Count()
	if err != nil {
		return nil, err
	}

	logger.Info("listed objects", slog.Int("count", report.Count))

	if report.Count > 0 {
		report.PIDs = list.QualifyingPIDs(r.opts.FormatID, r.opts.Prefixes)

		logger.Info("filtered objects", slog.Int("qualifying", len(report.PIDs)))

		report.Tickets, err = r.opts.Tickets.Reconcile(ctx, report.PIDs)
		if err != nil {
			return nil, err
		}

		if msg := notify.TicketsMessage(ticketLines(report.Tickets), r.opts.Message); msg != "" {
			r.send(ctx, logger, msg)
		}
	}

	relayed, err := r.opts.Tickets.RecentCorrespondence(ctx, report.Window.From)
	if err != nil {
		return nil, err
	}

	for _, entries := range relayed {
		for _, entry := range entries {
			r.send(ctx, logger, entry)
			report.Correspondence++
		}
	}

	if err := r.opts.State.Save(ctx, report.Window.To); err != nil {
		return nil, fmt.Errorf("save last run: %w", err)
	}

	if rec, ok := r.opts.State.(state.Recorder); ok {
		if err := rec.RecordRun(ctx, report.run(r.now())); err != nil {
			logger.Warn("failed to record run", slog.String("error", err.Error()))
		}
	}

	logger.Info("pass complete",
		slog.Int("tickets", len(report.Tickets)),
		slog.Int("correspondence", report.Correspondence),
	)

	return report, nil
}

// send posts text; failures are logged and otherwise ignored.
func (r *Runner) send(ctx context.Context, logger *slog.Logger, text string) {
	if err := r.opts.Notifier.Send(ctx, text); err != nil {
		logger.Warn("failed to post message",
			slog.String("sender", r.opts.Notifier.Name()),
			slog.String("error", err.Error()),
		)
	}
}

func ticketLines(refs []tickets.Ref) []notify.TicketLine {
	lines := make([]notify.TicketLine, 0, len(refs))
	for _, ref := range refs {
		lines = append(lines, notify.TicketLine{
			PID:      ref.PID,
			LastName: ref.LastName,
			URL:      ref.URL,
			Subject:  ref.Subject,
		})
	}

	return lines
}

func (rep *Report) run(finished time.Time) state.Run {
	ids := make([]string, 0, len(rep.Tickets))
	for _, t := range rep.Tickets {
		ids = append(ids, t.ID)
	}

	return state.Run{
		ID:             rep.RunID,
		From:           rep.Window.From,
		To:             rep.Window.To,
		Objects:        rep.Count,
		Qualifying:     len(rep.PIDs),
		Tickets:        ids,
		Correspondence: rep.Correspondence,
		FinishedAt:     finished.UTC(),
	}
}
