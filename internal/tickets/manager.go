// Package tickets keeps one support ticket per dataset series: new pids
// open a ticket, updated pids comment on the existing one.
package tickets

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/inovacc/subbot/internal/config"
	"github.com/inovacc/subbot/internal/notify"
	"github.com/inovacc/subbot/internal/tracker"
)

// Enricher supplies the optional display details of a pid.
type Enricher interface {
	Title(ctx context.Context, pid string) (string, bool)
	LastName(ctx context.Context, pid string) (string, bool)
}

// Ref describes the ticket a pid was reconciled to.
type Ref struct {
	PID      string
	ID       string
	Subject  string
	URL      string
	LastName string
	Created  bool
}

// Manager reconciles pids against a tracker.
type Manager struct {
	tracker  tracker.Tracker
	enricher Enricher
	links    config.LinksConfig
	logger   *slog.Logger
}

// Options configures a Manager.
type Options struct {
	Tracker  tracker.Tracker
	Enricher Enricher
	Links    config.LinksConfig
	Logger   *slog.Logger
}

// NewManager creates a Manager.
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		tracker:  opts.Tracker,
		enricher: opts.Enricher,
		links:    opts.Links,
		logger:   logger,
	}
}

// VersionlessPID strips the final dot segment:
// "arctic-data.3.7" becomes "arctic-data.3". A pid without a dot is
// returned unchanged.
func VersionlessPID(pid string) string {
	i := strings.LastIndex(pid, ".")
	if i < 0 {
		return pid
	}

	return pid[:i]
}

// FindTicket returns the first ticket whose subject contains the
// versionless pid.
func (m *Manager) FindTicket(ctx context.Context, pid string) (tracker.Ticket, bool, error) {
	found, err := m.tracker.SearchSubject(ctx, VersionlessPID(pid))
	if err != nil {
		return tracker.Ticket{}, false, err
	}

	if len(found) == 0 {
		return tracker.Ticket{}, false, nil
	}

	return found[0], true, nil
}

// CreateTicket opens a ticket for pid and returns its reference.
func (m *Manager) CreateTicket(ctx context.Context, pid string) (Ref, error) {
	last, hasLast := m.enricher.LastName(ctx, pid)

	return m.create(ctx, pid, last, hasLast)
}

func (m *Manager) create(ctx context.Context, pid, last string, hasLast bool) (Ref, error) {
	title, hasTitle := m.enricher.Title(ctx, pid)

	if !hasLast {
		last = ""
	}

	if !hasTitle {
		title = ""
	}

	subject := Subject(pid, title, last)

	id, err := m.tracker.Create(ctx, subject, m.ticketText(pid))
	if err != nil {
		return Ref{}, err
	}

	m.logger.Info("created ticket",
		slog.String("pid", pid),
		slog.String("ticket", id),
		slog.String("subject", subject),
	)

	return Ref{
		PID:      pid,
		ID:       id,
		Subject:  subject,
		URL:      m.tracker.TicketURL(id),
		LastName: last,
		Created:  true,
	}, nil
}

// ReplyToTicket notes on ticket id that pid changed.
func (m *Manager) ReplyToTicket(ctx context.Context, id, pid string) error {
	text := fmt.Sprintf("PID %s was updated and needs moderation. If you aren't sure why this comment was made, please see the README at %s.",
		pid, m.links.ReadmeURL)

	if err := m.tracker.Comment(ctx, id, text); err != nil {
		return err
	}

	m.logger.Info("commented on ticket",
		slog.String("pid", pid),
		slog.String("ticket", id),
	)

	return nil
}

// Reconcile finds or creates one ticket per pid, in input order.
func (m *Manager) Reconcile(ctx context.Context, pids []string) ([]Ref, error) {
	refs := make([]Ref, 0, len(pids))

	if len(pids) == 0 {
		return refs, nil
	}

	for _, pid := range pids {
		last, hasLast := m.enricher.LastName(ctx, pid)

		ticket, found, err := m.FindTicket(ctx, pid)
		if err != nil {
			return nil, fmt.Errorf("find ticket for %s: %w", pid, err)
		}

		if !found {
			ref, err := m.create(ctx, pid, last, hasLast)
			if err != nil {
				return nil, fmt.Errorf("create ticket for %s: %w", pid, err)
			}

			refs = append(refs, ref)

			continue
		}

		if err := m.ReplyToTicket(ctx, ticket.ID, pid); err != nil {
			return nil, fmt.Errorf("reply to ticket %s for %s: %w", ticket.ID, pid, err)
		}

		if !hasLast {
			last = ""
		}

		refs = append(refs, Ref{
			PID:      pid,
			ID:       ticket.ID,
			Subject:  ticket.Subject,
			URL:      m.tracker.TicketURL(ticket.ID),
			LastName: last,
		})
	}

	return refs, nil
}

// RecentCorrespondence returns, per ticket updated after since, the
// formatted correspondence created strictly after since.
func (m *Manager) RecentCorrespondence(ctx context.Context, since time.Time) ([][]string, error) {
	updated, err := m.tracker.UpdatedSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("recently updated tickets: %w", err)
	}

	out := make([][]string, 0, len(updated))

	for _, t := range updated {
		txs, err := m.tracker.Correspondence(ctx, t.ID)
		if err != nil {
			return nil, err
		}

		var entries []string

		for _, tx := range txs {
			if !tx.Created.After(since) {
				continue
			}

			if tx.TicketID == "" {
				tx.TicketID = t.ID
			}

			entries = append(entries, notify.HistoryEntry(tx, m.tracker.TicketURL(tx.TicketID)))
		}

		m.logger.Debug("checked ticket correspondence",
			slog.String("ticket", t.ID),
			slog.Int("transactions", len(txs)),
			slog.Int("new", len(entries)),
		)

		out = append(out, entries)
	}

	return out, nil
}

// Subject builds a ticket subject from whichever details are available.
func Subject(pid, title, last string) string {
	switch {
	case last != "" && title != "":
		return fmt.Sprintf("%s: %s (%s)", last, title, pid)
	case title != "":
		return fmt.Sprintf("%s (%s)", title, pid)
	case last != "":
		return fmt.Sprintf("%s (%s)", last, pid)
	default:
		return pid
	}
}

func (m *Manager) ticketText(pid string) string {
	return fmt.Sprintf("A new submission just came in. View it here: %s%s. "+
		"This ticket was automatically created by the submissions bot because the PID %s was created/modified. "+
		"See %s for more information on what to do. "+
		"If you aren't sure why this ticket was created, please see the README at %s.",
		m.links.CatalogURL, pid, pid, m.links.HandlingDocURL, m.links.ReadmeURL)
}
