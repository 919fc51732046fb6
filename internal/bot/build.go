package bot

import (
	"fmt"
	"log/slog"

	"github.com/inovacc/subbot/internal/config"
	"github.com/inovacc/subbot/internal/notify"
	"github.com/inovacc/subbot/internal/repository"
	"github.com/inovacc/subbot/internal/state"
	"github.com/inovacc/subbot/internal/submitter"
	"github.com/inovacc/subbot/internal/tickets"
	"github.com/inovacc/subbot/internal/tracker"
	"github.com/inovacc/subbot/internal/tracker/jira"
	"github.com/inovacc/subbot/internal/tracker/rt"
)

// NewNotifier builds the chat sender from cfg.
func NewNotifier(cfg *config.Config) *notify.SlackSender {
	return notify.NewSlackSender(notify.WithWebhook(cfg.Chat.WebhookURL))
}

// NewTracker builds the tracker backend selected by cfg.
func NewTracker(cfg *config.Config, logger *slog.Logger) (tracker.Tracker, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("tracker time zone: %w", err)
	}

	switch cfg.Tracker.Kind {
	case config.TrackerRT:
		return rt.New(rt.Options{
			BaseURL:  cfg.Tracker.URL,
			User:     cfg.Tracker.User,
			Password: cfg.Tracker.Password,
			Queue:    cfg.Tracker.Queue,
			Location: loc,
			Logger:   logger,
		})
	case config.TrackerJira:
		return jira.New(jira.Options{
			BaseURL:  cfg.Tracker.URL,
			Email:    cfg.Tracker.User,
			Token:    cfg.Tracker.Password,
			Project:  cfg.Tracker.Queue,
			Location: loc,
			Logger:   logger,
		})
	default:
		return nil, fmt.Errorf("unknown tracker %q", cfg.Tracker.Kind)
	}
}

// FromConfig wires a Runner from cfg. The caller closes the returned
// state store.
func FromConfig(cfg *config.Config, logger *slog.Logger) (*Runner, state.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store, err := state.Open(cfg)
	if err != nil {
		return nil, nil, err
	}

	trk, err := NewTracker(cfg, logger)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	repo := repository.New(repository.Options{
		BaseURL:     cfg.Repository.BaseURL,
		Token:       cfg.Repository.Token,
		TitleLength: cfg.Repository.TitleLength,
		Logger:      logger,
	})

	resolver := submitter.NewResolver(submitter.ResolverOptions{
		OrcidURL: cfg.Links.OrcidURL,
		Logger:   logger,
	})

	manager := tickets.NewManager(tickets.Options{
		Tracker:  trk,
		Enricher: submitter.NewEnricher(repo, resolver, logger),
		Links:    cfg.Links,
		Logger:   logger,
	})

	runner := New(Options{
		State:    store,
		Objects:  repo,
		Tracker:  trk,
		Tickets:  manager,
		Notifier: NewNotifier(cfg),
		FormatID: cfg.FormatID,
		Prefixes: cfg.Prefixes,
		Message: notify.MessageOptions{
			MaxItems:  cfg.Chat.MaxItems,
			Recipient: cfg.Chat.Recipient,
		},
		Logger: logger,
	})

	return runner, store, nil
}
