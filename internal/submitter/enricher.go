package submitter

import (
	"context"
	"errors"
	"log/slog"

	"github.com/inovacc/subbot/internal/repository"
)

// MetadataSource is the part of the repository client enrichment needs.
type MetadataSource interface {
	DatasetTitle(ctx context.Context, pid string) (string, error)
	Submitter(ctx context.Context, pid string) (string, error)
}

// Enricher looks up the display details of a pid. Every lookup failure is
// recovered here and reported as absent.
type Enricher struct {
	source   MetadataSource
	resolver *Resolver
	logger   *slog.Logger
}

// NewEnricher creates an Enricher.
func NewEnricher(source MetadataSource, resolver *Resolver, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Enricher{
		source:   source,
		resolver: resolver,
		logger:   logger,
	}
}

// Title returns the elided dataset title of pid.
func (e *Enricher) Title(ctx context.Context, pid string) (string, bool) {
	title, err := e.source.DatasetTitle(ctx, pid)
	if err != nil {
		e.logLookup("title", pid, err)
		return "", false
	}

	return title, title != ""
}

// LastName returns the resolved submitter label of pid.
func (e *Enricher) LastName(ctx context.Context, pid string) (string, bool) {
	sub, err := e.source.Submitter(ctx, pid)
	if err != nil {
		e.logLookup("submitter", pid, err)
		return "", false
	}

	name, ok := e.resolver.LastName(ctx, sub)

	return name, ok && name != ""
}

func (e *Enricher) logLookup(what, pid string, err error) {
	if errors.Is(err, repository.ErrNoToken) || errors.Is(err, repository.ErrNotFound) {
		e.logger.Debug("lookup skipped",
			slog.String("lookup", what),
			slog.String("pid", pid),
			slog.String("reason", err.Error()),
		)

		return
	}

	e.logger.Warn("lookup failed",
		slog.String("lookup", what),
		slog.String("pid", pid),
		slog.String("error", err.Error()),
	)
}
