// Package tracker defines the ticketing-system operations the bot needs.
// Backends live in subpackages: rt (Request Tracker REST 1.0) and jira.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Transaction types relayed to chat.
const (
	TypeCorrespond = "Correspond"
	TypeCreate     = "Create"
)

// ErrNoSession is returned when an operation runs before Login.
var ErrNoSession = errors.New("tracker session not established")

// Ticket identifies a ticket.
type Ticket struct {
	ID      string
	Subject string
}

// Transaction is one entry of a ticket's history.
type Transaction struct {
	ID       string
	TicketID string
	Type     string
	Creator  string
	Created  time.Time
	Content  string
}

// Tracker is a ticketing system scoped to a single queue.
type Tracker interface {
	// Login acquires the session every other call uses. A rejected
	// login is reported as *AuthError.
	Login(ctx context.Context) error

	// SearchSubject returns tickets whose subject contains substr.
	SearchSubject(ctx context.Context, substr string) ([]Ticket, error)

	// Create opens a ticket and returns its id.
	Create(ctx context.Context, subject, text string) (string, error)

	// Comment adds an internal comment to a ticket.
	Comment(ctx context.Context, id, text string) error

	// UpdatedSince returns tickets updated after since.
	UpdatedSince(ctx context.Context, since time.Time) ([]Ticket, error)

	// Correspondence returns the ticket's creation and correspondence
	// transactions, oldest first.
	Correspondence(ctx context.Context, ticketID string) ([]Transaction, error)

	// TicketURL returns the browser URL of a ticket.
	TicketURL(id string) string

	// Close releases the session.
	Close() error
}

// AuthError indicates the tracker rejected our credentials.
type AuthError struct {
	Backend string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed: %v", e.Backend, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// SearchTime renders since in loc with the layout the tracker's search
// syntax accepts. Search APIs compare against naive local timestamps.
func SearchTime(since time.Time, loc *time.Location, layout string) string {
	if loc == nil {
		loc = time.UTC
	}

	return since.In(loc).Format(layout)
}
