package notify

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/inovacc/subbot/internal/tracker"
)

// HistoryTruncate is the content budget of a relayed history entry.
const HistoryTruncate = 120

// TicketLine is one row of the tickets message.
type TicketLine struct {
	PID      string
	LastName string
	URL      string
	Subject  string
}

// MessageOptions shapes the tickets message.
type MessageOptions struct {
	// MaxItems caps the listed tickets; zero lists all.
	MaxItems int

	// Recipient is prepended to the message, e.g. "@arctic-team".
	Recipient string
}

// EscapeURL escapes '&' for Slack's link markup.
func EscapeURL(u string) string {
	return strings.ReplaceAll(u, "&", "&amp;")
}

// Plural returns singular when n is 1 and plural otherwise.
func Plural(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}

	return plural
}

// TicketsMessage lists the created or updated tickets. It returns an empty
// string when there is nothing to report.
func TicketsMessage(lines []TicketLine, opts MessageOptions) string {
	if len(lines) == 0 {
		return ""
	}

	var b strings.Builder

	if opts.Recipient != "" {
		b.WriteString(opts.Recipient)
		b.WriteString(" ")
	}

	n := len(lines)
	if n == 1 {
		b.WriteString("The following object was just created or updated:\n")
	} else {
		fmt.Fprintf(&b, "The following %d objects were just created or updated:\n", n)
	}

	shown := lines
	if opts.MaxItems > 0 && len(shown) > opts.MaxItems {
		shown = shown[:opts.MaxItems]
	}

	for _, l := range shown {
		b.WriteString("- ")
		b.WriteString(l.PID)

		if l.LastName != "" {
			fmt.Fprintf(&b, " (%s)", l.LastName)
		}

		fmt.Fprintf(&b, " <%s|%s>\n", EscapeURL(l.URL), l.Subject)
	}

	if rest := n - len(shown); rest > 0 {
		fmt.Fprintf(&b, "...and %d more %s\n", rest, Plural(rest, "ticket", "tickets"))
	}

	return b.String()
}

// HistoryEntry renders a relayed ticket transaction.
func HistoryEntry(tx tracker.Transaction, ticketURL string) string {
	kind := tx.Type

	switch tx.Type {
	case tracker.TypeCorrespond:
		kind = "Correspondence"
	case tracker.TypeCreate:
		kind = "Ticket created"
	}

	content, ellipsis := tx.Content, ""
	if utf8.RuneCountInString(content) > HistoryTruncate {
		content = string([]rune(content)[:HistoryTruncate])
		ellipsis = "..."
	}

	return fmt.Sprintf("%s by %s: \"%s%s\" on <%s|Ticket %s>",
		kind, tx.Creator, content, ellipsis, EscapeURL(ticketURL), tx.TicketID)
}

// AuthFailureText is posted when the tracker rejects the bot's login.
const AuthFailureText = "I failed to log into the ticket tracker. Something's wrong!"
