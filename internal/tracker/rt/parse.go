package rt

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/inovacc/subbot/internal/tracker"
)

// DateLayout is how RT renders transaction timestamps.
const DateLayout = "2006-01-02 15:04:05"

var (
	statusLine  = regexp.MustCompile(`^RT/\S+\s+(\d{3})\s*(.*)$`)
	searchLine  = regexp.MustCompile(`^(\d+): (.*)$`)
	createdLine = regexp.MustCompile(`# Ticket (\d+) created`)
	fieldLine   = regexp.MustCompile(`^([A-Za-z][\w-]*): ?(.*)$`)

	// History lines worth relaying: correspondence or creation by an
	// email-addressed author.
	incomingLine = []*regexp.Regexp{
		regexp.MustCompile(`^(\d+): Correspondence added by .+@.+`),
		regexp.MustCompile(`^(\d+): Ticket created by .+@.+`),
	}
)

// StatusError carries a non-200 RT status line.
type StatusError struct {
	Code int
	Text string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("rt returned %d %s", e.Code, e.Text)
}

// parseStatus splits an RT REST 1.0 response into its status code and
// the body after the status line.
func parseStatus(body string) (int, string, error) {
	first, rest, _ := strings.Cut(body, "\n")

	m := statusLine.FindStringSubmatch(strings.TrimSpace(first))
	if m == nil {
		return 0, "", fmt.Errorf("unexpected rt response: %q", first)
	}

	code, _ := strconv.Atoi(m[1])
	if code != 200 {
		return code, rest, &StatusError{Code: code, Text: m[2]}
	}

	return code, rest, nil
}

// parseSearch reads format=s search output: "<id>: <subject>" per line.
func parseSearch(body string) []tracker.Ticket {
	var tickets []tracker.Ticket

	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		m := searchLine.FindStringSubmatch(strings.TrimSpace(sc.Text()))
		if m == nil {
			continue
		}

		tickets = append(tickets, tracker.Ticket{ID: m[1], Subject: m[2]})
	}

	return tickets
}

// parseCreated extracts the new ticket id from a ticket/new response.
func parseCreated(body string) (string, error) {
	m := createdLine.FindStringSubmatch(body)
	if m == nil {
		return "", fmt.Errorf("ticket id missing from rt response: %q", strings.TrimSpace(body))
	}

	return m[1], nil
}

// parseHistory returns the transaction ids of incoming history lines.
func parseHistory(body string) []string {
	var ids []string

	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())

		for _, re := range incomingLine {
			if m := re.FindStringSubmatch(line); m != nil {
				ids = append(ids, m[1])
				break
			}
		}
	}

	return ids
}

// parseTransaction reads a single history entry. Content continues on
// indented lines until the next field; its whitespace is collapsed.
func parseTransaction(body string) (tracker.Transaction, error) {
	var (
		tx        tracker.Transaction
		content   []string
		inContent bool
	)

	sc := bufio.NewScanner(strings.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for sc.Scan() {
		line := sc.Text()

		m := fieldLine.FindStringSubmatch(line)
		if m == nil {
			if inContent {
				content = append(content, line)
			}

			continue
		}

		inContent = false
		key, value := m[1], strings.TrimSpace(m[2])

		switch key {
		case "id":
			tx.ID = value
		case "Ticket":
			tx.TicketID = value
		case "Creator":
			tx.Creator = value
		case "Type":
			tx.Type = value
		case "Created":
			t, err := time.ParseInLocation(DateLayout, value, time.UTC)
			if err != nil {
				return tx, fmt.Errorf("bad transaction timestamp %q: %w", value, err)
			}

			tx.Created = t
		case "Content":
			inContent = true
			content = append(content, value)
		}
	}

	if err := sc.Err(); err != nil {
		return tx, err
	}

	tx.Content = strings.Join(strings.Fields(strings.Join(content, " ")), " ")

	return tx, nil
}

// formatContent renders RT's "Field: value" form body. Continuation lines
// of multi-line values are indented by one space.
func formatContent(fields [][2]string) string {
	var b strings.Builder

	for _, f := range fields {
		b.WriteString(f[0])
		b.WriteString(": ")
		b.WriteString(strings.ReplaceAll(f[1], "\n", "\n "))
		b.WriteString("\n")
	}

	return b.String()
}

// quote escapes a value for TicketSQL.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}
