// Package rt implements tracker.Tracker against Request Tracker's REST 1.0
// interface.
package rt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/inovacc/subbot/internal/application"
	"github.com/inovacc/subbot/internal/tracker"
)

const searchLayout = "2006-01-02 15:04:05"

// Options configures a Client.
type Options struct {
	BaseURL  string
	User     string
	Password string
	Queue    string

	// Location is the zone RT's search interprets timestamps in.
	Location *time.Location

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client is an RT REST 1.0 session.
type Client struct {
	baseURL  string
	user     string
	password string
	queue    string
	location *time.Location
	http     *http.Client
	logger   *slog.Logger
	loggedIn bool
}

var _ tracker.Tracker = (*Client)(nil)

// New creates a Client. The session cookie is held in a private jar.
func New(opts Options) (*Client, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if opts.BaseURL == "" {
		return nil, errors.New("rt base URL is required")
	}

	if opts.Queue == "" {
		return nil, errors.New("rt queue is required")
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	client := &http.Client{Timeout: 60 * time.Second}
	if opts.HTTPClient != nil {
		c := *opts.HTTPClient
		client = &c
	}

	client.Jar = jar

	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	return &Client{
		baseURL:  strings.TrimSuffix(opts.BaseURL, "/"),
		user:     opts.User,
		password: opts.Password,
		queue:    opts.Queue,
		location: loc,
		http:     client,
		logger:   logger,
	}, nil
}

// Login posts the credentials and keeps the session cookie. Only a 401 or
// 403 status line is reported as *tracker.AuthError.
func (c *Client) Login(ctx context.Context) error {
	form := url.Values{}
	form.Set("user", c.user)
	form.Set("pass", c.password)

	body, err := c.do(ctx, http.MethodPost, c.restURL(""), form)
	if err != nil {
		return fmt.Errorf("rt login: %w", err)
	}

	if _, _, err := parseStatus(body); err != nil {
		var status *StatusError
		if errors.As(err, &status) && isAuthStatus(status.Code) {
			return &tracker.AuthError{Backend: "rt", Err: err}
		}

		return fmt.Errorf("rt login: %w", err)
	}

	c.loggedIn = true

	c.logger.Debug("logged into rt", slog.String("url", c.baseURL), slog.String("user", c.user))

	return nil
}

func (c *Client) SearchSubject(ctx context.Context, substr string) ([]tracker.Ticket, error) {
	query := fmt.Sprintf("Queue = %s AND Subject LIKE %s", quote(c.queue), quote(substr))

	return c.search(ctx, query, "")
}

func (c *Client) UpdatedSince(ctx context.Context, since time.Time) ([]tracker.Ticket, error) {
	after := tracker.SearchTime(since, c.location, searchLayout)
	query := fmt.Sprintf("Queue = %s AND LastUpdated > %s", quote(c.queue), quote(after))

	return c.search(ctx, query, "LastUpdated")
}

func (c *Client) search(ctx context.Context, query, orderBy string) ([]tracker.Ticket, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("format", "s")

	if orderBy != "" {
		q.Set("orderby", orderBy)
	}

	c.logger.Debug("rt search", slog.String("query", query))

	rest, err := c.call(ctx, http.MethodGet, c.restURL("search/ticket")+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	return parseSearch(rest), nil
}

func (c *Client) Create(ctx context.Context, subject, text string) (string, error) {
	content := formatContent([][2]string{
		{"id", "ticket/new"},
		{"Queue", c.queue},
		{"Subject", subject},
		{"Text", text},
	})

	form := url.Values{}
	form.Set("content", content)

	rest, err := c.call(ctx, http.MethodPost, c.restURL("ticket/new"), form)
	if err != nil {
		return "", fmt.Errorf("create ticket: %w", err)
	}

	return parseCreated(rest)
}

func (c *Client) Comment(ctx context.Context, id, text string) error {
	content := formatContent([][2]string{
		{"id", id},
		{"Action", "comment"},
		{"Text", text},
	})

	form := url.Values{}
	form.Set("content", content)

	if _, err := c.call(ctx, http.MethodPost, c.restURL("ticket/"+id+"/comment"), form); err != nil {
		return fmt.Errorf("comment on ticket %s: %w", id, err)
	}

	return nil
}

func (c *Client) Correspondence(ctx context.Context, ticketID string) ([]tracker.Transaction, error) {
	rest, err := c.call(ctx, http.MethodGet, c.restURL("ticket/"+ticketID+"/history"), nil)
	if err != nil {
		return nil, fmt.Errorf("history of ticket %s: %w", ticketID, err)
	}

	ids := parseHistory(rest)
	txs := make([]tracker.Transaction, 0, len(ids))

	for _, id := range ids {
		detail, err := c.call(ctx, http.MethodGet, c.restURL("ticket/"+ticketID+"/history/id/"+id), nil)
		if err != nil {
			return nil, fmt.Errorf("transaction %s of ticket %s: %w", id, ticketID, err)
		}

		tx, err := parseTransaction(detail)
		if err != nil {
			return nil, fmt.Errorf("transaction %s of ticket %s: %w", id, ticketID, err)
		}

		if tx.TicketID == "" {
			tx.TicketID = ticketID
		}

		txs = append(txs, tx)
	}

	return txs, nil
}

func (c *Client) TicketURL(id string) string {
	return c.baseURL + "/Ticket/Display.html?id=" + id
}

// Close logs out when a session is held.
func (c *Client) Close() error {
	if !c.loggedIn {
		return nil
	}

	c.loggedIn = false

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := c.do(ctx, http.MethodPost, c.restURL("logout"), url.Values{}); err != nil {
		return fmt.Errorf("rt logout: %w", err)
	}

	return nil
}

func isAuthStatus(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

func (c *Client) restURL(path string) string {
	return c.baseURL + "/REST/1.0/" + path
}

// call performs an authenticated request and strips the RT status line.
func (c *Client) call(ctx context.Context, method, u string, form url.Values) (string, error) {
	if !c.loggedIn {
		return "", tracker.ErrNoSession
	}

	body, err := c.do(ctx, method, u, form)
	if err != nil {
		return "", err
	}

	_, rest, err := parseStatus(body)
	if err != nil {
		return "", err
	}

	return rest, nil
}

func (c *Client) do(ctx context.Context, method, u string, form url.Values) (string, error) {
	var reader io.Reader
	if form != nil {
		reader = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", application.UserAgent)

	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}

	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s %s returned %d", method, u, resp.StatusCode)
	}

	return string(body), nil
}
