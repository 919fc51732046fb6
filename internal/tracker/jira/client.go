// Package jira implements tracker.Tracker on a Jira project: the project
// stands in for the queue, the summary for the subject and comments for
// correspondence.
package jira

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gojira "github.com/andygrunwald/go-jira/v2/cloud"
	"github.com/inovacc/subbot/internal/tracker"
)

const (
	// jqlLayout is the JQL date literal format, minute precision.
	jqlLayout = "2006/01/02 15:04"

	// timeLayout is how the REST API renders timestamps.
	timeLayout = "2006-01-02T15:04:05.000-0700"

	defaultIssueType = "Task"
	searchPageSize   = 50
)

// Options configures a Client.
type Options struct {
	BaseURL   string
	Email     string
	Token     string
	Project   string
	IssueType string

	// Location is the zone JQL date literals are read in; it should be
	// the API user's profile zone.
	Location *time.Location

	Logger *slog.Logger
}

// Client is a Jira-backed tracker.
type Client struct {
	client    *gojira.Client
	baseURL   string
	email     string
	accountID string
	project   string
	issueType string
	location  *time.Location
	logger    *slog.Logger
}

var _ tracker.Tracker = (*Client)(nil)

// New creates a Client authenticated with an API token.
func New(opts Options) (*Client, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if opts.Token == "" {
		return nil, fmt.Errorf("API token is required")
	}

	if opts.Email == "" {
		return nil, fmt.Errorf("email is required")
	}

	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	if opts.Project == "" {
		return nil, fmt.Errorf("project key is required")
	}

	tp := gojira.BasicAuthTransport{
		Username: opts.Email,
		APIToken: opts.Token,
	}

	client, err := gojira.NewClient(opts.BaseURL, tp.Client())
	if err != nil {
		return nil, fmt.Errorf("failed to create Jira client: %w", err)
	}

	issueType := opts.IssueType
	if issueType == "" {
		issueType = defaultIssueType
	}

	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	return &Client{
		client:    client,
		baseURL:   strings.TrimSuffix(opts.BaseURL, "/"),
		email:     opts.Email,
		project:   opts.Project,
		issueType: issueType,
		location:  loc,
		logger:    logger,
	}, nil
}

// Login validates the credentials by fetching the current user, whose
// account id later identifies the bot's own issues and comments. Only a
// 401 or 403 is reported as *tracker.AuthError.
func (c *Client) Login(ctx context.Context) error {
	user, resp, err := c.client.User.GetCurrentUser(ctx)
	if err != nil {
		if resp != nil && resp.Response != nil && isAuthStatus(resp.StatusCode) {
			return &tracker.AuthError{Backend: "jira", Err: err}
		}

		return fmt.Errorf("jira login: %w", err)
	}

	c.accountID = user.AccountID

	c.logger.Debug("connected to Jira",
		slog.String("url", c.baseURL),
		slog.String("user", user.DisplayName),
		slog.String("account", user.AccountID),
	)

	return nil
}

func (c *Client) SearchSubject(ctx context.Context, substr string) ([]tracker.Ticket, error) {
	jql := fmt.Sprintf(`project = "%s" AND summary ~ "\"%s\"" ORDER BY created ASC`, c.project, escapeJQL(substr))

	return c.search(ctx, jql)
}

func (c *Client) UpdatedSince(ctx context.Context, since time.Time) ([]tracker.Ticket, error) {
	after := tracker.SearchTime(since, c.location, jqlLayout)
	jql := fmt.Sprintf(`project = "%s" AND updated > "%s" ORDER BY updated ASC`, c.project, after)

	return c.search(ctx, jql)
}

// search pages through every match of jql.
func (c *Client) search(ctx context.Context, jql string) ([]tracker.Ticket, error) {
	c.logger.Debug("jira search", slog.String("jql", jql))

	var tickets []tracker.Ticket

	opts := &gojira.SearchOptions{MaxResults: searchPageSize}

	for {
		issues, resp, err := c.client.Issue.Search(ctx, jql, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to search issues: %w", err)
		}

		for _, issue := range issues {
			t := tracker.Ticket{ID: issue.Key}
			if issue.Fields != nil {
				t.Subject = issue.Fields.Summary
			}

			tickets = append(tickets, t)
		}

		opts.StartAt += len(issues)

		if len(issues) == 0 || resp == nil || opts.StartAt >= resp.Total {
			break
		}

		c.logger.Debug("fetching next search page",
			slog.Int("start_at", opts.StartAt),
			slog.Int("total", resp.Total),
		)
	}

	return tickets, nil
}

func (c *Client) Create(ctx context.Context, subject, text string) (string, error) {
	issue := &gojira.Issue{
		Fields: &gojira.IssueFields{
			Project:     gojira.Project{Key: c.project},
			Summary:     subject,
			Description: text,
			Type:        gojira.IssueType{Name: c.issueType},
		},
	}

	created, _, err := c.client.Issue.Create(ctx, issue)
	if err != nil {
		return "", fmt.Errorf("failed to create issue: %w", err)
	}

	return created.Key, nil
}

func (c *Client) Comment(ctx context.Context, id, text string) error {
	if _, _, err := c.client.Issue.AddComment(ctx, id, &gojira.Comment{Body: text}); err != nil {
		return fmt.Errorf("failed to comment on %s: %w", id, err)
	}

	return nil
}

type jiraUser struct {
	AccountID    string `json:"accountId"`
	EmailAddress string `json:"emailAddress"`
	DisplayName  string `json:"displayName"`
}

func (u *jiraUser) label() string {
	if u == nil {
		return ""
	}

	if u.EmailAddress != "" {
		return u.EmailAddress
	}

	return u.DisplayName
}

type issueHistory struct {
	Key    string `json:"key"`
	Fields struct {
		Created     string    `json:"created"`
		Creator     *jiraUser `json:"creator"`
		Description string    `json:"description"`
		Comment     struct {
			Comments []struct {
				ID      string    `json:"id"`
				Author  *jiraUser `json:"author"`
				Body    string    `json:"body"`
				Created string    `json:"created"`
			} `json:"comments"`
		} `json:"comment"`
	} `json:"fields"`
}

// isSelf reports whether u is the account the bot authenticates as.
func (c *Client) isSelf(u *jiraUser) bool {
	if u == nil {
		return false
	}

	if c.accountID != "" && u.AccountID == c.accountID {
		return true
	}

	return u.EmailAddress != "" && strings.EqualFold(u.EmailAddress, c.email)
}

// Correspondence maps issue creation to a Create transaction and each
// comment to a Correspond transaction. Issues and comments authored by
// the bot itself are left out.
func (c *Client) Correspondence(ctx context.Context, ticketID string) ([]tracker.Transaction, error) {
	path := "rest/api/2/issue/" + url.PathEscape(ticketID) + "?fields=created,creator,description,comment"

	req, err := c.client.NewRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var h issueHistory
	if _, err := c.client.Do(req, &h); err != nil {
		return nil, fmt.Errorf("failed to get history of %s: %w", ticketID, err)
	}

	created, err := time.Parse(timeLayout, h.Fields.Created)
	if err != nil {
		return nil, fmt.Errorf("bad created time on %s: %w", ticketID, err)
	}

	var txs []tracker.Transaction

	if !c.isSelf(h.Fields.Creator) {
		txs = append(txs, tracker.Transaction{
			ID:       ticketID,
			TicketID: ticketID,
			Type:     tracker.TypeCreate,
			Creator:  h.Fields.Creator.label(),
			Created:  created.UTC(),
			Content:  strings.Join(strings.Fields(h.Fields.Description), " "),
		})
	}

	for _, cm := range h.Fields.Comment.Comments {
		if c.isSelf(cm.Author) {
			continue
		}

		at, err := time.Parse(timeLayout, cm.Created)
		if err != nil {
			return nil, fmt.Errorf("bad comment time on %s: %w", ticketID, err)
		}

		txs = append(txs, tracker.Transaction{
			ID:       cm.ID,
			TicketID: ticketID,
			Type:     tracker.TypeCorrespond,
			Creator:  cm.Author.label(),
			Created:  at.UTC(),
			Content:  strings.Join(strings.Fields(cm.Body), " "),
		})
	}

	return txs, nil
}

func (c *Client) TicketURL(id string) string {
	return c.baseURL + "/browse/" + id
}

// Close is a no-op: API-token auth holds no server-side session.
func (c *Client) Close() error {
	return nil
}

func isAuthStatus(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

func escapeJQL(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
