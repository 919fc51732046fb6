// Package repository talks to the Member Node REST API: object listings,
// science metadata and system metadata.
package repository

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/inovacc/subbot/internal/application"
	"golang.org/x/oauth2"
)

// DateLayout is the timestamp layout the listing endpoint expects.
const DateLayout = "2006-01-02T15:04:05Z"

// DefaultTitleLength is the display budget for dataset titles.
const DefaultTitleLength = 50

// Options configures a Client.
type Options struct {
	BaseURL     string
	Token       string
	TitleLength int
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// Client is a Member Node API client.
type Client struct {
	baseURL     string
	hasToken    bool
	titleLength int
	http        *http.Client
	authed      *http.Client
	logger      *slog.Logger
}

// New creates a Client. Authenticated lookups use a bearer-token client
// built on the same transport as anonymous ones.
func New(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := opts.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: 60 * time.Second}
	}

	titleLength := opts.TitleLength
	if titleLength <= 0 {
		titleLength = DefaultTitleLength
	}

	c := &Client{
		baseURL:     strings.TrimSuffix(opts.BaseURL, "/"),
		titleLength: titleLength,
		http:        base,
		logger:      logger,
	}

	if opts.Token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token, TokenType: "Bearer"})
		c.authed = oauth2.NewClient(ctx, ts)
		c.authed.Timeout = base.Timeout
		c.hasToken = true
	}

	return c
}

// ListObjects fetches objects modified in [from, to].
func (c *Client) ListObjects(ctx context.Context, from, to time.Time) (*ObjectList, error) {
	q := url.Values{}
	q.Set("fromDate", from.UTC().Format(DateLayout))
	q.Set("toDate", to.UTC().Format(DateLayout))

	u := c.baseURL + "/object?" + q.Encode()

	c.logger.Debug("listing objects",
		slog.String("from", q.Get("fromDate")),
		slog.String("to", q.Get("toDate")),
	)

	status, body, err := c.get(ctx, c.http, u)
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}

	if status != http.StatusOK {
		return nil, &LookupError{Op: "list objects", URL: u, StatusCode: status}
	}

	list, err := ParseObjectList(body)
	if err != nil {
		c.logger.Error("failed to parse object listing",
			slog.String("error", err.Error()),
			slog.String("body", string(body)),
		)

		return nil, err
	}

	return list, nil
}

// DatasetTitle returns the first title element of the object's science
// metadata, elided to the configured length.
func (c *Client) DatasetTitle(ctx context.Context, pid string) (string, error) {
	title, err := c.firstElement(ctx, "object", pid, "title")
	if err != nil {
		return "", err
	}

	return Elide(title, c.titleLength), nil
}

// Submitter returns the first submitter element of the object's system
// metadata.
func (c *Client) Submitter(ctx context.Context, pid string) (string, error) {
	return c.firstElement(ctx, "meta", pid, "submitter")
}

func (c *Client) firstElement(ctx context.Context, resource, pid, element string) (string, error) {
	if !c.hasToken {
		return "", ErrNoToken
	}

	u := c.baseURL + "/" + resource + "/" + url.PathEscape(pid)
	op := "get " + element

	status, body, err := c.get(ctx, c.authed, u)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if status != http.StatusOK {
		return "", &LookupError{Op: op, URL: u, StatusCode: status}
	}

	text, err := FirstElementText(body, element)
	if err != nil {
		var malformed *MalformedResponseError
		if errors.As(err, &malformed) {
			malformed.Op = op
		}

		return "", err
	}

	return text, nil
}

func (c *Client) get(ctx context.Context, client *http.Client, u string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", application.UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}

	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, body, nil
}

// FirstElementText returns the character data of the first element named
// local anywhere in the document, with runs of whitespace collapsed.
func FirstElementText(body []byte, local string) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(string(body)))

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return "", ErrNotFound
		}

		if err != nil {
			return "", &MalformedResponseError{Body: body, Err: err}
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != local {
			continue
		}

		var el struct {
			Text string `xml:",chardata"`
		}

		if err := dec.DecodeElement(&el, &start); err != nil {
			return "", &MalformedResponseError{Body: body, Err: err}
		}

		return strings.Join(strings.Fields(el.Text), " "), nil
	}
}

// Elide cuts text to at runes and appends "..." when anything was cut.
func Elide(text string, at int) string {
	if utf8.RuneCountInString(text) <= at {
		return text
	}

	return string([]rune(text)[:at]) + "..."
}
