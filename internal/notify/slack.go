package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/inovacc/subbot/internal/application"
)

// TestText is the body of the test message.
const TestText = "Testing"

// SlackSender posts plain-text messages to an incoming webhook.
type SlackSender struct {
	webhookURL string
	httpClient *http.Client
}

// SlackOption configures a SlackSender.
type SlackOption func(*SlackSender)

// WithWebhook sets the webhook URL.
func WithWebhook(url string) SlackOption {
	return func(s *SlackSender) {
		s.webhookURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) SlackOption {
	return func(s *SlackSender) {
		s.httpClient = client
	}
}

// NewSlackSender creates a new Slack notification sender.
func NewSlackSender(opts ...SlackOption) *SlackSender {
	s := &SlackSender{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the sender name.
func (s *SlackSender) Name() string {
	return "slack"
}

// Send posts text to the webhook.
func (s *SlackSender) Send(ctx context.Context, text string) error {
	if s.webhookURL == "" {
		return fmt.Errorf("no webhook URL configured")
	}

	body, err := json.Marshal(&SlackMessage{Text: text})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", application.UserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return &WebhookError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	return nil
}

// Test sends the test message.
func (s *SlackSender) Test(ctx context.Context) error {
	return s.Send(ctx, TestText)
}

// WebhookError carries a non-200 webhook response.
type WebhookError struct {
	StatusCode int
	Body       string
}

func (e *WebhookError) Error() string {
	return fmt.Sprintf("webhook returned %d: %s", e.StatusCode, e.Body)
}
