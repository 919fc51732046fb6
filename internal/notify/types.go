// Package notify formats and posts the bot's chat messages.
package notify

import "context"

// SlackMessage is the incoming-webhook payload.
type SlackMessage struct {
	Text string `json:"text"`
}

// Sender is the interface for notification senders.
type Sender interface {
	// Send posts text. Returns an error if the message could not be sent.
	Send(ctx context.Context, text string) error

	// Name returns the sender's name for logging purposes.
	Name() string

	// Test sends a test notification to verify configuration.
	Test(ctx context.Context) error
}

var _ Sender = (*SlackSender)(nil)
