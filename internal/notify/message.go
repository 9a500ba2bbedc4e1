// Package notify re-attempts delivery of failed customer notifications
// with exponential backoff, classifying provider errors as retryable or
// permanent and respecting a retry ceiling.
package notify

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/groomly/groomly/internal/db"
)

// Message is the channel-agnostic payload handed to a transport. Data
// carries the template fields stored on the log row (subject, body,
// message text) and is never nil.
type Message struct {
	LogID     uuid.UUID
	Type      string
	Channel   string
	Recipient string
	Data      map[string]any
}

// SendResult reports a successful delivery.
type SendResult struct {
	MessageID string
}

// Transport delivers a message over one channel. Implementations: email
// (SES), SMS (SNS), and a mock for development and tests.
type Transport interface {
	Send(ctx context.Context, msg *Message) (*SendResult, error)
	SupportsChannel(channel string) bool
}

// messageFrom builds the outbound message for a log entry. Null or
// malformed template data degrades to an empty field map rather than
// blocking the retry.
func messageFrom(entry *db.NotificationLog) *Message {
	data := map[string]any{}
	if len(entry.TemplateData) > 0 {
		_ = json.Unmarshal(entry.TemplateData, &data)
	}
	return &Message{
		LogID:     entry.ID,
		Type:      entry.Type,
		Channel:   entry.Channel,
		Recipient: entry.Recipient,
		Data:      data,
	}
}

func stringField(data map[string]any, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}
