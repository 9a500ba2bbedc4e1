package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MockTransport logs deliveries instead of sending them. Selected by the
// factory when mocks are enabled (local development, tests).
type MockTransport struct {
	channel string
	logger  *zap.Logger
}

func NewMockTransport(channel string, logger *zap.Logger) *MockTransport {
	return &MockTransport{channel: channel, logger: logger}
}

func (t *MockTransport) Send(ctx context.Context, msg *Message) (*SendResult, error) {
	t.logger.Info("mock delivery",
		zap.String("log_id", msg.LogID.String()),
		zap.String("channel", msg.Channel),
		zap.String("recipient", msg.Recipient),
		zap.String("type", msg.Type),
	)
	return &SendResult{MessageID: fmt.Sprintf("mock-%s", uuid.New())}, nil
}

func (t *MockTransport) SupportsChannel(channel string) bool {
	return channel == t.channel
}
