package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"go.uber.org/zap"

	"github.com/groomly/groomly/internal/db"
)

// SNSTransport delivers SMS notifications via AWS SNS.
type SNSTransport struct {
	client *sns.Client
	logger *zap.Logger
}

type SNSConfig struct {
	Region string
}

// NewSNSTransport creates the production SMS transport.
func NewSNSTransport(ctx context.Context, cfg SNSConfig, logger *zap.Logger) (*SNSTransport, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config for SNS: %w", err)
	}

	return &SNSTransport{
		client: sns.NewFromConfig(awsCfg),
		logger: logger,
	}, nil
}

// Send delivers an SMS. The text comes from the message's template
// fields.
func (t *SNSTransport) Send(ctx context.Context, msg *Message) (*SendResult, error) {
	if msg.Channel != db.ChannelSMS {
		return nil, fmt.Errorf("SNS transport only supports SMS, got: %s", msg.Channel)
	}
	if msg.Recipient == "" {
		return nil, fmt.Errorf("missing recipient phone number")
	}

	text := stringField(msg.Data, "message")
	if text == "" {
		text = stringField(msg.Data, "body")
	}
	if text == "" {
		return nil, fmt.Errorf("sms template missing message text")
	}

	input := &sns.PublishInput{
		PhoneNumber: aws.String(msg.Recipient),
		Message:     aws.String(text),
	}

	result, err := t.client.Publish(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("sns publish failed: %w", err)
	}

	t.logger.Info("SMS sent via SNS",
		zap.String("log_id", msg.LogID.String()),
		zap.String("phone_number", msg.Recipient),
		zap.String("message_id", aws.ToString(result.MessageId)),
	)

	return &SendResult{MessageID: aws.ToString(result.MessageId)}, nil
}

// SupportsChannel checks if this transport supports the SMS channel.
func (t *SNSTransport) SupportsChannel(channel string) bool {
	return channel == db.ChannelSMS
}
