package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.uber.org/zap"

	"github.com/groomly/groomly/internal/db"
)

// SESTransport delivers email notifications via AWS SES.
type SESTransport struct {
	client *ses.Client
	from   string
	logger *zap.Logger
}

type SESConfig struct {
	Region    string
	FromEmail string
}

// NewSESTransport creates the production email transport.
func NewSESTransport(ctx context.Context, cfg SESConfig, logger *zap.Logger) (*SESTransport, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config for SES: %w", err)
	}
	return &SESTransport{
		client: ses.NewFromConfig(awsCfg),
		from:   cfg.FromEmail,
		logger: logger,
	}, nil
}

// Send delivers an email. Subject and body come from the message's
// template fields.
func (t *SESTransport) Send(ctx context.Context, msg *Message) (*SendResult, error) {
	if msg.Channel != db.ChannelEmail {
		return nil, fmt.Errorf("SES transport only supports email, got: %s", msg.Channel)
	}
	if msg.Recipient == "" {
		return nil, fmt.Errorf("missing recipient address")
	}

	subject := stringField(msg.Data, "subject")
	if subject == "" {
		subject = "Update from your groomer"
	}
	body := stringField(msg.Data, "body")
	if body == "" {
		body = stringField(msg.Data, "message")
	}

	input := &ses.SendEmailInput{
		Source: aws.String(t.from),
		Destination: &types.Destination{
			ToAddresses: []string{msg.Recipient},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data:    aws.String(body),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	result, err := t.client.SendEmail(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("ses send failed: %w", err)
	}

	t.logger.Info("email sent via SES",
		zap.String("log_id", msg.LogID.String()),
		zap.String("to", msg.Recipient),
		zap.String("message_id", aws.ToString(result.MessageId)),
	)

	return &SendResult{MessageID: aws.ToString(result.MessageId)}, nil
}

// SupportsChannel checks if this transport supports the email channel.
func (t *SESTransport) SupportsChannel(channel string) bool {
	return channel == db.ChannelEmail
}
