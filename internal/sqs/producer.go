// Package sqs publishes appointment lifecycle events for downstream
// consumers (reminder scheduling, analytics).
package sqs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"

	"github.com/groomly/groomly/internal/db"
)

// Event types published to the appointments queue.
const (
	EventAppointmentCreated   = "appointment.created"
	EventAppointmentCancelled = "appointment.cancelled"
)

// Config holds SQS configuration. An empty QueueURL disables publishing.
type Config struct {
	Region   string
	QueueURL string
}

// Event is the payload sent to SQS for each appointment change.
type Event struct {
	EventType     string `json:"event_type"`
	AppointmentID string `json:"appointment_id"`
	CustomerName  string `json:"customer_name"`
	PetName       string `json:"pet_name"`
	Service       string `json:"service"`
	ScheduledAt   string `json:"scheduled_at"`
	EnqueuedAt    int64  `json:"enqueued_at"`
}

// Producer sends appointment events to SQS.
type Producer struct {
	client   *sqs.Client
	queueURL string
	logger   *zap.Logger
}

// NewProducer creates a new SQS producer. Returns (nil, nil) when no
// queue is configured; callers treat a nil producer as event publishing
// disabled.
func NewProducer(ctx context.Context, cfg Config, logger *zap.Logger) (*Producer, error) {
	if cfg.QueueURL == "" {
		logger.Info("sqs queue not configured, appointment events disabled")
		return nil, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := sqs.NewFromConfig(awsCfg)

	logger.Info("sqs producer initialized",
		zap.String("queue_url", cfg.QueueURL),
	)

	return &Producer{
		client:   client,
		queueURL: cfg.QueueURL,
		logger:   logger,
	}, nil
}

// PublishAppointmentEvent sends one event for an appointment. Safe to
// call on a nil producer.
func (p *Producer) PublishAppointmentEvent(ctx context.Context, eventType string, appt *db.Appointment) (string, error) {
	if p == nil {
		return "", nil
	}

	event := Event{
		EventType:     eventType,
		AppointmentID: appt.ID.String(),
		CustomerName:  appt.CustomerName,
		PetName:       appt.PetName,
		Service:       appt.Service,
		ScheduledAt:   appt.ScheduledAt.Format(time.RFC3339),
		EnqueuedAt:    time.Now().UnixNano(),
	}

	body, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
	}

	result, err := p.client.SendMessage(ctx, input)
	if err != nil {
		p.logger.Error("failed to send appointment event",
			zap.Error(err),
			zap.String("event_type", eventType),
			zap.String("appointment_id", appt.ID.String()),
		)
		return "", fmt.Errorf("sqs send failed: %w", err)
	}

	return *result.MessageId, nil
}
