package notify

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/groomly/groomly/internal/db"
	"github.com/groomly/groomly/internal/metrics"
)

// chunkSize bounds how many claimed rows are in memory at once. Chunks
// are processed sequentially; a failure inside one chunk never stops the
// next.
const chunkSize = 100

// LogStore is the slice of the repository the retry processor needs.
type LogStore interface {
	ClaimRetryable(ctx context.Context, maxRetries, limit int) ([]*db.NotificationLog, error)
	MarkSent(ctx context.Context, id uuid.UUID, providerMessageID string) error
	ScheduleRetry(ctx context.Context, id uuid.UUID, retryCount int, retryAfter *time.Time, errMsg string) error
}

// RetryError records an individual entry that failed during a run.
type RetryError struct {
	LogID uuid.UUID `json:"log_id,omitempty"`
	Error string    `json:"error"`
}

// RetryResult summarizes one ProcessRetries run.
type RetryResult struct {
	Processed int          `json:"processed"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Errors    []RetryError `json:"errors,omitempty"`
}

// Processor re-attempts failed notifications. One ProcessRetries call is
// one complete pass over the currently due entries; scheduling repeat
// passes is the Worker's job.
type Processor struct {
	store      LogStore
	transports TransportResolver
	classifier *Classifier
	cfg        RetryConfig
	logger     *zap.Logger
	now        func() time.Time
	rnd        func() float64
}

// NewProcessor creates a retry processor with the wall clock and the
// default jitter source.
func NewProcessor(store LogStore, transports TransportResolver, cfg RetryConfig, logger *zap.Logger) *Processor {
	if cfg.MaxRetries <= 0 {
		cfg = DefaultRetryConfig()
	}
	return &Processor{
		store:      store,
		transports: transports,
		classifier: DefaultClassifier(),
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		rnd:        rand.Float64,
	}
}

// WithClassifier swaps the error classifier (per-provider rule tables).
func (p *Processor) WithClassifier(c *Classifier) *Processor {
	p.classifier = c
	return p
}

// WithClock pins the clock and jitter source. Tests only.
func (p *Processor) WithClock(now func() time.Time, rnd func() float64) *Processor {
	p.now = now
	p.rnd = rnd
	return p
}

// ProcessRetries claims and re-attempts every due failed notification.
// It never returns an error: a store failure on the initial claim is
// reported inside the result with zero entries processed, and per-entry
// failures are recorded without aborting the rest of the run.
func (p *Processor) ProcessRetries(ctx context.Context) *RetryResult {
	start := p.now()
	result := &RetryResult{}

	for {
		entries, err := p.store.ClaimRetryable(ctx, p.cfg.MaxRetries, chunkSize)
		if err != nil {
			p.logger.Error("failed to claim retryable notifications", zap.Error(err))
			result.Errors = append(result.Errors, RetryError{Error: fmt.Sprintf("claim retryable: %v", err)})
			break
		}
		if len(entries) == 0 {
			break
		}

		for _, entry := range entries {
			p.processEntry(ctx, entry, result)
		}

		if len(entries) < chunkSize {
			break
		}
	}

	p.logger.Info("retry run complete",
		zap.Int("processed", result.Processed),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Duration("took", p.now().Sub(start)),
	)
	metrics.RecordRetryBatch(result.Processed, time.Since(start))

	return result
}

func (p *Processor) processEntry(ctx context.Context, entry *db.NotificationLog, result *RetryResult) {
	result.Processed++

	msg := messageFrom(entry)

	transport, err := p.transports.For(entry.Channel)
	if err != nil {
		p.recordFailure(ctx, entry, err, result)
		return
	}

	sent, err := transport.Send(ctx, msg)
	if err != nil {
		p.recordFailure(ctx, entry, err, result)
		return
	}

	if err := p.store.MarkSent(ctx, entry.ID, sent.MessageID); err != nil {
		// Delivery happened; losing the status update is an operational
		// problem, not a delivery failure.
		p.logger.Error("failed to mark notification sent",
			zap.Error(err),
			zap.String("log_id", entry.ID.String()),
		)
		result.Errors = append(result.Errors, RetryError{LogID: entry.ID, Error: err.Error()})
	}

	result.Succeeded++
	metrics.RecordRetryOutcome("sent", entry.Channel)
	p.logger.Info("notification retried successfully",
		zap.String("log_id", entry.ID.String()),
		zap.String("channel", entry.Channel),
		zap.String("provider_message_id", sent.MessageID),
	)
}

// recordFailure classifies the send error and either schedules the next
// attempt or marks the entry permanently failed. The retry count always
// advances; a permanent entry keeps a null retry_after so the claim
// query never sees it again.
func (p *Processor) recordFailure(ctx context.Context, entry *db.NotificationLog, sendErr error, result *RetryResult) {
	result.Failed++
	result.Errors = append(result.Errors, RetryError{LogID: entry.ID, Error: sendErr.Error()})

	class := p.classifier.Classify(sendErr)
	newCount := entry.RetryCount + 1

	var retryAfter *time.Time
	outcome := "permanent_failure"
	if class.Retryable() && newCount < p.cfg.MaxRetries {
		at := p.now().Add(p.cfg.NextDelay(entry.RetryCount, p.rnd))
		retryAfter = &at
		outcome = "rescheduled"
	}

	if err := p.store.ScheduleRetry(ctx, entry.ID, newCount, retryAfter, sendErr.Error()); err != nil {
		p.logger.Error("failed to record retry outcome",
			zap.Error(err),
			zap.String("log_id", entry.ID.String()),
		)
		result.Errors = append(result.Errors, RetryError{LogID: entry.ID, Error: err.Error()})
		return
	}

	metrics.RecordRetryOutcome(outcome, entry.Channel)
	p.logger.Warn("notification retry failed",
		zap.String("log_id", entry.ID.String()),
		zap.String("channel", entry.Channel),
		zap.String("class", class.String()),
		zap.Int("retry_count", newCount),
		zap.Bool("rescheduled", retryAfter != nil),
		zap.Error(sendErr),
	)
}
