package notify

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/groomly/groomly/internal/db"
)

// DispatchStore is the slice of the repository the send path needs.
type DispatchStore interface {
	CreateNotificationLog(ctx context.Context, entry *db.NotificationLog) error
	MarkSent(ctx context.Context, id uuid.UUID, providerMessageID string) error
	ScheduleRetry(ctx context.Context, id uuid.UUID, retryCount int, retryAfter *time.Time, errMsg string) error
}

// Dispatcher owns the first delivery attempt for a notification. It
// records the log row, tries the transport once, and on failure hands
// the row to the retry engine by scheduling the first retry.
type Dispatcher struct {
	store      DispatchStore
	transports TransportResolver
	classifier *Classifier
	cfg        RetryConfig
	logger     *zap.Logger
	now        func() time.Time
	rnd        func() float64
}

// NewDispatcher creates a dispatcher with the wall clock.
func NewDispatcher(store DispatchStore, transports TransportResolver, cfg RetryConfig, logger *zap.Logger) *Dispatcher {
	if cfg.MaxRetries <= 0 {
		cfg = DefaultRetryConfig()
	}
	return &Dispatcher{
		store:      store,
		transports: transports,
		classifier: DefaultClassifier(),
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		rnd:        rand.Float64,
	}
}

// WithClock pins the clock and jitter source. Tests only.
func (d *Dispatcher) WithClock(now func() time.Time, rnd func() float64) *Dispatcher {
	d.now = now
	d.rnd = rnd
	return d
}

// Dispatch records entry and attempts delivery once. A send failure is
// not returned to the caller: the booking already happened, so the row
// is left for the retry engine (or marked permanently failed when the
// error is not retryable). Only a failure to record the log row itself
// is an error.
func (d *Dispatcher) Dispatch(ctx context.Context, entry *db.NotificationLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.Status = db.NotificationPending

	if err := d.store.CreateNotificationLog(ctx, entry); err != nil {
		return err
	}

	transport, err := d.transports.For(entry.Channel)
	if err != nil {
		d.deferToRetry(ctx, entry, err)
		return nil
	}

	sent, err := transport.Send(ctx, messageFrom(entry))
	if err != nil {
		d.deferToRetry(ctx, entry, err)
		return nil
	}

	if err := d.store.MarkSent(ctx, entry.ID, sent.MessageID); err != nil {
		d.logger.Error("failed to mark notification sent",
			zap.Error(err),
			zap.String("log_id", entry.ID.String()),
		)
		return nil
	}

	d.logger.Info("notification sent",
		zap.String("log_id", entry.ID.String()),
		zap.String("channel", entry.Channel),
		zap.String("type", entry.Type),
	)
	return nil
}

func (d *Dispatcher) deferToRetry(ctx context.Context, entry *db.NotificationLog, sendErr error) {
	class := d.classifier.Classify(sendErr)

	var retryAfter *time.Time
	if class.Retryable() && d.cfg.MaxRetries > 0 {
		at := d.now().Add(d.cfg.NextDelay(0, d.rnd))
		retryAfter = &at
	}

	if err := d.store.ScheduleRetry(ctx, entry.ID, 0, retryAfter, sendErr.Error()); err != nil {
		d.logger.Error("failed to record send failure",
			zap.Error(err),
			zap.String("log_id", entry.ID.String()),
		)
		return
	}

	d.logger.Warn("initial delivery failed",
		zap.String("log_id", entry.ID.String()),
		zap.String("channel", entry.Channel),
		zap.String("class", class.String()),
		zap.Bool("will_retry", retryAfter != nil),
		zap.Error(sendErr),
	)
}
