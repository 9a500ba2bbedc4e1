package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Worker drives the retry processor on a fixed interval. The processor
// itself is single-shot; the worker owns scheduling and shutdown.
type Worker struct {
	processor *Processor
	interval  time.Duration
	logger    *zap.Logger
}

// NewWorker creates a retry worker. A zero interval defaults to one
// minute.
func NewWorker(processor *Processor, interval time.Duration, logger *zap.Logger) *Worker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Worker{
		processor: processor,
		interval:  interval,
		logger:    logger,
	}
}

// Start runs retry passes until the context is cancelled.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("retry worker started", zap.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("retry worker stopping")
			return
		case <-ticker.C:
			result := w.processor.ProcessRetries(ctx)
			if result.Processed > 0 || len(result.Errors) > 0 {
				w.logger.Info("retry pass finished",
					zap.Int("processed", result.Processed),
					zap.Int("succeeded", result.Succeeded),
					zap.Int("failed", result.Failed),
					zap.Int("errors", len(result.Errors)),
				)
			}
		}
	}
}
