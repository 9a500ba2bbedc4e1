package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/groomly/groomly/internal/circuitbreaker"
)

// ProtectedTransport wraps a Transport with a circuit breaker. When a
// provider starts failing, the breaker opens and sends fail fast with
// ErrCircuitOpen instead of piling onto a dead service. The fast-fail
// error text classifies as transient, so affected entries are
// rescheduled rather than permanently failed.
type ProtectedTransport struct {
	inner   Transport
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewProtectedTransport wraps a transport with circuit breaker protection.
func NewProtectedTransport(inner Transport, breaker *circuitbreaker.CircuitBreaker, logger *zap.Logger) *ProtectedTransport {
	return &ProtectedTransport{
		inner:   inner,
		breaker: breaker,
		logger:  logger,
	}
}

func (p *ProtectedTransport) Send(ctx context.Context, msg *Message) (*SendResult, error) {
	if !p.breaker.Allow() {
		p.logger.Warn("circuit breaker rejected send",
			zap.String("breaker", p.breaker.Name()),
			zap.String("log_id", msg.LogID.String()),
			zap.String("channel", msg.Channel),
			zap.String("state", p.breaker.GetState().String()),
		)
		return nil, fmt.Errorf("%w: %s provider unavailable", circuitbreaker.ErrCircuitOpen, p.breaker.Name())
	}

	result, err := p.inner.Send(ctx, msg)
	if err != nil {
		p.breaker.RecordFailure()
		return nil, err
	}

	p.breaker.RecordSuccess()
	return result, nil
}

func (p *ProtectedTransport) SupportsChannel(channel string) bool {
	return p.inner.SupportsChannel(channel)
}

// Breaker returns the underlying circuit breaker for stats endpoints.
func (p *ProtectedTransport) Breaker() *circuitbreaker.CircuitBreaker {
	return p.breaker
}
