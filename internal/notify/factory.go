package notify

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// TransportResolver yields the transport for a channel.
type TransportResolver interface {
	For(channel string) (Transport, error)
}

// Transports resolves and caches one transport per channel. When mocks
// are enabled (local development, tests) every channel resolves to a
// logging mock; otherwise the injected builder constructs the production
// transport on first use and the instance is reused afterwards.
type Transports struct {
	mu       sync.Mutex
	cache    map[string]Transport
	useMocks bool
	build    func(channel string) (Transport, error)
	logger   *zap.Logger
}

// NewTransports creates the per-channel transport factory. build is only
// consulted when mocks are disabled.
func NewTransports(useMocks bool, build func(channel string) (Transport, error), logger *zap.Logger) *Transports {
	return &Transports{
		cache:    make(map[string]Transport),
		useMocks: useMocks,
		build:    build,
		logger:   logger,
	}
}

// For returns the cached transport for channel, constructing it on first
// use.
func (t *Transports) For(channel string) (Transport, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cached, ok := t.cache[channel]; ok {
		return cached, nil
	}

	var (
		transport Transport
		err       error
	)
	if t.useMocks {
		transport = NewMockTransport(channel, t.logger)
	} else {
		if t.build == nil {
			return nil, fmt.Errorf("no transport builder configured for channel: %s", channel)
		}
		transport, err = t.build(channel)
		if err != nil {
			return nil, fmt.Errorf("build %s transport: %w", channel, err)
		}
	}

	t.logger.Info("transport initialized",
		zap.String("channel", channel),
		zap.Bool("mock", t.useMocks),
	)

	t.cache[channel] = transport
	return transport, nil
}

// Reset drops all cached transports. Tests use this to isolate runs that
// toggle the mock flag or swap builders.
func (t *Transports) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cache = make(map[string]Transport)
}
