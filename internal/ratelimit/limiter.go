package ratelimit

import (
	"context"

	"github.com/rs/zerolog"
)

// Limiter decides whether a client's request is admitted.
type Limiter struct {
	store  Store
	logger zerolog.Logger
}

// NewLimiter wraps a window store.
func NewLimiter(store Store, logger zerolog.Logger) *Limiter {
	return &Limiter{store: store, logger: logger}
}

// Allow reports whether the request from clientID is admitted. A store
// failure is logged and the request admitted: throttling is best-effort and
// must not take the service down with it.
func (l *Limiter) Allow(ctx context.Context, clientID string) bool {
	ok, err := l.store.Admit(ctx, clientID)
	if err != nil {
		l.logger.Error().Err(err).Str("client", clientID).Msg("rate limit store failed")
		return true
	}
	return ok
}
