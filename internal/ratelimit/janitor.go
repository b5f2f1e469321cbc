package ratelimit

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Janitor periodically drops idle client identities from a MemoryStore so
// the per-client window table cannot grow without bound across the process
// lifetime.
type Janitor struct {
	cron *cron.Cron
}

// StartJanitor schedules eviction of clients idle longer than maxIdle on the
// given cron schedule (e.g. "@every 5m") and starts the scheduler.
func StartJanitor(store *MemoryStore, schedule string, maxIdle time.Duration, logger zerolog.Logger) (*Janitor, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if n := store.EvictIdle(maxIdle); n > 0 {
			logger.Debug().Int("evicted", n).Int("remaining", store.Size()).Msg("evicted idle rate limit clients")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule janitor %q: %w", schedule, err)
	}
	c.Start()
	return &Janitor{cron: c}, nil
}

// Stop halts the scheduler. Running jobs finish; none are interrupted.
func (j *Janitor) Stop() {
	j.cron.Stop()
}
