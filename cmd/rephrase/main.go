package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jstello/OneInc/internal/completion"
	"github.com/jstello/OneInc/internal/config"
	"github.com/jstello/OneInc/internal/metrics"
	"github.com/jstello/OneInc/internal/ratelimit"
	"github.com/jstello/OneInc/internal/relay"
	"github.com/jstello/OneInc/internal/styles"
	"github.com/jstello/OneInc/internal/web"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("rephrase service exited")
	}
}

func run() error {
	cfg, err := config.Load(env("REPHRASE_CONFIG", ""))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	rawAddr := cfg.Server.Addr
	if addr := sanitizeListenAddr(rawAddr); addr != rawAddr {
		log.Warn().
			Str("raw", rawAddr).
			Str("sanitized", addr).
			Msg("sanitized listen address; remove inline comments from the value")
		cfg.Server.Addr = addr
	}

	if cfg.Upstream.APIKey == "" {
		return fmt.Errorf("UPSTREAM_API_KEY environment variable not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	store, closeStore, err := newStore(ctx, cfg.RateLimit)
	if err != nil {
		return err
	}
	defer closeStore()
	limiter := ratelimit.NewLimiter(store, log.Logger)

	// Only the in-memory store accumulates client identities in-process;
	// redis keys expire on their own.
	if mem, ok := store.(*ratelimit.MemoryStore); ok {
		janitor, err := ratelimit.StartJanitor(mem, cfg.RateLimit.EvictSchedule, cfg.RateLimit.MaxIdle, log.Logger)
		if err != nil {
			return fmt.Errorf("start rate limit janitor: %w", err)
		}
		defer janitor.Stop()
	}

	catalog := styles.FromConfig(cfg.Styles)
	client := completion.NewClient(cfg.Upstream)
	orchestrator := relay.New(catalog, client, m, log.Logger)

	server := web.NewServer(cfg.Server, orchestrator, limiter, m, log.Logger)
	log.Info().
		Str("addr", cfg.Server.Addr).
		Str("model", cfg.Upstream.Model).
		Int("styles", catalog.Len()).
		Str("rate_limit_store", cfg.RateLimit.Store).
		Msg("starting rephrase service")
	return server.Run(ctx)
}

func newStore(ctx context.Context, cfg config.RateLimit) (ratelimit.Store, func(), error) {
	switch cfg.Store {
	case config.StoreRedis:
		store, err := ratelimit.NewRedisStore(ctx, cfg.RedisAddr, cfg.Quota, cfg.Window)
		if err != nil {
			return nil, nil, fmt.Errorf("init redis rate limit store: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return ratelimit.NewMemoryStore(cfg.Quota, cfg.Window), func() {}, nil
	}
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// sanitizeListenAddr trims whitespace/comments so malformed values (e.g.
// ":8000 :: note") do not break net.Listen.
func sanitizeListenAddr(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return trimmed
	}
	if fields := strings.Fields(trimmed); len(fields) > 0 {
		trimmed = fields[0]
	}
	return strings.Trim(trimmed, "\"'")
}
