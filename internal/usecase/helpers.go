package usecase

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"MarketNewsroom/internal/ports"
)

// Clock returns the current time; tests pin it.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

func componentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return logger.With("component", component)
}

// hourBucket formats t as the coarse cache window YYYYMMDDHH.
func hourBucket(t time.Time) string {
	return t.UTC().Format("2006010215")
}

func cacheKey(prefix string, parts ...string) string {
	return prefix + ":" + strings.Join(parts, ":")
}

// readThrough loads key into dst from cache; cache errors degrade to a miss.
func readThrough(ctx context.Context, cache ports.Cache, logger *slog.Logger, key string, dst any) bool {
	if cache == nil {
		return false
	}
	ok, err := cache.Get(ctx, key, dst)
	if err != nil {
		logger.Warn("cache read failed", "key", key, "error", err)
		return false
	}
	return ok
}

func writeThrough(ctx context.Context, cache ports.Cache, logger *slog.Logger, key string, value any, ttl time.Duration) {
	if cache == nil || ttl <= 0 {
		return
	}
	if err := cache.Set(ctx, key, value, ttl); err != nil {
		logger.Warn("cache write failed", "key", key, "error", err)
	}
}
