// Package origin provides the content origin consulted on cache misses and
// prefetches.
package origin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Borislavv/go-ash-edge/config"
	"github.com/Borislavv/go-ash-edge/internal/shared/clock"
	"github.com/Borislavv/go-ash-edge/model"
)

var (
	ErrNotFound    = errors.New("content not found at origin")
	ErrCircuitOpen = errors.New("origin circuit breaker is open")
)

// Origin fetches the payload of a content item. Implementations must honor ctx.
type Origin interface {
	Fetch(ctx context.Context, item model.ContentItem) ([]byte, error)
}

// FromConfig builds the configured origin, wrapped in a breaker when enabled.
func FromConfig(ctx context.Context, cfg config.OriginCfg, clk clock.Clock, logger *slog.Logger) (Origin, error) {
	var (
		o   Origin
		err error
	)
	switch cfg.Kind {
	case config.OriginStatic:
		o = NewStatic(cfg.Delay)
	case config.OriginHTTP:
		o, err = NewHTTP(cfg.HTTP.BaseURL, cfg.Timeout)
	case config.OriginS3:
		o, err = NewS3(ctx, *cfg.S3)
	default:
		err = fmt.Errorf("unknown origin kind %q", cfg.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("build %s origin: %w", cfg.Kind, err)
	}

	if cfg.Breaker.Enabled() {
		o = NewBreaker(o, *cfg.Breaker, clk, logger)
	}
	logger.Info("origin configured", "kind", cfg.Kind, "breaker", cfg.Breaker.Enabled(), "timeout", cfg.Timeout)
	return o, nil
}
