package experiment

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Borislavv/go-ash-edge/internal/shared/clock"
	"github.com/Borislavv/go-ash-edge/model"
	"github.com/redis/go-redis/v9"
)

const (
	fieldPredictive  = "predictive"
	fieldActivatedAt = "activated_at"

	DefaultRedisKey = "ashedge:experiment:mode"

	// DefaultRedisTimeout bounds a single mode read or write.
	DefaultRedisTimeout = 500 * time.Millisecond
)

// HashClient is the subset of redis.Cmdable the switch needs.
type HashClient interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// RedisSwitch keeps the mode in a redis hash shared by several processes.
// A missing hash means the fallback mode.
type RedisSwitch struct {
	client   HashClient
	key      string
	clk      clock.Clock
	fallback bool
	timeout  time.Duration
}

// NewRedisSwitch builds a switch over key. Every redis call is bounded by
// timeout, or DefaultRedisTimeout when timeout is not positive.
func NewRedisSwitch(client HashClient, key string, clk clock.Clock, fallback bool, timeout time.Duration) *RedisSwitch {
	if key == "" {
		key = DefaultRedisKey
	}
	if timeout <= 0 {
		timeout = DefaultRedisTimeout
	}
	return &RedisSwitch{client: client, key: key, clk: clk, fallback: fallback, timeout: timeout}
}

func (s *RedisSwitch) Mode(ctx context.Context) (model.Mode, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return model.Mode{}, fmt.Errorf("read mode hash %s: %w", s.key, err)
	}
	if len(fields) == 0 {
		return model.Mode{Predictive: s.fallback}, nil
	}
	return decodeMode(fields)
}

func (s *RedisSwitch) Set(ctx context.Context, predictive bool) (model.Mode, error) {
	cur, err := s.Mode(ctx)
	if err != nil {
		return model.Mode{}, err
	}
	if cur.Predictive == predictive && !cur.ActivatedAt.IsZero() {
		return cur, nil
	}

	m := model.Mode{Predictive: predictive, ActivatedAt: model.Normalize(s.clk.Now())}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err = s.client.HSet(ctx, s.key,
		fieldPredictive, strconv.FormatBool(m.Predictive),
		fieldActivatedAt, m.ActivatedAt.Format(time.RFC3339Nano),
	).Err(); err != nil {
		return model.Mode{}, fmt.Errorf("write mode hash %s: %w", s.key, err)
	}
	return m, nil
}

func decodeMode(fields map[string]string) (model.Mode, error) {
	predictive, err := strconv.ParseBool(fields[fieldPredictive])
	if err != nil {
		return model.Mode{}, fmt.Errorf("decode %s field: %w", fieldPredictive, err)
	}
	var at time.Time
	if raw := fields[fieldActivatedAt]; raw != "" {
		if at, err = model.ParseTimestamp(raw); err != nil {
			return model.Mode{}, fmt.Errorf("decode %s field: %w", fieldActivatedAt, err)
		}
	}
	return model.Mode{Predictive: predictive, ActivatedAt: at}, nil
}
