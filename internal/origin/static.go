package origin

import (
	"context"
	"fmt"
	"time"

	"github.com/Borislavv/go-ash-edge/model"
)

// Static synthesizes payloads locally, optionally after a fixed delay that
// simulates origin latency.
type Static struct {
	delay time.Duration
}

func NewStatic(delay time.Duration) *Static {
	return &Static{delay: delay}
}

func (s *Static) Fetch(ctx context.Context, item model.ContentItem) ([]byte, error) {
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("content:%s:%s:%d", item.ID, item.Type, item.Size)), nil
}
