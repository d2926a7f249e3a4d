package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DistributionStream is the stream carrying one entry per committed
// distribution run.
const DistributionStream = "rewardx:distributions"

// DistributionEvent is one committed distribution run as seen by stream
// consumers.
type DistributionEvent struct {
	Height      uint64  `json:"height"`
	Distributed float64 `json:"distributed"`
	LeftOver    float64 `json:"left_over"`
}

// PublishDistribution appends a committed run to the distribution stream.
func (c *Client) PublishDistribution(ctx context.Context, height uint64, distributed, leftOver float64) error {
	_, err := c.XAdd(ctx, DistributionStream, map[string]interface{}{
		"height":      height,
		"distributed": distributed,
		"left_over":   leftOver,
	})
	return err
}

// ConsumeDistributions reads the distribution stream starting after lastID
// ("$" for new entries only) and invokes handler for every event. Blocks
// until the context is cancelled; read errors back off and retry.
func (c *Client) ConsumeDistributions(ctx context.Context, lastID string, handler func(ctx context.Context, id string, ev DistributionEvent) error) error {
	if lastID == "" {
		lastID = "$"
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		streams, err := c.XRead(ctx, DistributionStream, lastID, 100, 5*time.Second)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			c.logger.Warn("Error reading distribution stream, will retry", zap.Error(err))
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				lastID = msg.ID
				ev := DistributionEvent{
					Height:      parseUint64(msg.Values["height"]),
					Distributed: parseFloat64(msg.Values["distributed"]),
					LeftOver:    parseFloat64(msg.Values["left_over"]),
				}
				if err := handler(ctx, msg.ID, ev); err != nil {
					c.logger.Error("Error handling distribution event",
						zap.String("id", msg.ID),
						zap.Error(err))
				}
			}
		}
	}
}

// parseUint64 converts the types Redis hands back for numeric fields.
func parseUint64(v interface{}) uint64 {
	switch val := v.(type) {
	case uint64:
		return val
	case int64:
		return uint64(val)
	case float64:
		return uint64(val)
	case int:
		return uint64(val)
	case string:
		n, _ := strconv.ParseUint(val, 10, 64)
		return n
	}
	return 0
}

func parseFloat64(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int64:
		return float64(val)
	case int:
		return float64(val)
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	}
	return 0
}
