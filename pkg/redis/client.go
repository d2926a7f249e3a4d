package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/canopy-network/rewardx/pkg/utils"
)

// DefaultStreamMaxLen caps the distribution event stream; consumers that fall
// further behind lose the oldest entries.
const DefaultStreamMaxLen = 10000

// Client wraps the Redis client used for the live distribution event stream.
type Client struct {
	client       *redis.Client
	logger       *zap.Logger
	streamMaxLen int64
}

// NewClient creates a Redis client from the environment:
//   - REDIS_HOST (default "localhost")
//   - REDIS_PORT (default "6379")
//   - REDIS_PASSWORD (default "")
//   - REDIS_DB (default 0)
//   - REDIS_STREAM_MAXLEN (default 10000, 0 = unlimited)
func NewClient(ctx context.Context, logger *zap.Logger) (*Client, error) {
	host := utils.Env("REDIS_HOST", "localhost")
	port := utils.Env("REDIS_PORT", "6379")
	password := utils.Env("REDIS_PASSWORD", "")
	db := utils.EnvInt("REDIS_DB", 0)
	streamMaxLen := int64(utils.EnvInt("REDIS_STREAM_MAXLEN", DefaultStreamMaxLen))

	addr := fmt.Sprintf("%s:%s", host, port)

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,

		PoolSize:     10,
		MinIdleConns: 2,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	logger.Info("Connected to Redis",
		zap.String("addr", addr),
		zap.Int("db", db),
		zap.Int64("streamMaxLen", streamMaxLen))

	return &Client{
		client:       rdb,
		logger:       logger,
		streamMaxLen: streamMaxLen,
	}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Health checks if Redis is reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// XAdd appends an entry to a stream, trimming to the configured MAXLEN.
func (c *Client) XAdd(ctx context.Context, stream string, values map[string]interface{}) (string, error) {
	args := &redis.XAddArgs{
		Stream: stream,
		Values: values,
	}
	if c.streamMaxLen > 0 {
		args.MaxLen = c.streamMaxLen
		args.Approx = true
	}
	return c.client.XAdd(ctx, args).Result()
}

// XRead reads entries from a stream after lastID. Use "$" to wait for new
// entries only. Block of 0 means no blocking.
func (c *Client) XRead(ctx context.Context, stream, lastID string, count int64, block time.Duration) ([]redis.XStream, error) {
	return c.client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{stream, lastID},
		Count:   count,
		Block:   block,
	}).Result()
}
