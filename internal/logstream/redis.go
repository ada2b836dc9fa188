package logstream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisMirror republishes broker events as JSON on a Redis pub/sub channel.
type RedisMirror struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// RedisConfig locates the Redis server and channel.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// NewRedisMirror connects to Redis and verifies connectivity.
func NewRedisMirror(cfg RedisConfig, logger *zap.Logger) (*RedisMirror, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return &RedisMirror{client: client, channel: cfg.Channel, logger: logger}, nil
}

// Run forwards events from b until ctx is done.
func (m *RedisMirror) Run(ctx context.Context, b *Broker) {
	events, cancel := b.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := m.publish(ctx, e); err != nil {
				m.logger.Debug("redis log mirror publish failed", zap.Error(err))
			}
		}
	}
}

func (m *RedisMirror) publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return m.client.Publish(ctx, m.channel, payload).Err()
}

// Close closes the Redis client.
func (m *RedisMirror) Close() error {
	return m.client.Close()
}
