// Package notify publishes high-risk prediction events for the care-scheduling workflow.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/framingham-risk-server/internal/domain"
)

// publisher is the subset of *redis.Client used for event fan-out
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher publishes HighRiskEvent documents on a Redis pub/sub channel
type RedisPublisher struct {
	client  publisher
	closer  func() error
	channel string
	logger  *logrus.Logger
}

// NewRedisPublisher connects to Redis and verifies the connection
func NewRedisPublisher(ctx context.Context, config domain.NotifyConfig, logger *logrus.Logger) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"addr":    opts.Addr,
		"channel": config.Channel,
	}).Info("High-risk event publisher connected")

	return &RedisPublisher{
		client:  client,
		closer:  client.Close,
		channel: config.Channel,
		logger:  logger,
	}, nil
}

// PublishHighRisk encodes event as JSON and publishes it
func (p *RedisPublisher) PublishHighRisk(ctx context.Context, event domain.HighRiskEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling high-risk event: %w", err)
	}

	receivers, err := p.client.Publish(ctx, p.channel, payload).Result()
	if err != nil {
		return fmt.Errorf("publishing high-risk event: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"prediction_id": event.PredictionID,
		"model":         event.Model,
		"probability":   event.Probability,
		"receivers":     receivers,
	}).Debug("High-risk event published")
	return nil
}

// Channel returns the channel events are published on
func (p *RedisPublisher) Channel() string {
	return p.channel
}

// Close releases the Redis connection
func (p *RedisPublisher) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}

// NopPublisher discards events
type NopPublisher struct{}

// PublishHighRisk does nothing
func (NopPublisher) PublishHighRisk(context.Context, domain.HighRiskEvent) error {
	return nil
}
