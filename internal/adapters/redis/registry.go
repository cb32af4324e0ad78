// Package redis keeps the most recent samples in a capped Redis stream.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"pulsemeter/internal/config"
	"pulsemeter/internal/domain"

	"github.com/redis/go-redis/v9"
)

func Init(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

type Registry struct {
	redis *redis.Client
}

func NewRegistry(r *redis.Client) *Registry {
	return &Registry{redis: r}
}

func (r *Registry) Append(ctx context.Context, stream string, payload any, maxLen int64) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("registry marshal failed: %w", err)
	}

	id, err := r.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{
			"data": data,
		},
		MaxLen: maxLen,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("registry xadd failed: %w", err)
	}

	return id, nil
}

// Sink appends every sample to the configured stream.
type Sink struct {
	registry *Registry
	stream   string
	maxLen   int64
}

func NewSink(registry *Registry, cfg config.RedisConfig) *Sink {
	return &Sink{
		registry: registry,
		stream:   cfg.Stream,
		maxLen:   cfg.MaxLen,
	}
}

func (s *Sink) Name() string {
	return "redis"
}

func (s *Sink) Send(ctx context.Context, sample domain.Sample) error {
	_, err := s.registry.Append(ctx, s.stream, sample, s.maxLen)
	return err
}
