package storage

import (
	"context"
	"encoding/json"
	"proctorportal/backend/internal/config"
	"proctorportal/backend/internal/models"

	"github.com/redis/go-redis/v9"
)

// PublishViolation announces a stored violation to every subscribed instance.
func (s *Service) PublishViolation(ctx context.Context, event models.ViolationEvent) error {
	if s.Redis == nil {
		return ErrUnavailable
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.Redis.Publish(ctx, config.LiveFeedChannel, string(payload)).Err()
}

// SubscribeViolations opens a subscription to the live feed channel.
func (s *Service) SubscribeViolations(ctx context.Context) *redis.PubSub {
	return s.Redis.Subscribe(ctx, config.LiveFeedChannel)
}
