package storage

import (
	"context"
	"errors"
	"proctorportal/backend/internal/config"
	"proctorportal/backend/internal/models"
	"time"

	"github.com/redis/go-redis/v9"
)

// SaveSession caches a session id until the record expires.
func (s *Service) SaveSession(ctx context.Context, rec models.SessionRecord) error {
	if s.Redis == nil {
		return ErrUnavailable
	}

	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	userKey := config.UserSessionsKey + rec.UID
	pipe := s.Redis.TxPipeline()
	pipe.Set(ctx, config.SessionKeyPrefix+rec.ID, rec.UID, ttl)
	pipe.SAdd(ctx, userKey, rec.ID)
	pipe.Expire(ctx, userKey, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// SessionActive reports whether the session id is still cached.
func (s *Service) SessionActive(ctx context.Context, sessionID string) (bool, error) {
	if s.Redis == nil {
		return false, ErrUnavailable
	}
	_, err := s.Redis.Get(ctx, config.SessionKeyPrefix+sessionID).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RevokeSessions drops every cached session of a user.
func (s *Service) RevokeSessions(ctx context.Context, uid string) error {
	if s.Redis == nil {
		return ErrUnavailable
	}

	userKey := config.UserSessionsKey + uid
	ids, err := s.Redis.SMembers(ctx, userKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, config.SessionKeyPrefix+id)
	}
	keys = append(keys, userKey)
	return s.Redis.Del(ctx, keys...).Err()
}
