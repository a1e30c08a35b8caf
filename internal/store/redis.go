package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront-checkout/internal/domain"
)

// RedisStore keeps drafts in redis with a TTL so abandoned checkouts expire.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Stage(ctx context.Context, sessionID string, draft *domain.OrderDraft) error {
	data, err := encode(draft)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, key(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set pending order: %w", err)
	}
	return nil
}

func (s *RedisStore) Read(ctx context.Context, sessionID string) (*domain.OrderDraft, error) {
	data, err := s.client.Get(ctx, key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get pending order: %w", err)
	}
	return decode(data), nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, key(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis del pending order: %w", err)
	}
	return nil
}

// Take uses GETDEL so two concurrent return-page loads cannot both see the draft.
func (s *RedisStore) Take(ctx context.Context, sessionID string) (*domain.OrderDraft, error) {
	data, err := s.client.GetDel(ctx, key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis getdel pending order: %w", err)
	}
	return decode(data), nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
