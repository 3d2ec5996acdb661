package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient, prefix string) StateStore {
	return &redisStore{client: client, prefix: prefix}
}

func (s *redisStore) hashKey(learnerID string) string {
	return s.prefix + "learner:" + learnerID
}

func (s *redisStore) Get(ctx context.Context, learnerID, key string) (string, error) {
	v, err := s.client.HGet(ctx, s.hashKey(learnerID), key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrKeyNotFound
		}
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return v, nil
}

func (s *redisStore) Set(ctx context.Context, learnerID, key, value string) error {
	if err := s.client.HSet(ctx, s.hashKey(learnerID), key, value).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *redisStore) Delete(ctx context.Context, learnerID, key string) error {
	return s.client.HDel(ctx, s.hashKey(learnerID), key).Err()
}
