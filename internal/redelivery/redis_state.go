package redelivery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return rdb, nil
}

// RedisStateStore keeps RetryState in Redis so partition workers spread over
// a pool can share failure bookkeeping. Keys are namespaced by a per-process
// run id: a restarted process starts from a fresh namespace, so attempt
// counts reset on restart exactly like the in-memory store.
type RedisStateStore struct {
	rdb   *redis.Client
	runID string
	ttl   time.Duration
}

func NewRedisStateStore(rdb *redis.Client, ttl time.Duration) *RedisStateStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisStateStore{
		rdb:   rdb,
		runID: uuid.NewString(),
		ttl:   ttl,
	}
}

func (s *RedisStateStore) key(messageID string) string {
	return fmt.Sprintf("redeliver:%s:%s", s.runID, messageID)
}

func (s *RedisStateStore) RecordFailure(ctx context.Context, messageID string, cause error) (RetryState, error) {
	key := s.key(messageID)
	now := time.Now()

	attempts, err := s.rdb.HIncrBy(ctx, key, "attempts", 1).Result()
	if err != nil {
		return RetryState{}, fmt.Errorf("hincrby failed: %w", err)
	}

	if err := s.rdb.HSetNX(ctx, key, "first_failure_at", now.Format(time.RFC3339Nano)).Err(); err != nil {
		return RetryState{}, fmt.Errorf("hsetnx failed: %w", err)
	}
	if err := s.rdb.HSet(ctx, key, "last_error", string(KindOf(cause))).Err(); err != nil {
		return RetryState{}, fmt.Errorf("hset failed: %w", err)
	}
	if err := s.rdb.Expire(ctx, key, s.ttl).Err(); err != nil {
		return RetryState{}, fmt.Errorf("expire failed: %w", err)
	}

	firstFailureAt := now
	if raw, err := s.rdb.HGet(ctx, key, "first_failure_at").Result(); err == nil {
		if parsed, perr := time.Parse(time.RFC3339Nano, raw); perr == nil {
			firstFailureAt = parsed
		}
	}

	return RetryState{
		MessageID:      messageID,
		AttemptCount:   int(attempts),
		FirstFailureAt: firstFailureAt,
		LastError:      KindOf(cause),
	}, nil
}

func (s *RedisStateStore) Clear(ctx context.Context, messageID string) error {
	return s.rdb.Del(ctx, s.key(messageID)).Err()
}
