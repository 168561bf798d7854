// Package idempotency records which Kafka messages a consumer group already
// handled, so a redelivered payment result is applied once.
package idempotency

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store keeps one marker per consumer group and message coordinate. Markers
// expire after ttl, which must exceed the broker's redelivery window.
type Store struct {
	rdb   redis.UniversalClient
	group string
	ttl   time.Duration
	now   func() time.Time
}

func NewStore(rdb redis.UniversalClient, group string, ttl time.Duration) *Store {
	return &Store{rdb: rdb, group: group, ttl: ttl, now: time.Now}
}

// Key names the marker of a message read by this store's group. Groups never
// share markers, so two services consuming one topic each see every message.
func (s *Store) Key(topic string, partition int, offset int64) string {
	return fmt.Sprintf("processed:%s:%s:%d:%d", s.group, topic, partition, offset)
}

// Seen claims key and reports whether it was already claimed. The marker
// stores the claim time in unix milliseconds.
func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	claimed, err := s.rdb.SetNX(ctx, key, strconv.FormatInt(s.now().UnixMilli(), 10), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return !claimed, nil
}

// Forget drops the claim on key so a message whose handling failed is
// processed again on redelivery.
func (s *Store) Forget(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("forget %s: %w", key, err)
	}
	return nil
}
