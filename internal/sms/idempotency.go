package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMetadataNotFound is returned when no delivery record exists for a message id
var ErrMetadataNotFound = errors.New("sms delivery record not found")

const idempotencyKeyPrefix = "sms:sent:"

// IdempotencyStore deduplicates SMS events across consumer restarts and replicas
type IdempotencyStore struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewIdempotencyStore creates a store keeping delivery records for 24 hours
func NewIdempotencyStore(redisClient *redis.Client, logger *slog.Logger) *IdempotencyStore {
	return &IdempotencyStore{
		redis:  redisClient,
		ttl:    24 * time.Hour,
		logger: logger,
	}
}

func buildKey(messageID string) string {
	return idempotencyKeyPrefix + messageID
}

// IsProcessed reports whether the event was already delivered
func (s *IdempotencyStore) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	exists, err := s.redis.Exists(ctx, buildKey(messageID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check if message is processed: %w", err)
	}
	return exists > 0, nil
}

// MarkAsProcessed records a delivery with SET NX. It returns false when
// another consumer recorded the same event first.
func (s *IdempotencyStore) MarkAsProcessed(ctx context.Context, event Event) (bool, error) {
	metadata, err := json.Marshal(Metadata{
		SentAt:    time.Now().UTC(),
		Phone:     event.Phone,
		EventType: event.EventType,
	})
	if err != nil {
		return false, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	ok, err := s.redis.SetNX(ctx, buildKey(event.MessageID), metadata, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark message as processed: %w", err)
	}

	if !ok {
		s.logger.Warn("SMS already processed (duplicate detected)", "messageID", event.MessageID)
	}
	return ok, nil
}

// GetMetadata returns the delivery record for messageID
func (s *IdempotencyStore) GetMetadata(ctx context.Context, messageID string) (*Metadata, error) {
	data, err := s.redis.Get(ctx, buildKey(messageID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMetadataNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata: %w", err)
	}

	var metadata Metadata
	if err := json.Unmarshal([]byte(data), &metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return &metadata, nil
}

// Count returns the number of live delivery records. Records expire through
// their TTL, so this is only used for monitoring.
func (s *IdempotencyStore) Count(ctx context.Context) (int64, error) {
	var cursor uint64
	var count int64

	for {
		keys, next, err := s.redis.Scan(ctx, cursor, idempotencyKeyPrefix+"*", 100).Result()
		if err != nil {
			return count, fmt.Errorf("failed to scan keys: %w", err)
		}
		count += int64(len(keys))

		cursor = next
		if cursor == 0 {
			break
		}
	}
	return count, nil
}

// TTL returns how long delivery records are kept
func (s *IdempotencyStore) TTL() time.Duration { return s.ttl }
