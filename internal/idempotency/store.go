package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/giftvault/giftvault/internal/models"
)

// Store remembers the response of a completed mutation keyed by a
// client-supplied retry token. Replaying the key returns the recorded
// response so the operation applies exactly once.
type Store interface {
	// Get returns the recorded response for (operation, key), if any.
	Get(ctx context.Context, operation, key string) (json.RawMessage, bool, error)
	// Put records the response for (operation, key) with a TTL.
	Put(ctx context.Context, operation, key string, response any, ttl time.Duration) error
}

// GormStore keeps idempotency records in the primary database.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore constructs a database-backed store.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Get implements Store.
func (s *GormStore) Get(ctx context.Context, operation, key string) (json.RawMessage, bool, error) {
	var row models.IdempotencyKey
	errFind := s.db.WithContext(ctx).
		Where("operation = ? AND key = ?", operation, key).
		First(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, errFind
	}
	if time.Now().UTC().After(row.ExpiresAt) {
		return nil, false, nil
	}
	return json.RawMessage(row.Response), true, nil
}

// Put implements Store. A concurrent duplicate insert is ignored; the first
// writer wins and later replays read its response.
func (s *GormStore) Put(ctx context.Context, operation, key string, response any, ttl time.Duration) error {
	raw, errMarshal := json.Marshal(response)
	if errMarshal != nil {
		return errMarshal
	}
	row := models.IdempotencyKey{
		Key:       key,
		Operation: operation,
		Response:  raw,
		ExpiresAt: time.Now().UTC().Add(ttl),
		CreatedAt: time.Now().UTC(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
}

// Prune removes expired records. Returns the number of rows removed.
func (s *GormStore) Prune(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at < ?", time.Now().UTC()).
		Delete(&models.IdempotencyKey{})
	return res.RowsAffected, res.Error
}

// RedisStore keeps idempotency records in redis with native TTLs.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a redis-backed store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// redisKey namespaces records per operation.
func redisKey(operation, key string) string {
	return "giftvault:idem:" + operation + ":" + key
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, operation, key string) (json.RawMessage, bool, error) {
	val, errGet := s.client.Get(ctx, redisKey(operation, key)).Bytes()
	if errGet != nil {
		if errors.Is(errGet, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, errGet
	}
	return json.RawMessage(val), true, nil
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, operation, key string, response any, ttl time.Duration) error {
	raw, errMarshal := json.Marshal(response)
	if errMarshal != nil {
		return errMarshal
	}
	return s.client.SetNX(ctx, redisKey(operation, key), raw, ttl).Err()
}

// ValidKey reports whether a client-supplied key is usable.
func ValidKey(key string) bool {
	trimmed := strings.TrimSpace(key)
	return trimmed != "" && len(trimmed) <= 128
}
