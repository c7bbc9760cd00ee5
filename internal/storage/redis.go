package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisRecordsKey = "capture:records"
	redisPendingKey = "capture:pending"
)

// RedisRecordStore keeps the record collection as a single JSON document.
// A whole-document write preserves the read-modify-write semantics of the
// upsert path across every backend: two racing writers lose one update at
// the storage level, the same as the memory store.
type RedisRecordStore struct {
	client *redis.Client
}

// NewRedisRecordStore connects to Redis and returns a record store.
func NewRedisRecordStore(address, password string, db int) (*RedisRecordStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisRecordStore{client: client}, nil
}

// Load reads and decodes the record collection. A missing key is an empty
// collection, not an error.
func (r *RedisRecordStore) Load(ctx context.Context) ([]Record, error) {
	data, err := r.client.Get(ctx, redisRecordsKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return records, nil
}

// Save encodes and writes the full collection in one SET.
func (r *RedisRecordStore) Save(ctx context.Context, records []Record) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	if err := r.client.Set(ctx, redisRecordsKey, data, 0).Err(); err != nil {
		return fmt.Errorf("save records: %w", err)
	}
	return nil
}

// Count returns the number of stored records.
func (r *RedisRecordStore) Count(ctx context.Context) (int, error) {
	records, err := r.Load(ctx)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// Close closes the Redis connection.
func (r *RedisRecordStore) Close() error {
	return r.client.Close()
}

// RedisTempSlot holds the in-flight attempt under a TTL so a slot orphaned
// by a crashed page context expires on its own.
type RedisTempSlot struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTempSlot connects to Redis and returns a temp slot with the
// given TTL.
func NewRedisTempSlot(address, password string, db int, ttl time.Duration) (*RedisTempSlot, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisTempSlot{client: client, ttl: ttl}, nil
}

// Save stores the attempt, overwriting any previous one.
func (r *RedisTempSlot) Save(ctx context.Context, attempt Attempt) error {
	data, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("encode attempt: %w", err)
	}
	if err := r.client.Set(ctx, redisPendingKey, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("save attempt: %w", err)
	}
	return nil
}

// Load returns the stored attempt, if any.
func (r *RedisTempSlot) Load(ctx context.Context) (Attempt, bool, error) {
	data, err := r.client.Get(ctx, redisPendingKey).Bytes()
	if err == redis.Nil {
		return Attempt{}, false, nil
	}
	if err != nil {
		return Attempt{}, false, fmt.Errorf("load attempt: %w", err)
	}

	var attempt Attempt
	if err := json.Unmarshal(data, &attempt); err != nil {
		return Attempt{}, false, fmt.Errorf("decode attempt: %w", err)
	}
	return attempt, true, nil
}

// Delete empties the slot.
func (r *RedisTempSlot) Delete(ctx context.Context) error {
	return r.client.Del(ctx, redisPendingKey).Err()
}

// Close closes the Redis connection.
func (r *RedisTempSlot) Close() error {
	return r.client.Close()
}
