package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/crosswms/loadorder/internal/domain/printing"
	"github.com/crosswms/loadorder/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// redisKV is the subset of the Redis client used for sessions
type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisSessionStore keeps dialog sessions in Redis as JSON with a TTL.
// Suitable for deployments where several instances serve the same dialogs.
type RedisSessionStore struct {
	client    redisKV
	closer    func() error
	keyPrefix string
	ttl       time.Duration
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host      string
	Port      int
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// NewRedisSessionStore connects to Redis and verifies the connection
func NewRedisSessionStore(cfg RedisConfig) (*RedisSessionStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	s := NewRedisSessionStoreWithClient(client, cfg.KeyPrefix, cfg.TTL)
	s.closer = client.Close
	return s, nil
}

// NewRedisSessionStoreWithClient creates a store with an existing Redis client
// This is useful for testing or when sharing a client across components
func NewRedisSessionStoreWithClient(client redisKV, keyPrefix string, ttl time.Duration) *RedisSessionStore {
	if keyPrefix == "" {
		keyPrefix = "loadorder:dialog:"
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &RedisSessionStore{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

func (s *RedisSessionStore) key(id uuid.UUID) string {
	return s.keyPrefix + id.String()
}

// FindByID loads and decodes a session
func (s *RedisSessionStore) FindByID(ctx context.Context, id uuid.UUID) (*printing.DocumentJob, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load dialog session: %w", err)
	}

	var job printing.DocumentJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to decode dialog session: %w", err)
	}
	if job.Records == nil {
		job.Records = []printing.DisplayRecord{}
	}
	return &job, nil
}

// Save encodes the session and refreshes its TTL
func (s *RedisSessionStore) Save(ctx context.Context, job *printing.DocumentJob) error {
	if job == nil {
		return shared.NewDomainError("INVALID_INPUT", "job is nil")
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode dialog session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(job.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save dialog session: %w", err)
	}
	return nil
}

// Delete removes a session
func (s *RedisSessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete dialog session: %w", err)
	}
	return nil
}

// Close closes the Redis client if the store owns it
func (s *RedisSessionStore) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

var _ SessionStore = (*RedisSessionStore)(nil)
