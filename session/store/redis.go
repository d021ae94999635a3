package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sweetpotato0/docqa/errors"
	"github.com/sweetpotato0/docqa/session"
)

// RedisStore persists sessions in Redis, one JSON value per session.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisConfig holds Redis connection settings for session storage.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // key prefix, default "docqa:session:"
	TTL      time.Duration // 0 means sessions never expire
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(config *RedisConfig) *RedisStore {
	if config == nil {
		config = &RedisConfig{Addr: "localhost:6379"}
	}
	prefix := config.Prefix
	if prefix == "" {
		prefix = "docqa:session:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    config.TTL,
	}
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + sessionID
}

// Append implements session.Store.
func (s *RedisStore) Append(ctx context.Context, sessionID string, turns ...session.Turn) error {
	if sessionID == "" {
		return fmt.Errorf("session id cannot be empty: %w", errors.ErrInvalidInput)
	}

	now := time.Now().UTC()
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			return err
		}
		sess = &session.Session{ID: sessionID, CreatedAt: now}
	}
	sess.Turns = append(sess.Turns, turns...)
	sess.UpdatedAt = now

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(sessionID), data, s.ttl).Err(); err != nil {
		return errors.Transient("redis", "set-session", err)
	}
	return nil
}

// Get implements session.Store.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (*session.Session, error) {
	data, err := s.client.Get(ctx, s.key(sessionID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("session %s: %w", sessionID, errors.ErrNotFound)
		}
		return nil, errors.Transient("redis", "get-session", err)
	}

	var sess session.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

// Delete implements session.Store.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return errors.Transient("redis", "delete-session", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks whether the Redis connection is alive.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
