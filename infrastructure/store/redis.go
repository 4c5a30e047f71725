package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ahrav/go-thurstone/internal/ports"
)

const (
	backendRedis = "redis"

	// DefaultRedisPrefix namespaces session keys.
	DefaultRedisPrefix = "thurstone:session:"
)

// RedisOptions tunes a RedisStore.
type RedisOptions struct {
	// Prefix is prepended to every key. Empty selects DefaultRedisPrefix.
	Prefix string
	// TTL expires sessions after their last save. Zero keeps them.
	TTL time.Duration
}

// RedisStore persists sessions as JSON strings in Redis.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ ports.SessionStore = (*RedisStore)(nil)

// NewRedisStore connects to redisURL ("redis://host:port/db") and checks
// the connection.
func NewRedisStore(redisURL string, opts RedisOptions) (*RedisStore, error) {
	ro, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(ro)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisStoreWithClient(client, opts), nil
}

// NewRedisStoreWithClient creates a store from an existing client. The
// store takes ownership of the client and closes it on Close.
func NewRedisStoreWithClient(client *redis.Client, opts RedisOptions) *RedisStore {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix, ttl: opts.TTL}
}

func (s *RedisStore) key(id string) string { return s.prefix + id }

// Save implements ports.SessionStore.
func (s *RedisStore) Save(ctx context.Context, session *ports.Session) error {
	data, err := encodeSession(session)
	if err != nil {
		return ports.NewStoreError(backendRedis, "save", sessionID(session), err)
	}
	if err := s.client.Set(ctx, s.key(session.ID), data, s.ttl).Err(); err != nil {
		return ports.NewStoreError(backendRedis, "save", session.ID, err)
	}
	return nil
}

// Load implements ports.SessionStore.
func (s *RedisStore) Load(ctx context.Context, id string) (*ports.Session, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, notFound(backendRedis, id)
	}
	if err != nil {
		return nil, ports.NewStoreError(backendRedis, "load", id, err)
	}
	session, err := decodeSession(data)
	if err != nil {
		return nil, ports.NewStoreError(backendRedis, "load", id, err)
	}
	return session, nil
}

// Delete implements ports.SessionStore.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return ports.NewStoreError(backendRedis, "delete", id, err)
	}
	return nil
}

// List implements ports.SessionStore. It scans the key space, so it is
// meant for operators rather than hot paths.
func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	var ids []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, ports.NewStoreError(backendRedis, "list", "", err)
	}
	slices.Sort(ids)
	return slices.Compact(ids), nil
}

// Ping checks that Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close implements ports.SessionStore.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
