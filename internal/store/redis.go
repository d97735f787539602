package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const redisKeyPrefix = "watermark:request:"

// RedisStore implements RequestStore on Redis. Records are JSON values with
// a RequestTTL expiry.
type RedisStore struct {
	client redis.Cmdable
}

var _ RequestStore = (*RedisStore)(nil)

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

// OpenRedis parses a redis:// URL and verifies the server answers PING.
func OpenRedis(ctx context.Context, url string) (*RedisStore, *redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	log.Debug().Str("addr", opts.Addr).Int("db", opts.DB).Msg("Redis connected")
	return NewRedisStore(client), client, nil
}

func redisKey(id string) string {
	return redisKeyPrefix + id
}

func (s *RedisStore) PutRequest(ctx context.Context, req *Request) error {
	if req == nil || req.ID == "" {
		return errors.New("request record without ID")
	}
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request %s: %w", req.ID, err)
	}
	if err := s.client.Set(ctx, redisKey(req.ID), data, RequestTTL).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", redisKey(req.ID), err)
	}
	return nil
}

func (s *RedisStore) GetRequest(ctx context.Context, id string) (*Request, error) {
	data, err := s.client.Get(ctx, redisKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis GET %s: %w", redisKey(id), err)
	}
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("unmarshal request %s: %w", id, err)
	}
	return &req, nil
}
