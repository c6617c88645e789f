// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// redis.go — Redis-backed Store. Writes retry transient failures with
// exponential backoff since the service treats persistence as
// fire-and-forget and will not re-issue them.

package kv

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
)

const redisWriteRetries = 3

// Redis is a Store backed by a Redis client.
type Redis struct {
	client redis.UniversalClient
}

// NewRedis wraps an existing Redis client.
func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

// GetInt64 returns the integer stored under key.
func (r *Redis) GetInt64(ctx context.Context, key string) (int64, bool, error) {
	raw, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

// SetInt64 stores v under key.
func (r *Redis) SetInt64(ctx context.Context, key string, v int64) error {
	return r.write(ctx, key, strconv.FormatInt(v, 10))
}

// GetString returns the string stored under key.
func (r *Redis) GetString(ctx context.Context, key string) (string, bool, error) {
	raw, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return raw, true, nil
}

// SetString stores v under key.
func (r *Redis) SetString(ctx context.Context, key, v string) error {
	return r.write(ctx, key, v)
}

// Remove deletes key.
func (r *Redis) Remove(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *Redis) write(ctx context.Context, key, val string) error {
	bo := backoff.WithContext(
		backoff.WithMaxRetries(newWriteBackOff(), redisWriteRetries), ctx)
	return backoff.Retry(func() error {
		err := r.client.Set(ctx, key, val, 0).Err()
		if err != nil && !isTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, bo)
}

func newWriteBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = 500 * time.Millisecond
	return bo
}

// isTransient reports whether a Redis error is worth retrying.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var redisErr redis.Error
	if errors.As(err, &redisErr) {
		// Server-side errors (WRONGTYPE, READONLY without failover, etc.)
		// will not heal on retry.
		return false
	}
	return true
}
