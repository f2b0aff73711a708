// ABOUTME: Redis-backed revocation list shared by every notebox instance
// ABOUTME: Keys are SHA-256 digests of tokens and expire with the token

package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "notebox:revoked:"

// RedisRevocations stores revoked tokens in redis with a TTL matching the
// token's remaining lifetime.
type RedisRevocations struct {
	client    *redis.Client
	now       func() time.Time
	closeOnce sync.Once
	closeErr  error
}

// RedisOptions configures the redis connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisRevocations connects to redis and verifies the connection.
func NewRedisRevocations(ctx context.Context, opts RedisOptions) (*RedisRevocations, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return newRedisRevocations(client), nil
}

func newRedisRevocations(client *redis.Client) *RedisRevocations {
	return &RedisRevocations{client: client, now: time.Now}
}

func revocationKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return redisKeyPrefix + hex.EncodeToString(sum[:])
}

// Revoke stores the token until expiresAt. Tokens already expired are not
// written.
func (r *RedisRevocations) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, revocationKey(token), 1, ttl).Err(); err != nil {
		return fmt.Errorf("storing revocation: %w", err)
	}
	return nil
}

// IsRevoked reports whether the token's key exists.
func (r *RedisRevocations) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := r.client.Exists(ctx, revocationKey(token)).Result()
	if err != nil {
		return false, fmt.Errorf("checking revocation: %w", err)
	}
	return n > 0, nil
}

// Close closes the redis client. It is safe to call multiple times.
func (r *RedisRevocations) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.client.Close()
	})
	return r.closeErr
}
