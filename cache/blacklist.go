package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Blacklister stores revoked session tokens until their natural expiry.
type Blacklister interface {
	Revoke(ctx context.Context, token string, ttl time.Duration) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// TokenBlacklist is the redis-backed Blacklister.
type TokenBlacklist struct {
	client *redis.Client
}

var Blacklist Blacklister

func InitBlacklist(addr string) {
	Blacklist = NewTokenBlacklist(addr)
}

func NewTokenBlacklist(addr string) *TokenBlacklist {
	return &TokenBlacklist{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func (b *TokenBlacklist) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return b.client.Set(ctx, b.key(token), "1", ttl).Err()
}

func (b *TokenBlacklist) IsRevoked(ctx context.Context, token string) (bool, error) {
	_, err := b.client.Get(ctx, b.key(token)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (b *TokenBlacklist) key(token string) string {
	return fmt.Sprintf("auth:blacklist:%s", token)
}
