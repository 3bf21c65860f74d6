// Package cache puts a Redis read-aside cache in front of the token store.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tinywideclouds/go-chatroom-notifier/pkg/chatroom"
	"github.com/tinywideclouds/go-chatroom-notifier/pkg/dispatch"
)

// CacheClient defines the subset of Redis commands we need.
type CacheClient interface {
	// Get decodes the value into dest, or returns ErrCacheMiss.
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// CachedTokenStore is a decorator that adds read-aside caching to any dispatch.TokenStore.
type CachedTokenStore struct {
	realStore dispatch.TokenStore
	cache     CacheClient
	ttl       time.Duration
	logger    *slog.Logger
}

func NewCachedTokenStore(realStore dispatch.TokenStore, cache CacheClient, ttl time.Duration, logger *slog.Logger) *CachedTokenStore {
	return &CachedTokenStore{
		realStore: realStore,
		cache:     cache,
		ttl:       ttl,
		logger:    logger.With("component", "CachedTokenStore"),
	}
}

// GetTokens serves from Redis when it can. Absent records are not cached.
func (s *CachedTokenStore) GetTokens(ctx context.Context, userID string) (*chatroom.TokenRecord, error) {
	key := cacheKey(userID)

	var cached chatroom.TokenRecord
	err := s.cache.Get(ctx, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		s.logger.Warn("Token cache read failed; falling back to store", "user_id", userID, "err", err)
	}

	record, err := s.realStore.GetTokens(ctx, userID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}

	// caching is an optimization; the store stays authoritative
	if err := s.cache.Set(ctx, key, record, s.ttl); err != nil {
		s.logger.Warn("Token cache write failed", "user_id", userID, "err", err)
	}
	return record, nil
}

func (s *CachedTokenStore) RegisterToken(ctx context.Context, userID, token string) error {
	if err := s.realStore.RegisterToken(ctx, userID, token); err != nil {
		return err
	}
	return s.invalidate(ctx, userID)
}

// RemoveToken must clear the cache even on cleanup paths, or a dead token
// would be served again until the TTL expires.
func (s *CachedTokenStore) RemoveToken(ctx context.Context, userID, token string) error {
	if err := s.realStore.RemoveToken(ctx, userID, token); err != nil {
		return err
	}
	return s.invalidate(ctx, userID)
}

func (s *CachedTokenStore) invalidate(ctx context.Context, userID string) error {
	if err := s.cache.Del(ctx, cacheKey(userID)); err != nil {
		return fmt.Errorf("failed to invalidate cached tokens for user %s: %w", userID, err)
	}
	return nil
}

func cacheKey(userID string) string {
	return fmt.Sprintf("notify:tokens:%s", userID)
}
