package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"duel-engine/services"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CachedHandleStore puts a Redis read-through cache with TTL in front of handle lookups.
// Ratings are never cached: they are read and written inside challenge transactions.
type CachedHandleStore struct {
	Inner services.HandleStore
	Redis *redis.Client
	TTL   time.Duration
	Log   *zap.Logger
}

func NewCachedHandleStore(inner services.HandleStore, rdb *redis.Client, ttl time.Duration, log *zap.Logger) *CachedHandleStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedHandleStore{Inner: inner, Redis: rdb, TTL: ttl, Log: log}
}

func handleKey(scopeID, userID string) string {
	return fmt.Sprintf("duel:handle:%s:%s", scopeID, userID)
}

func (s *CachedHandleStore) WithTx(tx *gorm.DB) services.HandleStore {
	return &CachedHandleStore{Inner: s.Inner.WithTx(tx), Redis: s.Redis, TTL: s.TTL, Log: s.Log}
}

func (s *CachedHandleStore) GetRating(ctx context.Context, scopeID, userID string) (int, error) {
	return s.Inner.GetRating(ctx, scopeID, userID)
}

func (s *CachedHandleStore) UpdateRating(ctx context.Context, scopeID, userID string, rating int) error {
	return s.Inner.UpdateRating(ctx, scopeID, userID, rating)
}

// GetLinkedHandle serves from Redis when possible. Cache failures fall through to the store.
func (s *CachedHandleStore) GetLinkedHandle(ctx context.Context, scopeID, userID string) (string, bool, error) {
	key := handleKey(scopeID, userID)
	handle, err := s.Redis.Get(ctx, key).Result()
	switch {
	case err == nil:
		return handle, true, nil
	case !errors.Is(err, redis.Nil):
		s.Log.Warn("handle cache read failed", zap.String("key", key), zap.Error(err))
	}

	handle, linked, err := s.Inner.GetLinkedHandle(ctx, scopeID, userID)
	if err != nil || !linked {
		return handle, linked, err
	}
	if err := s.Redis.Set(ctx, key, handle, s.TTL).Err(); err != nil {
		s.Log.Warn("handle cache write failed", zap.String("key", key), zap.Error(err))
	}
	return handle, true, nil
}

// Invalidate drops a cached handle after it was relinked.
func (s *CachedHandleStore) Invalidate(ctx context.Context, scopeID, userID string) error {
	return s.Redis.Del(ctx, handleKey(scopeID, userID)).Err()
}

type handleLinker interface {
	LinkHandle(ctx context.Context, scopeID, userID, handle string) error
}

// LinkHandle links through the wrapped store and drops the stale cache entry.
func (s *CachedHandleStore) LinkHandle(ctx context.Context, scopeID, userID, handle string) error {
	linker, ok := s.Inner.(handleLinker)
	if !ok {
		return errors.New("wrapped handle store cannot link handles")
	}
	if err := linker.LinkHandle(ctx, scopeID, userID, handle); err != nil {
		return err
	}
	if err := s.Invalidate(ctx, scopeID, userID); err != nil {
		s.Log.Warn("handle cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
	}
	return nil
}
