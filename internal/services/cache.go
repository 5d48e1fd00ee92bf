package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AnshRaj112/municipal-portal-backend/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// CacheKeyPrefix is the Redis key prefix for cached data
	CacheKeyPrefix = "cache:"
	// DefaultCacheTTL applies when a caller passes no TTL
	DefaultCacheTTL = 5 * time.Minute
	// MaxCacheTTL caps how stale a cached value may get
	MaxCacheTTL = time.Hour
)

// Cache stores JSON values in Redis. A nil client turns every call into a miss.
type Cache struct {
	rdb *redis.Client
}

func NewCache(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// Get decodes the cached value for key into dest and reports whether it was found.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if c == nil || c.rdb == nil {
		return false, nil
	}
	val, err := c.rdb.Get(ctx, CacheKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores value under key. ttl is clamped to (0, MaxCacheTTL].
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if ttl > MaxCacheTTL {
		ttl = MaxCacheTTL
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, CacheKeyPrefix+key, data, ttl).Err()
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, CacheKeyPrefix+key).Err()
}

// CacheKey generates a cache key for a specific resource
func CacheKey(resource string, identifier string) string {
	return fmt.Sprintf("%s:%s", resource, identifier)
}

// CachedApplicationStore serves per-user application listings from Redis
// and drops a user's entry whenever they file a new application.
type CachedApplicationStore struct {
	next  ApplicationStore
	cache *Cache
	ttl   time.Duration
	log   *zap.Logger
}

func NewCachedApplicationStore(next ApplicationStore, cache *Cache, ttl time.Duration, log *zap.Logger) *CachedApplicationStore {
	return &CachedApplicationStore{next: next, cache: cache, ttl: ttl, log: log}
}

func applicationsKey(userID string, limit int) string {
	return CacheKey("applications", fmt.Sprintf("%s:%d", userID, limit))
}

func (s *CachedApplicationStore) Insert(ctx context.Context, app *models.ServiceApplication) error {
	if err := s.next.Insert(ctx, app); err != nil {
		return err
	}
	if app.UserID != "" {
		if err := s.cache.Delete(ctx, applicationsKey(app.UserID, MaxApplicationList)); err != nil {
			s.log.Warn("failed to invalidate application cache", zap.String("user_id", app.UserID), zap.Error(err))
		}
	}
	return nil
}

func (s *CachedApplicationStore) ListByUser(ctx context.Context, userID string, limit int) ([]models.ServiceApplication, error) {
	key := applicationsKey(userID, limit)
	var cached []models.ServiceApplication
	if ok, err := s.cache.Get(ctx, key, &cached); err != nil {
		s.log.Warn("application cache read failed", zap.Error(err))
	} else if ok {
		return cached, nil
	}

	list, err := s.next.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, list, s.ttl); err != nil {
		s.log.Warn("application cache write failed", zap.Error(err))
	}
	return list, nil
}
