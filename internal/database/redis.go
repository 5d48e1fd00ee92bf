package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var RedisClient *redis.Client

// NewRedisClient parses redisURI and applies the pool settings shared by
// sessions, the action limiter and the complaint event subscriber.
func NewRedisClient(redisURI string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURI)
	if err != nil {
		return nil, fmt.Errorf("parse redis uri: %w", err)
	}

	// The event subscriber holds one connection for its lifetime.
	opt.PoolSize = 20
	opt.MinIdleConns = 4
	opt.MaxRetries = 2
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 2 * time.Second
	opt.WriteTimeout = 2 * time.Second
	opt.PoolTimeout = 3 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute

	return redis.NewClient(opt), nil
}

// ConnectRedis builds the shared client and checks it answers PING.
func ConnectRedis(redisURI string, log *zap.Logger) error {
	client, err := NewRedisClient(redisURI)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("ping redis: %w", err)
	}

	RedisClient = client
	log.Info("✅ Connected to Redis", zap.Int("db", client.Options().DB))
	return nil
}

func DisconnectRedis() error {
	if RedisClient == nil {
		return nil
	}
	err := RedisClient.Close()
	RedisClient = nil
	return err
}
