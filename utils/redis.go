package utils

import (
	"context"
	"fmt"
	"time"

	"tutorbook/config"

	"github.com/go-redis/redis/v8"
)

// QueueRedisClient talks to the Redis database backing the task queue. It is
// used for health checks; asynq keeps its own connections.
var QueueRedisClient *redis.Client

// InitQueueRedis connects QueueRedisClient and verifies the connection.
func InitQueueRedis() error {
	QueueRedisClient = redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := QueueRedisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis (queue): %w", err)
	}
	return nil
}
