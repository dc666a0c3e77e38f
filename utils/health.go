package utils

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
)

// HealthStatus represents current status of external services.
type HealthStatus struct {
	Store     string    `json:"store"`
	StoreOK   bool      `json:"storeOk"`
	Redis     bool      `json:"redis"`
	CheckedAt time.Time `json:"checkedAt"`
}

// Healthy reports whether every dependency answered the last check.
func (h HealthStatus) Healthy() bool {
	return h.StoreOK && h.Redis
}

var (
	currentHealth HealthStatus
	healthMu      sync.RWMutex
)

// GetHealthStatus returns latest stored health snapshot.
func GetHealthStatus() HealthStatus {
	healthMu.RLock()
	defer healthMu.RUnlock()
	return currentHealth
}

// CheckHealth pings the dependencies once and stores the result. A nil
// mongoClient means the in-memory store is in use.
func CheckHealth(ctx context.Context, redisClient *redis.Client, mongoClient *mongo.Client) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	status := HealthStatus{Store: "memory", StoreOK: true, CheckedAt: time.Now().UTC()}
	if mongoClient != nil {
		status.Store = "mongo"
		status.StoreOK = mongoClient.Ping(ctx, nil) == nil
	}
	if redisClient != nil {
		status.Redis = redisClient.Ping(ctx).Err() == nil
	}

	healthMu.Lock()
	currentHealth = status
	healthMu.Unlock()
	return status
}

// StartHealthMonitor refreshes the health snapshot every interval until ctx ends.
func StartHealthMonitor(ctx context.Context, redisClient *redis.Client, mongoClient *mongo.Client, interval time.Duration) {
	CheckHealth(ctx, redisClient, mongoClient)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				status := CheckHealth(ctx, redisClient, mongoClient)
				if !status.Healthy() {
					GetLogger().Sugar().Warnw("Dependency unhealthy",
						"store", status.Store, "storeOk", status.StoreOK, "redis", status.Redis)
				}
			}
		}
	}()
}
