package database

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/prisonfinance/ledger-sync/internal/config"
	log "github.com/sirupsen/logrus"
)

// InitRedis connects to Redis. A nil client means the service runs without
// the balance cache.
func InitRedis(cfg config.RedisConfig) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Host + ":" + cfg.Port,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.WithField("component", "redis").WithError(err).Warn("Redis connection failed, continuing without Redis")
		rdb.Close()
		return nil
	}

	log.WithField("component", "redis").Info("Redis connection established")
	return rdb
}
