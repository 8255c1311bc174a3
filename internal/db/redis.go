package db

import (
	"time"

	"backend-mchanga/internal/config"

	"github.com/redis/go-redis/v9"
)

// ConnectRedis returns nil when no address is configured; the event mirror
// and live vehicle state are skipped in that case.
func ConnectRedis(cfg config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		ClientName:  applicationName,
		DialTimeout: 3 * time.Second,
	})
}
