package db

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const (
	StateUp       = "up"
	StateDown     = "down"
	StateDisabled = "disabled"
)

// PingState maps a Pinger to up/down; a nil Pinger is disabled.
func PingState(ctx context.Context, p Pinger) string {
	if p == nil {
		return StateDisabled
	}
	if err := p.Ping(ctx); err != nil {
		return StateDown
	}
	return StateUp
}

// RedisPinger adapts a redis client to Pinger. A nil client stays nil.
func RedisPinger(client *redis.Client) Pinger {
	if client == nil {
		return nil
	}
	return redisPinger{client}
}

type redisPinger struct{ c *redis.Client }

func (r redisPinger) Ping(ctx context.Context) error { return r.c.Ping(ctx).Err() }
