package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const GeoKey = "fleet:vehicles:geo"

// RedisLiveState keeps the latest position of each vehicle in a hash with a
// TTL and in a GEO set for proximity lookups by other services.
type RedisLiveState struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLiveState(client *redis.Client, ttl time.Duration) *RedisLiveState {
	return &RedisLiveState{client: client, ttl: ttl}
}

func StateKey(vehicleID string) string {
	return fmt.Sprintf("vehicle:%s:state", vehicleID)
}

func (r *RedisLiveState) Record(ctx context.Context, st LiveState) error {
	key := StateKey(st.VehicleID)

	pipe := r.client.Pipeline()
	pipe.HSet(ctx, key, map[string]any{
		"vehicle_id":  st.VehicleID,
		"lat":         st.Location.Latitude,
		"lng":         st.Location.Longitude,
		"status":      st.Status,
		"distance_km": st.Distance,
		"updated_at":  st.UpdatedAt.Unix(),
	})
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	pipe.GeoAdd(ctx, GeoKey, &redis.GeoLocation{
		Name:      st.VehicleID,
		Longitude: st.Location.Longitude,
		Latitude:  st.Location.Latitude,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis live state: %w", err)
	}
	return nil
}
