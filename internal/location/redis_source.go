package location

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/roadside-dispatch/internal/geo"
	"github.com/example/roadside-dispatch/internal/models"
)

// RedisSource reads provider positions from the shared Redis GEO index
// fed by the location consumer. Permission reflects whether the provider
// has opted into location sharing (a flag on the metadata hash).
type RedisSource struct {
	client *redis.Client
	geoKey string
}

func NewRedisSource(client *redis.Client, geoKey string) *RedisSource {
	return &RedisSource{client: client, geoKey: geoKey}
}

func (s *RedisSource) Permission(ctx context.Context, providerID string) (Permission, error) {
	v, err := s.client.HGet(ctx, geo.MetaKey(providerID), "location_sharing").Result()
	if err == redis.Nil {
		return PermissionUnknown, nil
	}
	if err != nil {
		return PermissionUnknown, err
	}
	if v == "true" {
		return PermissionGranted, nil
	}
	return PermissionDenied, nil
}

func (s *RedisSource) LastKnown(ctx context.Context, providerID string, maxAge time.Duration) (*Position, error) {
	pos, err := s.read(ctx, providerID)
	if err != nil || pos == nil {
		return nil, err
	}
	if maxAge > 0 && !pos.At.IsZero() && time.Since(pos.At) > maxAge {
		return nil, nil
	}
	return pos, nil
}

// Current is the same read; freshness is whatever the consumer last
// folded in. The tier is recorded on the result for the caller.
func (s *RedisSource) Current(ctx context.Context, providerID string, tier AccuracyTier) (*Position, error) {
	pos, err := s.read(ctx, providerID)
	if err != nil || pos == nil {
		return nil, err
	}
	pos.Accuracy = tier
	return pos, nil
}

func (s *RedisSource) read(ctx context.Context, providerID string) (*Position, error) {
	res, err := s.client.GeoPos(ctx, s.geoKey, providerID).Result()
	if err != nil {
		return nil, err
	}
	if len(res) == 0 || res[0] == nil {
		return nil, nil
	}
	pos := &Position{
		Coord:    models.Coord{Lat: res[0].Latitude, Lon: res[0].Longitude},
		Accuracy: AccuracyCoarse,
	}
	if v, err := s.client.HGet(ctx, geo.MetaKey(providerID), "updated").Result(); err == nil {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			pos.At = ts
		}
	}
	return pos, nil
}
