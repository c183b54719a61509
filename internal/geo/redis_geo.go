package geo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/roadside-dispatch/internal/models"
)

// RedisIndex implements Index using Redis GEO commands. The consumer
// binary keeps it fed from the provider-locations topic.
type RedisIndex struct {
	client *redis.Client
	key    string
	ctx    context.Context
}

func NewRedisIndex(addr, password, key string) *RedisIndex {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisIndex{client: c, key: key, ctx: context.Background()}
}

// Client exposes the underlying connection for collaborators that share
// the same Redis (the location source reads provider metadata from it).
func (r *RedisIndex) Client() *redis.Client { return r.client }

func (r *RedisIndex) Upsert(p models.Provider) {
	// GEOADD for position, HSET for metadata
	_, _ = r.client.GeoAdd(r.ctx, r.key, &redis.GeoLocation{Longitude: p.Loc.Lon, Latitude: p.Loc.Lat, Name: p.ID}).Result()
	_ = r.client.HSet(r.ctx, MetaKey(p.ID), map[string]interface{}{
		"online":  strconv.FormatBool(p.Online),
		"updated": time.Now().Format(time.RFC3339),
	}).Err()
}

func (r *RedisIndex) Nearby(lat, lon float64, limit int) []models.Provider {
	res, err := r.client.GeoRadius(r.ctx, r.key, lon, lat, &redis.GeoRadiusQuery{Radius: 5000, Unit: "m", WithCoord: true, WithDist: true, Count: limit, Sort: "ASC"}).Result()
	if err != nil {
		return nil
	}
	out := make([]models.Provider, 0, len(res))
	for _, g := range res {
		p := models.Provider{ID: g.Name}
		p.Loc.Lat = g.Latitude
		p.Loc.Lon = g.Longitude
		if m, err := r.client.HGetAll(r.ctx, MetaKey(g.Name)).Result(); err == nil {
			if v, ok := m["online"]; ok {
				p.Online = (v == "true")
			}
			if v, ok := m["updated"]; ok {
				if ts, err := time.Parse(time.RFC3339, v); err == nil {
					p.Updated = ts
				}
			}
		}
		out = append(out, p)
	}
	return out
}

// MetaKey is the hash key holding per-provider metadata.
func MetaKey(id string) string { return fmt.Sprintf("provider:meta:%s", id) }
