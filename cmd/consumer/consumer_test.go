package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/roadside-dispatch/internal/models"
)

// fakeUpdater implements RedisUpdater for tests
type fakeUpdater struct {
	failGeo  int // number of times to fail GeoAdd before succeeding
	failH    int // number of times to fail HSet before succeeding
	geoCalls int
	hCalls   int
	lastMeta map[string]interface{}
}

func (f *fakeUpdater) GeoAdd(ctx context.Context, key string, loc *redis.GeoLocation) error {
	f.geoCalls++
	if f.geoCalls <= f.failGeo {
		return errors.New("geo fail")
	}
	return nil
}

func (f *fakeUpdater) HSet(ctx context.Context, key string, values map[string]interface{}) error {
	f.hCalls++
	if f.hCalls <= f.failH {
		return errors.New("hset fail")
	}
	f.lastMeta = values
	return nil
}

func TestUpdateRedisWithRetry_SucceedsAfterRetries(t *testing.T) {
	f := &fakeUpdater{failGeo: 1, failH: 1}
	p := &models.Provider{ID: "p1", Loc: models.Coord{Lat: 1, Lon: 2}, Online: true}
	ctx := context.Background()
	start := time.Now()
	if err := updateRedisWithRetry(ctx, f, "providers_geo", p, 3, 10*time.Millisecond); err != nil {
		t.Fatalf("expected success, got err=%v", err)
	}
	if f.geoCalls < 2 || f.hCalls < 2 {
		t.Fatalf("expected retries, got geo=%d h=%d", f.geoCalls, f.hCalls)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatalf("expected at least one backoff")
	}
}

func TestUpdateRedisWithRetry_FailsWhenExhausted(t *testing.T) {
	f := &fakeUpdater{failGeo: 5, failH: 0}
	p := &models.Provider{ID: "p1", Loc: models.Coord{Lat: 1, Lon: 2}, Online: true}
	ctx := context.Background()
	if err := updateRedisWithRetry(ctx, f, "providers_geo", p, 3, 5*time.Millisecond); err == nil {
		t.Fatalf("expected error after retries")
	}
}

func TestUpdateRedisWithRetry_WritesLocationSharingMeta(t *testing.T) {
	f := &fakeUpdater{}
	p := &models.Provider{ID: "p1", Loc: models.Coord{Lat: 1, Lon: 2}, Online: true}
	if err := updateRedisWithRetry(context.Background(), f, "providers_geo", p, 1, time.Millisecond); err != nil {
		t.Fatalf("expected success, got err=%v", err)
	}
	if f.lastMeta["location_sharing"] != "true" {
		t.Fatalf("location_sharing flag missing: %v", f.lastMeta)
	}
	if _, err := time.Parse(time.RFC3339, f.lastMeta["updated"].(string)); err != nil {
		t.Fatalf("updated timestamp not RFC3339: %v", f.lastMeta["updated"])
	}
}
