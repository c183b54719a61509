package geocode

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/roadside-dispatch/internal/models"
)

type fakeClient struct {
	name  string
	err   error
	calls int
}

func (f *fakeClient) ReverseGeocode(ctx context.Context, c models.Coord) (string, error) {
	f.calls++
	return f.name, f.err
}

func TestResolveFallsBackOnError(t *testing.T) {
	c := models.Coord{Lat: 12.34567, Lon: 76.54321}
	got := Resolve(context.Background(), &fakeClient{err: errors.New("down")}, c)
	if got != "12.34567, 76.54321" {
		t.Fatalf("expected coordinate fallback, got %q", got)
	}
}

func TestResolveFallsBackOnNilClient(t *testing.T) {
	c := models.Coord{Lat: 1, Lon: 2}
	if got := Resolve(context.Background(), nil, c); got != FallbackLabel(c) {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestCachedClientCachesSuccess(t *testing.T) {
	f := &fakeClient{name: "Elm & 3rd"}
	cc := &CachedClient{Inner: f, Cache: NewCache(time.Minute)}
	c := models.Coord{Lat: 1, Lon: 2}
	for i := 0; i < 3; i++ {
		got, err := cc.ReverseGeocode(context.Background(), c)
		if err != nil || got != "Elm & 3rd" {
			t.Fatalf("lookup %d: got %q err %v", i, got, err)
		}
	}
	if f.calls != 1 {
		t.Fatalf("expected 1 upstream call, got %d", f.calls)
	}
}

func TestCachedClientDoesNotCacheFailure(t *testing.T) {
	f := &fakeClient{err: errors.New("down")}
	cc := &CachedClient{Inner: f, Cache: NewCache(time.Minute)}
	c := models.Coord{Lat: 1, Lon: 2}
	_, _ = cc.ReverseGeocode(context.Background(), c)
	_, _ = cc.ReverseGeocode(context.Background(), c)
	if f.calls != 2 {
		t.Fatalf("failures must not be cached, got %d calls", f.calls)
	}
}
