package geo

import (
	"math"
	"testing"

	"github.com/example/roadside-dispatch/internal/models"
)

func TestDistanceZero(t *testing.T) {
	a := models.Coord{Lat: 48.8566, Lon: 2.3522}
	if d := DistanceKm(a, a); d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestDistanceSymmetric(t *testing.T) {
	a := models.Coord{Lat: 40.7128, Lon: -74.0060}
	b := models.Coord{Lat: 34.0522, Lon: -118.2437}
	if DistanceKm(a, b) != DistanceKm(b, a) {
		t.Fatalf("distance not symmetric")
	}
}

func TestDistanceOneDegreeLatitude(t *testing.T) {
	a := models.Coord{Lat: 0, Lon: 0}
	b := models.Coord{Lat: 1, Lon: 0}
	d := DistanceKm(a, b)
	// one degree of latitude is ~111.2 km
	if d < 111 || d > 112 {
		t.Fatalf("expected ~111.2 km, got %f", d)
	}
}

func TestDistanceNaNPropagates(t *testing.T) {
	a := models.Coord{Lat: math.NaN(), Lon: 0}
	b := models.Coord{Lat: 1, Lon: 0}
	if !math.IsNaN(DistanceKm(a, b)) {
		t.Fatalf("expected NaN to propagate")
	}
}

func TestMemoryIndexNearby(t *testing.T) {
	idx := NewMemoryIndex()
	idx.Upsert(models.Provider{ID: "near", Loc: models.Coord{Lat: 0.001, Lon: 0}, Online: true})
	idx.Upsert(models.Provider{ID: "far", Loc: models.Coord{Lat: 5, Lon: 5}, Online: true})
	idx.Upsert(models.Provider{ID: "offline", Loc: models.Coord{Lat: 0, Lon: 0}, Online: false})

	got := idx.Nearby(0, 0, 1)
	if len(got) != 1 || got[0].ID != "near" {
		t.Fatalf("expected [near], got %+v", got)
	}
}
