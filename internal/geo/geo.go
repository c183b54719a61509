package geo

import (
	"math"
	"sync"
	"time"

	"github.com/example/roadside-dispatch/internal/models"
)

// Index is the minimal interface required by the location source and the
// handlers for tracking provider positions.
type Index interface {
	Nearby(lat, lon float64, limit int) []models.Provider
	Upsert(p models.Provider)
}

type MemoryIndex struct {
	mu        sync.RWMutex
	providers map[string]models.Provider
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{providers: make(map[string]models.Provider)}
}

func (g *MemoryIndex) Upsert(p models.Provider) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p.Updated = time.Now()
	g.providers[p.ID] = p
}

// naive scan; in prod use geo-hash or H3
func (g *MemoryIndex) Nearby(lat, lon float64, limit int) []models.Provider {
	g.mu.RLock()
	defer g.mu.RUnlock()
	type pair struct {
		p    models.Provider
		dist float64
	}
	arr := make([]pair, 0, len(g.providers))
	for _, p := range g.providers {
		if !p.Online {
			continue
		}
		dist := DistanceKm(models.Coord{Lat: lat, Lon: lon}, p.Loc)
		arr = append(arr, pair{p, dist})
	}
	// partial selection sort for top-N
	n := limit
	if n > len(arr) {
		n = len(arr)
	}
	for i := 0; i < n; i++ {
		minIdx := i
		for j := i + 1; j < len(arr); j++ {
			if arr[j].dist < arr[minIdx].dist {
				minIdx = j
			}
		}
		arr[i], arr[minIdx] = arr[minIdx], arr[i]
	}
	out := make([]models.Provider, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, arr[i].p)
	}
	return out
}

// DistanceKm returns the great-circle distance between two coordinates in
// kilometers, haversine over a 6371 km Earth radius. NaN inputs propagate;
// callers gating on distance must check coordinates first.
func DistanceKm(a, b models.Coord) float64 {
	const R = 6371.0
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return R * c
}
