// Package geocode resolves coordinates to human-readable landmarks.
// Lookups are best effort: every failure degrades to a coordinate-string
// fallback and never blocks the caller.
package geocode

import (
	"context"
	"fmt"

	"github.com/example/roadside-dispatch/internal/models"
)

// Client is the interface used by the reconciler's enrichment path.
type Client interface {
	ReverseGeocode(ctx context.Context, c models.Coord) (string, error)
}

// FallbackLabel is the degraded landmark text used when geocoding fails.
func FallbackLabel(c models.Coord) string {
	return fmt.Sprintf("%.5f, %.5f", c.Lat, c.Lon)
}

// Resolve runs the lookup and applies the fallback, so callers always get
// a usable label. A nil client short-circuits to the fallback.
func Resolve(ctx context.Context, cl Client, c models.Coord) string {
	if cl == nil {
		return FallbackLabel(c)
	}
	name, err := cl.ReverseGeocode(ctx, c)
	if err != nil || name == "" {
		return FallbackLabel(c)
	}
	return name
}
