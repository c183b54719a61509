// Package visibility implements the age-or-distance policy deciding
// whether a waiting emergency is exposed to an observer.
package visibility

import (
	"time"

	"github.com/example/roadside-dispatch/internal/geo"
	"github.com/example/roadside-dispatch/internal/models"
)

// Gate holds the visibility thresholds. Both come from configuration;
// reference defaults are 10 minutes and 2 km.
type Gate struct {
	AgeThreshold time.Duration
	DistanceKm   float64
}

// Visible reports whether rec should be exposed to an observer at the
// given position. A record is visible once its age exceeds the threshold
// (public release), or earlier when the observer is known to be within
// the distance threshold. Unknown observer position before the age
// threshold fails closed. Callers filter by lifecycle status upstream;
// the gate itself only applies the age/distance policy.
func (g Gate) Visible(rec models.EmergencyRequest, observer *models.Coord, now time.Time) bool {
	if now.Sub(rec.CreatedAt) > g.AgeThreshold {
		return true
	}
	if observer == nil {
		return false
	}
	return geo.DistanceKm(*observer, rec.Loc) <= g.DistanceKm
}
