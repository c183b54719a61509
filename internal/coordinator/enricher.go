package coordinator

import (
	"context"
	"errors"
	"sync"

	"github.com/example/roadside-dispatch/internal/geocode"
	"github.com/example/roadside-dispatch/internal/models"
)

// ProfileStore resolves a reporter id to a display name.
type ProfileStore interface {
	ReporterName(ctx context.Context, reporterID string) (string, error)
}

// StaticProfiles is an in-memory profile source.
type StaticProfiles struct {
	mu    sync.RWMutex
	names map[string]string
}

func NewStaticProfiles() *StaticProfiles {
	return &StaticProfiles{names: make(map[string]string)}
}

func (s *StaticProfiles) Set(reporterID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names[reporterID] = name
}

func (s *StaticProfiles) ReporterName(ctx context.Context, reporterID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.names[reporterID], nil
}

// Enricher combines the geocoder and the profile source for the
// reconciler's out-of-band enrichment. Either half failing degrades that
// half only.
type Enricher struct {
	Geocoder geocode.Client
	Profiles ProfileStore
}

func (e *Enricher) Enrich(ctx context.Context, rec models.EmergencyRequest) (string, string, error) {
	var place, name string
	var placeErr, nameErr error
	if e.Geocoder != nil {
		place, placeErr = e.Geocoder.ReverseGeocode(ctx, rec.Loc)
	}
	if e.Profiles != nil {
		name, nameErr = e.Profiles.ReporterName(ctx, rec.ReporterID)
	}
	return place, name, errors.Join(placeErr, nameErr)
}
