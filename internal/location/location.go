// Package location abstracts the provider position source. Missing
// permission is a normal, expected state surfaced as a status value, not
// an error.
package location

import (
	"context"
	"time"

	"github.com/example/roadside-dispatch/internal/models"
)

type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionUnknown Permission = "unknown"
)

// AccuracyTier selects how precise a current-position read should be.
type AccuracyTier string

const (
	AccuracyCoarse AccuracyTier = "coarse"
	AccuracyFine   AccuracyTier = "fine"
)

type Position struct {
	Coord    models.Coord
	Accuracy AccuracyTier
	At       time.Time
}

// Source yields provider positions. LastKnown returns (nil, nil) when no
// position newer than maxAge exists; that is a normal answer, not a fault.
type Source interface {
	Permission(ctx context.Context, providerID string) (Permission, error)
	LastKnown(ctx context.Context, providerID string, maxAge time.Duration) (*Position, error)
	Current(ctx context.Context, providerID string, tier AccuracyTier) (*Position, error)
}

// StaticSource serves one fixed position, used by tools and tests.
type StaticSource struct {
	Pos Position
}

func (s *StaticSource) Permission(ctx context.Context, providerID string) (Permission, error) {
	return PermissionGranted, nil
}

func (s *StaticSource) LastKnown(ctx context.Context, providerID string, maxAge time.Duration) (*Position, error) {
	if maxAge > 0 && time.Since(s.Pos.At) > maxAge {
		return nil, nil
	}
	p := s.Pos
	return &p, nil
}

func (s *StaticSource) Current(ctx context.Context, providerID string, tier AccuracyTier) (*Position, error) {
	p := s.Pos
	p.Accuracy = tier
	return &p, nil
}
