// Package store persists emergencies, offers and settlement snapshots.
//
// Acceptance arbitration is a documented contract here, not an incidental
// behavior: Accept performs a compare-and-swap on the status column and
// succeeds for exactly one caller when several race. Losers get a
// ConflictError, which callers treat as a normal outcome, never a
// retryable fault.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/example/roadside-dispatch/internal/models"
)

var ErrNotFound = errors.New("not found")

type EmergencyStore interface {
	Create(ctx context.Context, e *models.EmergencyRequest) error
	Get(ctx context.Context, id string) (*models.EmergencyRequest, error)

	// Accept flips waiting -> in_process only if the row is still waiting,
	// stamping accepted_by/accepted_at. Returns the updated row, or a
	// ConflictError when another provider already won.
	Accept(ctx context.Context, id, providerID string, at time.Time) (*models.EmergencyRequest, error)

	// Complete flips in_process -> completed; called after payment is
	// confirmed, not at invoice time.
	Complete(ctx context.Context, id string, at time.Time) (*models.EmergencyRequest, error)

	// Cancel flips in_process -> canceled and records the reason.
	Cancel(ctx context.Context, id, reason string, at time.Time) (*models.EmergencyRequest, error)

	ListWaiting(ctx context.Context) ([]models.EmergencyRequest, error)

	// VisibleTo is the server-side prefilter for the visibility gate:
	// waiting rows already past the age threshold or roughly within the
	// distance threshold of the observer. It over-approximates; the
	// reconciler applies the exact gate to whatever comes back. Callers
	// fall back to ListWaiting plus the local gate when it fails.
	VisibleTo(ctx context.Context, observer models.Coord, distanceKm float64, ageThreshold time.Duration) ([]models.EmergencyRequest, error)
}

type OfferStore interface {
	Put(ctx context.Context, o *models.Offer) error
	Get(ctx context.Context, id string) (*models.Offer, error)
	ListByEmergency(ctx context.Context, emergencyID string) ([]models.Offer, error)

	// RejectPendingExcept marks every pending offer on the emergency as
	// rejected except the winning provider's.
	RejectPendingExcept(ctx context.Context, emergencyID, providerID string) error

	// SetHidden toggles the provider-local soft dismissal.
	SetHidden(ctx context.Context, id, providerID string, hidden bool) error
}

type SettlementStore interface {
	// Put upserts the snapshot. The distance fee is immutable: on an
	// existing snapshot the stored value is kept regardless of input.
	Put(ctx context.Context, s *models.SettlementSnapshot) error
	Get(ctx context.Context, emergencyID string) (*models.SettlementSnapshot, error)
}
