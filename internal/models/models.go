package models

import (
	"time"

	"github.com/example/roadside-dispatch/internal/money"
)

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// EmergencyStatus is the lifecycle state of an EmergencyRequest.
type EmergencyStatus string

const (
	StatusWaiting   EmergencyStatus = "waiting"
	StatusInProcess EmergencyStatus = "in_process"
	StatusCompleted EmergencyStatus = "completed"
	StatusCanceled  EmergencyStatus = "canceled"
)

// EmergencyRequest is a reported breakdown awaiting or under service.
// AcceptedBy is empty while the request is waiting; once a provider wins
// the acceptance race it is set and never cleared.
type EmergencyRequest struct {
	ID              string          `json:"id"`
	ReporterID      string          `json:"reporter_id"`
	VehicleCategory string          `json:"vehicle_category"`
	Cause           string          `json:"cause"`
	Attachments     []string        `json:"attachments,omitempty"`
	Loc             Coord           `json:"loc"`
	CreatedAt       time.Time       `json:"created_at"`
	Status          EmergencyStatus `json:"status"`
	AcceptedBy      string          `json:"accepted_by,omitempty"`
	AcceptedAt      *time.Time      `json:"accepted_at,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	CanceledAt      *time.Time      `json:"canceled_at,omitempty"`
	CanceledReason  string          `json:"canceled_reason,omitempty"`
}

type OfferStatus string

const (
	OfferPending  OfferStatus = "pending"
	OfferAccepted OfferStatus = "accepted"
	OfferRejected OfferStatus = "rejected"
	OfferCanceled OfferStatus = "canceled"
)

// Offer is a provider's claim against an EmergencyRequest. Hidden is a
// provider-local soft dismissal and never affects other observers.
type Offer struct {
	ID          string      `json:"id"`
	EmergencyID string      `json:"emergency_id"`
	ProviderID  string      `json:"provider_id"`
	Loc         Coord       `json:"loc"`
	Status      OfferStatus `json:"status"`
	RequestedAt time.Time   `json:"requested_at"`
	AcceptedAt  *time.Time  `json:"accepted_at,omitempty"`
	Hidden      bool        `json:"hidden"`
}

type SettlementStatus string

const (
	SettlementPending  SettlementStatus = "pending"
	SettlementToPay    SettlementStatus = "to_pay"
	SettlementPaid     SettlementStatus = "paid"
	SettlementCanceled SettlementStatus = "canceled"
)

// ExtraItem is one itemized charge on a completion invoice.
// Qty defaults to 1 when left at zero.
type ExtraItem struct {
	Name      string       `json:"name"`
	Qty       int          `json:"qty"`
	UnitPrice money.Amount `json:"unit_price"`
}

// SettlementSnapshot holds the cost components for one accepted emergency.
// DistanceFee is captured at acceptance and never changes afterwards;
// Total is always recomputed from the parts, never hand-edited.
type SettlementSnapshot struct {
	EmergencyID string           `json:"emergency_id"`
	ProviderID  string           `json:"provider_id"`
	DistanceFee money.Amount     `json:"distance_fee"`
	LaborCost   money.Amount     `json:"labor_cost"`
	Extras      []ExtraItem      `json:"extras,omitempty"`
	Total       money.Amount     `json:"total"`
	Status      SettlementStatus `json:"status"`
	PaymentRef  string           `json:"payment_ref,omitempty"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

type ChangeType string

const (
	ChangeInsert ChangeType = "insert"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// ChangeEvent is one row-level notification from the emergencies change
// stream. Row carries the full row as of the change; for deletes only the
// ID is guaranteed meaningful.
type ChangeEvent struct {
	Type ChangeType       `json:"type"`
	Row  EmergencyRequest `json:"row"`
}

// Provider is a repair provider tracked in the geo index.
type Provider struct {
	ID      string    `json:"id"`
	Loc     Coord     `json:"loc"`
	Online  bool      `json:"online"`
	Updated time.Time `json:"updated"`
}
