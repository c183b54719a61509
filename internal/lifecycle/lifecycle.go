// Package lifecycle defines the state machines for emergencies and offers
// and the guards enforced before any transition is written.
package lifecycle

import (
	"github.com/example/roadside-dispatch/internal/faults"
	"github.com/example/roadside-dispatch/internal/models"
)

// emergency transition table; terminal states have no outgoing edges.
var emergencyTransitions = map[models.EmergencyStatus][]models.EmergencyStatus{
	models.StatusWaiting:   {models.StatusInProcess},
	models.StatusInProcess: {models.StatusCompleted, models.StatusCanceled},
}

var offerTransitions = map[models.OfferStatus][]models.OfferStatus{
	models.OfferPending:  {models.OfferAccepted, models.OfferRejected, models.OfferCanceled},
	models.OfferAccepted: {models.OfferCanceled},
}

// CanTransition reports whether from -> to is a legal emergency edge.
func CanTransition(from, to models.EmergencyStatus) bool {
	for _, next := range emergencyTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// OfferCanTransition reports whether from -> to is a legal offer edge.
func OfferCanTransition(from, to models.OfferStatus) bool {
	for _, next := range offerTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no transitions leave the given status.
func Terminal(s models.EmergencyStatus) bool {
	return len(emergencyTransitions[s]) == 0
}

// GuardAccept checks the local precondition for waiting -> in_process.
// The authoritative check is the store's conditional write; this guard
// only avoids a round trip for transitions that are already known stale.
func GuardAccept(e *models.EmergencyRequest) error {
	if e.Status != models.StatusWaiting {
		return faults.Conflict("emergency", e.ID, "not waiting, already "+string(e.Status))
	}
	return nil
}

// GuardComplete checks that the caller holds the acceptance and the
// record is still in process. Completion does not flip the status by
// itself; it moves the settlement to to_pay and waits for payment
// confirmation.
func GuardComplete(e *models.EmergencyRequest, providerID string) error {
	if e.Status != models.StatusInProcess {
		return faults.Conflict("emergency", e.ID, "not in process")
	}
	if e.AcceptedBy != providerID {
		return faults.Conflict("emergency", e.ID, "accepted by a different provider")
	}
	return nil
}

// GuardCancel checks the precondition for in_process -> canceled.
func GuardCancel(e *models.EmergencyRequest, providerID string) error {
	if e.Status != models.StatusInProcess {
		return faults.Conflict("emergency", e.ID, "not in process")
	}
	if e.AcceptedBy != providerID {
		return faults.Conflict("emergency", e.ID, "accepted by a different provider")
	}
	return nil
}
