package lifecycle

import (
	"testing"

	"github.com/example/roadside-dispatch/internal/faults"
	"github.com/example/roadside-dispatch/internal/models"
)

func TestTransitionTable(t *testing.T) {
	if !CanTransition(models.StatusWaiting, models.StatusInProcess) {
		t.Fatalf("waiting -> in_process should be legal")
	}
	if CanTransition(models.StatusWaiting, models.StatusCompleted) {
		t.Fatalf("waiting -> completed should be illegal")
	}
	if CanTransition(models.StatusCompleted, models.StatusInProcess) {
		t.Fatalf("no transition may leave a terminal state")
	}
	if CanTransition(models.StatusCanceled, models.StatusWaiting) {
		t.Fatalf("no transition may leave a terminal state")
	}
}

func TestTerminal(t *testing.T) {
	if !Terminal(models.StatusCompleted) || !Terminal(models.StatusCanceled) {
		t.Fatalf("completed and canceled are terminal")
	}
	if Terminal(models.StatusWaiting) || Terminal(models.StatusInProcess) {
		t.Fatalf("waiting and in_process are not terminal")
	}
}

func TestGuardAccept(t *testing.T) {
	e := &models.EmergencyRequest{ID: "e1", Status: models.StatusWaiting}
	if err := GuardAccept(e); err != nil {
		t.Fatalf("accept on waiting should pass: %v", err)
	}
	e.Status = models.StatusInProcess
	if err := GuardAccept(e); !faults.IsConflict(err) {
		t.Fatalf("accept on in_process should be a conflict, got %v", err)
	}
}

func TestGuardComplete(t *testing.T) {
	e := &models.EmergencyRequest{ID: "e1", Status: models.StatusInProcess, AcceptedBy: "p1"}
	if err := GuardComplete(e, "p1"); err != nil {
		t.Fatalf("complete by accepting provider should pass: %v", err)
	}
	if err := GuardComplete(e, "p2"); !faults.IsConflict(err) {
		t.Fatalf("complete by another provider should be a conflict, got %v", err)
	}
	e.Status = models.StatusWaiting
	if err := GuardComplete(e, "p1"); !faults.IsConflict(err) {
		t.Fatalf("complete on waiting should be a conflict, got %v", err)
	}
}

func TestGuardCancel(t *testing.T) {
	e := &models.EmergencyRequest{ID: "e1", Status: models.StatusInProcess, AcceptedBy: "p1"}
	if err := GuardCancel(e, "p1"); err != nil {
		t.Fatalf("cancel by accepting provider should pass: %v", err)
	}
	e.Status = models.StatusCompleted
	if err := GuardCancel(e, "p1"); !faults.IsConflict(err) {
		t.Fatalf("cancel on completed should be a conflict, got %v", err)
	}
}

func TestOfferTransitions(t *testing.T) {
	if !OfferCanTransition(models.OfferPending, models.OfferAccepted) {
		t.Fatalf("pending -> accepted should be legal")
	}
	if !OfferCanTransition(models.OfferAccepted, models.OfferCanceled) {
		t.Fatalf("accepted -> canceled should be legal")
	}
	if OfferCanTransition(models.OfferRejected, models.OfferAccepted) {
		t.Fatalf("rejected is terminal for offers")
	}
}
