package reconciler

import (
	"context"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/example/roadside-dispatch/internal/models"
	"github.com/example/roadside-dispatch/internal/visibility"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestReconciler() *Reconciler {
	r := New(
		visibility.Gate{AgeThreshold: 10 * time.Minute, DistanceKm: 2},
		nil,
		nil,
		slog.Default(),
	)
	r.now = func() time.Time { return fixedNow }
	return r
}

func waiting(id string, age time.Duration) models.EmergencyRequest {
	return models.EmergencyRequest{
		ID:        id,
		Status:    models.StatusWaiting,
		Loc:       models.Coord{Lat: 0, Lon: 0},
		CreatedAt: fixedNow.Add(-age),
	}
}

func ids(r *Reconciler) []string {
	out := []string{}
	for _, p := range r.snapshot() {
		out = append(out, p.ID)
	}
	return out
}

func TestInsertAgedRecord(t *testing.T) {
	r := newTestReconciler()
	r.applyEvent(models.ChangeEvent{Type: models.ChangeInsert, Row: waiting("e1", 11*time.Minute)})
	if got := ids(r); !reflect.DeepEqual(got, []string{"e1"}) {
		t.Fatalf("expected [e1], got %v", got)
	}
}

func TestYoungRecordInvisibleWithoutObserver(t *testing.T) {
	r := newTestReconciler()
	r.applyEvent(models.ChangeEvent{Type: models.ChangeInsert, Row: waiting("e1", time.Minute)})
	if len(r.visible) != 0 {
		t.Fatalf("young record with unknown observer must fail closed")
	}
}

func TestYoungRecordVisibleToNearObserver(t *testing.T) {
	r := newTestReconciler()
	r.setObserver(&models.Coord{Lat: 0.009, Lon: 0}) // ~1 km
	r.applyEvent(models.ChangeEvent{Type: models.ChangeInsert, Row: waiting("e1", time.Minute)})
	if len(r.visible) != 1 {
		t.Fatalf("record 1 km away should be visible at minute 1")
	}
}

func TestIdempotentUpdate(t *testing.T) {
	r := newTestReconciler()
	ev := models.ChangeEvent{Type: models.ChangeUpdate, Row: waiting("e1", 11*time.Minute)}
	r.applyEvent(ev)
	once := r.snapshot()
	r.applyEvent(ev)
	twice := r.snapshot()
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("applying the same update twice diverged: %+v vs %+v", once, twice)
	}
}

func TestOutOfOrderUpdatesConverge(t *testing.T) {
	a := waiting("e1", 12*time.Minute)
	a.Cause = "flat tire"
	b := a
	b.Cause = "flat tire, front left"

	r1 := newTestReconciler()
	r1.applyEvent(models.ChangeEvent{Type: models.ChangeUpdate, Row: a})
	r1.applyEvent(models.ChangeEvent{Type: models.ChangeUpdate, Row: b})

	r2 := newTestReconciler()
	r2.applyEvent(models.ChangeEvent{Type: models.ChangeUpdate, Row: b})
	r2.applyEvent(models.ChangeEvent{Type: models.ChangeUpdate, Row: a})

	// membership converges regardless of arrival order; fields are
	// last-applied-wins
	if !reflect.DeepEqual(ids(r1), ids(r2)) {
		t.Fatalf("visible sets diverged: %v vs %v", ids(r1), ids(r2))
	}
	if len(r1.visible) != 1 {
		t.Fatalf("expected a single entry, got %d", len(r1.visible))
	}
}

func TestDeleteRemoves(t *testing.T) {
	r := newTestReconciler()
	row := waiting("e1", 11*time.Minute)
	r.applyEvent(models.ChangeEvent{Type: models.ChangeInsert, Row: row})
	r.applyEvent(models.ChangeEvent{Type: models.ChangeDelete, Row: row})
	if len(r.visible) != 0 {
		t.Fatalf("delete must remove the entry")
	}
}

func TestAcceptedElsewhereRemovesPromptly(t *testing.T) {
	r := newTestReconciler()
	row := waiting("e1", 11*time.Minute)
	r.applyEvent(models.ChangeEvent{Type: models.ChangeInsert, Row: row})
	row.Status = models.StatusInProcess
	row.AcceptedBy = "p2"
	r.applyEvent(models.ChangeEvent{Type: models.ChangeUpdate, Row: row})
	if len(r.visible) != 0 {
		t.Fatalf("record accepted elsewhere must disappear")
	}
}

func TestUpdateMergePreservesEnrichment(t *testing.T) {
	r := newTestReconciler()
	row := waiting("e1", 11*time.Minute)
	r.applyEvent(models.ChangeEvent{Type: models.ChangeInsert, Row: row})
	r.mergeEnrichment("e1", "Main St garage", "Alex")

	row.Cause = "updated cause"
	r.applyEvent(models.ChangeEvent{Type: models.ChangeUpdate, Row: row})

	p := r.visible["e1"]
	if p.Place != "Main St garage" || p.ReporterName != "Alex" {
		t.Fatalf("enrichment lost on merge: %+v", p)
	}
	if p.Cause != "updated cause" {
		t.Fatalf("fresh fields not merged: %+v", p)
	}
}

func TestEnrichmentMergeIntoRemovedEntryIsNoop(t *testing.T) {
	r := newTestReconciler()
	r.mergeEnrichment("gone", "somewhere", "nobody")
	if len(r.visible) != 0 {
		t.Fatalf("merge into an absent entry must be a no-op")
	}
}

func TestRefreshReplacesSetButKeepsEnrichment(t *testing.T) {
	r := newTestReconciler()
	r.applyEvent(models.ChangeEvent{Type: models.ChangeInsert, Row: waiting("e1", 11*time.Minute)})
	r.applyEvent(models.ChangeEvent{Type: models.ChangeInsert, Row: waiting("e2", 12*time.Minute)})
	r.mergeEnrichment("e1", "Elm & 3rd", "")

	// refresh no longer contains e2
	r.applyRefresh([]models.EmergencyRequest{waiting("e1", 11*time.Minute), waiting("e3", 13*time.Minute)})

	if _, ok := r.visible["e2"]; ok {
		t.Fatalf("refresh must drop rows absent from the result set")
	}
	if _, ok := r.visible["e3"]; !ok {
		t.Fatalf("refresh must pick up new rows")
	}
	if r.visible["e1"].Place != "Elm & 3rd" {
		t.Fatalf("refresh must not discard fetched enrichment for surviving ids")
	}
}

func TestRefreshAppliesGate(t *testing.T) {
	r := newTestReconciler()
	inProcess := waiting("e1", 11*time.Minute)
	inProcess.Status = models.StatusInProcess
	r.applyRefresh([]models.EmergencyRequest{
		inProcess,
		waiting("e2", time.Minute),    // young, no observer
		waiting("e3", 11*time.Minute), // past the age threshold
	})
	if got := ids(r); !reflect.DeepEqual(got, []string{"e3"}) {
		t.Fatalf("expected [e3], got %v", got)
	}
}

func TestObserverMoveDropsOutOfRangeEntries(t *testing.T) {
	r := newTestReconciler()
	r.setObserver(&models.Coord{Lat: 0.009, Lon: 0})
	r.applyEvent(models.ChangeEvent{Type: models.ChangeInsert, Row: waiting("e1", time.Minute)})
	if len(r.visible) != 1 {
		t.Fatalf("setup: record should be visible")
	}
	// observer drives away; the young record ages out of the geographic
	// gate before the time gate fires
	r.setObserver(&models.Coord{Lat: 1, Lon: 1})
	if len(r.visible) != 0 {
		t.Fatalf("record outside the distance gate must be removed")
	}
}

func TestFallbackEnrichmentAppliesInline(t *testing.T) {
	r := newTestReconciler()
	// fill the queue; without an enricher the apply path must not enqueue
	// onto itself or the single writer would block here
	for i := 0; i < cap(r.msgs); i++ {
		r.msgs <- func() {}
	}
	r.applyEvent(models.ChangeEvent{Type: models.ChangeInsert, Row: waiting("e1", 11*time.Minute)})
	p := r.visible["e1"]
	if p == nil {
		t.Fatalf("record should be visible")
	}
	if p.Enriching || p.Place == "" {
		t.Fatalf("fallback label must be merged inline: %+v", p)
	}
}

func TestSingleWriterLoop(t *testing.T) {
	r := newTestReconciler()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	r.ApplyEvent(models.ChangeEvent{Type: models.ChangeInsert, Row: waiting("e1", 11*time.Minute)})
	r.ApplyRefresh([]models.EmergencyRequest{waiting("e1", 11*time.Minute), waiting("e2", 12*time.Minute)})

	// Snapshot round-trips through the same serialized queue, so it
	// observes everything enqueued above.
	snap := r.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 visible entries, got %d", len(snap))
	}
}
