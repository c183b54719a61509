// Package reconciler maintains the locally materialized set of
// emergencies currently visible to one observer.
//
// Two producers feed one idempotent apply function: incremental change
// events from the stream and periodic full refreshes. Every mutation of
// the visible set runs on the single goroutine inside Run, so events,
// refreshes and asynchronous enrichment callbacks can never interleave
// partial writes. Events may arrive out of server-commit order; each one
// carries a full row snapshot and is applied last-wins, so reapplying or
// reordering them converges to the same set.
package reconciler

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/example/roadside-dispatch/internal/geo"
	"github.com/example/roadside-dispatch/internal/geocode"
	"github.com/example/roadside-dispatch/internal/models"
	"github.com/example/roadside-dispatch/internal/notify"
	"github.com/example/roadside-dispatch/internal/observability"
	"github.com/example/roadside-dispatch/internal/visibility"
)

// Projection is one visible emergency enriched for presentation.
// Place and ReporterName are fetched out of band; Enriching marks an
// entry whose lookup is still in flight.
type Projection struct {
	models.EmergencyRequest
	Place        string  `json:"place,omitempty"`
	ReporterName string  `json:"reporter_name,omitempty"`
	DistanceKm   float64 `json:"distance_km"`
	Enriching    bool    `json:"enriching,omitempty"`
}

// Enricher resolves the landmark text and reporter display name for a
// newly visible emergency. Failures degrade; they never block visibility.
type Enricher interface {
	Enrich(ctx context.Context, rec models.EmergencyRequest) (place, reporterName string, err error)
}

type Reconciler struct {
	gate   visibility.Gate
	enrich Enricher
	note   notify.Notifier
	log    *slog.Logger
	now    func() time.Time

	msgs chan func()
	done chan struct{}

	// owned exclusively by the Run goroutine
	visible  map[string]*Projection
	observer *models.Coord
}

func New(gate visibility.Gate, enrich Enricher, note notify.Notifier, log *slog.Logger) *Reconciler {
	if note == nil {
		note = notify.NopNotifier{}
	}
	return &Reconciler{
		gate:    gate,
		enrich:  enrich,
		note:    note,
		log:     log,
		now:     time.Now,
		msgs:    make(chan func(), 256),
		done:    make(chan struct{}),
		visible: make(map[string]*Projection),
	}
}

// Run owns the visible set until ctx is canceled. All other methods only
// enqueue work for this loop.
func (r *Reconciler) Run(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-r.msgs:
			fn()
		}
	}
}

func (r *Reconciler) enqueue(fn func()) {
	select {
	case r.msgs <- fn:
	case <-r.done:
	}
}

// ApplyEvent ingests one change-stream event.
func (r *Reconciler) ApplyEvent(ev models.ChangeEvent) {
	r.enqueue(func() { r.applyEvent(ev) })
}

// ApplyRefresh replaces the visible set with a full result set.
func (r *Reconciler) ApplyRefresh(rows []models.EmergencyRequest) {
	r.enqueue(func() { r.applyRefresh(rows) })
}

// SetObserver updates the observer position used by the distance gate.
func (r *Reconciler) SetObserver(c *models.Coord) {
	r.enqueue(func() { r.setObserver(c) })
}

// Snapshot returns the current visible set ordered by creation time.
func (r *Reconciler) Snapshot() []Projection {
	reply := make(chan []Projection, 1)
	r.enqueue(func() { reply <- r.snapshot() })
	select {
	case out := <-reply:
		return out
	case <-r.done:
		return nil
	}
}

func (r *Reconciler) applyEvent(ev models.ChangeEvent) {
	observability.ChangeEventsTotal.WithLabelValues(string(ev.Type)).Inc()
	id := ev.Row.ID
	if id == "" {
		return
	}
	// Removal covers deletes, records that left waiting, and records the
	// gate no longer admits, so a soon-to-be-ineligible record never
	// lingers in the set.
	if ev.Type == models.ChangeDelete || ev.Row.Status != models.StatusWaiting || !r.gate.Visible(ev.Row, r.observer, r.now()) {
		r.remove(id)
		return
	}
	if p, ok := r.visible[id]; ok {
		// merge the fresh row, keeping locally fetched enrichment
		p.EmergencyRequest = ev.Row
		p.DistanceKm = r.distanceTo(ev.Row)
		return
	}
	p := &Projection{EmergencyRequest: ev.Row, DistanceKm: r.distanceTo(ev.Row), Enriching: true}
	r.visible[id] = p
	observability.VisibleEmergencies.Set(float64(len(r.visible)))
	rec := ev.Row
	_ = r.note.Notify(notify.Frame{Kind: "emergency_visible", ID: id, Emergency: &rec})
	r.startEnrichment(rec)
}

func (r *Reconciler) applyRefresh(rows []models.EmergencyRequest) {
	observability.RefreshesTotal.Inc()
	now := r.now()
	next := make(map[string]*Projection, len(rows))
	for _, rec := range rows {
		if rec.Status != models.StatusWaiting || !r.gate.Visible(rec, r.observer, now) {
			continue
		}
		p := &Projection{EmergencyRequest: rec, DistanceKm: r.distanceTo(rec)}
		if prev, ok := r.visible[rec.ID]; ok {
			// keep in-flight enrichment markers and fetched fields
			p.Place = prev.Place
			p.ReporterName = prev.ReporterName
			p.Enriching = prev.Enriching
		} else {
			p.Enriching = true
			r.startEnrichment(rec)
			cp := rec
			_ = r.note.Notify(notify.Frame{Kind: "emergency_visible", ID: rec.ID, Emergency: &cp})
		}
		next[rec.ID] = p
	}
	for id := range r.visible {
		if _, ok := next[id]; !ok {
			_ = r.note.Notify(notify.Frame{Kind: "emergency_gone", ID: id})
		}
	}
	r.visible = next
	observability.VisibleEmergencies.Set(float64(len(r.visible)))
}

func (r *Reconciler) remove(id string) {
	if _, ok := r.visible[id]; !ok {
		return
	}
	delete(r.visible, id)
	observability.VisibleEmergencies.Set(float64(len(r.visible)))
	_ = r.note.Notify(notify.Frame{Kind: "emergency_gone", ID: id})
}

func (r *Reconciler) setObserver(c *models.Coord) {
	r.observer = c
	now := r.now()
	for id, p := range r.visible {
		if !r.gate.Visible(p.EmergencyRequest, r.observer, now) {
			r.remove(id)
			continue
		}
		p.DistanceKm = r.distanceTo(p.EmergencyRequest)
	}
}

func (r *Reconciler) mergeEnrichment(id, place, reporterName string) {
	p, ok := r.visible[id]
	if !ok {
		// entry removed while the lookup was in flight; merging into
		// nothing is a normal no-op
		return
	}
	p.Place = place
	p.ReporterName = reporterName
	p.Enriching = false
}

// startEnrichment fetches landmark and reporter info off the loop and
// merges the result back in by id, tolerating out-of-order arrival.
func (r *Reconciler) startEnrichment(rec models.EmergencyRequest) {
	if r.enrich == nil {
		// already on the Run goroutine; re-enqueuing here could block the
		// single writer on its own full queue
		r.mergeEnrichment(rec.ID, geocode.FallbackLabel(rec.Loc), "")
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		place, name, err := r.enrich.Enrich(ctx, rec)
		if err != nil {
			observability.EnrichFailures.Inc()
			r.log.Debug("enrichment degraded", "emergency", rec.ID, "error", err)
		}
		if place == "" {
			place = geocode.FallbackLabel(rec.Loc)
		}
		r.enqueue(func() { r.mergeEnrichment(rec.ID, place, name) })
	}()
}

func (r *Reconciler) snapshot() []Projection {
	out := make([]Projection, 0, len(r.visible))
	for _, p := range r.visible {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *Reconciler) distanceTo(rec models.EmergencyRequest) float64 {
	if r.observer == nil {
		return 0
	}
	return geo.DistanceKm(*r.observer, rec.Loc)
}
