// Package coordinator exposes the operations the presentation layer
// calls (report, accept, complete, cancel, refresh) and wires the
// reconciler and the settlement calculator to the store and stream.
package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/roadside-dispatch/internal/faults"
	"github.com/example/roadside-dispatch/internal/geo"
	"github.com/example/roadside-dispatch/internal/lifecycle"
	"github.com/example/roadside-dispatch/internal/models"
	"github.com/example/roadside-dispatch/internal/money"
	"github.com/example/roadside-dispatch/internal/observability"
	"github.com/example/roadside-dispatch/internal/payments"
	"github.com/example/roadside-dispatch/internal/reconciler"
	"github.com/example/roadside-dispatch/internal/settlement"
	"github.com/example/roadside-dispatch/internal/store"
	"github.com/example/roadside-dispatch/internal/stream"
)

// Config holds the tunables the coordinator needs beyond its
// collaborators.
type Config struct {
	RefreshInterval  time.Duration
	DistanceFeePerKm money.Amount
	Currency         string
}

type Coordinator struct {
	cfg         Config
	emergencies store.EmergencyStore
	offers      store.OfferStore
	settlements store.SettlementStore
	pub         stream.Publisher
	recon       *reconciler.Reconciler
	calc        settlement.Calculator
	pay         payments.Gateway
	log         *slog.Logger
	now         func() time.Time

	mu       sync.Mutex
	observer *models.Coord
}

func New(cfg Config, emergencies store.EmergencyStore, offers store.OfferStore, settlements store.SettlementStore,
	pub stream.Publisher, recon *reconciler.Reconciler, calc settlement.Calculator, pay payments.Gateway, log *slog.Logger) *Coordinator {
	if pay == nil {
		pay = payments.NopGateway{}
	}
	return &Coordinator{
		cfg:         cfg,
		emergencies: emergencies,
		offers:      offers,
		settlements: settlements,
		pub:         pub,
		recon:       recon,
		calc:        calc,
		pay:         pay,
		log:         log,
		now:         time.Now,
	}
}

type ReportInput struct {
	ReporterID      string
	VehicleCategory string
	Cause           string
	Attachments     []string
	Loc             models.Coord
}

// Report creates a new waiting emergency and publishes its insert event.
func (c *Coordinator) Report(ctx context.Context, in ReportInput) (*models.EmergencyRequest, error) {
	if in.ReporterID == "" {
		return nil, faults.Validation("reporter_id", "required")
	}
	if err := validCoord(in.Loc); err != nil {
		return nil, err
	}
	e := &models.EmergencyRequest{
		ID:              uuid.NewString(),
		ReporterID:      in.ReporterID,
		VehicleCategory: in.VehicleCategory,
		Cause:           in.Cause,
		Attachments:     in.Attachments,
		Loc:             in.Loc,
		CreatedAt:       c.now(),
		Status:          models.StatusWaiting,
	}
	if err := c.emergencies.Create(ctx, e); err != nil {
		return nil, err
	}
	c.publish(ctx, models.ChangeEvent{Type: models.ChangeInsert, Row: *e})
	return e, nil
}

// ExpressInterest records a pending offer from a provider.
func (c *Coordinator) ExpressInterest(ctx context.Context, emergencyID, providerID string, loc models.Coord) (*models.Offer, error) {
	rec, err := c.getEmergency(ctx, emergencyID)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.GuardAccept(rec); err != nil {
		return nil, err
	}
	o := &models.Offer{
		ID:          uuid.NewString(),
		EmergencyID: emergencyID,
		ProviderID:  providerID,
		Loc:         loc,
		Status:      models.OfferPending,
		RequestedAt: c.now(),
	}
	if err := c.offers.Put(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// Accept claims a waiting emergency for a provider. The store's
// conditional write arbitrates concurrent acceptances; losing is a
// ConflictError, not a retryable fault. On success the settlement
// snapshot is created with the distance fee frozen at this moment, the
// winning offer is stamped accepted, and the record drops out of the
// local visible set (optimistically; the next refresh re-inserts it if
// the write turns out not to have stuck remotely).
func (c *Coordinator) Accept(ctx context.Context, emergencyID, providerID string, providerLoc models.Coord, laborEstimate money.Amount) (*models.SettlementSnapshot, error) {
	if err := validCoord(providerLoc); err != nil {
		return nil, err
	}
	if laborEstimate < 0 {
		return nil, faults.Validation("labor_estimate", "must be non-negative")
	}
	updated, err := c.emergencies.Accept(ctx, emergencyID, providerID, c.now())
	if err != nil {
		if faults.IsConflict(err) {
			observability.AcceptConflicts.Inc()
		}
		return nil, err
	}
	observability.AcceptsTotal.Inc()

	fee := c.cfg.DistanceFeePerKm.MulFloat(geo.DistanceKm(providerLoc, updated.Loc))
	snap := &models.SettlementSnapshot{
		EmergencyID: emergencyID,
		ProviderID:  providerID,
		DistanceFee: fee,
		LaborCost:   laborEstimate,
		Total:       fee + laborEstimate,
		Status:      models.SettlementPending,
		UpdatedAt:   c.now(),
	}
	if err := c.settlements.Put(ctx, snap); err != nil {
		return nil, err
	}

	// shadow accepted offer for the winner; everyone else's pending
	// offers are rejected
	at := c.now()
	winner := &models.Offer{
		ID:          uuid.NewString(),
		EmergencyID: emergencyID,
		ProviderID:  providerID,
		Loc:         providerLoc,
		Status:      models.OfferAccepted,
		RequestedAt: at,
		AcceptedAt:  &at,
	}
	if err := c.offers.Put(ctx, winner); err != nil {
		c.log.Warn("accepted offer write failed", "emergency", emergencyID, "error", err)
	}
	if err := c.offers.RejectPendingExcept(ctx, emergencyID, providerID); err != nil {
		c.log.Warn("offer rejection sweep failed", "emergency", emergencyID, "error", err)
	}

	ev := models.ChangeEvent{Type: models.ChangeUpdate, Row: *updated}
	c.recon.ApplyEvent(ev)
	c.publish(ctx, ev)
	return snap, nil
}

// Complete files the provider's invoice. The emergency stays in_process;
// the settlement moves to to_pay with a payment hold for the computed
// total, and ConfirmPayment later flips the record to completed.
func (c *Coordinator) Complete(ctx context.Context, emergencyID, providerID string, inv settlement.Invoice) (*models.SettlementSnapshot, error) {
	rec, err := c.getEmergency(ctx, emergencyID)
	if err != nil {
		return nil, err
	}
	snap, err := c.getSettlement(ctx, emergencyID)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.GuardComplete(rec, providerID); err != nil {
		return nil, err
	}
	total, err := c.calc.CompletionTotal(rec.Status, snap, inv)
	if err != nil {
		return nil, err
	}
	ref, err := c.pay.Hold(ctx, total, c.cfg.Currency, rec.ReporterID)
	if err != nil {
		return nil, faults.Transient("payment hold", err)
	}
	snap.LaborCost = inv.LaborCost
	snap.Extras = inv.Extras
	snap.Total = total
	snap.Status = models.SettlementToPay
	snap.PaymentRef = ref
	snap.UpdatedAt = c.now()
	if err := c.settlements.Put(ctx, snap); err != nil {
		return nil, err
	}
	c.publish(ctx, models.ChangeEvent{Type: models.ChangeUpdate, Row: *rec})
	return snap, nil
}

// ConfirmPayment captures the hold and marks the emergency completed.
func (c *Coordinator) ConfirmPayment(ctx context.Context, emergencyID string) (*models.EmergencyRequest, error) {
	snap, err := c.getSettlement(ctx, emergencyID)
	if err != nil {
		return nil, err
	}
	if snap.Status != models.SettlementToPay {
		return nil, faults.Conflict("settlement", emergencyID, "not awaiting payment")
	}
	if err := c.pay.Capture(ctx, snap.PaymentRef); err != nil {
		return nil, faults.Transient("payment capture", err)
	}
	updated, err := c.emergencies.Complete(ctx, emergencyID, c.now())
	if err != nil {
		return nil, err
	}
	snap.Status = models.SettlementPaid
	snap.UpdatedAt = c.now()
	if err := c.settlements.Put(ctx, snap); err != nil {
		return nil, err
	}
	observability.SettlementAmount.Observe(float64(snap.Total))
	ev := models.ChangeEvent{Type: models.ChangeUpdate, Row: *updated}
	c.recon.ApplyEvent(ev)
	c.publish(ctx, ev)
	return updated, nil
}

// CancelByProvider cancels an in-process job and finalizes the
// settlement with the tiered cancellation fee.
func (c *Coordinator) CancelByProvider(ctx context.Context, emergencyID, providerID string, opt settlement.CancelOption, reason string) (*models.SettlementSnapshot, error) {
	rec, err := c.getEmergency(ctx, emergencyID)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.GuardCancel(rec, providerID); err != nil {
		return nil, err
	}
	snap, err := c.getSettlement(ctx, emergencyID)
	if err != nil {
		return nil, err
	}
	total, err := c.calc.CancellationTotal(rec.Status, snap, rec.VehicleCategory, opt)
	if err != nil {
		return nil, err
	}
	updated, err := c.emergencies.Cancel(ctx, emergencyID, reason, c.now())
	if err != nil {
		return nil, err
	}
	if snap.PaymentRef != "" {
		if err := c.pay.Cancel(ctx, snap.PaymentRef); err != nil {
			c.log.Warn("payment hold release failed", "emergency", emergencyID, "error", err)
		}
	}
	snap.Total = total
	snap.Status = models.SettlementCanceled
	snap.UpdatedAt = c.now()
	if err := c.settlements.Put(ctx, snap); err != nil {
		return nil, err
	}
	observability.SettlementAmount.Observe(float64(total))
	ev := models.ChangeEvent{Type: models.ChangeUpdate, Row: *updated}
	c.recon.ApplyEvent(ev)
	c.publish(ctx, ev)
	return snap, nil
}

// HideOffer toggles the provider-local dismissal flag.
func (c *Coordinator) HideOffer(ctx context.Context, offerID, providerID string, hidden bool) error {
	return c.offers.SetHidden(ctx, offerID, providerID, hidden)
}

// SetObserverPosition moves the observer for the visibility gate.
func (c *Coordinator) SetObserverPosition(pos models.Coord) {
	c.mu.Lock()
	cp := pos
	c.observer = &cp
	c.mu.Unlock()
	c.recon.SetObserver(&cp)
}

// Refresh reloads the visible set, preferring the server-side prefilter
// and falling back to all waiting rows plus the local gate.
func (c *Coordinator) Refresh(ctx context.Context, gateDistanceKm float64, ageThreshold time.Duration) error {
	c.mu.Lock()
	obs := c.observer
	c.mu.Unlock()

	if obs != nil {
		rows, err := c.emergencies.VisibleTo(ctx, *obs, gateDistanceKm, ageThreshold)
		if err == nil {
			c.recon.ApplyRefresh(rows)
			return nil
		}
		c.log.Warn("server-side visibility query failed, falling back", "error", err)
	}
	rows, err := c.emergencies.ListWaiting(ctx)
	if err != nil {
		return faults.Transient("refresh", err)
	}
	c.recon.ApplyRefresh(rows)
	return nil
}

// RunRefreshLoop triggers the periodic fallback refresh. It is a plain
// retry compensating for missed stream events, not a correctness
// requirement.
func (c *Coordinator) RunRefreshLoop(ctx context.Context, gateDistanceKm float64, ageThreshold time.Duration) {
	interval := c.cfg.RefreshInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := c.Refresh(ctx, gateDistanceKm, ageThreshold); err != nil {
				c.log.Warn("periodic refresh failed", "error", err)
			}
		}
	}
}

// Visible returns the current visible-set snapshot.
func (c *Coordinator) Visible() []reconciler.Projection {
	return c.recon.Snapshot()
}

// Settlement returns the snapshot for one emergency.
func (c *Coordinator) Settlement(ctx context.Context, emergencyID string) (*models.SettlementSnapshot, error) {
	return c.getSettlement(ctx, emergencyID)
}

func (c *Coordinator) getEmergency(ctx context.Context, id string) (*models.EmergencyRequest, error) {
	rec, err := c.emergencies.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, faults.Conflict("emergency", id, "unknown")
	}
	return rec, err
}

func (c *Coordinator) getSettlement(ctx context.Context, id string) (*models.SettlementSnapshot, error) {
	snap, err := c.settlements.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, faults.Conflict("settlement", id, "no snapshot, emergency was never accepted")
	}
	return snap, err
}

// publish is best effort: the write already succeeded, and the periodic
// refresh reconciles any observer that misses the event.
func (c *Coordinator) publish(ctx context.Context, ev models.ChangeEvent) {
	if c.pub == nil {
		return
	}
	if err := c.pub.Publish(ctx, ev); err != nil {
		c.log.Warn("change event publish failed", "emergency", ev.Row.ID, "type", string(ev.Type), "error", err)
	}
}

func validCoord(c models.Coord) error {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) {
		return faults.Validation("loc", "coordinates are NaN")
	}
	if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
		return faults.Validation("loc", "coordinates out of range")
	}
	return nil
}
