package store

import (
	"context"
	"sync"
	"time"

	"github.com/example/roadside-dispatch/internal/faults"
	"github.com/example/roadside-dispatch/internal/geo"
	"github.com/example/roadside-dispatch/internal/models"
)

// MemoryStore implements all three stores in process. The mutex gives it
// the same conditional-write semantics as the Postgres implementation,
// so acceptance races behave identically in tests.
type MemoryStore struct {
	mu          sync.Mutex
	emergencies map[string]*models.EmergencyRequest
	offers      map[string]*models.Offer
	settlements map[string]*models.SettlementSnapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		emergencies: make(map[string]*models.EmergencyRequest),
		offers:      make(map[string]*models.Offer),
		settlements: make(map[string]*models.SettlementSnapshot),
	}
}

func (m *MemoryStore) Create(ctx context.Context, e *models.EmergencyRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.emergencies[e.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*models.EmergencyRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.emergencies[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *MemoryStore) Accept(ctx context.Context, id, providerID string, at time.Time) (*models.EmergencyRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.emergencies[id]
	if !ok {
		return nil, ErrNotFound
	}
	if e.Status != models.StatusWaiting {
		return nil, faults.Conflict("emergency", id, "no longer waiting")
	}
	e.Status = models.StatusInProcess
	e.AcceptedBy = providerID
	t := at
	e.AcceptedAt = &t
	cp := *e
	return &cp, nil
}

func (m *MemoryStore) Complete(ctx context.Context, id string, at time.Time) (*models.EmergencyRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.emergencies[id]
	if !ok {
		return nil, ErrNotFound
	}
	if e.Status != models.StatusInProcess {
		return nil, faults.Conflict("emergency", id, "not in process")
	}
	e.Status = models.StatusCompleted
	t := at
	e.CompletedAt = &t
	cp := *e
	return &cp, nil
}

func (m *MemoryStore) Cancel(ctx context.Context, id, reason string, at time.Time) (*models.EmergencyRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.emergencies[id]
	if !ok {
		return nil, ErrNotFound
	}
	if e.Status != models.StatusInProcess {
		return nil, faults.Conflict("emergency", id, "not in process")
	}
	e.Status = models.StatusCanceled
	t := at
	e.CanceledAt = &t
	e.CanceledReason = reason
	cp := *e
	return &cp, nil
}

func (m *MemoryStore) ListWaiting(ctx context.Context) ([]models.EmergencyRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.EmergencyRequest, 0)
	for _, e := range m.emergencies {
		if e.Status == models.StatusWaiting {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *MemoryStore) VisibleTo(ctx context.Context, observer models.Coord, distanceKm float64, ageThreshold time.Duration) ([]models.EmergencyRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := make([]models.EmergencyRequest, 0)
	for _, e := range m.emergencies {
		if e.Status != models.StatusWaiting {
			continue
		}
		if now.Sub(e.CreatedAt) > ageThreshold || geo.DistanceKm(observer, e.Loc) <= distanceKm {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *MemoryStore) Put(ctx context.Context, o *models.Offer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.offers[o.ID] = &cp
	return nil
}

func (m *MemoryStore) GetOffer(ctx context.Context, id string) (*models.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.offers[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MemoryStore) ListByEmergency(ctx context.Context, emergencyID string) ([]models.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Offer, 0)
	for _, o := range m.offers {
		if o.EmergencyID == emergencyID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *MemoryStore) RejectPendingExcept(ctx context.Context, emergencyID, providerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.offers {
		if o.EmergencyID == emergencyID && o.ProviderID != providerID && o.Status == models.OfferPending {
			o.Status = models.OfferRejected
		}
	}
	return nil
}

func (m *MemoryStore) SetHidden(ctx context.Context, id, providerID string, hidden bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.offers[id]
	if !ok {
		return ErrNotFound
	}
	if o.ProviderID != providerID {
		return faults.Conflict("offer", id, "belongs to a different provider")
	}
	o.Hidden = hidden
	return nil
}

func (m *MemoryStore) PutSettlement(ctx context.Context, s *models.SettlementSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	if prev, ok := m.settlements[s.EmergencyID]; ok {
		cp.DistanceFee = prev.DistanceFee
	}
	m.settlements[s.EmergencyID] = &cp
	return nil
}

func (m *MemoryStore) GetSettlement(ctx context.Context, emergencyID string) (*models.SettlementSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settlements[emergencyID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

// Offers and Settlements adapt the combined store to the narrower
// interfaces so the coordinator can take each one separately.
func (m *MemoryStore) Offers() OfferStore           { return memoryOffers{m} }
func (m *MemoryStore) Settlements() SettlementStore { return memorySettlements{m} }

type memoryOffers struct{ m *MemoryStore }

func (a memoryOffers) Put(ctx context.Context, o *models.Offer) error { return a.m.Put(ctx, o) }
func (a memoryOffers) Get(ctx context.Context, id string) (*models.Offer, error) {
	return a.m.GetOffer(ctx, id)
}
func (a memoryOffers) ListByEmergency(ctx context.Context, emergencyID string) ([]models.Offer, error) {
	return a.m.ListByEmergency(ctx, emergencyID)
}
func (a memoryOffers) RejectPendingExcept(ctx context.Context, emergencyID, providerID string) error {
	return a.m.RejectPendingExcept(ctx, emergencyID, providerID)
}
func (a memoryOffers) SetHidden(ctx context.Context, id, providerID string, hidden bool) error {
	return a.m.SetHidden(ctx, id, providerID, hidden)
}

type memorySettlements struct{ m *MemoryStore }

func (a memorySettlements) Put(ctx context.Context, s *models.SettlementSnapshot) error {
	return a.m.PutSettlement(ctx, s)
}
func (a memorySettlements) Get(ctx context.Context, emergencyID string) (*models.SettlementSnapshot, error) {
	return a.m.GetSettlement(ctx, emergencyID)
}
