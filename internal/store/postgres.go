package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"github.com/example/roadside-dispatch/internal/faults"
	"github.com/example/roadside-dispatch/internal/models"
)

// PostgresStore backs all three stores with one database. Conditional
// transitions use UPDATE ... WHERE status = <expected> and check rows
// affected, which is the whole mutual-exclusion story for acceptance.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) DB() *sql.DB { return p.db }

const emergencyCols = `id, reporter_id, vehicle_category, cause, attachments, lat, lon, created_at, status, accepted_by, accepted_at, completed_at, canceled_at, canceled_reason`

func (p *PostgresStore) Create(ctx context.Context, e *models.EmergencyRequest) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO emergencies(`+emergencyCols+`) VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		e.ID, e.ReporterID, e.VehicleCategory, e.Cause, pq.Array(e.Attachments),
		e.Loc.Lat, e.Loc.Lon, e.CreatedAt, e.Status,
		nullString(e.AcceptedBy), e.AcceptedAt, e.CompletedAt, e.CanceledAt, nullString(e.CanceledReason))
	if err != nil {
		return faults.Transient("emergency insert", err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*models.EmergencyRequest, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+emergencyCols+` FROM emergencies WHERE id=$1`, id)
	return scanEmergency(row)
}

func (p *PostgresStore) Accept(ctx context.Context, id, providerID string, at time.Time) (*models.EmergencyRequest, error) {
	res, err := p.db.ExecContext(ctx,
		`UPDATE emergencies SET status=$1, accepted_by=$2, accepted_at=$3 WHERE id=$4 AND status=$5`,
		models.StatusInProcess, providerID, at, id, models.StatusWaiting)
	if err != nil {
		return nil, faults.Transient("emergency accept", err)
	}
	return p.afterConditional(ctx, res, id, "no longer waiting")
}

func (p *PostgresStore) Complete(ctx context.Context, id string, at time.Time) (*models.EmergencyRequest, error) {
	res, err := p.db.ExecContext(ctx,
		`UPDATE emergencies SET status=$1, completed_at=$2 WHERE id=$3 AND status=$4`,
		models.StatusCompleted, at, id, models.StatusInProcess)
	if err != nil {
		return nil, faults.Transient("emergency complete", err)
	}
	return p.afterConditional(ctx, res, id, "not in process")
}

func (p *PostgresStore) Cancel(ctx context.Context, id, reason string, at time.Time) (*models.EmergencyRequest, error) {
	res, err := p.db.ExecContext(ctx,
		`UPDATE emergencies SET status=$1, canceled_at=$2, canceled_reason=$3 WHERE id=$4 AND status=$5`,
		models.StatusCanceled, at, reason, id, models.StatusInProcess)
	if err != nil {
		return nil, faults.Transient("emergency cancel", err)
	}
	return p.afterConditional(ctx, res, id, "not in process")
}

// afterConditional turns a zero-rows conditional write into the right
// error: missing row or lost race.
func (p *PostgresStore) afterConditional(ctx context.Context, res sql.Result, id, reason string) (*models.EmergencyRequest, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return nil, faults.Transient("rows affected", err)
	}
	if n == 0 {
		if _, err := p.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, faults.Conflict("emergency", id, reason)
	}
	return p.Get(ctx, id)
}

func (p *PostgresStore) ListWaiting(ctx context.Context) ([]models.EmergencyRequest, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+emergencyCols+` FROM emergencies WHERE status=$1 ORDER BY created_at`, models.StatusWaiting)
	if err != nil {
		return nil, faults.Transient("list waiting", err)
	}
	defer rows.Close()
	return scanEmergencies(rows)
}

func (p *PostgresStore) VisibleTo(ctx context.Context, observer models.Coord, distanceKm float64, ageThreshold time.Duration) ([]models.EmergencyRequest, error) {
	// Bounding-box prefilter; ~111 km per degree of latitude. The exact
	// haversine gate runs client-side over the result.
	deg := distanceKm / 111.0
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+emergencyCols+` FROM emergencies
		 WHERE status=$1 AND (created_at < $2 OR (lat BETWEEN $3 AND $4 AND lon BETWEEN $5 AND $6))
		 ORDER BY created_at`,
		models.StatusWaiting, time.Now().Add(-ageThreshold),
		observer.Lat-deg, observer.Lat+deg, observer.Lon-deg, observer.Lon+deg)
	if err != nil {
		return nil, faults.Transient("visible emergencies", err)
	}
	defer rows.Close()
	return scanEmergencies(rows)
}

func (p *PostgresStore) Put(ctx context.Context, o *models.Offer) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO offers(id, emergency_id, provider_id, lat, lon, status, requested_at, accepted_at, hidden)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 ON CONFLICT (id) DO UPDATE SET status=EXCLUDED.status, accepted_at=EXCLUDED.accepted_at, hidden=EXCLUDED.hidden`,
		o.ID, o.EmergencyID, o.ProviderID, o.Loc.Lat, o.Loc.Lon, o.Status, o.RequestedAt, o.AcceptedAt, o.Hidden)
	if err != nil {
		return faults.Transient("offer upsert", err)
	}
	return nil
}

func (p *PostgresStore) GetOffer(ctx context.Context, id string) (*models.Offer, error) {
	var o models.Offer
	err := p.db.QueryRowContext(ctx,
		`SELECT id, emergency_id, provider_id, lat, lon, status, requested_at, accepted_at, hidden FROM offers WHERE id=$1`, id).
		Scan(&o.ID, &o.EmergencyID, &o.ProviderID, &o.Loc.Lat, &o.Loc.Lon, &o.Status, &o.RequestedAt, &o.AcceptedAt, &o.Hidden)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, faults.Transient("offer get", err)
	}
	return &o, nil
}

func (p *PostgresStore) ListByEmergency(ctx context.Context, emergencyID string) ([]models.Offer, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, emergency_id, provider_id, lat, lon, status, requested_at, accepted_at, hidden
		 FROM offers WHERE emergency_id=$1 ORDER BY requested_at`, emergencyID)
	if err != nil {
		return nil, faults.Transient("offer list", err)
	}
	defer rows.Close()
	out := make([]models.Offer, 0)
	for rows.Next() {
		var o models.Offer
		if err := rows.Scan(&o.ID, &o.EmergencyID, &o.ProviderID, &o.Loc.Lat, &o.Loc.Lon, &o.Status, &o.RequestedAt, &o.AcceptedAt, &o.Hidden); err != nil {
			return nil, faults.Transient("offer scan", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (p *PostgresStore) RejectPendingExcept(ctx context.Context, emergencyID, providerID string) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE offers SET status=$1 WHERE emergency_id=$2 AND provider_id<>$3 AND status=$4`,
		models.OfferRejected, emergencyID, providerID, models.OfferPending)
	if err != nil {
		return faults.Transient("offer reject", err)
	}
	return nil
}

func (p *PostgresStore) SetHidden(ctx context.Context, id, providerID string, hidden bool) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE offers SET hidden=$1 WHERE id=$2 AND provider_id=$3`, hidden, id, providerID)
	if err != nil {
		return faults.Transient("offer hide", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := p.GetOffer(ctx, id); err != nil {
			return err
		}
		return faults.Conflict("offer", id, "belongs to a different provider")
	}
	return nil
}

func (p *PostgresStore) PutSettlement(ctx context.Context, s *models.SettlementSnapshot) error {
	extras, err := json.Marshal(s.Extras)
	if err != nil {
		return err
	}
	// distance_fee is written once; later upserts keep the stored value
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO settlements(emergency_id, provider_id, distance_fee, labor_cost, extras, total, status, payment_ref, updated_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 ON CONFLICT (emergency_id) DO UPDATE SET
		   labor_cost=EXCLUDED.labor_cost, extras=EXCLUDED.extras, total=EXCLUDED.total,
		   status=EXCLUDED.status, payment_ref=EXCLUDED.payment_ref, updated_at=EXCLUDED.updated_at`,
		s.EmergencyID, s.ProviderID, int64(s.DistanceFee), int64(s.LaborCost), extras, int64(s.Total), s.Status, s.PaymentRef, s.UpdatedAt)
	if err != nil {
		return faults.Transient("settlement upsert", err)
	}
	return nil
}

func (p *PostgresStore) GetSettlement(ctx context.Context, emergencyID string) (*models.SettlementSnapshot, error) {
	var s models.SettlementSnapshot
	var extras []byte
	var fee, labor, total int64
	err := p.db.QueryRowContext(ctx,
		`SELECT emergency_id, provider_id, distance_fee, labor_cost, extras, total, status, payment_ref, updated_at
		 FROM settlements WHERE emergency_id=$1`, emergencyID).
		Scan(&s.EmergencyID, &s.ProviderID, &fee, &labor, &extras, &total, &s.Status, &s.PaymentRef, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, faults.Transient("settlement get", err)
	}
	s.DistanceFee, s.LaborCost, s.Total = toAmount(fee), toAmount(labor), toAmount(total)
	if len(extras) > 0 {
		if err := json.Unmarshal(extras, &s.Extras); err != nil {
			return nil, err
		}
	}
	return &s, nil
}

// Offers and Settlements adapt the combined store to the narrower
// interfaces, mirroring MemoryStore.
func (p *PostgresStore) Offers() OfferStore           { return pgOffers{p} }
func (p *PostgresStore) Settlements() SettlementStore { return pgSettlements{p} }

type pgOffers struct{ p *PostgresStore }

func (a pgOffers) Put(ctx context.Context, o *models.Offer) error { return a.p.Put(ctx, o) }
func (a pgOffers) Get(ctx context.Context, id string) (*models.Offer, error) {
	return a.p.GetOffer(ctx, id)
}
func (a pgOffers) ListByEmergency(ctx context.Context, emergencyID string) ([]models.Offer, error) {
	return a.p.ListByEmergency(ctx, emergencyID)
}
func (a pgOffers) RejectPendingExcept(ctx context.Context, emergencyID, providerID string) error {
	return a.p.RejectPendingExcept(ctx, emergencyID, providerID)
}
func (a pgOffers) SetHidden(ctx context.Context, id, providerID string, hidden bool) error {
	return a.p.SetHidden(ctx, id, providerID, hidden)
}

type pgSettlements struct{ p *PostgresStore }

func (a pgSettlements) Put(ctx context.Context, s *models.SettlementSnapshot) error {
	return a.p.PutSettlement(ctx, s)
}
func (a pgSettlements) Get(ctx context.Context, emergencyID string) (*models.SettlementSnapshot, error) {
	return a.p.GetSettlement(ctx, emergencyID)
}
