package store

import (
	"database/sql"

	"github.com/lib/pq"

	"github.com/example/roadside-dispatch/internal/faults"
	"github.com/example/roadside-dispatch/internal/models"
	"github.com/example/roadside-dispatch/internal/money"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmergency(row rowScanner) (*models.EmergencyRequest, error) {
	var e models.EmergencyRequest
	var acceptedBy, canceledReason sql.NullString
	err := row.Scan(&e.ID, &e.ReporterID, &e.VehicleCategory, &e.Cause, pq.Array(&e.Attachments),
		&e.Loc.Lat, &e.Loc.Lon, &e.CreatedAt, &e.Status,
		&acceptedBy, &e.AcceptedAt, &e.CompletedAt, &e.CanceledAt, &canceledReason)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, faults.Transient("emergency scan", err)
	}
	e.AcceptedBy = acceptedBy.String
	e.CanceledReason = canceledReason.String
	return &e, nil
}

func scanEmergencies(rows *sql.Rows) ([]models.EmergencyRequest, error) {
	out := make([]models.EmergencyRequest, 0)
	for rows.Next() {
		e, err := scanEmergency(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func toAmount(v int64) money.Amount { return money.Amount(v) }
