package maintenance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/semanticallynull/fleetengine-backend/bike"
)

var (
	ErrAlreadyScheduled    = errors.New("bike already under maintenance")
	ErrBikeBusy            = errors.New("bike is reserved or in use")
	ErrNotUnderMaintenance = errors.New("bike not under maintenance")
	ErrNoRecords           = errors.New("no maintenance records")
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Schedule appends a maintenance record and sets the bike's next-maintenance
// date. It does not change the bike's status; the sweep (or an explicit
// Complete) owns status flips.
func (r *Repository) Schedule(ctx context.Context, bikeID uuid.UUID, rec Record) (bike.Bike, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return bike.Bike{}, err
	}
	defer tx.Rollback()

	b, err := lockBike(ctx, tx, bikeID)
	if err != nil {
		return bike.Bike{}, err
	}
	switch b.Status {
	case bike.StatusAvailable:
	case bike.StatusUnderMaintenance:
		return bike.Bike{}, ErrAlreadyScheduled
	default:
		return bike.Bike{}, ErrBikeBusy
	}

	_, err = tx.ExecContext(ctx, insertRecord,
		uuid.New(), bikeID, rec.OccurredAt, rec.Category, rec.Description, rec.Technician, rec.Cost)
	if err != nil {
		return bike.Bike{}, err
	}

	err = tx.GetContext(ctx, &b, setNextMaintenance, rec.OccurredAt, bikeID)
	if err != nil {
		return bike.Bike{}, err
	}

	return b, tx.Commit()
}

const insertRecord = `
INSERT INTO maintenance_records (id, bike_id, occurred_at, category, description, technician, cost, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())
`

const setNextMaintenance = `UPDATE bikes SET next_maintenance_at = $1 WHERE id = $2 RETURNING *`

// Complete returns a bike from maintenance to service. The next-maintenance
// date becomes the last-maintenance date and is cleared.
func (r *Repository) Complete(ctx context.Context, bikeID uuid.UUID) (bike.Bike, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return bike.Bike{}, err
	}
	defer tx.Rollback()

	b, err := lockBike(ctx, tx, bikeID)
	if err != nil {
		return bike.Bike{}, err
	}
	if b.Status != bike.StatusUnderMaintenance {
		return bike.Bike{}, ErrNotUnderMaintenance
	}

	err = tx.GetContext(ctx, &b, completeMaintenance, bikeID)
	if err != nil {
		return bike.Bike{}, err
	}

	return b, tx.Commit()
}

const completeMaintenance = `
UPDATE bikes
SET status = 'available',
    last_maintenance_at = COALESCE(next_maintenance_at, last_maintenance_at),
    next_maintenance_at = NULL
WHERE id = $1
RETURNING *
`

// RemoveLastRecord pops the most recent log entry and reverts the bike to
// available. Only the last entry is recoverable; earlier corrections are lost.
func (r *Repository) RemoveLastRecord(ctx context.Context, bikeID uuid.UUID) (bike.Bike, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return bike.Bike{}, err
	}
	defer tx.Rollback()

	b, err := lockBike(ctx, tx, bikeID)
	if err != nil {
		return bike.Bike{}, err
	}
	if b.Status != bike.StatusUnderMaintenance {
		return bike.Bike{}, ErrNotUnderMaintenance
	}

	res, err := tx.ExecContext(ctx, deleteLastRecord, bikeID)
	if err != nil {
		return bike.Bike{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return bike.Bike{}, err
	}
	if n == 0 {
		return bike.Bike{}, ErrNoRecords
	}

	err = tx.GetContext(ctx, &b, revertToAvailable, bikeID)
	if err != nil {
		return bike.Bike{}, err
	}

	return b, tx.Commit()
}

const deleteLastRecord = `
DELETE FROM maintenance_records
WHERE id = (
    SELECT id FROM maintenance_records WHERE bike_id = $1 ORDER BY created_at DESC LIMIT 1
)
`

const revertToAvailable = `
UPDATE bikes SET status = 'available', next_maintenance_at = NULL WHERE id = $1 RETURNING *
`

// History returns a bike's maintenance log, most recent first.
func (r *Repository) History(ctx context.Context, bikeID uuid.UUID) ([]Record, error) {
	var records []Record
	err := r.db.SelectContext(ctx, &records, getHistory, bikeID)
	return records, err
}

const getHistory = `SELECT * FROM maintenance_records WHERE bike_id = $1 ORDER BY created_at DESC`

// OverdueBikes selects candidates for the sweep: next-maintenance date at or
// before now, not already under maintenance.
func (r *Repository) OverdueBikes(ctx context.Context, now time.Time) ([]bike.Bike, error) {
	var bikes []bike.Bike
	err := r.db.SelectContext(ctx, &bikes, overdueBikes, now)
	return bikes, err
}

const overdueBikes = `
SELECT * FROM bikes
WHERE next_maintenance_at IS NOT NULL
  AND next_maintenance_at <= $1
  AND status != 'under_maintenance'
`

// MarkUnderMaintenance flips one overdue bike into maintenance. The status is
// re-checked under the row lock: a bike that went into use since the candidate
// query ran keeps its ride and is skipped until a later sweep.
func (r *Repository) MarkUnderMaintenance(ctx context.Context, bikeID uuid.UUID, now time.Time) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	b, err := lockBike(ctx, tx, bikeID)
	if err != nil {
		return false, err
	}
	if !b.MaintenanceDue(now) || !bike.CanTransition(b.Status, bike.StatusUnderMaintenance) {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, markUnderMaintenance, bikeID)
	if err != nil {
		return false, err
	}

	return true, tx.Commit()
}

const markUnderMaintenance = `UPDATE bikes SET status = 'under_maintenance' WHERE id = $1`

func lockBike(ctx context.Context, tx *sqlx.Tx, bikeID uuid.UUID) (bike.Bike, error) {
	var b bike.Bike
	err := tx.GetContext(ctx, &b, lockBikeQuery, bikeID)
	if errors.Is(err, sql.ErrNoRows) {
		return b, bike.ErrNotFound
	}
	return b, err
}

const lockBikeQuery = `SELECT * FROM bikes WHERE id = $1 FOR UPDATE`
