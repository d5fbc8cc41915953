package bike

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jmoiron/sqlx"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrNotAvailable = errors.New("bike not available")
	ErrNotReserved  = errors.New("bike not reserved")
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetBikes(ctx context.Context) ([]Bike, error) {
	var bikes []Bike
	err := r.db.SelectContext(ctx, &bikes, getBikes)
	return bikes, err
}

const getBikes = `SELECT * FROM bikes`

func (r *Repository) GetBike(ctx context.Context, label string) (Bike, error) {
	var bike Bike

	err := r.db.GetContext(ctx, &bike, getBike, label)
	if errors.Is(err, sql.ErrNoRows) {
		return bike, ErrNotFound
	}

	return bike, err
}

const getBike = `SELECT * FROM bikes WHERE label = $1`

// GetBikeByID fetches a bike by its UUID.
func (r *Repository) GetBikeByID(ctx context.Context, id string) (Bike, error) {
	var bike Bike
	err := r.db.GetContext(ctx, &bike, getBikeByID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return bike, ErrNotFound
	}
	return bike, err
}

const getBikeByID = `SELECT * FROM bikes WHERE id = $1`

// ReserveBike moves an available bike into the reserved state. The bike row
// is locked for the duration so concurrent lifecycle operations serialize.
func (r *Repository) ReserveBike(ctx context.Context, label string) error {
	return r.transition(ctx, label, StatusAvailable, StatusReserved, ErrNotAvailable)
}

// ReleaseBike returns a reserved bike to the available state.
func (r *Repository) ReleaseBike(ctx context.Context, label string) error {
	return r.transition(ctx, label, StatusReserved, StatusAvailable, ErrNotReserved)
}

func (r *Repository) transition(ctx context.Context, label string, from, to Status, stateErr error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var status Status
	err = tx.GetContext(ctx, &status, lockBikeStatus, label)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if status != from {
		return fmt.Errorf("%w: status is %s", stateErr, status)
	}

	_, err = tx.ExecContext(ctx, setBikeStatus, to, label)
	if err != nil {
		return err
	}

	return tx.Commit()
}

const lockBikeStatus = `SELECT status FROM bikes WHERE label = $1 FOR UPDATE`
const setBikeStatus = `UPDATE bikes SET status = $1 WHERE label = $2`

// UpdatePosition writes the bike's last reported location.
func (r *Repository) UpdatePosition(ctx context.Context, label string, lat, lng float64) error {
	res, err := r.db.ExecContext(ctx, updatePosition, lat, lng, label)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const updatePosition = `UPDATE bikes SET location = point($1, $2) WHERE label = $3`

// SetLockState updates the lock and alarm flags reported by the bike's lock.
func (r *Repository) SetLockState(ctx context.Context, label string, locked, alarmArmed bool) error {
	res, err := r.db.ExecContext(ctx, setLockState, locked, alarmArmed, label)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const setLockState = `UPDATE bikes SET locked = $1, alarm_armed = $2 WHERE label = $3`

// BikeWithStation represents a bike with its station info for availability queries.
type BikeWithStation struct {
	Bike
	StationName string `db:"station_name"`
}

// GetBikesWithStations fetches all bikes with their station info.
func (r *Repository) GetBikesWithStations(ctx context.Context, stationID *string) ([]BikeWithStation, error) {
	var bikes []BikeWithStation
	var err error
	if stationID != nil {
		err = r.db.SelectContext(ctx, &bikes, getBikesWithStationsByStation, *stationID)
	} else {
		err = r.db.SelectContext(ctx, &bikes, getBikesWithStations)
	}
	return bikes, err
}

const getBikesWithStations = `
SELECT b.*, COALESCE(s.name, '') as station_name
FROM bikes b
LEFT JOIN stations s ON b.station_id = s.id
`

const getBikesWithStationsByStation = `
SELECT b.*, COALESCE(s.name, '') as station_name
FROM bikes b
LEFT JOIN stations s ON b.station_id = s.id
WHERE b.station_id = $1
`

// Dock records the bike at a station. Capacity is advisory and not enforced.
func (r *Repository) Dock(ctx context.Context, label string, stationID string) error {
	res, err := r.db.ExecContext(ctx, dockBike, stationID, label)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const dockBike = `UPDATE bikes SET station_id = $1 WHERE label = $2`

// CreateBike onboards a new unit into the fleet.
func (r *Repository) CreateBike(ctx context.Context, label, imei string, location pgtype.Point) (Bike, error) {
	var bike Bike
	err := r.db.GetContext(ctx, &bike, createBike, label, imei, location.P.X, location.P.Y)
	return bike, err
}

const createBike = `
INSERT INTO bikes (id, label, imei, status, location)
VALUES (gen_random_uuid(), $1, $2, 'available', point($3, $4))
RETURNING *
`
