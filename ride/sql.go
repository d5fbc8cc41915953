package ride

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/semanticallynull/fleetengine-backend/bike"
	"github.com/semanticallynull/fleetengine-backend/geo"
)

var (
	ErrNotFound        = errors.New("ride not found")
	ErrRideEnded       = errors.New("ride already ended")
	ErrBikeUnavailable = errors.New("bike not available")
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{
		db: db,
	}
}

// StartRide creates an active ride and marks the bike in use in one
// transaction. The bike row is locked first so concurrent starts, ends and
// maintenance sweeps against the same bike serialize on it.
func (r *Repository) StartRide(ctx context.Context, bikeID, riderID uuid.UUID) (Ride, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return Ride{}, err
	}
	defer tx.Rollback()

	var b bike.Bike
	err = tx.GetContext(ctx, &b, lockBike, bikeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Ride{}, ErrNotFound
		}
		return Ride{}, err
	}
	if b.Status != bike.StatusAvailable {
		return Ride{}, ErrBikeUnavailable
	}

	var rider uuid.UUID
	err = tx.GetContext(ctx, &rider, verifyNoRides, bikeID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Ride{}, err
	}
	if rider != uuid.Nil {
		return Ride{}, &rideInProgressError{riderID: rider}
	}

	var ride Ride
	err = tx.GetContext(ctx, &ride, startRideQuery, uuid.New(), bikeID, riderID, b.Location.P.X, b.Location.P.Y)
	if err != nil {
		return Ride{}, err
	}

	_, err = tx.ExecContext(ctx, setBikeStatus, bike.StatusInUse, bikeID)
	if err != nil {
		return Ride{}, err
	}

	err = tx.Commit()
	return ride, err
}

const lockBike = `SELECT * FROM bikes WHERE id = $1 FOR UPDATE`

const verifyNoRides = `SELECT rider_id FROM rides WHERE bike_id = $1 AND status = 'active'`

const startRideQuery = `
INSERT INTO rides (id, bike_id, rider_id, start, started_at, status, payment_status)
VALUES ($1, $2, $3, point($4, $5), now(), 'active', 'pending')
RETURNING *
`

const setBikeStatus = `UPDATE bikes SET status = $1 WHERE id = $2`

// EndRide settles an active ride: the bike's current position becomes the
// end position, distance and cost are computed from the tariff, and the bike
// is released, all in one transaction. Only the rider who started the ride
// can settle it; anyone else sees ErrNotFound.
func (r *Repository) EndRide(ctx context.Context, rideID, riderID uuid.UUID, tariff geo.Tariff) (Ride, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return Ride{}, err
	}
	defer tx.Rollback()

	var ride Ride
	err = tx.GetContext(ctx, &ride, lockRide, rideID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Ride{}, ErrNotFound
		}
		return Ride{}, err
	}
	if ride.RiderID != riderID {
		return Ride{}, ErrNotFound
	}
	if ride.Status != StatusActive {
		return Ride{}, ErrRideEnded
	}

	var b bike.Bike
	err = tx.GetContext(ctx, &b, lockBike, ride.BikeID)
	if err != nil {
		return Ride{}, err
	}

	start := geo.Point{Lat: ride.Start.P.X, Lng: ride.Start.P.Y}
	end := geo.Point{Lat: b.Location.P.X, Lng: b.Location.P.Y}
	distance, err := geo.DistanceKm(start, end)
	if err != nil {
		return Ride{}, err
	}
	cost, err := tariff.Cost(distance)
	if err != nil {
		return Ride{}, err
	}

	err = tx.GetContext(ctx, &ride, endRideQuery, end.Lat, end.Lng, distance, cost, rideID)
	if err != nil {
		return Ride{}, err
	}

	_, err = tx.ExecContext(ctx, releaseBike, distance, ride.BikeID)
	if err != nil {
		return Ride{}, err
	}

	err = tx.Commit()
	return ride, err
}

const lockRide = `SELECT * FROM rides WHERE id = $1 FOR UPDATE`

const endRideQuery = `
UPDATE rides
SET "end" = point($1, $2), ended_at = now(), distance_km = $3, cost = $4, status = 'completed'
WHERE id = $5
RETURNING *
`

const releaseBike = `
UPDATE bikes
SET status = 'available', ride_count = ride_count + 1, total_distance_km = total_distance_km + $1
WHERE id = $2
`

func (r *Repository) GetRide(ctx context.Context, id uuid.UUID) (Ride, error) {
	var ride Ride
	err := r.db.GetContext(ctx, &ride, getRide, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ride, ErrNotFound
	}
	return ride, err
}

const getRide = `SELECT * FROM rides WHERE id = $1`

// ActiveRideForBike returns the single active ride for a bike, if any.
func (r *Repository) ActiveRideForBike(ctx context.Context, bikeID uuid.UUID) (*Ride, error) {
	var ride Ride
	err := r.db.GetContext(ctx, &ride, activeRideForBike, bikeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ride, nil
}

const activeRideForBike = `SELECT * FROM rides WHERE bike_id = $1 AND status = 'active'`

// SetPaymentStatus records the outcome reported by the payment collaborator.
// The settlement engine never computes payment state itself.
func (r *Repository) SetPaymentStatus(ctx context.Context, rideID uuid.UUID, status PaymentStatus) error {
	res, err := r.db.ExecContext(ctx, setPaymentStatus, status, rideID)
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

const setPaymentStatus = `UPDATE rides SET payment_status = $1, charge_created_at = now() WHERE id = $2`

type rideInProgressError struct {
	riderID uuid.UUID
}

func (e *rideInProgressError) Error() string {
	return "ride in progress for rider " + e.riderID.String()
}

func RiderFromRideInProgressError(err error) (uuid.UUID, bool) {
	riperr, ok := err.(*rideInProgressError)
	if ok {
		return riperr.riderID, ok
	}
	return uuid.UUID{}, false
}
