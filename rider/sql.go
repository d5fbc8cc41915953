package rider

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{
		db: db,
	}
}

var ErrNotFound = errors.New("rider not found")

func (r *Repository) GetRiderByAuth0ID(auth0ID string) (*Rider, error) {
	var rider Rider
	err := r.db.Get(&rider, getRiderByAuth0IDQuery, auth0ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		return nil, err
	}
	return &rider, nil
}

const getRiderByAuth0IDQuery = "SELECT * FROM riders WHERE auth0_id = $1"

func (r *Repository) CreateRider(auth0ID string) (*Rider, error) {
	var rider Rider
	err := r.db.Get(&rider, createRiderQuery, uuid.New(), auth0ID)
	return &rider, err
}

const createRiderQuery = "INSERT INTO riders (id, auth0_id) VALUES ($1, $2) RETURNING *"

func (r *Repository) AddStripeIDToRider(auth0ID, stripeID string) error {
	_, err := r.db.Exec(addStripeIDToRiderQuery, stripeID, auth0ID)
	return err
}

const addStripeIDToRiderQuery = "UPDATE riders SET stripe_id = $1 WHERE auth0_id = $2"

var ErrNoRideInProgress = errors.New("no rides in progress")

type CurrentRideResult struct {
	RideID    uuid.UUID `db:"id"`
	BikeLabel string    `db:"label"`
	StartedAt time.Time `db:"started_at"`
}

func (r *Repository) CurrentRide(riderID uuid.UUID) (CurrentRideResult, error) {
	var result CurrentRideResult
	err := r.db.Get(&result, getCurrentRideQuery, riderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CurrentRideResult{}, ErrNoRideInProgress
		}
		return CurrentRideResult{}, err
	}
	return result, err
}

const getCurrentRideQuery = `SELECT r.id, b.label, r.started_at FROM rides r JOIN bikes b ON bike_id = b.id WHERE r.rider_id = $1
                                                             AND r.status = 'active'`

func (r *Repository) UpdateProfile(ctx context.Context, auth0ID, email, name string) error {
	_, err := r.db.ExecContext(ctx, updateProfileQuery, email, name, auth0ID)
	return err
}

const updateProfileQuery = `UPDATE riders SET email = NULLIF($1, ''), name = NULLIF($2, '') WHERE auth0_id = $3`
