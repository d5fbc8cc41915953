package alert

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Create appends an alert. There is no update or delete.
func (r *Repository) Create(ctx context.Context, bikeID uuid.UUID, riderID *uuid.UUID, category Category, lat, lng float64) (Alert, error) {
	var a Alert
	err := r.db.GetContext(ctx, &a, createAlert, uuid.New(), bikeID, riderID, category, lat, lng)
	return a, err
}

const createAlert = `
INSERT INTO alerts (id, bike_id, rider_id, category, location, created_at)
VALUES ($1, $2, $3, $4, point($5, $6), now())
RETURNING *
`

func (r *Repository) ListForBike(ctx context.Context, bikeID uuid.UUID) ([]Alert, error) {
	var alerts []Alert
	err := r.db.SelectContext(ctx, &alerts, listForBike, bikeID)
	return alerts, err
}

const listForBike = `SELECT * FROM alerts WHERE bike_id = $1 ORDER BY created_at DESC`

func (r *Repository) List(ctx context.Context) ([]Alert, error) {
	var alerts []Alert
	err := r.db.SelectContext(ctx, &alerts, listAlerts)
	return alerts, err
}

const listAlerts = `SELECT * FROM alerts ORDER BY created_at DESC`
