package ride

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// Ride is one rental trip from pickup to drop-off. End, EndedAt, DistanceKm
// and Cost stay unset until the ride settles; they are written together.
type Ride struct {
	ID      uuid.UUID
	BikeID  uuid.UUID `db:"bike_id"`
	RiderID uuid.UUID `db:"rider_id"`

	Start pgtype.Point
	End   pgtype.Point

	StartedAt time.Time    `db:"started_at"`
	EndedAt   sql.NullTime `db:"ended_at"`

	DistanceKm float64 `db:"distance_km"`
	Cost       float64

	Status        Status
	PaymentStatus PaymentStatus `db:"payment_status"`

	ChargeCreatedAt sql.NullTime `db:"charge_created_at"`
}
