// Package alert persists geofence and theft alerts raised against bikes.
// Alerts are an append-only log; a created alert never changes.
package alert

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Category string

const (
	CategoryGeofenceExit   Category = "geofence_exit"
	CategoryTheftSuspected Category = "theft_suspected"
)

type Alert struct {
	ID        uuid.UUID
	BikeID    uuid.UUID  `db:"bike_id"`
	RiderID   *uuid.UUID `db:"rider_id"`
	Category  Category
	Location  pgtype.Point
	CreatedAt time.Time `db:"created_at"`
}
