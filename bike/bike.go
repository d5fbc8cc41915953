// Package bike
package bike

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Status is the single authoritative field describing whether a bike is
// rentable, reserved, rented, or out of service. No other entity may imply
// a conflicting state: an open ride implies StatusInUse.
type Status string

const (
	StatusAvailable        Status = "available"
	StatusReserved         Status = "reserved"
	StatusInUse            Status = "in_use"
	StatusUnderMaintenance Status = "under_maintenance"
)

var validTransitions = map[Status][]Status{
	StatusAvailable:        {StatusReserved, StatusInUse, StatusUnderMaintenance},
	StatusReserved:         {StatusInUse, StatusAvailable, StatusUnderMaintenance},
	StatusInUse:            {StatusAvailable},
	StatusUnderMaintenance: {StatusAvailable},
}

// CanTransition reports whether the status machine permits from -> to.
// A bike in use can only be released; maintenance may not pre-empt a ride.
func CanTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Bike represents a physical unit in the fleet.
type Bike struct {
	// ID is an internal identifier for a bike
	ID uuid.UUID
	// Label is a physical label which is on the bike. It should be scannable (e.g. "CARGO-123")
	// in QR Code or Code-128 format.
	Label string
	// IMEI is the identifier of the SIM card used in the bike. This is what is transmitted by the lock
	IMEI string

	Status   Status
	Location pgtype.Point

	BatteryVoltage int `db:"battery_voltage"`
	Locked         bool
	AlarmArmed     bool `db:"alarm_armed"`

	// Odometer totals, bumped when a ride settles.
	RideCount       int     `db:"ride_count"`
	TotalDistanceKm float64 `db:"total_distance_km"`

	LastMaintenanceAt sql.NullTime `db:"last_maintenance_at"`
	NextMaintenanceAt sql.NullTime `db:"next_maintenance_at"`

	StationID   *uuid.UUID `db:"station_id"`
	StationName *string    `db:"station_name"`

	// DisplayName is a user-friendly name for the bike type (e.g., "Bergamont Cargoville LJ")
	DisplayName *string `db:"display_name"`
	// ImageURL is a URL to an image of the bike
	ImageURL *string `db:"image_url"`
}

// MaintenanceDue reports whether the bike's next-maintenance date has passed.
func (b Bike) MaintenanceDue(now time.Time) bool {
	return b.NextMaintenanceAt.Valid && !b.NextMaintenanceAt.Time.After(now)
}
