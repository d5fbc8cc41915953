// Package maintenance owns the bike maintenance log and the background sweep
// that moves overdue bikes out of service.
package maintenance

import (
	"time"

	"github.com/google/uuid"
)

type Category string

const (
	CategoryInspection   Category = "inspection"
	CategoryBrakeService Category = "brake_service"
	CategoryTyreService  Category = "tyre_service"
	CategoryBattery      Category = "battery_service"
	CategoryRepair       Category = "repair"
)

// Record is one entry in a bike's ordered maintenance-event log.
type Record struct {
	ID          uuid.UUID
	BikeID      uuid.UUID `db:"bike_id"`
	OccurredAt  time.Time `db:"occurred_at"`
	Category    Category
	Description string
	Technician  string
	Cost        float64
	CreatedAt   time.Time `db:"created_at"`
}
