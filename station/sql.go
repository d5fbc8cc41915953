package station

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/semanticallynull/fleetengine-backend/bike"
)

var ErrNotFound = errors.New("station not found")

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) GetStations() ([]Station, error) {
	var stations []Station
	err := r.db.Select(&stations, getStations)
	return stations, err
}

const getStations = `SELECT * FROM stations`

func (r *Repository) GetStation(id string) (Station, error) {
	var station Station
	err := r.db.Get(&station, getStation, id)
	if errors.Is(err, sql.ErrNoRows) {
		return station, ErrNotFound
	}
	return station, err
}

const getStation = `SELECT * FROM stations WHERE id = $1`

// DockedBikes lists the bikes currently recorded at a station. Docked bikes
// should be a subset of the available fleet; an in-use bike keeps its
// station reference only until its ride settles elsewhere.
func (r *Repository) DockedBikes(ctx context.Context, id string) ([]bike.Bike, error) {
	var bikes []bike.Bike
	err := r.db.SelectContext(ctx, &bikes, getDockedBikes, id)
	return bikes, err
}

const getDockedBikes = `SELECT * FROM bikes WHERE station_id = $1`
