// Package geo provides great-circle distance, fare, and geofence primitives.
package geo

import (
	"errors"
	"fmt"
	"math"
)

const earthRadiusKm = 6371.0

var (
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	ErrNegativeDistance  = errors.New("negative distance")
)

// Point is a position in decimal degrees.
type Point struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

// Validate reports whether the point is a usable coordinate.
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || math.IsNaN(p.Lng) || math.IsInf(p.Lng, 0) {
		return fmt.Errorf("%w: not a finite number", ErrInvalidCoordinate)
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidCoordinate, p.Lat)
	}
	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidCoordinate, p.Lng)
	}
	return nil
}

// DistanceKm returns the haversine distance between a and b in kilometers.
func DistanceKm(a, b Point) (float64, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	if err := b.Validate(); err != nil {
		return 0, err
	}

	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c, nil
}

// Tariff is the linear pricing rule applied when a ride is settled.
type Tariff struct {
	BaseFare float64
	PerKm    float64
}

// Cost returns baseFare + perKm*distance, banker's-rounded to 2 decimals.
func (t Tariff) Cost(distanceKm float64) (float64, error) {
	if math.IsNaN(distanceKm) || math.IsInf(distanceKm, 0) {
		return 0, fmt.Errorf("%w: distance is not a finite number", ErrInvalidCoordinate)
	}
	if distanceKm < 0 {
		return 0, ErrNegativeDistance
	}
	return round2(t.BaseFare + t.PerKm*distanceKm), nil
}

func round2(x float64) float64 {
	return math.RoundToEven(x*100) / 100
}

// Fence is a circular geofence.
type Fence struct {
	Center   Point
	RadiusKm float64
}

// Contains reports whether p lies within the fence.
func (f Fence) Contains(p Point) (bool, error) {
	d, err := DistanceKm(f.Center, p)
	if err != nil {
		return false, err
	}
	return d <= f.RadiusKm, nil
}
