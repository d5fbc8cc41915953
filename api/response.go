package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/semanticallynull/fleetengine-backend/alert"
	"github.com/semanticallynull/fleetengine-backend/bike"
	"github.com/semanticallynull/fleetengine-backend/internal/o11y"
	"github.com/semanticallynull/fleetengine-backend/ride"
	"github.com/semanticallynull/fleetengine-backend/station"
)

func metricsHandler(obs *o11y.Observability) gin.HandlerFunc {
	h := promhttp.HandlerFor(obs.Registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

type bikeResponse struct {
	ID                uuid.UUID  `json:"id"`
	Label             string     `json:"label"`
	DisplayName       string     `json:"displayName"`
	IMEI              string     `json:"bleId"`
	Status            string     `json:"status"`
	Lat               float64    `json:"latitude"`
	Lng               float64    `json:"longitude"`
	BatteryVoltage    int        `json:"batteryVoltage"`
	Locked            bool       `json:"locked"`
	RideCount         int        `json:"rideCount"`
	TotalDistanceKm   float64    `json:"totalDistanceKm"`
	LastMaintenanceAt *time.Time `json:"lastMaintenanceAt,omitempty"`
	NextMaintenanceAt *time.Time `json:"nextMaintenanceAt,omitempty"`
	StationName       string     `json:"stationName"`
}

func toBikeResponse(b bike.Bike) bikeResponse {
	br := bikeResponse{
		ID:              b.ID,
		Label:           b.Label,
		IMEI:            b.IMEI,
		Status:          string(b.Status),
		Lat:             b.Location.P.X,
		Lng:             b.Location.P.Y,
		BatteryVoltage:  voltageToPercentage(b.BatteryVoltage),
		Locked:          b.Locked,
		RideCount:       b.RideCount,
		TotalDistanceKm: b.TotalDistanceKm,
	}
	if b.LastMaintenanceAt.Valid {
		br.LastMaintenanceAt = &b.LastMaintenanceAt.Time
	}
	if b.NextMaintenanceAt.Valid {
		br.NextMaintenanceAt = &b.NextMaintenanceAt.Time
	}
	if b.StationName != nil {
		br.StationName = *b.StationName
	}
	if b.DisplayName != nil {
		br.DisplayName = *b.DisplayName
	}
	return br
}

func voltageToPercentage(voltage int) int {
	return (voltage - 340) * 100 / 72
}

type rideResponse struct {
	ID            uuid.UUID  `json:"id"`
	BikeID        uuid.UUID  `json:"bikeId"`
	StartLat      float64    `json:"startLatitude"`
	StartLng      float64    `json:"startLongitude"`
	EndLat        *float64   `json:"endLatitude,omitempty"`
	EndLng        *float64   `json:"endLongitude,omitempty"`
	StartedAt     time.Time  `json:"startedAt"`
	EndedAt       *time.Time `json:"endedAt,omitempty"`
	DistanceKm    float64    `json:"distanceKm"`
	Cost          float64    `json:"cost"`
	Status        string     `json:"status"`
	PaymentStatus string     `json:"paymentStatus"`
}

func toRideResponse(r ride.Ride) rideResponse {
	resp := rideResponse{
		ID:            r.ID,
		BikeID:        r.BikeID,
		StartLat:      r.Start.P.X,
		StartLng:      r.Start.P.Y,
		StartedAt:     r.StartedAt,
		DistanceKm:    r.DistanceKm,
		Cost:          r.Cost,
		Status:        string(r.Status),
		PaymentStatus: string(r.PaymentStatus),
	}
	if r.Status == ride.StatusCompleted {
		endLat, endLng := r.End.P.X, r.End.P.Y
		resp.EndLat = &endLat
		resp.EndLng = &endLng
	}
	if r.EndedAt.Valid {
		resp.EndedAt = &r.EndedAt.Time
	}
	return resp
}

type alertResponse struct {
	ID        uuid.UUID  `json:"id"`
	BikeID    uuid.UUID  `json:"bikeId"`
	RiderID   *uuid.UUID `json:"riderId,omitempty"`
	Category  string     `json:"category"`
	Lat       float64    `json:"latitude"`
	Lng       float64    `json:"longitude"`
	CreatedAt time.Time  `json:"createdAt"`
}

func toAlertResponse(a alert.Alert) alertResponse {
	return alertResponse{
		ID:        a.ID,
		BikeID:    a.BikeID,
		RiderID:   a.RiderID,
		Category:  string(a.Category),
		Lat:       a.Location.P.X,
		Lng:       a.Location.P.Y,
		CreatedAt: a.CreatedAt,
	}
}

type stationResponse struct {
	ID           uuid.UUID    `json:"id"`
	Name         string       `json:"name"`
	Address      string       `json:"address"`
	OpeningHours string       `json:"openingHours"`
	Lat          float64      `json:"latitude"`
	Lng          float64      `json:"longitude"`
	Capacity     int          `json:"capacity"`
	Type         station.Type `json:"type"`
}

func toStationResponse(s station.Station) stationResponse {
	return stationResponse{
		ID:           s.ID,
		Name:         s.Name,
		Address:      s.Address,
		OpeningHours: s.OpeningHours,
		Capacity:     s.Capacity,
		Type:         s.Type,
		Lat:          s.Location.P.X,
		Lng:          s.Location.P.Y,
	}
}

func errJSON(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"code": code, "message": message})
}

func internalError(c *gin.Context, err error) {
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
