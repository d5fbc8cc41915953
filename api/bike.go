package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/semanticallynull/fleetengine-backend/bike"
	"github.com/semanticallynull/fleetengine-backend/geo"
	"github.com/semanticallynull/fleetengine-backend/internal/middleware"
	"github.com/semanticallynull/fleetengine-backend/track"
)

func (a *API) bikesHandler(c *gin.Context) {
	bikes, err := a.br.GetBikes(c)
	if err != nil {
		internalError(c, err)
		return
	}

	resp := make([]bikeResponse, 0, len(bikes))
	for _, b := range bikes {
		resp = append(resp, toBikeResponse(b))
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) bikeHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	label := c.Param("label")
	b, err := a.br.GetBike(c, label)
	if err != nil {
		if errors.Is(err, bike.ErrNotFound) {
			errJSON(c, http.StatusNotFound, "BIKE_NOT_FOUND", "Bike not found")
			return
		}
		internalError(c, err)
		return
	}

	resp := toBikeResponse(b)

	// The cache sees telemetry before the row does; prefer it when present.
	pos, err := a.tracks.GetPosition(c, label)
	if err != nil {
		logger.Warn("Failed to read cached position", "error", err)
	} else if pos != nil {
		resp.Lat = pos.Lat
		resp.Lng = pos.Lng
	}

	c.JSON(http.StatusOK, resp)
}

func (a *API) nearbyBikesHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	lat, err1 := strconv.ParseFloat(c.Query("latitude"), 64)
	lng, err2 := strconv.ParseFloat(c.Query("longitude"), 64)
	if err1 != nil || err2 != nil {
		errJSON(c, http.StatusBadRequest, "INVALID_ARGUMENT", "latitude and longitude are required")
		return
	}

	radiusKm := 2.0
	if r := c.Query("radiusKm"); r != "" {
		radiusKm, err1 = strconv.ParseFloat(r, 64)
		if err1 != nil || radiusKm <= 0 {
			errJSON(c, http.StatusBadRequest, "INVALID_ARGUMENT", "radiusKm must be a positive number")
			return
		}
	}

	positions, err := a.tracks.NearbyBikes(c, geo.Point{Lat: lat, Lng: lng}, radiusKm, 20)
	if err != nil {
		if errors.Is(err, geo.ErrInvalidCoordinate) {
			errJSON(c, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
			return
		}
		logger.Error("Failed to search nearby bikes", "error", err)
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, positions)
}

type positionRequest struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

// positionHandler ingests one position report: write-through to the live
// cache and the bike record, then geofence evaluation. An alert, if raised,
// is returned to the caller.
func (a *API) positionHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	var req positionRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind request", "error", err)
		errJSON(c, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
		return
	}

	pos := geo.Point{Lat: req.Lat, Lng: req.Lng}
	if err := pos.Validate(); err != nil {
		errJSON(c, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
		return
	}

	label := c.Param("label")
	b, err := a.br.GetBike(c, label)
	if err != nil {
		if errors.Is(err, bike.ErrNotFound) {
			errJSON(c, http.StatusNotFound, "BIKE_NOT_FOUND", "Bike not found")
			return
		}
		internalError(c, err)
		return
	}

	if err := a.tracks.SetPosition(c, track.Position{
		BikeLabel:  label,
		Lat:        pos.Lat,
		Lng:        pos.Lng,
		ReportedAt: time.Now(),
	}); err != nil {
		// The cache is advisory; the record of truth still gets the update.
		logger.Error("Failed to cache position", "bike", label, "error", err)
	}

	if err := a.br.UpdatePosition(c, label, pos.Lat, pos.Lng); err != nil {
		logger.Error("Failed to update bike position", "bike", label, "error", err)
		internalError(c, err)
		return
	}

	var riderID *uuid.UUID
	if r, err := a.rr.ActiveRideForBike(c, b.ID); err == nil && r != nil {
		riderID = &r.RiderID
	}

	alrt, err := a.ev.EvaluateGeofence(c, b.ID, riderID, pos)
	if err != nil {
		logger.Error("Failed to evaluate geofence", "bike", label, "error", err)
		internalError(c, err)
		return
	}

	if alrt == nil {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "alert": toAlertResponse(*alrt)})
}

// theftHandler records a theft-suspected alert. Detection heuristics live
// upstream; this endpoint only persists the signal.
func (a *API) theftHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	var req positionRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind request", "error", err)
		errJSON(c, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
		return
	}

	label := c.Param("label")
	b, err := a.br.GetBike(c, label)
	if err != nil {
		if errors.Is(err, bike.ErrNotFound) {
			errJSON(c, http.StatusNotFound, "BIKE_NOT_FOUND", "Bike not found")
			return
		}
		internalError(c, err)
		return
	}

	var riderID *uuid.UUID
	if r, err := a.rr.ActiveRideForBike(c, b.ID); err == nil && r != nil {
		riderID = &r.RiderID
	}

	alrt, err := a.ev.RecordTheft(c, b.ID, riderID, geo.Point{Lat: req.Lat, Lng: req.Lng})
	if err != nil {
		if errors.Is(err, geo.ErrInvalidCoordinate) {
			errJSON(c, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
			return
		}
		logger.Error("Failed to record theft alert", "bike", label, "error", err)
		internalError(c, err)
		return
	}

	if alrt == nil {
		c.JSON(http.StatusOK, gin.H{"ok": true, "suppressed": true})
		return
	}
	c.JSON(http.StatusOK, toAlertResponse(*alrt))
}

func (a *API) alertsHandler(c *gin.Context) {
	label := c.Param("label")
	b, err := a.br.GetBike(c, label)
	if err != nil {
		if errors.Is(err, bike.ErrNotFound) {
			errJSON(c, http.StatusNotFound, "BIKE_NOT_FOUND", "Bike not found")
			return
		}
		internalError(c, err)
		return
	}

	alerts, err := a.ar.ListForBike(c, b.ID)
	if err != nil {
		internalError(c, err)
		return
	}

	resp := make([]alertResponse, 0, len(alerts))
	for _, alrt := range alerts {
		resp = append(resp, toAlertResponse(alrt))
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) reserveBikeHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	label := c.Param("label")
	err := a.br.ReserveBike(c, label)
	if err != nil {
		switch {
		case errors.Is(err, bike.ErrNotFound):
			errJSON(c, http.StatusNotFound, "BIKE_NOT_FOUND", "Bike not found")
		case errors.Is(err, bike.ErrNotAvailable):
			errJSON(c, http.StatusConflict, "BIKE_UNAVAILABLE", "Bike is not available")
		default:
			logger.Error("Failed to reserve bike", "bike", label, "error", err)
			internalError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *API) releaseBikeHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	label := c.Param("label")
	err := a.br.ReleaseBike(c, label)
	if err != nil {
		switch {
		case errors.Is(err, bike.ErrNotFound):
			errJSON(c, http.StatusNotFound, "BIKE_NOT_FOUND", "Bike not found")
		case errors.Is(err, bike.ErrNotReserved):
			errJSON(c, http.StatusConflict, "BIKE_NOT_RESERVED", "Bike is not reserved")
		default:
			logger.Error("Failed to release bike", "bike", label, "error", err)
			internalError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
