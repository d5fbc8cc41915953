package acceptance

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/semanticallynull/fleetengine-backend/bike"
	"github.com/semanticallynull/fleetengine-backend/geo"
	"github.com/semanticallynull/fleetengine-backend/maintenance"
	"github.com/semanticallynull/fleetengine-backend/ride"
	"github.com/semanticallynull/fleetengine-backend/rider"
)

// The handlers below mirror the API layer over the real repositories, with
// fake auth in place of JWT validation.

func (ts *TestServer) resolveRider(c *gin.Context) (*rider.Rider, bool) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "Authentication required"})
		return nil, false
	}

	rdr, err := ts.RiderRepo.GetRiderByAuth0ID(userID)
	if err != nil {
		if errors.Is(err, rider.ErrNotFound) {
			rdr, err = ts.RiderRepo.CreateRider(userID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return nil, false
			}
			return rdr, true
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return rdr, true
}

func (ts *TestServer) lookupBike(c *gin.Context, label string) (bike.Bike, bool) {
	b, err := ts.BikeRepo.GetBike(c, label)
	if err != nil {
		if errors.Is(err, bike.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "BIKE_NOT_FOUND", "message": "Bike not found"})
			return bike.Bike{}, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return bike.Bike{}, false
	}
	return b, true
}

func (ts *TestServer) makeStartRideHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			BikeID string `json:"bikeId"`
		}
		if err := c.Bind(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_ARGUMENT", "message": err.Error()})
			return
		}

		rdr, ok := ts.resolveRider(c)
		if !ok {
			return
		}
		b, ok := ts.lookupBike(c, req.BikeID)
		if !ok {
			return
		}

		r, err := ts.RideRepo.StartRide(c, b.ID, rdr.ID)
		if err != nil {
			riderID, inProgress := ride.RiderFromRideInProgressError(err)
			if inProgress && riderID == rdr.ID {
				c.JSON(http.StatusOK, gin.H{"ok": "Rider already has an active ride"})
				return
			}
			if inProgress || errors.Is(err, ride.ErrBikeUnavailable) {
				c.JSON(http.StatusConflict, gin.H{"code": "BIKE_UNAVAILABLE", "message": "Bike is not available"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, r)
	}
}

func (ts *TestServer) makeEndRideHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			RideID string `json:"rideId"`
		}
		if err := c.Bind(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_ARGUMENT", "message": err.Error()})
			return
		}

		rideID, err := uuid.Parse(req.RideID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_ARGUMENT", "message": "rideId must be a UUID"})
			return
		}

		rdr, ok := ts.resolveRider(c)
		if !ok {
			return
		}

		r, err := ts.RideRepo.EndRide(c, rideID, rdr.ID, testTariff)
		if err != nil {
			switch {
			case errors.Is(err, ride.ErrNotFound):
				c.JSON(http.StatusNotFound, gin.H{"code": "RIDE_NOT_FOUND", "message": "Ride not found"})
			case errors.Is(err, ride.ErrRideEnded):
				c.JSON(http.StatusUnprocessableEntity, gin.H{"code": "RIDE_ALREADY_ENDED", "message": "Ride has already been settled"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}

		c.JSON(http.StatusOK, r)
	}
}

func (ts *TestServer) makeReserveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := ts.BikeRepo.ReserveBike(c, c.Param("label"))
		if err != nil {
			switch {
			case errors.Is(err, bike.ErrNotFound):
				c.JSON(http.StatusNotFound, gin.H{"code": "BIKE_NOT_FOUND"})
			case errors.Is(err, bike.ErrNotAvailable):
				c.JSON(http.StatusConflict, gin.H{"code": "BIKE_UNAVAILABLE"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

func (ts *TestServer) makeReleaseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := ts.BikeRepo.ReleaseBike(c, c.Param("label"))
		if err != nil {
			switch {
			case errors.Is(err, bike.ErrNotFound):
				c.JSON(http.StatusNotFound, gin.H{"code": "BIKE_NOT_FOUND"})
			case errors.Is(err, bike.ErrNotReserved):
				c.JSON(http.StatusConflict, gin.H{"code": "BIKE_NOT_RESERVED"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

func (ts *TestServer) makeScheduleMaintenanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Date        time.Time `json:"date"`
			Category    string    `json:"category"`
			Description string    `json:"description"`
			Technician  string    `json:"technician"`
			Cost        float64   `json:"cost"`
		}
		if err := c.Bind(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_ARGUMENT", "message": err.Error()})
			return
		}

		b, ok := ts.lookupBike(c, c.Param("label"))
		if !ok {
			return
		}

		updated, err := ts.MaintenanceRepo.Schedule(c, b.ID, maintenance.Record{
			OccurredAt:  req.Date,
			Category:    maintenance.Category(req.Category),
			Description: req.Description,
			Technician:  req.Technician,
			Cost:        req.Cost,
		})
		if err != nil {
			switch {
			case errors.Is(err, maintenance.ErrAlreadyScheduled):
				c.JSON(http.StatusConflict, gin.H{"code": "ALREADY_UNDER_MAINTENANCE"})
			case errors.Is(err, maintenance.ErrBikeBusy):
				c.JSON(http.StatusUnprocessableEntity, gin.H{"code": "BIKE_BUSY"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}

		c.JSON(http.StatusOK, updated)
	}
}

func (ts *TestServer) makeCompleteMaintenanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		b, ok := ts.lookupBike(c, c.Param("label"))
		if !ok {
			return
		}

		updated, err := ts.MaintenanceRepo.Complete(c, b.ID)
		if err != nil {
			if errors.Is(err, maintenance.ErrNotUnderMaintenance) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"code": "NOT_UNDER_MAINTENANCE"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, updated)
	}
}

func (ts *TestServer) makeRemoveMaintenanceRecordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		b, ok := ts.lookupBike(c, c.Param("label"))
		if !ok {
			return
		}

		updated, err := ts.MaintenanceRepo.RemoveLastRecord(c, b.ID)
		if err != nil {
			switch {
			case errors.Is(err, maintenance.ErrNotUnderMaintenance):
				c.JSON(http.StatusUnprocessableEntity, gin.H{"code": "NOT_UNDER_MAINTENANCE"})
			case errors.Is(err, maintenance.ErrNoRecords):
				c.JSON(http.StatusUnprocessableEntity, gin.H{"code": "NO_RECORDS"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}

		c.JSON(http.StatusOK, updated)
	}
}

func (ts *TestServer) makePositionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Lat float64 `json:"latitude"`
			Lng float64 `json:"longitude"`
		}
		if err := c.Bind(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_ARGUMENT", "message": err.Error()})
			return
		}

		pos := geo.Point{Lat: req.Lat, Lng: req.Lng}
		if err := pos.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_ARGUMENT", "message": err.Error()})
			return
		}

		b, ok := ts.lookupBike(c, c.Param("label"))
		if !ok {
			return
		}

		if err := ts.BikeRepo.UpdatePosition(c, b.Label, pos.Lat, pos.Lng); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		alrt, err := ts.Evaluator.EvaluateGeofence(c, b.ID, nil, pos)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if alrt == nil {
			c.JSON(http.StatusOK, gin.H{"ok": true})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "alert": alrt})
	}
}

func (ts *TestServer) makeTheftHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Lat float64 `json:"latitude"`
			Lng float64 `json:"longitude"`
		}
		if err := c.Bind(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_ARGUMENT", "message": err.Error()})
			return
		}

		b, ok := ts.lookupBike(c, c.Param("label"))
		if !ok {
			return
		}

		alrt, err := ts.Evaluator.RecordTheft(c, b.ID, nil, geo.Point{Lat: req.Lat, Lng: req.Lng})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if alrt == nil {
			c.JSON(http.StatusOK, gin.H{"ok": true, "suppressed": true})
			return
		}
		c.JSON(http.StatusOK, alrt)
	}
}
