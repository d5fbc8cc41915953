package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/semanticallynull/fleetengine-backend/bike"
	"github.com/semanticallynull/fleetengine-backend/internal/middleware"
	"github.com/semanticallynull/fleetengine-backend/maintenance"
)

type maintenanceRequest struct {
	Date        time.Time `json:"date"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Technician  string    `json:"technician"`
	Cost        float64   `json:"cost"`
}

type maintenanceRecordResponse struct {
	ID          uuid.UUID `json:"id"`
	Date        time.Time `json:"date"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Technician  string    `json:"technician"`
	Cost        float64   `json:"cost"`
}

func toMaintenanceRecordResponse(r maintenance.Record) maintenanceRecordResponse {
	return maintenanceRecordResponse{
		ID:          r.ID,
		Date:        r.OccurredAt,
		Category:    string(r.Category),
		Description: r.Description,
		Technician:  r.Technician,
		Cost:        r.Cost,
	}
}

// scheduleMaintenanceHandler appends a maintenance record and sets the next
// maintenance date. The bike stays in service until the sweep picks it up.
func (a *API) scheduleMaintenanceHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	var req maintenanceRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind request", "error", err)
		errJSON(c, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
		return
	}
	if req.Date.IsZero() {
		errJSON(c, http.StatusBadRequest, "INVALID_ARGUMENT", "date is required")
		return
	}

	b, ok := a.bikeByLabel(c)
	if !ok {
		return
	}

	updated, err := a.mr.Schedule(c, b.ID, maintenance.Record{
		OccurredAt:  req.Date,
		Category:    maintenance.Category(req.Category),
		Description: req.Description,
		Technician:  req.Technician,
		Cost:        req.Cost,
	})
	if err != nil {
		switch {
		case errors.Is(err, maintenance.ErrAlreadyScheduled):
			errJSON(c, http.StatusConflict, "ALREADY_UNDER_MAINTENANCE", "Bike is already under maintenance")
		case errors.Is(err, maintenance.ErrBikeBusy):
			errJSON(c, http.StatusUnprocessableEntity, "BIKE_BUSY", "Bike is reserved or in use")
		default:
			logger.Error("Failed to schedule maintenance", "bike", b.Label, "error", err)
			internalError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, toBikeResponse(updated))
}

func (a *API) completeMaintenanceHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	b, ok := a.bikeByLabel(c)
	if !ok {
		return
	}

	updated, err := a.mr.Complete(c, b.ID)
	if err != nil {
		if errors.Is(err, maintenance.ErrNotUnderMaintenance) {
			errJSON(c, http.StatusUnprocessableEntity, "NOT_UNDER_MAINTENANCE", "Bike is not under maintenance")
			return
		}
		logger.Error("Failed to complete maintenance", "bike", b.Label, "error", err)
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, toBikeResponse(updated))
}

// removeMaintenanceRecordHandler corrects an erroneous scheduling by popping
// the most recent log entry. Only the last entry is recoverable.
func (a *API) removeMaintenanceRecordHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	b, ok := a.bikeByLabel(c)
	if !ok {
		return
	}

	updated, err := a.mr.RemoveLastRecord(c, b.ID)
	if err != nil {
		switch {
		case errors.Is(err, maintenance.ErrNotUnderMaintenance):
			errJSON(c, http.StatusUnprocessableEntity, "NOT_UNDER_MAINTENANCE", "Bike is not under maintenance")
		case errors.Is(err, maintenance.ErrNoRecords):
			errJSON(c, http.StatusUnprocessableEntity, "NO_RECORDS", "Bike has no maintenance records")
		default:
			logger.Error("Failed to remove maintenance record", "bike", b.Label, "error", err)
			internalError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, toBikeResponse(updated))
}

func (a *API) maintenanceHistoryHandler(c *gin.Context) {
	b, ok := a.bikeByLabel(c)
	if !ok {
		return
	}

	records, err := a.mr.History(c, b.ID)
	if err != nil {
		internalError(c, err)
		return
	}

	resp := make([]maintenanceRecordResponse, 0, len(records))
	for _, r := range records {
		resp = append(resp, toMaintenanceRecordResponse(r))
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) bikeByLabel(c *gin.Context) (bike.Bike, bool) {
	b, err := a.br.GetBike(c, c.Param("label"))
	if err != nil {
		if errors.Is(err, bike.ErrNotFound) {
			errJSON(c, http.StatusNotFound, "BIKE_NOT_FOUND", "Bike not found")
			return bike.Bike{}, false
		}
		internalError(c, err)
		return bike.Bike{}, false
	}
	return b, true
}
