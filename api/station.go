package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/semanticallynull/fleetengine-backend/station"
)

func (a *API) stationsHandler(c *gin.Context) {
	stations, err := a.sr.GetStations()
	if err != nil {
		internalError(c, err)
		return
	}

	resp := make([]stationResponse, 0, len(stations))
	for _, s := range stations {
		resp = append(resp, toStationResponse(s))
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) dockedBikesHandler(c *gin.Context) {
	id := c.Param("id")
	if _, err := a.sr.GetStation(id); err != nil {
		if errors.Is(err, station.ErrNotFound) {
			errJSON(c, http.StatusNotFound, "STATION_NOT_FOUND", "Station not found")
			return
		}
		internalError(c, err)
		return
	}

	bikes, err := a.sr.DockedBikes(c, id)
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
