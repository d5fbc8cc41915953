package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/semanticallynull/fleetengine-backend/alert"
	"github.com/semanticallynull/fleetengine-backend/bike"
	"github.com/semanticallynull/fleetengine-backend/geo"
	"github.com/semanticallynull/fleetengine-backend/internal/auth0"
	"github.com/semanticallynull/fleetengine-backend/internal/middleware"
	"github.com/semanticallynull/fleetengine-backend/internal/o11y"
	"github.com/semanticallynull/fleetengine-backend/maintenance"
	"github.com/semanticallynull/fleetengine-backend/ride"
	"github.com/semanticallynull/fleetengine-backend/rider"
	"github.com/semanticallynull/fleetengine-backend/station"
	"github.com/semanticallynull/fleetengine-backend/track"
)

type API struct {
	r   *gin.Engine
	log *slog.Logger
	br  *bike.Repository
	rr  *ride.Repository
	sr  *station.Repository
	mr  *maintenance.Repository
	ar  *alert.Repository
	rdr *rider.Repository

	ev     *alert.Evaluator
	tracks *track.Service
	auth0  auth0.Client

	tariff geo.Tariff
}

type Config struct {
	Auth0Domain     string
	Audience        string
	MetricsUsername string
	MetricsPassword string
	Tariff          geo.Tariff
}

func New(
	br *bike.Repository,
	rr *ride.Repository,
	sr *station.Repository,
	mr *maintenance.Repository,
	ar *alert.Repository,
	rdr *rider.Repository,
	ev *alert.Evaluator,
	tracks *track.Service,
	auth0Client auth0.Client,
	obs *o11y.Observability,
	cfg Config,
) (*API, error) {
	a := &API{
		r:      gin.New(),
		log:    obs.Logger,
		br:     br,
		rr:     rr,
		sr:     sr,
		mr:     mr,
		ar:     ar,
		rdr:    rdr,
		ev:     ev,
		tracks: tracks,
		auth0:  auth0Client,
		tariff: cfg.Tariff,
	}

	a.r.Use(gin.Recovery())
	a.r.Use(middleware.Tracing())
	a.r.Use(middleware.Logging(obs.Logger))
	a.r.Use(middleware.Metrics(obs.Registry))

	a.r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	metrics := a.r.Group("/metrics")
	if cfg.MetricsUsername != "" {
		metrics.Use(gin.BasicAuth(gin.Accounts{cfg.MetricsUsername: cfg.MetricsPassword}))
	}
	metrics.GET("", metricsHandler(obs))

	a.r.GET("/stations", a.stationsHandler)
	a.r.GET("/stations/:id/bikes", a.dockedBikesHandler)
	a.r.GET("/bikes", a.bikesHandler)
	a.r.GET("/bikes/nearby", a.nearbyBikesHandler)
	a.r.GET("/bikes/:label", a.bikeHandler)

	// Telemetry ingestion is authenticated at the gateway, not per-rider.
	a.r.POST("/bikes/:label/position", a.positionHandler)
	a.r.POST("/bikes/:label/theft", a.theftHandler)
	a.r.GET("/bikes/:label/alerts", a.alertsHandler)

	protected := a.r.Group("/")
	if cfg.Auth0Domain != "" {
		authmw, err := middleware.Auth(cfg.Auth0Domain, cfg.Audience)
		if err != nil {
			return nil, err
		}
		protected.Use(authmw...)
	}
	{
		protected.POST("/ride/start", a.startRideHandler)
		protected.POST("/ride/end", a.endRideHandler)
		protected.GET("/ride/current", a.currentRideHandler)
		protected.POST("/profile/sync", a.profileSyncHandler)

		protected.POST("/bikes/:label/reserve", a.reserveBikeHandler)
		protected.POST("/bikes/:label/release", a.releaseBikeHandler)

		protected.POST("/bikes/:label/maintenance", a.scheduleMaintenanceHandler)
		protected.POST("/bikes/:label/maintenance/complete", a.completeMaintenanceHandler)
		protected.DELETE("/bikes/:label/maintenance/last", a.removeMaintenanceRecordHandler)
		protected.GET("/bikes/:label/maintenance", a.maintenanceHistoryHandler)
	}

	return a, nil
}

func (a *API) Router() *gin.Engine {
	return a.r
}
