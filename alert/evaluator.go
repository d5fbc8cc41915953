package alert

import (
	"context"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/semanticallynull/fleetengine-backend/geo"
)

var alertsRaised = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fleet_alerts_raised_total",
		Help: "Alerts persisted, by category",
	},
	[]string{"category"},
)

// Recorder is the slice of the alert store the evaluator needs.
type Recorder interface {
	Create(ctx context.Context, bikeID uuid.UUID, riderID *uuid.UUID, category Category, lat, lng float64) (Alert, error)
}

// Evaluator checks position updates against the configured geofence and
// records alerts. It decides containment only; theft heuristics live in an
// upstream detector and arrive here as an opaque signal.
type Evaluator struct {
	fence    geo.Fence
	cooldown CooldownStore
	store    Recorder
}

func NewEvaluator(fence geo.Fence, cooldown CooldownStore, store Recorder, reg *prometheus.Registry) *Evaluator {
	if reg != nil {
		reg.MustRegister(alertsRaised)
	}
	return &Evaluator{
		fence:    fence,
		cooldown: cooldown,
		store:    store,
	}
}

// EvaluateGeofence returns a geofence-exit alert if pos is outside the fence
// and the cooldown window for this bike is open. A nil alert with nil error
// means either containment or a suppressed repeat.
func (e *Evaluator) EvaluateGeofence(ctx context.Context, bikeID uuid.UUID, riderID *uuid.UUID, pos geo.Point) (*Alert, error) {
	inside, err := e.fence.Contains(pos)
	if err != nil {
		return nil, err
	}
	if inside {
		return nil, nil
	}

	return e.raise(ctx, bikeID, riderID, CategoryGeofenceExit, pos)
}

// RecordTheft persists a theft-suspected alert from the upstream detector.
func (e *Evaluator) RecordTheft(ctx context.Context, bikeID uuid.UUID, riderID *uuid.UUID, pos geo.Point) (*Alert, error) {
	if err := pos.Validate(); err != nil {
		return nil, err
	}

	return e.raise(ctx, bikeID, riderID, CategoryTheftSuspected, pos)
}

func (e *Evaluator) raise(ctx context.Context, bikeID uuid.UUID, riderID *uuid.UUID, category Category, pos geo.Point) (*Alert, error) {
	ok, err := e.cooldown.Allow(ctx, bikeID, category)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	a, err := e.store.Create(ctx, bikeID, riderID, category, pos.Lat, pos.Lng)
	if err != nil {
		return nil, err
	}
	alertsRaised.WithLabelValues(string(category)).Inc()
	return &a, nil
}
