package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/invoice"
	"go.opentelemetry.io/otel"

	"github.com/semanticallynull/fleetengine-backend/bike"
	"github.com/semanticallynull/fleetengine-backend/internal/middleware"
	riderepo "github.com/semanticallynull/fleetengine-backend/ride"
	"github.com/semanticallynull/fleetengine-backend/rider"
)

type startRideRequest struct {
	BikeID string `json:"bikeId"`
}

func (a *API) startRideHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	var req startRideRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind request", "error", err)
		errJSON(c, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
		return
	}

	rdr, ok := a.currentRider(c)
	if !ok {
		return
	}

	b, err := a.br.GetBike(c, req.BikeID)
	if err != nil {
		if errors.Is(err, bike.ErrNotFound) {
			errJSON(c, http.StatusNotFound, "BIKE_NOT_FOUND", "Bike not found")
			return
		}
		logger.Error("Failed to get bike", "error", err)
		internalError(c, err)
		return
	}

	r, err := a.rr.StartRide(c, b.ID, rdr.ID)
	if err != nil {
		riderID, ok := riderepo.RiderFromRideInProgressError(err)
		if ok && riderID == rdr.ID {
			logger.Info("Rider already has an active ride", "error", err)
			c.JSON(http.StatusOK, gin.H{"ok": "Rider already has an active ride"})
			return
		}
		if ok || errors.Is(err, riderepo.ErrBikeUnavailable) {
			errJSON(c, http.StatusConflict, "BIKE_UNAVAILABLE", "Bike is not available")
			return
		}
		logger.Error("Failed to start ride", "error", err)
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, toRideResponse(r))
}

type endRideRequest struct {
	RideID string `json:"rideId"`
}

func (a *API) endRideHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	var req endRideRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind request", "error", err)
		errJSON(c, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
		return
	}

	rideID, err := uuid.Parse(req.RideID)
	if err != nil {
		errJSON(c, http.StatusBadRequest, "INVALID_ARGUMENT", "rideId must be a UUID")
		return
	}

	rdr, ok := a.currentRider(c)
	if !ok {
		return
	}

	r, err := a.rr.EndRide(c, rideID, rdr.ID, a.tariff)
	if err != nil {
		switch {
		case errors.Is(err, riderepo.ErrNotFound):
			errJSON(c, http.StatusNotFound, "RIDE_NOT_FOUND", "Ride not found")
		case errors.Is(err, riderepo.ErrRideEnded):
			errJSON(c, http.StatusUnprocessableEntity, "RIDE_ALREADY_ENDED", "Ride has already been settled")
		default:
			logger.Error("Failed to end ride", "error", err)
			internalError(c, err)
		}
		return
	}

	if rdr.StripeID.Valid {
		go a.invoiceRide(r, rdr)
	}

	c.JSON(http.StatusOK, toRideResponse(r))
}

// invoiceRide bills a settled ride. Payment outcome is recorded on the ride
// but never computed by the settlement engine itself.
func (a *API) invoiceRide(r riderepo.Ride, rdr *rider.Rider) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, span := otel.GetTracerProvider().Tracer("api").Start(ctx, "invoiceRide")
	defer span.End()

	logger := a.log.With("ride", r.ID.String())

	inParams := &stripe.InvoiceParams{
		Customer: stripe.String(rdr.StripeID.String),
	}
	in, err := invoice.New(inParams)
	if err != nil {
		logger.Error("Failed to create invoice", "error", err)
		a.recordPayment(ctx, r.ID, riderepo.PaymentFailed)
		return
	}

	ilParams := &stripe.InvoiceAddLinesParams{
		Lines: []*stripe.InvoiceAddLinesLineParams{
			{
				Amount:      stripe.Int64(toCents(a.tariff.BaseFare)),
				Description: stripe.String("Ride Unlock"),
			},
			{
				Amount:      stripe.Int64(toCents(r.Cost - a.tariff.BaseFare)),
				Description: stripe.String(fmt.Sprintf("Ride - %.2f km", r.DistanceKm)),
			},
		},
	}
	_, err = invoice.AddLines(in.ID, ilParams)
	if err != nil {
		logger.Error("Failed to add lines to invoice", "error", err)
		a.recordPayment(ctx, r.ID, riderepo.PaymentFailed)
		return
	}

	params := &stripe.InvoiceFinalizeInvoiceParams{}
	_, err = invoice.FinalizeInvoice(in.ID, params)
	if err != nil {
		logger.Error("Failed to finalize invoice", "error", err)
		a.recordPayment(ctx, r.ID, riderepo.PaymentFailed)
		return
	}
	_, err = invoice.Pay(in.ID, nil)
	if err != nil {
		logger.Error("Failed to pay invoice", "error", err)
		a.recordPayment(ctx, r.ID, riderepo.PaymentFailed)
		return
	}

	a.recordPayment(ctx, r.ID, riderepo.PaymentPaid)
}

func (a *API) recordPayment(ctx context.Context, rideID uuid.UUID, status riderepo.PaymentStatus) {
	if err := a.rr.SetPaymentStatus(ctx, rideID, status); err != nil {
		a.log.Error("Failed to record payment status", "ride", rideID.String(), "error", err)
	}
}

func toCents(amount float64) int64 {
	return int64(amount*100 + 0.5)
}

type rideStateResponse struct {
	InProgress bool      `json:"inProgress"`
	RideID     uuid.UUID `json:"rideId,omitempty"`
	BikeID     string    `json:"bikeId,omitempty"`
	StartedAt  time.Time `json:"startedAt,omitzero"`
}

func (a *API) currentRideHandler(c *gin.Context) {
	_, span := otel.GetTracerProvider().Tracer("api").Start(c.Request.Context(), "currentRideHandler")
	defer span.End()

	logger := middleware.GetLogger(c)

	rdr, ok := a.currentRider(c)
	if !ok {
		return
	}

	current, err := a.rdr.CurrentRide(rdr.ID)
	if err != nil {
		if errors.Is(err, rider.ErrNoRideInProgress) {
			c.JSON(http.StatusOK, rideStateResponse{
				InProgress: false,
			})
			return
		}
		logger.Error("Failed to get current ride", "error", err)
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, rideStateResponse{
		InProgress: true,
		RideID:     current.RideID,
		BikeID:     current.BikeLabel,
		StartedAt:  current.StartedAt,
	})
}

// currentRider resolves the authenticated rider, creating the record on
// first contact. Writes the error response itself on failure.
func (a *API) currentRider(c *gin.Context) (*rider.Rider, bool) {
	logger := middleware.GetLogger(c)

	auth0ID, ok := middleware.GetAuth0ID(c)
	if !ok {
		errJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return nil, false
	}

	rdr, err := a.rdr.GetRiderByAuth0ID(auth0ID)
	if err != nil {
		if errors.Is(err, rider.ErrNotFound) {
			rdr, err = a.rdr.CreateRider(auth0ID)
			if err != nil {
				logger.Error("Failed to save rider", "error", err)
				internalError(c, err)
				return nil, false
			}
			return rdr, true
		}
		logger.Error("Failed to get rider", "error", err)
		internalError(c, err)
		return nil, false
	}

	return rdr, true
}
