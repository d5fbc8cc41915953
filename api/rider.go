package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v84"
	stripecustomer "github.com/stripe/stripe-go/v84/customer"

	"github.com/semanticallynull/fleetengine-backend/internal/middleware"
)

// profileSyncHandler pulls the rider's profile from Auth0 and ensures a
// Stripe customer exists so settled rides can be invoiced.
func (a *API) profileSyncHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	rdr, ok := a.currentRider(c)
	if !ok {
		return
	}

	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	info, err := a.auth0.GetUserInfo(c, token)
	if err != nil {
		logger.Error("Failed to fetch user info", "error", err)
		internalError(c, err)
		return
	}

	if err := a.rdr.UpdateProfile(c, rdr.Auth0ID, info.Email, info.Name); err != nil {
		logger.Error("Failed to update profile", "error", err)
		internalError(c, err)
		return
	}

	if !rdr.StripeID.Valid {
		sc, err := stripecustomer.New(&stripe.CustomerParams{
			Email: stripe.String(info.Email),
			Metadata: map[string]string{
				"auth0_id": rdr.Auth0ID,
				"id":       rdr.ID.String(),
			},
		})
		if err != nil {
			logger.Error("Failed to create stripe customer", "error", err)
			internalError(c, err)
			return
		}

		if err := a.rdr.AddStripeIDToRider(rdr.Auth0ID, sc.ID); err != nil {
			logger.Error("Failed to save stripe customer ID", "error", err)
			internalError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
