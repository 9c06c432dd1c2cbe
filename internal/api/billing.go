package api

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/driveworks/drivehub/pkg/models"
)

// GetSubscription returns the tenant's subscription (free when none).
// (GET /api/v1/billing/subscription)
func (s *Server) GetSubscription(c echo.Context) error {
	tenantID, _, err := identity(c)
	if err != nil {
		return err
	}
	sub, err := s.Billing.Subscription(c.Request().Context(), tenantID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sub)
}

type checkoutRequest struct {
	Plan models.Plan `json:"plan"`
}

// CreateCheckout opens a hosted checkout session for a plan upgrade.
// (POST /api/v1/billing/checkout)
func (s *Server) CreateCheckout(c echo.Context) error {
	tenantID, userID, err := identity(c)
	if err != nil {
		return err
	}

	var req checkoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}

	url, err := s.Billing.CreateCheckoutSession(c.Request().Context(), tenantID, req.Plan)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s.audit(c, tenantID, userID, "billing.checkout", "subscription", tenantID)
	return c.JSON(http.StatusOK, map[string]string{"url": url})
}

// HandleStripeWebhook verifies and applies provider events. Authentication
// is the webhook signature, not a user credential.
// (POST /stripe/webhook)
func (s *Server) HandleStripeWebhook(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read payload")
	}
	signature := c.Request().Header.Get("Stripe-Signature")

	if err := s.Billing.HandleWebhook(c.Request().Context(), payload, signature); err != nil {
		s.Logger.Warn("stripe webhook rejected", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "webhook rejected")
	}
	return c.NoContent(http.StatusOK)
}
