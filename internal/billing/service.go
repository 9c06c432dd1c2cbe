// Package billing integrates Stripe subscriptions and enforces plan limits.
// Tenants without a subscription row are on the free plan.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/driveworks/drivehub/internal/config"
	"github.com/driveworks/drivehub/internal/repository"
	"github.com/driveworks/drivehub/pkg/models"
)

// ErrExecutionLimit is returned when a tenant has reached the concurrent
// workflow execution limit of its plan.
var ErrExecutionLimit = errors.New("active workflow execution limit reached for plan")

// activeExecutionLimits caps concurrently running or paused workflow
// executions per plan. Business is uncapped.
var activeExecutionLimits = map[models.Plan]int{
	models.PlanFree: 2,
	models.PlanPro:  20,
}

// Store is the persistence surface the billing service needs.
type Store interface {
	repository.BillingStore
	CountActiveExecutions(ctx context.Context, tenantID string) (int, error)
}

// Logger is the logging interface the service depends on.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Service wraps the Stripe API and the subscription store.
type Service struct {
	store  Store
	cfg    config.StripeConfig
	logger Logger
}

// New configures the Stripe client key and returns the service.
func New(store Store, cfg config.StripeConfig, logger Logger) *Service {
	stripe.Key = cfg.SecretKey
	return &Service{store: store, cfg: cfg, logger: logger}
}

// PlanFor resolves a tenant's effective plan. Only active and trialing
// subscriptions grant a paid plan.
func (s *Service) PlanFor(ctx context.Context, tenantID string) (models.Plan, error) {
	sub, err := s.store.GetSubscription(ctx, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.PlanFree, nil
		}
		return "", err
	}
	switch sub.Status {
	case models.SubscriptionStatusActive, models.SubscriptionStatusTrialing:
		return sub.Plan, nil
	}
	return models.PlanFree, nil
}

// Subscription returns the tenant's subscription row, synthesizing a free
// one when none exists.
func (s *Service) Subscription(ctx context.Context, tenantID string) (*models.Subscription, error) {
	sub, err := s.store.GetSubscription(ctx, tenantID)
	if errors.Is(err, repository.ErrNotFound) {
		return &models.Subscription{
			TenantID: tenantID,
			Plan:     models.PlanFree,
			Status:   models.SubscriptionStatusActive,
		}, nil
	}
	return sub, err
}

// AllowExecutionStart enforces the per-plan cap on active executions.
func (s *Service) AllowExecutionStart(ctx context.Context, tenantID string) error {
	plan, err := s.PlanFor(ctx, tenantID)
	if err != nil {
		return err
	}
	limit, capped := activeExecutionLimits[plan]
	if !capped {
		return nil
	}
	active, err := s.store.CountActiveExecutions(ctx, tenantID)
	if err != nil {
		return err
	}
	if active >= limit {
		return fmt.Errorf("%w: %d of %d in use", ErrExecutionLimit, active, limit)
	}
	return nil
}

// CreateCheckoutSession opens a Stripe Checkout session for upgrading the
// tenant to the requested plan and returns the hosted payment URL.
func (s *Service) CreateCheckoutSession(ctx context.Context, tenantID string, plan models.Plan) (string, error) {
	priceID, err := s.priceFor(plan)
	if err != nil {
		return "", err
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL:        stripe.String(s.cfg.SuccessURL),
		CancelURL:         stripe.String(s.cfg.CancelURL),
		ClientReferenceID: stripe.String(tenantID),
	}
	params.Context = ctx

	sess, err := session.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}
	return sess.URL, nil
}

func (s *Service) priceFor(plan models.Plan) (string, error) {
	switch plan {
	case models.PlanPro:
		return s.cfg.ProPriceID, nil
	case models.PlanBusiness:
		return s.cfg.BusinessPriceID, nil
	}
	return "", fmt.Errorf("plan %q cannot be purchased", plan)
}

func (s *Service) planForPrice(priceID string) models.Plan {
	switch priceID {
	case s.cfg.ProPriceID:
		return models.PlanPro
	case s.cfg.BusinessPriceID:
		return models.PlanBusiness
	}
	return models.PlanFree
}

// HandleWebhook verifies and applies a Stripe webhook event.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEvent(payload, signature, s.cfg.WebhookSecret)
	if err != nil {
		return fmt.Errorf("webhook signature verification failed: %w", err)
	}

	switch string(event.Type) {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("failed to decode checkout session: %w", err)
		}
		return s.applyCheckout(ctx, &sess)

	case "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("failed to decode subscription: %w", err)
		}
		return s.applySubscription(ctx, &sub)
	}

	s.logger.Info("ignoring stripe event", "type", string(event.Type))
	return nil
}

// applyCheckout records the customer and subscription ids against the
// tenant carried in the session's client reference.
func (s *Service) applyCheckout(ctx context.Context, sess *stripe.CheckoutSession) error {
	if sess.ClientReferenceID == "" || sess.Customer == nil || sess.Subscription == nil {
		s.logger.Warn("checkout session missing references", "session_id", sess.ID)
		return nil
	}

	sub := &models.Subscription{
		TenantID:             sess.ClientReferenceID,
		Plan:                 models.PlanPro,
		Status:               models.SubscriptionStatusActive,
		StripeCustomerID:     &sess.Customer.ID,
		StripeSubscriptionID: &sess.Subscription.ID,
	}
	if err := s.store.UpsertSubscription(ctx, sub); err != nil {
		return err
	}
	s.logger.Info("checkout completed", "tenant_id", sess.ClientReferenceID)
	return nil
}

// applySubscription mirrors the provider's subscription state. The plan is
// derived from the price on the first item.
func (s *Service) applySubscription(ctx context.Context, remote *stripe.Subscription) error {
	if remote.Customer == nil {
		return nil
	}
	local, err := s.store.GetSubscriptionByCustomer(ctx, remote.Customer.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("subscription event for unknown customer", "customer_id", remote.Customer.ID)
			return nil
		}
		return err
	}

	local.Status = mapStatus(remote.Status)
	if len(remote.Items.Data) > 0 && remote.Items.Data[0].Price != nil {
		local.Plan = s.planForPrice(remote.Items.Data[0].Price.ID)
	}
	if local.Status == models.SubscriptionStatusCanceled {
		local.Plan = models.PlanFree
	}
	if remote.CurrentPeriodEnd > 0 {
		end := time.Unix(remote.CurrentPeriodEnd, 0).UTC()
		local.CurrentPeriodEnd = &end
	}
	local.StripeSubscriptionID = &remote.ID

	if err := s.store.UpsertSubscription(ctx, local); err != nil {
		return err
	}
	s.logger.Info("subscription updated",
		"tenant_id", local.TenantID, "plan", local.Plan, "status", local.Status)
	return nil
}

func mapStatus(status stripe.SubscriptionStatus) models.SubscriptionStatus {
	switch status {
	case stripe.SubscriptionStatusActive:
		return models.SubscriptionStatusActive
	case stripe.SubscriptionStatusTrialing:
		return models.SubscriptionStatusTrialing
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return models.SubscriptionStatusPastDue
	default:
		return models.SubscriptionStatusCanceled
	}
}
