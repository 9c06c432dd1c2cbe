package repository

import (
	"context"

	"github.com/driveworks/drivehub/pkg/models"
)

const subscriptionColumns = `id, tenant_id, plan, status, stripe_customer_id, stripe_subscription_id,
	current_period_end, created_at, updated_at`

func (s *Postgres) GetSubscription(ctx context.Context, tenantID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE tenant_id = $1`,
		tenantID,
	).Scan(&sub.ID, &sub.TenantID, &sub.Plan, &sub.Status, &sub.StripeCustomerID,
		&sub.StripeSubscriptionID, &sub.CurrentPeriodEnd, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &sub, nil
}

func (s *Postgres) GetSubscriptionByCustomer(ctx context.Context, stripeCustomerID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE stripe_customer_id = $1`,
		stripeCustomerID,
	).Scan(&sub.ID, &sub.TenantID, &sub.Plan, &sub.Status, &sub.StripeCustomerID,
		&sub.StripeSubscriptionID, &sub.CurrentPeriodEnd, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &sub, nil
}

func (s *Postgres) UpsertSubscription(ctx context.Context, sub *models.Subscription) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO subscriptions (tenant_id, plan, status, stripe_customer_id, stripe_subscription_id, current_period_end)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (tenant_id) DO UPDATE SET
			plan = EXCLUDED.plan,
			status = EXCLUDED.status,
			stripe_customer_id = COALESCE(EXCLUDED.stripe_customer_id, subscriptions.stripe_customer_id),
			stripe_subscription_id = COALESCE(EXCLUDED.stripe_subscription_id, subscriptions.stripe_subscription_id),
			current_period_end = EXCLUDED.current_period_end,
			updated_at = now()
		 RETURNING id, created_at, updated_at`,
		sub.TenantID, sub.Plan, sub.Status, sub.StripeCustomerID,
		sub.StripeSubscriptionID, sub.CurrentPeriodEnd,
	).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
	return mapErr(err)
}
