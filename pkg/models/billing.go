package models

import "time"

// Plan is the billing plan of a tenant
type Plan string

const (
	PlanFree     Plan = "free"
	PlanPro      Plan = "pro"
	PlanBusiness Plan = "business"
)

// SubscriptionStatus mirrors the payment provider's subscription state
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
)

// Subscription is the tenant's billing record. Tenants without a row are on
// the free plan.
type Subscription struct {
	ID                   string             `json:"id" db:"id"`
	TenantID             string             `json:"-" db:"tenant_id"`
	Plan                 Plan               `json:"plan" db:"plan"`
	Status               SubscriptionStatus `json:"status" db:"status"`
	StripeCustomerID     *string            `json:"-" db:"stripe_customer_id"`
	StripeSubscriptionID *string            `json:"-" db:"stripe_subscription_id"`
	CurrentPeriodEnd     *time.Time         `json:"current_period_end,omitempty" db:"current_period_end"`
	CreatedAt            time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at" db:"updated_at"`
}
