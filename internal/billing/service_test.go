package billing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveworks/drivehub/internal/config"
	"github.com/driveworks/drivehub/internal/repository"
	"github.com/driveworks/drivehub/pkg/models"
)

type fakeStore struct {
	sub    *models.Subscription
	active int
}

func (f *fakeStore) GetSubscription(ctx context.Context, tenantID string) (*models.Subscription, error) {
	if f.sub == nil {
		return nil, repository.ErrNotFound
	}
	return f.sub, nil
}

func (f *fakeStore) GetSubscriptionByCustomer(ctx context.Context, id string) (*models.Subscription, error) {
	if f.sub == nil || f.sub.StripeCustomerID == nil || *f.sub.StripeCustomerID != id {
		return nil, repository.ErrNotFound
	}
	return f.sub, nil
}

func (f *fakeStore) UpsertSubscription(ctx context.Context, sub *models.Subscription) error {
	f.sub = sub
	return nil
}

func (f *fakeStore) CountActiveExecutions(ctx context.Context, tenantID string) (int, error) {
	return f.active, nil
}

type nopLogger struct{}

func (nopLogger) Info(msg string, args ...any)  {}
func (nopLogger) Warn(msg string, args ...any)  {}
func (nopLogger) Error(msg string, args ...any) {}

func newTestService(store Store) *Service {
	return New(store, config.StripeConfig{}, nopLogger{})
}

func TestPlanForDefaultsToFree(t *testing.T) {
	svc := newTestService(&fakeStore{})

	plan, err := svc.PlanFor(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, models.PlanFree, plan)
}

func TestPlanForIgnoresLapsedSubscriptions(t *testing.T) {
	svc := newTestService(&fakeStore{sub: &models.Subscription{
		TenantID: "t1",
		Plan:     models.PlanPro,
		Status:   models.SubscriptionStatusPastDue,
	}})

	plan, err := svc.PlanFor(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, models.PlanFree, plan)
}

func TestAllowExecutionStartEnforcesPlanCaps(t *testing.T) {
	tests := []struct {
		name    string
		sub     *models.Subscription
		active  int
		allowed bool
	}{
		{name: "free under cap", active: 1, allowed: true},
		{name: "free at cap", active: 2, allowed: false},
		{
			name:    "pro under cap",
			sub:     &models.Subscription{Plan: models.PlanPro, Status: models.SubscriptionStatusActive},
			active:  19,
			allowed: true,
		},
		{
			name:    "pro at cap",
			sub:     &models.Subscription{Plan: models.PlanPro, Status: models.SubscriptionStatusActive},
			active:  20,
			allowed: false,
		},
		{
			name:    "business is uncapped",
			sub:     &models.Subscription{Plan: models.PlanBusiness, Status: models.SubscriptionStatusActive},
			active:  500,
			allowed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(&fakeStore{sub: tt.sub, active: tt.active})

			err := svc.AllowExecutionStart(context.Background(), "t1")
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrExecutionLimit)
			}
		})
	}
}

func TestSubscriptionSynthesizesFreeRow(t *testing.T) {
	svc := newTestService(&fakeStore{})

	sub, err := svc.Subscription(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, models.PlanFree, sub.Plan)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
}
