package model_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/launchpod/billing/internal/domain/model"
	"github.com/launchpod/billing/internal/domain/plan"
)

func TestStatusFromProvider(t *testing.T) {
	assert.Equal(t, model.SubscriptionStatusActive, model.StatusFromProvider("active"))
	assert.Equal(t, model.SubscriptionStatusTrialing, model.StatusFromProvider("trialing"))
	assert.Equal(t, model.SubscriptionStatusPaused, model.StatusFromProvider("paused"))

	// Unknown values must never grant access
	assert.Equal(t, model.SubscriptionStatusIncomplete, model.StatusFromProvider(""))
	assert.Equal(t, model.SubscriptionStatusIncomplete, model.StatusFromProvider("some_future_status"))
}

func TestSubscription_RevertToFree(t *testing.T) {
	catalog := plan.NewCatalog(nil)
	pro, _ := catalog.Get(plan.ProID)

	sub := model.NewFreeSubscription(uuid.New(), catalog.Free())
	sub.ApplyPlan(pro)
	subID := "sub_1"
	priceID := "price_1"
	interval := plan.IntervalMonthly
	sub.ProviderCustomerID = "cus_1"
	sub.ProviderSubscriptionID = &subID
	sub.ProviderPriceID = &priceID
	sub.BillingInterval = &interval
	sub.Status = model.SubscriptionStatusPastDue
	sub.TotalDeploymentsUsed = 17
	sub.DeploymentsThisMonth = 3

	canceledAt := time.Now()
	sub.RevertToFree(catalog.Free(), canceledAt)

	assert.Equal(t, plan.FreeID, sub.PlanID)
	assert.Equal(t, model.SubscriptionStatusActive, sub.Status)
	assert.Nil(t, sub.ProviderSubscriptionID)
	assert.Nil(t, sub.ProviderPriceID)
	assert.Nil(t, sub.BillingInterval)
	assert.Equal(t, 1, sub.MaxProjects)
	assert.Equal(t, 30, sub.MaxDeployments)

	// Customer reference and usage survive for future checkouts
	assert.Equal(t, "cus_1", sub.ProviderCustomerID)
	assert.Equal(t, 17, sub.TotalDeploymentsUsed)
	assert.Equal(t, 3, sub.DeploymentsThisMonth)

	if assert.NotNil(t, sub.CanceledAt) {
		assert.Equal(t, canceledAt, *sub.CanceledAt)
	}
	assert.True(t, sub.Amount.IsZero())
}
