package plan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchpod/billing/internal/domain/plan"
)

func testCatalog() *plan.Catalog {
	return plan.NewCatalog(map[string]plan.PriceRef{
		plan.StarterID: {MonthlyPriceID: "price_starter_m", YearlyPriceID: "price_starter_y"},
		plan.ProID:     {MonthlyPriceID: "price_pro_m", YearlyPriceID: "price_pro_y"},
	})
}

func TestCatalog_Get(t *testing.T) {
	c := testCatalog()

	free, ok := c.Get(plan.FreeID)
	require.True(t, ok)
	assert.True(t, free.IsFree())
	assert.Equal(t, 1, free.MaxProjects)
	assert.Equal(t, 30, free.MaxDeployments)
	assert.Equal(t, 10, free.MaxDeploymentsPerMonth)
	assert.False(t, free.CustomDomain)

	pro, ok := c.Get(plan.ProID)
	require.True(t, ok)
	assert.Equal(t, plan.Unlimited, pro.MaxProjects)
	assert.Equal(t, plan.Unlimited, pro.MaxDeployments)
	assert.Equal(t, plan.Unlimited, pro.MaxDeploymentsPerMonth)
	assert.True(t, pro.PrioritySupport)

	_, ok = c.Get("enterprise")
	assert.False(t, ok)
}

func TestCatalog_All(t *testing.T) {
	c := testCatalog()

	all := c.All()
	require.Len(t, all, 3)
	assert.Equal(t, plan.FreeID, all[0].ID)
	assert.Equal(t, plan.StarterID, all[1].ID)
	assert.Equal(t, plan.ProID, all[2].ID)
}

func TestCatalog_LowestPaid(t *testing.T) {
	c := testCatalog()

	p := c.LowestPaid()
	assert.Equal(t, plan.StarterID, p.ID)
	assert.False(t, p.IsFree())
}

func TestCatalog_ByPriceID(t *testing.T) {
	c := testCatalog()

	t.Run("resolves plan and interval", func(t *testing.T) {
		p, interval, ok := c.ByPriceID("price_pro_y")
		require.True(t, ok)
		assert.Equal(t, plan.ProID, p.ID)
		assert.Equal(t, plan.IntervalYearly, interval)

		p, interval, ok = c.ByPriceID("price_starter_m")
		require.True(t, ok)
		assert.Equal(t, plan.StarterID, p.ID)
		assert.Equal(t, plan.IntervalMonthly, interval)
	})

	t.Run("unknown or empty price", func(t *testing.T) {
		_, _, ok := c.ByPriceID("price_unknown")
		assert.False(t, ok)

		_, _, ok = c.ByPriceID("")
		assert.False(t, ok)
	})
}

func TestConfig_PriceIDFor(t *testing.T) {
	c := testCatalog()
	starter, _ := c.Get(plan.StarterID)

	assert.Equal(t, "price_starter_m", starter.PriceIDFor(plan.IntervalMonthly))
	assert.Equal(t, "price_starter_y", starter.PriceIDFor(plan.IntervalYearly))
	// Unknown interval falls back to monthly
	assert.Equal(t, "price_starter_m", starter.PriceIDFor("weekly"))

	free, _ := c.Get(plan.FreeID)
	assert.Empty(t, free.PriceIDFor(plan.IntervalMonthly))
}
