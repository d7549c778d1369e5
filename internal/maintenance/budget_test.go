package maintenance

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"nyumbacal/internal/model"
)

func money(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestAssess(t *testing.T) {
	over := Assess(model.MaintenanceRequest{ID: "m1", EstimatedCost: money("2000"), ActualCost: money("2500")})
	assert.Equal(t, BudgetOver, over.Status)
	assert.True(t, over.Variance.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, "25", over.VariancePercent.String())

	under := Assess(model.MaintenanceRequest{EstimatedCost: money("3000"), ActualCost: money("1000")})
	assert.Equal(t, BudgetUnder, under.Status)
	assert.Equal(t, "-66.67", under.VariancePercent.String())

	even := Assess(model.MaintenanceRequest{EstimatedCost: money("1200.50"), ActualCost: money("1200.5")})
	assert.Equal(t, BudgetOnBudget, even.Status)
	assert.True(t, even.Variance.IsZero())

	pending := Assess(model.MaintenanceRequest{EstimatedCost: money("800")})
	assert.Equal(t, BudgetPending, pending.Status)
	assert.True(t, pending.Actual.IsZero())

	unestimated := Assess(model.MaintenanceRequest{ActualCost: money("450")})
	assert.Equal(t, BudgetUnestimate, unestimated.Status)
	assert.True(t, unestimated.VariancePercent.IsZero())
	assert.True(t, unestimated.Variance.Equal(decimal.NewFromInt(450)))
}

func TestSummarize(t *testing.T) {
	s := Summarize([]model.MaintenanceRequest{
		{ID: "a", EstimatedCost: money("2000"), ActualCost: money("2500")},
		{ID: "b", EstimatedCost: money("3000"), ActualCost: money("1000")},
		{ID: "c", EstimatedCost: money("800")},
		{ID: "d"},
	})

	assert.Equal(t, 4, s.Requests)
	assert.Equal(t, 2, s.Pending)
	assert.Equal(t, 1, s.OverCount)
	assert.True(t, s.Estimated.Equal(decimal.NewFromInt(5000)))
	assert.True(t, s.Actual.Equal(decimal.NewFromInt(3500)))
	assert.True(t, s.Variance.Equal(decimal.NewFromInt(-1500)))
	assert.True(t, s.Outstanding.Equal(decimal.NewFromInt(800)))
	assert.Len(t, s.Items, 4)
}
