// Package maintenance computes cost estimate variance for maintenance jobs.
package maintenance

import (
	"github.com/shopspring/decimal"

	"nyumbacal/internal/model"
)

// BudgetStatus summarizes how a job's actual cost compares to its estimate.
type BudgetStatus string

const (
	BudgetPending    BudgetStatus = "pending"
	BudgetUnder      BudgetStatus = "under_budget"
	BudgetOnBudget   BudgetStatus = "on_budget"
	BudgetOver       BudgetStatus = "over_budget"
	BudgetUnestimate BudgetStatus = "unestimated"
)

var hundred = decimal.NewFromInt(100)

// Estimate is the budget position of one maintenance request.
type Estimate struct {
	RequestID string `json:"request_id"`
	Issue     string `json:"issue"`
	Property  string `json:"property"`

	Estimated decimal.Decimal `json:"estimated"`
	Actual    decimal.Decimal `json:"actual"`
	// Variance is Actual - Estimated; positive means over budget.
	Variance decimal.Decimal `json:"variance"`
	// VariancePercent is Variance relative to Estimated, rounded to 2 places;
	// zero when there is no estimate.
	VariancePercent decimal.Decimal `json:"variance_percent"`
	Status          BudgetStatus    `json:"status"`
}

// Assess computes the budget position of r. A request without an actual
// cost is pending; one with an actual cost but no estimate is unestimated.
func Assess(r model.MaintenanceRequest) Estimate {
	e := Estimate{
		RequestID: r.ID,
		Issue:     r.Issue,
		Property:  r.Property,
	}
	if r.EstimatedCost.Valid {
		e.Estimated = r.EstimatedCost.Decimal
	}
	if !r.ActualCost.Valid {
		e.Status = BudgetPending
		return e
	}
	e.Actual = r.ActualCost.Decimal
	e.Variance = e.Actual.Sub(e.Estimated)

	if !r.EstimatedCost.Valid || e.Estimated.IsZero() {
		e.Status = BudgetUnestimate
		return e
	}
	e.VariancePercent = e.Variance.Div(e.Estimated).Mul(hundred).Round(2)

	switch e.Variance.Sign() {
	case 1:
		e.Status = BudgetOver
	case -1:
		e.Status = BudgetUnder
	default:
		e.Status = BudgetOnBudget
	}
	return e
}

// Summary aggregates estimates over many requests. Totals only count
// requests that have an actual cost, so pending jobs don't skew variance.
type Summary struct {
	Requests  int             `json:"requests"`
	Pending   int             `json:"pending"`
	OverCount int             `json:"over_budget"`
	Estimated decimal.Decimal `json:"estimated_total"`
	Actual    decimal.Decimal `json:"actual_total"`
	Variance  decimal.Decimal `json:"variance_total"`
	// Outstanding is the estimate of jobs that are still pending.
	Outstanding decimal.Decimal `json:"outstanding"`
	Items       []Estimate      `json:"items"`
}

// Summarize assesses every request and totals the results.
func Summarize(reqs []model.MaintenanceRequest) Summary {
	s := Summary{Items: make([]Estimate, 0, len(reqs))}
	for _, r := range reqs {
		e := Assess(r)
		s.Items = append(s.Items, e)
		s.Requests++

		if e.Status == BudgetPending {
			s.Pending++
			s.Outstanding = s.Outstanding.Add(e.Estimated)
			continue
		}
		if e.Status == BudgetOver {
			s.OverCount++
		}
		s.Estimated = s.Estimated.Add(e.Estimated)
		s.Actual = s.Actual.Add(e.Actual)
		s.Variance = s.Variance.Add(e.Variance)
	}
	return s
}
