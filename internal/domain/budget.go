package domain

import "time"

// BudgetCostRecord is one immutable row in the budget ledger. Query content
// is never stored here — only the metadata needed to enforce spend caps.
type BudgetCostRecord struct {
	ID           int64
	Timestamp    time.Time
	Model        string
	InputTokens  int
	OutputTokens int
	CostEUR      float64
	Tier         RoutingTier
}

// BudgetLimits is process-wide configuration for the budget ledger.
type BudgetLimits struct {
	DailyCapEUR   float64
	MonthlyCapEUR float64
	WarnAtPercent float64
}

// BudgetSummary is returned by the ledger's summary query and by GET /v1/cost.
type BudgetSummary struct {
	TodayEUR    float64
	MonthEUR    float64
	LifetimeEUR float64
	QueryCount  int64
}

// UsedPercent returns how much of the daily cap has been consumed, 0..100+.
func (s BudgetSummary) UsedPercent(limits BudgetLimits) float64 {
	if limits.DailyCapEUR <= 0 {
		return 0
	}
	return s.TodayEUR / limits.DailyCapEUR * 100
}

// LocalPercent returns the fraction of queries that ran at zero cost.
func LocalPercent(localCount, totalCount int64) float64 {
	if totalCount == 0 {
		return 0
	}
	return float64(localCount) / float64(totalCount) * 100
}
