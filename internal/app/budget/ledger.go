// Package budget implements the EUR spend ledger that caps daily and
// monthly cost across every paid provider call.
package budget

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/loka-network/loka/internal/domain"
	"github.com/loka-network/loka/internal/infra/metrics"
	"github.com/loka-network/loka/internal/infra/sqlite"
)

// Ledger enforces daily and monthly EUR spend caps on top of an append-only
// cost record store. Writes are serialised by the underlying single-writer
// SQLite connection.
type Ledger struct {
	store  *sqlite.BudgetStore
	limits domain.BudgetLimits
	log    *logrus.Logger
}

// New wires a budget ledger against its own database file.
func New(store *sqlite.BudgetStore, limits domain.BudgetLimits, log *logrus.Logger) *Ledger {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Ledger{store: store, limits: limits, log: log}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func startOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

// CheckAndRecord reads today's and this month's totals, and if appending
// record.CostEUR would cross either cap, returns ErrBudgetExceeded without
// writing. Otherwise it appends the record and logs a warning once usage
// crosses the configured warn threshold.
func (l *Ledger) CheckAndRecord(record domain.BudgetCostRecord) error {
	now := record.Timestamp
	if now.IsZero() {
		now = time.Now()
		record.Timestamp = now
	}

	todayTotal, _, err := l.store.SumSince(startOfDay(now))
	if err != nil {
		return fmt.Errorf("budget: read daily total: %w", err)
	}
	monthTotal, _, err := l.store.SumSince(startOfMonth(now))
	if err != nil {
		return fmt.Errorf("budget: read monthly total: %w", err)
	}

	if l.limits.DailyCapEUR > 0 && todayTotal+record.CostEUR > l.limits.DailyCapEUR {
		return domain.ErrBudgetExceeded
	}
	if l.limits.MonthlyCapEUR > 0 && monthTotal+record.CostEUR > l.limits.MonthlyCapEUR {
		return domain.ErrBudgetExceeded
	}

	if err := l.store.Insert(record); err != nil {
		return fmt.Errorf("budget: insert record: %w", err)
	}
	metrics.BudgetSpendTodayEUR.Set(todayTotal + record.CostEUR)

	if l.limits.DailyCapEUR > 0 && l.limits.WarnAtPercent > 0 {
		usedPercent := (todayTotal + record.CostEUR) / l.limits.DailyCapEUR * 100
		if usedPercent >= l.limits.WarnAtPercent {
			l.log.WithFields(logrus.Fields{
				"used_percent": usedPercent,
				"daily_cap":    l.limits.DailyCapEUR,
			}).Warn("budget: daily usage crossed warn threshold")
		}
	}

	return nil
}

// Record appends unconditionally, used for zero-cost local-tier executions
// where the cap check would be a no-op but the query count still matters.
func (l *Ledger) Record(record domain.BudgetCostRecord) error {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	if err := l.store.Insert(record); err != nil {
		return fmt.Errorf("budget: insert record: %w", err)
	}
	return nil
}

// Summary reports today/month/lifetime totals and the query count.
func (l *Ledger) Summary() (domain.BudgetSummary, error) {
	now := time.Now()

	today, _, err := l.store.SumSince(startOfDay(now))
	if err != nil {
		return domain.BudgetSummary{}, err
	}
	month, _, err := l.store.SumSince(startOfMonth(now))
	if err != nil {
		return domain.BudgetSummary{}, err
	}
	lifetime, err := l.store.SumAll()
	if err != nil {
		return domain.BudgetSummary{}, err
	}
	count, err := l.store.CountAll()
	if err != nil {
		return domain.BudgetSummary{}, err
	}

	return domain.BudgetSummary{
		TodayEUR:    today,
		MonthEUR:    month,
		LifetimeEUR: lifetime,
		QueryCount:  count,
	}, nil
}

// LocalPercent reports the fraction of recorded queries that ran at zero
// cost on the local tier.
func (l *Ledger) LocalPercent() (float64, error) {
	localCount, err := l.store.CountByTier(domain.TierLocal)
	if err != nil {
		return 0, err
	}
	total, err := l.store.CountAll()
	if err != nil {
		return 0, err
	}
	return domain.LocalPercent(localCount, total), nil
}

// Limits exposes the configured caps, used by /v1/cost to report
// budget-used-percent.
func (l *Ledger) Limits() domain.BudgetLimits {
	return l.limits
}
