package usage

import (
	"time"

	"github.com/google/uuid"
)

// CounterKind names a metered action.
type CounterKind string

const (
	KindAnalysis CounterKind = "analysis"
	KindRoasts   CounterKind = "roasts"
)

// Valid reports whether the kind is one of the metered actions.
func (k CounterKind) Valid() bool {
	return k == KindAnalysis || k == KindRoasts
}

const (
	// Unlimited marks a limit with no ceiling.
	Unlimited int64 = -1
)

// Counter is the per-account running total for one billing period.
type Counter struct {
	AccountID    uuid.UUID
	AnalysisUsed int64
	RoastsUsed   int64
	PeriodStart  time.Time
	PeriodEnd    time.Time
}

// Used returns the counter value for a kind.
func (c Counter) Used(kind CounterKind) int64 {
	if kind == KindAnalysis {
		return c.AnalysisUsed
	}
	return c.RoastsUsed
}

// CheckResult is the advisory limit decision surfaced to callers. A denial
// is a normal negative decision carrying everything the caller needs for an
// upgrade prompt.
type CheckResult struct {
	Allowed   bool        `json:"allowed"`
	Kind      CounterKind `json:"kind"`
	Used      int64       `json:"used"`
	Limit     int64       `json:"limit"`
	Remaining int64       `json:"remaining"` // -1 when unlimited
	Unlimited bool        `json:"unlimited"`
	PeriodEnd time.Time   `json:"period_end"`
}

// ConsumeResult reports an atomic consume attempt.
type ConsumeResult struct {
	Allowed bool        `json:"allowed"`
	Kind    CounterKind `json:"kind"`
	NewUsed int64       `json:"new_used"`
}

// Utilization is one kind's share of its limit, for reporting.
type Utilization struct {
	Used       int64 `json:"used"`
	Limit      int64 `json:"limit"`
	Percentage int   `json:"percentage"` // 0-100; -1 for unlimited
	Unlimited  bool  `json:"unlimited"`
}

// Summary combines both counters with their limits for dashboards.
type Summary struct {
	AccountID   uuid.UUID   `json:"account_id"`
	Analysis    Utilization `json:"analysis"`
	Roasts      Utilization `json:"roasts"`
	PeriodStart time.Time   `json:"period_start"`
	PeriodEnd   time.Time   `json:"period_end"`
}

// CurrentPeriod returns the UTC calendar month containing now.
func CurrentPeriod(now time.Time) (start, end time.Time) {
	now = now.UTC()
	start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0)
	return start, end
}

func utilization(used, limit int64) Utilization {
	u := Utilization{Used: used, Limit: limit}
	if limit == Unlimited {
		u.Unlimited = true
		u.Percentage = -1
		return u
	}
	if limit == 0 {
		u.Percentage = 100
		return u
	}
	u.Percentage = min(int((used*100)/limit), 100)
	return u
}
