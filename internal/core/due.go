package core

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// DueDate is the payment deadline of month m for group g, at midnight UTC.
// A deadline day past the end of the month is clamped; without a deadline
// day the last day of the month applies.
func (g Group) DueDate(m Month) time.Time {
	last := m.DaysIn()
	day := last
	if g.DeadlineDay != nil && *g.DeadlineDay < last {
		day = *g.DeadlineDay
	}
	return time.Date(m.Year, m.Month, day, 0, 0, 0, 0, time.UTC)
}

// IsLate reports whether a payment made at paidAt misses the deadline of m.
func (g Group) IsLate(m Month, paidAt time.Time) bool {
	due := g.DueDate(m)
	paid := paidAt.UTC()
	paidDay := time.Date(paid.Year(), paid.Month(), paid.Day(), 0, 0, 0, 0, time.UTC)
	return paidDay.After(due)
}

// LateFine computes the fine for paying month m at paidAt: the percentage of
// the contribution plus the fixed amount, rounded to cents.
func (g Group) LateFine(m Month, paidAt time.Time) decimal.Decimal {
	if !g.IsLate(m, paidAt) {
		return decimal.Zero
	}
	fine := decimal.Zero
	if g.LateFinePercent.Valid {
		fine = fine.Add(g.Contribution.Mul(g.LateFinePercent.Decimal).Div(hundred))
	}
	if g.LateFineAmount.Valid {
		fine = fine.Add(g.LateFineAmount.Decimal)
	}
	return fine.Round(2)
}
