package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// GroupStats is the dashboard summary of one group.
type GroupStats struct {
	GroupID        string                `json:"groupId"`
	GroupName      string                `json:"groupName"`
	TotalMonths    int                   `json:"totalMonths"`
	AssignedMonths int                   `json:"assignedMonths"`
	OpenMonths     int                   `json:"openMonths"`
	Orphaned       int                   `json:"orphaned"`
	Members        int                   `json:"members"`
	Expected       decimal.Decimal       `json:"expected"`
	Collected      decimal.Decimal       `json:"collected"`
	Outstanding    decimal.Decimal       `json:"outstanding"`
	Fines          decimal.Decimal       `json:"fines"`
	ByStatus       map[PaymentStatus]int `json:"byStatus"`
}

// Dashboard aggregates stats across every group.
type Dashboard struct {
	Groups       []GroupStats    `json:"groups"`
	TotalGroups  int             `json:"totalGroups"`
	TotalMembers int             `json:"totalMembers"`
	Expected     decimal.Decimal `json:"expected"`
	Collected    decimal.Decimal `json:"collected"`
	Outstanding  decimal.Decimal `json:"outstanding"`
	Fines        decimal.Decimal `json:"fines"`
	GeneratedAt  time.Time       `json:"generatedAt"`
}

// ComputeGroupStats summarises a group from its assignments and payments.
// Every in-range assignment expects one contribution.
func ComputeGroupStats(g Group, assignments []Assignment, payments []Payment) GroupStats {
	st := GroupStats{
		GroupID:     g.ID,
		GroupName:   g.Name,
		TotalMonths: g.DurationMonths(),
		Expected:    decimal.Zero,
		Collected:   decimal.Zero,
		Outstanding: decimal.Zero,
		Fines:       decimal.Zero,
		ByStatus:    make(map[PaymentStatus]int),
	}
	members := make(map[string]struct{})
	for _, a := range assignments {
		if !g.Covers(a.Month) {
			st.Orphaned++
			continue
		}
		st.AssignedMonths++
		members[a.MemberID] = struct{}{}
	}
	st.Members = len(members)
	st.OpenMonths = st.TotalMonths - st.AssignedMonths
	st.Expected = g.Contribution.Mul(decimal.NewFromInt(int64(st.AssignedMonths)))

	for _, p := range payments {
		st.ByStatus[p.Status]++
		if p.Status.Paid() {
			st.Collected = st.Collected.Add(p.Amount)
			st.Fines = st.Fines.Add(p.Fine)
		}
	}
	if out := st.Expected.Sub(st.Collected); out.IsPositive() {
		st.Outstanding = out
	}
	return st
}

// MemberTotals derives a member's running totals from assignments and payments.
// The next payment month is the earliest assigned month without a paid payment.
func MemberTotals(assignments []Assignment, payments []Payment) (total decimal.Decimal, last *time.Time, next *Month) {
	total = decimal.Zero
	paid := make(map[string]map[Month]bool)
	for _, p := range payments {
		if !p.Status.Paid() {
			continue
		}
		total = total.Add(p.Amount)
		if last == nil || p.PaidAt.After(*last) {
			t := p.PaidAt
			last = &t
		}
		if paid[p.GroupID] == nil {
			paid[p.GroupID] = make(map[Month]bool)
		}
		paid[p.GroupID][p.Month] = true
	}
	for _, a := range assignments {
		if paid[a.GroupID][a.Month] {
			continue
		}
		if next == nil || a.Month.Before(*next) {
			m := a.Month
			next = &m
		}
	}
	return total, last, next
}
