package core

import (
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type (
	PaymentMethod string
	PaymentStatus string
	Role          string
)

const (
	MethodCash         PaymentMethod = "cash"
	MethodBankTransfer PaymentMethod = "bank_transfer"
)

const (
	StatusNotPaid  PaymentStatus = "not_paid"
	StatusPending  PaymentStatus = "pending"
	StatusReceived PaymentStatus = "received"
	StatusSettled  PaymentStatus = "settled"
)

const (
	RoleAdmin  Role = "admin"
	RoleViewer Role = "viewer"
)

type (
	// Group is a savings circle with a fixed monthly contribution.
	Group struct {
		ID              string              `json:"id"`
		Name            string              `json:"name"`
		Description     string              `json:"description,omitempty"`
		Contribution    decimal.Decimal     `json:"contribution"`
		MaxMembers      int                 `json:"maxMembers"`
		StartMonth      Month               `json:"startMonth"`
		EndMonth        Month               `json:"endMonth"`
		DeadlineDay     *int                `json:"deadlineDay,omitempty"`
		LateFinePercent decimal.NullDecimal `json:"lateFinePercent"`
		LateFineAmount  decimal.NullDecimal `json:"lateFineAmount"`
		CreatedAt       time.Time           `json:"createdAt"`
		UpdatedAt       time.Time           `json:"updatedAt"`
	}

	Member struct {
		ID               string          `json:"id"`
		Name             string          `json:"name"`
		Phone            string          `json:"phone,omitempty"`
		Email            string          `json:"email,omitempty"`
		Address          string          `json:"address,omitempty"`
		BankName         string          `json:"bankName,omitempty"`
		AccountNumber    string          `json:"accountNumber,omitempty"`
		RegisteredAt     time.Time       `json:"registeredAt"`
		TotalReceived    decimal.Decimal `json:"totalReceived"`
		LastPaymentAt    *time.Time      `json:"lastPaymentAt,omitempty"`
		NextPaymentMonth *Month          `json:"nextPaymentMonth,omitempty"`
	}

	// Assignment is one member's claim on one month of one group.
	Assignment struct {
		ID         string    `json:"id"`
		GroupID    string    `json:"groupId"`
		MemberID   string    `json:"memberId"`
		Month      Month     `json:"month"`
		MemberName string    `json:"memberName,omitempty"`
		CreatedAt  time.Time `json:"createdAt"`
	}

	Payment struct {
		ID           string          `json:"id"`
		AssignmentID *string         `json:"assignmentId,omitempty"`
		GroupID      string          `json:"groupId"`
		MemberID     string          `json:"memberId"`
		Month        Month           `json:"month"`
		Amount       decimal.Decimal `json:"amount"`
		Fine         decimal.Decimal `json:"fine"`
		PaidAt       time.Time       `json:"paidAt"`
		Method       PaymentMethod   `json:"method"`
		Status       PaymentStatus   `json:"status"`
		SenderBank   string          `json:"senderBank,omitempty"`
		ReceiverBank string          `json:"receiverBank,omitempty"`
		Notes        string          `json:"notes,omitempty"`
		CreatedAt    time.Time       `json:"createdAt"`
		UpdatedAt    time.Time       `json:"updatedAt"`
	}

	// Message is an in-app notification addressed to a member.
	Message struct {
		ID        string     `json:"id"`
		MemberID  string     `json:"memberId"`
		GroupID   string     `json:"groupId,omitempty"`
		Kind      string     `json:"kind"`
		Subject   string     `json:"subject"`
		Body      string     `json:"body"`
		CreatedAt time.Time  `json:"createdAt"`
		ReadAt    *time.Time `json:"readAt,omitempty"`
	}

	// User is an administrator account.
	User struct {
		ID           string    `json:"id"`
		Email        string    `json:"email"`
		DisplayName  string    `json:"displayName"`
		PasswordHash string    `json:"-"`
		Role         Role      `json:"role"`
		CreatedAt    time.Time `json:"createdAt"`
	}
)

func (g Group) Validate() error {
	var fe fieldErrors
	if strings.TrimSpace(g.Name) == "" {
		fe.add("name", "is required")
	} else if len(g.Name) > 120 {
		fe.add("name", "must be at most 120 characters")
	}
	if !g.Contribution.IsPositive() {
		fe.add("contribution", "must be a positive amount")
	}
	if g.MaxMembers < 1 {
		fe.add("maxMembers", "must be at least 1")
	}
	switch {
	case g.StartMonth.IsZero():
		fe.add("startMonth", "is required")
	case g.EndMonth.IsZero():
		fe.add("endMonth", "is required")
	case g.StartMonth.After(g.EndMonth):
		fe.add("endMonth", "must not be before startMonth")
	}
	if g.DeadlineDay != nil && (*g.DeadlineDay < 1 || *g.DeadlineDay > 31) {
		fe.add("deadlineDay", "must be between 1 and 31")
	}
	if g.LateFinePercent.Valid {
		p := g.LateFinePercent.Decimal
		if p.IsNegative() || p.GreaterThan(decimal.NewFromInt(100)) {
			fe.add("lateFinePercent", "must be between 0 and 100")
		}
	}
	if g.LateFineAmount.Valid && g.LateFineAmount.Decimal.IsNegative() {
		fe.add("lateFineAmount", "must not be negative")
	}
	return fe.err("group")
}

// Months returns every month of the group's range in order.
func (g Group) Months() []Month {
	return ExpandRange(g.StartMonth, g.EndMonth)
}

// DurationMonths is the number of months the group runs.
func (g Group) DurationMonths() int {
	return MonthsBetween(g.StartMonth, g.EndMonth) + 1
}

// Covers reports whether m lies within the group's range.
func (g Group) Covers(m Month) bool {
	return InRange(m, g.StartMonth, g.EndMonth)
}

func (m Member) Validate() error {
	var fe fieldErrors
	if strings.TrimSpace(m.Name) == "" {
		fe.add("name", "is required")
	} else if len(m.Name) > 120 {
		fe.add("name", "must be at most 120 characters")
	}
	if m.Email != "" {
		if _, err := mail.ParseAddress(m.Email); err != nil {
			fe.add("email", "is not a valid address")
		}
	}
	return fe.err("member")
}

func (m PaymentMethod) Valid() bool {
	return m == MethodCash || m == MethodBankTransfer
}

func (s PaymentStatus) Valid() bool {
	return s.rank() >= 0
}

func (s PaymentStatus) rank() int {
	switch s {
	case StatusNotPaid:
		return 0
	case StatusPending:
		return 1
	case StatusReceived:
		return 2
	case StatusSettled:
		return 3
	default:
		return -1
	}
}

// Paid reports whether funds have actually arrived.
func (s PaymentStatus) Paid() bool {
	return s == StatusReceived || s == StatusSettled
}

// CanTransition allows forward moves, no-ops, and pending back to not_paid.
func (s PaymentStatus) CanTransition(to PaymentStatus) bool {
	if !s.Valid() || !to.Valid() {
		return false
	}
	if to.rank() >= s.rank() {
		return true
	}
	return s == StatusPending && to == StatusNotPaid
}

func (p Payment) Validate() error {
	var fe fieldErrors
	if p.GroupID == "" {
		fe.add("groupId", "is required")
	}
	if p.MemberID == "" {
		fe.add("memberId", "is required")
	}
	if p.Month.IsZero() {
		fe.add("month", "is required")
	}
	if !p.Amount.IsPositive() {
		fe.add("amount", "must be a positive amount")
	}
	if p.PaidAt.IsZero() {
		fe.add("paidAt", "is required")
	}
	if !p.Method.Valid() {
		fe.add("method", "must be cash or bank_transfer")
	}
	if !p.Status.Valid() {
		fe.add("status", "must be one of not_paid, pending, received, settled")
	}
	if len(p.Notes) > 1000 {
		fe.add("notes", "must be at most 1000 characters")
	}
	return fe.err("payment")
}

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleViewer
}
