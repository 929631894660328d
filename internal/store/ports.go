package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"susu/internal/core"
)

// Ports implemented by every persistence backend.
type (
	GroupStore interface {
		CreateGroup(ctx context.Context, g core.Group) error
		UpdateGroup(ctx context.Context, g core.Group) error
		// DeleteGroup removes the group together with its assignments and payments.
		DeleteGroup(ctx context.Context, id string) error
		GetGroup(ctx context.Context, id string) (core.Group, error)
		ListGroups(ctx context.Context) ([]core.Group, error)
	}

	MemberStore interface {
		CreateMember(ctx context.Context, m core.Member) error
		// UpdateMember writes profile fields only; running totals are left alone.
		UpdateMember(ctx context.Context, m core.Member) error
		DeleteMember(ctx context.Context, id string) error
		GetMember(ctx context.Context, id string) (core.Member, error)
		ListMembers(ctx context.Context) ([]core.Member, error)
		UpdateMemberTotals(ctx context.Context, id string, totals MemberTotals) error
	}

	// AssignmentStore owns the (group, month) uniqueness constraint.
	AssignmentStore interface {
		// CreateAssignment fails with core.DuplicateMonthClaimError when the
		// month is already held in the group, and with core.NotFoundError when
		// the group or member does not exist.
		CreateAssignment(ctx context.Context, a core.Assignment) error
		// DeleteAssignments removes the member's claims in the group, restricted
		// to one month when month is non-nil, and returns how many were removed.
		// Payments that referenced a removed claim keep their row with the
		// assignment link cleared.
		DeleteAssignments(ctx context.Context, groupID, memberID string, month *core.Month) (int, error)
		// ListAssignments returns matching claims ordered by month, with MemberName filled.
		ListAssignments(ctx context.Context, f AssignmentFilter) ([]core.Assignment, error)
	}

	PaymentStore interface {
		CreatePayment(ctx context.Context, p core.Payment) error
		UpdatePaymentStatus(ctx context.Context, id string, status core.PaymentStatus, at time.Time) error
		GetPayment(ctx context.Context, id string) (core.Payment, error)
		// ListPayments returns matching payments, newest first.
		ListPayments(ctx context.Context, f PaymentFilter) ([]core.Payment, error)
	}

	MessageStore interface {
		CreateMessage(ctx context.Context, m core.Message) error
		// ListMessages returns a member's inbox, newest first.
		ListMessages(ctx context.Context, memberID string) ([]core.Message, error)
		MarkMessageRead(ctx context.Context, id string, at time.Time) error
	}

	UserStore interface {
		// CreateUser fails with core.ErrConflict when the email is taken.
		CreateUser(ctx context.Context, u core.User) error
		GetUserByEmail(ctx context.Context, email string) (core.User, error)
		GetUserByID(ctx context.Context, id string) (core.User, error)
		ListUsers(ctx context.Context) ([]core.User, error)
		DeleteUser(ctx context.Context, id string) error
	}

	// Store is the full persistence surface the services depend on.
	Store interface {
		GroupStore
		MemberStore
		AssignmentStore
		PaymentStore
		MessageStore
		UserStore

		Ping(ctx context.Context) error
		Close() error
	}
)

// AssignmentFilter narrows ListAssignments; empty fields match everything.
type AssignmentFilter struct {
	GroupID  string
	MemberID string
}

// PaymentFilter narrows ListPayments; zero fields match everything.
type PaymentFilter struct {
	GroupID  string
	MemberID string
	Month    *core.Month
	Status   core.PaymentStatus
}

// MemberTotals are the derived running figures kept on a member row.
type MemberTotals struct {
	TotalReceived    decimal.Decimal
	LastPaymentAt    *time.Time
	NextPaymentMonth *core.Month
}

// Matches reports whether a satisfies the filter.
func (f AssignmentFilter) Matches(a core.Assignment) bool {
	if f.GroupID != "" && a.GroupID != f.GroupID {
		return false
	}
	if f.MemberID != "" && a.MemberID != f.MemberID {
		return false
	}
	return true
}

// Matches reports whether p satisfies the filter.
func (f PaymentFilter) Matches(p core.Payment) bool {
	if f.GroupID != "" && p.GroupID != f.GroupID {
		return false
	}
	if f.MemberID != "" && p.MemberID != f.MemberID {
		return false
	}
	if f.Month != nil && p.Month != *f.Month {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	return true
}
