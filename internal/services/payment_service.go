package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"susu/internal/amqp"
	"susu/internal/cache"
	"susu/internal/core"
	"susu/internal/log"
	"susu/internal/store"
)

// PaymentInput is what a caller supplies when recording a contribution.
// The amount is never supplied: it is always the group's contribution.
type PaymentInput struct {
	GroupID      string
	MemberID     string
	Month        string
	PaidAt       time.Time
	Method       core.PaymentMethod
	Status       core.PaymentStatus
	SenderBank   string
	ReceiverBank string
	Notes        string
}

// PaymentService records contributions against assigned months.
type PaymentService struct {
	reads
	notifier *Notifier
	now      func() time.Time
}

func NewPaymentService(st store.Store, c *cache.ReadThrough, n *Notifier) *PaymentService {
	return &PaymentService{reads: reads{st: st, cache: c}, notifier: n, now: utcNow}
}

// Record stores a payment for a month the member holds in the group. A late
// payment carries the group's fine.
func (s *PaymentService) Record(ctx context.Context, in PaymentInput) (core.Payment, error) {
	var fields []core.FieldError
	if in.GroupID == "" {
		fields = append(fields, core.FieldError{Field: "groupId", Error: "is required"})
	}
	if in.MemberID == "" {
		fields = append(fields, core.FieldError{Field: "memberId", Error: "is required"})
	}
	m, err := core.ParseMonth(in.Month)
	if err != nil {
		fields = append(fields, core.FieldError{Field: "month", Error: "must be a YYYY-MM month"})
	}
	if !in.Method.Valid() {
		fields = append(fields, core.FieldError{Field: "method", Error: "must be cash or bank_transfer"})
	}
	if len(fields) > 0 {
		return core.Payment{}, core.NewValidationError(fmt.Errorf("invalid payment"), fields...)
	}
	if in.Status == "" {
		in.Status = core.StatusPending
	}
	if in.PaidAt.IsZero() {
		in.PaidAt = s.now()
	}

	g, err := s.st.GetGroup(ctx, in.GroupID)
	if err != nil {
		return core.Payment{}, err
	}
	assignments, err := s.st.ListAssignments(ctx, store.AssignmentFilter{GroupID: in.GroupID})
	if err != nil {
		return core.Payment{}, err
	}
	claim, ok := core.NewRegistry(assignments).Claimant(m)
	if !ok || claim.MemberID != in.MemberID {
		return core.Payment{}, core.NewNotFound("assignment",
			fmt.Sprintf("%s/%s/%s", in.GroupID, in.MemberID, m))
	}

	now := s.now()
	p := core.Payment{
		ID:           uuid.NewString(),
		AssignmentID: &claim.ID,
		GroupID:      in.GroupID,
		MemberID:     in.MemberID,
		Month:        m,
		Amount:       g.Contribution,
		Fine:         g.LateFine(m, in.PaidAt),
		PaidAt:       in.PaidAt.UTC(),
		Method:       in.Method,
		Status:       in.Status,
		SenderBank:   in.SenderBank,
		ReceiverBank: in.ReceiverBank,
		Notes:        in.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := p.Validate(); err != nil {
		return core.Payment{}, err
	}
	if err := s.st.CreatePayment(ctx, p); err != nil {
		return core.Payment{}, err
	}
	s.invalidate(EntityPayments, EntityDashboard)
	s.afterChange(ctx, p.MemberID)

	slog.InfoContext(ctx, "Payment recorded",
		log.FieldPaymentID, p.ID,
		log.FieldGroupID, p.GroupID,
		log.FieldMonth, m.String(),
		log.FieldAmount, core.FormatAmount(p.Amount),
		log.FieldStatus, string(p.Status))
	s.notifier.Notify(ctx, paymentEvent(amqp.EventPaymentRecorded, p))
	return p, nil
}

// UpdateStatus moves a payment along not_paid, pending, received, settled.
// Only pending may step back to not_paid.
func (s *PaymentService) UpdateStatus(ctx context.Context, id string, status core.PaymentStatus) (core.Payment, error) {
	if id == "" {
		return core.Payment{}, core.Invalid("id", "is required")
	}
	if !status.Valid() {
		return core.Payment{}, core.Invalid("status", "must be one of not_paid, pending, received, settled")
	}
	p, err := s.st.GetPayment(ctx, id)
	if err != nil {
		return core.Payment{}, err
	}
	if !p.Status.CanTransition(status) {
		return core.Payment{}, core.Invalid("status",
			fmt.Sprintf("cannot move from %s to %s", p.Status, status))
	}
	if p.Status == status {
		return p, nil
	}
	now := s.now()
	if err := s.st.UpdatePaymentStatus(ctx, id, status, now); err != nil {
		return core.Payment{}, err
	}
	p.Status = status
	p.UpdatedAt = now
	s.invalidate(EntityPayments, EntityDashboard)
	s.afterChange(ctx, p.MemberID)

	slog.InfoContext(ctx, "Payment status changed",
		log.FieldPaymentID, p.ID,
		log.FieldStatus, string(status))
	s.notifier.Notify(ctx, paymentEvent(amqp.EventPaymentStatusChanged, p))
	return p, nil
}

func (s *PaymentService) Get(ctx context.Context, id string) (core.Payment, error) {
	if id == "" {
		return core.Payment{}, core.Invalid("id", "is required")
	}
	return s.st.GetPayment(ctx, id)
}

func (s *PaymentService) List(ctx context.Context, f store.PaymentFilter) ([]core.Payment, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, core.Invalid("status", "must be one of not_paid, pending, received, settled")
	}
	return s.payments(ctx, f)
}

func (s *PaymentService) afterChange(ctx context.Context, memberID string) {
	if err := refreshMemberTotals(ctx, s.st, memberID); err != nil {
		slog.WarnContext(ctx, "Failed to refresh member totals", log.FieldMemberID, memberID, log.FieldError, err)
	}
	s.invalidate(EntityMembers)
}

func paymentEvent(t amqp.EventType, p core.Payment) *amqp.Event {
	e := amqp.NewEvent(t, p.GroupID, p.MemberID, p.Month.String())
	e.PaymentID = p.ID
	e.Amount = core.FormatAmount(p.Amount)
	e.Status = string(p.Status)
	return e
}
