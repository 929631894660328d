package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"susu/internal/amqp"
	"susu/internal/core"
	"susu/internal/log"
	"susu/internal/sheets"
	"susu/internal/store"
)

// Reader is the slice of storage the worker needs.
type Reader interface {
	GetGroup(ctx context.Context, id string) (core.Group, error)
	GetMember(ctx context.Context, id string) (core.Member, error)
	GetPayment(ctx context.Context, id string) (core.Payment, error)
	CreateMessage(ctx context.Context, m core.Message) error
}

var _ Reader = (store.Store)(nil)

// NotificationWorker turns domain events into member inbox messages and
// payment ledger rows.
type NotificationWorker struct {
	store  Reader
	ledger sheets.Ledger
	now    func() time.Time
}

// NewNotificationWorker creates a worker. A nil ledger disables the export.
func NewNotificationWorker(st Reader, ledger sheets.Ledger) *NotificationWorker {
	return &NotificationWorker{
		store:  st,
		ledger: ledger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// HandleEvent processes one event. Errors that a redelivery could fix are
// returned so the delivery is requeued; events about entities that no longer
// exist are acknowledged and dropped.
func (w *NotificationWorker) HandleEvent(ctx context.Context, e *amqp.Event) error {
	slog.InfoContext(ctx, "Processing event",
		log.FieldEventType, string(e.Type),
		log.FieldGroupID, e.GroupID,
		log.FieldMemberID, e.MemberID,
		log.FieldMonth, e.Month)

	g, err := w.store.GetGroup(ctx, e.GroupID)
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "Dropping event for deleted group", log.FieldGroupID, e.GroupID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get group: %w", err)
	}

	if e.MemberID != "" {
		if err := w.notifyMember(ctx, g, e); err != nil {
			return err
		}
	}

	if e.Type.IsPayment() && w.ledger != nil {
		if err := w.exportPayment(ctx, g, e); err != nil {
			return err
		}
	}
	return nil
}

func (w *NotificationWorker) notifyMember(ctx context.Context, g core.Group, e *amqp.Event) error {
	member, err := w.store.GetMember(ctx, e.MemberID)
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "Dropping message for deleted member", log.FieldMemberID, e.MemberID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get member: %w", err)
	}

	id := e.ID
	if id == "" {
		id = uuid.NewString()
	}
	subject, body := composeMessage(g, member, e)
	msg := core.Message{
		ID:        id,
		MemberID:  member.ID,
		GroupID:   g.ID,
		Kind:      string(e.Type),
		Subject:   subject,
		Body:      body,
		CreatedAt: w.now(),
	}
	err = w.store.CreateMessage(ctx, msg)
	switch {
	case errors.Is(err, core.ErrConflict):
		slog.DebugContext(ctx, "Message already delivered", "message_id", id)
		return nil
	case errors.Is(err, core.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("create message: %w", err)
	}
	slog.InfoContext(ctx, "Inbox message created",
		log.FieldMemberID, member.ID,
		"message_id", id,
		"kind", msg.Kind)
	return nil
}

func (w *NotificationWorker) exportPayment(ctx context.Context, g core.Group, e *amqp.Event) error {
	if e.PaymentID == "" {
		slog.WarnContext(ctx, "Payment event without payment id", log.FieldEventType, string(e.Type))
		return nil
	}
	p, err := w.store.GetPayment(ctx, e.PaymentID)
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "Dropping ledger row for deleted payment", log.FieldPaymentID, e.PaymentID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get payment: %w", err)
	}

	// status from the event: the stored row may have moved on since
	status := e.Status
	if status == "" {
		status = string(p.Status)
	}
	done, err := w.ledger.HasEntry(ctx, p.ID, status)
	if err != nil {
		return fmt.Errorf("check ledger: %w", err)
	}
	if done {
		slog.DebugContext(ctx, "Ledger row already written", log.FieldPaymentID, p.ID, log.FieldStatus, status)
		return nil
	}

	memberName := ""
	if m, err := w.store.GetMember(ctx, p.MemberID); err == nil {
		memberName = m.Name
	}
	ref, err := w.ledger.AppendPayment(ctx, sheets.LedgerRow{
		RecordedAt: e.Timestamp,
		Event:      string(e.Type),
		PaymentID:  p.ID,
		GroupID:    g.ID,
		GroupName:  g.Name,
		MemberID:   p.MemberID,
		MemberName: memberName,
		Month:      p.Month.String(),
		Amount:     p.Amount,
		Fine:       p.Fine,
		Method:     string(p.Method),
		Status:     status,
	})
	if err != nil {
		return fmt.Errorf("append ledger row: %w", err)
	}
	fields := log.NewFields().WithPayment(p.ID, core.FormatAmount(p.Amount), status).WithOperation(log.OpExport)
	slog.InfoContext(ctx, "Payment exported to ledger", append(fields.ToSlice(), "sheets_ref", ref)...)
	return nil
}

func composeMessage(g core.Group, m core.Member, e *amqp.Event) (subject, body string) {
	due := e.DueDate
	if due == "" {
		if month, err := core.ParseMonth(e.Month); err == nil {
			due = g.DueDate(month).Format(time.DateOnly)
		}
	}
	amount := e.Amount
	if amount == "" {
		amount = core.FormatAmount(g.Contribution)
	}

	switch e.Type {
	case amqp.EventSlotAssigned:
		return fmt.Sprintf("%s: month %s assigned", g.Name, e.Month),
			fmt.Sprintf("Hello %s, you now hold %s in %s. The contribution of %s is due by %s.",
				m.Name, e.Month, g.Name, amount, due)
	case amqp.EventSlotReleased:
		if e.Month == "" {
			return fmt.Sprintf("%s: months released", g.Name),
				fmt.Sprintf("Hello %s, all your months in %s have been released.", m.Name, g.Name)
		}
		return fmt.Sprintf("%s: month %s released", g.Name, e.Month),
			fmt.Sprintf("Hello %s, your month %s in %s has been released.", m.Name, e.Month, g.Name)
	case amqp.EventPaymentRecorded:
		return fmt.Sprintf("%s: payment for %s recorded", g.Name, e.Month),
			fmt.Sprintf("Hello %s, we recorded your payment of %s for %s (status: %s).",
				m.Name, amount, e.Month, e.Status)
	case amqp.EventPaymentStatusChanged:
		return fmt.Sprintf("%s: payment for %s is %s", g.Name, e.Month, e.Status),
			fmt.Sprintf("Hello %s, your payment for %s in %s is now %s.", m.Name, e.Month, g.Name, e.Status)
	case amqp.EventPaymentReminder:
		if e.Reminder == "overdue" {
			return fmt.Sprintf("%s: payment for %s is overdue", g.Name, e.Month),
				fmt.Sprintf("Hello %s, your contribution of %s for %s was due on %s. Late fines may apply.",
					m.Name, amount, e.Month, due)
		}
		return fmt.Sprintf("%s: payment for %s due soon", g.Name, e.Month),
			fmt.Sprintf("Hello %s, your contribution of %s for %s is due on %s.", m.Name, amount, e.Month, due)
	}
	return string(e.Type), fmt.Sprintf("Hello %s, there is an update on %s.", m.Name, g.Name)
}
