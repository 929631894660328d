package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"susu/internal/amqp"
	"susu/internal/cache"
	"susu/internal/core"
	"susu/internal/log"
	"susu/internal/store"
)

// Cache entity names. Every mutator invalidates the entities it touches.
const (
	EntityGroups      = "groups"
	EntityMembers     = "members"
	EntityAssignments = "assignments"
	EntityPayments    = "payments"
	EntityMessages    = "messages"
	EntityUsers       = "users"
	EntityDashboard   = "dashboard"
)

// Publisher is the outbound side of the AMQP client.
type Publisher interface {
	Publish(ctx context.Context, e *amqp.Event) error
}

// Notifier publishes domain events on a best-effort basis. Failures are
// logged and never fail the calling operation.
type Notifier struct {
	pub Publisher
}

// NewNotifier wraps pub; a nil pub turns every notification into a logged no-op.
func NewNotifier(pub Publisher) *Notifier {
	return &Notifier{pub: pub}
}

func (n *Notifier) Notify(ctx context.Context, e *amqp.Event) {
	if n == nil || n.pub == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping event", log.FieldEventType, e.Type)
		return
	}
	if err := n.pub.Publish(ctx, e); err != nil {
		slog.ErrorContext(ctx, "Failed to publish event",
			log.FieldEventType, e.Type,
			log.FieldGroupID, e.GroupID,
			log.FieldError, err)
	}
}

// reads serves store lookups through the read-through cache.
type reads struct {
	st    store.Store
	cache *cache.ReadThrough
}

func (r reads) group(ctx context.Context, id string) (core.Group, error) {
	key := cache.Key(EntityGroups, map[string]string{"id": id})
	return cache.Fetch(ctx, r.cache, key, func(ctx context.Context) (core.Group, error) {
		return r.st.GetGroup(ctx, id)
	})
}

func (r reads) groups(ctx context.Context) ([]core.Group, error) {
	return cache.Fetch(ctx, r.cache, cache.Key(EntityGroups, nil), r.st.ListGroups)
}

func (r reads) member(ctx context.Context, id string) (core.Member, error) {
	key := cache.Key(EntityMembers, map[string]string{"id": id})
	return cache.Fetch(ctx, r.cache, key, func(ctx context.Context) (core.Member, error) {
		return r.st.GetMember(ctx, id)
	})
}

func (r reads) members(ctx context.Context) ([]core.Member, error) {
	return cache.Fetch(ctx, r.cache, cache.Key(EntityMembers, nil), r.st.ListMembers)
}

func (r reads) assignments(ctx context.Context, f store.AssignmentFilter) ([]core.Assignment, error) {
	key := cache.Key(EntityAssignments, map[string]string{"group": f.GroupID, "member": f.MemberID})
	return cache.Fetch(ctx, r.cache, key, func(ctx context.Context) ([]core.Assignment, error) {
		return r.st.ListAssignments(ctx, f)
	})
}

func (r reads) payments(ctx context.Context, f store.PaymentFilter) ([]core.Payment, error) {
	filter := map[string]string{"group": f.GroupID, "member": f.MemberID, "status": string(f.Status)}
	if f.Month != nil {
		filter["month"] = f.Month.String()
	}
	return cache.Fetch(ctx, r.cache, cache.Key(EntityPayments, filter), func(ctx context.Context) ([]core.Payment, error) {
		return r.st.ListPayments(ctx, f)
	})
}

func (r reads) invalidate(entities ...string) {
	if r.cache != nil {
		r.cache.InvalidateEntity(entities...)
	}
}

// refreshMemberTotals recomputes the denormalized running figures of a member
// straight from the store.
func refreshMemberTotals(ctx context.Context, st store.Store, memberID string) error {
	assignments, err := st.ListAssignments(ctx, store.AssignmentFilter{MemberID: memberID})
	if err != nil {
		return fmt.Errorf("list assignments: %w", err)
	}
	payments, err := st.ListPayments(ctx, store.PaymentFilter{MemberID: memberID})
	if err != nil {
		return fmt.Errorf("list payments: %w", err)
	}
	total, last, next := core.MemberTotals(assignments, payments)
	return st.UpdateMemberTotals(ctx, memberID, store.MemberTotals{
		TotalReceived:    total,
		LastPaymentAt:    last,
		NextPaymentMonth: next,
	})
}

func utcNow() time.Time { return time.Now().UTC() }
