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

// SlotService allocates the months of a group to members.
type SlotService struct {
	reads
	notifier *Notifier
	now      func() time.Time
}

func NewSlotService(st store.Store, c *cache.ReadThrough, n *Notifier) *SlotService {
	return &SlotService{
		reads:    reads{st: st, cache: c},
		notifier: n,
		now:      utcNow,
	}
}

// ExpandMonths lists every "YYYY-MM" month from start to end inclusive.
func (s *SlotService) ExpandMonths(start, end string) ([]string, error) {
	return core.ExpandMonths(start, end)
}

// GetAllMonths classifies every month of the group's range as reserved or open.
func (s *SlotService) GetAllMonths(ctx context.Context, groupID string) ([]core.Slot, error) {
	if groupID == "" {
		return nil, core.Invalid("groupId", "is required")
	}
	g, err := s.group(ctx, groupID)
	if err != nil {
		return nil, err
	}
	assignments, err := s.assignments(ctx, store.AssignmentFilter{GroupID: groupID})
	if err != nil {
		return nil, err
	}
	return core.BuildSlots(g, assignments), nil
}

// Registry maps each claimed month of the group to its assignment, keyed "YYYY-MM".
// Orphaned claims outside the range are included.
func (s *SlotService) Registry(ctx context.Context, groupID string) (map[string]core.Assignment, error) {
	if groupID == "" {
		return nil, core.Invalid("groupId", "is required")
	}
	if _, err := s.group(ctx, groupID); err != nil {
		return nil, err
	}
	assignments, err := s.assignments(ctx, store.AssignmentFilter{GroupID: groupID})
	if err != nil {
		return nil, err
	}
	out := make(map[string]core.Assignment, len(assignments))
	for _, a := range assignments {
		out[a.Month.String()] = a
	}
	return out, nil
}

// Orphans returns the group's claims lying outside its current range.
func (s *SlotService) Orphans(ctx context.Context, groupID string) ([]core.Assignment, error) {
	if groupID == "" {
		return nil, core.Invalid("groupId", "is required")
	}
	g, err := s.group(ctx, groupID)
	if err != nil {
		return nil, err
	}
	assignments, err := s.assignments(ctx, store.AssignmentFilter{GroupID: groupID})
	if err != nil {
		return nil, err
	}
	return core.OrphanedAssignments(g, assignments), nil
}

// Assign gives month of the group to the member. The same member may hold
// several months; a month already held fails with DuplicateMonthClaimError,
// including when the identical triple is submitted twice.
func (s *SlotService) Assign(ctx context.Context, groupID, memberID, month string) (core.Assignment, error) {
	var fields []core.FieldError
	if groupID == "" {
		fields = append(fields, core.FieldError{Field: "groupId", Error: "is required"})
	}
	if memberID == "" {
		fields = append(fields, core.FieldError{Field: "memberId", Error: "is required"})
	}
	m, err := core.ParseMonth(month)
	if err != nil {
		fields = append(fields, core.FieldError{Field: "month", Error: "must be a YYYY-MM month"})
	}
	if len(fields) > 0 {
		return core.Assignment{}, core.NewValidationError(fmt.Errorf("invalid assignment"), fields...)
	}

	// Authoritative reads: the checks below must not see stale cache entries.
	g, err := s.st.GetGroup(ctx, groupID)
	if err != nil {
		return core.Assignment{}, err
	}
	if !g.Covers(m) {
		return core.Assignment{}, core.Invalid("month",
			fmt.Sprintf("%s is outside the group range %s..%s", m, g.StartMonth, g.EndMonth))
	}
	member, err := s.st.GetMember(ctx, memberID)
	if err != nil {
		return core.Assignment{}, err
	}

	existing, err := s.st.ListAssignments(ctx, store.AssignmentFilter{GroupID: groupID})
	if err != nil {
		return core.Assignment{}, err
	}
	if holder, ok := core.NewRegistry(existing).Claimant(m); ok {
		return core.Assignment{}, &core.DuplicateMonthClaimError{GroupID: groupID, Month: m, HeldBy: holder.MemberName}
	}
	if err := checkCapacity(g, existing, memberID); err != nil {
		return core.Assignment{}, err
	}

	a := core.Assignment{
		ID:         uuid.NewString(),
		GroupID:    groupID,
		MemberID:   memberID,
		Month:      m,
		MemberName: member.Name,
		CreatedAt:  s.now(),
	}
	// The storage constraint still decides races between concurrent claims.
	if err := s.st.CreateAssignment(ctx, a); err != nil {
		return core.Assignment{}, err
	}
	s.invalidate(EntityAssignments, EntityDashboard)
	s.afterChange(ctx, memberID)

	slog.InfoContext(ctx, "Month assigned",
		log.FieldOperation, log.OpAssign,
		log.FieldGroupID, groupID,
		log.FieldMemberID, memberID,
		log.FieldMonth, m.String())
	s.notifier.Notify(ctx, amqp.NewEvent(amqp.EventSlotAssigned, groupID, memberID, m.String()))
	return a, nil
}

// checkCapacity rejects a member new to the group once MaxMembers distinct
// members already hold months in it.
func checkCapacity(g core.Group, existing []core.Assignment, memberID string) error {
	members := make(map[string]struct{})
	for _, a := range existing {
		if a.MemberID == memberID {
			return nil
		}
		members[a.MemberID] = struct{}{}
	}
	if len(members) >= g.MaxMembers {
		return core.Invalid("memberId", fmt.Sprintf("group already has %d members", g.MaxMembers))
	}
	return nil
}

// Unassign releases the member's claim on month, or every claim the member
// holds in the group when month is nil. Payments for released months are
// kept with their assignment link cleared. It returns how many claims were removed.
func (s *SlotService) Unassign(ctx context.Context, groupID, memberID string, month *string) (int, error) {
	var fields []core.FieldError
	if groupID == "" {
		fields = append(fields, core.FieldError{Field: "groupId", Error: "is required"})
	}
	if memberID == "" {
		fields = append(fields, core.FieldError{Field: "memberId", Error: "is required"})
	}
	var m *core.Month
	if month != nil {
		parsed, err := core.ParseMonth(*month)
		if err != nil {
			fields = append(fields, core.FieldError{Field: "month", Error: "must be a YYYY-MM month"})
		} else {
			m = &parsed
		}
	}
	if len(fields) > 0 {
		return 0, core.NewValidationError(fmt.Errorf("invalid unassignment"), fields...)
	}

	if _, err := s.st.GetGroup(ctx, groupID); err != nil {
		return 0, err
	}
	if _, err := s.st.GetMember(ctx, memberID); err != nil {
		return 0, err
	}

	n, err := s.st.DeleteAssignments(ctx, groupID, memberID, m)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	s.invalidate(EntityAssignments, EntityPayments, EntityDashboard)
	s.afterChange(ctx, memberID)

	monthLabel := ""
	if m != nil {
		monthLabel = m.String()
	}
	slog.InfoContext(ctx, "Months released",
		log.FieldOperation, log.OpUnassign,
		log.FieldGroupID, groupID,
		log.FieldMemberID, memberID,
		log.FieldMonth, monthLabel,
		"removed", n)
	s.notifier.Notify(ctx, amqp.NewEvent(amqp.EventSlotReleased, groupID, memberID, monthLabel))
	return n, nil
}

// afterChange refreshes the member's derived totals; failure only logs.
func (s *SlotService) afterChange(ctx context.Context, memberID string) {
	if err := refreshMemberTotals(ctx, s.st, memberID); err != nil {
		slog.WarnContext(ctx, "Failed to refresh member totals", log.FieldMemberID, memberID, log.FieldError, err)
	}
	s.invalidate(EntityMembers)
}
