package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"susu/internal/cache"
	"susu/internal/core"
	"susu/internal/log"
	"susu/internal/store"
)

// MemberService manages members and their inboxes.
type MemberService struct {
	reads
	now func() time.Time
}

func NewMemberService(st store.Store, c *cache.ReadThrough) *MemberService {
	return &MemberService{reads: reads{st: st, cache: c}, now: utcNow}
}

// Create registers a member. Running totals always start at zero.
func (s *MemberService) Create(ctx context.Context, m core.Member) (core.Member, error) {
	if err := m.Validate(); err != nil {
		return core.Member{}, err
	}
	m.ID = uuid.NewString()
	m.RegisteredAt = s.now()
	m.TotalReceived = decimal.Zero
	m.LastPaymentAt = nil
	m.NextPaymentMonth = nil
	if err := s.st.CreateMember(ctx, m); err != nil {
		return core.Member{}, err
	}
	s.invalidate(EntityMembers, EntityDashboard)
	slog.InfoContext(ctx, "Member registered", log.FieldMemberID, m.ID)
	return m, nil
}

// Update writes profile fields. A renamed member's claims show the new name.
func (s *MemberService) Update(ctx context.Context, m core.Member) (core.Member, error) {
	if m.ID == "" {
		return core.Member{}, core.Invalid("id", "is required")
	}
	if err := m.Validate(); err != nil {
		return core.Member{}, err
	}
	if err := s.st.UpdateMember(ctx, m); err != nil {
		return core.Member{}, err
	}
	s.invalidate(EntityMembers, EntityAssignments)
	return s.st.GetMember(ctx, m.ID)
}

// Delete removes the member along with every claim and payment they hold.
func (s *MemberService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return core.Invalid("id", "is required")
	}
	if err := s.st.DeleteMember(ctx, id); err != nil {
		return err
	}
	s.invalidate(EntityMembers, EntityAssignments, EntityPayments, EntityMessages, EntityDashboard)
	slog.InfoContext(ctx, "Member deleted", log.FieldMemberID, id)
	return nil
}

func (s *MemberService) Get(ctx context.Context, id string) (core.Member, error) {
	if id == "" {
		return core.Member{}, core.Invalid("id", "is required")
	}
	return s.member(ctx, id)
}

func (s *MemberService) List(ctx context.Context) ([]core.Member, error) {
	return s.members(ctx)
}

// Assignments lists every month the member holds across groups.
func (s *MemberService) Assignments(ctx context.Context, id string) ([]core.Assignment, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.assignments(ctx, store.AssignmentFilter{MemberID: id})
}

// RefreshTotals recomputes the member's running totals from their claims and payments.
func (s *MemberService) RefreshTotals(ctx context.Context, id string) (core.Member, error) {
	if id == "" {
		return core.Member{}, core.Invalid("id", "is required")
	}
	if err := refreshMemberTotals(ctx, s.st, id); err != nil {
		return core.Member{}, err
	}
	s.invalidate(EntityMembers)
	return s.st.GetMember(ctx, id)
}

// Messages returns the member's inbox, newest first.
func (s *MemberService) Messages(ctx context.Context, id string) ([]core.Message, error) {
	if id == "" {
		return nil, core.Invalid("id", "is required")
	}
	if _, err := s.member(ctx, id); err != nil {
		return nil, err
	}
	key := cache.Key(EntityMessages, map[string]string{"member": id})
	return cache.Fetch(ctx, s.cache, key, func(ctx context.Context) ([]core.Message, error) {
		return s.st.ListMessages(ctx, id)
	})
}

func (s *MemberService) MarkMessageRead(ctx context.Context, messageID string) error {
	if messageID == "" {
		return core.Invalid("id", "is required")
	}
	if err := s.st.MarkMessageRead(ctx, messageID, s.now()); err != nil {
		return err
	}
	s.invalidate(EntityMessages)
	return nil
}
