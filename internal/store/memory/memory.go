package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"susu/internal/core"
	"susu/internal/store"
)

// Store keeps every entity in mutex-guarded maps. It enforces the same
// uniqueness and cascade rules as the SQLite backend.
type Store struct {
	mu          sync.Mutex
	groups      map[string]core.Group
	members     map[string]core.Member
	assignments map[string]core.Assignment
	payments    map[string]core.Payment
	messages    map[string]core.Message
	users       map[string]core.User

	// claims indexes assignments by (group, month).
	claims map[claimKey]string
}

type claimKey struct {
	group string
	month core.Month
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		groups:      make(map[string]core.Group),
		members:     make(map[string]core.Member),
		assignments: make(map[string]core.Assignment),
		payments:    make(map[string]core.Payment),
		messages:    make(map[string]core.Message),
		users:       make(map[string]core.User),
		claims:      make(map[claimKey]string),
	}
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }

// Groups

func (s *Store) CreateGroup(_ context.Context, g core.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[g.ID]; ok {
		return fmt.Errorf("group %s: %w", g.ID, core.ErrConflict)
	}
	s.groups[g.ID] = g
	return nil
}

func (s *Store) UpdateGroup(_ context.Context, g core.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.groups[g.ID]
	if !ok {
		return core.NewNotFound("group", g.ID)
	}
	g.CreatedAt = old.CreatedAt
	s.groups[g.ID] = g
	return nil
}

func (s *Store) DeleteGroup(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[id]; !ok {
		return core.NewNotFound("group", id)
	}
	delete(s.groups, id)
	for aid, a := range s.assignments {
		if a.GroupID == id {
			s.dropAssignment(aid)
		}
	}
	for pid, p := range s.payments {
		if p.GroupID == id {
			delete(s.payments, pid)
		}
	}
	return nil
}

func (s *Store) GetGroup(_ context.Context, id string) (core.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return core.Group{}, core.NewNotFound("group", id)
	}
	return g, nil
}

func (s *Store) ListGroups(_ context.Context) ([]core.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Group, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Members

func (s *Store) CreateMember(_ context.Context, m core.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[m.ID]; ok {
		return fmt.Errorf("member %s: %w", m.ID, core.ErrConflict)
	}
	s.members[m.ID] = m
	return nil
}

func (s *Store) UpdateMember(_ context.Context, m core.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.members[m.ID]
	if !ok {
		return core.NewNotFound("member", m.ID)
	}
	m.RegisteredAt = old.RegisteredAt
	m.TotalReceived = old.TotalReceived
	m.LastPaymentAt = old.LastPaymentAt
	m.NextPaymentMonth = old.NextPaymentMonth
	s.members[m.ID] = m
	if m.Name != old.Name {
		for id, a := range s.assignments {
			if a.MemberID == m.ID {
				a.MemberName = m.Name
				s.assignments[id] = a
			}
		}
	}
	return nil
}

func (s *Store) UpdateMemberTotals(_ context.Context, id string, t store.MemberTotals) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return core.NewNotFound("member", id)
	}
	m.TotalReceived = t.TotalReceived
	m.LastPaymentAt = t.LastPaymentAt
	m.NextPaymentMonth = t.NextPaymentMonth
	s.members[id] = m
	return nil
}

func (s *Store) DeleteMember(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[id]; !ok {
		return core.NewNotFound("member", id)
	}
	delete(s.members, id)
	for aid, a := range s.assignments {
		if a.MemberID == id {
			s.dropAssignment(aid)
		}
	}
	for pid, p := range s.payments {
		if p.MemberID == id {
			delete(s.payments, pid)
		}
	}
	for mid, msg := range s.messages {
		if msg.MemberID == id {
			delete(s.messages, mid)
		}
	}
	return nil
}

func (s *Store) GetMember(_ context.Context, id string) (core.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return core.Member{}, core.NewNotFound("member", id)
	}
	return m, nil
}

func (s *Store) ListMembers(_ context.Context) ([]core.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Member, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Assignments

func (s *Store) CreateAssignment(_ context.Context, a core.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[a.GroupID]; !ok {
		return core.NewNotFound("group", a.GroupID)
	}
	m, ok := s.members[a.MemberID]
	if !ok {
		return core.NewNotFound("member", a.MemberID)
	}
	key := claimKey{group: a.GroupID, month: a.Month}
	if holder, taken := s.claims[key]; taken {
		return &core.DuplicateMonthClaimError{
			GroupID: a.GroupID,
			Month:   a.Month,
			HeldBy:  s.assignments[holder].MemberName,
		}
	}
	a.MemberName = m.Name
	s.assignments[a.ID] = a
	s.claims[key] = a.ID
	return nil
}

func (s *Store) DeleteAssignments(_ context.Context, groupID, memberID string, month *core.Month) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, a := range s.assignments {
		if a.GroupID != groupID || a.MemberID != memberID {
			continue
		}
		if month != nil && a.Month != *month {
			continue
		}
		s.dropAssignment(id)
		removed++
	}
	return removed, nil
}

// dropAssignment removes one assignment and clears payment links to it.
// Callers hold s.mu.
func (s *Store) dropAssignment(id string) {
	a, ok := s.assignments[id]
	if !ok {
		return
	}
	delete(s.assignments, id)
	delete(s.claims, claimKey{group: a.GroupID, month: a.Month})
	for pid, p := range s.payments {
		if p.AssignmentID != nil && *p.AssignmentID == id {
			p.AssignmentID = nil
			s.payments[pid] = p
		}
	}
}

func (s *Store) ListAssignments(_ context.Context, f store.AssignmentFilter) ([]core.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Assignment
	for _, a := range s.assignments {
		if f.Matches(a) {
			out = append(out, a)
		}
	}
	core.SortAssignments(out)
	return out, nil
}

// Payments

func (s *Store) CreatePayment(_ context.Context, p core.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[p.GroupID]; !ok {
		return core.NewNotFound("group", p.GroupID)
	}
	if _, ok := s.members[p.MemberID]; !ok {
		return core.NewNotFound("member", p.MemberID)
	}
	if p.AssignmentID != nil {
		if _, ok := s.assignments[*p.AssignmentID]; !ok {
			return core.NewNotFound("assignment", *p.AssignmentID)
		}
	}
	if _, ok := s.payments[p.ID]; ok {
		return fmt.Errorf("payment %s: %w", p.ID, core.ErrConflict)
	}
	s.payments[p.ID] = p
	return nil
}

func (s *Store) UpdatePaymentStatus(_ context.Context, id string, status core.PaymentStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return core.NewNotFound("payment", id)
	}
	p.Status = status
	p.UpdatedAt = at
	s.payments[id] = p
	return nil
}

func (s *Store) GetPayment(_ context.Context, id string) (core.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return core.Payment{}, core.NewNotFound("payment", id)
	}
	return p, nil
}

func (s *Store) ListPayments(_ context.Context, f store.PaymentFilter) ([]core.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Payment
	for _, p := range s.payments {
		if f.Matches(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PaidAt.Equal(out[j].PaidAt) {
			return out[i].PaidAt.After(out[j].PaidAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Messages

func (s *Store) CreateMessage(_ context.Context, m core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[m.MemberID]; !ok {
		return core.NewNotFound("member", m.MemberID)
	}
	if _, ok := s.messages[m.ID]; ok {
		return fmt.Errorf("message %s: %w", m.ID, core.ErrConflict)
	}
	s.messages[m.ID] = m
	return nil
}

func (s *Store) ListMessages(_ context.Context, memberID string) ([]core.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Message
	for _, m := range s.messages {
		if m.MemberID == memberID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) MarkMessageRead(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return core.NewNotFound("message", id)
	}
	if m.ReadAt == nil {
		m.ReadAt = &at
		s.messages[id] = m
	}
	return nil
}

// Users

func (s *Store) CreateUser(_ context.Context, u core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return fmt.Errorf("email %s already registered: %w", u.Email, core.ErrConflict)
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return core.User{}, core.NewNotFound("user", email)
}

func (s *Store) GetUserByID(_ context.Context, id string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, core.NewNotFound("user", id)
	}
	return u, nil
}

func (s *Store) ListUsers(_ context.Context) ([]core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return core.NewNotFound("user", id)
	}
	delete(s.users, id)
	return nil
}
