package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"susu/internal/core"
	"susu/internal/store"
)

func seeded(t *testing.T) *Store {
	t.Helper()
	s, err := NewFromFile("testdata/seed.yaml")
	if err != nil {
		t.Fatalf("NewFromFile: %v", err)
	}
	return s
}

func month(t *testing.T, s string) core.Month {
	t.Helper()
	m, err := core.ParseMonth(s)
	if err != nil {
		t.Fatalf("ParseMonth(%q): %v", s, err)
	}
	return m
}

func TestNewFromFile(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	g, err := s.GetGroup(ctx, "g1")
	if err != nil {
		t.Fatalf("GetGroup: %v", err)
	}
	if !g.Contribution.Equal(decimal.RequireFromString("250")) {
		t.Errorf("contribution = %s", g.Contribution)
	}
	if g.DeadlineDay == nil || *g.DeadlineDay != 5 {
		t.Errorf("deadline day = %v", g.DeadlineDay)
	}
	if !g.LateFinePercent.Valid || !g.LateFinePercent.Decimal.Equal(decimal.NewFromInt(2)) {
		t.Errorf("late fine percent = %+v", g.LateFinePercent)
	}

	as, err := s.ListAssignments(ctx, store.AssignmentFilter{GroupID: "g1"})
	if err != nil {
		t.Fatalf("ListAssignments: %v", err)
	}
	if len(as) != 1 || as[0].MemberName != "Abena" || as[0].Month != month(t, "2024-03") {
		t.Fatalf("unexpected assignments %+v", as)
	}
}

func TestNewFromFileErrors(t *testing.T) {
	if _, err := NewFromFile("testdata/missing.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}

	s := New()
	fx := Fixture{Groups: []fixtureGroup{{ID: "g", Name: "x", Contribution: "10", MaxMembers: 1, StartMonth: "2024-05", EndMonth: "2024-01"}}}
	err := s.Seed(context.Background(), fx, time.Now())
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error for inverted range, got %v", err)
	}
}

func TestCreateAssignmentUniqueness(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		a       core.Assignment
		wantErr error
	}{
		{"new month", core.Assignment{ID: "a2", GroupID: "g1", MemberID: "m2", Month: month(t, "2024-04")}, nil},
		{"same member second month", core.Assignment{ID: "a3", GroupID: "g1", MemberID: "m1", Month: month(t, "2024-05")}, nil},
		{"taken by other member", core.Assignment{ID: "a4", GroupID: "g1", MemberID: "m2", Month: month(t, "2024-03")}, core.ErrDuplicateMonthClaim},
		{"identical triple", core.Assignment{ID: "a5", GroupID: "g1", MemberID: "m1", Month: month(t, "2024-03")}, core.ErrDuplicateMonthClaim},
		{"unknown group", core.Assignment{ID: "a6", GroupID: "nope", MemberID: "m1", Month: month(t, "2024-02")}, core.ErrNotFound},
		{"unknown member", core.Assignment{ID: "a7", GroupID: "g1", MemberID: "nope", Month: month(t, "2024-02")}, core.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.CreateAssignment(ctx, tt.a)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	var dup *core.DuplicateMonthClaimError
	err := s.CreateAssignment(ctx, core.Assignment{ID: "a8", GroupID: "g1", MemberID: "m2", Month: month(t, "2024-03")})
	if !errors.As(err, &dup) || dup.HeldBy != "Abena" {
		t.Fatalf("expected holder in duplicate error, got %v", err)
	}
}

func TestDeleteAssignmentsDetachesPayments(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	as, _ := s.ListAssignments(ctx, store.AssignmentFilter{GroupID: "g1", MemberID: "m1"})
	aid := as[0].ID
	if err := s.CreateAssignment(ctx, core.Assignment{ID: "a2", GroupID: "g1", MemberID: "m1", Month: month(t, "2024-04")}); err != nil {
		t.Fatal(err)
	}
	p := core.Payment{
		ID: "p1", AssignmentID: &aid, GroupID: "g1", MemberID: "m1", Month: month(t, "2024-03"),
		Amount: decimal.NewFromInt(250), PaidAt: time.Now(), Method: core.MethodCash, Status: core.StatusReceived,
	}
	if err := s.CreatePayment(ctx, p); err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}

	m := month(t, "2024-03")
	n, err := s.DeleteAssignments(ctx, "g1", "m1", &m)
	if err != nil || n != 1 {
		t.Fatalf("DeleteAssignments = %d, %v", n, err)
	}
	got, err := s.GetPayment(ctx, "p1")
	if err != nil {
		t.Fatalf("payment should survive unassign: %v", err)
	}
	if got.AssignmentID != nil {
		t.Fatalf("payment still linked to %s", *got.AssignmentID)
	}

	// The month is free again.
	if err := s.CreateAssignment(ctx, core.Assignment{ID: "a9", GroupID: "g1", MemberID: "m2", Month: m}); err != nil {
		t.Fatalf("re-claim after release: %v", err)
	}

	n, err = s.DeleteAssignments(ctx, "g1", "m1", nil)
	if err != nil || n != 1 {
		t.Fatalf("DeleteAssignments(all) = %d, %v", n, err)
	}
	n, _ = s.DeleteAssignments(ctx, "g1", "m1", nil)
	if n != 0 {
		t.Fatalf("second delete removed %d", n)
	}
}

func TestDeleteGroupCascades(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	if err := s.DeleteGroup(ctx, "g1"); err != nil {
		t.Fatalf("DeleteGroup: %v", err)
	}
	as, _ := s.ListAssignments(ctx, store.AssignmentFilter{})
	if len(as) != 0 {
		t.Fatalf("assignments survived group delete: %+v", as)
	}
	if err := s.DeleteGroup(ctx, "g1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete = %v, want not found", err)
	}
}

func TestUpdateMemberKeepsTotalsAndRenamesClaims(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	next := month(t, "2024-03")
	if err := s.UpdateMemberTotals(ctx, "m1", store.MemberTotals{TotalReceived: decimal.NewFromInt(500), NextPaymentMonth: &next}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateMember(ctx, core.Member{ID: "m1", Name: "Abena Mensah"}); err != nil {
		t.Fatal(err)
	}
	m, _ := s.GetMember(ctx, "m1")
	if !m.TotalReceived.Equal(decimal.NewFromInt(500)) || m.NextPaymentMonth == nil {
		t.Fatalf("totals lost on update: %+v", m)
	}
	as, _ := s.ListAssignments(ctx, store.AssignmentFilter{MemberID: "m1"})
	if as[0].MemberName != "Abena Mensah" {
		t.Fatalf("assignment name = %q", as[0].MemberName)
	}
}

func TestUsersEmailUnique(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.CreateUser(ctx, core.User{ID: "u1", Email: "admin@example.com", Role: core.RoleAdmin}); err != nil {
		t.Fatal(err)
	}
	err := s.CreateUser(ctx, core.User{ID: "u2", Email: "ADMIN@example.com", Role: core.RoleViewer})
	if !errors.Is(err, core.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	u, err := s.GetUserByEmail(ctx, "Admin@Example.com")
	if err != nil || u.ID != "u1" {
		t.Fatalf("GetUserByEmail = %+v, %v", u, err)
	}
}

func TestMessages(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"x1", "x2"} {
		msg := core.Message{ID: id, MemberID: "m1", Kind: "slot.assigned", Subject: "s", CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := s.CreateMessage(ctx, msg); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.CreateMessage(ctx, core.Message{ID: "x3", MemberID: "ghost"}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found for unknown member, got %v", err)
	}

	msgs, _ := s.ListMessages(ctx, "m1")
	if len(msgs) != 2 || msgs[0].ID != "x2" {
		t.Fatalf("expected newest first, got %+v", msgs)
	}
	if err := s.MarkMessageRead(ctx, "x1", base); err != nil {
		t.Fatal(err)
	}
	msgs, _ = s.ListMessages(ctx, "m1")
	if msgs[1].ReadAt == nil {
		t.Fatal("message not marked read")
	}
}
