package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"susu/internal/amqp"
	"susu/internal/core"
	"susu/internal/store"
)

func TestRecordPayment(t *testing.T) {
	tests := []struct {
		name     string
		paidAt   time.Time
		wantFine string
	}{
		{name: "on deadline", paidAt: time.Date(2024, 3, 5, 18, 0, 0, 0, time.UTC), wantFine: "0"},
		{name: "early", paidAt: time.Date(2024, 2, 27, 8, 0, 0, 0, time.UTC), wantFine: "0"},
		{name: "late", paidAt: time.Date(2024, 3, 6, 8, 0, 0, 0, time.UTC), wantFine: "5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			a := f.assign(t, "m1", "2024-03")
			p, err := f.payments(tt.paidAt).Record(context.Background(), PaymentInput{
				GroupID:  "g1",
				MemberID: "m1",
				Month:    "2024-03",
				PaidAt:   tt.paidAt,
				Method:   core.MethodCash,
			})
			if err != nil {
				t.Fatalf("Record: %v", err)
			}
			if !p.Amount.Equal(decimal.RequireFromString("250")) {
				t.Errorf("amount = %s", p.Amount)
			}
			if !p.Fine.Equal(decimal.RequireFromString(tt.wantFine)) {
				t.Errorf("fine = %s, want %s", p.Fine, tt.wantFine)
			}
			if p.Status != core.StatusPending {
				t.Errorf("status = %s, want pending default", p.Status)
			}
			if p.AssignmentID == nil || *p.AssignmentID != a.ID {
				t.Errorf("assignment link = %v, want %s", p.AssignmentID, a.ID)
			}
		})
	}
}

func TestRecordPaymentErrors(t *testing.T) {
	f := newFixture(t)
	f.assign(t, "m1", "2024-03")
	svc := f.payments(created)
	ctx := context.Background()

	tests := []struct {
		name string
		in   PaymentInput
		want error
	}{
		{"missing fields", PaymentInput{Method: core.MethodCash}, core.ErrValidation},
		{"bad method", PaymentInput{GroupID: "g1", MemberID: "m1", Month: "2024-03", Method: "cheque"}, core.ErrValidation},
		{"bad status", PaymentInput{GroupID: "g1", MemberID: "m1", Month: "2024-03", Method: core.MethodCash, Status: "lost"}, core.ErrValidation},
		{"unassigned month", PaymentInput{GroupID: "g1", MemberID: "m1", Month: "2024-04", Method: core.MethodCash}, core.ErrNotFound},
		{"month held by someone else", PaymentInput{GroupID: "g1", MemberID: "m2", Month: "2024-03", Method: core.MethodCash}, core.ErrNotFound},
		{"unknown group", PaymentInput{GroupID: "g9", MemberID: "m1", Month: "2024-03", Method: core.MethodCash}, core.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Record(ctx, tt.in); !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestUpdatePaymentStatus(t *testing.T) {
	f := newFixture(t)
	f.assign(t, "m1", "2024-03")
	svc := f.payments(time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	p, err := svc.Record(ctx, PaymentInput{GroupID: "g1", MemberID: "m1", Month: "2024-03", Method: core.MethodBankTransfer})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	steps := []struct {
		to      core.PaymentStatus
		wantErr bool
	}{
		{core.StatusNotPaid, false},
		{core.StatusPending, false},
		{core.StatusReceived, false},
		{core.StatusPending, true},
		{core.StatusSettled, false},
		{core.StatusNotPaid, true},
		{"bogus", true},
	}
	for _, st := range steps {
		got, err := svc.UpdateStatus(ctx, p.ID, st.to)
		if st.wantErr {
			if !errors.Is(err, core.ErrValidation) {
				t.Fatalf("-> %s: error = %v, want validation", st.to, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("-> %s: %v", st.to, err)
		}
		if got.Status != st.to {
			t.Fatalf("status = %s, want %s", got.Status, st.to)
		}
	}

	m, err := f.st.GetMember(ctx, "m1")
	if err != nil {
		t.Fatalf("GetMember: %v", err)
	}
	if !m.TotalReceived.Equal(decimal.RequireFromString("250")) {
		t.Errorf("total received = %s", m.TotalReceived)
	}
	if m.NextPaymentMonth != nil {
		t.Errorf("next payment month = %v, want none", m.NextPaymentMonth)
	}

	var changes int
	for _, typ := range f.pub.types() {
		if typ == amqp.EventPaymentStatusChanged {
			changes++
		}
	}
	if changes != 4 {
		t.Errorf("status change events = %d, want 4", changes)
	}

	if _, err := svc.UpdateStatus(ctx, "missing", core.StatusSettled); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("unknown payment error = %v", err)
	}
}

func TestUnassignKeepsPaymentHistory(t *testing.T) {
	f := newFixture(t)
	f.assign(t, "m1", "2024-02")
	ctx := context.Background()
	p, err := f.payments(created).Record(ctx, PaymentInput{GroupID: "g1", MemberID: "m1", Month: "2024-02", Method: core.MethodCash})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := f.slots().Unassign(ctx, "g1", "m1", nil); err != nil {
		t.Fatalf("Unassign: %v", err)
	}

	svc := f.payments(created)
	got, err := svc.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.AssignmentID != nil {
		t.Errorf("assignment link = %v, want cleared", *got.AssignmentID)
	}
	list, err := svc.List(ctx, store.PaymentFilter{GroupID: "g1"})
	if err != nil || len(list) != 1 {
		t.Fatalf("List = %d, %v", len(list), err)
	}
	if _, err := svc.List(ctx, store.PaymentFilter{Status: "weird"}); !errors.Is(err, core.ErrValidation) {
		t.Errorf("bad status filter error = %v", err)
	}
}
