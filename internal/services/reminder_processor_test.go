package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"susu/internal/amqp"
	"susu/internal/core"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestReminderRules(t *testing.T) {
	due := day(2024, 3, 5)
	rules := DefaultReminderRules(3)
	tests := []struct {
		now  time.Time
		want ReminderKind
		ok   bool
	}{
		{day(2024, 3, 1), "", false},
		{day(2024, 3, 2), ReminderUpcoming, true},
		{day(2024, 3, 5).Add(20 * time.Hour), ReminderUpcoming, true},
		{day(2024, 3, 6), ReminderOverdue, true},
		{day(2024, 4, 1), ReminderOverdue, true},
	}
	for _, tt := range tests {
		t.Run(tt.now.Format(time.DateTime), func(t *testing.T) {
			got, ok := rules.Match(due, tt.now)
			if got != tt.want || ok != tt.ok {
				t.Errorf("Match = %q, %v; want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}

	if _, err := rules.Get("weekly"); err == nil {
		t.Error("expected error for unknown kind")
	}
	rules.Register(ReminderUpcoming, UpcomingRule{LeadDays: 10})
	if _, ok := rules.Match(due, day(2024, 2, 25)); !ok {
		t.Error("registered rule not used")
	}
}

func TestProcessDue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.assign(t, "m1", "2024-01")
	f.assign(t, "m1", "2024-03")
	f.assign(t, "m2", "2024-02")
	f.assign(t, "m3", "2024-05")

	pay := f.payments(day(2024, 1, 3))
	p, err := pay.Record(ctx, PaymentInput{GroupID: "g1", MemberID: "m1", Month: "2024-01", Method: core.MethodCash})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := pay.UpdateStatus(ctx, p.ID, core.StatusSettled); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	pub := &fakePublisher{}
	proc := NewReminderProcessor(f.st, pub, ReminderProcessorConfig{Interval: time.Hour, LeadDays: 3})
	now := day(2024, 3, 3).Add(9 * time.Hour)
	proc.now = func() time.Time { return now }

	n, err := proc.ProcessDue(ctx)
	if err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if n != 2 {
		t.Fatalf("published %d, want 2", n)
	}
	kinds := map[string]string{}
	for _, e := range pub.events {
		if e.Type != amqp.EventPaymentReminder {
			t.Fatalf("event type = %s", e.Type)
		}
		kinds[e.MemberID+" "+e.Month] = e.Reminder
	}
	if kinds["m1 2024-03"] != "upcoming" || kinds["m2 2024-02"] != "overdue" {
		t.Fatalf("reminders = %v", kinds)
	}
	if pub.events[0].Amount != "250.00" || pub.events[0].DueDate == "" {
		t.Errorf("event = %+v", pub.events[0])
	}

	// same day: already reminded
	if n, _ := proc.ProcessDue(ctx); n != 0 {
		t.Fatalf("second run published %d, want 0", n)
	}

	now = now.Add(24 * time.Hour)
	if n, _ := proc.ProcessDue(ctx); n != 2 {
		t.Fatalf("next day published %d, want 2", n)
	}
}

func TestProcessDueRetriesFailedPublish(t *testing.T) {
	f := newFixture(t)
	f.assign(t, "m2", "2024-02")
	pub := &fakePublisher{err: errors.New("broker down")}
	proc := NewReminderProcessor(f.st, pub, DefaultReminderProcessorConfig())
	proc.now = func() time.Time { return day(2024, 3, 1) }

	if n, err := proc.ProcessDue(context.Background()); err != nil || n != 0 {
		t.Fatalf("ProcessDue = %d, %v", n, err)
	}
	pub.err = nil
	if n, _ := proc.ProcessDue(context.Background()); n != 1 {
		t.Fatalf("retry published %d, want 1", n)
	}
}

func TestReminderProcessorLifecycle(t *testing.T) {
	f := newFixture(t)
	proc := NewReminderProcessor(f.st, &fakePublisher{}, ReminderProcessorConfig{Interval: 10 * time.Millisecond, LeadDays: 3})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if proc.IsRunning() {
		t.Fatal("processor should not be running initially")
	}
	if err := proc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := proc.Start(ctx); err == nil {
		t.Error("expected error when starting already running processor")
	}
	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := proc.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if proc.IsRunning() {
		t.Error("processor still running after Stop")
	}
	if err := proc.Stop(stopCtx); err != nil {
		t.Errorf("Stop when not running: %v", err)
	}
}

func TestProcessDueNotInitialized(t *testing.T) {
	proc := NewReminderProcessor(nil, nil, DefaultReminderProcessorConfig())
	if _, err := proc.ProcessDue(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

type neverRule struct{}

func (neverRule) Applies(due, now time.Time) bool { return false }

func TestProcessDueWithReplacedRule(t *testing.T) {
	f := newFixture(t)
	f.assign(t, "m1", "2024-03")
	f.assign(t, "m2", "2024-02")
	pub := &fakePublisher{}
	proc := NewReminderProcessor(f.st, pub, ReminderProcessorConfig{Interval: time.Hour, LeadDays: 3})
	proc.Rules().Register(ReminderUpcoming, neverRule{})
	proc.now = func() time.Time { return day(2024, 3, 3).Add(9 * time.Hour) }

	n, err := proc.ProcessDue(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("ProcessDue = %d, %v; want 1 overdue reminder", n, err)
	}
	if e := pub.events[0]; e.MemberID != "m2" || e.Reminder != "overdue" {
		t.Fatalf("event = %+v", e)
	}
}
