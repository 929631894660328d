package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"susu/internal/amqp"
	"susu/internal/cache"
	"susu/internal/core"
	"susu/internal/store/memory"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []*amqp.Event
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, e *amqp.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

func (f *fakePublisher) types() []amqp.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]amqp.EventType, len(f.events))
	for i, e := range f.events {
		out[i] = e.Type
	}
	return out
}

var created = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func mustMonth(t *testing.T, s string) core.Month {
	t.Helper()
	m, err := core.ParseMonth(s)
	if err != nil {
		t.Fatalf("ParseMonth(%q): %v", s, err)
	}
	return m
}

// fixture is a memory store with group g1 spanning 2024-01..2024-06 and
// members m1..m4.
type fixture struct {
	st    *memory.Store
	cache *cache.ReadThrough
	pub   *fakePublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	deadline := 5
	g := core.Group{
		ID:              "g1",
		Name:            "Market women circle",
		Contribution:    decimal.RequireFromString("250.00"),
		MaxMembers:      3,
		StartMonth:      mustMonth(t, "2024-01"),
		EndMonth:        mustMonth(t, "2024-06"),
		DeadlineDay:     &deadline,
		LateFinePercent: decimal.NewNullDecimal(decimal.NewFromInt(2)),
		CreatedAt:       created,
		UpdatedAt:       created,
	}
	if err := st.CreateGroup(ctx, g); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	for _, m := range []core.Member{
		{ID: "m1", Name: "Abena"},
		{ID: "m2", Name: "Kofi"},
		{ID: "m3", Name: "Ama"},
		{ID: "m4", Name: "Yaw"},
	} {
		m.RegisteredAt = created
		if err := st.CreateMember(ctx, m); err != nil {
			t.Fatalf("CreateMember: %v", err)
		}
	}
	return &fixture{
		st:    st,
		cache: cache.NewReadThrough(128, time.Minute),
		pub:   &fakePublisher{},
	}
}

func (f *fixture) slots() *SlotService {
	return NewSlotService(f.st, f.cache, NewNotifier(f.pub))
}

func (f *fixture) payments(now time.Time) *PaymentService {
	s := NewPaymentService(f.st, f.cache, NewNotifier(f.pub))
	s.now = func() time.Time { return now }
	return s
}

func (f *fixture) assign(t *testing.T, member, month string) core.Assignment {
	t.Helper()
	a, err := f.slots().Assign(context.Background(), "g1", member, month)
	if err != nil {
		t.Fatalf("Assign(%s, %s): %v", member, month, err)
	}
	return a
}

func TestNotifierWithoutPublisher(t *testing.T) {
	var n *Notifier
	n.Notify(context.Background(), amqp.NewEvent(amqp.EventSlotAssigned, "g1", "m1", "2024-01"))
	NewNotifier(nil).Notify(context.Background(), amqp.NewEvent(amqp.EventSlotAssigned, "g1", "m1", "2024-01"))
}

func TestNotifierSwallowsPublishErrors(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	NewNotifier(pub).Notify(context.Background(), amqp.NewEvent(amqp.EventSlotAssigned, "g1", "m1", "2024-01"))
	if len(pub.types()) != 0 {
		t.Fatal("failed publish must not record an event")
	}
}
