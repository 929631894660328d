package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"susu/internal/amqp"
	"susu/internal/core"
	"susu/internal/log"
	"susu/internal/store"
)

// ReminderProcessorConfig holds configuration for the reminder processor
type ReminderProcessorConfig struct {
	// Interval is how often to scan for unpaid months (default: 1h)
	Interval time.Duration

	// LeadDays is how many days before the due date upcoming reminders start (default: 3)
	LeadDays int
}

// DefaultReminderProcessorConfig returns sensible defaults
func DefaultReminderProcessorConfig() ReminderProcessorConfig {
	return ReminderProcessorConfig{
		Interval: time.Hour,
		LeadDays: 3,
	}
}

// ReminderProcessor publishes payment reminders for assigned months that
// have no received or settled payment.
type ReminderProcessor struct {
	st     store.Store
	pub    Publisher
	rules  ReminderRules
	config ReminderProcessorConfig
	now    func() time.Time

	// sent remembers the day each (assignment, kind) was last reminded.
	sentMu sync.Mutex
	sent   map[string]time.Time

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewReminderProcessor(st store.Store, pub Publisher, config ReminderProcessorConfig) *ReminderProcessor {
	return &ReminderProcessor{
		st:     st,
		pub:    pub,
		rules:  DefaultReminderRules(config.LeadDays),
		config: config,
		now:    utcNow,
		sent:   make(map[string]time.Time),
	}
}

// Rules exposes the rule set so callers can register extra kinds.
func (p *ReminderProcessor) Rules() ReminderRules { return p.rules }

// Start begins the scan loop. Returns an error if already running.
func (p *ReminderProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("reminder processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Reminder processor started",
		"interval", p.config.Interval,
		"lead_days", p.config.LeadDays)
	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *ReminderProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Reminder processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Reminder processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

// IsRunning returns whether the processor is currently running
func (p *ReminderProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *ReminderProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	// Scan immediately on startup
	p.scan(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.scan(ctx)
		}
	}
}

func (p *ReminderProcessor) scan(ctx context.Context) {
	n, err := p.ProcessDue(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Reminder scan failed", log.FieldError, err)
		return
	}
	if n > 0 {
		slog.InfoContext(ctx, "Payment reminders published", "count", n)
	}
}

// ProcessDue publishes one reminder per unpaid in-range assignment whose due
// date matches a rule. An assignment is reminded at most once per kind per
// day. It returns how many reminders were published.
func (p *ReminderProcessor) ProcessDue(ctx context.Context) (int, error) {
	if p.st == nil || p.pub == nil {
		return 0, errors.New("reminder processor not properly initialized")
	}
	now := p.now()
	today := truncateDay(now)
	p.pruneSent(today)

	groups, err := p.st.ListGroups(ctx)
	if err != nil {
		return 0, fmt.Errorf("list groups: %w", err)
	}

	published := 0
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return published, err
		}
		n, err := p.processGroup(ctx, g, now, today)
		published += n
		if err != nil {
			slog.ErrorContext(ctx, "Failed to process group reminders",
				log.FieldGroupID, g.ID, log.FieldError, err)
		}
	}
	return published, nil
}

func (p *ReminderProcessor) processGroup(ctx context.Context, g core.Group, now, today time.Time) (int, error) {
	assignments, err := p.st.ListAssignments(ctx, store.AssignmentFilter{GroupID: g.ID})
	if err != nil {
		return 0, fmt.Errorf("list assignments: %w", err)
	}
	if len(assignments) == 0 {
		return 0, nil
	}
	payments, err := p.st.ListPayments(ctx, store.PaymentFilter{GroupID: g.ID})
	if err != nil {
		return 0, fmt.Errorf("list payments: %w", err)
	}
	paid := make(map[string]bool)
	for _, pay := range payments {
		if pay.Status.Paid() {
			paid[pay.MemberID+"|"+pay.Month.String()] = true
		}
	}

	published := 0
	for _, a := range assignments {
		if !g.Covers(a.Month) || paid[a.MemberID+"|"+a.Month.String()] {
			continue
		}
		due := g.DueDate(a.Month)
		kind, ok := p.rules.Match(due, now)
		if !ok {
			continue
		}
		key := a.ID + "|" + string(kind)
		if !p.markSent(key, today) {
			continue
		}

		e := amqp.NewEvent(amqp.EventPaymentReminder, g.ID, a.MemberID, a.Month.String())
		e.Amount = core.FormatAmount(g.Contribution)
		e.DueDate = due.Format(time.DateOnly)
		e.Reminder = string(kind)
		if err := p.pub.Publish(ctx, e); err != nil {
			p.unmarkSent(key)
			slog.ErrorContext(ctx, "Failed to publish reminder",
				log.FieldGroupID, g.ID,
				log.FieldMemberID, a.MemberID,
				log.FieldMonth, a.Month.String(),
				log.FieldError, err)
			continue
		}
		published++
	}
	return published, nil
}

// markSent records key for day and reports whether it was not yet recorded.
func (p *ReminderProcessor) markSent(key string, day time.Time) bool {
	p.sentMu.Lock()
	defer p.sentMu.Unlock()
	if last, ok := p.sent[key]; ok && last.Equal(day) {
		return false
	}
	p.sent[key] = day
	return true
}

func (p *ReminderProcessor) unmarkSent(key string) {
	p.sentMu.Lock()
	defer p.sentMu.Unlock()
	delete(p.sent, key)
}

func (p *ReminderProcessor) pruneSent(today time.Time) {
	p.sentMu.Lock()
	defer p.sentMu.Unlock()
	for k, day := range p.sent {
		if day.Before(today) {
			delete(p.sent, k)
		}
	}
}
