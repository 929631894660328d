// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for payment reminders.
// Each reminder kind (upcoming, overdue) has its own rule that decides
// whether an unpaid month should be reminded about today.

package services

import (
	"fmt"
	"time"
)

// ReminderKind names a reminder rule.
type ReminderKind string

const (
	ReminderUpcoming ReminderKind = "upcoming"
	ReminderOverdue  ReminderKind = "overdue"
)

// ReminderRule is the strategy interface for deciding whether an unpaid month
// with the given due date needs a reminder at now.
type ReminderRule interface {
	Applies(due, now time.Time) bool
}

// UpcomingRule fires from LeadDays before the due date up to the due date itself.
type UpcomingRule struct {
	LeadDays int
}

func (r UpcomingRule) Applies(due, now time.Time) bool {
	today := truncateDay(now)
	if today.After(due) {
		return false
	}
	return !today.Before(due.AddDate(0, 0, -r.LeadDays))
}

// OverdueRule fires every day after the due date.
type OverdueRule struct{}

func (OverdueRule) Applies(due, now time.Time) bool {
	return truncateDay(now).After(due)
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// reminderOrder is the evaluation order; the first matching rule wins.
var reminderOrder = []ReminderKind{ReminderOverdue, ReminderUpcoming}

// ReminderRules maps reminder kinds to their rules.
type ReminderRules map[ReminderKind]ReminderRule

// DefaultReminderRules returns the standard rules with the given lead window.
func DefaultReminderRules(leadDays int) ReminderRules {
	return ReminderRules{
		ReminderUpcoming: UpcomingRule{LeadDays: leadDays},
		ReminderOverdue:  OverdueRule{},
	}
}

// Get returns the rule for kind.
func (r ReminderRules) Get(kind ReminderKind) (ReminderRule, error) {
	rule, ok := r[kind]
	if !ok {
		return nil, fmt.Errorf("unknown reminder kind: %s", kind)
	}
	return rule, nil
}

// Register installs or replaces the rule for kind.
func (r ReminderRules) Register(kind ReminderKind, rule ReminderRule) {
	r[kind] = rule
}

// Match returns the first kind whose rule applies.
func (r ReminderRules) Match(due, now time.Time) (ReminderKind, bool) {
	for _, kind := range reminderOrder {
		rule, ok := r[kind]
		if ok && rule.Applies(due, now) {
			return kind, true
		}
	}
	return "", false
}
