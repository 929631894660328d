package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDueDate(t *testing.T) {
	day := func(d int) *int { return &d }
	tests := []struct {
		name     string
		deadline *int
		month    Month
		want     string
	}{
		{"no deadline uses last day", nil, Month{2024, time.February}, "2024-02-29"},
		{"deadline inside month", day(10), Month{2024, time.March}, "2024-03-10"},
		{"deadline clamped", day(31), Month{2024, time.April}, "2024-04-30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := validGroup()
			g.DeadlineDay = tt.deadline
			if got := g.DueDate(tt.month).Format("2006-01-02"); got != tt.want {
				t.Fatalf("DueDate = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLateFine(t *testing.T) {
	d := 10
	g := validGroup() // contribution 250.00
	g.DeadlineDay = &d
	g.LateFinePercent = decimal.NewNullDecimal(decimal.RequireFromString("5"))
	g.LateFineAmount = decimal.NewNullDecimal(decimal.RequireFromString("2.50"))
	m := Month{2024, time.March}

	onTime := time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC)
	if fine := g.LateFine(m, onTime); !fine.IsZero() {
		t.Fatalf("payment on the deadline day should not be fined, got %s", fine)
	}

	late := time.Date(2024, 3, 11, 8, 0, 0, 0, time.UTC)
	if fine := g.LateFine(m, late); FormatAmount(fine) != "15.00" {
		t.Fatalf("expected 12.50 + 2.50 = 15.00, got %s", FormatAmount(fine))
	}

	g.LateFinePercent = decimal.NullDecimal{}
	if fine := g.LateFine(m, late); FormatAmount(fine) != "2.50" {
		t.Fatalf("expected fixed fine only, got %s", FormatAmount(fine))
	}

	g.LateFineAmount = decimal.NullDecimal{}
	if fine := g.LateFine(m, late); !fine.IsZero() {
		t.Fatalf("expected no fine without fine settings, got %s", fine)
	}
}
