package core

import (
	"fmt"
	"time"
)

// Month is a calendar month at year-month granularity.
type Month struct {
	Year  int
	Month time.Month
}

// NewMonth builds a Month, normalising out-of-range month numbers.
func NewMonth(year int, month time.Month) Month {
	return monthFromIndex(year*12 + int(month) - 1)
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonth parses a strict "YYYY-MM" string.
func ParseMonth(s string) (Month, error) {
	if len(s) != 7 || s[4] != '-' {
		return Month{}, invalidMonth(s)
	}
	year, ok := atoiDigits(s[:4])
	if !ok || year < 1 {
		return Month{}, invalidMonth(s)
	}
	month, ok := atoiDigits(s[5:])
	if !ok || month < 1 || month > 12 {
		return Month{}, invalidMonth(s)
	}
	return Month{Year: year, Month: time.Month(month)}, nil
}

func invalidMonth(s string) error {
	return Invalid("month", fmt.Sprintf("%q is not a valid YYYY-MM month", s))
}

func atoiDigits(s string) (int, bool) {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

func monthFromIndex(idx int) Month {
	year := idx / 12
	rem := idx % 12
	if rem < 0 {
		rem += 12
		year--
	}
	return Month{Year: year, Month: time.Month(rem + 1)}
}

// String renders the month as YYYY-MM.
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// IsZero reports whether m is the zero Month.
func (m Month) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

// Index is the absolute month number, year*12 + (month-1).
func (m Month) Index() int {
	return m.Year*12 + int(m.Month) - 1
}

// Add returns the month n months after m (n may be negative).
func (m Month) Add(n int) Month {
	return monthFromIndex(m.Index() + n)
}

// Compare returns -1, 0 or +1.
func (m Month) Compare(o Month) int {
	a, b := m.Index(), o.Index()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (m Month) Before(o Month) bool { return m.Index() < o.Index() }
func (m Month) After(o Month) bool  { return m.Index() > o.Index() }

// FirstDay returns midnight UTC of the first day of the month.
func (m Month) FirstDay() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// DaysIn returns the number of days in the month.
func (m Month) DaysIn() int {
	return m.FirstDay().AddDate(0, 1, -1).Day()
}

// MarshalText implements encoding.TextMarshaler.
func (m Month) MarshalText() ([]byte, error) {
	if m.IsZero() {
		return []byte{}, nil
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Month) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*m = Month{}
		return nil
	}
	parsed, err := ParseMonth(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// MonthsBetween returns end - start in months.
func MonthsBetween(start, end Month) int {
	return end.Index() - start.Index()
}

// InRange reports whether start <= m <= end.
func InRange(m, start, end Month) bool {
	return !m.Before(start) && !m.After(end)
}

// ExpandRange returns every month in [start, end], or nil when start is after end.
func ExpandRange(start, end Month) []Month {
	if start.After(end) {
		return nil
	}
	out := make([]Month, 0, MonthsBetween(start, end)+1)
	for m := start; !m.After(end); m = m.Add(1) {
		out = append(out, m)
	}
	return out
}

// ExpandMonths lists every YYYY-MM month from start to end inclusive.
func ExpandMonths(start, end string) ([]string, error) {
	s, err := ParseMonth(start)
	if err != nil {
		return nil, err
	}
	e, err := ParseMonth(end)
	if err != nil {
		return nil, err
	}
	if s.After(e) {
		return nil, Invalid("end", fmt.Sprintf("end month %s is before start month %s", e, s))
	}
	months := ExpandRange(s, e)
	out := make([]string, len(months))
	for i, m := range months {
		out[i] = m.String()
	}
	return out, nil
}
