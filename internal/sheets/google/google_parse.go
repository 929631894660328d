package google

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	ports "susu/internal/sheets"
)

// ledgerHeader is the expected first row of the ledger sheet.
var ledgerHeader = []string{
	"Recorded", "Event", "Payment", "Group ID", "Group", "Member ID", "Member",
	"Month", "Amount", "Fine", "Method", "Status",
}

const ledgerColumns = "A:L"

// encodeRow renders a ledger row as sheet cell values.
func encodeRow(r ports.LedgerRow) []any {
	return []any{
		r.RecordedAt.UTC().Format(time.RFC3339),
		r.Event,
		r.PaymentID,
		r.GroupID,
		r.GroupName,
		r.MemberID,
		r.MemberName,
		r.Month,
		r.Amount.StringFixed(2),
		r.Fine.StringFixed(2),
		r.Method,
		r.Status,
	}
}

// parseRow converts a values row back into a LedgerRow. Header and short
// rows are reported with ok=false.
func parseRow(values []interface{}) (ports.LedgerRow, bool, error) {
	cols := toStrings(values)
	if len(cols) < len(ledgerHeader) {
		return ports.LedgerRow{}, false, nil
	}
	if strings.EqualFold(cols[0], ledgerHeader[0]) {
		return ports.LedgerRow{}, false, nil
	}
	recorded, err := time.Parse(time.RFC3339, cols[0])
	if err != nil {
		return ports.LedgerRow{}, false, fmt.Errorf("recorded %q: %w", cols[0], err)
	}
	amount, err := parseAmount(cols[8])
	if err != nil {
		return ports.LedgerRow{}, false, fmt.Errorf("amount %q: %w", cols[8], err)
	}
	fine, err := parseAmount(cols[9])
	if err != nil {
		return ports.LedgerRow{}, false, fmt.Errorf("fine %q: %w", cols[9], err)
	}
	return ports.LedgerRow{
		RecordedAt: recorded,
		Event:      cols[1],
		PaymentID:  cols[2],
		GroupID:    cols[3],
		GroupName:  cols[4],
		MemberID:   cols[5],
		MemberName: cols[6],
		Month:      cols[7],
		Amount:     amount,
		Fine:       fine,
		Method:     cols[10],
		Status:     cols[11],
	}, true, nil
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

// parseAmount accepts both decimal separators, as sheet locales differ.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
}
