package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	ports "susu/internal/sheets"
)

// Ledger keeps ledger rows in memory. Used when no spreadsheet is configured.
type Ledger struct {
	mu   sync.Mutex
	rows []ports.LedgerRow
}

var _ ports.Ledger = (*Ledger)(nil)

func New() *Ledger {
	return &Ledger{}
}

// AppendPayment stores the row and returns a synthetic row reference.
func (l *Ledger) AppendPayment(_ context.Context, row ports.LedgerRow) (string, error) {
	if row.PaymentID == "" {
		return "", errors.New("ledger row without payment id")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows = append(l.rows, row)
	return fmt.Sprintf("mem:%d", len(l.rows)), nil
}

func (l *Ledger) HasEntry(_ context.Context, paymentID, status string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.rows {
		if r.PaymentID == paymentID && strings.EqualFold(r.Status, status) {
			return true, nil
		}
	}
	return false, nil
}

// Rows returns a copy of every stored row in append order.
func (l *Ledger) Rows() []ports.LedgerRow {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ports.LedgerRow(nil), l.rows...)
}
