package sheets

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// LedgerRow is one line of the payment ledger spreadsheet.
type LedgerRow struct {
	RecordedAt time.Time
	Event      string
	PaymentID  string
	GroupID    string
	GroupName  string
	MemberID   string
	MemberName string
	Month      string
	Amount     decimal.Decimal
	Fine       decimal.Decimal
	Method     string
	Status     string
}

// Ports for outbound adapters.
type (
	LedgerWriter interface {
		AppendPayment(ctx context.Context, row LedgerRow) (rowRef string, err error)
	}

	// LedgerReader lets consumers skip rows they already wrote when an
	// event is delivered more than once.
	LedgerReader interface {
		HasEntry(ctx context.Context, paymentID, status string) (bool, error)
	}

	Ledger interface {
		LedgerWriter
		LedgerReader
	}
)
