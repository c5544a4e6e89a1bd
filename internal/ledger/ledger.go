package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Entry is one normalized transaction envelope from the ledger history API.
type Entry struct {
	Hash           string
	TxType         string
	Account        string
	Destination    string
	DestinationTag *uint32
	Amount         decimal.Decimal
	Currency       string
	LedgerIndex    int64
	ClosedAt       time.Time
	Validated      bool
}

// TransactionFetcher retrieves validated transactions for one account,
// strictly newer than minLedger. A negative minLedger means "no cursor";
// implementations return only the most recent page in that case.
type TransactionFetcher interface {
	AccountTransactions(ctx context.Context, account string, minLedger int64) ([]Entry, error)
}
