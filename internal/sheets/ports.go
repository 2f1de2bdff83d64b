// Package sheets defines the port to the cooperative's bookkeeping
// spreadsheet. The ledger in SQLite is the source of truth; the
// spreadsheet is an append-only mirror the treasurer can read.
package sheets

import (
	"context"

	"coopledger/internal/core"
)

type TransactionAppender interface {
	Append(ctx context.Context, tx core.FinancialTransaction) (rowRef string, err error)
}
