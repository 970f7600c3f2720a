package sheets

import (
	"context"

	"finledger/internal/core"
)

// TransactionWriter appends a committed transaction to an external sheet.
// The export is best-effort; callers log failures and move on.
type TransactionWriter interface {
	Append(ctx context.Context, tx core.Transaction) (rowRef string, err error)
}
