package asset

import (
	"context"

	"github.com/shopspring/decimal"
)

// Transferrer is the external asset-transfer capability the ledger calls
// into. Implementations move the configured reward/principal asset and may
// decline either direction; the ledger treats any error as TransferFailed.
type Transferrer interface {
	// TransferFrom moves amount from payer into ledger custody.
	TransferFrom(ctx context.Context, payer string, amount decimal.Decimal) error
	// Transfer moves amount out of ledger custody to payee.
	Transfer(ctx context.Context, payee string, amount decimal.Decimal) error
}
