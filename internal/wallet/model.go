package wallet

import (
	"context"
	"fmt"

	"github.com/civicly/civicly/internal/ledger"
)

// MinTopupPence is the smallest top-up callers accept (£1).
const MinTopupPence = 100

// OwnerDirectory answers whether a wallet owner exists.
type OwnerDirectory interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

// TopupIntent is a pending top-up and where the payer completes it.
type TopupIntent struct {
	Transaction ledger.Transaction
	PaymentURL  string
}

// TopupReceipt is the outcome of a synchronously completed top-up.
type TopupReceipt struct {
	Transaction ledger.Transaction
	Wallet      ledger.Wallet
	PaymentURL  string
}

// ValidateTopupAmount enforces the caller-side top-up minimum.
func ValidateTopupAmount(amountPence int64) error {
	if amountPence < MinTopupPence {
		return fmt.Errorf("%w: top-ups must be at least %d pence", ledger.ErrInvalidAmount, MinTopupPence)
	}
	return nil
}

// FormatPence renders an amount as pounds, e.g. 1050 -> "£10.50".
func FormatPence(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s£%d.%02d", sign, amount/100, amount%100)
}
