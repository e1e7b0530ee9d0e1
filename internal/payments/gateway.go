package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	// StatusApproved is reported by gateways for captured payments.
	StatusApproved = "approved"
	// StatusDeclined is reported when the gateway refuses a payment.
	StatusDeclined = "declined"
)

// Gateway represents a connector to an external payment processor that funds
// wallet top-ups.
type Gateway interface {
	// CheckoutURL returns where the payer completes the out-of-band step for a
	// pending top-up transaction.
	CheckoutURL(transactionID string, amountPence int64) string
	// Capture settles the payment and returns the processor's reference.
	Capture(ctx context.Context, input CaptureRequest) (CaptureDecision, error)
}

// CaptureRequest encapsulates the details needed to settle a top-up.
type CaptureRequest struct {
	TransactionID string
	WalletID      string
	AmountPence   int64
}

// CaptureDecision captures the processor's response.
type CaptureDecision struct {
	Reference string
	Status    string
}

// SimulatedGateway approves every top-up instantly. There is no real payment
// processor behind it.
type SimulatedGateway struct {
	BaseURL string
}

// CheckoutURL points at the simulated completion endpoint.
func (g SimulatedGateway) CheckoutURL(transactionID string, amountPence int64) string {
	return fmt.Sprintf("%s/wallet/topup/%s?amount_pence=%d&mode=simulated", strings.TrimRight(g.BaseURL, "/"), transactionID, amountPence)
}

// Capture approves the payment with a synthetic reference.
func (SimulatedGateway) Capture(_ context.Context, input CaptureRequest) (CaptureDecision, error) {
	if input.AmountPence <= 0 {
		return CaptureDecision{Status: StatusDeclined}, fmt.Errorf("amount must be positive")
	}
	return CaptureDecision{Reference: "sim_" + strings.ReplaceAll(uuid.NewString(), "-", ""), Status: StatusApproved}, nil
}
