package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/civicly/civicly/internal/ledger"
	"github.com/civicly/civicly/internal/metrics"
	"github.com/civicly/civicly/internal/notification"
	"github.com/civicly/civicly/internal/payments"
)

// Manager owns wallet lifecycle: lookup-or-create and top-up crediting.
type Manager struct {
	store    ledger.Store
	owners   OwnerDirectory
	gateway  payments.Gateway
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewManager builds a wallet manager.
func NewManager(store ledger.Store, owners OwnerDirectory, gateway payments.Gateway, notifier notification.Notifier, logger *slog.Logger) *Manager {
	if gateway == nil {
		gateway = payments.SimulatedGateway{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, owners: owners, gateway: gateway, notifier: notifier, logger: logger}
}

// GetWallet looks up the user's wallet without creating one.
func (m *Manager) GetWallet(ctx context.Context, userID string) (ledger.Wallet, error) {
	return m.store.WalletByUser(ctx, userID)
}

// GetOrCreateWallet returns the user's wallet, creating an empty GBP wallet on
// first access. The owner must exist.
func (m *Manager) GetOrCreateWallet(ctx context.Context, userID string) (ledger.Wallet, error) {
	w, err := m.store.WalletByUser(ctx, userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, ledger.ErrWalletNotFound) {
		return ledger.Wallet{}, err
	}

	ok, err := m.owners.Exists(ctx, userID)
	if err != nil {
		return ledger.Wallet{}, err
	}
	if !ok {
		return ledger.Wallet{}, ledger.ErrUserNotFound
	}

	w, err = m.store.CreateWallet(ctx, userID)
	if err != nil {
		return ledger.Wallet{}, err
	}
	m.logger.Info("wallet created", slog.String("wallet_id", w.ID), slog.String("user_id", userID))
	return w, nil
}

// CreateTopupTransaction records a pending top-up and returns where the payer
// completes it. The balance is untouched until CompleteTopup.
func (m *Manager) CreateTopupTransaction(ctx context.Context, walletID string, amountPence int64) (TopupIntent, error) {
	if amountPence <= 0 {
		return TopupIntent{}, fmt.Errorf("%w: amount must be positive", ledger.ErrInvalidAmount)
	}
	tx, err := m.store.CreateTopup(ctx, walletID, amountPence, fmt.Sprintf("Wallet top-up %s (pending)", FormatPence(amountPence)))
	if err != nil {
		metrics.RecordTopup("create", "error")
		return TopupIntent{}, err
	}
	metrics.RecordTopup("create", "ok")
	return TopupIntent{Transaction: tx, PaymentURL: m.gateway.CheckoutURL(tx.ID, amountPence)}, nil
}

// CompleteTopup credits the wallet for a pending top-up. Completing the same
// top-up again returns ledger.ErrTopupAlreadyCompleted with the current state
// and credits nothing.
func (m *Manager) CompleteTopup(ctx context.Context, transactionID, externalRef string) (ledger.TopupResult, error) {
	pending, err := m.store.Transaction(ctx, transactionID)
	if err != nil {
		return ledger.TopupResult{}, err
	}
	if pending.Type != ledger.TypeTopup {
		return ledger.TopupResult{}, ledger.ErrTransactionNotFound
	}

	res, err := m.store.CompleteTopup(ctx, transactionID, externalRef, fmt.Sprintf("Wallet top-up %s", FormatPence(pending.AmountPence)))
	if err != nil {
		if errors.Is(err, ledger.ErrTopupAlreadyCompleted) {
			metrics.RecordTopup("complete", "duplicate")
			return res, err
		}
		metrics.RecordTopup("complete", "error")
		return ledger.TopupResult{}, err
	}
	metrics.RecordTopup("complete", "ok")

	m.logger.Info("top-up completed",
		slog.String("transaction_id", res.Transaction.ID),
		slog.String("wallet_id", res.Wallet.ID),
		slog.Int64("amount_pence", res.Transaction.AmountPence),
	)
	if m.notifier != nil {
		if err := m.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindTopupCompleted,
			Destination: res.Wallet.UserID,
			Body:        fmt.Sprintf("%s added to your wallet. Balance: %s", FormatPence(res.Transaction.AmountPence), FormatPence(res.Wallet.BalancePence)),
		}); err != nil {
			m.logger.Warn("top-up notification failed", slog.Any("error", err))
		}
	}
	return res, nil
}

// TopUp runs the simulated payment flow end to end: create the pending
// top-up, capture it at the gateway and complete it.
func (m *Manager) TopUp(ctx context.Context, userID string, amountPence int64) (TopupReceipt, error) {
	if err := ValidateTopupAmount(amountPence); err != nil {
		return TopupReceipt{}, err
	}
	w, err := m.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return TopupReceipt{}, err
	}
	intent, err := m.CreateTopupTransaction(ctx, w.ID, amountPence)
	if err != nil {
		return TopupReceipt{}, err
	}
	decision, err := m.gateway.Capture(ctx, payments.CaptureRequest{
		TransactionID: intent.Transaction.ID,
		WalletID:      w.ID,
		AmountPence:   amountPence,
	})
	if err != nil {
		return TopupReceipt{}, fmt.Errorf("capture top-up: %w", err)
	}
	if decision.Status != payments.StatusApproved {
		return TopupReceipt{}, fmt.Errorf("capture top-up: payment %s", decision.Status)
	}
	res, err := m.CompleteTopup(ctx, intent.Transaction.ID, decision.Reference)
	if err != nil {
		return TopupReceipt{}, err
	}
	return TopupReceipt{Transaction: res.Transaction, Wallet: res.Wallet, PaymentURL: intent.PaymentURL}, nil
}

// History lists the user's most recent ledger rows. Users without a wallet
// have no history.
func (m *Manager) History(ctx context.Context, userID string, limit int) ([]ledger.Transaction, error) {
	w, err := m.store.WalletByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ledger.ErrWalletNotFound) {
			return []ledger.Transaction{}, nil
		}
		return nil, err
	}
	return m.store.Transactions(ctx, w.ID, limit)
}
