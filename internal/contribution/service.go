package contribution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/civicly/civicly/internal/campaign"
	"github.com/civicly/civicly/internal/ledger"
	"github.com/civicly/civicly/internal/metrics"
	"github.com/civicly/civicly/internal/notification"
)

// MinContributionPence is the smallest contribution accepted (10p).
const MinContributionPence = 10

// Service moves money from a user's wallet into a campaign.
type Service struct {
	store    ledger.Store
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewService builds a contribution service.
func NewService(store ledger.Store, notifier notification.Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, notifier: notifier, logger: logger}
}

// Result is the committed state after a contribution.
type Result struct {
	Transaction ledger.Transaction
	Campaign    ledger.Campaign
	Wallet      ledger.Wallet
}

// Contribute debits the user's wallet and credits the campaign as one unit.
// Either every effect is applied or none is. A contribution that reaches the
// target moves the campaign to funded in the same unit.
func (s *Service) Contribute(ctx context.Context, userID, campaignID string, amountPence int64) (Result, error) {
	start := time.Now()
	res, err := s.store.Contribute(ctx, ledger.ContributeParams{
		UserID:         userID,
		CampaignID:     campaignID,
		AmountPence:    amountPence,
		MinAmountPence: MinContributionPence,
		Evaluate:       campaign.EvaluateFundingThreshold,
	})
	metrics.RecordContribution(outcome(err), amountPence, time.Since(start).Seconds(), err == nil && res.Funded)
	if err != nil {
		s.logger.Warn("contribution rejected",
			slog.String("user_id", userID),
			slog.String("campaign_id", campaignID),
			slog.Int64("amount_pence", amountPence),
			slog.Any("error", err),
		)
		return Result{}, err
	}

	s.logger.Info("contribution committed",
		slog.String("transaction_id", res.Transaction.ID),
		slog.String("wallet_id", res.Wallet.ID),
		slog.String("campaign_id", res.Campaign.ID),
		slog.Int64("amount_pence", amountPence),
		slog.Int64("raised_pence", res.Campaign.RaisedPence),
	)
	if res.Funded {
		s.announceFunded(ctx, res.Campaign)
	}
	return Result{Transaction: res.Transaction, Campaign: res.Campaign, Wallet: res.Wallet}, nil
}

func (s *Service) announceFunded(ctx context.Context, c ledger.Campaign) {
	s.logger.Info("campaign funded",
		slog.String("campaign_id", c.ID),
		slog.String("issue_id", c.IssueID),
		slog.Int64("raised_pence", c.RaisedPence),
		slog.Int64("target_pence", c.TargetPence),
	)
	if s.notifier == nil {
		return
	}
	msg := notification.Message{
		Kind:        notification.KindCampaignFunded,
		Destination: c.IssueID,
		Body:        fmt.Sprintf("Campaign %q reached its target of %d pence", c.Title, c.TargetPence),
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.Warn("funded notification failed", slog.String("campaign_id", c.ID), slog.Any("error", err))
	}
}

func outcome(err error) string {
	var storage *ledger.StorageError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ledger.ErrCampaignNotActive):
		return "campaign_not_active"
	case errors.Is(err, ledger.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ledger.ErrWalletNotFound), errors.Is(err, ledger.ErrCampaignNotFound):
		return "not_found"
	case errors.As(err, &storage):
		return "storage_error"
	default:
		return "error"
	}
}
