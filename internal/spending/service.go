package spending

import (
	"context"

	"github.com/civicly/civicly/internal/ledger"
)

// Summary aggregates what a user has contributed.
type Summary struct {
	TotalSpentPence  int64 `json:"total_spent_pence"`
	IssuesSupported  int64 `json:"issues_supported"`
	TransactionCount int64 `json:"transaction_count"`
}

// Service reports spending summaries. It never creates wallets.
type Service struct {
	store ledger.Store
}

// NewService builds a spending summary service.
func NewService(store ledger.Store) *Service {
	return &Service{store: store}
}

// UserSummary totals the user's completed contributions. Users without a
// wallet get an all-zero summary.
func (s *Service) UserSummary(ctx context.Context, userID string) (Summary, error) {
	sum, err := s.store.SpendingSummary(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	return Summary(sum), nil
}
