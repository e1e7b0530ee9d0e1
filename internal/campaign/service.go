package campaign

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/civicly/civicly/internal/ledger"
)

const (
	// MinTargetPence is the smallest fundraising target accepted (£1).
	MinTargetPence = 100
	// DefaultPlatformFeePct applies when a campaign does not set its own fee.
	DefaultPlatformFeePct = 15
)

// Service owns the campaign lifecycle.
type Service struct {
	store  ledger.Store
	logger *slog.Logger
}

// NewService builds a campaign service.
func NewService(store ledger.Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// CreateInput captures the fields a caller may set on a new campaign.
type CreateInput struct {
	IssueID        string
	OrgID          string
	Title          string
	Description    string
	TargetPence    int64
	PlatformFeePct *int
	Recipient      string
	RecipientURL   string
}

// Create validates and stores a new active campaign.
func (s *Service) Create(ctx context.Context, input CreateInput) (ledger.Campaign, error) {
	if input.TargetPence < MinTargetPence {
		return ledger.Campaign{}, fmt.Errorf("%w: target must be at least %d pence", ledger.ErrInvalidAmount, MinTargetPence)
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return ledger.Campaign{}, fmt.Errorf("%w: title is required", ledger.ErrInvalidCampaign)
	}
	if strings.TrimSpace(input.IssueID) == "" {
		return ledger.Campaign{}, fmt.Errorf("%w: issue_id is required", ledger.ErrInvalidCampaign)
	}

	fee := DefaultPlatformFeePct
	if input.PlatformFeePct != nil {
		fee = *input.PlatformFeePct
	}
	if fee < 0 || fee > 100 {
		return ledger.Campaign{}, fmt.Errorf("%w: platform_fee_pct must be between 0 and 100", ledger.ErrInvalidCampaign)
	}

	c := ledger.Campaign{
		IssueID:        input.IssueID,
		Title:          title,
		Description:    input.Description,
		TargetPence:    input.TargetPence,
		PlatformFeePct: fee,
		Recipient:      input.Recipient,
		RecipientURL:   input.RecipientURL,
		Status:         ledger.CampaignActive,
	}
	if input.OrgID != "" {
		org := input.OrgID
		c.OrgID = &org
	}

	created, err := s.store.CreateCampaign(ctx, c)
	if err != nil {
		return ledger.Campaign{}, err
	}
	if s.logger != nil {
		s.logger.Info("campaign created",
			slog.String("campaign_id", created.ID),
			slog.String("issue_id", created.IssueID),
			slog.Int64("target_pence", created.TargetPence),
		)
	}
	return created, nil
}

// Get fetches a campaign by id.
func (s *Service) Get(ctx context.Context, id string) (ledger.Campaign, error) {
	return s.store.Campaign(ctx, id)
}

// List returns campaigns, optionally narrowed to an issue or status.
func (s *Service) List(ctx context.Context, filter ledger.CampaignFilter) ([]ledger.Campaign, error) {
	return s.store.Campaigns(ctx, filter)
}

// EvaluateFundingThreshold moves an active campaign to funded once it has
// raised its target. Campaigns in any other state are returned unchanged.
func EvaluateFundingThreshold(c ledger.Campaign, now time.Time) ledger.Campaign {
	if c.Status != ledger.CampaignActive || c.RaisedPence < c.TargetPence {
		return c
	}
	c.Status = ledger.CampaignFunded
	fundedAt := now.UTC()
	c.FundedAt = &fundedAt
	return c
}
