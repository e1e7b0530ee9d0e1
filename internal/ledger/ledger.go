package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrWalletNotFound is returned when the user has no wallet yet.
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrCampaignNotFound is returned for an unknown campaign id.
	ErrCampaignNotFound = errors.New("campaign not found")
	// ErrCampaignNotActive is returned when contributing to a campaign that is
	// funded, cancelled or disbursed.
	ErrCampaignNotActive = errors.New("campaign is not accepting contributions")
	// ErrInsufficientFunds occurs when the wallet balance cannot cover the
	// requested contribution.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrTransactionNotFound is returned when a top-up transaction id is unknown.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrInvalidAmount covers non-positive amounts and amounts below a minimum.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidCampaign is returned for campaigns missing required fields.
	ErrInvalidCampaign = errors.New("invalid campaign")
	// ErrUserNotFound is returned when a wallet would reference a missing user.
	ErrUserNotFound = errors.New("user not found")
	// ErrTopupAlreadyCompleted indicates the top-up was already credited. The
	// accompanying result carries the current state and callers should treat
	// the call as idempotent.
	ErrTopupAlreadyCompleted = errors.New("top-up already completed")
)

// StorageError wraps faults raised by the underlying store (connection loss,
// serialization failures). The core does not classify these further.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("ledger storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

const (
	// CurrencyGBP is the only currency wallets are held in.
	CurrencyGBP = "GBP"

	TypeTopup      = "topup"
	TypeContribute = "contribute"
	TypeRefund     = "refund"

	StatusPending   = "pending"
	StatusCompleted = "completed"

	CampaignActive    = "active"
	CampaignFunded    = "funded"
	CampaignCancelled = "cancelled"
	CampaignDisbursed = "disbursed"
)

// Wallet is a user's stored-value balance. BalancePence always equals
// TotalLoadedPence - TotalSpentPence.
type Wallet struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	BalancePence     int64     `json:"balance_pence"`
	TotalLoadedPence int64     `json:"total_loaded_pence"`
	TotalSpentPence  int64     `json:"total_spent_pence"`
	Currency         string    `json:"currency"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Transaction is an append-only ledger row.
type Transaction struct {
	ID              string     `json:"id"`
	WalletID        string     `json:"wallet_id"`
	Type            string     `json:"type"`
	Status          string     `json:"status"`
	AmountPence     int64      `json:"amount_pence"`
	CampaignID      *string    `json:"campaign_id,omitempty"`
	IssueID         *string    `json:"issue_id,omitempty"`
	Description     string     `json:"description"`
	StripePaymentID *string    `json:"stripe_payment_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// Campaign is a fundraising target tied to an issue.
type Campaign struct {
	ID               string     `json:"id"`
	IssueID          string     `json:"issue_id"`
	OrgID            *string    `json:"org_id,omitempty"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	TargetPence      int64      `json:"target_pence"`
	RaisedPence      int64      `json:"raised_pence"`
	ContributorCount int64      `json:"contributor_count"`
	PlatformFeePct   int        `json:"platform_fee_pct"`
	Recipient        string     `json:"recipient"`
	RecipientURL     string     `json:"recipient_url"`
	Status           string     `json:"status"`
	FundedAt         *time.Time `json:"funded_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// ThresholdFunc decides the campaign state after a contribution has been
// applied. It must be pure.
type ThresholdFunc func(c Campaign, now time.Time) Campaign

// ContributeParams describes one contribution attempt.
type ContributeParams struct {
	UserID         string
	CampaignID     string
	AmountPence    int64
	MinAmountPence int64
	Evaluate       ThresholdFunc
}

// ContributeResult is the committed outcome of a contribution.
type ContributeResult struct {
	Transaction Transaction
	Campaign    Campaign
	Wallet      Wallet
	// Funded is true when this contribution moved the campaign to funded.
	Funded bool
}

// TopupResult is the state after completing a top-up.
type TopupResult struct {
	Transaction Transaction
	Wallet      Wallet
}

const (
	// DefaultPageSize applies when a list call passes no limit.
	DefaultPageSize = 50
	// MaxPageSize caps every list call.
	MaxPageSize = 100
)

func pageSize(limit int) int {
	switch {
	case limit <= 0:
		return DefaultPageSize
	case limit > MaxPageSize:
		return MaxPageSize
	default:
		return limit
	}
}

// CampaignFilter narrows ListCampaigns. Zero values match everything.
type CampaignFilter struct {
	IssueID string
	Status  string
	Limit   int
}

// SpendingSummary aggregates a user's completed contributions.
type SpendingSummary struct {
	TotalSpentPence  int64 `json:"total_spent_pence"`
	IssuesSupported  int64 `json:"issues_supported"`
	TransactionCount int64 `json:"transaction_count"`
}

// Store is the contract implemented by ledger backends (e.g. Postgres). Every
// method that writes more than one row does so atomically.
type Store interface {
	WalletByUser(ctx context.Context, userID string) (Wallet, error)
	WalletByID(ctx context.Context, walletID string) (Wallet, error)
	CreateWallet(ctx context.Context, userID string) (Wallet, error)

	CreateTopup(ctx context.Context, walletID string, amountPence int64, description string) (Transaction, error)
	CompleteTopup(ctx context.Context, transactionID, externalRef, description string) (TopupResult, error)
	Transaction(ctx context.Context, transactionID string) (Transaction, error)
	Transactions(ctx context.Context, walletID string, limit int) ([]Transaction, error)

	CreateCampaign(ctx context.Context, c Campaign) (Campaign, error)
	Campaign(ctx context.Context, campaignID string) (Campaign, error)
	Campaigns(ctx context.Context, filter CampaignFilter) ([]Campaign, error)

	Contribute(ctx context.Context, params ContributeParams) (ContributeResult, error)

	SpendingSummary(ctx context.Context, userID string) (SpendingSummary, error)
}

// checkContribution applies the contribution preconditions in their fixed
// order. Both backends call it with locked, current rows.
func checkContribution(c Campaign, w Wallet, p ContributeParams) error {
	if c.Status != CampaignActive {
		return ErrCampaignNotActive
	}
	if w.BalancePence < p.AmountPence {
		return ErrInsufficientFunds
	}
	if p.AmountPence <= 0 || p.AmountPence < p.MinAmountPence {
		return ErrInvalidAmount
	}
	return nil
}

func evaluate(p ContributeParams, c Campaign, now time.Time) Campaign {
	if p.Evaluate == nil {
		return c
	}
	next := p.Evaluate(c, now)
	// Only active -> funded is allowed from inside a contribution, and only
	// the status fields are taken from the decision.
	if next.Status == c.Status || c.Status != CampaignActive || next.Status != CampaignFunded {
		return c
	}
	c.Status = next.Status
	c.FundedAt = next.FundedAt
	if c.FundedAt == nil {
		c.FundedAt = &now
	}
	return c
}

func strPtr(s string) *string { return &s }
