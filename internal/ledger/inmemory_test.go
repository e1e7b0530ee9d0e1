package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func fundWhenReached(c Campaign, now time.Time) Campaign {
	if c.Status == CampaignActive && c.RaisedPence >= c.TargetPence {
		c.Status = CampaignFunded
		c.FundedAt = &now
	}
	return c
}

func setup(t *testing.T, balance, target int64) (Store, Wallet, Campaign) {
	t.Helper()
	s := NewInMemory()
	ctx := context.Background()

	w, err := s.CreateWallet(ctx, "user-1")
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	SeedWallet(s, w.ID, balance, 0)

	c, err := s.CreateCampaign(ctx, Campaign{IssueID: "issue-1", Title: "Fix the bridge", TargetPence: target, PlatformFeePct: 15})
	if err != nil {
		t.Fatalf("create campaign: %v", err)
	}
	return s, w, c
}

func TestInMemoryStore_ContributeMovesFunds(t *testing.T) {
	s, w, c := setup(t, 1_000, 10_000)
	ctx := context.Background()

	res, err := s.Contribute(ctx, ContributeParams{UserID: "user-1", CampaignID: c.ID, AmountPence: 300, MinAmountPence: 10, Evaluate: fundWhenReached})
	if err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if res.Wallet.BalancePence != 700 || res.Wallet.TotalSpentPence != 300 {
		t.Fatalf("unexpected wallet after contribution: %+v", res.Wallet)
	}
	if res.Wallet.BalancePence != res.Wallet.TotalLoadedPence-res.Wallet.TotalSpentPence {
		t.Fatalf("wallet invariant broken: %+v", res.Wallet)
	}
	if res.Campaign.RaisedPence != 300 || res.Campaign.ContributorCount != 1 {
		t.Fatalf("unexpected campaign after contribution: %+v", res.Campaign)
	}
	if res.Transaction.Type != TypeContribute || res.Transaction.WalletID != w.ID {
		t.Fatalf("unexpected transaction: %+v", res.Transaction)
	}
	if res.Transaction.CampaignID == nil || *res.Transaction.CampaignID != c.ID {
		t.Fatalf("transaction not linked to campaign: %+v", res.Transaction)
	}
	if res.Transaction.IssueID == nil || *res.Transaction.IssueID != "issue-1" {
		t.Fatalf("transaction missing issue id: %+v", res.Transaction)
	}
	if res.Transaction.Description != c.Title {
		t.Fatalf("expected description %q, got %q", c.Title, res.Transaction.Description)
	}
}

func TestInMemoryStore_PreconditionOrder(t *testing.T) {
	s, _, c := setup(t, 100, 10_000)
	ctx := context.Background()

	cases := []struct {
		name   string
		params ContributeParams
		want   error
	}{
		{"no wallet", ContributeParams{UserID: "ghost", CampaignID: "missing", AmountPence: -1}, ErrWalletNotFound},
		{"no campaign", ContributeParams{UserID: "user-1", CampaignID: "missing", AmountPence: -1}, ErrCampaignNotFound},
		{"insufficient before invalid", ContributeParams{UserID: "user-1", CampaignID: c.ID, AmountPence: 500, MinAmountPence: 1_000}, ErrInsufficientFunds},
		{"below minimum", ContributeParams{UserID: "user-1", CampaignID: c.ID, AmountPence: 5, MinAmountPence: 10}, ErrInvalidAmount},
		{"non-positive", ContributeParams{UserID: "user-1", CampaignID: c.ID, AmountPence: 0}, ErrInvalidAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.Contribute(ctx, tc.params); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	SeedCampaign(s, c.ID, 0, CampaignCancelled)
	if _, err := s.Contribute(ctx, ContributeParams{UserID: "user-1", CampaignID: c.ID, AmountPence: 500}); !errors.Is(err, ErrCampaignNotActive) {
		t.Fatalf("expected campaign not active before insufficient funds, got %v", err)
	}
}

func TestInMemoryStore_FailedContributionHasNoSideEffects(t *testing.T) {
	s, w, c := setup(t, 200, 10_000)
	ctx := context.Background()
	before := TransactionCount(s)

	if _, err := s.Contribute(ctx, ContributeParams{UserID: "user-1", CampaignID: c.ID, AmountPence: 500}); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	after, _ := s.WalletByID(ctx, w.ID)
	if after.BalancePence != 200 || after.TotalSpentPence != 0 {
		t.Fatalf("wallet changed on failure: %+v", after)
	}
	camp, _ := s.Campaign(ctx, c.ID)
	if camp.RaisedPence != 0 || camp.ContributorCount != 0 {
		t.Fatalf("campaign changed on failure: %+v", camp)
	}
	if TransactionCount(s) != before {
		t.Fatalf("ledger row written on failure")
	}
}

func TestInMemoryStore_ThresholdCrossing(t *testing.T) {
	s, _, c := setup(t, 1_000, 10_000)
	ctx := context.Background()
	SeedCampaign(s, c.ID, 9_950, CampaignActive)

	res, err := s.Contribute(ctx, ContributeParams{UserID: "user-1", CampaignID: c.ID, AmountPence: 50, Evaluate: fundWhenReached})
	if err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if !res.Funded || res.Campaign.Status != CampaignFunded || res.Campaign.RaisedPence != 10_000 {
		t.Fatalf("expected funded campaign at 10000, got %+v", res.Campaign)
	}
	if res.Campaign.FundedAt == nil {
		t.Fatalf("funded_at not stamped")
	}

	if _, err := s.Contribute(ctx, ContributeParams{UserID: "user-1", CampaignID: c.ID, AmountPence: 50, Evaluate: fundWhenReached}); !errors.Is(err, ErrCampaignNotActive) {
		t.Fatalf("expected funded campaign to reject contributions, got %v", err)
	}
}

func TestInMemoryStore_EvaluateCannotReverseStatus(t *testing.T) {
	s, _, c := setup(t, 1_000, 10_000)
	ctx := context.Background()

	rogue := func(c Campaign, _ time.Time) Campaign {
		c.Status = CampaignCancelled
		c.RaisedPence = 0
		return c
	}
	res, err := s.Contribute(ctx, ContributeParams{UserID: "user-1", CampaignID: c.ID, AmountPence: 100, Evaluate: rogue})
	if err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if res.Campaign.Status != CampaignActive || res.Campaign.RaisedPence != 100 {
		t.Fatalf("threshold func must only move active to funded, got %+v", res.Campaign)
	}
}

func TestInMemoryStore_ConcurrentContributionsNeverOverdraw(t *testing.T) {
	const (
		balance = int64(1_000)
		amount  = int64(300)
		workers = 10
	)
	s, w, c := setup(t, balance, 1_000_000)
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int64
		rejected  int64
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Contribute(ctx, ContributeParams{UserID: "user-1", CampaignID: c.ID, AmountPence: amount, Evaluate: fundWhenReached})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrInsufficientFunds):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != balance/amount {
		t.Fatalf("expected %d successful contributions, got %d", balance/amount, succeeded)
	}
	if rejected != workers-succeeded {
		t.Fatalf("expected %d rejections, got %d", workers-succeeded, rejected)
	}
	final, _ := s.WalletByID(ctx, w.ID)
	if final.BalancePence < 0 || final.BalancePence != balance-succeeded*amount {
		t.Fatalf("unexpected final balance %d", final.BalancePence)
	}
	camp, _ := s.Campaign(ctx, c.ID)
	if camp.RaisedPence != succeeded*amount || camp.ContributorCount != succeeded {
		t.Fatalf("campaign totals out of step with wallet: %+v", camp)
	}
}

func TestInMemoryStore_CompleteTopupIsIdempotent(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	w, _ := s.CreateWallet(ctx, "user-1")

	tx, err := s.CreateTopup(ctx, w.ID, 1_000, "Wallet top-up (pending)")
	if err != nil {
		t.Fatalf("create topup: %v", err)
	}
	if tx.Status != StatusPending {
		t.Fatalf("expected pending topup, got %s", tx.Status)
	}
	pending, _ := s.WalletByID(ctx, w.ID)
	if pending.BalancePence != 0 {
		t.Fatalf("pending topup must not credit, balance=%d", pending.BalancePence)
	}

	res, err := s.CompleteTopup(ctx, tx.ID, "sim_abc", "Wallet top-up")
	if err != nil {
		t.Fatalf("complete topup: %v", err)
	}
	if res.Wallet.BalancePence != 1_000 || res.Wallet.TotalLoadedPence != 1_000 {
		t.Fatalf("unexpected wallet: %+v", res.Wallet)
	}
	if res.Transaction.StripePaymentID == nil || *res.Transaction.StripePaymentID != "sim_abc" {
		t.Fatalf("payment reference not stamped: %+v", res.Transaction)
	}

	again, err := s.CompleteTopup(ctx, tx.ID, "sim_abc", "Wallet top-up")
	if !errors.Is(err, ErrTopupAlreadyCompleted) {
		t.Fatalf("expected already completed, got %v", err)
	}
	if again.Wallet.BalancePence != 1_000 {
		t.Fatalf("second completion credited again: %+v", again.Wallet)
	}

	if _, err := s.CompleteTopup(ctx, "missing", "", ""); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected transaction not found, got %v", err)
	}
}

func TestInMemoryStore_SpendingSummary(t *testing.T) {
	s, _, c := setup(t, 5_000, 100_000)
	ctx := context.Background()
	other, err := s.CreateCampaign(ctx, Campaign{IssueID: "issue-2", Title: "Library hours", TargetPence: 5_000})
	if err != nil {
		t.Fatalf("create campaign: %v", err)
	}

	for i, id := range []string{c.ID, c.ID, other.ID} {
		if _, err := s.Contribute(ctx, ContributeParams{UserID: "user-1", CampaignID: id, AmountPence: 100}); err != nil {
			t.Fatalf("contribution %d: %v", i, err)
		}
	}

	sum, err := s.SpendingSummary(ctx, "user-1")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.TotalSpentPence != 300 || sum.IssuesSupported != 2 || sum.TransactionCount != 3 {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	empty, err := s.SpendingSummary(ctx, "nobody")
	if err != nil || empty != (SpendingSummary{}) {
		t.Fatalf("expected zero summary, got %+v (%v)", empty, err)
	}
	if _, err := s.WalletByUser(ctx, "nobody"); !errors.Is(err, ErrWalletNotFound) {
		t.Fatalf("summary must not create wallets, got %v", err)
	}
}

func TestInMemoryStore_ListsAreCapped(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	for i := 0; i < MaxPageSize+20; i++ {
		if _, err := s.CreateCampaign(ctx, Campaign{IssueID: "issue-1", Title: "Bench", TargetPence: 1_000}); err != nil {
			t.Fatalf("create campaign: %v", err)
		}
	}

	cases := []struct {
		limit int
		want  int
	}{
		{0, DefaultPageSize},
		{-3, DefaultPageSize},
		{7, 7},
		{10_000_000, MaxPageSize},
	}
	for _, tc := range cases {
		got, err := s.Campaigns(ctx, CampaignFilter{Limit: tc.limit})
		if err != nil {
			t.Fatalf("campaigns: %v", err)
		}
		if len(got) != tc.want {
			t.Fatalf("limit %d: expected %d campaigns, got %d", tc.limit, tc.want, len(got))
		}
	}
}
