package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type inMemoryStore struct {
	mu           sync.RWMutex
	now          func() time.Time
	wallets      map[string]Wallet
	walletByUser map[string]string
	transactions map[string]Transaction
	txOrder      []string
	campaigns    map[string]Campaign
}

// NewInMemory creates a concurrency-safe in-memory store useful for unit
// tests and local development without Postgres. One mutex guards every map, so
// each operation is atomic.
func NewInMemory() Store {
	return &inMemoryStore{
		now:          func() time.Time { return time.Now().UTC() },
		wallets:      make(map[string]Wallet),
		walletByUser: make(map[string]string),
		transactions: make(map[string]Transaction),
		campaigns:    make(map[string]Campaign),
	}
}

func (s *inMemoryStore) WalletByUser(_ context.Context, userID string) (Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.walletByUser[userID]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return s.wallets[id], nil
}

func (s *inMemoryStore) WalletByID(_ context.Context, walletID string) (Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[walletID]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return w, nil
}

func (s *inMemoryStore) CreateWallet(_ context.Context, userID string) (Wallet, error) {
	if userID == "" {
		return Wallet{}, ErrUserNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.walletByUser[userID]; ok {
		return s.wallets[id], nil
	}
	now := s.now()
	w := Wallet{
		ID:        uuid.NewString(),
		UserID:    userID,
		Currency:  CurrencyGBP,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.wallets[w.ID] = w
	s.walletByUser[userID] = w.ID
	return w, nil
}

func (s *inMemoryStore) CreateTopup(_ context.Context, walletID string, amountPence int64, description string) (Transaction, error) {
	if amountPence <= 0 {
		return Transaction{}, ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.wallets[walletID]; !ok {
		return Transaction{}, ErrWalletNotFound
	}
	t := Transaction{
		ID:          uuid.NewString(),
		WalletID:    walletID,
		Type:        TypeTopup,
		Status:      StatusPending,
		AmountPence: amountPence,
		Description: description,
		CreatedAt:   s.now(),
	}
	s.appendTx(t)
	return t, nil
}

func (s *inMemoryStore) CompleteTopup(_ context.Context, transactionID, externalRef, description string) (TopupResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.transactions[transactionID]
	if !ok || t.Type != TypeTopup {
		return TopupResult{}, ErrTransactionNotFound
	}
	w := s.wallets[t.WalletID]
	if t.Status == StatusCompleted {
		return TopupResult{Transaction: t, Wallet: w}, ErrTopupAlreadyCompleted
	}

	now := s.now()
	t.Status = StatusCompleted
	t.CompletedAt = &now
	if externalRef != "" {
		t.StripePaymentID = strPtr(externalRef)
	}
	if description != "" {
		t.Description = description
	}
	w.BalancePence += t.AmountPence
	w.TotalLoadedPence += t.AmountPence
	w.UpdatedAt = now

	s.transactions[t.ID] = t
	s.wallets[w.ID] = w
	return TopupResult{Transaction: t, Wallet: w}, nil
}

func (s *inMemoryStore) Transaction(_ context.Context, transactionID string) (Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transactions[transactionID]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	return t, nil
}

func (s *inMemoryStore) Transactions(_ context.Context, walletID string, limit int) ([]Transaction, error) {
	limit = pageSize(limit)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Transaction{}
	for i := len(s.txOrder) - 1; i >= 0 && len(out) < limit; i-- {
		t := s.transactions[s.txOrder[i]]
		if t.WalletID == walletID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *inMemoryStore) CreateCampaign(_ context.Context, c Campaign) (Campaign, error) {
	if c.TargetPence <= 0 {
		return Campaign{}, ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = uuid.NewString()
	c.RaisedPence = 0
	c.ContributorCount = 0
	c.Status = CampaignActive
	c.FundedAt = nil
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	s.campaigns[c.ID] = c
	return c, nil
}

func (s *inMemoryStore) Campaign(_ context.Context, campaignID string) (Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.campaigns[campaignID]
	if !ok {
		return Campaign{}, ErrCampaignNotFound
	}
	return c, nil
}

func (s *inMemoryStore) Campaigns(_ context.Context, filter CampaignFilter) ([]Campaign, error) {
	s.mu.RLock()
	out := make([]Campaign, 0, len(s.campaigns))
	for _, c := range s.campaigns {
		if filter.IssueID != "" && c.IssueID != filter.IssueID {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		out = append(out, c)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	limit := pageSize(filter.Limit)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *inMemoryStore) Contribute(_ context.Context, p ContributeParams) (ContributeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	walletID, ok := s.walletByUser[p.UserID]
	if !ok {
		return ContributeResult{}, ErrWalletNotFound
	}
	w := s.wallets[walletID]

	c, ok := s.campaigns[p.CampaignID]
	if !ok {
		return ContributeResult{}, ErrCampaignNotFound
	}

	if err := checkContribution(c, w, p); err != nil {
		return ContributeResult{}, err
	}

	now := s.now()
	w.BalancePence -= p.AmountPence
	w.TotalSpentPence += p.AmountPence
	w.UpdatedAt = now

	c.RaisedPence += p.AmountPence
	c.ContributorCount++
	next := evaluate(p, c, now)
	funded := next.Status != c.Status

	t := Transaction{
		ID:          uuid.NewString(),
		WalletID:    w.ID,
		Type:        TypeContribute,
		Status:      StatusCompleted,
		AmountPence: p.AmountPence,
		CampaignID:  strPtr(c.ID),
		IssueID:     strPtr(c.IssueID),
		Description: c.Title,
		CreatedAt:   now,
		CompletedAt: &now,
	}

	s.wallets[w.ID] = w
	s.campaigns[next.ID] = next
	s.appendTx(t)

	return ContributeResult{Transaction: t, Campaign: next, Wallet: w, Funded: funded}, nil
}

func (s *inMemoryStore) SpendingSummary(_ context.Context, userID string) (SpendingSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	walletID, ok := s.walletByUser[userID]
	if !ok {
		return SpendingSummary{}, nil
	}
	var sum SpendingSummary
	issues := make(map[string]struct{})
	for _, t := range s.transactions {
		if t.WalletID != walletID || t.Type != TypeContribute || t.Status != StatusCompleted {
			continue
		}
		sum.TotalSpentPence += t.AmountPence
		sum.TransactionCount++
		if t.IssueID != nil {
			issues[*t.IssueID] = struct{}{}
		}
	}
	sum.IssuesSupported = int64(len(issues))
	return sum, nil
}

func (s *inMemoryStore) appendTx(t Transaction) {
	s.transactions[t.ID] = t
	s.txOrder = append(s.txOrder, t.ID)
}
