package ledger

import "time"

// SeedWallet is a test helper that overwrites a wallet's loaded and spent
// totals when using the in-memory store. The balance is derived from them so
// the wallet invariant still holds.
func SeedWallet(s Store, walletID string, loaded, spent int64) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		w, exists := mem.wallets[walletID]
		if !exists {
			return
		}
		w.TotalLoadedPence = loaded
		w.TotalSpentPence = spent
		w.BalancePence = loaded - spent
		mem.wallets[walletID] = w
	}
}

// SeedCampaign is a test helper that sets a campaign's raised amount and
// status on the in-memory store.
func SeedCampaign(s Store, campaignID string, raised int64, status string) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		c, exists := mem.campaigns[campaignID]
		if !exists {
			return
		}
		c.RaisedPence = raised
		c.Status = status
		if status == CampaignFunded && c.FundedAt == nil {
			now := time.Now().UTC()
			c.FundedAt = &now
		}
		mem.campaigns[campaignID] = c
	}
}

// TransactionCount reports how many ledger rows the in-memory store holds.
func TransactionCount(s Store) int {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.RLock()
		defer mem.mu.RUnlock()
		return len(mem.transactions)
	}
	return -1
}
