package ledger

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"

	walletColumns = `id::text, user_id::text, balance_pence, total_loaded_pence, total_spent_pence,
        currency, created_at, updated_at`
	transactionColumns = `id::text, wallet_id::text, type, status, amount_pence, campaign_id::text,
        issue_id, description, stripe_payment_id, created_at, completed_at`
	campaignColumns = `id::text, issue_id, org_id, title, description, target_pence, raised_pence,
        contributor_count, platform_fee_pct, recipient, recipient_url, status, funded_at, created_at`
)

// PostgresStore persists wallets, campaigns and ledger rows in PostgreSQL.
type PostgresStore struct {
	db  *pgxpool.Pool
	now func() time.Time
}

// NewPostgresStore constructs a Postgres-backed ledger store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWallet(row rowScanner) (Wallet, error) {
	var w Wallet
	err := row.Scan(&w.ID, &w.UserID, &w.BalancePence, &w.TotalLoadedPence, &w.TotalSpentPence,
		&w.Currency, &w.CreatedAt, &w.UpdatedAt)
	return w, err
}

func scanTransaction(row rowScanner) (Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.WalletID, &t.Type, &t.Status, &t.AmountPence, &t.CampaignID,
		&t.IssueID, &t.Description, &t.StripePaymentID, &t.CreatedAt, &t.CompletedAt)
	return t, err
}

func scanCampaign(row rowScanner) (Campaign, error) {
	var c Campaign
	err := row.Scan(&c.ID, &c.IssueID, &c.OrgID, &c.Title, &c.Description, &c.TargetPence, &c.RaisedPence,
		&c.ContributorCount, &c.PlatformFeePct, &c.Recipient, &c.RecipientURL, &c.Status, &c.FundedAt, &c.CreatedAt)
	return c, err
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// WalletByUser returns the wallet owned by userID.
func (s *PostgresStore) WalletByUser(ctx context.Context, userID string) (Wallet, error) {
	if !validID(userID) {
		return Wallet{}, ErrWalletNotFound
	}
	w, err := scanWallet(s.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrWalletNotFound
		}
		return Wallet{}, storageErr("wallet by user", err)
	}
	return w, nil
}

// WalletByID returns a wallet by its identifier.
func (s *PostgresStore) WalletByID(ctx context.Context, walletID string) (Wallet, error) {
	if !validID(walletID) {
		return Wallet{}, ErrWalletNotFound
	}
	w, err := scanWallet(s.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, walletID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrWalletNotFound
		}
		return Wallet{}, storageErr("wallet by id", err)
	}
	return w, nil
}

// CreateWallet inserts a zeroed wallet for userID, or returns the existing one
// if another request created it first.
func (s *PostgresStore) CreateWallet(ctx context.Context, userID string) (Wallet, error) {
	if !validID(userID) {
		return Wallet{}, ErrUserNotFound
	}
	now := s.now()
	w, err := scanWallet(s.db.QueryRow(ctx, `INSERT INTO wallets
        (id, user_id, balance_pence, total_loaded_pence, total_spent_pence, currency, created_at, updated_at)
        VALUES ($1, $2, 0, 0, 0, $3, $4, $4)
        ON CONFLICT (user_id) DO NOTHING
        RETURNING `+walletColumns, uuid.New(), userID, CurrencyGBP, now))
	if err == nil {
		return w, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return s.WalletByUser(ctx, userID)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return Wallet{}, ErrUserNotFound
	}
	return Wallet{}, storageErr("create wallet", err)
}

// CreateTopup records a pending top-up with no balance effect.
func (s *PostgresStore) CreateTopup(ctx context.Context, walletID string, amountPence int64, description string) (Transaction, error) {
	if amountPence <= 0 {
		return Transaction{}, ErrInvalidAmount
	}
	if !validID(walletID) {
		return Transaction{}, ErrWalletNotFound
	}
	t, err := scanTransaction(s.db.QueryRow(ctx, `INSERT INTO wallet_transactions
        (id, wallet_id, type, status, amount_pence, description, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING `+transactionColumns, uuid.New(), walletID, TypeTopup, StatusPending, amountPence, description, s.now()))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return Transaction{}, ErrWalletNotFound
		}
		return Transaction{}, storageErr("create topup", err)
	}
	return t, nil
}

// CompleteTopup marks a pending top-up completed and credits its wallet in a
// single transaction. A second completion credits nothing.
func (s *PostgresStore) CompleteTopup(ctx context.Context, transactionID, externalRef, description string) (TopupResult, error) {
	if !validID(transactionID) {
		return TopupResult{}, ErrTransactionNotFound
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return TopupResult{}, storageErr("begin complete topup", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	current, err := scanTransaction(tx.QueryRow(ctx, `SELECT `+transactionColumns+`
        FROM wallet_transactions WHERE id = $1 AND type = $2 FOR UPDATE`, transactionID, TypeTopup))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TopupResult{}, ErrTransactionNotFound
		}
		return TopupResult{}, storageErr("load topup", err)
	}

	if current.Status == StatusCompleted {
		w, err := scanWallet(tx.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, current.WalletID))
		if err != nil {
			return TopupResult{}, storageErr("load wallet", err)
		}
		return TopupResult{Transaction: current, Wallet: w}, ErrTopupAlreadyCompleted
	}

	now := s.now()
	var ref *string
	if externalRef != "" {
		ref = strPtr(externalRef)
	}
	if description == "" {
		description = current.Description
	}

	completed, err := scanTransaction(tx.QueryRow(ctx, `UPDATE wallet_transactions
        SET status = $2, stripe_payment_id = $3, description = $4, completed_at = $5
        WHERE id = $1 AND status = $6
        RETURNING `+transactionColumns, transactionID, StatusCompleted, ref, description, now, StatusPending))
	if err != nil {
		return TopupResult{}, storageErr("complete topup", err)
	}

	w, err := scanWallet(tx.QueryRow(ctx, `UPDATE wallets
        SET balance_pence = balance_pence + $2, total_loaded_pence = total_loaded_pence + $2, updated_at = $3
        WHERE id = $1
        RETURNING `+walletColumns, completed.WalletID, completed.AmountPence, now))
	if err != nil {
		return TopupResult{}, storageErr("credit wallet", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return TopupResult{}, storageErr("commit complete topup", err)
	}
	return TopupResult{Transaction: completed, Wallet: w}, nil
}

// Transaction fetches a single ledger row.
func (s *PostgresStore) Transaction(ctx context.Context, transactionID string) (Transaction, error) {
	if !validID(transactionID) {
		return Transaction{}, ErrTransactionNotFound
	}
	t, err := scanTransaction(s.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM wallet_transactions WHERE id = $1`, transactionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, storageErr("transaction", err)
	}
	return t, nil
}

// Transactions lists the most recent ledger rows of a wallet, newest first.
func (s *PostgresStore) Transactions(ctx context.Context, walletID string, limit int) ([]Transaction, error) {
	if !validID(walletID) {
		return nil, ErrWalletNotFound
	}
	limit = pageSize(limit)
	rows, err := s.db.Query(ctx, `SELECT `+transactionColumns+` FROM wallet_transactions
        WHERE wallet_id = $1 ORDER BY created_at DESC, id LIMIT $2`, walletID, limit)
	if err != nil {
		return nil, storageErr("transactions", err)
	}
	defer rows.Close()

	out := []Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, storageErr("scan transaction", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("transactions", err)
	}
	return out, nil
}

// CreateCampaign inserts a new campaign. Identity, counters and status are
// assigned here regardless of the input.
func (s *PostgresStore) CreateCampaign(ctx context.Context, c Campaign) (Campaign, error) {
	c.ID = uuid.NewString()
	c.RaisedPence = 0
	c.ContributorCount = 0
	c.Status = CampaignActive
	c.FundedAt = nil
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	created, err := scanCampaign(s.db.QueryRow(ctx, `INSERT INTO campaigns
        (id, issue_id, org_id, title, description, target_pence, raised_pence, contributor_count,
         platform_fee_pct, recipient, recipient_url, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, 0, 0, $7, $8, $9, $10, $11)
        RETURNING `+campaignColumns,
		c.ID, c.IssueID, c.OrgID, c.Title, c.Description, c.TargetPence,
		c.PlatformFeePct, c.Recipient, c.RecipientURL, c.Status, c.CreatedAt))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgCheckViolation {
			return Campaign{}, ErrInvalidAmount
		}
		return Campaign{}, storageErr("create campaign", err)
	}
	return created, nil
}

// Campaign fetches a campaign by id.
func (s *PostgresStore) Campaign(ctx context.Context, campaignID string) (Campaign, error) {
	if !validID(campaignID) {
		return Campaign{}, ErrCampaignNotFound
	}
	c, err := scanCampaign(s.db.QueryRow(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, campaignID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Campaign{}, ErrCampaignNotFound
		}
		return Campaign{}, storageErr("campaign", err)
	}
	return c, nil
}

// Campaigns lists campaigns matching filter, newest first.
func (s *PostgresStore) Campaigns(ctx context.Context, filter CampaignFilter) ([]Campaign, error) {
	var (
		where []string
		args  []any
	)
	if filter.IssueID != "" {
		args = append(args, filter.IssueID)
		where = append(where, "issue_id = $"+strconv.Itoa(len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, "status = $"+strconv.Itoa(len(args)))
	}
	limit := pageSize(filter.Limit)
	args = append(args, limit)

	query := `SELECT ` + campaignColumns + ` FROM campaigns`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id LIMIT $` + strconv.Itoa(len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr("campaigns", err)
	}
	defer rows.Close()

	var out []Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, storageErr("scan campaign", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("campaigns", err)
	}
	return out, nil
}

// Contribute debits the wallet, credits the campaign, appends the ledger row
// and persists any funding transition in one transaction. The wallet row is
// locked before the campaign row on every path.
func (s *PostgresStore) Contribute(ctx context.Context, p ContributeParams) (ContributeResult, error) {
	if !validID(p.UserID) {
		return ContributeResult{}, ErrWalletNotFound
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return ContributeResult{}, storageErr("begin contribute", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	w, err := scanWallet(tx.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 FOR UPDATE`, p.UserID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ContributeResult{}, ErrWalletNotFound
		}
		return ContributeResult{}, storageErr("lock wallet", err)
	}

	if !validID(p.CampaignID) {
		return ContributeResult{}, ErrCampaignNotFound
	}
	c, err := scanCampaign(tx.QueryRow(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1 FOR UPDATE`, p.CampaignID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ContributeResult{}, ErrCampaignNotFound
		}
		return ContributeResult{}, storageErr("lock campaign", err)
	}

	if err := checkContribution(c, w, p); err != nil {
		return ContributeResult{}, err
	}

	now := s.now()

	// Conditional debit: the balance never goes negative.
	w, err = scanWallet(tx.QueryRow(ctx, `UPDATE wallets
        SET balance_pence = balance_pence - $2, total_spent_pence = total_spent_pence + $2, updated_at = $3
        WHERE id = $1 AND balance_pence >= $2
        RETURNING `+walletColumns, w.ID, p.AmountPence, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ContributeResult{}, ErrInsufficientFunds
		}
		return ContributeResult{}, storageErr("debit wallet", err)
	}

	credited, err := scanCampaign(tx.QueryRow(ctx, `UPDATE campaigns
        SET raised_pence = raised_pence + $2, contributor_count = contributor_count + 1
        WHERE id = $1 AND status = $3
        RETURNING `+campaignColumns, c.ID, p.AmountPence, CampaignActive))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ContributeResult{}, ErrCampaignNotActive
		}
		return ContributeResult{}, storageErr("credit campaign", err)
	}

	next := evaluate(p, credited, now)
	funded := next.Status != credited.Status
	if funded {
		next, err = scanCampaign(tx.QueryRow(ctx, `UPDATE campaigns
            SET status = $2, funded_at = $3
            WHERE id = $1 AND status = $4
            RETURNING `+campaignColumns, c.ID, next.Status, next.FundedAt, CampaignActive))
		if err != nil {
			return ContributeResult{}, storageErr("fund campaign", err)
		}
	}

	t, err := scanTransaction(tx.QueryRow(ctx, `INSERT INTO wallet_transactions
        (id, wallet_id, type, status, amount_pence, campaign_id, issue_id, description, created_at, completed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
        RETURNING `+transactionColumns,
		uuid.New(), w.ID, TypeContribute, StatusCompleted, p.AmountPence, c.ID, c.IssueID, c.Title, now))
	if err != nil {
		return ContributeResult{}, storageErr("record contribution", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return ContributeResult{}, storageErr("commit contribute", err)
	}

	return ContributeResult{Transaction: t, Campaign: next, Wallet: w, Funded: funded}, nil
}

// SpendingSummary aggregates the user's completed contributions. A user with
// no wallet gets a zero summary.
func (s *PostgresStore) SpendingSummary(ctx context.Context, userID string) (SpendingSummary, error) {
	if !validID(userID) {
		return SpendingSummary{}, nil
	}
	const query = `
        SELECT COALESCE(SUM(t.amount_pence), 0), COUNT(DISTINCT t.issue_id), COUNT(*)
        FROM wallet_transactions t
        INNER JOIN wallets w ON w.id = t.wallet_id
        WHERE w.user_id = $1 AND t.type = $2 AND t.status = $3`
	var sum SpendingSummary
	if err := s.db.QueryRow(ctx, query, userID, TypeContribute, StatusCompleted).
		Scan(&sum.TotalSpentPence, &sum.IssuesSupported, &sum.TransactionCount); err != nil {
		return SpendingSummary{}, storageErr("spending summary", err)
	}
	return sum, nil
}
